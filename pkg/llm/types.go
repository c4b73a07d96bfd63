package llm

import (
	"fmt"
	"strings"
)

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ContentType identifies what kind of content a block holds.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

// ContentBlock is one element in a message's content array.
type ContentBlock struct {
	Type  ContentType `json:"type"`
	Text  string      `json:"text,omitempty"`
	Image *ImageData  `json:"image,omitempty"`
}

// ImageData is an inline image attached to a message.
type ImageData struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Message is one turn in a conversation.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// TextMessage is a convenience constructor for a plain-text message.
func TextMessage(role Role, text string) Message {
	return Message{
		Role:    role,
		Content: []ContentBlock{{Type: ContentTypeText, Text: text}},
	}
}

// ImageMessage builds a user message holding an image followed by a text
// instruction about it.
func ImageMessage(mimeType string, data []byte, text string) Message {
	return Message{
		Role: RoleUser,
		Content: []ContentBlock{
			{Type: ContentTypeImage, Image: &ImageData{MIMEType: mimeType, Data: data}},
			{Type: ContentTypeText, Text: text},
		},
	}
}

// GenerateRequest is the unified input to the LLM client.
type GenerateRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	System    string    `json:"system,omitempty"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	// JSON asks the provider to reply with a single JSON object, where the
	// provider supports it.
	JSON bool `json:"json,omitempty"`
}

// StopReason explains why generation stopped.
type StopReason string

const (
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonMaxTokens StopReason = "max_tokens"
)

// Usage reports token counts.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// GenerateResponse is the unified output from the LLM client.
type GenerateResponse struct {
	Content    []ContentBlock `json:"content"`
	StopReason StopReason     `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// Text concatenates the text blocks of the response.
func (r GenerateResponse) Text() string {
	var sb strings.Builder
	for _, b := range r.Content {
		if b.Type == ContentTypeText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ImageRequest is the unified input to an ImageGenerator.
type ImageRequest struct {
	Prompt string `json:"prompt"`
	// AspectRatio is "W:H", e.g. "16:9". Providers pick their closest size.
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// ImageResponse carries one generated image.
type ImageResponse struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// ParseModelID splits "provider:model-name" into (provider, modelName, nil).
// Both parts must be non-empty and the colon separator is required.
// Returns an error if the format is invalid.
func ParseModelID(id string) (provider, modelName string, err error) {
	for i, c := range id {
		if c == ':' {
			p := id[:i]
			m := id[i+1:]
			if p == "" {
				return "", "", fmt.Errorf("model ID %q: empty provider name", id)
			}
			if m == "" {
				return "", "", fmt.Errorf("model ID %q: empty model name", id)
			}
			return p, m, nil
		}
	}
	return "", "", fmt.Errorf("model ID %q: missing 'provider:model-name' format", id)
}
