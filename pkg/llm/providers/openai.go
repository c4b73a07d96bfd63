package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ravi-parthasarathy/artiffex/pkg/llm"
)

func init() {
	llm.RegisterProvider("openai", func(modelName string) (llm.Client, error) {
		return newOpenAIClient(modelName)
	})
	llm.RegisterImageProvider("openai", func(modelName string) (llm.ImageGenerator, error) {
		return newOpenAIClient(modelName)
	})
}

type openaiClient struct {
	sdk       *openai.Client
	modelName string
}

func newOpenAIClient(modelName string) (*openaiClient, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("openai: OPENAI_API_KEY environment variable not set")
	}
	return &openaiClient{
		sdk:       openai.NewClient(key),
		modelName: modelName,
	}, nil
}

// Complete performs a blocking generation with automatic retry on transient errors.
func (c *openaiClient) Complete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	var resp llm.GenerateResponse
	err := llm.WithRetry(ctx, 4, func() error {
		var innerErr error
		resp, innerErr = c.doComplete(ctx, req)
		return innerErr
	})
	return resp, err
}

func (c *openaiClient) doComplete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	maxTokens := 4096
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := openai.ChatCompletionRequest{
		Model:     c.modelName,
		MaxTokens: maxTokens,
		Messages:  buildMessages(req.Messages, req.System),
	}
	if req.JSON {
		params.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.sdk.CreateChatCompletion(ctx, params)
	if err != nil {
		return llm.GenerateResponse{}, mapOpenAIError(err)
	}
	return convertOpenAIResponse(resp), nil
}

// GenerateImage creates one image and returns its decoded bytes.
func (c *openaiClient) GenerateImage(ctx context.Context, req llm.ImageRequest) (llm.ImageResponse, error) {
	var out llm.ImageResponse
	err := llm.WithRetry(ctx, 4, func() error {
		resp, err := c.sdk.CreateImage(ctx, openai.ImageRequest{
			Prompt:         req.Prompt,
			Model:          c.modelName,
			N:              1,
			Size:           imageSize(req.AspectRatio),
			ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		})
		if err != nil {
			return mapOpenAIError(err)
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("openai: image response contained no data")
		}
		data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
		if err != nil {
			return fmt.Errorf("openai: decode image: %w", err)
		}
		out = llm.ImageResponse{MIMEType: "image/png", Data: data}
		return nil
	})
	return out, err
}

// imageSize maps an aspect ratio to the closest size the image endpoint
// accepts.
func imageSize(aspect string) string {
	switch aspect {
	case "16:9", "4:3":
		return openai.CreateImageSize1792x1024
	case "9:16", "3:4":
		return openai.CreateImageSize1024x1792
	default:
		return openai.CreateImageSize1024x1024
	}
}

// ─── message conversion ───────────────────────────────────────────────────────

// buildMessages converts unified messages to OpenAI's chat completion format.
// User messages carrying images are sent as multi-part content.
func buildMessages(msgs []llm.Message, system string) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage

	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			// Handled above via req.System; skip any inline system messages.
			continue

		case llm.RoleUser:
			if !hasImages(m.Content) {
				out = append(out, openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleUser,
					Content: concatText(m.Content),
				})
				continue
			}
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
			for _, b := range m.Content {
				switch b.Type {
				case llm.ContentTypeText:
					msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
						Type: openai.ChatMessagePartTypeText,
						Text: b.Text,
					})
				case llm.ContentTypeImage:
					if b.Image == nil {
						continue
					}
					msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL(b.Image)},
					})
				}
			}
			out = append(out, msg)

		case llm.RoleAssistant:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: concatText(m.Content),
			})
		}
	}
	return out
}

func dataURL(img *llm.ImageData) string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// convertOpenAIResponse maps an OpenAI response to the unified GenerateResponse.
func convertOpenAIResponse(resp openai.ChatCompletionResponse) llm.GenerateResponse {
	var blocks []llm.ContentBlock
	stop := llm.StopReasonEndTurn
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		if choice.Message.Content != "" {
			blocks = append(blocks, llm.ContentBlock{
				Type: llm.ContentTypeText,
				Text: choice.Message.Content,
			})
		}
		if choice.FinishReason == openai.FinishReasonLength {
			stop = llm.StopReasonMaxTokens
		}
	}

	return llm.GenerateResponse{
		Content:    blocks,
		StopReason: stop,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
}

// ─── error mapping ────────────────────────────────────────────────────────────

func mapOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		base := llm.LLMError{
			Code:    apiErr.HTTPStatusCode,
			Message: apiErr.Message,
			Cause:   err,
		}
		switch apiErr.HTTPStatusCode {
		case 429:
			return &llm.RateLimitError{LLMError: base}
		case 401, 403:
			return &llm.AuthError{LLMError: base}
		case 400:
			if apiErr.Code == "content_policy_violation" {
				return &llm.ContentFilterError{LLMError: base}
			}
			return &llm.ContextLengthError{LLMError: base}
		case 500, 502, 503:
			return &llm.ServerError{LLMError: base}
		default:
			return &base
		}
	}
	return fmt.Errorf("openai: %w", err)
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func hasImages(blocks []llm.ContentBlock) bool {
	for _, b := range blocks {
		if b.Type == llm.ContentTypeImage {
			return true
		}
	}
	return false
}

func concatText(blocks []llm.ContentBlock) string {
	var s string
	for _, b := range blocks {
		if b.Type == llm.ContentTypeText {
			s += b.Text
		}
	}
	return s
}
