package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ravi-parthasarathy/artiffex/pkg/llm"
)

func init() {
	llm.RegisterProvider("gemini", func(modelName string) (llm.Client, error) {
		return newGeminiClient(modelName)
	})
}

type geminiClient struct {
	sdk       *genai.Client
	modelName string
}

func newGeminiClient(modelName string) (*geminiClient, error) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		key = os.Getenv("API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("gemini: GEMINI_API_KEY environment variable not set")
	}
	// genai.NewClient requires a context; use Background for construction.
	sdk, err := genai.NewClient(context.Background(), option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &geminiClient{sdk: sdk, modelName: modelName}, nil
}

// Complete performs a blocking generation with automatic retry on transient errors.
func (c *geminiClient) Complete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	var resp llm.GenerateResponse
	err := llm.WithRetry(ctx, 4, func() error {
		var innerErr error
		resp, innerErr = c.doComplete(ctx, req)
		return innerErr
	})
	return resp, err
}

func (c *geminiClient) doComplete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	model := c.sdk.GenerativeModel(c.modelName)

	if req.MaxTokens > 0 {
		n := int32(req.MaxTokens)
		model.MaxOutputTokens = &n
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	// System prompt goes to SystemInstruction, not the message history.
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	// Split history (all messages except last) from the final user message.
	history, lastContent := buildContents(req.Messages)
	if lastContent == nil {
		return llm.GenerateResponse{}, fmt.Errorf("gemini: no user message to send")
	}

	cs := model.StartChat()
	cs.History = history

	apiResp, err := cs.SendMessage(ctx, lastContent.Parts...)
	if err != nil {
		return llm.GenerateResponse{}, mapGeminiError(err)
	}
	return convertGeminiResponse(apiResp), nil
}

// ─── message translation ─────────────────────────────────────────────────────

// buildContents translates unified messages into Gemini's format.
// History contains all messages except the last one; the last message is
// returned separately for use with cs.SendMessage().
func buildContents(msgs []llm.Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	for _, m := range msgs {
		var role string
		switch m.Role {
		case llm.RoleUser:
			role = "user"
		case llm.RoleAssistant:
			role = "model"
		default:
			continue // system is handled via model.SystemInstruction
		}
		parts := buildParts(m.Content)
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	if len(contents) == 0 {
		return nil, nil
	}
	return contents[:len(contents)-1], contents[len(contents)-1]
}

func buildParts(blocks []llm.ContentBlock) []genai.Part {
	var parts []genai.Part
	for _, b := range blocks {
		switch b.Type {
		case llm.ContentTypeText:
			if b.Text != "" {
				parts = append(parts, genai.Text(b.Text))
			}
		case llm.ContentTypeImage:
			if b.Image != nil {
				parts = append(parts, genai.Blob{MIMEType: b.Image.MIMEType, Data: b.Image.Data})
			}
		}
	}
	return parts
}

// ─── response conversion ─────────────────────────────────────────────────────

func convertGeminiResponse(resp *genai.GenerateContentResponse) llm.GenerateResponse {
	var blocks []llm.ContentBlock
	stopReason := llm.StopReasonEndTurn

	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				switch v := part.(type) {
				case genai.Text:
					if string(v) != "" {
						blocks = append(blocks, llm.ContentBlock{
							Type: llm.ContentTypeText,
							Text: string(v),
						})
					}
				case genai.Blob:
					blocks = append(blocks, llm.ContentBlock{
						Type:  llm.ContentTypeImage,
						Image: &llm.ImageData{MIMEType: v.MIMEType, Data: v.Data},
					})
				}
			}
		}
		if cand.FinishReason == genai.FinishReasonMaxTokens {
			stopReason = llm.StopReasonMaxTokens
		}
	}

	var usage llm.Usage
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return llm.GenerateResponse{
		Content:    blocks,
		StopReason: stopReason,
		Usage:      usage,
	}
}

// ─── error mapping ────────────────────────────────────────────────────────────

func mapGeminiError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		base := llm.LLMError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Cause:   err,
		}
		switch apiErr.Code {
		case 429:
			return &llm.RateLimitError{LLMError: base}
		case 401, 403:
			return &llm.AuthError{LLMError: base}
		case 400:
			return &llm.ContextLengthError{LLMError: base}
		case 500, 502, 503:
			return &llm.ServerError{LLMError: base}
		default:
			return &base
		}
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &llm.ContentFilterError{LLMError: llm.LLMError{Message: blocked.Error(), Cause: err}}
	}
	if strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
		return &llm.RateLimitError{LLMError: llm.LLMError{Code: 429, Message: err.Error(), Cause: err}}
	}
	return fmt.Errorf("gemini: %w", err)
}
