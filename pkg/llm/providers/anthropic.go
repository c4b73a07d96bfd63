// Package providers registers LLM provider adapters.
// Import this package with a blank identifier to activate all providers:
//
//	import _ "github.com/ravi-parthasarathy/artiffex/pkg/llm/providers"
package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ravi-parthasarathy/artiffex/pkg/llm"
)

func init() {
	llm.RegisterProvider("anthropic", func(modelName string) (llm.Client, error) {
		return newAnthropicClient(modelName)
	})
}

type anthropicClient struct {
	sdk       anthropicsdk.Client
	modelName string
}

func newAnthropicClient(modelName string) (*anthropicClient, error) {
	sdk := anthropicsdk.NewClient(option.WithAPIKey("")) // reads ANTHROPIC_API_KEY automatically
	return &anthropicClient{sdk: sdk, modelName: modelName}, nil
}

// Complete performs a blocking generation with automatic retry on transient errors.
func (a *anthropicClient) Complete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	var resp llm.GenerateResponse
	err := llm.WithRetry(ctx, 4, func() error {
		var innerErr error
		resp, innerErr = a.doComplete(ctx, req)
		return innerErr
	})
	return resp, err
}

func (a *anthropicClient) doComplete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	maxTokens := int64(4096)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(a.modelName),
		MaxTokens: maxTokens,
		Messages:  buildAnthropicMessages(req.Messages),
	}
	system := req.System
	if req.JSON {
		system += "\nRespond with a single JSON object and nothing else."
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}

	msg, err := a.sdk.Messages.New(ctx, params)
	if err != nil {
		return llm.GenerateResponse{}, mapError(err)
	}
	return convertResponse(msg), nil
}

// buildAnthropicMessages converts unified messages, skipping the system role
// (sent via the System param).
func buildAnthropicMessages(in []llm.Message) []anthropicsdk.MessageParam {
	msgs := make([]anthropicsdk.MessageParam, 0, len(in))
	for _, m := range in {
		if m.Role == llm.RoleSystem {
			continue
		}
		blocks := make([]anthropicsdk.ContentBlockParamUnion, 0, len(m.Content))
		for _, b := range m.Content {
			switch b.Type {
			case llm.ContentTypeText:
				blocks = append(blocks, anthropicsdk.NewTextBlock(b.Text))
			case llm.ContentTypeImage:
				if b.Image != nil {
					blocks = append(blocks, anthropicsdk.NewImageBlockBase64(
						b.Image.MIMEType,
						base64.StdEncoding.EncodeToString(b.Image.Data),
					))
				}
			}
		}
		switch m.Role {
		case llm.RoleUser:
			msgs = append(msgs, anthropicsdk.NewUserMessage(blocks...))
		case llm.RoleAssistant:
			msgs = append(msgs, anthropicsdk.NewAssistantMessage(blocks...))
		}
	}
	return msgs
}

func convertResponse(msg *anthropicsdk.Message) llm.GenerateResponse {
	blocks := make([]llm.ContentBlock, 0, len(msg.Content))
	for _, b := range msg.Content {
		if b.Type == "text" {
			blocks = append(blocks, llm.ContentBlock{
				Type: llm.ContentTypeText,
				Text: b.Text,
			})
		}
	}

	stop := llm.StopReasonEndTurn
	if msg.StopReason == anthropicsdk.StopReasonMaxTokens {
		stop = llm.StopReasonMaxTokens
	}

	return llm.GenerateResponse{
		Content:    blocks,
		StopReason: stop,
		Usage: llm.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		base := llm.LLMError{Code: apiErr.StatusCode, Message: apiErr.Error(), Cause: err}
		switch apiErr.StatusCode {
		case 429:
			return &llm.RateLimitError{LLMError: base}
		case 401, 403:
			return &llm.AuthError{LLMError: base}
		case 400:
			return &llm.ContextLengthError{LLMError: base}
		case 500, 502, 503, 529:
			return &llm.ServerError{LLMError: base}
		}
	}
	return fmt.Errorf("anthropic: %w", err)
}
