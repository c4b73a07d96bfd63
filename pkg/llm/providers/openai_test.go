package providers

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ravi-parthasarathy/artiffex/pkg/llm"
)

// ─── TestBuildMessages ────────────────────────────────────────────────────────

func TestBuildMessages_UserText(t *testing.T) {
	msgs := []llm.Message{
		llm.TextMessage(llm.RoleUser, "hello"),
	}
	out := buildMessages(msgs, "")
	if len(out) != 1 {
		t.Fatalf("want 1 message, got %d", len(out))
	}
	if out[0].Role != openai.ChatMessageRoleUser {
		t.Errorf("role: want %q, got %q", openai.ChatMessageRoleUser, out[0].Role)
	}
	if out[0].Content != "hello" {
		t.Errorf("content: want %q, got %q", "hello", out[0].Content)
	}
}

func TestBuildMessages_SystemPrepend(t *testing.T) {
	msgs := []llm.Message{
		llm.TextMessage(llm.RoleUser, "hi"),
	}
	out := buildMessages(msgs, "you are helpful")
	if len(out) != 2 {
		t.Fatalf("want 2 messages, got %d", len(out))
	}
	if out[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("first role: want system, got %q", out[0].Role)
	}
	if out[0].Content != "you are helpful" {
		t.Errorf("system content: want %q, got %q", "you are helpful", out[0].Content)
	}
	if out[1].Role != openai.ChatMessageRoleUser {
		t.Errorf("second role: want user, got %q", out[1].Role)
	}
}

func TestBuildMessages_Image(t *testing.T) {
	msgs := []llm.Message{
		llm.ImageMessage("image/jpeg", []byte("jpg"), "what is this?"),
	}
	out := buildMessages(msgs, "")
	if len(out) != 1 {
		t.Fatalf("want 1 message, got %d", len(out))
	}
	msg := out[0]
	if msg.Content != "" {
		t.Errorf("Content should be empty for multi-part messages, got %q", msg.Content)
	}
	if len(msg.MultiContent) != 2 {
		t.Fatalf("want 2 parts, got %d", len(msg.MultiContent))
	}
	img := msg.MultiContent[0]
	if img.Type != openai.ChatMessagePartTypeImageURL || img.ImageURL == nil {
		t.Fatalf("first part = %+v, want image_url", img)
	}
	if img.ImageURL.URL != "data:image/jpeg;base64,anBn" {
		t.Errorf("url = %q", img.ImageURL.URL)
	}
	if msg.MultiContent[1].Text != "what is this?" {
		t.Errorf("second part = %+v", msg.MultiContent[1])
	}
}

func TestBuildMessages_Assistant(t *testing.T) {
	msgs := []llm.Message{
		llm.TextMessage(llm.RoleUser, "a"),
		llm.TextMessage(llm.RoleAssistant, "b"),
	}
	out := buildMessages(msgs, "")
	if len(out) != 2 || out[1].Role != openai.ChatMessageRoleAssistant || out[1].Content != "b" {
		t.Errorf("messages = %+v", out)
	}
}

// ─── TestConvertOpenAIResponse ────────────────────────────────────────────────

func makeTextResponse(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{
				Message:      openai.ChatCompletionMessage{Content: text},
				FinishReason: openai.FinishReasonStop,
			},
		},
		Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 5},
	}
}

func TestConvertOpenAIResponse_TextOnly(t *testing.T) {
	got := convertOpenAIResponse(makeTextResponse("hello world"))
	if len(got.Content) != 1 {
		t.Fatalf("want 1 content block, got %d", len(got.Content))
	}
	if got.Content[0].Text != "hello world" {
		t.Errorf("text: want %q, got %q", "hello world", got.Content[0].Text)
	}
	if got.StopReason != llm.StopReasonEndTurn {
		t.Errorf("stop reason: want end_turn, got %q", got.StopReason)
	}
	if got.Usage.InputTokens != 10 {
		t.Errorf("InputTokens: want 10, got %d", got.Usage.InputTokens)
	}
	if got.Usage.OutputTokens != 5 {
		t.Errorf("OutputTokens: want 5, got %d", got.Usage.OutputTokens)
	}
}

func TestConvertOpenAIResponse_FinishReasonLength(t *testing.T) {
	resp := makeTextResponse("partial")
	resp.Choices[0].FinishReason = openai.FinishReasonLength
	got := convertOpenAIResponse(resp)
	if got.StopReason != llm.StopReasonMaxTokens {
		t.Errorf("stop reason: want max_tokens, got %q", got.StopReason)
	}
}

func TestImageSize(t *testing.T) {
	tests := map[string]string{
		"1:1":  openai.CreateImageSize1024x1024,
		"16:9": openai.CreateImageSize1792x1024,
		"4:3":  openai.CreateImageSize1792x1024,
		"9:16": openai.CreateImageSize1024x1792,
		"3:4":  openai.CreateImageSize1024x1792,
		"":     openai.CreateImageSize1024x1024,
	}
	for aspect, want := range tests {
		if got := imageSize(aspect); got != want {
			t.Errorf("imageSize(%q) = %q, want %q", aspect, got, want)
		}
	}
}

// ─── TestMapOpenAIError ───────────────────────────────────────────────────────

func makeAPIError(code int) error {
	return &openai.APIError{
		HTTPStatusCode: code,
		Message:        "test error",
	}
}

func TestMapOpenAIError_RateLimit(t *testing.T) {
	err := mapOpenAIError(makeAPIError(429))
	var rl *llm.RateLimitError
	if !errors.As(err, &rl) {
		t.Errorf("want *llm.RateLimitError, got %T", err)
	}
	if !llm.Retryable(err) {
		t.Error("RateLimitError should be retryable")
	}
}

func TestMapOpenAIError_Auth(t *testing.T) {
	for _, code := range []int{401, 403} {
		err := mapOpenAIError(makeAPIError(code))
		var ae *llm.AuthError
		if !errors.As(err, &ae) {
			t.Errorf("code %d: want *llm.AuthError, got %T", code, err)
		}
		if llm.Retryable(err) {
			t.Errorf("code %d: AuthError should not be retryable", code)
		}
	}
}

func TestMapOpenAIError_ContentPolicy(t *testing.T) {
	err := mapOpenAIError(&openai.APIError{
		HTTPStatusCode: 400,
		Code:           "content_policy_violation",
		Message:        "rejected",
	})
	var cf *llm.ContentFilterError
	if !errors.As(err, &cf) {
		t.Errorf("want *llm.ContentFilterError, got %T", err)
	}
}

func TestMapOpenAIError_Server(t *testing.T) {
	for _, code := range []int{500, 502, 503} {
		err := mapOpenAIError(makeAPIError(code))
		var se *llm.ServerError
		if !errors.As(err, &se) {
			t.Errorf("code %d: want *llm.ServerError, got %T", code, err)
		}
		if !llm.Retryable(err) {
			t.Errorf("code %d: ServerError should be retryable", code)
		}
	}
}

func TestMapOpenAIError_Nil(t *testing.T) {
	if err := mapOpenAIError(nil); err != nil {
		t.Errorf("want nil, got %v", err)
	}
}

// ─── Integration test (skipped without OPENAI_API_KEY) ───────────────────────

func TestOpenAIIntegration(t *testing.T) {
	if os.Getenv("OPENAI_API_KEY") == "" || os.Getenv("ARTIFFEX_INTEGRATION") == "" {
		t.Skip("set OPENAI_API_KEY and ARTIFFEX_INTEGRATION to run OpenAI integration test")
	}

	client, err := newOpenAIClient("gpt-4o-mini")
	if err != nil {
		t.Skipf("skipping: %v", err)
	}
	ctx := context.Background()

	resp, err := client.Complete(ctx, llm.GenerateRequest{
		Messages: []llm.Message{
			llm.TextMessage(llm.RoleUser, "Describe a red fox in exactly three words."),
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if strings.TrimSpace(resp.Text()) == "" {
		t.Fatal("expected non-empty response text")
	}
}
