package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hyperengineering/ledgersync/internal/types"
)

// Compile-time interface check for OpenAI
var _ Categorizer = (*OpenAI)(nil)

// mockChatService implements ChatService for testing
type mockChatService struct {
	response *openai.ChatCompletion
	err      error

	callCount int
}

func (m *mockChatService) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	m.callCount++
	return m.response, m.err
}

func chatResponse(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func sampleTxn() types.Transaction {
	return types.Transaction{
		Name:            "WHOLE FOODS MARKET",
		Amount:          42.17,
		ISOCurrencyCode: "USD",
		Date:            "2024-01-05",
	}
}

func TestCategorize_ReturnsKnownCategory(t *testing.T) {
	mock := &mockChatService{response: chatResponse("GROCERIES")}
	client := &OpenAI{chat: mock, model: openai.ChatModelGPT4oMini}

	category, err := client.Categorize(context.Background(), sampleTxn())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if category != "GROCERIES" {
		t.Errorf("expected GROCERIES, got %s", category)
	}
}

func TestCategorize_NormalizesWhitespaceAndCase(t *testing.T) {
	mock := &mockChatService{response: chatResponse("  dining\n")}
	client := &OpenAI{chat: mock, model: openai.ChatModelGPT4oMini}

	category, err := client.Categorize(context.Background(), sampleTxn())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if category != "DINING" {
		t.Errorf("expected DINING, got %s", category)
	}
}

func TestCategorize_RejectsUnknownCategory(t *testing.T) {
	mock := &mockChatService{response: chatResponse("SNACKS AND SUNDRIES")}
	client := &OpenAI{chat: mock, model: openai.ChatModelGPT4oMini}

	_, err := client.Categorize(context.Background(), sampleTxn())
	if err == nil {
		t.Fatal("expected error for off-taxonomy response")
	}
	if !strings.Contains(err.Error(), "unknown category") {
		t.Errorf("error should mention unknown category, got: %v", err)
	}
}

func TestCategorize_WrapsErrorWithContext(t *testing.T) {
	originalErr := errors.New("api error")
	mock := &mockChatService{err: originalErr}
	client := &OpenAI{chat: mock, model: openai.ChatModelGPT4oMini}

	_, err := client.Categorize(context.Background(), sampleTxn())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "categorization failed") {
		t.Errorf("error should contain 'categorization failed', got: %v", err)
	}
	if !errors.Is(err, originalErr) {
		t.Error("error should wrap original error")
	}
}

func TestCategorize_NoChoicesReturned(t *testing.T) {
	mock := &mockChatService{response: &openai.ChatCompletion{}}
	client := &OpenAI{chat: mock, model: openai.ChatModelGPT4oMini}

	_, err := client.Categorize(context.Background(), sampleTxn())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "no choices") {
		t.Errorf("error should mention no choices, got: %v", err)
	}
}

func TestCategorize_RespectsContextCancellation(t *testing.T) {
	mock := &mockChatService{response: chatResponse("GROCERIES")}
	client := &OpenAI{chat: mock, model: openai.ChatModelGPT4oMini}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Categorize(ctx, sampleTxn())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

func TestNoopCategorizer(t *testing.T) {
	category, err := NoopCategorizer{}.Categorize(context.Background(), sampleTxn())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if category != "OTHER" {
		t.Errorf("expected OTHER, got %s", category)
	}
}
