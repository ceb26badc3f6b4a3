package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hyperengineering/ledgersync/internal/types"
)

// Compile-time interface check
var _ Categorizer = (*OpenAI)(nil)

// ChatService defines the interface for making chat completion API calls.
// This abstraction enables testing without calling the real OpenAI API.
type ChatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI implements the categorization service using OpenAI's API
type OpenAI struct {
	chat  ChatService
	model openai.ChatModel
}

// NewOpenAI creates a new OpenAI categorization service
func NewOpenAI(apiKey, model string) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		chat:  client.Chat.Completions,
		model: openai.ChatModel(model),
	}
}

const systemPrompt = "You are a financial transaction categorizer. " +
	"Reply with exactly one category name from the provided list, nothing else."

// Categorize asks the model for one category from the closed taxonomy.
func (o *OpenAI) Categorize(ctx context.Context, txn types.Transaction) (string, error) {
	prompt := fmt.Sprintf("Categories: %s\n\nTransaction: %q, amount %.2f %s, date %s",
		strings.Join(Categories, ", "), txn.Name, txn.Amount, txn.ISOCurrencyCode, txn.Date)

	resp, err := o.chat.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		}),
		Model: openai.F(o.model),
	})
	if err != nil {
		return "", fmt.Errorf("categorization failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("categorization failed: no choices returned")
	}

	category := strings.ToUpper(strings.TrimSpace(resp.Choices[0].Message.Content))
	for _, known := range Categories {
		if category == known {
			return category, nil
		}
	}
	return "", fmt.Errorf("categorization failed: model returned unknown category %q", category)
}

// ModelName returns the chat model name
func (o *OpenAI) ModelName() string {
	return string(o.model)
}
