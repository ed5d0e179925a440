package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIBackend calls a Chat Completions API: OpenAI itself or any compatible endpoint such as Groq.
type OpenAIBackend struct {
	model  openai.ChatModel
	client *openai.Client
}

const (
	defaultChatTimeout = 120 * time.Second

	// GroqBaseURL is Groq's OpenAI compatible endpoint.
	GroqBaseURL = "https://api.groq.com/openai/v1"
)

// NewOpenAIBackend builds a backend against baseURL, or api.openai.com when baseURL is empty.
// SDK retries are disabled; SummaryClient owns the retry policy.
func NewOpenAIBackend(apiKey, baseURL string, model openai.ChatModel) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	cli := openai.NewClient(opts...)
	return &OpenAIBackend{
		model:  model,
		client: &cli,
	}, nil
}

func (b *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	if b == nil || b.client == nil {
		return "", fmt.Errorf("nil openai client")
	}
	reqCtx, cancel := context.WithTimeout(ctx, defaultChatTimeout)
	defer cancel()

	resp, err := b.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
		Model: b.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(prompt),
					},
				},
			},
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrNoContent
	}
	return resp.Choices[0].Message.Content, nil
}
