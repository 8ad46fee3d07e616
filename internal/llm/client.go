package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/chateval/backend/pkg/logger"
)

// Client is a thin synchronous gateway to the chat-completion API. Each
// call is one blocking request under an explicit timeout; there is no
// retry and no streaming at this layer. The API key arrives per call
// because credentials belong to the end user, not the deployment.
type Client struct {
	model   string
	timeout time.Duration
}

func NewClient(model string, timeoutSec int) *Client {
	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.Int("timeout_sec", timeoutSec),
	)

	return &Client{
		model:   model,
		timeout: time.Duration(timeoutSec) * time.Second,
	}
}

func (c *Client) Complete(ctx context.Context, apiKey, prompt string, maxTokens int) (string, error) {
	if apiKey == "" {
		return "", &AuthError{Message: "API key is required"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client := openai.NewClient(apiKey)

	resp, err := client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens: maxTokens,
		},
	)

	if err != nil {
		return "", mapError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &UpstreamError{Message: "completion returned no choices"}
	}

	logger.Debug("Completion generated",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

// ValidateKey probes the completion API with a minimal request so a
// credential can be checked before the user commits to a conversation.
func (c *Client) ValidateKey(ctx context.Context, apiKey string) error {
	_, err := c.Complete(ctx, apiKey, "Hi", 10)
	return err
}

func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &AuthError{Message: apiErr.Message}
		case http.StatusTooManyRequests:
			return &RateLimitError{Message: apiErr.Message}
		}
		return &UpstreamError{Message: apiErr.Message, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusUnauthorized {
			return &AuthError{Message: reqErr.Error()}
		}
		return &UpstreamError{Message: reqErr.Error(), Err: err}
	}

	return &UpstreamError{Message: err.Error(), Err: err}
}
