package generation

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient is a Generator for any OpenAI-compatible chat completions API.
type OpenAIClient struct {
	client   *openai.Client
	provider string
	model    string
	logger   zerolog.Logger
}

// ClientOption configures an OpenAIClient.
type ClientOption func(*clientOptions)

type clientOptions struct {
	timeout time.Duration
	logger  *zerolog.Logger
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.timeout = d }
}

// WithClientLogger sets the logger. The default is the global zerolog logger.
func WithClientLogger(l zerolog.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = &l }
}

// NewOpenAIClient creates a client for provider at baseURL.
func NewOpenAIClient(provider, baseURL, model, apiKey string, opts ...ClientOption) *OpenAIClient {
	o := clientOptions{timeout: 60 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.Logger
	if o.logger != nil {
		logger = *o.logger
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: o.timeout}

	return &OpenAIClient{
		client:   openai.NewClientWithConfig(cfg),
		provider: provider,
		model:    model,
		logger:   logger.With().Str("provider", provider).Str("model", model).Logger(),
	}
}

// Provider returns the provider name.
func (c *OpenAIClient) Provider() string { return c.provider }

// Model returns the model name.
func (c *OpenAIClient) Model() string { return c.model }

// Generate sends one chat completion.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	c.logger.Debug().
		Str("type", req.Type).
		Int("prompt_length", len(req.Prompt)).
		Int("max_tokens", req.MaxTokens).
		Msg("generation request started")

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	elapsed := time.Since(start)
	if err != nil {
		gerr := classify(c.provider, "generate", err)
		c.logger.Debug().Err(gerr).Dur("elapsed", elapsed).Msg("generation request failed")
		return Response{ResponseTime: elapsed, Provider: c.provider, Model: c.model}, gerr
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Response{ResponseTime: elapsed, Provider: c.provider, Model: c.model},
			NewError(ErrGenerationFailed, c.provider, "generate", "model returned no content", nil)
	}

	out := Response{
		Text:         resp.Choices[0].Message.Content,
		TokensUsed:   int64(resp.Usage.TotalTokens),
		ResponseTime: elapsed,
		Provider:     c.provider,
		Model:        c.model,
	}

	c.logger.Debug().
		Str("type", req.Type).
		Int64("tokens", out.TokensUsed).
		Dur("elapsed", elapsed).
		Msg("generation request completed")

	return out, nil
}

// CheckConnection sends a minimal completion to verify credentials and reachability.
func (c *OpenAIClient) CheckConnection(ctx context.Context) error {
	_, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: 5,
	})
	if err != nil {
		return classify(c.provider, "check_connection", err)
	}
	return nil
}

// classify converts a go-openai or transport error into an *Error.
func classify(provider, op string, err error) *Error {
	if errors.Is(err, context.Canceled) {
		return NewError(ErrGenerationFailed, provider, op, "request canceled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrConnection, provider, op, "request timed out", err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	var gerr *Error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		gerr = NewError(ErrConnection, provider, op, "invalid api key", err)
	case status == http.StatusTooManyRequests:
		gerr = NewError(ErrQuotaExceeded, provider, op, "rate or usage limit reached", err)
	case status == http.StatusNotFound:
		gerr = NewError(ErrProviderMisconfigured, provider, op, "model or endpoint not found", err)
	case status >= 500:
		gerr = NewError(ErrConnection, provider, op, "provider returned a server error", err)
	case status >= 400:
		gerr = NewError(ErrGenerationFailed, provider, op, "request rejected", err)
	default:
		var netErr net.Error
		if errors.As(err, &netErr) {
			gerr = NewError(ErrConnection, provider, op, "network error", err)
		} else {
			gerr = NewError(ErrGenerationFailed, provider, op, "", err)
		}
	}
	gerr.StatusCode = status
	return gerr
}
