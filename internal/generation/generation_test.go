package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/theirongolddev/qaid/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

const okBody = `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gemini-2.0-flash-lite",
"choices":[{"index":0,"message":{"role":"assistant","content":"{\"testCases\":[]}"},"finish_reason":"stop"}],
"usage":{"prompt_tokens":400,"completion_tokens":800,"total_tokens":1200}}`

func TestOpenAIClientGenerate(t *testing.T) {
	var seen map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okBody))
	}))
	t.Cleanup(srv.Close)

	c := NewOpenAIClient("gemini", srv.URL+"/v1/", "gemini-2.0-flash-lite", "secret")
	resp, err := c.Generate(context.Background(), Request{
		Prompt:      "generate",
		System:      "you are a QA engineer",
		Temperature: 0.7,
		MaxTokens:   2048,
		Type:        TypeTestCases,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"testCases":[]}`, resp.Text)
	assert.Equal(t, int64(1200), resp.TokensUsed)
	assert.Equal(t, "gemini", resp.Provider)
	assert.Equal(t, "gemini-2.0-flash-lite", resp.Model)

	assert.Equal(t, "gemini-2.0-flash-lite", seen["model"])
	msgs, ok := seen["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestOpenAIClientErrorClassification(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		kind    error
		userMsg string
	}{
		{"unauthorized", 401, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, ErrConnection, MsgAPIKey},
		{"quota", 429, `{"error":{"message":"Resource exhausted","type":"rate_limit_exceeded"}}`, ErrQuotaExceeded, MsgQuota},
		{"server", 503, `{"error":{"message":"overloaded","type":"server_error"}}`, ErrConnection, MsgConnection},
		{"no choices", 200, `{"id":"x","object":"chat.completion","choices":[],"usage":{"total_tokens":3}}`, ErrGenerationFailed, MsgUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := chatServer(t, tc.status, tc.body)
			c := NewOpenAIClient("gemini", srv.URL+"/v1", "gemini-2.0-flash-lite", "k")

			_, err := c.Generate(context.Background(), Request{Prompt: "p"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.kind)
			assert.Equal(t, tc.userMsg, UserMessage(err))
		})
	}
}

func TestOpenAIClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewOpenAIClient("local", url+"/v1", "local-model", "k", WithTimeout(2*time.Second))
	err := c.CheckConnection(context.Background())
	require.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, MsgConnection, UserMessage(err))
}

type flakyGenerator struct {
	calls    int
	failures int
	err      error
}

func (f *flakyGenerator) Generate(context.Context, Request) (Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return Response{}, f.err
	}
	return Response{Text: "ok", TokensUsed: 10}, nil
}

func (f *flakyGenerator) CheckConnection(context.Context) error {
	_, err := f.Generate(context.Background(), Request{})
	return err
}

func (f *flakyGenerator) Provider() string { return "fake" }
func (f *flakyGenerator) Model() string    { return "fake-1" }

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestWithRetryRetriesQuotaErrors(t *testing.T) {
	fake := &flakyGenerator{failures: 2, err: NewError(ErrQuotaExceeded, "fake", "generate", "", nil)}
	g := WithRetry(fake, fastPolicy(3))

	resp, err := g.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 3, fake.calls)
	assert.Equal(t, "fake", g.Provider())
}

func TestWithRetryGivesUp(t *testing.T) {
	fake := &flakyGenerator{failures: 10, err: NewError(ErrConnection, "fake", "generate", "network error", nil)}
	g := WithRetry(fake, fastPolicy(3))

	err := g.CheckConnection(context.Background())
	require.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, 3, fake.calls)
}

func TestWithRetrySkipsPermanentErrors(t *testing.T) {
	for _, err := range []error{
		NewError(ErrGenerationFailed, "fake", "generate", "", nil),
		&Error{Kind: ErrConnection, Message: "invalid api key", StatusCode: 401},
		errors.New("plain"),
	} {
		fake := &flakyGenerator{failures: 10, err: err}
		_, got := WithRetry(fake, fastPolicy(5)).Generate(context.Background(), Request{})
		require.Error(t, got)
		assert.Equal(t, 1, fake.calls, "error %v should not be retried", err)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	fake := &flakyGenerator{failures: 10, err: NewError(ErrConnection, "fake", "generate", "", nil)}
	policy := RetryPolicy{MaxAttempts: 5, InitialDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := WithRetry(fake, policy).Generate(ctx, Request{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, fake.calls)
}

func TestUserMessage(t *testing.T) {
	cases := map[string]string{
		"API key not valid":            MsgAPIKey,
		"dial tcp: connection refused": MsgConnection,
		"network unreachable":          MsgConnection,
		"quota exhausted":              MsgQuota,
		"rate limit":                   MsgQuota,
		"prompt must not be empty":     MsgNeedContent,
		"content is required":          MsgNeedContent,
		"something odd":                MsgUnavailable,
	}
	for in, want := range cases {
		assert.Equal(t, want, UserMessage(errors.New(in)), in)
	}
	assert.Empty(t, UserMessage(nil))
}

func TestUserMessageIgnoresOperationName(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{NewError(ErrQuotaExceeded, "gemini", "check_connection", "rate or usage limit reached", nil), MsgQuota},
		{NewError(ErrProviderMisconfigured, "gemini", "check_connection", "model or endpoint not found", nil), MsgUnavailable},
		{NewError(ErrGenerationFailed, "gemini", "check_connection", "request rejected", nil), MsgUnavailable},
		{NewError(ErrConnection, "gemini", "check_connection", "invalid api key", nil), MsgAPIKey},
		{NewError(ErrConnection, "gemini", "check_connection", "network error", nil), MsgConnection},
		{NewError(ErrGenerationFailed, "gemini", "generate", "", errors.New("quota exhausted")), MsgQuota},
		{NewError(ErrValidation, "", "generate_test_cases", "document content is required", nil), MsgNeedContent},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, UserMessage(tc.err), tc.err.Error())
		wrapped := fmt.Errorf("initialize: %w", tc.err)
		assert.Equal(t, tc.want, UserMessage(wrapped), "wrapped %v", tc.err)
	}

	quota := NewError(ErrQuotaExceeded, "gemini", "generate", "rate or usage limit reached", nil)
	initQuota := NewError(ErrQuotaExceeded, "gemini", "check_connection", "rate or usage limit reached", nil)
	assert.Equal(t, UserMessage(quota), UserMessage(initQuota))
}

func TestFactory(t *testing.T) {
	t.Setenv("QAID_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "from-env")

	cfg := config.DefaultConfig()
	factory := NewFactory(cfg)

	_, err := factory("gemini")
	require.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, MsgAPIKey, UserMessage(err))

	_, err = factory("acme")
	require.ErrorIs(t, err, ErrProviderMisconfigured)

	g, err := factory("OpenAI")
	require.NoError(t, err)
	assert.Equal(t, "openai", g.Provider())
	assert.Equal(t, "gpt-4o-mini", g.Model())

	local, err := factory("local")
	require.NoError(t, err)
	assert.Equal(t, "local", local.Provider())
}
