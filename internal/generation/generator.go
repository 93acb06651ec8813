// Package generation talks to OpenAI-compatible language model backends.
package generation

import (
	"context"
	"time"
)

// Request types, used for logging and usage records.
const (
	TypeTestCases       = "test_cases"
	TypeBugReport       = "bug_report"
	TypeConnectionCheck = "connection_check"
)

// Request is one prompt sent to a backend.
type Request struct {
	Prompt      string
	System      string
	Temperature float32
	MaxTokens   int
	Type        string
}

// Response is a backend's reply.
type Response struct {
	Text         string
	TokensUsed   int64
	ResponseTime time.Duration
	Provider     string
	Model        string
}

// Generator is a language model backend. Implementations return *Error.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
	CheckConnection(ctx context.Context) error
	Provider() string
	Model() string
}

// Factory builds a Generator for a named provider.
type Factory func(provider string) (Generator, error)
