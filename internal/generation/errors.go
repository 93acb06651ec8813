package generation

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by this package wraps exactly one.
var (
	ErrConnection            = errors.New("connection error")
	ErrQuotaExceeded         = errors.New("quota exceeded")
	ErrProviderMisconfigured = errors.New("provider misconfigured")
	ErrGenerationFailed      = errors.New("generation failed")
	ErrValidation            = errors.New("validation error")
)

// Error is a classified generation failure.
type Error struct {
	Kind       error  // one of the Err* kinds
	Provider   string // provider that produced the error, if any
	Op         string // operation, e.g. "generate" or "check_connection"
	Message    string
	StatusCode int // HTTP status from the provider, 0 if none
	Err        error
}

// NewError builds an Error of the given kind.
func NewError(kind error, provider, op, message string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, Op: op, Message: message, Err: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Provider != "" {
			b.WriteString(" [" + e.Provider + "]")
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, " (caused by: %v)", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retryable reports whether the same request may succeed if repeated.
// Rejected credentials never do.
func (e *Error) Retryable() bool {
	if e.StatusCode == 401 || e.StatusCode == 403 {
		return false
	}
	return e.Kind == ErrConnection || e.Kind == ErrQuotaExceeded
}

// UserMessage is the user-facing text for this error.
func (e *Error) UserMessage() string {
	return UserMessage(e)
}

// User-facing messages. Raw provider errors are never shown to users.
const (
	MsgAPIKey      = "The AI service requires an API key. Run `qaid setup` or set the provider's API key variable."
	MsgConnection  = "Unable to connect to the AI service. Check your network connection and try again."
	MsgQuota       = "AI service quota exceeded. Please try again later."
	MsgNeedContent = "Please provide content to generate from."
	MsgUnavailable = "The AI service is temporarily unavailable. Please try again later."
)

// UserMessage maps any error to one of the fixed user-facing messages.
// A classified *Error is mapped by its kind, except that a mention of an
// API key in its message or cause always wins. Other errors, and kinds
// with no message of their own, fall back to substring matching on the
// error text. The operation name never takes part in the match.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ge *Error
	if !errors.As(err, &ge) {
		return messageForText(err.Error())
	}

	text := ge.Message
	if ge.Err != nil {
		text += " " + ge.Err.Error()
	}
	if strings.Contains(strings.ToLower(text), "api key") {
		return MsgAPIKey
	}
	switch ge.Kind {
	case ErrConnection:
		return MsgConnection
	case ErrQuotaExceeded:
		return MsgQuota
	case ErrValidation:
		return MsgNeedContent
	case ErrProviderMisconfigured:
		return MsgUnavailable
	}
	return messageForText(text)
}

func messageForText(text string) string {
	msg := strings.ToLower(text)
	switch {
	case strings.Contains(msg, "api key"):
		return MsgAPIKey
	case strings.Contains(msg, "connection"), strings.Contains(msg, "network"):
		return MsgConnection
	case strings.Contains(msg, "quota"), strings.Contains(msg, "limit"):
		return MsgQuota
	case strings.Contains(msg, "empty"), strings.Contains(msg, "required"):
		return MsgNeedContent
	default:
		return MsgUnavailable
	}
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Retryable()
	}
	return false
}
