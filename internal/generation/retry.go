package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds how often a failed call is repeated. Only retryable
// errors (connection and quota) are retried.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy returns three attempts with exponential backoff from one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done.
func (p RetryPolicy) Do(ctx context.Context, logger zerolog.Logger, op string, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	delay := p.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == attempts {
			break
		}

		logger.Warn().Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("retrying generation call")

		select {
		case <-time.After(delay):
			delay = p.next(delay)
		case <-ctx.Done():
			return NewError(ErrGenerationFailed, "", op, "request canceled", ctx.Err())
		}
	}

	if attempts > 1 && IsRetryable(lastErr) {
		return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
	}
	return lastErr
}

func (p RetryPolicy) next(d time.Duration) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d = time.Duration(float64(d) * mult)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// retrying decorates a Generator with a RetryPolicy.
type retrying struct {
	Generator
	policy RetryPolicy
	logger zerolog.Logger
}

// WithRetry wraps g so that Generate and CheckConnection follow policy.
func WithRetry(g Generator, policy RetryPolicy) Generator {
	return &retrying{
		Generator: g,
		policy:    policy,
		logger:    log.Logger.With().Str("provider", g.Provider()).Str("model", g.Model()).Logger(),
	}
}

func (r *retrying) Generate(ctx context.Context, req Request) (Response, error) {
	var resp Response
	err := r.policy.Do(ctx, r.logger, "generate", func(ctx context.Context) error {
		var err error
		resp, err = r.Generator.Generate(ctx, req)
		return err
	})
	return resp, err
}

func (r *retrying) CheckConnection(ctx context.Context) error {
	return r.policy.Do(ctx, r.logger, "check_connection", r.Generator.CheckConnection)
}
