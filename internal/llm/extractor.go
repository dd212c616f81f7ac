package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/parsererror"

	"golang.org/x/time/rate"
)

const defaultRetryBackoff = 2 * time.Second

// ExtractorConfig controls pacing and retries of model calls.
type ExtractorConfig struct {
	Provider          string
	RequestsPerMinute int
	MaxRetries        int
	RetryBackoff      time.Duration
}

// RecordExtractor turns page text into a raw model completion.
// A single instance is shared by all batch workers, so the rate limit is global.
type RecordExtractor struct {
	completer  Completer
	limiter    *rate.Limiter
	provider   string
	maxRetries int
	backoff    time.Duration
	logger     logging.Logger
}

// NewRecordExtractor wraps completer with the configured rate limit and retry policy.
// A zero RequestsPerMinute disables the limiter; a zero MaxRetries makes one attempt.
func NewRecordExtractor(completer Completer, cfg ExtractorConfig, logger logging.Logger) *RecordExtractor {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	e := &RecordExtractor{
		completer:  completer,
		provider:   cfg.Provider,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		logger:     logger,
	}
	if e.backoff <= 0 {
		e.backoff = defaultRetryBackoff
	}
	if e.maxRetries < 0 {
		e.maxRetries = 0
	}
	if cfg.RequestsPerMinute > 0 {
		e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return e
}

// Extract builds the prompt for pageText and returns the model's reply unmodified.
// Failures are reported as *parsererror.RemoteServiceError.
func (e *RecordExtractor) Extract(ctx context.Context, pageText string) (string, error) {
	prompt := BuildPrompt(pageText)

	for attempt := 0; ; attempt++ {
		if err := e.wait(ctx); err != nil {
			return "", err
		}

		completion, err := e.completer.Complete(ctx, prompt)
		if err == nil {
			return completion, nil
		}

		remote := e.asRemote(err)
		if attempt >= e.maxRetries || !remote.Retryable() || ctx.Err() != nil {
			return "", remote
		}

		delay := e.backoff * time.Duration(attempt+1)
		e.logger.WithError(remote).WithFields(
			logging.Field{Key: logging.FieldProvider, Value: remote.Provider},
			logging.Field{Key: "attempt", Value: attempt + 1},
			logging.Field{Key: "retry_in", Value: delay.String()},
		).Warn("Model call failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", &parsererror.RemoteServiceError{Provider: remote.Provider, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

func (e *RecordExtractor) wait(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &parsererror.RemoteServiceError{Provider: e.provider, Err: ctxErr}
		}
		// The limiter refuses to wait past the context deadline.
		return &parsererror.RemoteServiceError{Provider: e.provider, Err: fmt.Errorf("%w: %v", context.DeadlineExceeded, err)}
	}
	return nil
}

func (e *RecordExtractor) asRemote(err error) *parsererror.RemoteServiceError {
	var remote *parsererror.RemoteServiceError
	if errors.As(err, &remote) {
		return remote
	}
	return &parsererror.RemoteServiceError{Provider: e.provider, Err: err}
}
