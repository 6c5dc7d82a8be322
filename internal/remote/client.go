// Package remote builds clients for the OpenAI-compatible speech and chat
// APIs and runs calls against them with retry and circuit breaking.
package remote

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	apperrors "github.com/GriffinCanCode/cliprelay/internal/errors"
	"github.com/GriffinCanCode/cliprelay/internal/resilience"
	"github.com/GriffinCanCode/cliprelay/internal/trace"
)

// Endpoints of the hosted APIs.
const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	OpenAIBaseURL = "https://api.openai.com/v1"
)

// DefaultTimeout bounds a single request, uploads included.
const DefaultTimeout = 60 * time.Second

// Config describes one API endpoint.
type Config struct {
	Name    string // for logs, metrics and errors
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// NewClient returns a client for cfg. Retries are disabled in the SDK and
// handled by Caller so that breaker accounting sees every attempt.
func NewClient(cfg Config) (openai.Client, error) {
	if cfg.APIKey == "" {
		return openai.Client{}, apperrors.Newf(apperrors.CodeConfigMissing, "%s: API key is not set", cfg.Name)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return openai.NewClient(opts...), nil
}

// IsRetryable reports whether a failed API call is worth repeating:
// timeouts, conflicts, rate limits, server errors and transport failures.
func IsRetryable(err error) bool {
	if err == nil || stderrors.Is(err, context.Canceled) || stderrors.Is(err, resilience.ErrOpen) {
		return false
	}
	var apiErr *openai.Error
	if stderrors.As(err, &apiErr) {
		switch code := apiErr.StatusCode; {
		case code == http.StatusRequestTimeout, code == http.StatusConflict, code == http.StatusTooManyRequests:
			return true
		default:
			return code >= http.StatusInternalServerError
		}
	}
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		return apperrors.IsRetryable(err)
	}
	return true
}

// StatusCode returns the HTTP status of a failed API call, or 0.
func StatusCode(err error) int {
	var apiErr *openai.Error
	if stderrors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// RequestOptions returns per-request options carrying ctx's trace ids.
func RequestOptions(ctx context.Context) []option.RequestOption {
	headers := trace.Headers(ctx)
	opts := make([]option.RequestOption, 0, len(headers))
	for k, v := range headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	return opts
}

// Caller guards calls to one endpoint with a breaker and retries.
type Caller struct {
	name    string
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

// NewCaller creates a caller with the remote defaults for breaker and retry.
func NewCaller(name string) *Caller {
	return &Caller{
		name:    name,
		breaker: resilience.New(resilience.RemoteConfig(name)),
		retry:   resilience.RemoteRetryConfig(IsRetryable),
	}
}

// WithRetry replaces the retry settings. The classifier is kept when cfg
// has none.
func (c *Caller) WithRetry(cfg resilience.RetryConfig) *Caller {
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = IsRetryable
	}
	c.retry = cfg
	return c
}

// Breaker exposes the caller's breaker, e.g. to attach a metrics hook.
func (c *Caller) Breaker() *resilience.Breaker { return c.breaker }

// Do runs fn under c's breaker, retrying retryable failures. A final
// failure is wrapped with code and carries the endpoint name and, when
// known, the HTTP status.
func Do[T any](ctx context.Context, c *Caller, code apperrors.Code, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := resilience.Retry(ctx, c.retry, func() error {
		v, err := resilience.ExecuteWithResult(c.breaker, func() (T, error) { return fn(ctx) })
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil || stderrors.Is(err, resilience.ErrOpen) {
		return out, err
	}
	wrapped := apperrors.Wrap(err, code, c.name+" request failed").WithMetadata("endpoint", c.name)
	if status := StatusCode(err); status != 0 {
		wrapped.WithMetadata("status", strconv.Itoa(status))
	}
	return out, wrapped
}
