package driven

import "context"

// LLMClient is the resilient local-model client used for section rewrites.
//
// Implementations wrap the backend with a circuit breaker and bounded
// exponential-backoff retry; callers never retry themselves.
type LLMClient interface {
	// Complete returns the full response after the model finishes.
	Complete(ctx context.Context, system, user string) (*CompletionResponse, error)

	// StreamComplete streams completion tokens, invoking onToken for each.
	// The stream is finite and not restartable: once a token has been
	// delivered, a failure is returned as-is and a fresh call must be
	// issued to retry.
	StreamComplete(ctx context.Context, system, user string, onToken func(token string)) error

	// HealthCheck verifies the backend is reachable, the configured model
	// is installed, and a trivial one-token completion succeeds.
	HealthCheck(ctx context.Context) error

	// ModelName returns the configured model identifier.
	ModelName() string
}

// CompletionResponse is the result of a blocking completion.
type CompletionResponse struct {
	// Content is the raw model output.
	Content string

	// Model is the backend's reported model name.
	Model string

	// PromptTokens and CompletionTokens are the backend's eval counts,
	// zero when the backend does not report them.
	PromptTokens     int
	CompletionTokens int
}
