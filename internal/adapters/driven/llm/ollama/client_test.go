package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/fillwise/fillwise/internal/core/domain"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := domain.DefaultConfig()
	cfg.OllamaBaseURL = baseURL
	cfg.OllamaModel = "test-model"
	cfg.MaxRetries = 2
	cfg.BreakerThreshold = 5
	cfg.BreakerTimeout = time.Minute

	c := NewClient(cfg)
	c.sleep = func(time.Duration) {}
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func writeChat(w http.ResponseWriter, content string, done bool) {
	_ = json.NewEncoder(w).Encode(chatResponse{
		Model:           "test-model:latest",
		Message:         chatMessage{Role: "assistant", Content: content},
		Done:            done,
		PromptEvalCount: 12,
		EvalCount:       34,
	})
}

func tagsHandler(models ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		var tags tagsResponse
		for _, m := range models {
			tags.Models = append(tags.Models, struct {
				Model string `json:"model"`
				Name  string `json:"name"`
			}{Model: m})
		}
		_ = json.NewEncoder(w).Encode(tags)
	}
}

func TestCompleteReturnsContentAndCounts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", tagsHandler("test-model"))
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		writeChat(w, "rewritten text", true)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testClient(t, server.URL)
	resp, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "rewritten text", resp.Content)
	assert.Equal(t, "test-model:latest", resp.Model)
	assert.Equal(t, 12, resp.PromptTokens)
	assert.Equal(t, 34, resp.CompletionTokens)
}

func TestCompleteRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", tagsHandler("test-model"))
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		writeChat(w, "eventually fine", true)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testClient(t, server.URL)
	var delays []time.Duration
	c.sleep = func(d time.Duration) { delays = append(delays, d) }

	resp, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "eventually fine", resp.Content)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, delays)
}

func TestCompleteExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", tagsHandler("test-model"))
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testClient(t, server.URL)
	_, err := c.Complete(context.Background(), "sys", "user")
	require.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Equal(t, int32(3), calls.Load()) // initial attempt + 2 retries
}

func TestCompleteFallsBackToV1OnMissingEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", tagsHandler("test-model"))
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req v1Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		_ = json.NewEncoder(w).Encode(v1Response{Choices: []struct {
			Message chatMessage `json:"message"`
		}{{Message: chatMessage{Role: "assistant", Content: "from v1"}}}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testClient(t, server.URL)
	resp, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "from v1", resp.Content)
}

func TestStreamCompleteDeliversTokensInOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", tagsHandler("test-model"))
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		writeChat(w, "The ", false)
		writeChat(w, "tenant ", false)
		writeChat(w, "pays.", false)
		writeChat(w, "", true)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testClient(t, server.URL)
	var tokens []string
	err := c.StreamComplete(context.Background(), "sys", "user", func(tok string) {
		tokens = append(tokens, tok)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"The ", "tenant ", "pays."}, tokens)
}

func TestStreamCompleteDoesNotRetryAfterFirstToken(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", tagsHandler("test-model"))
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeChat(w, "partial ", false)
		_, _ = w.Write([]byte("this is not json\n"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testClient(t, server.URL)
	var tokens []string
	err := c.StreamComplete(context.Background(), "sys", "user", func(tok string) {
		tokens = append(tokens, tok)
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Equal(t, []string{"partial "}, tokens)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStreamCompleteRetriesBeforeFirstToken(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", tagsHandler("test-model"))
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusInternalServerError)
			return
		}
		writeChat(w, "ok", false)
		writeChat(w, "", true)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testClient(t, server.URL)
	var tokens []string
	err := c.StreamComplete(context.Background(), "sys", "user", func(tok string) {
		tokens = append(tokens, tok)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, tokens)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCircuitOpensAfterThresholdAndRejects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", tagsHandler("test-model"))
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testClient(t, server.URL)
	c.cfg.BreakerThreshold = 3
	c.breaker = NewCircuitBreaker(3, time.Minute)

	_, err := c.Complete(context.Background(), "sys", "user")
	require.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Equal(t, StateOpen, c.BreakerState())

	_, err = c.Complete(context.Background(), "sys", "user")
	assert.ErrorIs(t, err, domain.ErrCircuitOpen)
}

func TestHealthCheckHappyPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", tagsHandler("other", "test-model:latest"))
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Options)
		assert.Equal(t, 1, req.Options.NumPredict)
		writeChat(w, "pong", true)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testClient(t, server.URL)
	assert.NoError(t, c.HealthCheck(context.Background()))
}

func TestHealthCheckModelNotInstalled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", tagsHandler("llama3.2", "mistral:7b"))
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testClient(t, server.URL)
	err := c.HealthCheck(context.Background())
	require.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Contains(t, err.Error(), "not installed")
}

func TestHealthCheckServerUnreachable(t *testing.T) {
	c := testClient(t, "http://127.0.0.1:1")
	err := c.HealthCheck(context.Background())
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestResolveModelPrefersExactThenShortest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", tagsHandler("test-model-big:70b", "test-model:3b"))
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testClient(t, server.URL)
	assert.Equal(t, "test-model:3b", c.resolveModel(context.Background()))

	// Cached after first resolution.
	server.Close()
	assert.Equal(t, "test-model:3b", c.resolveModel(context.Background()))
}

func TestBreakerTransitions(t *testing.T) {
	b := NewCircuitBreaker(2, 30*time.Second)
	now := time.Unix(1000, 0)
	b.now = func() time.Time { return now }

	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())

	// Timeout elapses: one probe allowed.
	now = now.Add(31 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())
	assert.True(t, b.Allow())

	// Failed probe reopens immediately.
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	now = now.Add(31 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())

	// Counter was reset: one failure is below the threshold again.
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewCircuitBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}
