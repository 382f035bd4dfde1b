// Package ollama provides the resilient LLM client adapter for a local
// Ollama server. All traffic stays on localhost HTTP.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fillwise/fillwise/internal/core/domain"
	"github.com/fillwise/fillwise/internal/core/ports/driven"
	"github.com/fillwise/fillwise/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.LLMClient = (*Client)(nil)

// requestRate paces request starts so burst-restarting jobs cannot swamp a
// single-GPU backend.
const requestRate = 2 // requests per second

// Client talks to the Ollama chat API with a circuit breaker, bounded
// exponential-backoff retry, and a one-time OpenAI-compatible endpoint
// fallback when /api/chat is absent.
type Client struct {
	http    *http.Client
	baseURL string
	cfg     domain.Config
	breaker *CircuitBreaker
	limiter *rate.Limiter

	// sleep is swapped out in tests to skip real backoff delays.
	sleep func(time.Duration)

	mu            sync.Mutex
	resolvedModel string
}

// NewClient creates a new Ollama client from the pipeline config.
func NewClient(cfg domain.Config) *Client {
	return &Client{
		http:    &http.Client{Timeout: cfg.OllamaTimeout},
		baseURL: strings.TrimRight(cfg.OllamaBaseURL, "/"),
		cfg:     cfg,
		breaker: NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerTimeout),
		limiter: rate.NewLimiter(rate.Limit(requestRate), 1),
		sleep:   time.Sleep,
	}
}

// chatMessage is the Ollama chat message format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *options      `json:"options,omitempty"`
}

// options holds generation parameters.
type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

// chatResponse is one Ollama /api/chat response object. Streaming responses
// are newline-delimited JSON of this shape.
type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// tagsResponse is the Ollama /api/tags response format.
type tagsResponse struct {
	Models []struct {
		Model string `json:"model"`
		Name  string `json:"name"`
	} `json:"models"`
}

// v1Request is the OpenAI-compatible fallback request format.
type v1Request struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// v1Response is the OpenAI-compatible fallback response format.
type v1Response struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// errEndpointMissing marks a 404 from /api/chat, which triggers the
// /v1/chat/completions fallback.
type errEndpointMissing struct{ body string }

func (e *errEndpointMissing) Error() string {
	return "ollama chat endpoint not found: " + e.body
}

// ModelName returns the configured model identifier.
func (c *Client) ModelName() string {
	return c.cfg.OllamaModel
}

// Complete returns the full response after the model finishes.
func (c *Client) Complete(ctx context.Context, system, user string) (*driven.CompletionResponse, error) {
	var result *driven.CompletionResponse
	err := c.withRetries(ctx, func() error {
		resp, err := c.chatOnce(ctx, system, user)
		if err != nil {
			return err
		}
		result = &driven.CompletionResponse{
			Content:          resp.Message.Content,
			Model:            resp.Model,
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
		}
		return nil
	}, func() error {
		content, err := c.v1Completion(ctx, system, user)
		if err != nil {
			return err
		}
		result = &driven.CompletionResponse{Content: content, Model: c.resolveModel(ctx)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// StreamComplete streams completion tokens. Retries apply only until the
// first token has been delivered; afterwards a failure is returned as-is
// because the stream is not restartable.
func (c *Client) StreamComplete(ctx context.Context, system, user string, onToken func(string)) error {
	delivered := false
	deliver := func(token string) {
		delivered = true
		onToken(token)
	}

	attempt := 0
	return c.withRetriesFunc(ctx, func() (retryable bool, err error) {
		attempt++
		err = c.streamOnce(ctx, system, user, deliver)
		if err == nil {
			return false, nil
		}
		if ep, ok := err.(*errEndpointMissing); ok && !delivered {
			logger.Get().Warn("ollama chat endpoint missing, using v1 fallback", "detail", ep.body)
			content, ferr := c.v1Completion(ctx, system, user)
			if ferr == nil {
				if content != "" {
					deliver(content)
				}
				return false, nil
			}
			err = ferr
		}
		return !delivered, err
	})
}

// HealthCheck verifies the server is reachable, the configured model is
// installed, and a one-token completion succeeds.
func (c *Client) HealthCheck(ctx context.Context) error {
	models, err := c.listModels(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}

	base := strings.ToLower(strings.SplitN(c.cfg.OllamaModel, ":", 2)[0])
	installed := false
	for _, m := range models {
		if strings.Contains(strings.ToLower(m), base) {
			installed = true
			break
		}
	}
	if !installed {
		return fmt.Errorf("%w: model %q is not installed", domain.ErrServiceUnavailable, c.cfg.OllamaModel)
	}

	probe := chatRequest{
		Model:    c.resolveModel(ctx),
		Messages: []chatMessage{{Role: "user", Content: "ping"}},
		Stream:   false,
		Options:  &options{NumPredict: 1, Temperature: 0},
	}
	var resp chatResponse
	if err := c.postJSON(ctx, "/api/chat", probe, &resp); err != nil {
		if _, ok := err.(*errEndpointMissing); ok {
			if _, ferr := c.v1Completion(ctx, "You are concise.", "ping"); ferr == nil {
				return nil
			}
		}
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	return nil
}

// BreakerState exposes the circuit position for status reporting.
func (c *Client) BreakerState() CircuitState {
	return c.breaker.State()
}

// withRetries runs the call under the standard retry loop, diverting to
// fallback once on an endpoint-missing error.
func (c *Client) withRetries(ctx context.Context, call func() error, fallback func() error) error {
	fellBack := false
	return c.withRetriesFunc(ctx, func() (bool, error) {
		err := call()
		if err == nil {
			return false, nil
		}
		if _, ok := err.(*errEndpointMissing); ok && !fellBack {
			fellBack = true
			logger.Get().Warn("ollama chat endpoint missing, using v1 fallback")
			ferr := fallback()
			if ferr == nil {
				return false, nil
			}
			err = ferr
		}
		return true, err
	})
}

// withRetriesFunc is the retry core. The callback reports whether its error
// is retryable; each failure feeds the breaker, each success resets it.
// Backoff between attempts is 2^(attempt-1) seconds.
func (c *Client) withRetriesFunc(ctx context.Context, call func() (bool, error)) error {
	if !c.breaker.Allow() {
		return fmt.Errorf("%w: ollama circuit breaker is open, wait before retrying", domain.ErrCircuitOpen)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries+1; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retryable, err := call()
		if err == nil {
			c.breaker.RecordSuccess()
			return nil
		}
		c.breaker.RecordFailure()
		lastErr = err
		logger.Get().Warn("ollama request failed",
			"attempt", attempt, "max_retries", c.cfg.MaxRetries, "error", err)

		if !retryable || ctx.Err() != nil {
			return err
		}
		if attempt <= c.cfg.MaxRetries {
			c.sleep(time.Duration(1<<(attempt-1)) * time.Second)
		}
	}
	return fmt.Errorf("%w: ollama unreachable after %d retries: %v",
		domain.ErrServiceUnavailable, c.cfg.MaxRetries, lastErr)
}

func (c *Client) chatOnce(ctx context.Context, system, user string) (*chatResponse, error) {
	req := chatRequest{
		Model: c.resolveModel(ctx),
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: false,
		Options: &options{
			NumPredict:  c.cfg.MaxTokens,
			Temperature: c.cfg.RewriteTemperature,
		},
	}
	var resp chatResponse
	if err := c.postJSON(ctx, "/api/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) streamOnce(ctx context.Context, system, user string, onToken func(string)) error {
	req := chatRequest{
		Model: c.resolveModel(ctx),
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: true,
		Options: &options{
			NumPredict:  c.cfg.MaxTokens,
			Temperature: c.cfg.RewriteTemperature,
		},
	}

	httpResp, err := c.post(ctx, "/api/chat", req)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()
	if err := checkStatus(httpResp); err != nil {
		return err
	}

	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk chatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Message.Content != "" {
			onToken(chunk.Message.Content)
		}
		if chunk.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

func (c *Client) v1Completion(ctx context.Context, system, user string) (string, error) {
	req := v1Request{
		Model: c.resolveModel(ctx),
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream:      false,
		Temperature: c.cfg.RewriteTemperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	var resp v1Response
	if err := c.postJSON(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// resolveModel maps the configured model name onto an installed one. An
// exact tag match wins; otherwise the shortest installed name containing
// the configured base name. Resolution is cached for the client lifetime.
func (c *Client) resolveModel(ctx context.Context) string {
	c.mu.Lock()
	if c.resolvedModel != "" {
		resolved := c.resolvedModel
		c.mu.Unlock()
		return resolved
	}
	c.mu.Unlock()

	configured := c.cfg.OllamaModel
	models, err := c.listModels(ctx)
	if err != nil {
		return configured
	}

	resolved := configured
	base := strings.ToLower(strings.SplitN(configured, ":", 2)[0])
	var candidates []string
	for _, m := range models {
		if m == configured {
			candidates = []string{m}
			break
		}
		if strings.Contains(strings.ToLower(m), base) {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool { return len(candidates[i]) < len(candidates[j]) })
		resolved = candidates[0]
		if resolved != configured {
			logger.Get().Info("ollama model resolved", "configured", configured, "resolved", resolved)
		}
	}

	c.mu.Lock()
	c.resolvedModel = resolved
	c.mu.Unlock()
	return resolved
}

func (c *Client) listModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		name := m.Model
		if name == "" {
			name = m.Name
		}
		names = append(names, name)
	}
	return names, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	resp, err := c.post(ctx, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusNotFound {
		return &errEndpointMissing{body: string(body)}
	}
	return fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
}
