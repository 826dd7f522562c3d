// Package llm calls an Ollama-compatible generative model endpoint. The
// retry policy is deliberately asymmetric: timeouts are retried with a fixed
// backoff because the model may simply be busy, while any other transport or
// HTTP failure aborts immediately, since hammering a broken endpoint helps
// nobody.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/regwatch/regwatch/internal/normalize"
	"github.com/regwatch/regwatch/pkg/config"
	apperrors "github.com/regwatch/regwatch/pkg/errors"
	"github.com/regwatch/regwatch/pkg/metrics"
	"github.com/regwatch/regwatch/pkg/resilience"
)

type generateRequest struct {
	Model      string          `json:"model"`
	Prompt     string          `json:"prompt"`
	Stream     bool            `json:"stream"`
	NumPredict int             `json:"num_predict"`
	Options    generateOptions `json:"options"`
}

type generateOptions struct {
	NumCtx      int     `json:"num_ctx"`
	Temperature float64 `json:"temperature"`
	TopK        int     `json:"top_k"`
	TopP        float64 `json:"top_p"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Client sends prompts to the model endpoint under a per-attempt timeout.
type Client struct {
	cfg     config.ModelConfig
	baseURL string
	http    *http.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewClient creates a model client. m may be nil. The underlying HTTP client
// carries no timeout of its own; each attempt is bounded by the configured
// per-attempt deadline instead.
func NewClient(cfg config.ModelConfig, m *metrics.Metrics) *Client {
	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{},
		metrics: m,
		logger:  slog.Default().With("component", "model-client"),
	}
}

// Generate sends the prompt and returns the model's answer, capped at the
// configured maximum length. On failure it returns an error wrapping
// apperrors.ErrModelTimeout (every attempt timed out) or
// apperrors.ErrModelTransport (non-timeout failure, never retried);
// FailureMessage turns either into the user-facing answer text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	attempt := 0
	var answer string

	err := resilience.Retry(ctx, "model-generate", resilience.RetryConfig{
		MaxAttempts: c.cfg.MaxAttempts,
		Delay:       c.cfg.RetryBackoff,
		RetryIf:     isTimeout,
	}, func() error {
		attempt++
		attemptStart := time.Now()
		c.logger.Info("model attempt starting",
			"attempt", attempt,
			"max_attempts", c.cfg.MaxAttempts,
			"prompt_chars", len(prompt),
		)

		text, err := c.attempt(ctx, prompt)
		elapsed := time.Since(attemptStart)
		if err != nil {
			c.countAttempt(err)
			c.logger.Warn("model attempt failed",
				"attempt", attempt,
				"elapsed", elapsed.Round(time.Millisecond),
				"timeout", isTimeout(err),
				"error", err,
			)
			return err
		}

		c.countAttempt(nil)
		c.logger.Info("model attempt succeeded",
			"attempt", attempt,
			"elapsed", elapsed.Round(time.Millisecond),
			"answer_chars", len(text),
		)
		answer = text
		return nil
	})
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("%w after %d attempts: %v", apperrors.ErrModelTimeout, attempt, err)
		}
		return "", fmt.Errorf("%w: %v", apperrors.ErrModelTransport, err)
	}

	if c.metrics != nil {
		c.metrics.ModelLatency.Observe(time.Since(start).Seconds())
	}
	return normalize.Cap(answer, c.cfg.MaxAnswerChars), nil
}

// FailureMessage synthesizes the plain-language answer returned in place of
// model output. Callers cannot structurally distinguish a failed call from a
// model that declined to answer; that is a documented property of the chat
// contract, not an accident.
func (c *Client) FailureMessage(err error) string {
	if errors.Is(err, apperrors.ErrModelTimeout) {
		return fmt.Sprintf(
			"Request timed out after %v. The model might be processing a complex query or experiencing high load.",
			c.cfg.Timeout,
		)
	}
	return "Error processing request: the language model could not be reached. Please try again later."
}

// attempt performs one request/response round trip bounded by the configured
// per-attempt timeout, which covers connection setup and the full response
// wait.
func (c *Client) attempt(ctx context.Context, prompt string) (string, error) {
	payload := generateRequest{
		Model:      c.cfg.Name,
		Prompt:     prompt,
		Stream:     false,
		NumPredict: c.cfg.MaxTokens,
		Options: generateOptions{
			NumCtx:      c.cfg.ContextWindow,
			Temperature: c.cfg.Temperature,
			TopK:        c.cfg.TopK,
			TopP:        c.cfg.TopP,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var text string
	err = resilience.WithTimeout(ctx, c.cfg.Timeout, "model request", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("model endpoint returned status %d", resp.StatusCode)
		}

		var decoded generateResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		if decoded.Response == "" {
			text = "No response from model."
			return nil
		}
		text = decoded.Response
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// LiveProbe checks the model endpoint's tags listing as a liveness signal.
func (c *Client) LiveProbe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("building probe request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("model endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Name returns the configured model name, for the system-info readout.
func (c *Client) Name() string {
	return c.cfg.Name
}

// isTimeout reports whether err represents an exceeded deadline rather than
// a hard transport failure. Only these errors are retried.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) countAttempt(err error) {
	if c.metrics == nil {
		return
	}
	switch {
	case err == nil:
		c.metrics.ModelAttemptsTotal.WithLabelValues("success").Inc()
	case isTimeout(err):
		c.metrics.ModelAttemptsTotal.WithLabelValues("timeout").Inc()
	default:
		c.metrics.ModelAttemptsTotal.WithLabelValues("transport_error").Inc()
	}
}
