package chat

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/calebwren/portfolio-ai/internal/observability/metrics"
	"github.com/calebwren/portfolio-ai/pkg/logging"
)

const (
	maxAttemptsPerModel = 4
	attemptTimeout      = 30 * time.Second
	backoffUnit         = 100 * time.Millisecond
)

// RetryClient walks an ordered list of candidate models, retrying transient
// failures with exponential backoff and falling to the next model when a
// candidate is unknown or keeps failing. Streaming calls fail over
// mid-stream: a Restart chunk tells the consumer to discard what the dead
// model produced.
type RetryClient struct {
	inner   LLMClient
	models  []string
	logger  *logging.Logger
	metrics *metrics.ChatMetrics

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryClient wraps inner with the failover policy. models is the
// candidate order, primary first; duplicates of an earlier candidate are
// dropped so no model is attempted twice.
func NewRetryClient(inner LLMClient, models []string, logger *logging.Logger, m *metrics.ChatMetrics) *RetryClient {
	if inner == nil {
		panic("chat: inner LLM client required")
	}
	if len(models) == 0 {
		panic("chat: at least one candidate model required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	seen := make(map[string]bool, len(models))
	deduped := make([]string, 0, len(models))
	for _, model := range models {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true
		deduped = append(deduped, model)
	}
	return &RetryClient{
		inner:   inner,
		models:  deduped,
		logger:  logger.WithComponent("retry_client"),
		metrics: m,
		sleep:   sleepCtx,
	}
}

func (c *RetryClient) Name() string { return "retry(" + c.inner.Name() + ")" }

// Models returns the candidate order. The first entry keys the response
// cache.
func (c *RetryClient) Models() []string { return c.models }

// PrimaryModel is the first candidate.
func (c *RetryClient) PrimaryModel() string { return c.models[0] }

func backoffDelay(retry int) time.Duration {
	base := time.Duration((1<<retry)-1) * backoffUnit
	jitter := time.Duration(rand.Int63n(int64(backoffUnit)))
	return base + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Complete runs the candidate loop for a blocking completion. Unknown
// models and exhausted transient retries move to the next candidate; any
// other error is fatal and aborts the whole call.
func (c *RetryClient) Complete(ctx context.Context, req LLMRequest) (*LLMResponse, error) {
	var lastErr error
	for _, model := range c.models {
		resp, err := c.completeModel(ctx, model, req)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, ErrModelNotFound) && !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, errors.Join(ErrAllModelsExhausted, lastErr)
}

// completeModel exhausts all attempts against a single model.
func (c *RetryClient) completeModel(ctx context.Context, model string, req LLMRequest) (*LLMResponse, error) {
	req.Model = model
	var lastErr error
	for attempt := 1; attempt <= maxAttemptsPerModel; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		resp, err := c.inner.Complete(attemptCtx, req)
		cancel()
		if err == nil {
			c.recordAttempt(model, "success")
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, ErrModelNotFound) {
			c.recordAttempt(model, "not_found")
			c.logger.Warn("model unavailable, moving on", "model", model)
			return nil, err
		}
		if !IsRetryable(err) || ctx.Err() != nil {
			c.recordAttempt(model, "failed")
			return nil, err
		}
		c.recordAttempt(model, "retry")
		if attempt < maxAttemptsPerModel {
			c.logger.Warn("completion attempt failed, retrying",
				"model", model, "attempt", attempt, "error", err)
			if err := c.sleep(ctx, backoffDelay(attempt)); err != nil {
				return nil, err
			}
		}
	}
	c.logger.Error("model exhausted all attempts", "model", model, "error", lastErr)
	return nil, lastErr
}

// CompleteStream opens a streamed completion against the first candidate
// that accepts one. The open happens synchronously so that exhaustion before
// any output maps to an error return, not an error chunk. Mid-stream
// failures continue the candidate walk in the background; each recovery is
// announced with a Restart chunk.
func (c *RetryClient) CompleteStream(ctx context.Context, req LLMRequest) (<-chan StreamChunk, error) {
	start := 0
	upstream, model, err := c.openStream(ctx, req, &start)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamChunk, 16)
	go func() {
		defer close(out)
		for {
			chunk, ok := <-upstream
			if !ok {
				// Closed without a terminal chunk; treat as clean end.
				out <- StreamChunk{Model: model, Done: true}
				return
			}
			if chunk.Err != nil {
				if !IsRetryable(chunk.Err) && !errors.Is(chunk.Err, ErrModelNotFound) {
					out <- StreamChunk{Model: model, Err: chunk.Err, Done: true}
					return
				}
				c.logger.Warn("stream failed mid-flight, failing over",
					"model", model, "error", chunk.Err)
				next, nextModel, openErr := c.openStream(ctx, req, &start)
				if openErr != nil {
					out <- StreamChunk{Model: model, Err: openErr, Done: true}
					return
				}
				upstream, model = next, nextModel
				out <- StreamChunk{Model: model, Restart: true}
				continue
			}
			out <- chunk
			if chunk.Done {
				return
			}
		}
	}()
	return out, nil
}

// openStream resumes the candidate walk from *start and returns the first
// stream that opens. *start advances past consumed candidates so a
// mid-stream failover never revisits a model that already failed. An error
// outside the transient/not-found classes is fatal and returned as-is.
func (c *RetryClient) openStream(ctx context.Context, req LLMRequest, start *int) (<-chan StreamChunk, string, error) {
	var lastErr error
	for ; *start < len(c.models); *start++ {
		model := c.models[*start]
		req.Model = model
		for attempt := 1; attempt <= maxAttemptsPerModel; attempt++ {
			stream, err := c.inner.CompleteStream(ctx, req)
			if err == nil {
				c.recordAttempt(model, "success")
				*start++
				return stream, model, nil
			}
			lastErr = err
			if errors.Is(err, ErrModelNotFound) {
				c.recordAttempt(model, "not_found")
				break
			}
			if !IsRetryable(err) || ctx.Err() != nil {
				c.recordAttempt(model, "failed")
				return nil, "", err
			}
			c.recordAttempt(model, "retry")
			if attempt < maxAttemptsPerModel {
				if err := c.sleep(ctx, backoffDelay(attempt)); err != nil {
					return nil, "", err
				}
			}
		}
	}
	if lastErr == nil {
		lastErr = ErrAllModelsExhausted
	}
	return nil, "", errors.Join(ErrAllModelsExhausted, lastErr)
}

func (c *RetryClient) recordAttempt(model, outcome string) {
	if c.metrics != nil {
		c.metrics.RecordModelAttempt(model, outcome)
	}
}
