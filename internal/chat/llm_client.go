package chat

import (
	"context"
	"errors"
	"fmt"
)

// Message roles on the completion wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single turn sent to or received from a model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMRequest is a completion call against one concrete model.
type LLMRequest struct {
	Model     string
	Messages  []ChatMessage
	MaxTokens int
}

// LLMResponse is a finished, non-streamed completion.
type LLMResponse struct {
	Text  string
	Model string
}

// StreamChunk is one element of a streamed completion. Restart marks the
// point where a mid-stream failover discarded prior output; consumers must
// reset any accumulated text. A chunk with Done set is terminal.
type StreamChunk struct {
	Text    string
	Model   string
	Restart bool
	Done    bool
	Err     error
}

// LLMClient produces completions from one provider endpoint.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (*LLMResponse, error)
	CompleteStream(ctx context.Context, req LLMRequest) (<-chan StreamChunk, error)
	Name() string
}

// ErrModelNotFound means the provider does not serve the requested model.
// Retrying the same model is pointless; callers move to the next candidate.
var ErrModelNotFound = errors.New("chat: model not found")

// ErrAllModelsExhausted means every candidate model failed all its attempts.
var ErrAllModelsExhausted = errors.New("chat: all models exhausted")

// transientError wraps provider failures worth retrying, such as rate
// limits and 5xx responses.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return fmt.Sprintf("chat: transient: %v", e.err) }
func (e *transientError) Unwrap() error { return e.err }

// MarkTransient tags err as retryable.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsRetryable reports whether another attempt against the same model could
// succeed. Timeouts count; model-not-found and cancellation do not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrModelNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te *transientError
	return errors.As(err, &te)
}
