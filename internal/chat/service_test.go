package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebwren/portfolio-ai/internal/speech"
)

func newTestService(t *testing.T, inner LLMClient, opts func(*ServiceParams)) (*Service, *memoryTurnStore) {
	t.Helper()
	retry := NewRetryClient(inner, []string{"primary", "backup"}, nil, nil)
	sleep, _ := noSleep(t)
	retry.sleep = sleep

	store := newMemoryTurnStore()
	params := ServiceParams{
		LLM:       retry,
		Cache:     NewMemoryCache(10),
		Store:     store,
		Portfolio: &fakePortfolio{},
		Persona:   testPersona(),
		CacheTTL:  time.Hour,
	}
	if opts != nil {
		opts(&params)
	}
	return NewService(params), store
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out draining events")
		}
	}
}

func eventTypes(events []Event) []string {
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func lastEvent(t *testing.T, events []Event, typ string) Event {
	t.Helper()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == typ {
			return events[i]
		}
	}
	t.Fatalf("no %s event in %v", typ, eventTypes(events))
	return Event{}
}

func TestStreamHappyPath(t *testing.T) {
	inner := newScriptedClient("Glad you asked! I build backend systems.")
	svc, store := newTestService(t, inner, nil)

	events := collect(t, svc.Stream(context.Background(), "s1", "Tell me about your skills", nil))

	assert.Equal(t, EventMessageStart, events[0].Type)
	complete := lastEvent(t, events, EventMessageComplete)
	require.NotNil(t, complete.Turn)
	assert.Equal(t, "Tell me about your skills", complete.Turn.UserText)
	assert.Equal(t, "Glad you asked! I build backend systems.", complete.Turn.AssistantText)

	meta := complete.Turn.Metadata
	require.NotNil(t, meta)
	assert.Equal(t, "talking", meta.Animation)
	assert.False(t, meta.IsDealClose)
	assert.False(t, meta.CanRetry)
	assert.NotEmpty(t, meta.Visemes, "flat visemes when no speech backend")

	turns, err := store.ListTurns(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "Tell me about your skills", turns[0].UserText)
	assert.Equal(t, "Glad you asked! I build backend systems.", turns[0].AssistantText)
}

func TestStreamEmitsExactlyOneComplete(t *testing.T) {
	inner := newScriptedClient("short answer")
	svc, _ := newTestService(t, inner, nil)

	events := collect(t, svc.Stream(context.Background(), "s1", "hello there friend", nil))
	completes := 0
	for _, ev := range events {
		if ev.Type == EventMessageComplete {
			completes++
		}
	}
	assert.Equal(t, 1, completes)
}

func TestStreamCacheHitSkipsModel(t *testing.T) {
	inner := newScriptedClient("cached-worthy answer")
	svc, _ := newTestService(t, inner, nil)

	collect(t, svc.Stream(context.Background(), "s1", "What do you build?", nil))
	calls := inner.calls["primary"]

	events := collect(t, svc.Stream(context.Background(), "s2", "what do you   BUILD?", nil))
	assert.Equal(t, calls, inner.calls["primary"], "normalized repeat must not hit the model")

	complete := lastEvent(t, events, EventMessageComplete)
	assert.Equal(t, "cached-worthy answer", complete.Turn.AssistantText)
}

func TestStreamDealIntentNotifies(t *testing.T) {
	inner := newScriptedClient("Happy to talk details.")
	notifier := newFakeNotifier()
	svc, _ := newTestService(t, inner, func(p *ServiceParams) {
		p.Notifier = notifier
	})

	events := collect(t, svc.Stream(context.Background(), "s1", "I need you to build me a website, can you start now?", nil))
	complete := lastEvent(t, events, EventMessageComplete)
	assert.True(t, complete.Turn.Metadata.IsDealClose)

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was never called")
	}
	assert.Equal(t, 1, notifier.count())
}

type failingSynth struct{}

func (failingSynth) Synthesize(ctx context.Context, text, voice string) (*speech.Result, error) {
	return nil, errors.New("tts down")
}

func TestStreamSynthesisFailureDegradesGracefully(t *testing.T) {
	inner := newScriptedClient("still a fine answer")
	svc, _ := newTestService(t, inner, func(p *ServiceParams) {
		p.Speech = speech.NewService(failingSynth{}, "voice-a", 10, nil)
	})

	events := collect(t, svc.Stream(context.Background(), "s1", "say something", nil))
	complete := lastEvent(t, events, EventMessageComplete)
	meta := complete.Turn.Metadata
	require.NotNil(t, meta)
	assert.False(t, meta.AudioAvailable)
	assert.True(t, meta.CanRetry)
	assert.NotEmpty(t, meta.Visemes)
	assert.Empty(t, complete.Audio)
}

func TestStreamExhaustionBeforeOpenEmitsError(t *testing.T) {
	inner := newScriptedClient("never")
	transient := MarkTransient(errors.New("down"))
	inner.outcomes["primary"] = []error{transient, transient, transient, transient}
	inner.outcomes["backup"] = []error{transient, transient, transient, transient}
	svc, store := newTestService(t, inner, nil)

	events := collect(t, svc.Stream(context.Background(), "s1", "hello?", nil))
	errEvent := lastEvent(t, events, EventError)
	assert.True(t, errEvent.CanRetry)
	assert.NotEmpty(t, errEvent.Error)

	for _, ev := range events {
		assert.NotEqual(t, EventMessageComplete, ev.Type)
		assert.NotEqual(t, EventMessageStart, ev.Type)
	}

	// Nothing persists when no stream ever opened.
	turns, err := store.ListTurns(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

// dyingStreamClient opens a stream, emits text, then fails, on every model.
type dyingStreamClient struct{ opens int }

func (c *dyingStreamClient) Name() string { return "dying" }

func (c *dyingStreamClient) Complete(ctx context.Context, req LLMRequest) (*LLMResponse, error) {
	return nil, errors.New("not used")
}

func (c *dyingStreamClient) CompleteStream(ctx context.Context, req LLMRequest) (<-chan StreamChunk, error) {
	c.opens++
	if c.opens > 1 {
		return nil, MarkTransient(errors.New("refused"))
	}
	chunks := make(chan StreamChunk, 4)
	chunks <- StreamChunk{Text: "half a thou", Model: req.Model}
	chunks <- StreamChunk{Model: req.Model, Err: MarkTransient(errors.New("died")), Done: true}
	close(chunks)
	return chunks, nil
}

func TestStreamKeepsPartialTextOnMidStreamExhaustion(t *testing.T) {
	svc, _ := newTestService(t, &dyingStreamClient{}, nil)

	events := collect(t, svc.Stream(context.Background(), "s1", "hello there", nil))
	complete := lastEvent(t, events, EventMessageComplete)
	assert.Equal(t, "half a thou", complete.Turn.AssistantText)
	assert.True(t, complete.Turn.Metadata.CanRetry)
}

// silentFailClient opens its first stream, dies before producing any text,
// then serves the full answer from the next model.
type silentFailClient struct{ opens int }

func (c *silentFailClient) Name() string { return "silentfail" }

func (c *silentFailClient) Complete(ctx context.Context, req LLMRequest) (*LLMResponse, error) {
	return nil, errors.New("not used")
}

func (c *silentFailClient) CompleteStream(ctx context.Context, req LLMRequest) (<-chan StreamChunk, error) {
	c.opens++
	chunks := make(chan StreamChunk, 4)
	if c.opens == 1 {
		chunks <- StreamChunk{Model: req.Model, Err: MarkTransient(errors.New("died early")), Done: true}
	} else {
		chunks <- StreamChunk{Text: "recovered answer", Model: req.Model}
		chunks <- StreamChunk{Model: req.Model, Done: true}
	}
	close(chunks)
	return chunks, nil
}

func TestStreamAnnouncesStartBeforeTokensOnEarlyFailover(t *testing.T) {
	svc, _ := newTestService(t, &silentFailClient{}, nil)

	events := collect(t, svc.Stream(context.Background(), "s1", "hello there", nil))

	types := eventTypes(events)
	starts := 0
	firstStart, firstToken := -1, -1
	for i, typ := range types {
		switch typ {
		case EventMessageStart:
			starts++
			if firstStart == -1 {
				firstStart = i
			}
		case EventToken:
			if firstToken == -1 {
				firstToken = i
			}
		}
	}
	require.Equal(t, 1, starts, "exactly one message_start in %v", types)
	require.NotEqual(t, -1, firstToken)
	assert.Less(t, firstStart, firstToken, "message_start must precede tokens in %v", types)

	complete := lastEvent(t, events, EventMessageComplete)
	assert.Equal(t, "recovered answer", complete.Turn.AssistantText)
	assert.False(t, complete.Turn.Metadata.CanRetry)
}

func TestStreamHistoryUnavailableStillAnswers(t *testing.T) {
	inner := newScriptedClient("stateless but fine")
	svc, store := newTestService(t, inner, nil)
	store.fail = true

	events := collect(t, svc.Stream(context.Background(), "s1", "are you there?", nil))
	complete := lastEvent(t, events, EventMessageComplete)
	assert.Equal(t, "stateless but fine", complete.Turn.AssistantText)
}
