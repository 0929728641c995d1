package chat

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/calebwren/portfolio-ai/internal/observability/metrics"
	"github.com/calebwren/portfolio-ai/internal/portfolio"
	"github.com/calebwren/portfolio-ai/internal/speech"
	"github.com/calebwren/portfolio-ai/pkg/logging"
)

// Stream event types on the NDJSON wire.
const (
	EventMessageStart    = "message_start"
	EventToken           = "token"
	EventMessageComplete = "message_complete"
	EventError           = "error"
)

// Event is one NDJSON line sent to the client during a chat exchange.
type Event struct {
	Type     string    `json:"type"`
	Token    string    `json:"token,omitempty"`
	Model    string    `json:"model,omitempty"`
	Turn     *ChatTurn `json:"turn,omitempty"`
	Audio    string    `json:"audio,omitempty"`
	Error    string    `json:"error,omitempty"`
	CanRetry bool      `json:"canRetry,omitempty"`
}

// Notifier receives deal-intent alerts. Implementations must absorb their
// own failures.
type Notifier interface {
	NotifyDealIntent(ctx context.Context, sessionID, message string)
}

// apologyText replaces the reply when every model fails after a stream
// already opened.
const apologyText = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

// Service orchestrates the chat pipeline: context assembly, persona prompt,
// streamed completion with failover, postprocessing, lip sync, caching,
// persistence and lead notification.
type Service struct {
	llm       *RetryClient
	cache     CacheService
	store     TurnStore
	portfolio portfolio.Repository
	speech    *speech.Service
	notifier  Notifier
	persona   PersonaConfig
	metrics   *metrics.ChatMetrics
	logger    *logging.Logger

	cacheTTL        time.Duration
	maxOutputTokens int
}

// ServiceParams collects the orchestrator's collaborators. Speech and
// notifier are optional; everything else is required.
type ServiceParams struct {
	LLM             *RetryClient
	Cache           CacheService
	Store           TurnStore
	Portfolio       portfolio.Repository
	Speech          *speech.Service
	Notifier        Notifier
	Persona         PersonaConfig
	Metrics         *metrics.ChatMetrics
	Logger          *logging.Logger
	CacheTTL        time.Duration
	MaxOutputTokens int
}

func NewService(p ServiceParams) *Service {
	if p.LLM == nil {
		panic("chat: retry client required")
	}
	if p.Cache == nil {
		panic("chat: cache service required")
	}
	if p.Store == nil {
		panic("chat: turn store required")
	}
	if p.Portfolio == nil {
		panic("chat: portfolio repository required")
	}
	if p.Logger == nil {
		p.Logger = logging.Default()
	}
	if p.CacheTTL <= 0 {
		p.CacheTTL = time.Hour
	}
	if p.MaxOutputTokens <= 0 {
		p.MaxOutputTokens = 1024
	}
	return &Service{
		llm:             p.LLM,
		cache:           p.Cache,
		store:           p.Store,
		portfolio:       p.Portfolio,
		speech:          p.Speech,
		notifier:        p.Notifier,
		persona:         p.Persona,
		metrics:         p.Metrics,
		logger:          p.Logger.WithComponent("chat_service"),
		cacheTTL:        p.CacheTTL,
		maxOutputTokens: p.MaxOutputTokens,
	}
}

// Stream runs one chat exchange and emits events on the returned channel.
// extraPrompts are caller-supplied instructions layered on top of the seeded
// ones. The channel closes after the terminal event. A client disconnect
// cancels ctx and abandons the turn without persisting a partial reply.
func (s *Service) Stream(ctx context.Context, sessionID, message string, extraPrompts []string) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		s.run(ctx, sessionID, strings.TrimSpace(message), extraPrompts, events)
	}()
	return events
}

func (s *Service) run(ctx context.Context, sessionID, message string, extraPrompts []string, events chan<- Event) {
	started := time.Now()

	// Portfolio content degrades to empty on failure; the persona still
	// answers without it.
	prompts, err := s.portfolio.ListActivePrompts(ctx)
	if err != nil {
		s.logger.Warn("loading prompts failed, continuing without", "error", err)
		prompts = nil
	}
	for _, text := range extraPrompts {
		if text = strings.TrimSpace(text); text != "" {
			prompts = append(prompts, portfolio.Prompt{Text: text, Active: true})
		}
	}
	projects, err := s.portfolio.ListProjects(ctx)
	if err != nil {
		s.logger.Warn("loading projects failed, continuing without", "error", err)
		projects = nil
	}

	cacheKey := ResponseCacheKey(s.llm.PrimaryModel(), message, prompts)
	if cached, ok, cerr := s.cache.Get(ctx, cacheKey); cerr == nil && ok {
		s.recordCache("hit")
		s.logger.Info("serving cached response", "session_id", sessionID)
		s.emit(ctx, events, Event{Type: EventMessageStart, Model: s.llm.PrimaryModel()})
		s.finish(ctx, sessionID, message, cached, false, events)
		s.recordCompletion(s.llm.PrimaryModel(), "cache_hit", started)
		return
	} else if cerr != nil {
		s.logger.Warn("cache lookup failed", "error", cerr)
	}
	s.recordCache("miss")

	history := s.loadHistory(ctx, sessionID)
	window := BuildContext(history)

	messages := []ChatMessage{
		{Role: RoleSystem, Content: ComposePrompt(s.persona, projects, prompts, window)},
		{Role: RoleUser, Content: message},
	}

	chunks, err := s.llm.CompleteStream(ctx, LLMRequest{
		Messages:  messages,
		MaxTokens: s.maxOutputTokens,
	})
	if err != nil {
		// No stream ever opened; nothing is salvaged and nothing
		// persists for this exchange.
		s.logger.Error("completion unavailable", "session_id", sessionID, "error", err)
		s.emit(ctx, events, Event{Type: EventError, Error: "assistant unavailable", CanRetry: true})
		s.recordCompletion(s.llm.PrimaryModel(), "exhausted", started)
		return
	}

	var full strings.Builder
	model := ""
	announced := false
	degraded := false

	// announce emits the single message_start as soon as the serving
	// model is known, whether that is the first token or a failover.
	announce := func(m string) {
		if m != "" {
			model = m
		}
		if !announced && model != "" {
			announced = true
			s.emit(ctx, events, Event{Type: EventMessageStart, Model: model})
		}
	}

	for chunk := range chunks {
		if ctx.Err() != nil {
			s.logger.Info("client disconnected, abandoning turn", "session_id", sessionID)
			return
		}
		if chunk.Restart {
			// A failover discarded the dead model's partial output.
			full.Reset()
			announce(chunk.Model)
			continue
		}
		if chunk.Err != nil {
			if full.Len() == 0 {
				full.WriteString(apologyText)
			}
			degraded = true
			break
		}
		announce(chunk.Model)
		if chunk.Text != "" {
			full.WriteString(chunk.Text)
			s.emit(ctx, events, Event{Type: EventToken, Token: chunk.Text, Model: model})
		}
		if chunk.Done {
			break
		}
	}
	if ctx.Err() != nil {
		s.logger.Info("client disconnected, abandoning turn", "session_id", sessionID)
		return
	}

	rawText := full.String()
	if !announced {
		announce(s.llm.PrimaryModel())
	}

	if !degraded && rawText != "" {
		if err := s.cache.Set(ctx, cacheKey, rawText, s.cacheTTL); err != nil {
			s.logger.Warn("cache store failed", "error", err)
		}
	}

	s.finish(ctx, sessionID, message, rawText, degraded, events)
	status := "success"
	if degraded {
		status = "degraded"
	}
	s.recordCompletion(model, status, started)
}

// finish runs postprocessing, lip sync, persistence and notification, then
// emits exactly one message_complete.
func (s *Service) finish(ctx context.Context, sessionID, message, rawText string, degraded bool, events chan<- Event) {
	processed := PostProcess(rawText, message)

	var audio []byte
	meta := &Metadata{
		Animation:     processed.Animation,
		MorphTargets:  processed.MorphTargets,
		QuickStarters: processed.QuickStarters,
		IsDealClose:   processed.IsDealClose,
		CanRetry:      degraded,
	}

	if s.speech != nil {
		out := s.speech.Generate(ctx, processed.Text)
		meta.Visemes = out.Visemes
		meta.AudioAvailable = out.AudioAvailable
		audio = out.Audio
		if !out.AudioAvailable {
			meta.CanRetry = true
			s.recordSynthesis("fallback")
		} else {
			s.recordSynthesis("success")
		}
	} else {
		meta.Visemes = speech.FlatVisemes(processed.Text)
	}

	turn := s.persistExchange(ctx, sessionID, message, processed.Text, meta)

	if processed.IsDealClose && s.notifier != nil {
		go s.notifier.NotifyDealIntent(context.WithoutCancel(ctx), sessionID, message)
	}

	complete := Event{Type: EventMessageComplete, Turn: turn}
	if len(audio) > 0 {
		complete.Audio = base64.StdEncoding.EncodeToString(audio)
	}
	s.emit(ctx, events, complete)
}

// loadHistory reads the session history, degrading to empty when the store
// is unavailable.
func (s *Service) loadHistory(ctx context.Context, sessionID string) []ChatMessage {
	turns, err := s.store.ListTurns(ctx, sessionID)
	if err != nil {
		s.logger.Warn("history unavailable, continuing stateless", "session_id", sessionID, "error", err)
		return nil
	}
	history := make([]ChatMessage, 0, len(turns)*2)
	for _, turn := range turns {
		history = append(history,
			ChatMessage{Role: RoleUser, Content: turn.UserText},
			ChatMessage{Role: RoleAssistant, Content: turn.AssistantText},
		)
	}
	return history
}

// persistExchange writes one exchange, absorbing store failures. The
// returned turn is populated even when the write fails so the client still
// gets a reply.
func (s *Service) persistExchange(ctx context.Context, sessionID, userText, assistantText string, meta *Metadata) *ChatTurn {
	turn, err := s.store.CreateTurn(ctx, sessionID, userText, assistantText, meta)
	if err != nil {
		s.logger.Warn("persisting exchange failed", "session_id", sessionID, "error", err)
		now := time.Now().UTC()
		turn = &ChatTurn{
			SessionID:     sessionID,
			UserText:      userText,
			AssistantText: assistantText,
			Metadata:      meta,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}
	return turn
}

func (s *Service) emit(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func (s *Service) recordCache(result string) {
	if s.metrics != nil {
		s.metrics.RecordCacheRequest(result)
	}
}

func (s *Service) recordSynthesis(status string) {
	if s.metrics != nil {
		s.metrics.RecordSynthesis(status)
	}
}

func (s *Service) recordCompletion(model, status string, started time.Time) {
	if s.metrics != nil {
		s.metrics.RecordCompletion(model, status, time.Since(started))
	}
}
