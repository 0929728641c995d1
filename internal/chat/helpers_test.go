package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/calebwren/portfolio-ai/internal/portfolio"
	"github.com/calebwren/portfolio-ai/pkg/logging"
)

func testLogger() *logging.Logger {
	return logging.Default()
}

// memoryTurnStore keeps exchanges in memory for orchestration tests.
type memoryTurnStore struct {
	mu    sync.Mutex
	turns map[string][]ChatTurn
	fail  bool
}

func newMemoryTurnStore() *memoryTurnStore {
	return &memoryTurnStore{turns: map[string][]ChatTurn{}}
}

func (s *memoryTurnStore) ListTurns(ctx context.Context, sessionID string) ([]ChatTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("store down")
	}
	return append([]ChatTurn(nil), s.turns[sessionID]...), nil
}

func (s *memoryTurnStore) CreateTurn(ctx context.Context, sessionID, userText, assistantText string, meta *Metadata) (*ChatTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("store down")
	}
	now := time.Now().UTC()
	turn := ChatTurn{
		ID:            fmt.Sprintf("turn-%d", len(s.turns[sessionID])+1),
		SessionID:     sessionID,
		UserText:      userText,
		AssistantText: assistantText,
		Metadata:      meta,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.turns[sessionID] = append(s.turns[sessionID], turn)
	return &turn, nil
}

type fakePortfolio struct {
	projects []portfolio.Project
	prompts  []portfolio.Prompt
	err      error
}

func (f *fakePortfolio) ListProjects(ctx context.Context) ([]portfolio.Project, error) {
	return f.projects, f.err
}

func (f *fakePortfolio) ListActivePrompts(ctx context.Context) ([]portfolio.Prompt, error) {
	return f.prompts, f.err
}

type fakeNotifier struct {
	mu       sync.Mutex
	sessions []string
	done     chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{done: make(chan struct{}, 8)}
}

func (f *fakeNotifier) NotifyDealIntent(ctx context.Context, sessionID, message string) {
	f.mu.Lock()
	f.sessions = append(f.sessions, sessionID)
	f.mu.Unlock()
	f.done <- struct{}{}
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}
