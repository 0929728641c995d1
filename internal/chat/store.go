package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/calebwren/portfolio-ai/internal/speech"
	"github.com/calebwren/portfolio-ai/pkg/logging"
)

// Metadata is the display payload attached to an exchange.
type Metadata struct {
	Animation      string             `json:"animation,omitempty"`
	MorphTargets   map[string]float64 `json:"morphTargets,omitempty"`
	Visemes        []speech.Viseme    `json:"visemes,omitempty"`
	QuickStarters  []string           `json:"quickStarters,omitempty"`
	IsDealClose    bool               `json:"isDealClose,omitempty"`
	AudioAvailable bool               `json:"audioAvailable,omitempty"`
	CanRetry       bool               `json:"canRetry,omitempty"`
}

// ChatTurn is one persisted exchange: the visitor message and the reply it
// produced. The text fields never change after creation; metadata may be
// regenerated later (an audio retry, say), which bumps UpdatedAt.
type ChatTurn struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"sessionId"`
	UserText      string    `json:"userText"`
	AssistantText string    `json:"assistantText"`
	Metadata      *Metadata `json:"metadata,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// TurnStore persists exchanges.
type TurnStore interface {
	// ListTurns returns all exchanges for a session in creation order.
	ListTurns(ctx context.Context, sessionID string) ([]ChatTurn, error)
	CreateTurn(ctx context.Context, sessionID, userText, assistantText string, meta *Metadata) (*ChatTurn, error)
}

// metadataColumnLimit bounds the serialized metadata persisted per
// exchange. Visemes are always regenerable, so they never persist; morph
// targets go next if the payload still does not fit.
const metadataColumnLimit = 500

// PostgresTurnStore persists exchanges in Postgres via pgx.
type PostgresTurnStore struct {
	db     pgxQuerier
	tracer trace.Tracer
	logger *logging.Logger
}

// pgxQuerier is satisfied by *pgxpool.Pool and by pgxmock in tests.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func NewPostgresTurnStore(db pgxQuerier, logger *logging.Logger) *PostgresTurnStore {
	if db == nil {
		panic("chat: db connection required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresTurnStore{
		db:     db,
		tracer: otel.Tracer("chat.internal.turn_store"),
		logger: logger.WithComponent("turn_store"),
	}
}

// ListTurns returns a session's exchanges oldest first.
func (s *PostgresTurnStore) ListTurns(ctx context.Context, sessionID string) ([]ChatTurn, error) {
	ctx, span := s.tracer.Start(ctx, "chat.list_turns")
	defer span.End()

	query := `
		SELECT id, session_id, user_text, assistant_text, COALESCE(metadata, '{}'), created_at, updated_at
		FROM chat_turns
		WHERE session_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.Query(ctx, query, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("chat: list turns failed: %w", err)
	}
	defer rows.Close()

	var turns []ChatTurn
	for rows.Next() {
		var turn ChatTurn
		var rawMeta []byte
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.UserText, &turn.AssistantText, &rawMeta, &turn.CreatedAt, &turn.UpdatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("chat: scan turn failed: %w", err)
		}
		if len(rawMeta) > 2 {
			var meta Metadata
			if err := json.Unmarshal(rawMeta, &meta); err == nil {
				turn.Metadata = &meta
			}
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat: iterate turns failed: %w", err)
	}
	return turns, nil
}

// CreateTurn writes one exchange. Metadata is trimmed to fit the column
// limit before serialization.
func (s *PostgresTurnStore) CreateTurn(ctx context.Context, sessionID, userText, assistantText string, meta *Metadata) (*ChatTurn, error) {
	ctx, span := s.tracer.Start(ctx, "chat.create_turn")
	defer span.End()

	now := time.Now().UTC()
	turn := &ChatTurn{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		UserText:      userText,
		AssistantText: assistantText,
		Metadata:      meta,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	rawMeta, err := s.persistableMetadata(meta)
	if err != nil {
		return nil, fmt.Errorf("chat: encode metadata failed: %w", err)
	}

	query := `
		INSERT INTO chat_turns (id, session_id, user_text, assistant_text, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var id string
	if err := s.db.QueryRow(ctx, query, turn.ID, turn.SessionID, turn.UserText, turn.AssistantText, rawMeta, turn.CreatedAt, turn.UpdatedAt).Scan(&id); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("chat: create turn failed: %w", err)
	}
	return turn, nil
}

// UpdateTurnMetadata replaces an exchange's metadata, leaving both text
// fields untouched and bumping updated_at.
func (s *PostgresTurnStore) UpdateTurnMetadata(ctx context.Context, turnID string, meta *Metadata) error {
	ctx, span := s.tracer.Start(ctx, "chat.update_turn_metadata")
	defer span.End()

	rawMeta, err := s.persistableMetadata(meta)
	if err != nil {
		return fmt.Errorf("chat: encode metadata failed: %w", err)
	}

	query := `
		UPDATE chat_turns
		SET metadata = $2, updated_at = $3
		WHERE id = $1
		RETURNING id
	`
	var id string
	if err := s.db.QueryRow(ctx, query, turnID, rawMeta, time.Now().UTC()).Scan(&id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: update turn metadata failed: %w", err)
	}
	return nil
}

// persistableMetadata serializes metadata under the column limit. Visemes
// never persist. If the payload is still too large, morph targets are
// dropped and the trim is logged.
func (s *PostgresTurnStore) persistableMetadata(meta *Metadata) ([]byte, error) {
	if meta == nil {
		return []byte("{}"), nil
	}
	trimmed := *meta
	trimmed.Visemes = nil

	raw, err := json.Marshal(trimmed)
	if err != nil {
		return nil, err
	}
	if len(raw) <= metadataColumnLimit {
		return raw, nil
	}

	trimmed.MorphTargets = nil
	raw, err = json.Marshal(trimmed)
	if err != nil {
		return nil, err
	}
	if len(raw) > metadataColumnLimit {
		s.logger.Warn("turn metadata exceeds column limit after trim", "size", len(raw))
	} else {
		s.logger.Debug("dropped morph targets to fit metadata column")
	}
	return raw, nil
}
