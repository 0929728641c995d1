package portfolio

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Repository reads portfolio content. All calls are fallible; callers
// treat failures as "no data available" rather than propagating.
type Repository interface {
	ListProjects(ctx context.Context) ([]Project, error)
	ListActivePrompts(ctx context.Context) ([]Prompt, error)
}

// querier is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository stores portfolio content in the relational database.
type PostgresRepository struct {
	db     querier
	tracer trace.Tracer
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(db querier) *PostgresRepository {
	if db == nil {
		panic("portfolio: db connection required")
	}
	return &PostgresRepository{
		db:     db,
		tracer: otel.Tracer("portfolio.internal.repository"),
	}
}

// ListProjects returns all projects, most recent first.
func (r *PostgresRepository) ListProjects(ctx context.Context) ([]Project, error) {
	ctx, span := r.tracer.Start(ctx, "portfolio.list_projects")
	defer span.End()

	query := `
		SELECT id, title, description, technologies, COALESCE(demo_url, ''), created_at
		FROM projects
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("portfolio: list projects failed: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Technologies, &p.DemoURL, &p.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("portfolio: scan project failed: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("portfolio: iterate projects failed: %w", err)
	}
	return projects, nil
}

// ListActivePrompts returns operator-seeded prompts flagged active.
func (r *PostgresRepository) ListActivePrompts(ctx context.Context) ([]Prompt, error) {
	ctx, span := r.tracer.Start(ctx, "portfolio.list_active_prompts")
	defer span.End()

	query := `
		SELECT id, text, active
		FROM prompts
		WHERE active = TRUE
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("portfolio: list prompts failed: %w", err)
	}
	defer rows.Close()

	var prompts []Prompt
	for rows.Next() {
		var p Prompt
		if err := rows.Scan(&p.ID, &p.Text, &p.Active); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("portfolio: scan prompt failed: %w", err)
		}
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("portfolio: iterate prompts failed: %w", err)
	}
	return prompts, nil
}
