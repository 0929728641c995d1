package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListProjects(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "title", "description", "technologies", "demo_url", "created_at"}).
		AddRow("p1", "Chat Widget", "Realtime site assistant", []string{"Go", "React"}, "https://demo.example.com", created).
		AddRow("p2", "Render Farm", "Distributed renderer", []string{"Go"}, "", created.Add(-time.Hour))

	mock.ExpectQuery("SELECT id, title, description, technologies").WillReturnRows(rows)

	repo := NewPostgresRepository(mock)
	projects, err := repo.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Chat Widget", projects[0].Title)
	assert.Equal(t, []string{"Go", "React"}, projects[0].Technologies)
	assert.Empty(t, projects[1].DemoURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProjectsQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, title, description").WillReturnError(errors.New("connection refused"))

	repo := NewPostgresRepository(mock)
	_, err = repo.ListProjects(context.Background())
	assert.Error(t, err)
}

func TestListActivePrompts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "text", "active"}).
		AddRow("q1", "Mention availability for freelance work", true)

	mock.ExpectQuery("SELECT id, text, active").WillReturnRows(rows)

	repo := NewPostgresRepository(mock)
	prompts, err := repo.ListActivePrompts(context.Background())
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.True(t, prompts[0].Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}
