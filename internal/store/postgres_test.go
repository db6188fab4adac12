package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var runRowColumns = []string{"id", "target_id", "status", "consensus", "entities", "issues", "errors", "result", "created_at"}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	run := &Run{TargetID: "ra", Status: RunStatusComplete, Consensus: 1, Entities: 2, Issues: 3, Errors: 0, Result: []byte(`{}`)}
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "ra", "complete", 1, 2, 3, 0, []byte(`{}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveRun(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRunError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WillReturnError(errors.New("connection reset"))

	err := s.SaveRun(context.Background(), &Run{ID: "r1", TargetID: "ra", Status: RunStatusComplete})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: insert run r1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, target_id, status, .* FROM runs WHERE id = \$1`).
		WithArgs("r1").
		WillReturnRows(mock.NewRows(runRowColumns).
			AddRow("r1", "ra", "skipped", 0, 0, 0, 0, []byte(nil), created))

	got, err := s.GetRun(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "ra", got.TargetID)
	assert.Equal(t, RunStatusSkipped, got.Status)
	assert.Nil(t, got.Result)
	assert.Equal(t, created, got.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, target_id, status, .* FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM runs WHERE 1=1 AND status = \$1 AND target_id = \$2 ORDER BY created_at DESC, id LIMIT \$3 OFFSET \$4`).
		WithArgs("complete", "ra", 10, 5).
		WillReturnRows(mock.NewRows(runRowColumns).
			AddRow("r2", "ra", "complete", 1, 1, 0, 0, []byte(`{"target_id":"ra"}`), created.Add(time.Minute)).
			AddRow("r1", "ra", "complete", 1, 1, 2, 1, []byte(`{"target_id":"ra"}`), created))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: RunStatusComplete, TargetID: "ra", Limit: 10, Offset: 5})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.Equal(t, 1, runs[1].Errors)
	assert.JSONEq(t, `{"target_id":"ra"}`, string(runs[1].Result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRunsDefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE 1=1 ORDER BY created_at DESC, id LIMIT \$1$`).
		WithArgs(DefaultListLimit).
		WillReturnRows(mock.NewRows(runRowColumns))

	runs, err := s.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRunsError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs`).
		WillReturnError(errors.New("boom"))

	_, err := s.ListRuns(context.Background(), RunFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: list runs")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CloseWithoutPool(t *testing.T) {
	s := &PostgresStore{}
	assert.NoError(t, s.Close())
}
