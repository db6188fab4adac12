// Package store persists an audit log of processed targets.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/eletricells/vantdge/internal/engine"
	"github.com/eletricells/vantdge/internal/model"
)

// ErrNotFound is returned by GetRun for an unknown id.
var ErrNotFound = eris.New("store: run not found")

// DefaultListLimit caps ListRuns when the filter sets no limit.
const DefaultListLimit = 100

// RunStatus is the outcome of one target.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusSkipped  RunStatus = "skipped"
)

// Run is one audit log entry: a processed target and its result.
type Run struct {
	ID        string    `json:"id"`
	TargetID  string    `json:"target_id"`
	Status    RunStatus `json:"status"`
	Consensus int       `json:"consensus"`
	Entities  int       `json:"entities"`
	Issues    int       `json:"issues"`
	Errors    int       `json:"errors"`

	// Result is the target result as stored, kept opaque.
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status   RunStatus `json:"status,omitempty"`
	TargetID string    `json:"target_id,omitempty"`
	Limit    int       `json:"limit,omitempty"`
	Offset   int       `json:"offset,omitempty"`
}

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Store defines the persistence interface for the run audit log.
type Store interface {
	// SaveRun inserts run, assigning an id and timestamp when unset.
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// NewRun builds an audit log entry from a target result.
func NewRun(res engine.TargetResult) (*Run, error) {
	blob, err := json.Marshal(res)
	if err != nil {
		return nil, eris.Wrapf(err, "store: marshal result %s", res.TargetID)
	}

	status := RunStatusComplete
	if res.Skipped {
		status = RunStatusSkipped
	}
	return &Run{
		TargetID:  res.TargetID,
		Status:    status,
		Consensus: len(res.Consensus),
		Entities:  len(res.Entities),
		Issues:    len(res.Issues),
		Errors:    model.CountBySeverity(res.Issues)[model.SeverityError],
		Result:    blob,
	}, nil
}

// TargetResult decodes the stored result.
func (r *Run) TargetResult() (engine.TargetResult, error) {
	var res engine.TargetResult
	if len(r.Result) == 0 {
		return res, eris.Errorf("store: run %s has no result", r.ID)
	}
	if err := json.Unmarshal(r.Result, &res); err != nil {
		return res, eris.Wrapf(err, "store: unmarshal result %s", r.ID)
	}
	return res, nil
}

// Sink records every finished target in s, retrying transient write
// failures per cfg. A zero cfg uses DefaultRetryConfig.
func Sink(s Store, cfg RetryConfig) engine.Sink {
	return engine.SinkFunc(func(ctx context.Context, res engine.TargetResult) error {
		run, err := NewRun(res)
		if err != nil {
			return err
		}
		return retry(ctx, cfg, "save run", func(ctx context.Context) error {
			return s.SaveRun(ctx, run)
		})
	})
}

// Open connects to the store for driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
}

func prepare(run *Run) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}
