package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dcf_valuation/pkg/core/pipeline"
)

// ErrNotFound is returned when a run ID is unknown to the store.
var ErrNotFound = errors.New("run not found")

// Run is a persisted valuation: the full report plus bookkeeping.
type Run struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Report    *pipeline.Report `json:"report"`
}

// RunStore persists valuation runs.
// Hybrid: DB (Primary) when a pool is set, otherwise one JSON file per run.
type RunStore struct {
	pool    *pgxpool.Pool
	fileDir string
	now     func() time.Time
}

// NewRunStore creates a store. If pool is nil and dir is empty it defaults to
// .cache/dcf/runs.
func NewRunStore(pool *pgxpool.Pool, dir string) (*RunStore, error) {
	if pool == nil && dir == "" {
		dir = filepath.Join(".cache", "dcf", "runs")
	}
	if pool == nil {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create run store dir: %w", err)
		}
	}
	return &RunStore{pool: pool, fileDir: dir, now: time.Now}, nil
}

// Backend names the active storage for logging.
func (s *RunStore) Backend() string {
	if s.pool != nil {
		return "postgres"
	}
	return "file:" + s.fileDir
}

// Save assigns a new ID and stores the report.
func (s *RunStore) Save(ctx context.Context, report *pipeline.Report) (*Run, error) {
	if report == nil {
		return nil, fmt.Errorf("cannot save nil report")
	}
	run := &Run{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
		Report:    report,
	}

	data, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run: %w", err)
	}

	if s.pool != nil {
		query := `
			INSERT INTO dcf_runs (id, created_at, per_share, payload)
			VALUES ($1, $2, $3, $4)
		`
		_, err := s.pool.Exec(ctx, query, run.ID, run.CreatedAt, report.Valuation.IntrinsicValuePerShare, data)
		if err != nil {
			return nil, fmt.Errorf("failed to save run: %w", err)
		}
		return run, nil
	}

	if err := os.WriteFile(s.runPath(run.ID), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write run file: %w", err)
	}
	return run, nil
}

// Get loads a run by ID.
func (s *RunStore) Get(ctx context.Context, id string) (*Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var data []byte
	if s.pool != nil {
		query := `SELECT payload FROM dcf_runs WHERE id = $1`
		err := s.pool.QueryRow(ctx, query, id).Scan(&data)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load run: %w", err)
		}
	} else {
		var err error
		data, err = os.ReadFile(s.runPath(id))
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read run file: %w", err)
		}
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

func (s *RunStore) runPath(id string) string {
	return filepath.Join(s.fileDir, id+".json")
}
