package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/JamesB-1qbit/Tangelo/internal/domain"
)

// RunRepository persists workflow runs
type RunRepository struct {
	*BaseRepository
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		BaseRepository: NewBase(db, log.With().Str("repo", "run").Logger()),
	}
}

// Create inserts a new pending run with its submitted request.
func (r *RunRepository) Create(run *domain.RunResult, request interface{}) error {
	reqJSON, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode run request: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO runs (id, status, request, submitted_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(run.Status), string(reqJSON), run.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// SetStatus updates just the lifecycle status.
func (r *RunRepository) SetStatus(id string, status domain.RunStatus) error {
	res, err := r.db.Exec(`UPDATE runs SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// Finish records the terminal state of a run.
func (r *RunRepository) Finish(run *domain.RunResult) error {
	var fragments []byte
	if len(run.Fragments) > 0 {
		var err error
		fragments, err = msgpack.Marshal(run.Fragments)
		if err != nil {
			return fmt.Errorf("failed to encode fragment breakdown: %w", err)
		}
	}

	res, err := r.db.Exec(
		`UPDATE runs SET status = ?, energy = ?, converged = ?, iterations = ?,
			fragments = ?, error = ?, finished_at = ?
		 WHERE id = ?`,
		string(run.Status), run.Energy, run.Converged, run.Iterations,
		fragments, run.Error, run.FinishedAt, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// GetByID fetches one run.
func (r *RunRepository) GetByID(id string) (*domain.RunResult, error) {
	row := r.db.QueryRow(
		`SELECT id, status, energy, converged, iterations, fragments, error,
			submitted_at, finished_at
		 FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return run, err
}

// List returns runs newest-first, capped at limit (0 means 100).
func (r *RunRepository) List(limit int) ([]*domain.RunResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(
		`SELECT id, status, energy, converged, iterations, fragments, error,
			submitted_at, finished_at
		 FROM runs ORDER BY submitted_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.RunResult
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteOlderThan removes terminal runs finished before the cutoff. Returns
// the number of rows removed.
func (r *RunRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(
		`DELETE FROM runs
		 WHERE finished_at IS NOT NULL AND finished_at < ?
		   AND status IN (?, ?, ?)`,
		cutoff, string(domain.RunCompleted), string(domain.RunFailed), string(domain.RunCancelled))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}
	return res.RowsAffected()
}

// FailStale marks runs stuck in PENDING or RUNNING since before the cutoff as
// failed. Covers runs orphaned by an unclean shutdown.
func (r *RunRepository) FailStale(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(
		`UPDATE runs SET status = ?, error = 'abandoned: no progress since process restart', finished_at = ?
		 WHERE submitted_at < ? AND status IN (?, ?)`,
		string(domain.RunFailed), time.Now(), cutoff,
		string(domain.RunPending), string(domain.RunRunning))
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale runs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*domain.RunResult, error) {
	var (
		run       domain.RunResult
		status    string
		fragments []byte
		finished  sql.NullTime
	)
	err := row.Scan(&run.ID, &status, &run.Energy, &run.Converged, &run.Iterations,
		&fragments, &run.Error, &run.SubmittedAt, &finished)
	if err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if len(fragments) > 0 {
		if err := msgpack.Unmarshal(fragments, &run.Fragments); err != nil {
			return nil, fmt.Errorf("failed to decode fragment breakdown for run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}
