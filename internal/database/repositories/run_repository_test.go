package repositories

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JamesB-1qbit/Tangelo/internal/database"
	"github.com/JamesB-1qbit/Tangelo/internal/domain"
)

func newTestRepo(t *testing.T) *RunRepository {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return NewRunRepository(db.Conn(), zerolog.Nop())
}

func pendingRun(id string, submitted time.Time) *domain.RunResult {
	return &domain.RunResult{
		ID:          id,
		Status:      domain.RunPending,
		SubmittedAt: submitted,
	}
}

func TestCreateAndGetByID(t *testing.T) {
	repo := newTestRepo(t)

	run := pendingRun("run-1", time.Now().UTC())
	require.NoError(t, repo.Create(run, map[string]string{"basis": "sto-3g"}))

	got, err := repo.GetByID("run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, domain.RunPending, got.Status)
	assert.Nil(t, got.FinishedAt)
	assert.Empty(t, got.Fragments)
}

func TestGetByIDUnknownRun(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByID("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSetStatus(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.Create(pendingRun("run-1", time.Now().UTC()), nil))

	require.NoError(t, repo.SetStatus("run-1", domain.RunRunning))

	got, err := repo.GetByID("run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, got.Status)

	assert.Error(t, repo.SetStatus("missing", domain.RunRunning))
}

func TestFinishRoundTripsResult(t *testing.T) {
	repo := newTestRepo(t)
	run := pendingRun("run-1", time.Now().UTC())
	require.NoError(t, repo.Create(run, nil))

	finished := time.Now().UTC()
	run.Status = domain.RunCompleted
	run.Energy = -1.137
	run.Converged = true
	run.Iterations = 4
	run.FinishedAt = &finished
	run.Fragments = []domain.FragmentBreakdown{
		{FragmentID: "frag-0", Energy: -0.6, Weight: 1, Qubits: 4, Terms: 15, Solver: "vqe"},
		{FragmentID: "frag-1", Energy: -0.537, Weight: 1, Qubits: 2, Terms: 5, Solver: "ccsd"},
	}
	require.NoError(t, repo.Finish(run))

	got, err := repo.GetByID("run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, got.Status)
	assert.InDelta(t, -1.137, got.Energy, 1e-12)
	assert.True(t, got.Converged)
	assert.Equal(t, 4, got.Iterations)
	require.NotNil(t, got.FinishedAt)
	require.Len(t, got.Fragments, 2)
	assert.Equal(t, "frag-0", got.Fragments[0].FragmentID)
	assert.Equal(t, "ccsd", got.Fragments[1].Solver)
	assert.InDelta(t, -0.6, got.Fragments[0].Energy, 1e-12)
}

func TestFinishUnknownRun(t *testing.T) {
	repo := newTestRepo(t)
	run := pendingRun("missing", time.Now().UTC())
	run.Status = domain.RunFailed
	assert.Error(t, repo.Finish(run))
}

func TestListNewestFirstWithLimit(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		run := pendingRun(
			[]string{"run-a", "run-b", "run-c"}[i],
			base.Add(time.Duration(i)*time.Minute),
		)
		require.NoError(t, repo.Create(run, nil))
	}

	runs, err := repo.List(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)

	all, err := repo.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteOlderThanKeepsRecentAndActive(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)

	// Old terminal run: should be removed.
	done := pendingRun("run-old", old)
	require.NoError(t, repo.Create(done, nil))
	done.Status = domain.RunCompleted
	done.FinishedAt = &old
	require.NoError(t, repo.Finish(done))

	// Old but still running: must survive cleanup.
	require.NoError(t, repo.Create(pendingRun("run-active", old), nil))
	require.NoError(t, repo.SetStatus("run-active", domain.RunRunning))

	// Recent terminal run: inside the retention window.
	recent := pendingRun("run-recent", now)
	require.NoError(t, repo.Create(recent, nil))
	recent.Status = domain.RunFailed
	recent.FinishedAt = &now
	require.NoError(t, repo.Finish(recent))

	n, err := repo.DeleteOlderThan(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = repo.GetByID("run-old")
	assert.Error(t, err)
	_, err = repo.GetByID("run-active")
	assert.NoError(t, err)
	_, err = repo.GetByID("run-recent")
	assert.NoError(t, err)
}

func TestFailStaleMarksOrphanedRuns(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	require.NoError(t, repo.Create(pendingRun("run-stale", now.Add(-48*time.Hour)), nil))
	require.NoError(t, repo.SetStatus("run-stale", domain.RunRunning))
	require.NoError(t, repo.Create(pendingRun("run-fresh", now), nil))

	n, err := repo.FailStale(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	stale, err := repo.GetByID("run-stale")
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, stale.Status)
	assert.Contains(t, stale.Error, "abandoned")
	assert.NotNil(t, stale.FinishedAt)

	fresh, err := repo.GetByID("run-fresh")
	require.NoError(t, err)
	assert.Equal(t, domain.RunPending, fresh.Status)
}
