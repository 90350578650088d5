package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mescon/gptimer/internal/db"
	"github.com/mescon/gptimer/internal/domain"
	"github.com/mescon/gptimer/internal/eventbus"
	"github.com/mescon/gptimer/internal/testutil"
)

func TestRecovery_ClosesOpenRuns(t *testing.T) {
	sqlDB, err := testutil.NewTestDB()
	require.NoError(t, err)
	defer sqlDB.Close()

	start := time.Now().Add(-time.Hour)
	require.NoError(t, testutil.SeedRun(sqlDB, "running", start, 60000, domain.TimerStarted))
	require.NoError(t, testutil.SeedRun(sqlDB, "paused", start, 60000, domain.TimerStarted, domain.TimerPaused))
	require.NoError(t, testutil.SeedRun(sqlDB, "done", start, 60000, domain.TimerStarted, domain.TimerFinished))
	require.NoError(t, testutil.SeedRun(sqlDB, "stopped", start, 60000, domain.TimerStarted, domain.TimerStopped))

	eb := eventbus.NewEventBus(sqlDB)
	defer eb.Shutdown()

	closed := NewRecoveryService(sqlDB, eb).Run()
	assert.Equal(t, 2, closed)

	repo := &db.Repository{DB: sqlDB}
	runs, err := repo.ListRuns(10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 4)

	statuses := make(map[string]string)
	for _, run := range runs {
		statuses[run.RunID] = run.Status
	}
	assert.Equal(t, map[string]string{
		"running": db.RunStopped,
		"paused":  db.RunStopped,
		"done":    db.RunFinished,
		"stopped": db.RunStopped,
	}, statuses)

	events, err := repo.GetRunEvents("paused")
	require.NoError(t, err)
	require.Len(t, events, 3)
	data, ok := events[2].ParseRunEventData()
	require.True(t, ok)
	assert.Equal(t, OriginRecovery, data.Source)
	assert.Equal(t, int64(1000), data.ElapsedMs)
	assert.Equal(t, int64(59000), data.RemainingMs)

	// nothing left to close
	assert.Equal(t, 0, NewRecoveryService(sqlDB, eb).Run())
}

func TestRecovery_EmptyDatabase(t *testing.T) {
	sqlDB, err := testutil.NewTestDB()
	require.NoError(t, err)
	defer sqlDB.Close()

	pub := &testutil.MockPublisher{}
	assert.Equal(t, 0, NewRecoveryService(sqlDB, pub).Run())
	assert.Empty(t, pub.Types())
}
