package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattdef/miniclaw-sub000/internal/models"
)

func TestJobIDFormat(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, now)
	job, err := s.ScheduleFireAt(now.Add(time.Hour), "echo", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(job.ID, "job_"), "got %q", job.ID)

	other, err := s.ScheduleFireAt(now.Add(time.Hour), "echo", nil)
	require.NoError(t, err)
	assert.NotEqual(t, job.ID, other.ID, "IDs are unique even within one millisecond")
}

func TestIntervalFailureAdvancesAndCounts(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, now)
	job, err := s.ScheduleInterval(2, "definitely-not-a-command-zz", nil)
	require.NoError(t, err)

	// Three ticks, each two minutes apart.
	for i := 1; i <= 3; i++ {
		tickTime := now.Add(time.Duration(2*i) * time.Minute)
		s.now = func() time.Time { return tickTime }
		s.Tick(context.Background())
	}

	jobs := s.List()
	require.Len(t, jobs, 1)
	got := jobs[0]
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, models.JobScheduled, got.Status)
	assert.Equal(t, 3, got.ExecutionCount)
	assert.NotEmpty(t, got.LastError)
	assert.True(t, got.NextExecution.After(s.now()))
}

func TestIntervalSuccessReArms(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, now)
	_, err := s.ScheduleInterval(2, "echo", []string{"hi"})
	require.NoError(t, err)

	later := now.Add(2 * time.Minute)
	s.now = func() time.Time { return later }
	s.Tick(context.Background())

	jobs := s.List()
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobScheduled, jobs[0].Status)
	assert.Equal(t, 1, jobs[0].ExecutionCount)
	assert.Empty(t, jobs[0].LastError)
	assert.Equal(t, later.Add(2*time.Minute), jobs[0].NextExecution)
}

func TestBuiltinCommandRunsInProcess(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ran := 0
	s, err := New(t.TempDir(), nil,
		WithNow(func() time.Time { return now }),
		WithBuiltin("tick_me", func(ctx context.Context) (string, error) {
			ran++
			return "done", nil
		}),
	)
	require.NoError(t, err)

	_, err = s.ScheduleInterval(2, "tick_me", nil)
	require.NoError(t, err)
	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	s.Tick(context.Background())
	assert.Equal(t, 1, ran)
}

func TestCancelWinsRaceAgainstExecution(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, now)
	job, err := s.ScheduleFireAt(now.Add(time.Second), "echo", []string{"hi"})
	require.NoError(t, err)

	// Claim the job as the tick would, then cancel before the
	// post-execution transition runs.
	s.now = func() time.Time { return now.Add(2 * time.Second) }
	due := s.claimDue(s.now())
	require.Len(t, due, 1)
	require.NoError(t, s.Cancel(job.ID))

	s.execute(context.Background(), due[0])

	s.mu.RLock()
	_, present := s.jobs[job.ID]
	s.mu.RUnlock()
	assert.False(t, present, "a cancelled job must not be resurrected by its executor")
}

func TestTickHookReportsLaunchCount(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var launched []int
	s, err := New(t.TempDir(), nil,
		WithNow(func() time.Time { return now }),
		WithTickHook(func(n int) { launched = append(launched, n) }),
	)
	require.NoError(t, err)

	_, err = s.ScheduleFireAt(now.Add(time.Second), "echo", nil)
	require.NoError(t, err)
	s.now = func() time.Time { return now.Add(time.Minute) }
	s.Tick(context.Background())
	require.Len(t, launched, 1)
	assert.Equal(t, 1, launched[0])
}
