package scheduler

import (
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func TestAddJob(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("@every 15m", &countingJob{name: "refresh"}))
	require.NoError(t, s.AddJob("0 3 * * *", &countingJob{name: "checkpoint"}))

	err := s.AddJob("@hourly", &countingJob{name: "refresh"})
	assert.Error(t, err, "duplicate names are rejected")

	err = s.AddJob("every now and then", &countingJob{name: "bad"})
	assert.Error(t, err)

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "checkpoint", jobs[0].Name)
	assert.Equal(t, "refresh", jobs[1].Name)
	assert.Equal(t, "@every 15m", jobs[1].Schedule)
}

func TestRunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "refresh", err: errors.New("upstream down")}

	err := s.RunNow(job)
	assert.EqualError(t, err, "upstream down")
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestRunRecordsLastResult(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "refresh", err: errors.New("upstream down")}
	require.NoError(t, s.AddJob("@every 1h", job))

	s.run(s.entries["refresh"])

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "upstream down", jobs[0].LastError)
	assert.False(t, jobs[0].LastRun.IsZero())
}

func TestStartStop(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "fast"}
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestWALCheckpointJob(t *testing.T) {
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "snapshots.db"), Name: "snapshots"})
	require.NoError(t, err)
	defer db.Close()

	job := NewWALCheckpointJob(zerolog.Nop(), db, nil)
	assert.Equal(t, "wal_checkpoint", job.Name())
	assert.NoError(t, job.Run())
}

func TestWALCheckpointJob_NoDatabases(t *testing.T) {
	job := NewWALCheckpointJob(zerolog.Nop())
	assert.NoError(t, job.Run())
}
