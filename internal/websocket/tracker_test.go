package websocket

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentforge/api/internal/model"
)

func newTestJob() *model.Job {
	job := model.NewJob(model.ContentRequest{Topic: "Go concurrency patterns"})
	start := time.Now().Add(-2 * time.Second)
	job.StartedAt = &start
	return job
}

func TestTracker_PhaseEvents(t *testing.T) {
	hub := NewHub()
	registry := NewTrackerRegistry(hub)
	job := newTestJob()
	obs := &recordingObserver{}
	hub.Subscribe(job.ID, obs)

	tracker := registry.Open(job.ID, job.Request.Topic)
	ctx := context.Background()

	tracker.Started(ctx, job)
	for _, phase := range model.Phases {
		tracker.PhaseStarted(ctx, job, phase)
	}

	events := obs.events(t)
	require.Len(t, events, 1+len(model.Phases))

	assert.Equal(t, model.EventTypeStarted, events[0].Type)
	assert.Equal(t, 0, events[0].ProgressPercent)
	assert.Equal(t, "Go concurrency patterns", events[0].Topic)

	for i, ev := range events[1:] {
		assert.Equal(t, model.EventTypeProgress, ev.Type)
		assert.Equal(t, model.Phases[i], ev.Phase)
		assert.Equal(t, (i+1)*100/5, ev.ProgressPercent)
		require.NotNil(t, ev.PhasesCompleted)
		assert.Equal(t, i, *ev.PhasesCompleted)
		assert.Equal(t, 5, ev.TotalPhases)
	}

	phase, idx := tracker.CurrentPhase()
	assert.Equal(t, model.PhaseFinalize, phase)
	assert.Equal(t, 4, idx)
}

func TestTracker_CompletedCarriesPreview(t *testing.T) {
	hub := NewHub()
	job := newTestJob()
	job.Phase = model.PhaseFinalize
	job.Content = strings.Repeat("é", 600)
	obs := &recordingObserver{}
	hub.Subscribe(job.ID, obs)

	tracker := NewTrackerRegistry(hub).Open(job.ID, job.Request.Topic)
	tracker.Completed(context.Background(), job)

	events := obs.events(t)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, model.EventTypeCompleted, ev.Type)
	assert.Equal(t, 100, ev.ProgressPercent)
	assert.Equal(t, 500, len([]rune(ev.ContentPreview)))
	require.NotNil(t, ev.ProcessingTimeSeconds)
	assert.Greater(t, *ev.ProcessingTimeSeconds, 0.0)
}

func TestTracker_FailedReportsCurrentProgress(t *testing.T) {
	hub := NewHub()
	job := newTestJob()
	obs := &recordingObserver{}
	hub.Subscribe(job.ID, obs)

	tracker := NewTrackerRegistry(hub).Open(job.ID, job.Request.Topic)
	ctx := context.Background()
	tracker.PhaseStarted(ctx, job, model.PhaseResearch)
	tracker.PhaseStarted(ctx, job, model.PhasePlan)
	tracker.PhaseStarted(ctx, job, model.PhaseWrite)
	tracker.Failed(ctx, job, model.PhaseWrite, errors.New("rate limited"))

	events := obs.events(t)
	require.Len(t, events, 4)
	ev := events[3]
	assert.Equal(t, model.EventTypeError, ev.Type)
	assert.Equal(t, model.StatusFailed, ev.Status)
	assert.Equal(t, 60, ev.ProgressPercent)
	assert.Equal(t, model.PhaseWrite, ev.FailedPhase)
	assert.Equal(t, "rate limited", ev.Error)
	assert.Equal(t, "Error: rate limited", ev.Message)
}

func TestTrackerRegistry_Lifecycle(t *testing.T) {
	registry := NewTrackerRegistry(NewHub())

	first := registry.Open("job-1", "topic")
	again := registry.Open("job-1", "topic")
	assert.Same(t, first, again)
	assert.Equal(t, 1, registry.Len())

	got, ok := registry.Get("job-1")
	require.True(t, ok)
	assert.Same(t, first, got)

	_, idx := got.CurrentPhase()
	assert.Equal(t, -1, idx)

	registry.Close("job-1")
	registry.Close("job-1")
	_, ok = registry.Get("job-1")
	assert.False(t, ok)
	assert.Equal(t, 0, registry.Len())
}

func TestTrackerRegistry_SinksSeeEveryEvent(t *testing.T) {
	var seen []string
	sink := func(_ context.Context, ev model.ProgressEvent) {
		seen = append(seen, ev.Type)
	}
	registry := NewTrackerRegistry(NewHub(), sink)
	job := newTestJob()
	job.Content = "body"

	tracker := registry.Open(job.ID, job.Request.Topic)
	ctx := context.Background()
	tracker.Started(ctx, job)
	tracker.PhaseStarted(ctx, job, model.PhaseResearch)
	tracker.Completed(ctx, job)

	assert.Equal(t, []string{model.EventTypeStarted, model.EventTypeProgress, model.EventTypeCompleted}, seen)
}
