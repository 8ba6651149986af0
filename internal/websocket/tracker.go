package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/contentforge/api/internal/model"
	"github.com/contentforge/api/internal/pipeline"
)

const contentPreviewLen = 500

var _ pipeline.Reporter = (*Tracker)(nil)

// EventSink receives every event a tracker emits, after hub delivery.
type EventSink func(ctx context.Context, event model.ProgressEvent)

// Tracker turns one job's lifecycle into progress events on a Hub.
type Tracker struct {
	jobID     string
	topic     string
	hub       *Hub
	sinks     []EventSink
	phaseIdx  atomic.Int32
	startedAt time.Time
	now       func() time.Time
}

func newTracker(hub *Hub, jobID, topic string, sinks []EventSink) *Tracker {
	t := &Tracker{
		jobID:     jobID,
		topic:     topic,
		hub:       hub,
		sinks:     sinks,
		startedAt: time.Now().UTC(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	t.phaseIdx.Store(-1)
	return t
}

// CurrentPhase returns the phase last entered and its index, -1 before start.
func (t *Tracker) CurrentPhase() (model.Phase, int) {
	idx := int(t.phaseIdx.Load())
	if idx < 0 || idx >= len(model.Phases) {
		return "", -1
	}
	return model.Phases[idx], idx
}

// Started announces the run.
func (t *Tracker) Started(ctx context.Context, job *model.Job) {
	t.emit(ctx, model.ProgressEvent{
		Type:            model.EventTypeStarted,
		JobID:           t.jobID,
		Status:          model.StatusPending,
		ProgressPercent: 0,
		Message:         "Starting content generation...",
		Timestamp:       t.now(),
		Topic:           t.topic,
		TotalPhases:     len(model.Phases),
	})
}

// PhaseStarted announces entry into phase.
func (t *Tracker) PhaseStarted(ctx context.Context, job *model.Job, phase model.Phase) {
	idx := phase.Index()
	if idx < 0 {
		return
	}
	t.phaseIdx.Store(int32(idx))

	completed := idx
	t.emit(ctx, model.ProgressEvent{
		Type:            model.EventTypeProgress,
		JobID:           t.jobID,
		Phase:           phase,
		Status:          phase.Status(),
		ProgressPercent: phase.ProgressPercent(),
		Message:         phase.Message(),
		Timestamp:       t.now(),
		PhasesCompleted: &completed,
		TotalPhases:     len(model.Phases),
	})
}

// Completed announces successful termination.
func (t *Tracker) Completed(ctx context.Context, job *model.Job) {
	elapsed := t.elapsed(job)
	t.emit(ctx, model.ProgressEvent{
		Type:                  model.EventTypeCompleted,
		JobID:                 t.jobID,
		Phase:                 job.Phase,
		Status:                model.StatusCompleted,
		ProgressPercent:       100,
		Message:               "Content generation complete!",
		Timestamp:             t.now(),
		ProcessingTimeSeconds: &elapsed,
		ContentPreview:        preview(job.Content),
	})
}

// Failed announces terminal failure at phase.
func (t *Tracker) Failed(ctx context.Context, job *model.Job, phase model.Phase, err error) {
	elapsed := t.elapsed(job)
	progress := 0
	if _, idx := t.CurrentPhase(); idx >= 0 {
		progress = model.Phases[idx].ProgressPercent()
	}
	t.emit(ctx, model.ProgressEvent{
		Type:                  model.EventTypeError,
		JobID:                 t.jobID,
		Phase:                 phase,
		Status:                model.StatusFailed,
		ProgressPercent:       progress,
		Message:               fmt.Sprintf("Error: %v", err),
		Timestamp:             t.now(),
		Error:                 err.Error(),
		FailedPhase:           phase,
		ProcessingTimeSeconds: &elapsed,
	})
}

func (t *Tracker) emit(ctx context.Context, event model.ProgressEvent) {
	t.hub.Publish(t.jobID, event)
	for _, sink := range t.sinks {
		sink(ctx, event)
	}
}

func (t *Tracker) elapsed(job *model.Job) float64 {
	if d, ok := job.ProcessingTime(); ok {
		return d.Seconds()
	}
	return t.now().Sub(t.startedAt).Seconds()
}

func preview(content string) string {
	r := []rune(content)
	if len(r) <= contentPreviewLen {
		return content
	}
	return string(r[:contentPreviewLen])
}

// TrackerRegistry maps job IDs to live trackers. Trackers are opened when a
// run starts and closed when it reaches a terminal state.
type TrackerRegistry struct {
	hub      *Hub
	sinks    []EventSink
	mu       sync.RWMutex
	trackers map[string]*Tracker
}

// NewTrackerRegistry creates a registry publishing on hub. Every tracker it
// opens also feeds sinks.
func NewTrackerRegistry(hub *Hub, sinks ...EventSink) *TrackerRegistry {
	return &TrackerRegistry{
		hub:      hub,
		sinks:    sinks,
		trackers: make(map[string]*Tracker),
	}
}

// Open returns the tracker for jobID, creating it if needed.
func (r *TrackerRegistry) Open(jobID, topic string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.trackers[jobID]; ok {
		return t
	}
	t := newTracker(r.hub, jobID, topic, r.sinks)
	r.trackers[jobID] = t
	return t
}

// Get returns the live tracker for jobID.
func (r *TrackerRegistry) Get(jobID string) (*Tracker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trackers[jobID]
	return t, ok
}

// Close forgets the tracker for jobID.
func (r *TrackerRegistry) Close(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trackers, jobID)
}

// Len returns the number of live trackers.
func (r *TrackerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trackers)
}
