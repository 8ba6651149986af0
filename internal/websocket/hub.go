package websocket

import (
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/contentforge/api/internal/logger"
	"github.com/contentforge/api/internal/model"
)

var (
	// ErrObserverClosed is returned when delivering to a closed observer.
	ErrObserverClosed = errors.New("observer closed")

	// ErrObserverBackedUp is returned when an observer's queue is full.
	ErrObserverBackedUp = errors.New("observer send queue full")
)

// Observer receives encoded progress events. Deliver must not block.
type Observer interface {
	Deliver(message []byte) error
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	jobID    string
	all      bool
	observer Observer
}

// Hub fans progress events out to the observers of each job
type Hub struct {
	// Subscriptions grouped by job ID
	jobs map[string]map[*Subscription]struct{}

	// Subscriptions receiving every job's events
	monitors map[*Subscription]struct{}

	mu  sync.RWMutex
	log *zap.SugaredLogger
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		jobs:     make(map[string]map[*Subscription]struct{}),
		monitors: make(map[*Subscription]struct{}),
		log:      logger.ComponentLogger("websocket.hub"),
	}
}

// Subscribe registers o for the events of jobID.
func (h *Hub) Subscribe(jobID string, o Observer) *Subscription {
	sub := &Subscription{jobID: jobID, observer: o}

	h.mu.Lock()
	if h.jobs[jobID] == nil {
		h.jobs[jobID] = make(map[*Subscription]struct{})
	}
	h.jobs[jobID][sub] = struct{}{}
	h.mu.Unlock()

	h.log.Debugw("observer subscribed", logger.FieldJobID, jobID)
	return sub
}

// SubscribeAll registers o for the events of every job.
func (h *Hub) SubscribeAll(o Observer) *Subscription {
	sub := &Subscription{all: true, observer: o}

	h.mu.Lock()
	h.monitors[sub] = struct{}{}
	h.mu.Unlock()

	h.log.Debug("monitor subscribed")
	return sub
}

// Unsubscribe removes sub. Calling it more than once is harmless.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if sub.all {
		delete(h.monitors, sub)
		return
	}
	if subs, ok := h.jobs[sub.jobID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.jobs, sub.jobID)
		}
	}
}

// Publish delivers event to the observers of jobID and to every monitor.
func (h *Hub) Publish(jobID string, event model.ProgressEvent) {
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.jobs[jobID])+len(h.monitors))
	for sub := range h.jobs[jobID] {
		targets = append(targets, sub)
	}
	for sub := range h.monitors {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	h.deliver(targets, event)
}

// Broadcast delivers event to every observer of every job and every monitor.
func (h *Hub) Broadcast(event model.ProgressEvent) {
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.monitors))
	for _, subs := range h.jobs {
		for sub := range subs {
			targets = append(targets, sub)
		}
	}
	for sub := range h.monitors {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	h.deliver(targets, event)
}

// ObserverCount returns the number of observers subscribed to jobID.
func (h *Hub) ObserverCount(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.jobs[jobID])
}

// JobCount returns the number of jobs with at least one observer.
func (h *Hub) JobCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.jobs)
}

func (h *Hub) deliver(targets []*Subscription, event model.ProgressEvent) {
	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.log.Errorw("failed to marshal progress event", logger.FieldError, err)
		return
	}

	for _, sub := range targets {
		if err := deliverSafe(sub.observer, data); err != nil {
			h.log.Warnw("dropping observer after failed delivery",
				logger.FieldJobID, event.JobID,
				logger.FieldError, err,
			)
			h.Unsubscribe(sub)
		}
	}
}

// deliverSafe keeps a panicking observer from taking down the producer.
func deliverSafe(o Observer, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("observer panicked: %v", r)
		}
	}()
	return o.Deliver(data)
}
