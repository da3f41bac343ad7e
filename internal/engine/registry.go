// Package engine implements the rule-driven lead delivery scheduler: the
// timer registry for pending deliveries, the delivery timetable builder, the
// scheduling orchestrator with its per-rule and per-lead locks, and the
// outcome recorder.
package engine

import (
	"sync"
	"time"

	"leadrelay_backend/platform/logger"

	"github.com/google/uuid"
)

// Entries that were never removed (a fired timer that crashed before cleanup,
// a process hiccup) are purged once they are this old.
const maxEntryAge = 24 * time.Hour

// PendingDelivery is one deferred delivery owned by the registry. The timer
// handle stays private: cancelling an entry must release it so a stale
// callback can never fire.
type PendingDelivery struct {
	RuleID       uuid.UUID
	LeadSubid    string
	ScheduleTime time.Time
	CreatedAt    time.Time

	timer *time.Timer
}

// LeadStatus is the per-lead detail of a registry snapshot.
type LeadStatus struct {
	LeadSubid    string    `json:"leadSubid"`
	ScheduleTime time.Time `json:"scheduleTime"`
	Pending      bool      `json:"pending"`
}

// Snapshot is a read-only diagnostic view of one rule's pending deliveries.
type Snapshot struct {
	RuleID           uuid.UUID    `json:"ruleId"`
	Total            int          `json:"total"`
	Pending          int          `json:"pending"`
	NextScheduleTime *time.Time   `json:"nextScheduleTime,omitempty"`
	Leads            []LeadStatus `json:"leads"`
}

// Registry is the bookkeeping for all pending per-lead deferred deliveries.
// All state is private and mutex-guarded; there is no entry without a live
// timer handle.
type Registry struct {
	mu      sync.Mutex
	entries map[uuid.UUID][]*PendingDelivery
	now     func() time.Time
	log     *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		entries: make(map[uuid.UUID][]*PendingDelivery),
		now:     time.Now,
		log:     log,
	}
}

// Schedule registers a deferred delivery that fires at the given time. The
// firing timer removes its own entry before invoking fire, so the callback
// never observes itself as pending.
func (r *Registry) Schedule(ruleID uuid.UUID, leadSubid string, at time.Time, fire func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &PendingDelivery{
		RuleID:       ruleID,
		LeadSubid:    leadSubid,
		ScheduleTime: at,
		CreatedAt:    r.now(),
	}
	entry.timer = time.AfterFunc(time.Until(at), func() {
		r.fireAndRemove(ruleID, leadSubid)
		fire()
	})

	r.entries[ruleID] = append(r.entries[ruleID], entry)
}

// fireAndRemove drops the matching entry just before its callback runs.
func (r *Registry) fireAndRemove(ruleID uuid.UUID, leadSubid string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.entries[ruleID]
	for i, entry := range list {
		if entry.LeadSubid == leadSubid {
			r.entries[ruleID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(r.entries[ruleID]) == 0 {
		delete(r.entries, ruleID)
	}
}

// CancelAll stops every still-pending timer for the rule and removes all of
// its entries, fired-but-unremoved ones included. It returns how many timers
// were actually cancelled.
func (r *Registry) CancelAll(ruleID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cancelled := 0
	for _, entry := range r.entries[ruleID] {
		if entry.ScheduleTime.After(now) && entry.timer.Stop() {
			cancelled++
		}
	}
	delete(r.entries, ruleID)
	return cancelled
}

// Status returns a diagnostic snapshot for one rule.
func (r *Registry) Status(ruleID uuid.UUID) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	snap := Snapshot{RuleID: ruleID, Leads: []LeadStatus{}}
	for _, entry := range r.entries[ruleID] {
		pending := entry.ScheduleTime.After(now)
		snap.Total++
		if pending {
			snap.Pending++
			if snap.NextScheduleTime == nil || entry.ScheduleTime.Before(*snap.NextScheduleTime) {
				t := entry.ScheduleTime
				snap.NextScheduleTime = &t
			}
		}
		snap.Leads = append(snap.Leads, LeadStatus{
			LeadSubid:    entry.LeadSubid,
			ScheduleTime: entry.ScheduleTime,
			Pending:      pending,
		})
	}
	return snap
}

// GC drops entries older than 24h or already past their schedule time. This
// is a safety net against leaks, not part of the normal lifecycle: a healthy
// entry is removed by its own firing timer or by CancelAll.
func (r *Registry) GC() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for ruleID, list := range r.entries {
		kept := list[:0]
		for _, entry := range list {
			stale := now.Sub(entry.CreatedAt) > maxEntryAge || !entry.ScheduleTime.After(now)
			if stale {
				entry.timer.Stop()
				removed++
				continue
			}
			kept = append(kept, entry)
		}
		if len(kept) == 0 {
			delete(r.entries, ruleID)
		} else {
			r.entries[ruleID] = kept
		}
	}

	if removed > 0 && r.log != nil {
		r.log.Warn("timer registry gc removed stale entries", "count", removed)
	}
	return removed
}
