package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"leadrelay_backend/internal/delivery"
	"leadrelay_backend/internal/events"
	"leadrelay_backend/internal/inventory"
	"leadrelay_backend/internal/rules/domain"
	"leadrelay_backend/platform/logger"

	"github.com/google/uuid"
)

// deliverTimeout bounds one delivery attempt cycle, retries included.
const deliverTimeout = 30 * time.Second

// RuleSource is the engine's read access to rule storage.
type RuleSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Rule, error)
	ListActive(ctx context.Context) ([]domain.Rule, error)
}

// TriggerResult reports a manual trigger request.
type TriggerResult struct {
	RuleID         uuid.UUID `json:"ruleId"`
	Triggered      bool      `json:"triggered"`
	ScheduledCount int       `json:"scheduledCount"`
	Timestamp      time.Time `json:"timestamp"`
}

// CancelResult reports a cancellation request.
type CancelResult struct {
	RuleID         uuid.UUID `json:"ruleId"`
	CancelledCount int       `json:"cancelledCount"`
}

type sendKey struct {
	ruleID uuid.UUID
	subid  string
}

// Engine orchestrates scheduling cycles: it fetches candidate leads, builds
// the delivery timetable, and owns the locks that keep concurrent triggers
// and duplicate sends out. All state lives on the struct, guarded by its own
// mutexes.
type Engine struct {
	rules     RuleSource
	fetcher   inventory.Fetcher
	deliverer delivery.Deliverer
	registry  *Registry
	timetable *TimetableBuilder
	recorder  *Recorder
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time

	runningMu sync.Mutex
	running   map[uuid.UUID]bool

	sendingMu sync.Mutex
	sending   map[sendKey]bool
}

// New wires the scheduling engine.
func New(
	rules RuleSource,
	fetcher inventory.Fetcher,
	deliverer delivery.Deliverer,
	registry *Registry,
	timetable *TimetableBuilder,
	recorder *Recorder,
	bus events.Bus,
	log *logger.Logger,
) *Engine {
	return &Engine{
		rules:     rules,
		fetcher:   fetcher,
		deliverer: deliverer,
		registry:  registry,
		timetable: timetable,
		recorder:  recorder,
		bus:       bus,
		log:       log,
		now:       time.Now,
		running:   make(map[uuid.UUID]bool),
		sending:   make(map[sendKey]bool),
	}
}

// ScheduleLeads runs one scheduling cycle for the rule: fetch candidates,
// truncate to the daily cap, spread them over the window and register the
// timers. A cycle already running for the same rule makes this call a no-op
// returning (0, nil). The lock covers only this synchronous cycle, not the
// deferred deliveries it registers.
func (e *Engine) ScheduleLeads(ctx context.Context, rule domain.Rule) (int, error) {
	if !e.markRunning(rule.ID) {
		e.log.WithRule(rule.ID.String()).Info("scheduling cycle already running, skipping")
		return 0, nil
	}
	defer e.markComplete(rule.ID)

	log := e.log.WithRule(rule.ID.String())

	if !rule.IsActive {
		log.Info("rule inactive, skipping cycle")
		return 0, nil
	}
	now := e.now()
	if !rule.InSendDateRange(now) {
		log.Info("rule outside its send date range, skipping cycle")
		return 0, nil
	}

	window, err := e.windowFor(rule, now)
	if err != nil {
		log.Error("invalid send window, aborting cycle", "error", err)
		return 0, err
	}

	leads := e.fetcher.FetchLeadsForRule(ctx, rule)
	if len(leads) == 0 {
		log.Info("no leads to schedule")
		return 0, nil
	}
	if limit := rule.EffectiveCap(len(leads)); limit < len(leads) {
		leads = leads[:limit]
	}

	scheduled := e.timetable.Build(rule.ID, leads, window, !rule.IsInfinite,
		rule.MinIntervalMinutes, rule.MaxIntervalMinutes,
		func(lead inventory.Lead) { e.deliverLead(rule, lead) })

	log.Info("scheduling cycle complete",
		"candidates", len(leads),
		"scheduled", scheduled,
		"window_start", window.start,
		"window_end", window.end,
	)
	e.bus.Publish(ctx, events.RuleScheduled{
		BaseEvent: events.NewBaseEvent(),
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		LeadCount: scheduled,
	})
	return scheduled, nil
}

func (e *Engine) windowFor(rule domain.Rule, now time.Time) (deliveryWindow, error) {
	if rule.IsInfinite {
		return openWindow(now), nil
	}
	if !rule.HasWindow() {
		return deliveryWindow{}, errors.New("rule has no send window configured")
	}
	return resolveWindow(now, rule.SendWindowStart, rule.SendWindowEnd)
}

// deliverLead is the timer callback: one delivery attempt cycle for one lead.
// The per-(rule, lead) send lock makes a duplicate firing a no-op.
func (e *Engine) deliverLead(rule domain.Rule, lead inventory.Lead) {
	key := sendKey{ruleID: rule.ID, subid: lead.Subid}
	if !e.markSending(key) {
		e.log.WithRule(rule.ID.String()).Warn("lead already being delivered, skipping",
			"lead_subid", lead.Subid)
		return
	}
	defer e.unmarkSending(key)

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	result, err := e.deliverer.Deliver(ctx, lead, rule)
	outcome := Outcome{Rule: rule, Lead: lead, At: e.now()}
	if err != nil {
		outcome.ErrorDetails = err.Error()
		var statusErr *delivery.StatusError
		if errors.As(err, &statusErr) {
			outcome.ResponseStatus = statusErr.StatusCode
		}
	} else {
		outcome.Success = true
		outcome.ResponseStatus = result.StatusCode
	}
	e.recorder.Enqueue(outcome)
}

// TriggerRule runs a scheduling cycle for the rule right now, synchronously.
// Unknown rules surface as a not-found error for the HTTP layer to map.
func (e *Engine) TriggerRule(ctx context.Context, ruleID uuid.UUID) (TriggerResult, error) {
	rule, err := e.rules.GetByID(ctx, ruleID)
	if err != nil {
		return TriggerResult{}, err
	}

	count, err := e.ScheduleLeads(ctx, rule)
	if err != nil {
		return TriggerResult{}, fmt.Errorf("trigger rule %s: %w", ruleID, err)
	}
	return TriggerResult{
		RuleID:         ruleID,
		Triggered:      true,
		ScheduledCount: count,
		Timestamp:      e.now(),
	}, nil
}

// CancelScheduled cancels every pending delivery for the rule.
func (e *Engine) CancelScheduled(ruleID uuid.UUID) CancelResult {
	cancelled := e.registry.CancelAll(ruleID)
	e.log.WithRule(ruleID.String()).Info("cancelled pending deliveries", "count", cancelled)
	return CancelResult{RuleID: ruleID, CancelledCount: cancelled}
}

// ScheduledStatus returns the registry snapshot for the rule.
func (e *Engine) ScheduledStatus(ruleID uuid.UUID) Snapshot {
	return e.registry.Status(ruleID)
}

// RunGC periodically purges stale registry entries until ctx is done.
func (e *Engine) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.registry.GC()
		}
	}
}

func (e *Engine) markRunning(ruleID uuid.UUID) bool {
	e.runningMu.Lock()
	defer e.runningMu.Unlock()
	if e.running[ruleID] {
		return false
	}
	e.running[ruleID] = true
	return true
}

func (e *Engine) markComplete(ruleID uuid.UUID) {
	e.runningMu.Lock()
	defer e.runningMu.Unlock()
	delete(e.running, ruleID)
}

func (e *Engine) markSending(key sendKey) bool {
	e.sendingMu.Lock()
	defer e.sendingMu.Unlock()
	if e.sending[key] {
		return false
	}
	e.sending[key] = true
	return true
}

func (e *Engine) unmarkSending(key sendKey) {
	e.sendingMu.Lock()
	defer e.sendingMu.Unlock()
	delete(e.sending, key)
}
