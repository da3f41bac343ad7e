package engine

import (
	"context"
	"sync"
	"time"

	"leadrelay_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// DailyPlanner re-runs a rule's scheduling cycle at local midnight, every
// day, until the rule's entry is removed. One cron instance carries an entry
// per planned rule; deactivating or deleting a rule removes its entry.
type DailyPlanner struct {
	engine *Engine
	rules  RuleSource
	cron   *cron.Cron
	log    *logger.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]cron.EntryID
}

// NewDailyPlanner creates a planner. Start must be called before entries fire.
func NewDailyPlanner(engine *Engine, rules RuleSource, log *logger.Logger) *DailyPlanner {
	return &DailyPlanner{
		engine:  engine,
		rules:   rules,
		cron:    cron.New(),
		log:     log,
		entries: make(map[uuid.UUID]cron.EntryID),
	}
}

// Start begins firing midnight entries.
func (p *DailyPlanner) Start() {
	p.cron.Start()
}

// Stop halts the cron loop and waits for running entries to finish.
func (p *DailyPlanner) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
}

// PlanDaily arms (or re-arms) the rule's midnight replan entry. The entry
// re-reads the rule on every firing so edits between midnights take effect
// without replanning.
func (p *DailyPlanner) PlanDaily(ruleID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entryID, ok := p.entries[ruleID]; ok {
		p.cron.Remove(entryID)
	}

	entryID, err := p.cron.AddFunc("0 0 * * *", func() {
		p.replan(ruleID)
	})
	if err != nil {
		// Static expression, cannot fail at runtime.
		p.log.WithRule(ruleID.String()).Error("failed to arm daily replan", "error", err)
		return
	}
	p.entries[ruleID] = entryID
	p.log.WithRule(ruleID.String()).Info("daily replan armed")
}

// StopDaily removes the rule's midnight entry.
func (p *DailyPlanner) StopDaily(ruleID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entryID, ok := p.entries[ruleID]
	if !ok {
		return
	}
	p.cron.Remove(entryID)
	delete(p.entries, ruleID)
	p.log.WithRule(ruleID.String()).Info("daily replan removed")
}

func (p *DailyPlanner) replan(ruleID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log := p.log.WithRule(ruleID.String())

	rule, err := p.rules.GetByID(ctx, ruleID)
	if err != nil {
		log.Error("daily replan could not load rule, removing entry", "error", err)
		p.StopDaily(ruleID)
		return
	}
	if !rule.IsActive {
		log.Info("rule no longer active, removing daily replan")
		p.StopDaily(ruleID)
		return
	}

	if _, err := p.engine.ScheduleLeads(ctx, rule); err != nil {
		log.Error("daily replan cycle failed", "error", err)
	}
}
