// Package service implements the business logic for redistribution rules:
// validation, persistence and the lifecycle hooks that arm or tear down
// scheduling work when a rule's active state changes.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leadrelay_backend/internal/engine"
	"leadrelay_backend/internal/events"
	"leadrelay_backend/internal/rules/domain"
	"leadrelay_backend/internal/rules/repository"
	"leadrelay_backend/internal/rules/transport"
	"leadrelay_backend/platform/apperr"
	"leadrelay_backend/platform/logger"
	"leadrelay_backend/platform/sanitize"
)

const dateLayout = "2006-01-02"

// Scheduler is the slice of the engine the rules service drives.
type Scheduler interface {
	ScheduleLeads(ctx context.Context, rule domain.Rule) (int, error)
	TriggerRule(ctx context.Context, ruleID uuid.UUID) (engine.TriggerResult, error)
	CancelScheduled(ruleID uuid.UUID) engine.CancelResult
	ScheduledStatus(ruleID uuid.UUID) engine.Snapshot
}

// Planner manages a rule's daily replan entry.
type Planner interface {
	PlanDaily(ruleID uuid.UUID)
	StopDaily(ruleID uuid.UUID)
}

// Service implements rules business logic.
type Service struct {
	repo      repository.Repository
	scheduler Scheduler
	planner   Planner
	bus       events.Bus
	log       *logger.Logger
}

// New creates a new rules service.
func New(repo repository.Repository, scheduler Scheduler, planner Planner, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, scheduler: scheduler, planner: planner, bus: bus, log: log}
}

// Create validates and persists a new rule. An active rule is armed for its
// daily replan and gets an immediate scheduling cycle in the background.
func (s *Service) Create(ctx context.Context, req transport.CreateRuleRequest) (transport.RuleResponse, error) {
	rule, err := ruleFromRequest(uuid.New(), req)
	if err != nil {
		return transport.RuleResponse{}, err
	}

	created, err := s.repo.Create(ctx, rule)
	if err != nil {
		return transport.RuleResponse{}, err
	}

	if created.IsActive {
		s.armRule(created)
	}
	return toResponse(created), nil
}

// Update validates and replaces a rule. Activation and deactivation
// transitions arm or tear down the rule's scheduling work.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateRuleRequest) (transport.RuleResponse, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.RuleResponse{}, err
	}

	rule, err := ruleFromRequest(id, req)
	if err != nil {
		return transport.RuleResponse{}, err
	}

	updated, err := s.repo.Update(ctx, rule)
	if err != nil {
		return transport.RuleResponse{}, err
	}

	switch {
	case updated.IsActive && !current.IsActive:
		s.armRule(updated)
	case !updated.IsActive && current.IsActive:
		s.disarmRule(ctx, id)
	}
	return toResponse(updated), nil
}

// Delete removes a rule. Pending deliveries and the daily replan entry are
// cancelled before the row goes away.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	s.disarmRule(ctx, id)
	return s.repo.Delete(ctx, id)
}

// GetByID retrieves one rule.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.RuleResponse, error) {
	rule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.RuleResponse{}, err
	}
	return toResponse(rule), nil
}

// List retrieves rules with filters and pagination.
func (s *Service) List(ctx context.Context, req transport.ListRulesRequest) (transport.RuleListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	rules, total, err := s.repo.List(ctx, repository.ListParams{
		Search:   req.Search,
		IsActive: req.IsActive,
		Offset:   (page - 1) * pageSize,
		Limit:    pageSize,
	})
	if err != nil {
		return transport.RuleListResponse{}, err
	}

	items := make([]transport.RuleResponse, 0, len(rules))
	for _, rule := range rules {
		items = append(items, toResponse(rule))
	}
	return transport.RuleListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// Trigger runs a scheduling cycle for the rule right now.
func (s *Service) Trigger(ctx context.Context, id uuid.UUID) (engine.TriggerResult, error) {
	return s.scheduler.TriggerRule(ctx, id)
}

// Cancel drops every pending delivery for the rule.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (engine.CancelResult, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return engine.CancelResult{}, err
	}
	return s.scheduler.CancelScheduled(id), nil
}

// Schedule returns the pending delivery snapshot for the rule.
func (s *Service) Schedule(ctx context.Context, id uuid.UUID) (engine.Snapshot, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return engine.Snapshot{}, err
	}
	return s.scheduler.ScheduledStatus(id), nil
}

// BootActiveRules re-arms daily replans for every active rule. Called once at
// startup; pending deliveries do not survive a restart, the next cycle
// rebuilds them.
func (s *Service) BootActiveRules(ctx context.Context) error {
	rules, err := s.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("boot active rules: %w", err)
	}
	for _, rule := range rules {
		s.planner.PlanDaily(rule.ID)
	}
	s.log.Info("re-armed daily replans", "rules", len(rules))
	return nil
}

func (s *Service) armRule(rule domain.Rule) {
	s.planner.PlanDaily(rule.ID)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := s.scheduler.ScheduleLeads(ctx, rule); err != nil {
			s.log.WithRule(rule.ID.String()).Error("activation cycle failed", "error", err)
		}
	}()
}

func (s *Service) disarmRule(ctx context.Context, id uuid.UUID) {
	s.planner.StopDaily(id)
	s.scheduler.CancelScheduled(id)
	s.bus.Publish(ctx, events.RuleDeactivated{
		BaseEvent: events.NewBaseEvent(),
		RuleID:    id,
	})
}

// ruleFromRequest maps and semantically validates a create/update payload.
func ruleFromRequest(id uuid.UUID, req transport.CreateRuleRequest) (domain.Rule, error) {
	if req.MaxIntervalMinutes < req.MinIntervalMinutes {
		return domain.Rule{}, apperr.Validation("maxIntervalMinutes must be >= minIntervalMinutes")
	}
	if !req.IsInfinite {
		if req.DailyCapLimit < 1 {
			return domain.Rule{}, apperr.Validation("dailyCapLimit must be >= 1 for capped rules")
		}
		if req.SendWindowStart == "" || req.SendWindowEnd == "" {
			return domain.Rule{}, apperr.Validation("sendWindowStart and sendWindowEnd are required for capped rules")
		}
	}

	rule := domain.Rule{
		ID:                 id,
		Name:               sanitize.Text(req.Name),
		IsActive:           req.IsActive,
		IsInfinite:         req.IsInfinite,
		TargetProductID:    req.TargetProductID,
		TargetProductName:  sanitize.Text(req.TargetProductName),
		TargetVertical:     req.TargetVertical,
		TargetCountry:      req.TargetCountry,
		TargetAffiliate:    req.TargetAffiliate,
		LeadStatus:         req.LeadStatus,
		LeadVertical:       req.LeadVertical,
		LeadCountry:        req.LeadCountry,
		LeadAffiliate:      req.LeadAffiliate,
		MinIntervalMinutes: req.MinIntervalMinutes,
		MaxIntervalMinutes: req.MaxIntervalMinutes,
		DailyCapLimit:      req.DailyCapLimit,
		SendWindowStart:    req.SendWindowStart,
		SendWindowEnd:      req.SendWindowEnd,
	}

	var err error
	if rule.LeadDateFrom, err = parseDate(req.LeadDateFrom); err != nil {
		return domain.Rule{}, apperr.Validation("invalid leadDateFrom")
	}
	if rule.LeadDateTo, err = parseDate(req.LeadDateTo); err != nil {
		return domain.Rule{}, apperr.Validation("invalid leadDateTo")
	}
	if rule.SendDateFrom, err = parseDate(req.SendDateFrom); err != nil {
		return domain.Rule{}, apperr.Validation("invalid sendDateFrom")
	}
	if rule.SendDateTo, err = parseDate(req.SendDateTo); err != nil {
		return domain.Rule{}, apperr.Validation("invalid sendDateTo")
	}
	if rule.SendDateFrom != nil && rule.SendDateTo != nil && rule.SendDateTo.Before(*rule.SendDateFrom) {
		return domain.Rule{}, apperr.Validation("sendDateTo must be on or after sendDateFrom")
	}
	return rule, nil
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func toResponse(rule domain.Rule) transport.RuleResponse {
	return transport.RuleResponse{
		ID:                 rule.ID,
		Name:               rule.Name,
		IsActive:           rule.IsActive,
		IsInfinite:         rule.IsInfinite,
		TargetProductID:    rule.TargetProductID,
		TargetProductName:  rule.TargetProductName,
		TargetVertical:     rule.TargetVertical,
		TargetCountry:      rule.TargetCountry,
		TargetAffiliate:    rule.TargetAffiliate,
		LeadStatus:         rule.LeadStatus,
		LeadVertical:       rule.LeadVertical,
		LeadCountry:        rule.LeadCountry,
		LeadAffiliate:      rule.LeadAffiliate,
		LeadDateFrom:       formatDate(rule.LeadDateFrom),
		LeadDateTo:         formatDate(rule.LeadDateTo),
		MinIntervalMinutes: rule.MinIntervalMinutes,
		MaxIntervalMinutes: rule.MaxIntervalMinutes,
		DailyCapLimit:      rule.DailyCapLimit,
		SendWindowStart:    rule.SendWindowStart,
		SendWindowEnd:      rule.SendWindowEnd,
		SendDateFrom:       formatDate(rule.SendDateFrom),
		SendDateTo:         formatDate(rule.SendDateTo),
		CreatedAt:          rule.CreatedAt,
		UpdatedAt:          rule.UpdatedAt,
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
