package service

import (
	"context"
	"testing"
	"time"

	"leadrelay_backend/internal/engine"
	"leadrelay_backend/internal/events"
	"leadrelay_backend/internal/rules/domain"
	"leadrelay_backend/internal/rules/repository"
	"leadrelay_backend/internal/rules/transport"
	"leadrelay_backend/platform/apperr"
	"leadrelay_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	rules map[uuid.UUID]domain.Rule
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rules: make(map[uuid.UUID]domain.Rule)}
}

func (f *fakeRepo) Create(_ context.Context, rule domain.Rule) (domain.Rule, error) {
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt
	f.rules[rule.ID] = rule
	return rule, nil
}

func (f *fakeRepo) Update(_ context.Context, rule domain.Rule) (domain.Rule, error) {
	if _, ok := f.rules[rule.ID]; !ok {
		return domain.Rule{}, apperr.NotFound("rule not found")
	}
	rule.UpdatedAt = time.Now()
	f.rules[rule.ID] = rule
	return rule, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.rules[id]; !ok {
		return apperr.NotFound("rule not found")
	}
	delete(f.rules, id)
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Rule, error) {
	rule, ok := f.rules[id]
	if !ok {
		return domain.Rule{}, apperr.NotFound("rule not found")
	}
	return rule, nil
}

func (f *fakeRepo) List(context.Context, repository.ListParams) ([]domain.Rule, int, error) {
	var out []domain.Rule
	for _, rule := range f.rules {
		out = append(out, rule)
	}
	return out, len(out), nil
}

func (f *fakeRepo) ListActive(context.Context) ([]domain.Rule, error) {
	var out []domain.Rule
	for _, rule := range f.rules {
		if rule.IsActive {
			out = append(out, rule)
		}
	}
	return out, nil
}

type fakeScheduler struct {
	scheduled chan uuid.UUID
	cancelled []uuid.UUID
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(chan uuid.UUID, 8)}
}

func (f *fakeScheduler) ScheduleLeads(_ context.Context, rule domain.Rule) (int, error) {
	f.scheduled <- rule.ID
	return 1, nil
}

func (f *fakeScheduler) TriggerRule(_ context.Context, ruleID uuid.UUID) (engine.TriggerResult, error) {
	return engine.TriggerResult{RuleID: ruleID, Triggered: true, Timestamp: time.Now()}, nil
}

func (f *fakeScheduler) CancelScheduled(ruleID uuid.UUID) engine.CancelResult {
	f.cancelled = append(f.cancelled, ruleID)
	return engine.CancelResult{RuleID: ruleID}
}

func (f *fakeScheduler) ScheduledStatus(ruleID uuid.UUID) engine.Snapshot {
	return engine.Snapshot{RuleID: ruleID}
}

type fakePlanner struct {
	planned []uuid.UUID
	stopped []uuid.UUID
}

func (f *fakePlanner) PlanDaily(ruleID uuid.UUID) { f.planned = append(f.planned, ruleID) }
func (f *fakePlanner) StopDaily(ruleID uuid.UUID) { f.stopped = append(f.stopped, ruleID) }

func newTestService() (*Service, *fakeRepo, *fakeScheduler, *fakePlanner) {
	log := logger.New("development")
	repo := newFakeRepo()
	scheduler := newFakeScheduler()
	planner := &fakePlanner{}
	svc := New(repo, scheduler, planner, events.NewInMemoryBus(log), log)
	return svc, repo, scheduler, planner
}

func validRequest() transport.CreateRuleRequest {
	return transport.CreateRuleRequest{
		Name:               "solar overflow",
		IsActive:           true,
		TargetProductID:    "prod-9",
		LeadVertical:       "solar",
		MinIntervalMinutes: 5,
		MaxIntervalMinutes: 15,
		DailyCapLimit:      20,
		SendWindowStart:    "09:00",
		SendWindowEnd:      "17:00",
	}
}

func TestCreateActiveRuleArmsScheduling(t *testing.T) {
	svc, repo, scheduler, planner := newTestService()

	resp, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := repo.rules[resp.ID]; !ok {
		t.Fatal("rule not persisted")
	}
	if len(planner.planned) != 1 || planner.planned[0] != resp.ID {
		t.Errorf("planned = %v, want [%v]", planner.planned, resp.ID)
	}

	select {
	case id := <-scheduler.scheduled:
		if id != resp.ID {
			t.Errorf("scheduled rule = %v, want %v", id, resp.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("activation cycle never ran")
	}
}

func TestCreateInactiveRuleDoesNotArm(t *testing.T) {
	svc, _, scheduler, planner := newTestService()

	req := validRequest()
	req.IsActive = false

	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(planner.planned) != 0 {
		t.Errorf("planned = %v, want none", planner.planned)
	}
	select {
	case id := <-scheduler.scheduled:
		t.Errorf("unexpected scheduling cycle for %v", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCreateRejectsIntervalOrder(t *testing.T) {
	svc, _, _, _ := newTestService()

	req := validRequest()
	req.MinIntervalMinutes = 30
	req.MaxIntervalMinutes = 10

	_, err := svc.Create(context.Background(), req)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestCreateRejectsCappedRuleWithoutWindow(t *testing.T) {
	svc, _, _, _ := newTestService()

	req := validRequest()
	req.SendWindowStart = ""
	req.SendWindowEnd = ""

	_, err := svc.Create(context.Background(), req)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestCreateAllowsInfiniteRuleWithoutWindow(t *testing.T) {
	svc, _, _, _ := newTestService()

	req := validRequest()
	req.IsInfinite = true
	req.IsActive = false
	req.DailyCapLimit = 0
	req.SendWindowStart = ""
	req.SendWindowEnd = ""

	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestUpdateDeactivationTearsDownScheduling(t *testing.T) {
	svc, _, scheduler, planner := newTestService()

	resp, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	<-scheduler.scheduled

	req := validRequest()
	req.IsActive = false
	if _, err := svc.Update(context.Background(), resp.ID, req); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(planner.stopped) != 1 || planner.stopped[0] != resp.ID {
		t.Errorf("stopped = %v, want [%v]", planner.stopped, resp.ID)
	}
	if len(scheduler.cancelled) != 1 || scheduler.cancelled[0] != resp.ID {
		t.Errorf("cancelled = %v, want [%v]", scheduler.cancelled, resp.ID)
	}
}

func TestDeleteCancelsPendingWork(t *testing.T) {
	svc, repo, scheduler, planner := newTestService()

	resp, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	<-scheduler.scheduled

	if err := svc.Delete(context.Background(), resp.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := repo.rules[resp.ID]; ok {
		t.Error("rule still persisted")
	}
	if len(planner.stopped) != 1 {
		t.Errorf("stopped = %v, want one entry", planner.stopped)
	}
	if len(scheduler.cancelled) != 1 {
		t.Errorf("cancelled = %v, want one entry", scheduler.cancelled)
	}
}

func TestDeleteUnknownRule(t *testing.T) {
	svc, _, _, _ := newTestService()

	err := svc.Delete(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestBootActiveRulesArmsPlans(t *testing.T) {
	svc, repo, _, planner := newTestService()

	active := domain.Rule{ID: uuid.New(), IsActive: true}
	inactive := domain.Rule{ID: uuid.New()}
	repo.rules[active.ID] = active
	repo.rules[inactive.ID] = inactive

	if err := svc.BootActiveRules(context.Background()); err != nil {
		t.Fatalf("BootActiveRules: %v", err)
	}
	if len(planner.planned) != 1 || planner.planned[0] != active.ID {
		t.Errorf("planned = %v, want [%v]", planner.planned, active.ID)
	}
}
