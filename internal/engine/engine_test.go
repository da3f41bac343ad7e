package engine

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"leadrelay_backend/internal/delivery"
	"leadrelay_backend/internal/events"
	"leadrelay_backend/internal/inventory"
	"leadrelay_backend/internal/records/repository"
	"leadrelay_backend/internal/rules/domain"
	"leadrelay_backend/platform/apperr"
	"leadrelay_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRules struct {
	byID map[uuid.UUID]domain.Rule
}

func (f *fakeRules) GetByID(_ context.Context, id uuid.UUID) (domain.Rule, error) {
	rule, ok := f.byID[id]
	if !ok {
		return domain.Rule{}, apperr.NotFound("rule not found")
	}
	return rule, nil
}

func (f *fakeRules) ListActive(context.Context) ([]domain.Rule, error) { return nil, nil }

type fakeFetcher struct {
	leads []inventory.Lead
	block chan struct{}
	calls atomic.Int32
}

func (f *fakeFetcher) FetchLeadsForRule(context.Context, domain.Rule) []inventory.Lead {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.leads
}

type fakeDeliverer struct {
	result delivery.Result
	err    error
	block  chan struct{}
	calls  atomic.Int32
}

func (f *fakeDeliverer) Deliver(context.Context, inventory.Lead, domain.Rule) (delivery.Result, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.result, f.err
}

type captureWriter struct {
	mu      sync.Mutex
	records []repository.Record
	written chan repository.Record
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{written: make(chan repository.Record, 16)}
}

func (w *captureWriter) Insert(_ context.Context, record repository.Record) error {
	w.mu.Lock()
	w.records = append(w.records, record)
	w.mu.Unlock()
	w.written <- record
	return nil
}

func newTestEngine(t *testing.T, rules RuleSource, fetcher inventory.Fetcher, deliverer delivery.Deliverer, writer RecordWriter) *Engine {
	t.Helper()
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	registry := NewRegistry(log)
	timetable := NewTimetableBuilderWithRand(registry, rand.New(rand.NewSource(1)))
	recorder := NewRecorder(writer, bus, log, 16, 1)
	t.Cleanup(recorder.Close)
	return New(rules, fetcher, deliverer, registry, timetable, recorder, bus, log)
}

func activeRule() domain.Rule {
	return domain.Rule{
		ID:                 uuid.New(),
		Name:               "solar NL overflow",
		IsActive:           true,
		TargetProductID:    "prod-9",
		MinIntervalMinutes: 1,
		MaxIntervalMinutes: 2,
		DailyCapLimit:      10,
		SendWindowStart:    "00:00",
		SendWindowEnd:      "23:59",
	}
}

func TestScheduleLeadsSkipsWhileCycleRunning(t *testing.T) {
	fetcher := &fakeFetcher{block: make(chan struct{})}
	eng := newTestEngine(t, &fakeRules{}, fetcher, &fakeDeliverer{}, newCaptureWriter())
	rule := activeRule()

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = eng.ScheduleLeads(context.Background(), rule)
	}()

	// Wait for the first cycle to be inside the fetch, holding the lock.
	deadline := time.Now().Add(2 * time.Second)
	for fetcher.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first cycle never started fetching")
		}
		time.Sleep(time.Millisecond)
	}

	count, err := eng.ScheduleLeads(context.Background(), rule)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if count != 0 {
		t.Errorf("second cycle scheduled %d, want 0", count)
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}

	close(fetcher.block)
	<-firstDone

	// Lock released: a new cycle fetches again.
	if _, err := eng.ScheduleLeads(context.Background(), rule); err != nil {
		t.Fatalf("third cycle: %v", err)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("fetch calls after release = %d, want 2", got)
	}
}

func TestScheduleLeadsTruncatesToDailyCap(t *testing.T) {
	fetcher := &fakeFetcher{leads: testLeads("a", "b", "c", "d", "e")}
	eng := newTestEngine(t, &fakeRules{}, fetcher, &fakeDeliverer{}, newCaptureWriter())

	rule := activeRule()
	rule.DailyCapLimit = 2

	count, err := eng.ScheduleLeads(context.Background(), rule)
	if err != nil {
		t.Fatalf("ScheduleLeads: %v", err)
	}
	if count != 2 {
		t.Errorf("scheduled = %d, want 2", count)
	}
	eng.CancelScheduled(rule.ID)
}

func TestScheduleLeadsInactiveRuleIsNoop(t *testing.T) {
	fetcher := &fakeFetcher{leads: testLeads("a")}
	eng := newTestEngine(t, &fakeRules{}, fetcher, &fakeDeliverer{}, newCaptureWriter())

	rule := activeRule()
	rule.IsActive = false

	count, err := eng.ScheduleLeads(context.Background(), rule)
	if err != nil || count != 0 {
		t.Fatalf("got (%d, %v), want (0, nil)", count, err)
	}
	if fetcher.calls.Load() != 0 {
		t.Error("inactive rule must not fetch")
	}
}

func TestScheduleLeadsRejectsMissingWindow(t *testing.T) {
	eng := newTestEngine(t, &fakeRules{}, &fakeFetcher{}, &fakeDeliverer{}, newCaptureWriter())

	rule := activeRule()
	rule.SendWindowStart = ""
	rule.SendWindowEnd = ""

	if _, err := eng.ScheduleLeads(context.Background(), rule); err == nil {
		t.Fatal("expected error for capped rule without window")
	}
}

func TestTriggerRuleUnknownRule(t *testing.T) {
	eng := newTestEngine(t, &fakeRules{byID: map[uuid.UUID]domain.Rule{}}, &fakeFetcher{}, &fakeDeliverer{}, newCaptureWriter())

	_, err := eng.TriggerRule(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error for unknown rule")
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("error kind = %v, want not found", apperr.GetKind(err))
	}
}

func TestTriggerRuleRunsCycle(t *testing.T) {
	rule := activeRule()
	fetcher := &fakeFetcher{leads: testLeads("a", "b")}
	eng := newTestEngine(t, &fakeRules{byID: map[uuid.UUID]domain.Rule{rule.ID: rule}}, fetcher, &fakeDeliverer{}, newCaptureWriter())

	result, err := eng.TriggerRule(context.Background(), rule.ID)
	if err != nil {
		t.Fatalf("TriggerRule: %v", err)
	}
	if !result.Triggered || result.ScheduledCount != 2 {
		t.Errorf("result = %+v, want triggered with 2 scheduled", result)
	}
	eng.CancelScheduled(rule.ID)
}

func TestDeliverLeadRecordsSuccess(t *testing.T) {
	writer := newCaptureWriter()
	deliverer := &fakeDeliverer{result: delivery.Result{StatusCode: 200, Body: "ok"}}
	eng := newTestEngine(t, &fakeRules{}, &fakeFetcher{}, deliverer, writer)

	rule := activeRule()
	eng.deliverLead(rule, inventory.Lead{Subid: "s1", Name: "Jane"})

	select {
	case record := <-writer.written:
		if record.Status != repository.StatusSuccess {
			t.Errorf("status = %s, want SUCCESS", record.Status)
		}
		if record.ResponseStatus == nil || *record.ResponseStatus != 200 {
			t.Errorf("response status = %v, want 200", record.ResponseStatus)
		}
		if record.RuleID != rule.ID || record.LeadSubid != "s1" {
			t.Errorf("record identity = %v/%s", record.RuleID, record.LeadSubid)
		}
		if record.TargetProductID != rule.TargetProductID {
			t.Errorf("target product = %s, want %s", record.TargetProductID, rule.TargetProductID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no record written")
	}
}

func TestDeliverLeadRecordsFailure(t *testing.T) {
	writer := newCaptureWriter()
	deliverer := &fakeDeliverer{err: &delivery.StatusError{StatusCode: 400, Body: "rejected"}}
	eng := newTestEngine(t, &fakeRules{}, &fakeFetcher{}, deliverer, writer)

	eng.deliverLead(activeRule(), inventory.Lead{Subid: "s1"})

	select {
	case record := <-writer.written:
		if record.Status != repository.StatusError {
			t.Errorf("status = %s, want ERROR", record.Status)
		}
		if record.ResponseStatus == nil || *record.ResponseStatus != 400 {
			t.Errorf("response status = %v, want 400", record.ResponseStatus)
		}
		if record.ErrorDetails == nil || *record.ErrorDetails == "" {
			t.Error("error details missing")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no record written")
	}
}

func TestDeliverLeadSendLockBlocksDuplicate(t *testing.T) {
	writer := newCaptureWriter()
	deliverer := &fakeDeliverer{block: make(chan struct{}), result: delivery.Result{StatusCode: 200}}
	eng := newTestEngine(t, &fakeRules{}, &fakeFetcher{}, deliverer, writer)

	rule := activeRule()
	lead := inventory.Lead{Subid: "dup"}

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		eng.deliverLead(rule, lead)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for deliverer.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first delivery never started")
		}
		time.Sleep(time.Millisecond)
	}

	// Duplicate firing while the first is in flight is dropped.
	eng.deliverLead(rule, lead)
	if got := deliverer.calls.Load(); got != 1 {
		t.Errorf("deliver calls = %d, want 1", got)
	}

	close(deliverer.block)
	<-firstDone

	select {
	case <-writer.written:
	case <-time.After(2 * time.Second):
		t.Fatal("no record written")
	}
	select {
	case record := <-writer.written:
		t.Errorf("unexpected second record: %+v", record)
	case <-time.After(50 * time.Millisecond):
	}
}
