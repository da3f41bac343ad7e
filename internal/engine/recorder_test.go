package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"leadrelay_backend/internal/events"
	"leadrelay_backend/internal/inventory"
	"leadrelay_backend/platform/logger"
)

func TestRecorderCloseDrainsQueue(t *testing.T) {
	writer := newCaptureWriter()
	log := logger.New("development")
	recorder := NewRecorder(writer, events.NewInMemoryBus(log), log, 8, 2)

	rule := activeRule()
	for i := 0; i < 5; i++ {
		recorder.Enqueue(Outcome{
			Rule:           rule,
			Lead:           inventory.Lead{Subid: "lead"},
			Success:        true,
			ResponseStatus: 200,
			At:             time.Now(),
		})
	}
	recorder.Close()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	if len(writer.records) != 5 {
		t.Fatalf("records = %d, want 5", len(writer.records))
	}
}

func TestRecorderPublishesFailureEvent(t *testing.T) {
	writer := newCaptureWriter()
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)

	var mu sync.Mutex
	var failed []events.LeadDeliveryFailed
	done := make(chan struct{}, 1)
	bus.Subscribe(events.LeadDeliveryFailed{}.EventName(), events.HandlerFunc(func(_ context.Context, event events.Event) error {
		if e, ok := event.(events.LeadDeliveryFailed); ok {
			mu.Lock()
			failed = append(failed, e)
			mu.Unlock()
			done <- struct{}{}
		}
		return nil
	}))

	recorder := NewRecorder(writer, bus, log, 8, 1)
	rule := activeRule()
	recorder.Enqueue(Outcome{
		Rule:         rule,
		Lead:         inventory.Lead{Subid: "s1"},
		ErrorDetails: "delivery returned 400: rejected",
		At:           time.Now(),
	})
	recorder.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("failure event never published")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(failed) != 1 {
		t.Fatalf("events = %d, want 1", len(failed))
	}
	if failed[0].RuleID != rule.ID || failed[0].ErrorDetails == "" {
		t.Errorf("event = %+v", failed[0])
	}
}
