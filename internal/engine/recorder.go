package engine

import (
	"context"
	"time"

	"leadrelay_backend/internal/events"
	"leadrelay_backend/internal/inventory"
	"leadrelay_backend/internal/records/repository"
	"leadrelay_backend/internal/rules/domain"
	"leadrelay_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RecordWriter persists delivery outcome records.
type RecordWriter interface {
	Insert(ctx context.Context, record repository.Record) error
}

// Outcome is one finished delivery attempt cycle queued for persistence.
type Outcome struct {
	Rule           domain.Rule
	Lead           inventory.Lead
	Success        bool
	ResponseStatus int
	ErrorDetails   string
	At             time.Time
}

// Recorder persists delivery outcomes off the timer goroutines through a
// bounded queue and a small worker pool, then publishes the matching domain
// event. Delivery callbacks enqueue and move on; they never touch the
// database directly.
type Recorder struct {
	writer RecordWriter
	bus    events.Bus
	log    *logger.Logger

	queue chan Outcome
	group *errgroup.Group
}

// NewRecorder creates a recorder with the given queue size and worker count.
func NewRecorder(writer RecordWriter, bus events.Bus, log *logger.Logger, bufferSize, workers int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if workers <= 0 {
		workers = 4
	}
	r := &Recorder{
		writer: writer,
		bus:    bus,
		log:    log,
		queue:  make(chan Outcome, bufferSize),
		group:  &errgroup.Group{},
	}
	for i := 0; i < workers; i++ {
		r.group.Go(r.work)
	}
	return r
}

// Enqueue hands an outcome to the worker pool. Blocks when the queue is full
// so outcomes are never silently dropped.
func (r *Recorder) Enqueue(outcome Outcome) {
	r.queue <- outcome
}

// Close stops accepting outcomes and waits until the queue is drained.
func (r *Recorder) Close() {
	close(r.queue)
	_ = r.group.Wait()
}

func (r *Recorder) work() error {
	for outcome := range r.queue {
		r.persist(outcome)
	}
	return nil
}

func (r *Recorder) persist(outcome Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	record := repository.Record{
		ID:                uuid.New(),
		RuleID:            outcome.Rule.ID,
		LeadSubid:         outcome.Lead.Subid,
		LeadName:          outcome.Lead.Name,
		LeadPhone:         outcome.Lead.Phone,
		LeadEmail:         outcome.Lead.Email,
		LeadCountry:       outcome.Lead.Country,
		TargetProductID:   outcome.Rule.TargetProductID,
		TargetProductName: outcome.Rule.TargetProductName,
		Status:            repository.StatusSuccess,
		SentAt:            outcome.At,
	}
	if outcome.Success {
		status := outcome.ResponseStatus
		record.ResponseStatus = &status
	} else {
		record.Status = repository.StatusError
		details := outcome.ErrorDetails
		record.ErrorDetails = &details
		if outcome.ResponseStatus != 0 {
			status := outcome.ResponseStatus
			record.ResponseStatus = &status
		}
	}

	if err := r.writer.Insert(ctx, record); err != nil {
		// The outcome still reaches the bus: alerting must not depend on a
		// healthy database.
		r.log.DatabaseError("insert lead sending record", err)
	}

	r.log.DeliveryOutcome(outcome.Rule.ID.String(), outcome.Lead.Subid,
		record.Status, outcome.ResponseStatus)

	if outcome.Success {
		r.bus.Publish(ctx, events.LeadDeliverySucceeded{
			BaseEvent:      events.NewBaseEvent(),
			RuleID:         outcome.Rule.ID,
			RuleName:       outcome.Rule.Name,
			LeadSubid:      outcome.Lead.Subid,
			ResponseStatus: outcome.ResponseStatus,
		})
		return
	}
	r.bus.Publish(ctx, events.LeadDeliveryFailed{
		BaseEvent:      events.NewBaseEvent(),
		RuleID:         outcome.Rule.ID,
		RuleName:       outcome.Rule.Name,
		LeadSubid:      outcome.Lead.Subid,
		ResponseStatus: outcome.ResponseStatus,
		ErrorDetails:   outcome.ErrorDetails,
	})
}
