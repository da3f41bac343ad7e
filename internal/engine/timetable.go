package engine

import (
	"math/rand"
	"sync"
	"time"

	"leadrelay_backend/internal/inventory"

	"github.com/google/uuid"
)

// DeliverFunc is the callback a timetable slot fires with: the lead bound at
// build time, fire-and-forget.
type DeliverFunc func(lead inventory.Lead)

// TimetableBuilder spreads a batch of leads over a delivery window with
// randomized spacing. The random source is injectable so tests can pin the
// sequence.
type TimetableBuilder struct {
	registry *Registry

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewTimetableBuilder creates a builder seeded from the current time.
func NewTimetableBuilder(registry *Registry) *TimetableBuilder {
	return &TimetableBuilder{
		registry: registry,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewTimetableBuilderWithRand creates a builder with a fixed random source.
func NewTimetableBuilderWithRand(registry *Registry, rnd *rand.Rand) *TimetableBuilder {
	return &TimetableBuilder{registry: registry, rnd: rnd}
}

// Build assigns each lead a delivery time and registers it. The first lead
// fires at the window start; each next lead follows the previous by a uniform
// random gap in [minGap, maxGap] minutes. When capped is true, leads whose
// slot would land past the window end are skipped outright, never carried
// over. Returns how many leads were registered.
func (b *TimetableBuilder) Build(
	ruleID uuid.UUID,
	leads []inventory.Lead,
	window deliveryWindow,
	capped bool,
	minGap, maxGap int,
	deliver DeliverFunc,
) int {
	at := window.start
	scheduled := 0
	for _, lead := range leads {
		if scheduled > 0 {
			at = at.Add(b.gap(minGap, maxGap))
		}
		if capped && at.After(window.end) {
			break
		}

		lead := lead
		b.registry.Schedule(ruleID, lead.Subid, at, func() {
			deliver(lead)
		})
		scheduled++
	}
	return scheduled
}

// gap draws a uniform duration in [minGap, maxGap] whole minutes.
func (b *TimetableBuilder) gap(minGap, maxGap int) time.Duration {
	if maxGap <= minGap {
		return time.Duration(minGap) * time.Minute
	}
	b.mu.Lock()
	n := b.rnd.Intn(maxGap - minGap + 1)
	b.mu.Unlock()
	return time.Duration(minGap+n) * time.Minute
}
