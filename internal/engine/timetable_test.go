package engine

import (
	"math/rand"
	"testing"
	"time"

	"leadrelay_backend/internal/inventory"

	"github.com/google/uuid"
)

func testLeads(subids ...string) []inventory.Lead {
	leads := make([]inventory.Lead, 0, len(subids))
	for _, s := range subids {
		leads = append(leads, inventory.Lead{Subid: s})
	}
	return leads
}

func TestTimetableFirstSlotAtWindowStart(t *testing.T) {
	reg := testRegistry()
	builder := NewTimetableBuilderWithRand(reg, rand.New(rand.NewSource(1)))
	ruleID := uuid.New()

	start := time.Now().Add(time.Hour)
	window := deliveryWindow{start: start, end: start.Add(8 * time.Hour)}

	scheduled := builder.Build(ruleID, testLeads("a"), window, true, 5, 10, func(inventory.Lead) {})
	if scheduled != 1 {
		t.Fatalf("scheduled = %d, want 1", scheduled)
	}

	snap := reg.Status(ruleID)
	if !snap.Leads[0].ScheduleTime.Equal(start) {
		t.Errorf("first slot = %v, want window start %v", snap.Leads[0].ScheduleTime, start)
	}
	reg.CancelAll(ruleID)
}

func TestTimetableGapsWithinBounds(t *testing.T) {
	reg := testRegistry()
	builder := NewTimetableBuilderWithRand(reg, rand.New(rand.NewSource(42)))
	ruleID := uuid.New()

	start := time.Now().Add(time.Hour)
	window := deliveryWindow{start: start, end: start.Add(24 * time.Hour)}

	minGap, maxGap := 3, 9
	scheduled := builder.Build(ruleID, testLeads("a", "b", "c", "d", "e"), window, true, minGap, maxGap, func(inventory.Lead) {})
	if scheduled != 5 {
		t.Fatalf("scheduled = %d, want 5", scheduled)
	}

	snap := reg.Status(ruleID)
	for i := 1; i < len(snap.Leads); i++ {
		gap := snap.Leads[i].ScheduleTime.Sub(snap.Leads[i-1].ScheduleTime)
		if gap < time.Duration(minGap)*time.Minute || gap > time.Duration(maxGap)*time.Minute {
			t.Errorf("gap %d = %v, want within [%dm, %dm]", i, gap, minGap, maxGap)
		}
	}
	reg.CancelAll(ruleID)
}

func TestTimetableOrderPreserved(t *testing.T) {
	reg := testRegistry()
	builder := NewTimetableBuilderWithRand(reg, rand.New(rand.NewSource(7)))
	ruleID := uuid.New()

	start := time.Now().Add(time.Hour)
	window := deliveryWindow{start: start, end: start.Add(24 * time.Hour)}

	builder.Build(ruleID, testLeads("first", "second", "third"), window, true, 1, 2, func(inventory.Lead) {})

	snap := reg.Status(ruleID)
	want := []string{"first", "second", "third"}
	for i, lead := range snap.Leads {
		if lead.LeadSubid != want[i] {
			t.Errorf("slot %d = %s, want %s", i, lead.LeadSubid, want[i])
		}
		if i > 0 && !snap.Leads[i].ScheduleTime.After(snap.Leads[i-1].ScheduleTime) {
			t.Errorf("slot %d not after slot %d", i, i-1)
		}
	}
	reg.CancelAll(ruleID)
}

func TestTimetableTruncatesAtWindowEnd(t *testing.T) {
	reg := testRegistry()
	builder := NewTimetableBuilderWithRand(reg, rand.New(rand.NewSource(3)))
	ruleID := uuid.New()

	// Window fits the first slot plus one 10-minute gap at most.
	start := time.Now().Add(time.Hour)
	window := deliveryWindow{start: start, end: start.Add(15 * time.Minute)}

	scheduled := builder.Build(ruleID, testLeads("a", "b", "c", "d"), window, true, 10, 10, func(inventory.Lead) {})
	if scheduled != 2 {
		t.Fatalf("scheduled = %d, want 2", scheduled)
	}
	reg.CancelAll(ruleID)
}

func TestTimetableUncappedIgnoresWindowEnd(t *testing.T) {
	reg := testRegistry()
	builder := NewTimetableBuilderWithRand(reg, rand.New(rand.NewSource(3)))
	ruleID := uuid.New()

	start := time.Now().Add(time.Hour)
	window := deliveryWindow{start: start, end: start.Add(15 * time.Minute)}

	scheduled := builder.Build(ruleID, testLeads("a", "b", "c", "d"), window, false, 10, 10, func(inventory.Lead) {})
	if scheduled != 4 {
		t.Fatalf("scheduled = %d, want 4", scheduled)
	}
	reg.CancelAll(ruleID)
}

func TestTimetableFiresBoundLead(t *testing.T) {
	reg := testRegistry()
	builder := NewTimetableBuilderWithRand(reg, rand.New(rand.NewSource(9)))
	ruleID := uuid.New()

	now := time.Now()
	window := deliveryWindow{start: now.Add(10 * time.Millisecond), end: now.Add(time.Hour)}

	got := make(chan inventory.Lead, 1)
	builder.Build(ruleID, testLeads("only"), window, true, 1, 1, func(lead inventory.Lead) {
		got <- lead
	})

	select {
	case lead := <-got:
		if lead.Subid != "only" {
			t.Errorf("fired lead = %s, want only", lead.Subid)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delivery callback never fired")
	}
}
