package domain

import (
	"testing"
	"time"
)

func TestFetchLimit(t *testing.T) {
	capped := Rule{DailyCapLimit: 25}
	if got := capped.FetchLimit(); got != 25 {
		t.Errorf("capped limit = %d, want 25", got)
	}

	infinite := Rule{IsInfinite: true, DailyCapLimit: 25}
	if got := infinite.FetchLimit(); got != infiniteFetchLimit {
		t.Errorf("infinite limit = %d, want %d", got, infiniteFetchLimit)
	}
}

func TestEffectiveCap(t *testing.T) {
	rule := Rule{DailyCapLimit: 3}
	if got := rule.EffectiveCap(10); got != 3 {
		t.Errorf("cap = %d, want 3", got)
	}
	if got := rule.EffectiveCap(2); got != 2 {
		t.Errorf("cap = %d, want 2", got)
	}

	infinite := Rule{IsInfinite: true, DailyCapLimit: 3}
	if got := infinite.EffectiveCap(10); got != 10 {
		t.Errorf("infinite cap = %d, want 10", got)
	}
}

func TestHasStatusFilter(t *testing.T) {
	if (Rule{LeadStatus: StatusAll}).HasStatusFilter() {
		t.Error("ALL must not count as a status filter")
	}
	if (Rule{}).HasStatusFilter() {
		t.Error("empty status must not count as a filter")
	}
	if !(Rule{LeadStatus: "NEW"}).HasStatusFilter() {
		t.Error("NEW must count as a status filter")
	}
}

func TestInSendDateRange(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	rule := Rule{SendDateFrom: &from, SendDateTo: &to}

	if !rule.InSendDateRange(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)) {
		t.Error("mid-range instant rejected")
	}
	if rule.InSendDateRange(time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)) {
		t.Error("instant before range accepted")
	}
	if rule.InSendDateRange(time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)) {
		t.Error("instant after range accepted")
	}

	open := Rule{}
	if !open.InSendDateRange(time.Now()) {
		t.Error("open range must accept any instant")
	}
}
