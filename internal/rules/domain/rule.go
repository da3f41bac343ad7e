// Package domain holds the pure rule types shared by the scheduling engine
// and the rules CRUD surface. It has no infrastructure dependencies.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// StatusAll is the wildcard lead status meaning "no status filter".
const StatusAll = "ALL"

// infiniteFetchLimit is the effective inventory limit for rules without a cap.
const infiniteFetchLimit = 10000

// Rule describes which leads to pull from the inventory and where, when and
// how fast to redeliver them.
type Rule struct {
	ID         uuid.UUID
	Name       string
	IsActive   bool
	IsInfinite bool

	// Destination product. Deliveries always carry these fields, never the
	// source product of the lead itself.
	TargetProductID   string
	TargetProductName string
	TargetVertical    string
	TargetCountry     string
	TargetAffiliate   string

	// Source lead filters. Empty values mean "no filter".
	LeadStatus    string
	LeadVertical  string
	LeadCountry   string
	LeadAffiliate string
	LeadDateFrom  *time.Time
	LeadDateTo    *time.Time

	// Scheduling configuration.
	MinIntervalMinutes int
	MaxIntervalMinutes int
	DailyCapLimit      int
	SendWindowStart    string // "HH:MM", required unless IsInfinite
	SendWindowEnd      string // "HH:MM", required unless IsInfinite
	SendDateFrom       *time.Time
	SendDateTo         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasWindow reports whether both daily window bounds are configured.
func (r Rule) HasWindow() bool {
	return r.SendWindowStart != "" && r.SendWindowEnd != ""
}

// FetchLimit returns the inventory query limit for this rule.
func (r Rule) FetchLimit() int {
	if r.IsInfinite {
		return infiniteFetchLimit
	}
	return r.DailyCapLimit
}

// EffectiveCap returns the number of leads this rule may deliver in one cycle
// given the number of fetched candidates.
func (r Rule) EffectiveCap(leadCount int) int {
	if r.IsInfinite {
		return leadCount
	}
	if r.DailyCapLimit < leadCount {
		return r.DailyCapLimit
	}
	return leadCount
}

// HasStatusFilter reports whether the rule restricts the source lead status.
func (r Rule) HasStatusFilter() bool {
	return r.LeadStatus != "" && r.LeadStatus != StatusAll
}

// HasOptionalLeadFilters reports whether any optional source filter is set.
// When such a query yields nothing the adapter retries with a relaxed,
// vertical-only filter set.
func (r Rule) HasOptionalLeadFilters() bool {
	return r.LeadVertical != "" ||
		r.LeadCountry != "" ||
		r.LeadAffiliate != "" ||
		r.HasStatusFilter() ||
		r.LeadDateFrom != nil ||
		r.LeadDateTo != nil
}

// InSendDateRange reports whether the given instant falls inside the rule's
// optional delivery date range.
func (r Rule) InSendDateRange(now time.Time) bool {
	if r.SendDateFrom != nil && now.Before(*r.SendDateFrom) {
		return false
	}
	if r.SendDateTo != nil && now.After(*r.SendDateTo) {
		return false
	}
	return true
}
