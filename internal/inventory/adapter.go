package inventory

import (
	"context"
	"strings"

	"leadrelay_backend/internal/rules/domain"
	"leadrelay_backend/platform/logger"
)

// Fetcher is the narrow interface the scheduling engine consumes.
type Fetcher interface {
	FetchLeadsForRule(ctx context.Context, rule domain.Rule) []Lead
}

// Adapter fetches, normalizes and locally filters candidate leads for a rule.
// It never surfaces errors to the engine: an unrecoverable failure is logged
// and degrades to an empty result for this cycle.
type Adapter struct {
	client *Client
	log    *logger.Logger
}

// NewAdapter creates the lead source adapter.
func NewAdapter(client *Client, log *logger.Logger) *Adapter {
	return &Adapter{client: client, log: log}
}

// FetchLeadsForRule returns the delivery candidates for one scheduling cycle,
// in the order the inventory returned them. That order becomes delivery order.
func (a *Adapter) FetchLeadsForRule(ctx context.Context, rule domain.Rule) []Lead {
	log := a.log.WithRule(rule.ID.String())

	raws, err := a.client.Fetch(ctx, queryForRule(rule))
	if err != nil {
		log.Error("lead fetch failed, skipping cycle", "error", err)
		return nil
	}

	// Sparse inventory under a strict filter set: requery with only the
	// vertical filter rather than abandoning targeting entirely.
	if len(raws) == 0 && rule.HasOptionalLeadFilters() {
		log.Info("no leads under full filters, retrying with vertical only",
			"vertical", rule.LeadVertical)
		raws, err = a.client.Fetch(ctx, Query{
			Vertical: rule.LeadVertical,
			Limit:    rule.FetchLimit(),
		})
		if err != nil {
			log.Error("fallback lead fetch failed, skipping cycle", "error", err)
			return nil
		}
	}

	leads := filterForRule(normalizeRecords(raws), rule)
	log.Debug("fetched leads", "raw", len(raws), "accepted", len(leads))
	return leads
}

func queryForRule(rule domain.Rule) Query {
	q := Query{
		Vertical:  rule.LeadVertical,
		Country:   rule.LeadCountry,
		Affiliate: rule.LeadAffiliate,
		DateFrom:  rule.LeadDateFrom,
		DateTo:    rule.LeadDateTo,
		Limit:     rule.FetchLimit(),
	}
	if rule.HasStatusFilter() {
		q.Status = rule.LeadStatus
	}
	return q
}

// filterForRule applies the rule's local predicates on top of the remote
// query. The remote filters are advisory; the fallback query in particular
// returns leads that must be re-checked here.
func filterForRule(leads []Lead, rule domain.Rule) []Lead {
	out := make([]Lead, 0, len(leads))
	for _, lead := range leads {
		if rule.LeadVertical != "" && lead.Vertical != rule.LeadVertical {
			continue
		}
		if rule.LeadCountry != "" && !strings.EqualFold(lead.Country, rule.LeadCountry) {
			continue
		}
		if rule.LeadAffiliate != "" && lead.Affiliate != rule.LeadAffiliate {
			continue
		}
		if rule.HasStatusFilter() && lead.Status != rule.LeadStatus {
			continue
		}
		// A lead already redelivered up to the cap is exhausted for capped rules.
		if !rule.IsInfinite && lead.Redirects > rule.DailyCapLimit {
			continue
		}
		out = append(out, lead)
	}
	return out
}
