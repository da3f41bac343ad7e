// Package inventory fetches candidate leads from the external lead inventory
// and normalizes them into the canonical Lead shape used by the delivery
// engine.
package inventory

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"leadrelay_backend/platform/phone"
)

// Lead is a canonical candidate lead. Instances exist only for the duration
// of a scheduling cycle; the engine never persists them.
type Lead struct {
	Subid       string
	ProductID   string
	ProductName string
	Country     string
	Vertical    string
	Affiliate   string
	Status      string
	Name        string
	Phone       string
	Email       string
	IP          string
	UserAgent   string
	Redirects   int
	Date        time.Time
}

// The inventory endpoint is partner-defined and the same field arrives under
// different names depending on which upstream produced the lead. All aliasing
// is resolved here, once, at the boundary; downstream code only ever sees the
// canonical Lead.
var fieldAliases = map[string][]string{
	"subid":       {"subid", "sub_id", "subId"},
	"productId":   {"productId", "product_id", "pid"},
	"productName": {"productName", "product_name"},
	"country":     {"country", "geo"},
	"vertical":    {"vertical", "category"},
	"aff":         {"aff", "affiliate", "aff_id"},
	"status":      {"status", "lead_status"},
	"leadName":    {"leadName", "lead_name", "name"},
	"phone":       {"phone", "phone_number", "msisdn"},
	"email":       {"email", "mail"},
	"ip":          {"ip", "ip_address"},
	"ua":          {"ua", "user_agent", "userAgent"},
	"redirects":   {"redirects", "redirects_count", "redirect_count"},
	"date":        {"date", "created_at", "createdAt"},
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type rawRecord map[string]json.RawMessage

// normalizeRecords converts raw inventory payloads into canonical leads.
// Records without a usable subid are dropped; everything else is coerced to
// defined defaults rather than rejected.
func normalizeRecords(raws []rawRecord) []Lead {
	leads := make([]Lead, 0, len(raws))
	for _, raw := range raws {
		lead, ok := normalizeRecord(raw)
		if !ok {
			continue
		}
		leads = append(leads, lead)
	}
	return leads
}

func normalizeRecord(raw rawRecord) (Lead, bool) {
	lead := Lead{
		Subid:       pickString(raw, fieldAliases["subid"]),
		ProductID:   pickString(raw, fieldAliases["productId"]),
		ProductName: pickString(raw, fieldAliases["productName"]),
		Country:     pickString(raw, fieldAliases["country"]),
		Vertical:    pickString(raw, fieldAliases["vertical"]),
		Affiliate:   pickString(raw, fieldAliases["aff"]),
		Status:      pickString(raw, fieldAliases["status"]),
		Name:        pickString(raw, fieldAliases["leadName"]),
		Email:       pickString(raw, fieldAliases["email"]),
		IP:          pickString(raw, fieldAliases["ip"]),
		UserAgent:   pickString(raw, fieldAliases["ua"]),
		Redirects:   pickInt(raw, fieldAliases["redirects"]),
		Date:        pickTime(raw, fieldAliases["date"]),
	}

	// The subid keys the send lock and the timer registry; a lead without one
	// cannot be tracked and is dropped at the boundary.
	if lead.Subid == "" {
		return Lead{}, false
	}

	rawPhone := pickString(raw, fieldAliases["phone"])
	lead.Phone = phone.NormalizeE164(rawPhone, lead.Country)

	return lead, true
}

func pickString(raw rawRecord, aliases []string) string {
	for _, key := range aliases {
		val, ok := raw[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(val, &s); err == nil {
			return strings.TrimSpace(s)
		}
		// Some upstreams send numeric identifiers for string fields.
		var n json.Number
		if err := json.Unmarshal(val, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

func pickInt(raw rawRecord, aliases []string) int {
	for _, key := range aliases {
		val, ok := raw[key]
		if !ok {
			continue
		}
		var n int
		if err := json.Unmarshal(val, &n); err == nil {
			return n
		}
		var s string
		if err := json.Unmarshal(val, &s); err == nil {
			if parsed, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				return parsed
			}
		}
	}
	return 0
}

func pickTime(raw rawRecord, aliases []string) time.Time {
	for _, key := range aliases {
		val, ok := raw[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(val, &s); err != nil {
			continue
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
