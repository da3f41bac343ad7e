// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadrelay_backend/platform/events"
	"leadrelay_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a new in-memory event bus.
// This is a convenience re-export from platform/events.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Delivery Domain Events
// =============================================================================

// LeadDeliverySucceeded is published after a lead was accepted by the
// destination endpoint and its outcome record was persisted.
type LeadDeliverySucceeded struct {
	BaseEvent
	RuleID         uuid.UUID `json:"ruleId"`
	RuleName       string    `json:"ruleName"`
	LeadSubid      string    `json:"leadSubid"`
	ResponseStatus int       `json:"responseStatus"`
}

func (e LeadDeliverySucceeded) EventName() string { return "delivery.lead.succeeded" }

// LeadDeliveryFailed is published after a delivery attempt cycle exhausted
// its retries or hit a terminal error, and the error record was persisted.
type LeadDeliveryFailed struct {
	BaseEvent
	RuleID         uuid.UUID `json:"ruleId"`
	RuleName       string    `json:"ruleName"`
	LeadSubid      string    `json:"leadSubid"`
	ResponseStatus int       `json:"responseStatus,omitempty"`
	ErrorDetails   string    `json:"errorDetails"`
}

func (e LeadDeliveryFailed) EventName() string { return "delivery.lead.failed" }

// =============================================================================
// Rules Domain Events
// =============================================================================

// RuleScheduled is published when a scheduling cycle registered pending
// deliveries for a rule.
type RuleScheduled struct {
	BaseEvent
	RuleID    uuid.UUID `json:"ruleId"`
	RuleName  string    `json:"ruleName"`
	LeadCount int       `json:"leadCount"`
}

func (e RuleScheduled) EventName() string { return "rules.rule.scheduled" }

// RuleDeactivated is published when a rule is deactivated or deleted so that
// pending work for it can be torn down.
type RuleDeactivated struct {
	BaseEvent
	RuleID uuid.UUID `json:"ruleId"`
}

func (e RuleDeactivated) EventName() string { return "rules.rule.deactivated" }
