package transport

import (
	"time"

	"github.com/google/uuid"
)

// Rules

type CreateRuleRequest struct {
	Name       string `json:"name" validate:"required,min=1,max=200"`
	IsActive   bool   `json:"isActive"`
	IsInfinite bool   `json:"isInfinite"`

	TargetProductID   string `json:"targetProductId" validate:"required,min=1,max=100"`
	TargetProductName string `json:"targetProductName" validate:"max=200"`
	TargetVertical    string `json:"targetVertical" validate:"max=100"`
	TargetCountry     string `json:"targetCountry" validate:"max=10"`
	TargetAffiliate   string `json:"targetAffiliate" validate:"max=100"`

	LeadStatus    string `json:"leadStatus" validate:"max=50"`
	LeadVertical  string `json:"leadVertical" validate:"max=100"`
	LeadCountry   string `json:"leadCountry" validate:"max=10"`
	LeadAffiliate string `json:"leadAffiliate" validate:"max=100"`
	LeadDateFrom  string `json:"leadDateFrom" validate:"omitempty,datetime=2006-01-02"`
	LeadDateTo    string `json:"leadDateTo" validate:"omitempty,datetime=2006-01-02"`

	MinIntervalMinutes int    `json:"minIntervalMinutes" validate:"min=0,max=1440"`
	MaxIntervalMinutes int    `json:"maxIntervalMinutes" validate:"min=0,max=1440"`
	DailyCapLimit      int    `json:"dailyCapLimit" validate:"min=0,max=10000"`
	SendWindowStart    string `json:"sendWindowStart" validate:"omitempty,datetime=15:04"`
	SendWindowEnd      string `json:"sendWindowEnd" validate:"omitempty,datetime=15:04"`
	SendDateFrom       string `json:"sendDateFrom" validate:"omitempty,datetime=2006-01-02"`
	SendDateTo         string `json:"sendDateTo" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateRuleRequest replaces the rule's mutable fields wholesale.
type UpdateRuleRequest = CreateRuleRequest

type ListRulesRequest struct {
	Search   string `form:"search" validate:"max=200"`
	IsActive *bool  `form:"isActive"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=200"`
}

type RuleResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	IsActive   bool      `json:"isActive"`
	IsInfinite bool      `json:"isInfinite"`

	TargetProductID   string `json:"targetProductId"`
	TargetProductName string `json:"targetProductName,omitempty"`
	TargetVertical    string `json:"targetVertical,omitempty"`
	TargetCountry     string `json:"targetCountry,omitempty"`
	TargetAffiliate   string `json:"targetAffiliate,omitempty"`

	LeadStatus    string `json:"leadStatus,omitempty"`
	LeadVertical  string `json:"leadVertical,omitempty"`
	LeadCountry   string `json:"leadCountry,omitempty"`
	LeadAffiliate string `json:"leadAffiliate,omitempty"`
	LeadDateFrom  string `json:"leadDateFrom,omitempty"`
	LeadDateTo    string `json:"leadDateTo,omitempty"`

	MinIntervalMinutes int    `json:"minIntervalMinutes"`
	MaxIntervalMinutes int    `json:"maxIntervalMinutes"`
	DailyCapLimit      int    `json:"dailyCapLimit"`
	SendWindowStart    string `json:"sendWindowStart,omitempty"`
	SendWindowEnd      string `json:"sendWindowEnd,omitempty"`
	SendDateFrom       string `json:"sendDateFrom,omitempty"`
	SendDateTo         string `json:"sendDateTo,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type RuleListResponse struct {
	Items      []RuleResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}
