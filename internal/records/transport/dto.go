package transport

import (
	"time"

	"github.com/google/uuid"
)

type ListRecordsRequest struct {
	Page     int `form:"page" validate:"omitempty,min=1"`
	PageSize int `form:"pageSize" validate:"omitempty,min=1,max=200"`
}

type RecordResponse struct {
	ID                uuid.UUID `json:"id"`
	RuleID            uuid.UUID `json:"ruleId"`
	LeadSubid         string    `json:"leadSubid"`
	LeadName          string    `json:"leadName,omitempty"`
	LeadPhone         string    `json:"leadPhone,omitempty"`
	LeadEmail         string    `json:"leadEmail,omitempty"`
	LeadCountry       string    `json:"leadCountry,omitempty"`
	TargetProductID   string    `json:"targetProductId"`
	TargetProductName string    `json:"targetProductName,omitempty"`
	Status            string    `json:"status"`
	ResponseStatus    *int      `json:"responseStatus,omitempty"`
	ErrorDetails      *string   `json:"errorDetails,omitempty"`
	SentAt            time.Time `json:"sentAt"`
}

type RecordListResponse struct {
	Items    []RecordResponse `json:"items"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

type RuleStatsResponse struct {
	RuleID      uuid.UUID  `json:"ruleId"`
	Total       int        `json:"total"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	LastSentAt  *time.Time `json:"lastSentAt,omitempty"`
	LastErrorAt *time.Time `json:"lastErrorAt,omitempty"`
}
