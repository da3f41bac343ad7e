// Package service implements the read-model over lead sending records.
package service

import (
	"context"

	"github.com/google/uuid"

	"leadrelay_backend/internal/records/repository"
	"leadrelay_backend/internal/records/transport"
)

// Service implements the records read-model.
type Service struct {
	repo *repository.Repository
}

// New creates a new records service.
func New(repo *repository.Repository) *Service {
	return &Service{repo: repo}
}

// ListByRule returns a page of delivery records for a rule, newest first.
func (s *Service) ListByRule(ctx context.Context, ruleID uuid.UUID, req transport.ListRecordsRequest) (transport.RecordListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	records, err := s.repo.ListByRule(ctx, repository.ListParams{
		RuleID: ruleID,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		return transport.RecordListResponse{}, err
	}

	items := make([]transport.RecordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, transport.RecordResponse{
			ID:                rec.ID,
			RuleID:            rec.RuleID,
			LeadSubid:         rec.LeadSubid,
			LeadName:          rec.LeadName,
			LeadPhone:         rec.LeadPhone,
			LeadEmail:         rec.LeadEmail,
			LeadCountry:       rec.LeadCountry,
			TargetProductID:   rec.TargetProductID,
			TargetProductName: rec.TargetProductName,
			Status:            rec.Status,
			ResponseStatus:    rec.ResponseStatus,
			ErrorDetails:      rec.ErrorDetails,
			SentAt:            rec.SentAt,
		})
	}
	return transport.RecordListResponse{Items: items, Page: page, PageSize: pageSize}, nil
}

// StatsByRule aggregates delivery outcomes for a rule.
func (s *Service) StatsByRule(ctx context.Context, ruleID uuid.UUID) (transport.RuleStatsResponse, error) {
	stats, err := s.repo.StatsByRule(ctx, ruleID)
	if err != nil {
		return transport.RuleStatsResponse{}, err
	}
	return transport.RuleStatsResponse{
		RuleID:      stats.RuleID,
		Total:       stats.Total,
		Succeeded:   stats.Succeeded,
		Failed:      stats.Failed,
		LastSentAt:  stats.LastSentAt,
		LastErrorAt: stats.LastErrorAt,
	}, nil
}
