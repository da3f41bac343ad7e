// Package repository provides database operations for lead sending records.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Outcome statuses for a delivery attempt cycle.
const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

// Record is the persisted outcome of one delivery attempt cycle. Retries
// inside the delivery adapter collapse into a single record. Rows are
// immutable once written.
type Record struct {
	ID                uuid.UUID
	RuleID            uuid.UUID
	LeadSubid         string
	LeadName          string
	LeadPhone         string
	LeadEmail         string
	LeadCountry       string
	TargetProductID   string
	TargetProductName string
	Status            string
	ResponseStatus    *int
	ErrorDetails      *string
	SentAt            time.Time
}

// RuleStats is the aggregate delivery outcome view for one rule.
type RuleStats struct {
	RuleID       uuid.UUID
	Total        int
	Succeeded    int
	Failed       int
	LastSentAt   *time.Time
	LastErrorAt  *time.Time
	LastResponse *int
}

// ListParams bounds a record listing query.
type ListParams struct {
	RuleID uuid.UUID
	Limit  int
	Offset int
}

// Repository provides database operations for lead sending records.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new records repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists one delivery outcome.
func (r *Repository) Insert(ctx context.Context, record Record) error {
	query := `
		INSERT INTO lead_sending_records (
			id, rule_id, lead_subid, lead_name, lead_phone, lead_email,
			lead_country, target_product_id, target_product_name,
			status, response_status, error_details, sent_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		record.ID, record.RuleID, record.LeadSubid, record.LeadName,
		record.LeadPhone, record.LeadEmail, record.LeadCountry,
		record.TargetProductID, record.TargetProductName,
		record.Status, record.ResponseStatus, record.ErrorDetails, record.SentAt,
	)
	return err
}

// ListByRule returns the most recent records for a rule, newest first.
func (r *Repository) ListByRule(ctx context.Context, params ListParams) ([]Record, error) {
	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, rule_id, lead_subid, lead_name, lead_phone, lead_email,
		       lead_country, target_product_id, target_product_name,
		       status, response_status, error_details, sent_at
		FROM lead_sending_records
		WHERE rule_id = $1
		ORDER BY sent_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, params.RuleID, limit, params.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.RuleID, &rec.LeadSubid, &rec.LeadName,
			&rec.LeadPhone, &rec.LeadEmail, &rec.LeadCountry,
			&rec.TargetProductID, &rec.TargetProductName,
			&rec.Status, &rec.ResponseStatus, &rec.ErrorDetails, &rec.SentAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// StatsByRule aggregates delivery outcomes for one rule.
func (r *Repository) StatsByRule(ctx context.Context, ruleID uuid.UUID) (RuleStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'SUCCESS'),
			COUNT(*) FILTER (WHERE status = 'ERROR'),
			MAX(sent_at),
			MAX(sent_at) FILTER (WHERE status = 'ERROR')
		FROM lead_sending_records
		WHERE rule_id = $1`

	stats := RuleStats{RuleID: ruleID}
	err := r.pool.QueryRow(ctx, query, ruleID).Scan(
		&stats.Total, &stats.Succeeded, &stats.Failed,
		&stats.LastSentAt, &stats.LastErrorAt,
	)
	if err != nil {
		return RuleStats{}, err
	}
	return stats, nil
}
