// Package repository provides database operations for redistribution rules.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadrelay_backend/internal/rules/domain"
	"leadrelay_backend/platform/apperr"
)

const ruleNotFoundMessage = "rule not found"

const ruleColumns = `
	id, name, is_active, is_infinite,
	target_product_id, target_product_name, target_vertical, target_country, target_affiliate,
	lead_status, lead_vertical, lead_country, lead_affiliate, lead_date_from, lead_date_to,
	min_interval_minutes, max_interval_minutes, daily_cap_limit,
	send_window_start, send_window_end, send_date_from, send_date_to,
	created_at, updated_at`

// Repo implements the rules repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new rules repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// Create inserts a rule.
func (r *Repo) Create(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	query := `
		INSERT INTO rules (
			id, name, is_active, is_infinite,
			target_product_id, target_product_name, target_vertical, target_country, target_affiliate,
			lead_status, lead_vertical, lead_country, lead_affiliate, lead_date_from, lead_date_to,
			min_interval_minutes, max_interval_minutes, daily_cap_limit,
			send_window_start, send_window_end, send_date_from, send_date_to
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22
		)
		RETURNING` + ruleColumns

	row := r.pool.QueryRow(ctx, query,
		rule.ID, rule.Name, rule.IsActive, rule.IsInfinite,
		rule.TargetProductID, rule.TargetProductName, rule.TargetVertical,
		rule.TargetCountry, rule.TargetAffiliate,
		rule.LeadStatus, rule.LeadVertical, rule.LeadCountry, rule.LeadAffiliate,
		rule.LeadDateFrom, rule.LeadDateTo,
		rule.MinIntervalMinutes, rule.MaxIntervalMinutes, rule.DailyCapLimit,
		rule.SendWindowStart, rule.SendWindowEnd, rule.SendDateFrom, rule.SendDateTo,
	)
	created, err := scanRule(row)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("create rule: %w", err)
	}
	return created, nil
}

// Update replaces all mutable fields of a rule.
func (r *Repo) Update(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	query := `
		UPDATE rules SET
			name = $2, is_active = $3, is_infinite = $4,
			target_product_id = $5, target_product_name = $6, target_vertical = $7,
			target_country = $8, target_affiliate = $9,
			lead_status = $10, lead_vertical = $11, lead_country = $12, lead_affiliate = $13,
			lead_date_from = $14, lead_date_to = $15,
			min_interval_minutes = $16, max_interval_minutes = $17, daily_cap_limit = $18,
			send_window_start = $19, send_window_end = $20, send_date_from = $21, send_date_to = $22,
			updated_at = now()
		WHERE id = $1
		RETURNING` + ruleColumns

	row := r.pool.QueryRow(ctx, query,
		rule.ID, rule.Name, rule.IsActive, rule.IsInfinite,
		rule.TargetProductID, rule.TargetProductName, rule.TargetVertical,
		rule.TargetCountry, rule.TargetAffiliate,
		rule.LeadStatus, rule.LeadVertical, rule.LeadCountry, rule.LeadAffiliate,
		rule.LeadDateFrom, rule.LeadDateTo,
		rule.MinIntervalMinutes, rule.MaxIntervalMinutes, rule.DailyCapLimit,
		rule.SendWindowStart, rule.SendWindowEnd, rule.SendDateFrom, rule.SendDateTo,
	)
	updated, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rule{}, apperr.NotFound(ruleNotFoundMessage)
		}
		return domain.Rule{}, fmt.Errorf("update rule: %w", err)
	}
	return updated, nil
}

// Delete removes a rule.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(ruleNotFoundMessage)
	}
	return nil
}

// GetByID retrieves a rule by ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (domain.Rule, error) {
	query := `SELECT` + ruleColumns + ` FROM rules WHERE id = $1`

	rule, err := scanRule(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rule{}, apperr.NotFound(ruleNotFoundMessage)
		}
		return domain.Rule{}, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

// List returns rules matching the filters plus the unpaged total.
func (r *Repo) List(ctx context.Context, params ListParams) ([]domain.Rule, int, error) {
	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	where := `WHERE ($1 = '' OR name ILIKE '%' || $1 || '%') AND ($2::boolean IS NULL OR is_active = $2)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rules `+where,
		params.Search, params.IsActive).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rules: %w", err)
	}

	query := `SELECT` + ruleColumns + ` FROM rules ` + where + `
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, params.Search, params.IsActive, limit, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	rules, err := collectRules(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("list rules: %w", err)
	}
	return rules, total, nil
}

// ListActive returns every active rule, oldest first.
func (r *Repo) ListActive(ctx context.Context) ([]domain.Rule, error) {
	query := `SELECT` + ruleColumns + ` FROM rules WHERE is_active ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	rules, err := collectRules(rows)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	return rules, nil
}

func scanRule(row pgx.Row) (domain.Rule, error) {
	var rule domain.Rule
	err := row.Scan(
		&rule.ID, &rule.Name, &rule.IsActive, &rule.IsInfinite,
		&rule.TargetProductID, &rule.TargetProductName, &rule.TargetVertical,
		&rule.TargetCountry, &rule.TargetAffiliate,
		&rule.LeadStatus, &rule.LeadVertical, &rule.LeadCountry, &rule.LeadAffiliate,
		&rule.LeadDateFrom, &rule.LeadDateTo,
		&rule.MinIntervalMinutes, &rule.MaxIntervalMinutes, &rule.DailyCapLimit,
		&rule.SendWindowStart, &rule.SendWindowEnd, &rule.SendDateFrom, &rule.SendDateTo,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return domain.Rule{}, err
	}
	return rule, nil
}

func collectRules(rows pgx.Rows) ([]domain.Rule, error) {
	var rules []domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
