package repository

import (
	"context"

	"leadrelay_backend/internal/rules/domain"

	"github.com/google/uuid"
)

// ListParams defines filters for listing rules.
type ListParams struct {
	Search   string
	IsActive *bool
	Offset   int
	Limit    int
}

// Repository defines rule storage operations.
type Repository interface {
	Create(ctx context.Context, rule domain.Rule) (domain.Rule, error)
	Update(ctx context.Context, rule domain.Rule) (domain.Rule, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Rule, error)
	List(ctx context.Context, params ListParams) ([]domain.Rule, int, error)
	ListActive(ctx context.Context) ([]domain.Rule, error)
}
