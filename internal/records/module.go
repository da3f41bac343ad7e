// Package records provides the delivery records bounded context module.
package records

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "leadrelay_backend/internal/http"
	"leadrelay_backend/internal/records/handler"
	"leadrelay_backend/internal/records/repository"
	"leadrelay_backend/internal/records/service"
	"leadrelay_backend/platform/validator"
)

// Module is the records bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the records module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "records"
}

// Repository returns the repository so the composition root can hand it to
// the outcome recorder.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts records routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/rules/:id/records", m.handler.ListByRule)
	ctx.Protected.GET("/rules/:id/stats", m.handler.StatsByRule)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
