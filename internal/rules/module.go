// Package rules provides the redistribution rules bounded context module.
package rules

import (
	apphttp "leadrelay_backend/internal/http"
	"leadrelay_backend/internal/rules/handler"
	"leadrelay_backend/internal/rules/service"
	"leadrelay_backend/platform/validator"
)

// Module is the rules bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the rules module. The service arrives
// pre-built from the composition root because the engine shares its
// repository as the rule source.
func NewModule(svc *service.Service, val *validator.Validator) *Module {
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "rules"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts rules routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/rules")
	group.POST("", m.handler.Create)
	group.GET("", m.handler.List)
	group.GET("/:id", m.handler.GetByID)
	group.PUT("/:id", m.handler.Update)
	group.DELETE("/:id", m.handler.Delete)

	group.POST("/:id/trigger", m.handler.Trigger)
	group.POST("/:id/cancel", m.handler.Cancel)
	group.GET("/:id/schedule", m.handler.Schedule)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
