// Package directory provides the per-vendor user directory module:
// the system of record for branch assignment.
package directory

import (
	"apalloc_backend/internal/directory/handler"
	"apalloc_backend/internal/directory/repository"
	"apalloc_backend/internal/directory/service"
	apphttp "apalloc_backend/internal/http"
	"apalloc_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the directory bounded context module implementing
// http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the directory module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo)
	h := handler.New(svc, val)
	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "directory"
}

// Service returns the service layer for the analysis pipeline.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts directory routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/directory"))
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
