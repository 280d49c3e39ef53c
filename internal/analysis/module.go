// Package analysis provides the billing analysis module: one endpoint
// that turns vendor exports and an invoice into a branch allocation
// report, gated on the corrections it still needs.
package analysis

import (
	"time"

	"github.com/redis/go-redis/v9"

	"apalloc_backend/internal/allocation"
	"apalloc_backend/internal/analysis/handler"
	"apalloc_backend/internal/analysis/service"
	"apalloc_backend/internal/analysis/session"
	dirservice "apalloc_backend/internal/directory/service"
	apphttp "apalloc_backend/internal/http"
	"apalloc_backend/internal/pdftext"
	"apalloc_backend/platform/logger"
	"apalloc_backend/platform/validator"
)

// Module is the analysis bounded context module implementing
// http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the analysis module.
func NewModule(
	log *logger.Logger,
	engine *allocation.Engine,
	extractor pdftext.Extractor,
	directory *dirservice.Service,
	rdb *redis.Client,
	sessionTTL time.Duration,
	val *validator.Validator,
) *Module {
	sessions := session.NewStore(rdb, sessionTTL)
	svc := service.New(log, engine, extractor, directory, sessions)
	h := handler.New(svc, val)
	return &Module{handler: h}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "analysis"
}

// RegisterRoutes mounts analysis routes. The analyze endpoint gets the
// stricter upload rate limiter since each request may extract PDF text.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	grp := ctx.V1.Group("")
	grp.Use(ctx.AnalysisRateLimiter.RateLimit())
	m.handler.RegisterRoutes(grp)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
