package handler

import (
	"net/http"

	"github.com/GoPolymarket/fundgate/internal/config"
	"github.com/GoPolymarket/fundgate/internal/events"
	"github.com/GoPolymarket/fundgate/internal/middleware"
	"github.com/GoPolymarket/fundgate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the HTTP API is built from.
type Deps struct {
	Config      *config.Config
	Funds       *service.FundService
	Inspector   *service.ChainInspector
	Operators   *service.OperatorRegistry
	Audit       *service.AuditService
	Hub         *events.Hub
	Idempotency middleware.IdempotencyStore
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Audit wraps ErrorHandler so it records the rendered error response.
	r.Use(middleware.AuditMiddleware(d.Audit))
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.ErrorHandler())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "fundgate"})
	})
	if d.Config.Metrics.Enabled {
		r.GET(d.Config.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	funds := NewFundHandler(d.Funds, d.Inspector)
	audit := NewAuditHandler(d.Audit)
	stream := NewStreamHandler(d.Hub)

	admin := middleware.AdminMiddleware(d.Config)

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(d.Config, d.Operators))
	v1.Use(middleware.RateLimitMiddleware(d.Operators))
	v1.Use(middleware.ReadOnlyMiddleware(d.Config.Server.ReadOnly))
	v1.Use(middleware.WriterMiddleware())
	v1.Use(middleware.IdempotencyMiddleware(d.Idempotency))
	{
		v1.POST("/funds/validate", funds.Validate)
		v1.POST("/funds", funds.Create)
		v1.GET("/funds", funds.List)
		v1.GET("/funds/:address", funds.Get)
		v1.PUT("/funds/:address", funds.Replace)
		v1.DELETE("/funds/:address", admin, funds.Delete)
		v1.POST("/funds/:address/digest", funds.Digest)
		v1.GET("/funds/:address/fees", funds.Fees)
		v1.POST("/funds/:address/quote", funds.Quote)
		v1.GET("/funds/:address/deposit-eligibility", funds.DepositEligibility)
		v1.GET("/funds/:address/managers/:manager", funds.ManagerCheck)
		v1.GET("/funds/:address/onchain", funds.OnChain)
		v1.GET("/stream", stream.Serve)
	}

	// Admin routes skip operator auth; the admin key is the credential.
	r.GET("/v1/audit", admin, audit.List)

	return r
}
