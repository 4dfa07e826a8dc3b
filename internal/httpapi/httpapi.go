package httpapi

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"hosiery/backend/internal/config"
	"hosiery/backend/internal/logging"
	"hosiery/backend/internal/service"
)

const maxBodyBytes = 1 << 20

type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	Logger         logrus.FieldLogger
	// Ready reports whether backing stores are reachable; nil means always
	// ready.
	Ready func(ctx context.Context) error
}

type API struct {
	service *service.Service
	log     logrus.FieldLogger
	opts    Options
}

func New(svc *service.Service, opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = config.DefaultAllowedOrigins
	}
	return &API{
		service: svc,
		log:     opts.Logger.WithField("component", "http"),
		opts:    opts,
	}
}

func (a *API) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(a.requestLogger())
	r.Use(a.corsMiddleware())
	r.Use(securityHeaders())
	r.Use(limitBody(maxBodyBytes))
	r.Use(withTimeout(a.opts.RequestTimeout))

	r.GET("/healthz", a.handleHealth)

	api := r.Group("/api")
	{
		inventory := api.Group("/inventory")
		inventory.GET("", a.handleListBatches)
		inventory.POST("/inward", a.handleInward)
		inventory.POST("/outward", a.handleOutward)
		inventory.POST("/suggest-rate", a.handleSuggestRate)
		inventory.GET("/barcode/:code", a.handleBarcodeLookup)
		inventory.PUT("/:id", a.handleUpdateBatch)

		api.GET("/transactions", a.handleListTransactions)
		api.GET("/transactions/export", a.handleExportTransactions)
		api.GET("/metrics", a.handleMetrics)
	}

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, errNotFoundRoute)
	})
	return r
}

func (a *API) corsMiddleware() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if slices.Contains(a.opts.AllowedOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = a.opts.AllowedOrigins
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	cfg.ExposeHeaders = []string{"Content-Disposition", "X-Request-ID"}
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}
