// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/dev-avwi/TradieTrack-sub004/internal/config"
	"github.com/dev-avwi/TradieTrack-sub004/internal/domain"
	"github.com/dev-avwi/TradieTrack-sub004/internal/gateway"
	"github.com/dev-avwi/TradieTrack-sub004/internal/http/handlers"
	"github.com/dev-avwi/TradieTrack-sub004/internal/http/middleware"
	"github.com/dev-avwi/TradieTrack-sub004/internal/phone"
	"github.com/dev-avwi/TradieTrack-sub004/internal/repo"
	"github.com/dev-avwi/TradieTrack-sub004/internal/services"
)

// conversationRepoShim adapts the repository free functions to the
// services.ConversationRepo interface expected by the ConversationService.
// This keeps services decoupled from the concrete repo package while reusing
// existing functions.
type conversationRepoShim struct{}

// CreateConversation proxies repo.CreateConversation.
func (conversationRepoShim) CreateConversation(ctx context.Context, db *gorm.DB, tenantID, phoneE164, displayName string, clientID, jobID *string) (*domain.Conversation, error) {
	return repo.CreateConversation(ctx, db, tenantID, phoneE164, displayName, clientID, jobID)
}

// FindConversation proxies repo.FindConversation.
func (conversationRepoShim) FindConversation(ctx context.Context, db *gorm.DB, tenantID, phoneE164 string) (*domain.Conversation, error) {
	return repo.FindConversation(ctx, db, tenantID, phoneE164)
}

// GetConversation proxies repo.GetConversation.
func (conversationRepoShim) GetConversation(ctx context.Context, db *gorm.DB, id, tenantID string) (*domain.Conversation, error) {
	return repo.GetConversation(ctx, db, id, tenantID)
}

// LinkJob proxies repo.LinkJob.
func (conversationRepoShim) LinkJob(ctx context.Context, db *gorm.DB, id, jobID string) error {
	return repo.LinkJob(ctx, db, id, jobID)
}

// CountConversations proxies repo.CountConversations (pagination support).
func (conversationRepoShim) CountConversations(ctx context.Context, db *gorm.DB, tenantID string) (int64, error) {
	return repo.CountConversations(ctx, db, tenantID)
}

// ListConversationsPage proxies repo.ListConversationsPage (pagination support).
func (conversationRepoShim) ListConversationsPage(ctx context.Context, db *gorm.DB, tenantID string, offset, limit int) ([]domain.Conversation, error) {
	return repo.ListConversationsPage(ctx, db, tenantID, offset, limit)
}

// MarkConversationRead proxies repo.MarkConversationRead.
func (conversationRepoShim) MarkConversationRead(ctx context.Context, db *gorm.DB, id, tenantID string) error {
	return repo.MarkConversationRead(ctx, db, id, tenantID)
}

// AppServices is the application service graph shared by the HTTP transport
// and the background scheduler.
type AppServices struct {
	Conversations *services.ConversationService
	SMS           *services.SMSService
	QuickActions  *services.QuickActionService
	Inbound       *services.InboundService
	Automation    *services.AutomationService
	Maintenance   *services.MaintenanceService
}

// BuildServices constructs the service graph: conversation directory,
// outbound dispatcher, quick action composer, inbound router, automation
// engine, and housekeeping passes, all sharing one DB handle and gateway.
func BuildServices(db *gorm.DB, gw gateway.Sender, cfg config.Config) *AppServices {
	norm := phone.NewNormalizer(cfg.CountryCode)
	loc := locationFor(cfg.Timezone)

	convSvc := services.NewConversationService(db, conversationRepoShim{}, norm)
	smsSvc := &services.SMSService{
		DB:            db,
		Gateway:       gw,
		Conversations: convSvc,
		MaxBodyRunes:  cfg.MaxSMSRunes,
	}
	return &AppServices{
		Conversations: convSvc,
		SMS:           smsSvc,
		QuickActions: &services.QuickActionService{
			DB:           db,
			Dispatch:     smsSvc,
			BusinessName: cfg.BusinessName,
			Location:     loc,
		},
		Inbound: &services.InboundService{DB: db, Norm: norm},
		Automation: &services.AutomationService{
			DB:                 db,
			Dispatch:           smsSvc,
			QuoteFollowUpAfter: cfg.Automation.QuoteFollowUpAfter,
			InvoiceGrace:       cfg.Automation.InvoiceGrace,
			Location:           loc,
		},
		Maintenance: &services.MaintenanceService{
			DB:             db,
			ArchiveAfter:   cfg.Scheduler.ArchiveAfter,
			ReconcileAfter: cfg.Scheduler.ReconcileAfter,
		},
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, compression, CORS and security headers, health and metrics
// endpoints, and then mounts the inbound webhook and the versioned public API
// under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Gzip response compression
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per tenant/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, svcs *AppServices, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-Twilio-Signature", // provider webhook signature
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Compress responses (list endpoints benefit most)
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, tenantID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, tenantID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per tenant/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByTenantOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderTenantID, middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderTenantID, middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(svcs.Conversations, svcs.SMS, svcs.QuickActions, svcs.Inbound, svcs.Automation)

	// Provider webhook (outside the versioned API; the provider's URL is fixed)
	r.POST("/webhooks/sms", h.InboundSMS)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Conversations
		api.GET("/conversations", h.ListConversations)
		api.GET("/conversations/:id/messages", h.ListMessages)
		api.POST("/conversations/:id/read", h.MarkConversationRead)

		// Outbound messages
		api.POST("/messages", h.SendMessage)

		// Quick actions
		api.POST("/quick-actions", h.SendQuickAction)

		// Automation rules
		api.GET("/automation/rules", h.ListRules)
		api.POST("/automation/rules", h.CreateRule)
		api.PUT("/automation/rules/:id", h.UpdateRule)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// locationFor resolves an IANA timezone name, falling back to time.Local on
// any error so a bad TIMEZONE never prevents startup.
func locationFor(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}
