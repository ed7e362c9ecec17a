// Package handler exposes the HTTP and websocket API.
package handler

import (
	"net/http"
	"time"

	"gigmarket/backend/internal/chathub"
	"gigmarket/backend/internal/jobs"
	"gigmarket/backend/internal/orders"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handler holds the services the routes delegate to.
type Handler struct {
	Orders         *orders.Service
	Hub            *chathub.ManagerService
	Jobs           *jobs.Tracker
	Auth           *Authenticator
	PaymentSecret  string
	AllowedOrigins []string
}

func NewHandler(o *orders.Service, hub *chathub.ManagerService, j *jobs.Tracker, auth *Authenticator, paymentSecret string, origins []string) *Handler {
	return &Handler{
		Orders:         o,
		Hub:            hub,
		Jobs:           j,
		Auth:           auth,
		PaymentSecret:  paymentSecret,
		AllowedOrigins: origins,
	}
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(h.corsConfig()))

	r.GET("/ws", h.ServeWebSocket)

	v1 := r.Group("/api/v1")
	v1.GET("/health", h.Health)
	v1.POST("/payments/orders/:id/paid", h.MarkOrderPaid)

	authed := v1.Group("")
	authed.Use(h.Auth.RequireAuth())
	{
		authed.POST("/orders", h.CreateOrder)
		authed.GET("/orders", h.ListOrders)
		authed.GET("/orders/:id", h.GetOrder)
		authed.POST("/orders/:id/status", h.UpdateOrderStatus)
		authed.POST("/orders/:id/review", h.AddReview)
		authed.GET("/gigs/:id/reviews", h.ListGigReviews)

		authed.POST("/jobs", h.CreateJob)
		authed.PATCH("/jobs/:id", h.ReportJob)
		authed.GET("/jobs/:id", h.GetJob)
	}

	return r
}

func (h *Handler) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range h.AllowedOrigins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(h.AllowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = h.AllowedOrigins
	cfg.AllowCredentials = true
	return cfg
}

// Health handles GET /api/v1/health
func (h *Handler) Health(c *gin.Context) {
	respondOK(c, http.StatusOK, gin.H{"status": "ok"})
}
