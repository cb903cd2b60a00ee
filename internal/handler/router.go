/*
Package handler provides the HTTP handlers and routing setup for the planning poker server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers (API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"planpoker/internal/pkg/limiter"
	"planpoker/internal/pkg/logx"
	"planpoker/internal/pkg/resp"
)

const (
	CreateRate   = 0.5
	CreateBurst  = 10
	ConnectRate  = 1
	ConnectBurst = 20
)

// NewCreateLimiter returns the per-IP limiter for minting game codes.
func NewCreateLimiter() *limiter.IPRateLimiter {
	return limiter.NewIPRateLimiter(rate.Limit(CreateRate), CreateBurst)
}

// NewConnectLimiter returns the per-IP limiter for WebSocket upgrades.
func NewConnectLimiter() *limiter.IPRateLimiter {
	return limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)
}

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It configures CORS and the WebSocket origin check from the AppConfig and applies global
// and per-route middleware.
func Router(deps *AppDeps) http.Handler {
	if deps.CreateLimiter == nil {
		deps.CreateLimiter = NewCreateLimiter()
	}
	if deps.ConnectLimiter == nil {
		deps.ConnectLimiter = NewConnectLimiter()
	}

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"status":    "ok",
			"service":   "planpoker",
			"games":     deps.Registry.Len(),
			"connected": deps.Registry.ConnectedCount(),
		}
		resp.RespondSuccess(w, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.With(deps.CreateLimiter.Middleware).Post("/games", HandleCreateGame(deps))
		api.Get("/games/{gameId}/exists", HandleGameExists(deps))
		api.Get("/card-presets", HandleListCardPresets(deps))
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, deps.ConnectLimiter, deps))

	return r
}
