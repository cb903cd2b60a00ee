package handler

import (
	"planpoker/internal/app/game"
	"planpoker/internal/app/room"
	"planpoker/internal/configs"
	"planpoker/internal/pkg/limiter"
)

// AppDeps bundles what the HTTP layer needs. Nil limiters are replaced with defaults.
type AppDeps struct {
	Config      *configs.AppConfig
	Registry    *game.Registry
	Coordinator *room.Coordinator

	CreateLimiter  *limiter.IPRateLimiter
	ConnectLimiter *limiter.IPRateLimiter
}
