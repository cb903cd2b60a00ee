/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting,
upgrading the HTTP connection to WebSocket, and running the client lifecycle. Identity and
game selection happen afterwards through the join-game command.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"planpoker/internal/app/room"
	"planpoker/internal/pkg/errs"
	"planpoker/internal/pkg/limiter"
	"planpoker/internal/pkg/logx"
	"planpoker/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	settings := room.Settings{
		PongWait:        deps.Config.PongWait,
		WriteWait:       deps.Config.WriteWait,
		MaxMessageBytes: deps.Config.MaxMessageBytes,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !rateLimiter.Allow(r) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", logx.AnonymizeIP(limiter.ClientIP(r)))
			resp.RespondError(w, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Warn("Failed to upgrade connection to WebSocket", "error", err.Error())
			return
		}

		client := room.NewClient(conn, settings, deps.Coordinator)

		logx.Debug("WebSocket connection established", "client_id", client.ID)

		go client.WritePump()

		client.ReadPump()
	}
}
