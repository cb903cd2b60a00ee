/*
Package handler provides HTTP handler functions for game code minting, existence checks
and the estimate-set preset catalogue.
*/
package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"planpoker/internal/pkg/errs"
	"planpoker/internal/pkg/logx"
	"planpoker/internal/pkg/randx"
	"planpoker/internal/pkg/resp"
)

// maxCodeAttempts bounds retries when a minted game code collides with a live game.
const maxCodeAttempts = 5

// HandleCreateGame mints an unused game code. No game is created; that happens lazily on
// the first join.
func HandleCreateGame(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for range maxCodeAttempts {
			code, err := randx.GameCode()
			if err != nil {
				resp.RespondError(w, errs.NewError(errs.ErrUnknown, err))
				return
			}

			if _, taken := deps.Registry.Get(code); taken {
				logx.Debug("Minted game code collides with a live game", "game_id", code)
				continue
			}

			resp.RespondSuccess(w, map[string]any{"gameId": code})
			return
		}

		resp.RespondError(w, errs.NewError(errs.ErrGameCodeExhausted))
	}
}

// HandleGameExists reports whether a game with at least one participant exists. It never
// creates a game.
func HandleGameExists(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, err := url.PathUnescape(chi.URLParam(r, "gameId"))
		if err != nil {
			resp.RespondError(w, errs.NewError(errs.ErrGameIDInvalid))
			return
		}

		gameID = strings.TrimSpace(gameID)
		if !randx.IsValidGameID(gameID) {
			resp.RespondError(w, errs.NewError(errs.ErrGameIDInvalid))
			return
		}

		resp.RespondSuccess(w, map[string]any{"exists": deps.Registry.Exists(gameID)})
	}
}

// HandleListCardPresets returns the preset estimate sets and the default preset key.
func HandleListCardPresets(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		presets := deps.Registry.Presets()

		resp.RespondSuccess(w, map[string]any{
			"default": presets.DefaultKey(),
			"presets": presets.List(),
		})
	}
}
