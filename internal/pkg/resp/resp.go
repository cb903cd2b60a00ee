/*
Package resp provides helpers for writing the standardized JSON envelope returned by the
HTTP side channel: a business code, a message, and optional data.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"planpoker/internal/pkg/errs"
	"planpoker/internal/pkg/logx"
)

// JSONResponse is the envelope written by every HTTP endpoint.
type JSONResponse struct {
	// Code is 0 for success, otherwise an errs code.
	Code int `json:"code"`

	Message string `json:"message"`

	Data any `json:"data,omitempty"`
}

// RespondJSON writes payload as JSON with the given status. Responses are never cached,
// since they describe live game state.
func RespondJSON(w http.ResponseWriter, httpStatus int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		logx.Error(err, "Error encoding JSON response", "http_status", httpStatus)
		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "no-store")

	w.WriteHeader(httpStatus)
	if _, err := w.Write(body); err != nil {
		logx.Debug("Failed to write JSON response", "error", err.Error())
	}
}

// RespondSuccess writes data in a success envelope with HTTP 200.
func RespondSuccess(w http.ResponseWriter, data any) {
	RespondJSON(w, http.StatusOK, JSONResponse{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// RespondError writes customErr in an error envelope using its HTTP status.
func RespondError(w http.ResponseWriter, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	RespondJSON(w, customErr.Status, JSONResponse{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}
