/*
Package errs provides custom error types and application-level error code constants.

This file maps every error code to its CustomError template.
*/
package errs

import "net/http"

// errorMap holds the user message and HTTP status for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:      {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrInvalidJSONFormat:  {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody: {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:  {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Game Errors
	ErrGameIDInvalid:     {Code: ErrGameIDInvalid, Message: "Invalid game ID.", Status: http.StatusBadRequest},
	ErrGameCodeExhausted: {Code: ErrGameCodeExhausted, Message: "Could not create a game right now. Please try again.", Status: http.StatusServiceUnavailable},
	ErrCardSetInvalid:    {Code: ErrCardSetInvalid, Message: "The card set needs at least one card with a label."},
	ErrCardPresetUnknown: {Code: ErrCardPresetUnknown, Message: "Unknown card preset %q."},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
