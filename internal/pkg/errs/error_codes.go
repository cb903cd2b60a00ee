/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific request, game and system failures both inside the
server and in the JSON envelopes returned by the HTTP side channel.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrInvalidJSONFormat indicates that a JSON body or payload is malformed or does not match the expected shape.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that a JSON document was followed by extra content.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Game Errors
const (
	// ErrGameIDInvalid indicates that a game identifier is empty, too long or contains control characters.
	ErrGameIDInvalid = 2101

	// ErrGameCodeExhausted indicates that no unused game code could be minted.
	ErrGameCodeExhausted = 2102

	// ErrCardSetInvalid indicates that an estimate set has no usable cards after normalization.
	ErrCardSetInvalid = 2201

	// ErrCardPresetUnknown indicates that a named estimate-set preset does not exist.
	ErrCardPresetUnknown = 2202
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
