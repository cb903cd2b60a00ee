/*
Package eventbus mirrors room broadcasts to an external message bus.

Consumers outside the process (dashboards, archivers) can follow games by subscribing to
per-game subjects. Mirroring is best effort: a failed publish never affects the game.
*/
package eventbus

import (
	"strings"
)

// Config holds the settings needed to connect to the bus.
type Config struct {
	URL           string
	SubjectPrefix string
}

// Publisher delivers encoded room events to the bus.
type Publisher interface {
	// Publish sends one encoded event of eventType for gameID.
	Publish(gameID, eventType string, data []byte) error

	// Close flushes pending events and releases the connection.
	Close() error
}

// NewPublisher returns a NATS-backed Publisher, or a no-op one when cfg.URL is empty.
func NewPublisher(cfg Config) (Publisher, error) {
	if cfg.URL == "" {
		return Noop{}, nil
	}
	return newNATSPublisher(cfg)
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(string, string, []byte) error { return nil }
func (Noop) Close() error                         { return nil }

// Subject builds the subject an event is published on: <prefix>.<gameID>.<eventType>.
// Characters that are not letters, digits, '-' or '_' are replaced with '_' so a game ID
// cannot inject subject tokens or wildcards.
func Subject(prefix, gameID, eventType string) string {
	return prefix + "." + sanitizeToken(gameID) + "." + sanitizeToken(eventType)
}

func sanitizeToken(s string) string {
	if s == "" {
		return "_"
	}

	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
