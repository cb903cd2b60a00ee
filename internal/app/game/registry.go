/*
Package game contains the in-memory state of planning poker sessions.

This file defines the Registry, which creates games lazily on first join, looks them up
by ID and, when an idle TTL is configured, evicts games nobody is connected to.
*/
package game

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"planpoker/internal/pkg/logx"
)

// Registry owns every live game.
type Registry struct {
	store   Store
	presets *Presets
	clock   clockwork.Clock

	// idleTTL is how long a game without connected users survives; zero keeps games forever.
	idleTTL time.Duration

	logger zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore replaces the default in-memory store.
func WithStore(s Store) Option {
	return func(r *Registry) { r.store = s }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithIdleTTL enables eviction of games that stayed without connected users for ttl.
func WithIdleTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.idleTTL = ttl }
}

// NewRegistry creates a Registry whose new games start on the presets' default set.
func NewRegistry(presets *Presets, opts ...Option) *Registry {
	r := &Registry{
		store:   NewMemoryStore(),
		presets: presets,
		clock:   clockwork.NewRealClock(),
		logger:  logx.Component("registry"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Presets returns the preset catalogue new games draw their default set from.
func (r *Registry) Presets() *Presets {
	return r.presets
}

// GetOrCreate returns the game with the given ID, creating it if needed. Concurrent
// callers for the same unseen ID always receive the same Game.
func (r *Registry) GetOrCreate(id string) (g *Game, created bool) {
	for {
		if existing, ok := r.store.Load(id); ok {
			if !existing.isClosed() {
				return existing, false
			}
			r.store.CompareAndDelete(id, existing)
		}

		actual, loaded := r.store.LoadOrStore(id, newGame(id, r.presets.Default(), r.clock))
		if !loaded {
			r.logger.Info().Str("game_id", id).Msg("Game created.")
			return actual, true
		}

		if !actual.isClosed() {
			return actual, false
		}
	}
}

// Get returns the game with the given ID without creating it.
func (r *Registry) Get(id string) (*Game, bool) {
	g, ok := r.store.Load(id)
	if !ok || g.isClosed() {
		return nil, false
	}
	return g, true
}

// Exists reports whether a game with at least one participant exists for id. It never
// creates a game.
func (r *Registry) Exists(id string) bool {
	g, ok := r.Get(id)
	return ok && g.HasUsers()
}

// ConnectedCount returns how many participants are connected across all games.
func (r *Registry) ConnectedCount() int {
	total := 0
	r.store.Range(func(_ string, g *Game) bool {
		total += g.ConnectedCount()
		return true
	})
	return total
}

// Len returns the number of live games.
func (r *Registry) Len() int {
	return r.store.Len()
}

// Sweep evicts every game that has no connected users and has been idle for at least the
// configured TTL. It returns how many games were evicted.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}

	cutoff := r.clock.Now().Add(-r.idleTTL)
	evicted := 0

	r.store.Range(func(id string, g *Game) bool {
		if !g.closeIfIdle(cutoff) {
			return true
		}

		if r.store.CompareAndDelete(id, g) {
			evicted++
			r.logger.Info().Str("game_id", id).Msg("Idle game evicted.")
		}
		return true
	})

	return evicted
}

// Run sweeps idle games every interval until ctx is cancelled. With eviction disabled it
// only waits for ctx.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if r.idleTTL <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info().
		Dur("idle_ttl", r.idleTTL).
		Dur("interval", interval).
		Msg("Idle game sweeper started.")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Idle game sweeper stopped.")
			return nil
		case <-ticker.Chan():
			if n := r.Sweep(); n > 0 {
				r.logger.Debug().Int("evicted", n).Int("remaining", r.Len()).Msg("Sweep finished.")
			}
		}
	}
}
