/*
Package game contains the in-memory state of planning poker sessions.

This file defines the Game struct, which holds one session's participants, votes, round
state and estimate set. Every method is safe for concurrent use; Exclusive additionally
serializes whole commands so that a mutation and the broadcast that follows it are not
interleaved with another command on the same game.
*/
package game

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Role is a participant's function in a game.
type Role string

const (
	// RoleEstimator casts votes.
	RoleEstimator Role = "estimator"

	// RoleObserver only watches.
	RoleObserver Role = "observer"
)

// ParseRole maps a client-supplied role onto a Role, defaulting to RoleEstimator.
func ParseRole(s string) Role {
	if Role(s) == RoleObserver {
		return RoleObserver
	}
	return RoleEstimator
}

// ErrGameClosed is returned when a game has been evicted by the registry and must be
// looked up again.
var ErrGameClosed = errors.New("game closed")

// User is one participant's seat in a game.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
	HasVoted    bool   `json:"hasVoted"`
	JoinOrder   int    `json:"joinOrder"`
	Connected   bool   `json:"connected"`

	// connID is the transport connection the user was last seen on.
	connID string
}

// Vote is a participant's estimate for the current round.
type Vote struct {
	UserID string `json:"userId"`
	Value  string `json:"vote"`
}

// Game is a single estimation session.
type Game struct {
	// ID is the client-chosen game identifier.
	ID string

	// ops serializes commands, see Exclusive.
	ops sync.Mutex

	// mu protects every field below.
	mu sync.RWMutex

	users         map[string]*User
	votes         map[string]string
	revealed      bool
	nextJoinOrder int

	// cardSet is nil until someone configures one; defaultSet is used meanwhile.
	cardSet    *CardSet
	defaultSet CardSet

	clock      clockwork.Clock
	lastActive time.Time
	closed     bool
}

func newGame(id string, defaultSet CardSet, clock clockwork.Clock) *Game {
	return &Game{
		ID:         id,
		users:      make(map[string]*User),
		votes:      make(map[string]string),
		defaultSet: defaultSet,
		clock:      clock,
		lastActive: clock.Now(),
	}
}

// Exclusive runs fn while holding the game's command lock.
func (g *Game) Exclusive(fn func()) {
	g.ops.Lock()
	defer g.ops.Unlock()

	fn()
}

// Roster returns all participants ordered by join order.
func (g *Game) Roster() []User {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.rosterLocked()
}

// User returns a copy of one participant.
func (g *Game) User(userID string) (User, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	u, ok := g.users[userID]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// HasUsers reports whether at least one participant ever joined the game.
func (g *Game) HasUsers() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.users) > 0
}

// ConnectedCount returns how many participants are currently connected.
func (g *Game) ConnectedCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := 0
	for _, u := range g.users {
		if u.Connected {
			n++
		}
	}
	return n
}

func (g *Game) rosterLocked() []User {
	roster := make([]User, 0, len(g.users))
	for _, u := range g.users {
		roster = append(roster, *u)
	}

	slices.SortFunc(roster, func(a, b User) int {
		return a.JoinOrder - b.JoinOrder
	})

	return roster
}

func (g *Game) touchLocked() {
	g.lastActive = g.clock.Now()
}

// closeIfIdle closes the game if nobody is connected and it saw no activity after cutoff.
func (g *Game) closeIfIdle(cutoff time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return true
	}

	for _, u := range g.users {
		if u.Connected {
			return false
		}
	}

	if g.lastActive.After(cutoff) {
		return false
	}

	g.closed = true
	return true
}

func (g *Game) isClosed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.closed
}
