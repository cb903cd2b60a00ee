package game

// Revealed reports whether the current round's votes are visible to everyone.
func (g *Game) Revealed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.revealed
}

// Reveal ends the voting phase and returns the complete vote set. No quorum is required.
func (g *Game) Reveal() []Vote {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.revealed = true
	g.touchLocked()

	return g.votesLocked()
}

// Reset starts a new round: all votes are discarded and the round returns to voting.
// Roles, seating and connection state are kept. The refreshed roster is returned.
func (g *Game) Reset() []User {
	g.mu.Lock()
	defer g.mu.Unlock()

	clear(g.votes)
	for _, u := range g.users {
		u.HasVoted = false
	}
	g.revealed = false
	g.touchLocked()

	return g.rosterLocked()
}
