package game

// Join seats userID in the game, or re-attaches them on reconnect.
//
// A returning user keeps their join order and role; a non-empty displayName replaces the
// stored one. The returned roster is ordered by join order.
func (g *Game) Join(userID, displayName string, role Role, connID string) (User, []User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return User{}, nil, ErrGameClosed
	}

	u, ok := g.users[userID]
	if !ok {
		u = &User{
			ID:        userID,
			Role:      ParseRole(string(role)),
			JoinOrder: g.nextJoinOrder,
		}
		g.nextJoinOrder++
		g.users[userID] = u
	}

	if displayName != "" {
		u.DisplayName = displayName
	}

	_, voted := g.votes[userID]
	u.HasVoted = voted
	u.Connected = true
	u.connID = connID

	g.touchLocked()

	return *u, g.rosterLocked(), nil
}

// MarkConnected flags userID as connected on connID. It returns whether the user was
// connected before the call and whether the user exists at all.
func (g *Game) MarkConnected(userID, connID string) (wasConnected, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	u, ok := g.users[userID]
	if !ok {
		return false, false
	}

	wasConnected = u.Connected
	u.Connected = true
	u.connID = connID
	g.touchLocked()

	return wasConnected, true
}

// MarkDisconnected flags userID as disconnected if connID is still the user's current
// connection. It reports whether the roster changed; closes of superseded connections
// change nothing.
func (g *Game) MarkDisconnected(userID, connID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	u, ok := g.users[userID]
	if !ok || u.connID != connID || !u.Connected {
		return false
	}

	u.Connected = false
	g.touchLocked()

	return true
}

// ToggleRole flips userID between estimator and observer. Becoming an observer discards
// the user's vote.
func (g *Game) ToggleRole(userID string) (User, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	u, ok := g.users[userID]
	if !ok {
		return User{}, false
	}

	if u.Role == RoleObserver {
		u.Role = RoleEstimator
	} else {
		u.Role = RoleObserver
		delete(g.votes, userID)
		u.HasVoted = false
	}
	g.touchLocked()

	return *u, true
}
