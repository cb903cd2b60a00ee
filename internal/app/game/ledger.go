package game

import "slices"

// MaxVoteLength bounds a vote value in bytes.
const MaxVoteLength = 32

// RecordVote stores userID's vote for the current round; a nil or empty value withdraws it.
//
// Values outside the current estimate set are accepted and left to UpdateCardSet's
// invalidation. Votes from unknown users and observers are ignored. RecordVote reports
// whether the ledger changed.
func (g *Game) RecordVote(userID string, value *string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	u, ok := g.users[userID]
	if !ok || u.Role == RoleObserver {
		return false
	}

	g.touchLocked()

	if value == nil || *value == "" {
		if _, had := g.votes[userID]; !had {
			return false
		}
		delete(g.votes, userID)
		u.HasVoted = false
		return true
	}

	if len(*value) > MaxVoteLength {
		return false
	}

	if prev, had := g.votes[userID]; had && prev == *value {
		return false
	}

	g.votes[userID] = *value
	u.HasVoted = true

	return true
}

// Votes returns every vote of the round ordered by the voters' join order.
func (g *Game) Votes() []Vote {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.votesLocked()
}

// SnapshotFor returns the votes userID may see: all of them once revealed, otherwise only
// userID's own.
func (g *Game) SnapshotFor(userID string) (votes []Vote, revealed bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.revealed {
		return g.votesLocked(), true
	}

	votes = []Vote{}
	if v, ok := g.votes[userID]; ok {
		votes = append(votes, Vote{UserID: userID, Value: v})
	}
	return votes, false
}

func (g *Game) votesLocked() []Vote {
	votes := make([]Vote, 0, len(g.votes))
	for userID, v := range g.votes {
		votes = append(votes, Vote{UserID: userID, Value: v})
	}

	slices.SortFunc(votes, func(a, b Vote) int {
		return g.joinOrderLocked(a.UserID) - g.joinOrderLocked(b.UserID)
	})

	return votes
}

func (g *Game) joinOrderLocked(userID string) int {
	if u, ok := g.users[userID]; ok {
		return u.JoinOrder
	}
	return g.nextJoinOrder
}
