package game

import (
	"slices"
	"testing"

	"github.com/jonboulle/clockwork"
)

func testPresets(t *testing.T) *Presets {
	t.Helper()

	p, err := LoadPresets("", "")
	if err != nil {
		t.Fatalf("LoadPresets: %v", err)
	}
	return p
}

func newTestGame(t *testing.T) *Game {
	t.Helper()
	return newGame("g1", testPresets(t).Default(), clockwork.NewFakeClock())
}

func strPtr(s string) *string { return &s }

func mustJoin(t *testing.T, g *Game, userID, name string, role Role, connID string) User {
	t.Helper()

	u, _, err := g.Join(userID, name, role, connID)
	if err != nil {
		t.Fatalf("Join(%s): %v", userID, err)
	}
	return u
}

func findUser(t *testing.T, roster []User, id string) User {
	t.Helper()

	i := slices.IndexFunc(roster, func(u User) bool { return u.ID == id })
	if i < 0 {
		t.Fatalf("user %s not in roster", id)
	}
	return roster[i]
}

func TestJoinOrderStableAcrossReconnect(t *testing.T) {
	g := newTestGame(t)

	alice := mustJoin(t, g, "alice", "Alice", RoleEstimator, "c1")
	bob := mustJoin(t, g, "bob", "Bob", RoleObserver, "c2")

	if alice.JoinOrder != 0 || bob.JoinOrder != 1 {
		t.Fatalf("unexpected join orders alice=%d bob=%d", alice.JoinOrder, bob.JoinOrder)
	}

	for i := range 3 {
		if !g.MarkDisconnected("alice", "c1") && i == 0 {
			t.Fatal("first disconnect should change the roster")
		}
		again := mustJoin(t, g, "alice", "", RoleObserver, "c1")
		if again.JoinOrder != 0 {
			t.Fatalf("join order changed to %d on rejoin %d", again.JoinOrder, i)
		}
		if again.Role != RoleEstimator {
			t.Fatalf("role changed to %s on rejoin", again.Role)
		}
		if again.DisplayName != "Alice" {
			t.Fatalf("stored name lost on rejoin: %q", again.DisplayName)
		}
	}

	carol := mustJoin(t, g, "carol", "Carol", "", "c3")
	if carol.JoinOrder != 2 {
		t.Fatalf("carol join order = %d, want 2", carol.JoinOrder)
	}
	if carol.Role != RoleEstimator {
		t.Fatalf("default role = %s", carol.Role)
	}

	roster := g.Roster()
	got := []string{roster[0].ID, roster[1].ID, roster[2].ID}
	if !slices.Equal(got, []string{"alice", "bob", "carol"}) {
		t.Fatalf("roster order = %v", got)
	}
}

func TestJoinRenamesReturningUser(t *testing.T) {
	g := newTestGame(t)

	mustJoin(t, g, "alice", "Alice", RoleEstimator, "c1")
	u := mustJoin(t, g, "alice", "Alicia", RoleEstimator, "c2")

	if u.DisplayName != "Alicia" {
		t.Fatalf("display name = %q, want Alicia", u.DisplayName)
	}
}

func TestMarkDisconnectedIgnoresStaleConnection(t *testing.T) {
	g := newTestGame(t)

	mustJoin(t, g, "alice", "Alice", RoleEstimator, "old")
	mustJoin(t, g, "alice", "", RoleEstimator, "new")

	if g.MarkDisconnected("alice", "old") {
		t.Fatal("close of a superseded connection must not change the roster")
	}
	if u, _ := g.User("alice"); !u.Connected {
		t.Fatal("alice should still be connected")
	}

	if !g.MarkDisconnected("alice", "new") {
		t.Fatal("close of the current connection should mark alice disconnected")
	}
	if g.MarkDisconnected("alice", "new") {
		t.Fatal("second disconnect should be a no-op")
	}
}

func TestMarkConnectedReportsPreviousState(t *testing.T) {
	g := newTestGame(t)

	if _, ok := g.MarkConnected("ghost", "c0"); ok {
		t.Fatal("unknown user should not be found")
	}

	mustJoin(t, g, "alice", "Alice", RoleEstimator, "c1")

	if was, ok := g.MarkConnected("alice", "c1"); !ok || !was {
		t.Fatalf("MarkConnected on connected user = (%v, %v)", was, ok)
	}

	g.MarkDisconnected("alice", "c1")

	if was, ok := g.MarkConnected("alice", "c2"); !ok || was {
		t.Fatalf("MarkConnected after disconnect = (%v, %v)", was, ok)
	}

	// c1 is no longer current, so its close is stale.
	if g.MarkDisconnected("alice", "c1") {
		t.Fatal("stale close after heartbeat re-association changed the roster")
	}
}

func TestDisconnectKeepsVote(t *testing.T) {
	g := newTestGame(t)

	mustJoin(t, g, "alice", "Alice", RoleEstimator, "c1")
	g.RecordVote("alice", strPtr("l"))
	g.MarkDisconnected("alice", "c1")

	u := findUser(t, g.Roster(), "alice")
	if u.Connected || !u.HasVoted {
		t.Fatalf("after disconnect: connected=%v hasVoted=%v", u.Connected, u.HasVoted)
	}

	u = mustJoin(t, g, "alice", "", "", "c2")
	if !u.Connected || !u.HasVoted || u.JoinOrder != 0 {
		t.Fatalf("after rejoin: %+v", u)
	}

	votes, _ := g.SnapshotFor("alice")
	if len(votes) != 1 || votes[0].Value != "l" {
		t.Fatalf("vote lost across reconnect: %+v", votes)
	}
}

func TestSnapshotHidesOtherVotesUntilRevealed(t *testing.T) {
	g := newTestGame(t)

	mustJoin(t, g, "alice", "Alice", RoleEstimator, "c1")
	mustJoin(t, g, "bob", "Bob", RoleEstimator, "c2")
	g.RecordVote("alice", strPtr("m"))

	votes, revealed := g.SnapshotFor("bob")
	if revealed || len(votes) != 0 {
		t.Fatalf("bob saw hidden votes: %+v", votes)
	}

	votes, _ = g.SnapshotFor("alice")
	if len(votes) != 1 || votes[0] != (Vote{UserID: "alice", Value: "m"}) {
		t.Fatalf("alice should see her own vote, got %+v", votes)
	}

	g.Reveal()

	votes, revealed = g.SnapshotFor("bob")
	if !revealed || len(votes) != 1 || votes[0].Value != "m" {
		t.Fatalf("after reveal bob got %+v revealed=%v", votes, revealed)
	}
}

func TestRevealAndReset(t *testing.T) {
	g := newTestGame(t)

	mustJoin(t, g, "alice", "Alice", RoleEstimator, "c1")
	mustJoin(t, g, "bob", "Bob", RoleObserver, "c2")
	mustJoin(t, g, "carol", "Carol", RoleEstimator, "c3")

	g.RecordVote("carol", strPtr("s"))
	g.RecordVote("alice", strPtr("m"))

	votes := g.Reveal()
	want := []Vote{{UserID: "alice", Value: "m"}, {UserID: "carol", Value: "s"}}
	if !slices.Equal(votes, want) {
		t.Fatalf("Reveal() = %+v, want %+v", votes, want)
	}
	if !g.Revealed() {
		t.Fatal("game should be revealed")
	}

	before := g.Roster()
	after := g.Reset()

	if g.Revealed() {
		t.Fatal("reset should return to voting")
	}
	if len(g.Votes()) != 0 {
		t.Fatalf("votes left after reset: %+v", g.Votes())
	}

	for i, u := range after {
		if u.HasVoted {
			t.Fatalf("%s still has hasVoted after reset", u.ID)
		}
		if u.ID != before[i].ID || u.Role != before[i].Role || u.JoinOrder != before[i].JoinOrder || u.Connected != before[i].Connected {
			t.Fatalf("reset changed seat: before %+v after %+v", before[i], u)
		}
	}
}

func TestRecordVote(t *testing.T) {
	g := newTestGame(t)

	mustJoin(t, g, "alice", "Alice", RoleEstimator, "c1")
	mustJoin(t, g, "olga", "Olga", RoleObserver, "c2")

	tests := []struct {
		name    string
		userID  string
		value   *string
		changed bool
		voted   bool
	}{
		{"vote", "alice", strPtr("m"), true, true},
		{"same vote again", "alice", strPtr("m"), false, true},
		{"change vote", "alice", strPtr("xl"), true, true},
		{"off-vocabulary vote is tolerated", "alice", strPtr("42"), true, true},
		{"oversized vote is ignored", "alice", strPtr("0123456789012345678901234567890123"), false, true},
		{"null withdraws", "alice", nil, true, false},
		{"withdraw twice", "alice", nil, false, false},
		{"empty withdraws", "alice", strPtr(""), false, false},
		{"observer ignored", "olga", strPtr("m"), false, false},
		{"unknown user ignored", "nobody", strPtr("m"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.RecordVote(tt.userID, tt.value); got != tt.changed {
				t.Fatalf("RecordVote changed = %v, want %v", got, tt.changed)
			}
			if u, ok := g.User(tt.userID); ok && u.HasVoted != tt.voted {
				t.Fatalf("hasVoted = %v, want %v", u.HasVoted, tt.voted)
			}
		})
	}

	if len(g.Votes()) != 0 {
		t.Fatalf("observer or unknown votes leaked into ledger: %+v", g.Votes())
	}
}

func TestToggleRoleClearsOnlyOwnVote(t *testing.T) {
	g := newTestGame(t)

	mustJoin(t, g, "alice", "Alice", RoleEstimator, "c1")
	mustJoin(t, g, "bob", "Bob", RoleEstimator, "c2")
	g.RecordVote("alice", strPtr("m"))
	g.RecordVote("bob", strPtr("l"))

	u, ok := g.ToggleRole("alice")
	if !ok || u.Role != RoleObserver || u.HasVoted {
		t.Fatalf("ToggleRole(alice) = %+v, %v", u, ok)
	}

	votes := g.Votes()
	if len(votes) != 1 || votes[0] != (Vote{UserID: "bob", Value: "l"}) {
		t.Fatalf("votes after toggle = %+v", votes)
	}
	if bob := findUser(t, g.Roster(), "bob"); !bob.HasVoted {
		t.Fatal("bob's hasVoted was cleared")
	}

	u, _ = g.ToggleRole("alice")
	if u.Role != RoleEstimator {
		t.Fatalf("second toggle role = %s", u.Role)
	}

	if _, ok := g.ToggleRole("nobody"); ok {
		t.Fatal("toggling an unknown user should report false")
	}
}

func TestJoinAfterCloseFails(t *testing.T) {
	g := newTestGame(t)
	g.closeIfIdle(g.clock.Now())

	if _, _, err := g.Join("alice", "Alice", RoleEstimator, "c1"); err != ErrGameClosed {
		t.Fatalf("Join on closed game: %v", err)
	}
}
