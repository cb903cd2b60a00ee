package room

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"planpoker/internal/app/game"
	"planpoker/internal/app/user"
	"planpoker/internal/pkg/tracing"
)

type received struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

type mirrored struct {
	gameID    string
	eventType string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []mirrored
}

func (p *recordingPublisher) Publish(gameID, eventType string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, mirrored{gameID: gameID, eventType: eventType})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.eventType
	}
	return out
}

type fixture struct {
	co       *Coordinator
	registry *game.Registry
	hub      *Hub
	mirror   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	presets, err := game.LoadPresets("", "")
	if err != nil {
		t.Fatalf("LoadPresets: %v", err)
	}

	var minted atomic.Int64
	mint := func() string { return fmt.Sprintf("user_minted_%d", minted.Add(1)) }

	f := &fixture{
		registry: game.NewRegistry(presets),
		mirror:   &recordingPublisher{},
	}
	f.hub = NewHub(f.mirror)
	f.co = NewCoordinator(f.registry, user.NewResolver(user.NewMemoryProfileStore(), mint), f.hub, tracing.Tracer())

	return f
}

func (f *fixture) client() *Client {
	return NewClient(nil, DefaultSettings, f.co)
}

func (f *fixture) send(t *testing.T, c *Client, msgType MessageType, payload any) {
	t.Helper()

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	data, err := json.Marshal(inboundMessage{Type: msgType, Payload: raw})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}

	f.co.Dispatch(c, data)
}

func (f *fixture) join(t *testing.T, c *Client, gameID, userID, name string) UserJoinedPayload {
	t.Helper()

	f.send(t, c, TypeJoinGame, JoinGameCommand{GameID: gameID, UserID: userID, DisplayName: name})

	frames := drain(c)
	if len(frames) == 0 || frames[0].Type != TypeUserJoined {
		t.Fatalf("expected user-joined first, got %+v", frames)
	}

	var p UserJoinedPayload
	decodePayload(t, frames[0], &p)
	return p
}

// drain returns every frame queued for c so far.
func drain(c *Client) []received {
	var frames []received
	for {
		select {
		case data := <-c.send:
			var r received
			if err := json.Unmarshal(data, &r); err != nil {
				panic(err)
			}
			frames = append(frames, r)
		default:
			return frames
		}
	}
}

func decodePayload(t *testing.T, r received, dst any) {
	t.Helper()

	if err := json.Unmarshal(r.Payload, dst); err != nil {
		t.Fatalf("decode %s payload: %v", r.Type, err)
	}
}

func types(frames []received) []MessageType {
	out := make([]MessageType, len(frames))
	for i, f := range frames {
		out[i] = f.Type
	}
	return out
}

func only(t *testing.T, frames []received, want ...MessageType) {
	t.Helper()

	got := types(frames)
	if len(got) != len(want) {
		t.Fatalf("frames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frames = %v, want %v", got, want)
		}
	}
}

func rosterUser(t *testing.T, users []game.User, id string) game.User {
	t.Helper()

	for _, u := range users {
		if u.ID == id {
			return u
		}
	}
	t.Fatalf("user %s missing from roster %+v", id, users)
	return game.User{}
}

func ptr(s string) *string { return &s }
