package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"planpoker/internal/app/eventbus"
	"planpoker/internal/app/game"
	"planpoker/internal/app/room"
	"planpoker/internal/app/user"
	"planpoker/internal/configs"
	"planpoker/internal/pkg/limiter"
	"planpoker/internal/pkg/tracing"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type frame struct {
	Type    room.MessageType `json:"type"`
	Payload json.RawMessage  `json:"payload"`
}

func testConfig() *configs.AppConfig {
	return &configs.AppConfig{
		Environment:     "development",
		Port:            8080,
		PongWait:        90 * time.Second,
		WriteWait:       10 * time.Second,
		MaxMessageBytes: 16 << 10,
	}
}

func newTestServer(t *testing.T, cfg *configs.AppConfig, createLimiter *limiter.IPRateLimiter) (*httptest.Server, *AppDeps) {
	t.Helper()

	presets, err := game.LoadPresets("", "")
	if err != nil {
		t.Fatalf("LoadPresets: %v", err)
	}

	registry := game.NewRegistry(presets)
	hub := room.NewHub(eventbus.Noop{})
	deps := &AppDeps{
		Config:        cfg,
		Registry:      registry,
		Coordinator:   room.NewCoordinator(registry, user.NewResolver(user.NewMemoryProfileStore(), nil), hub, tracing.Tracer()),
		CreateLimiter: createLimiter,
	}

	srv := httptest.NewServer(Router(deps))
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})

	return srv, deps
}

func getJSON(t *testing.T, method, url string) (int, envelope) {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return res.StatusCode, env
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, msgType room.MessageType, payload any) {
	t.Helper()

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": json.RawMessage(raw)}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, want room.MessageType) frame {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatal(err)
	}

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if f.Type == want {
			return f
		}
	}
}

func TestHealth(t *testing.T) {
	srv, deps := newTestServer(t, testConfig(), nil)

	g, _ := deps.Registry.GetOrCreate("g1")
	g.Join("alice", "Alice", game.RoleEstimator, "c1")
	g.Join("bob", "Bob", game.RoleObserver, "c2")
	g.MarkDisconnected("bob", "c2")

	status, env := getJSON(t, http.MethodGet, srv.URL+"/health")
	if status != http.StatusOK || env.Code != 0 {
		t.Fatalf("health = %d %+v", status, env)
	}

	var data struct {
		Games     int `json:"games"`
		Connected int `json:"connected"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode health data: %v", err)
	}
	if data.Games != 1 || data.Connected != 1 {
		t.Fatalf("health data = %+v, want 1 game with 1 connected user", data)
	}
}

func TestCreateGameMintsCode(t *testing.T) {
	srv, deps := newTestServer(t, testConfig(), nil)

	status, env := getJSON(t, http.MethodPost, srv.URL+"/api/games")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	var data struct {
		GameID string `json:"gameId"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.GameID) != 8 {
		t.Fatalf("game code %q", data.GameID)
	}
	if deps.Registry.Len() != 0 {
		t.Fatal("minting a code created a game")
	}
}

func TestCreateGameRateLimited(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), limiter.NewIPRateLimiter(rate.Limit(0.001), 1))

	if status, _ := getJSON(t, http.MethodPost, srv.URL+"/api/games"); status != http.StatusOK {
		t.Fatalf("first request status = %d", status)
	}

	status, env := getJSON(t, http.MethodPost, srv.URL+"/api/games")
	if status != http.StatusTooManyRequests || env.Code != 1007 {
		t.Fatalf("second request = %d %+v", status, env)
	}
}

func TestGameExistsRejectsInvalidID(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), nil)

	status, env := getJSON(t, http.MethodGet, srv.URL+"/api/games/"+strings.Repeat("g", 65)+"/exists")
	if status != http.StatusBadRequest || env.Code != 2101 {
		t.Fatalf("invalid id = %d %+v", status, env)
	}
}

func TestCardPresets(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), nil)

	_, env := getJSON(t, http.MethodGet, srv.URL+"/api/card-presets")

	var data struct {
		Default string        `json:"default"`
		Presets []game.Preset `json:"presets"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Default != "tshirt" || len(data.Presets) != 3 {
		t.Fatalf("presets = %+v", data)
	}
}

func TestWebSocketSession(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), nil)

	existsURL := srv.URL + "/api/games/sprint-42/exists"
	assertExists := func(want bool) {
		t.Helper()

		_, env := getJSON(t, http.MethodGet, existsURL)
		var data struct {
			Exists bool `json:"exists"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatal(err)
		}
		if data.Exists != want {
			t.Fatalf("exists = %v, want %v", data.Exists, want)
		}
	}

	assertExists(false)
	assertExists(false)

	alice := dial(t, srv, nil)
	sendCommand(t, alice, room.TypeJoinGame, room.JoinGameCommand{GameID: "sprint-42", DisplayName: "Alice"})

	var snap room.UserJoinedPayload
	if err := json.Unmarshal(readUntil(t, alice, room.TypeUserJoined).Payload, &snap); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(snap.UserID, "user_") || snap.DisplayName == nil || *snap.DisplayName != "Alice" {
		t.Fatalf("alice snapshot = %+v", snap)
	}
	aliceID := snap.UserID

	assertExists(true)

	bob := dial(t, srv, nil)
	sendCommand(t, bob, room.TypeJoinGame, room.JoinGameCommand{GameID: "sprint-42", DisplayName: "Bob"})
	readUntil(t, bob, room.TypeUserJoined)
	readUntil(t, alice, room.TypeUserListUpdated)

	sendCommand(t, alice, room.TypeVote, room.VoteCommand{GameID: "sprint-42", UserID: aliceID, Vote: ptr("m")})
	readUntil(t, bob, room.TypeUserListUpdated)

	sendCommand(t, bob, room.TypeRevealVotes, room.GameCommand{GameID: "sprint-42"})

	var revealed room.VotesRevealedPayload
	if err := json.Unmarshal(readUntil(t, bob, room.TypeVotesRevealed).Payload, &revealed); err != nil {
		t.Fatal(err)
	}
	if len(revealed.Votes) != 1 || revealed.Votes[0] != (game.Vote{UserID: aliceID, Value: "m"}) {
		t.Fatalf("revealed = %+v", revealed)
	}

	alice.Close()

	var roster room.RosterPayload
	if err := json.Unmarshal(readUntil(t, bob, room.TypeUserListUpdated).Payload, &roster); err != nil {
		t.Fatal(err)
	}
	for _, u := range roster.Users {
		if u.ID == aliceID && u.Connected {
			t.Fatal("alice still connected after socket close")
		}
	}

	assertExists(true)
}

func TestWebSocketOriginCheck(t *testing.T) {
	cfg := testConfig()
	cfg.Environment = "production"
	cfg.AllowedOrigins = []string{"https://poker.example.com"}

	srv, _ := newTestServer(t, cfg, nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, res, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	if err == nil {
		t.Fatal("foreign origin was accepted")
	}
	if res == nil || res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", res)
	}

	conn := dial(t, srv, http.Header{"Origin": {"https://poker.example.com"}})
	sendCommand(t, conn, room.TypeJoinGame, room.JoinGameCommand{GameID: "g1", DisplayName: "Alice"})
	readUntil(t, conn, room.TypeUserJoined)
}

func ptr(s string) *string { return &s }
