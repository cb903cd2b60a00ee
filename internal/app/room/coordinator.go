/*
Package room contains the realtime session layer: WebSocket clients, the broadcast hub and
the coordinator that turns client commands into game state changes.

This file defines the Coordinator, which decodes client commands, applies them to the
game under the game's command lock and publishes the resulting events through the Hub.
*/
package room

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"planpoker/internal/app/game"
	"planpoker/internal/app/user"
	"planpoker/internal/pkg/logx"
	"planpoker/internal/pkg/randx"
	"planpoker/internal/pkg/req"
)

const (
	// maxJoinAttempts bounds retries when a game is evicted during a join.
	maxJoinAttempts = 3

	// maxEmojiBytes bounds a relayed reaction.
	maxEmojiBytes = 32
)

var errDropped = errors.New("command dropped")

// Coordinator applies client commands to games.
type Coordinator struct {
	registry *game.Registry
	resolver *user.Resolver
	hub      *Hub
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// NewCoordinator wires the coordinator to its collaborators.
func NewCoordinator(registry *game.Registry, resolver *user.Resolver, hub *Hub, tracer trace.Tracer) *Coordinator {
	return &Coordinator{
		registry: registry,
		resolver: resolver,
		hub:      hub,
		tracer:   tracer,
		logger:   logx.Component("coordinator"),
	}
}

// Dispatch decodes one client frame and runs the matching command. Malformed frames,
// unknown types and commands for unknown games are logged and dropped.
func (co *Coordinator) Dispatch(c *Client, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn().Err(err).Int("bytes", len(data)).Msg("Client sent invalid JSON")
		return
	}

	spanName := "room.unknown"
	if msg.Type.IsCommand() {
		spanName = "room." + string(msg.Type)
	}

	ctx, span := co.tracer.Start(context.Background(), spanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("planpoker.client_id", c.ID)),
	)
	defer span.End()

	var err error
	switch msg.Type {
	case TypeJoinGame:
		err = co.handleJoin(ctx, c, msg.Payload)
	case TypeVote:
		err = co.handleVote(ctx, c, msg.Payload)
	case TypeRevealVotes:
		err = co.handleReveal(ctx, c, msg.Payload)
	case TypeResetVotes:
		err = co.handleReset(ctx, c, msg.Payload)
	case TypeToggleRole:
		err = co.handleToggleRole(ctx, c, msg.Payload)
	case TypeUpdateCardSet:
		err = co.handleUpdateCardSet(ctx, c, msg.Payload)
	case TypeHeartbeat, TypeUserActive:
		err = co.handleLiveness(ctx, c, msg.Payload)
	case TypeThrowEmoji:
		err = co.handleThrowEmoji(ctx, c, msg.Payload)
	default:
		c.logger.Warn().Str("msg_type", string(msg.Type)).Msg("Client sent unsupported message type")
		err = errDropped
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
}

// decode strictly decodes a command payload and validates its game ID.
func decode[T any](ctx context.Context, c *Client, payload json.RawMessage, gameID func(*T) *string) (T, error) {
	var cmd T
	if err := req.DecodeStrict(payload, &cmd); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid payload")
		return cmd, err
	}

	id := gameID(&cmd)
	*id = strings.TrimSpace(*id)
	if !randx.IsValidGameID(*id) {
		c.logger.Warn().Str("game_id", *id).Msg("Client sent invalid game id")
		return cmd, errDropped
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("planpoker.game_id", *id))
	return cmd, nil
}

// lookup returns an existing game; commands for unknown games are ignored.
func (co *Coordinator) lookup(c *Client, gameID string) (*game.Game, error) {
	g, ok := co.registry.Get(gameID)
	if !ok {
		c.logger.Debug().Str("game_id", gameID).Msg("Command for unknown game ignored")
		return nil, errDropped
	}
	return g, nil
}

func (co *Coordinator) handleJoin(ctx context.Context, c *Client, payload json.RawMessage) error {
	cmd, err := decode(ctx, c, payload, func(p *JoinGameCommand) *string { return &p.GameID })
	if err != nil {
		return err
	}

	name := cmd.DisplayName
	if strings.TrimSpace(name) == "" {
		name = cmd.Username
	}

	res := co.resolver.Resolve(cmd.UserID, name)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("planpoker.user_id", res.UserID),
		attribute.Bool("planpoker.needs_name", res.NeedsName),
	)

	if res.NeedsName {
		co.sendNeedsName(c, cmd.GameID, res.UserID)
		return nil
	}

	co.release(c, cmd.GameID, res.UserID)

	for range maxJoinAttempts {
		g, created := co.registry.GetOrCreate(cmd.GameID)

		var joinErr error
		g.Exclusive(func() {
			joinErr = co.joinLocked(c, g, res, cmd)
		})

		if !errors.Is(joinErr, game.ErrGameClosed) {
			if joinErr == nil {
				co.logger.Info().
					Str("game_id", cmd.GameID).
					Str("user_id", res.UserID).
					Str("client_id", c.ID).
					Bool("new_game", created).
					Bool("new_user", res.Minted).
					Bool("renamed", res.Renamed).
					Msg("User joined game.")
			}
			return joinErr
		}
	}

	co.logger.Warn().Str("game_id", cmd.GameID).Msg("Join gave up after repeated game eviction")
	return game.ErrGameClosed
}

func (co *Coordinator) joinLocked(c *Client, g *game.Game, res user.Resolution, cmd JoinGameCommand) error {
	u, _, err := g.Join(res.UserID, res.DisplayName, game.ParseRole(cmd.Role), c.ID)
	if err != nil {
		return err
	}

	c.Bind(g.ID, u.ID)
	co.hub.Subscribe(g.ID, c)

	proposed := false
	var invalidated []string
	if cmd.CardSet != nil {
		proposed, invalidated = g.ProposeCardSet(*cmd.CardSet)
	}

	votes, revealed := g.SnapshotFor(u.ID)
	roster := g.Roster()
	cardSet := g.CardSet()

	co.hub.ToSender(c, NewMessage(TypeUserJoined, UserJoinedPayload{
		UserID:      u.ID,
		DisplayName: &u.DisplayName,
		Users:       roster,
		Votes:       votes,
		Revealed:    revealed,
		CardSet:     cardSet,
	}))

	if proposed {
		co.hub.ToOthers(g.ID, c, NewMessage(TypeCardSetUpdated, CardSetPayload{CardSet: cardSet}))
	}

	co.hub.ToOthers(g.ID, c, NewMessage(TypeUserListUpdated, RosterPayload{Users: roster}))

	// Others still hold the revealed votes the new set just withdrew.
	if len(invalidated) > 0 && revealed {
		co.hub.ToOthers(g.ID, c, NewMessage(TypeVotesRevealed, VotesRevealedPayload{Votes: votes, Revealed: true}))
	}

	return nil
}

// sendNeedsName tells the sender a display name is required. The client does not join
// the room.
func (co *Coordinator) sendNeedsName(c *Client, gameID, userID string) {
	cardSet := co.registry.Presets().Default()
	if g, ok := co.registry.Get(gameID); ok {
		cardSet = g.CardSet()
	}

	co.hub.ToSender(c, NewMessage(TypeUserJoined, UserJoinedPayload{
		UserID:    userID,
		NeedsName: true,
		Users:     []game.User{},
		Votes:     []game.Vote{},
		CardSet:   cardSet,
	}))
}

func (co *Coordinator) handleVote(ctx context.Context, c *Client, payload json.RawMessage) error {
	cmd, err := decode(ctx, c, payload, func(p *VoteCommand) *string { return &p.GameID })
	if err != nil {
		return err
	}

	g, err := co.lookup(c, cmd.GameID)
	if err != nil {
		return err
	}

	g.Exclusive(func() {
		if !g.RecordVote(cmd.UserID, cmd.Vote) {
			return
		}
		co.broadcastState(g, g.Revealed())
	})

	return nil
}

func (co *Coordinator) handleReveal(ctx context.Context, c *Client, payload json.RawMessage) error {
	cmd, err := decode(ctx, c, payload, func(p *GameCommand) *string { return &p.GameID })
	if err != nil {
		return err
	}

	g, err := co.lookup(c, cmd.GameID)
	if err != nil {
		return err
	}

	g.Exclusive(func() {
		votes := g.Reveal()
		co.hub.ToRoom(g.ID, NewMessage(TypeVotesRevealed, VotesRevealedPayload{Votes: votes, Revealed: true}))
	})

	return nil
}

func (co *Coordinator) handleReset(ctx context.Context, c *Client, payload json.RawMessage) error {
	cmd, err := decode(ctx, c, payload, func(p *GameCommand) *string { return &p.GameID })
	if err != nil {
		return err
	}

	g, err := co.lookup(c, cmd.GameID)
	if err != nil {
		return err
	}

	g.Exclusive(func() {
		roster := g.Reset()
		co.hub.ToRoom(g.ID, NewMessage(TypeVotesReset, RosterPayload{Users: roster}))
	})

	return nil
}

func (co *Coordinator) handleToggleRole(ctx context.Context, c *Client, payload json.RawMessage) error {
	cmd, err := decode(ctx, c, payload, func(p *UserCommand) *string { return &p.GameID })
	if err != nil {
		return err
	}

	g, err := co.lookup(c, cmd.GameID)
	if err != nil {
		return err
	}

	g.Exclusive(func() {
		u, ok := g.ToggleRole(cmd.UserID)
		if !ok {
			return
		}
		co.broadcastState(g, u.Role == game.RoleObserver && g.Revealed())
	})

	return nil
}

func (co *Coordinator) handleUpdateCardSet(ctx context.Context, c *Client, payload json.RawMessage) error {
	cmd, err := decode(ctx, c, payload, func(p *UpdateCardSetCommand) *string { return &p.GameID })
	if err != nil {
		return err
	}

	g, err := co.lookup(c, cmd.GameID)
	if err != nil {
		return err
	}

	g.Exclusive(func() {
		set, invalidated, updateErr := g.UpdateCardSet(cmd.CardSet)
		if updateErr != nil {
			c.logger.Warn().Err(updateErr).Str("game_id", g.ID).Msg("Client sent unusable card set")
			err = updateErr
			return
		}

		co.hub.ToRoom(g.ID, NewMessage(TypeCardSetUpdated, CardSetPayload{CardSet: set}))

		if len(invalidated) > 0 {
			c.logger.Debug().Strs("invalidated", invalidated).Str("game_id", g.ID).Msg("Votes invalidated by card set change")
			co.broadcastState(g, g.Revealed())
		}
	})

	return err
}

func (co *Coordinator) handleThrowEmoji(ctx context.Context, c *Client, payload json.RawMessage) error {
	cmd, err := decode(ctx, c, payload, func(p *ThrowEmojiCommand) *string { return &p.GameID })
	if err != nil {
		return err
	}

	if cmd.Emoji == "" || len(cmd.Emoji) > maxEmojiBytes || cmd.TargetUserID == "" {
		return errDropped
	}

	if _, err := co.lookup(c, cmd.GameID); err != nil {
		return err
	}

	co.hub.ToRoom(cmd.GameID, NewMessage(TypeEmojiThrown, EmojiPayload{
		TargetUserID: cmd.TargetUserID,
		Emoji:        cmd.Emoji,
	}))

	return nil
}

// broadcastState sends the roster to the room, followed by the full vote set when
// withVotes is set.
func (co *Coordinator) broadcastState(g *game.Game, withVotes bool) {
	co.hub.ToRoom(g.ID, NewMessage(TypeUserListUpdated, RosterPayload{Users: g.Roster()}))

	if withVotes {
		co.hub.ToRoom(g.ID, NewMessage(TypeVotesRevealed, VotesRevealedPayload{Votes: g.Votes(), Revealed: true}))
	}
}

// Disconnect marks the connection's participant as disconnected once its socket is gone.
func (co *Coordinator) Disconnect(c *Client) {
	gameID, userID := c.Binding()
	co.hub.Unsubscribe(c)
	c.Bind("", "")

	if gameID == "" {
		return
	}

	co.markDisconnected(c, gameID, userID)
}

// release detaches c from a previous binding that differs from (gameID, userID).
func (co *Coordinator) release(c *Client, gameID, userID string) {
	prevGame, prevUser := c.Binding()
	if prevGame == "" || (prevGame == gameID && prevUser == userID) {
		return
	}

	co.hub.Unsubscribe(c)
	c.Bind("", "")
	co.markDisconnected(c, prevGame, prevUser)
}

func (co *Coordinator) markDisconnected(c *Client, gameID, userID string) {
	g, ok := co.registry.Get(gameID)
	if !ok {
		return
	}

	g.Exclusive(func() {
		if !g.MarkDisconnected(userID, c.ID) {
			co.logger.Debug().
				Str("game_id", gameID).
				Str("user_id", userID).
				Str("client_id", c.ID).
				Msg("Ignoring disconnect for STALE connection.")
			return
		}

		co.logger.Info().
			Str("game_id", gameID).
			Str("user_id", userID).
			Str("client_id", c.ID).
			Msg("User disconnected.")

		co.hub.ToRoom(gameID, NewMessage(TypeUserListUpdated, RosterPayload{Users: g.Roster()}))
	})
}
