/*
Package room contains the realtime session layer: WebSocket clients, the broadcast hub and
the coordinator that turns client commands into game state changes.

This file defines the wire envelope and one request or payload type per message.
*/
package room

import (
	"encoding/json"
	"time"

	"planpoker/internal/app/game"
)

// MessageType identifies a command or event on the wire.
type MessageType string

// Commands sent by clients.
const (
	TypeJoinGame      MessageType = "join-game"
	TypeVote          MessageType = "vote"
	TypeRevealVotes   MessageType = "reveal-votes"
	TypeResetVotes    MessageType = "reset-votes"
	TypeToggleRole    MessageType = "toggle-role"
	TypeUpdateCardSet MessageType = "update-card-set"
	TypeHeartbeat     MessageType = "heartbeat"
	TypeUserActive    MessageType = "user-active"
	TypeThrowEmoji    MessageType = "throw-emoji"
)

// IsCommand reports whether t is a command clients may send.
func (t MessageType) IsCommand() bool {
	switch t {
	case TypeJoinGame, TypeVote, TypeRevealVotes, TypeResetVotes, TypeToggleRole,
		TypeUpdateCardSet, TypeHeartbeat, TypeUserActive, TypeThrowEmoji:
		return true
	}
	return false
}

// Events sent by the server.
const (
	TypeUserJoined      MessageType = "user-joined"
	TypeUserListUpdated MessageType = "user-list-updated"
	TypeVotesRevealed   MessageType = "votes-revealed"
	TypeVotesReset      MessageType = "votes-reset"
	TypeCardSetUpdated  MessageType = "card-set-updated"
	TypeEmojiThrown     MessageType = "emoji-thrown"
)

// Message is the envelope of every server frame.
type Message struct {
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp int64       `json:"timestamp"`
}

// NewMessage wraps payload in an envelope stamped with the current time.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Encode returns the JSON frame for m.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// inboundMessage is the envelope of every client frame.
type inboundMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinGameCommand asks to enter a game. Username is accepted as an alias of DisplayName
// for older clients.
type JoinGameCommand struct {
	GameID      string        `json:"gameId"`
	UserID      string        `json:"userId,omitempty"`
	DisplayName string        `json:"displayName,omitempty"`
	Username    string        `json:"username,omitempty"`
	Role        string        `json:"role,omitempty"`
	CardSet     *game.CardSet `json:"cardSet,omitempty"`
}

// VoteCommand casts or, with a null vote, withdraws a vote.
type VoteCommand struct {
	GameID string  `json:"gameId"`
	UserID string  `json:"userId"`
	Vote   *string `json:"vote"`
}

// GameCommand carries only a game, used by reveal-votes and reset-votes.
type GameCommand struct {
	GameID string `json:"gameId"`
}

// UserCommand addresses one participant, used by toggle-role, heartbeat and user-active.
type UserCommand struct {
	GameID string `json:"gameId"`
	UserID string `json:"userId"`
}

// UpdateCardSetCommand replaces a game's estimate set.
type UpdateCardSetCommand struct {
	GameID  string       `json:"gameId"`
	CardSet game.CardSet `json:"cardSet"`
}

// ThrowEmojiCommand throws a reaction at a participant.
type ThrowEmojiCommand struct {
	GameID       string `json:"gameId"`
	TargetUserID string `json:"targetUserId"`
	Emoji        string `json:"emoji"`
}

// UserJoinedPayload is the snapshot sent to a joining client. DisplayName is null and
// NeedsName set when the server knows no name for the user yet.
type UserJoinedPayload struct {
	UserID      string       `json:"userId"`
	DisplayName *string      `json:"displayName"`
	NeedsName   bool         `json:"needsName"`
	Users       []game.User  `json:"users"`
	Votes       []game.Vote  `json:"votes"`
	Revealed    bool         `json:"revealed"`
	CardSet     game.CardSet `json:"cardSet"`
}

// RosterPayload carries the ordered participant list of user-list-updated and votes-reset.
type RosterPayload struct {
	Users []game.User `json:"users"`
}

// VotesRevealedPayload carries the complete vote set.
type VotesRevealedPayload struct {
	Votes    []game.Vote `json:"votes"`
	Revealed bool        `json:"revealed"`
}

// CardSetPayload carries a game's active estimate set.
type CardSetPayload struct {
	CardSet game.CardSet `json:"cardSet"`
}

// EmojiPayload is a relayed reaction.
type EmojiPayload struct {
	TargetUserID string `json:"targetUserId"`
	Emoji        string `json:"emoji"`
}
