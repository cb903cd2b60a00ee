package room

import (
	"context"
	"encoding/json"
)

// handleLiveness serves heartbeat and user-active. Both re-associate this connection with
// the participant and mark them connected; the roster is broadcast only when that changes
// the participant's state.
func (co *Coordinator) handleLiveness(ctx context.Context, c *Client, payload json.RawMessage) error {
	cmd, err := decode(ctx, c, payload, func(p *UserCommand) *string { return &p.GameID })
	if err != nil {
		return err
	}

	g, err := co.lookup(c, cmd.GameID)
	if err != nil {
		return err
	}

	if _, known := g.User(cmd.UserID); !known {
		return errDropped
	}

	co.release(c, cmd.GameID, cmd.UserID)

	g.Exclusive(func() {
		wasConnected, ok := g.MarkConnected(cmd.UserID, c.ID)
		if !ok {
			return
		}

		c.Bind(g.ID, cmd.UserID)
		co.hub.Subscribe(g.ID, c)

		if !wasConnected {
			co.logger.Info().
				Str("game_id", g.ID).
				Str("user_id", cmd.UserID).
				Str("client_id", c.ID).
				Msg("User reconnected by liveness signal.")

			co.hub.ToRoom(g.ID, NewMessage(TypeUserListUpdated, RosterPayload{Users: g.Roster()}))
		}
	})

	return nil
}
