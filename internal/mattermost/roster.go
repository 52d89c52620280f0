package mattermost

import (
	"context"
	"fmt"
	"slices"

	"izin-bot/internal/leave"
)

const maxChannelMembers = 200

// Roster resolves the overseers of a channel: its channel admins plus any
// statically configured user IDs.
type Roster struct {
	client *Client
	static []string
}

func NewRoster(client *Client, staticIDs []string) *Roster {
	return &Roster{client: client, static: staticIDs}
}

func (r *Roster) OverseersOf(ctx context.Context, channelID string) ([]string, error) {
	members, err := r.client.GetChannelMembers(ctx, channelID, maxChannelMembers)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", leave.ErrLookup, err)
	}

	ids := slices.Clone(r.static)
	for _, m := range members {
		if m.SchemeAdmin && !slices.Contains(ids, m.UserID) {
			ids = append(ids, m.UserID)
		}
	}
	return ids, nil
}

// Sink delivers escalations as direct messages from the bot.
type Sink struct {
	client *Client
}

func NewSink(client *Client) *Sink {
	return &Sink{client: client}
}

func (s *Sink) Deliver(ctx context.Context, userID, text string) error {
	if err := s.client.SendDM(ctx, userID, text); err != nil {
		return fmt.Errorf("%w: %w", leave.ErrDelivery, err)
	}
	return nil
}
