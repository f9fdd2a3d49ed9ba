// Package chat defines the ChatCollaborator contract the core uses to
// surface Feed updates, notifications, and typing indicators, without
// depending on any one chat transport.
//
// It is a strict superset of the teacher's internal/channels.Channel
// (channels/channel.go): Channel covers inbound routing and outbound
// Send, but has no Edit — sticky Feed updates (spec.md §4.5) require
// editing a previously sent message in place, which none of the teacher's
// channel implementations needed until now. Grounded additionally on the
// teacher's Telegram adapter's placeholder-message pattern
// (internal/channels/telegram) and the confirmed discordgo call sites in
// internal/channels/discord/discord.go (ChannelMessageEdit/
// ChannelMessageSend/ChannelTyping).
package chat

import "context"

// Collaborator is the per-room handle the Feed Manager and Execution
// Engine use to talk to one chat transport.
type Collaborator interface {
	// RoomID identifies the room/channel this collaborator is bound to.
	RoomID() string

	// Send posts a new message and returns the transport's event id.
	Send(ctx context.Context, content string) (string, error)

	// Edit rewrites a previously sent message in place.
	Edit(ctx context.Context, eventID, content string) error

	// Typing surfaces a transient typing/thinking indicator.
	Typing(ctx context.Context) error

	// SendNotification posts an out-of-band message that is never part of
	// the sticky Feed (e.g. approval prompts, errors).
	SendNotification(ctx context.Context, content string) error

	// LatestEventID returns the most recent message id the transport has
	// observed in this room, or "" if unknown — used by the Feed Manager's
	// sticky update logic to detect whether it has been buried by other
	// traffic.
	LatestEventID(ctx context.Context) (string, error)
}
