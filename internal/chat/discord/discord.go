// Package discord binds a Discord channel to chat.Collaborator, grounded
// on the teacher's internal/channels/discord/discord.go session setup and
// its confirmed discordgo call sites (ChannelMessageSend,
// ChannelMessageEdit, ChannelTyping).
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Collaborator implements chat.Collaborator for a single Discord channel.
type Collaborator struct {
	session   *discordgo.Session
	channelID string

	lastEventID string
}

// New opens a discordgo session bound to channelID, using the same
// intents the teacher's Channel.New requests.
func New(token, channelID string) (*Collaborator, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("open discord session: %w", err)
	}
	return &Collaborator{session: session, channelID: channelID}, nil
}

func (c *Collaborator) RoomID() string { return c.channelID }

func (c *Collaborator) Send(ctx context.Context, content string) (string, error) {
	msg, err := c.session.ChannelMessageSend(c.channelID, content)
	if err != nil {
		return "", fmt.Errorf("discord send: %w", err)
	}
	c.lastEventID = msg.ID
	return msg.ID, nil
}

func (c *Collaborator) Edit(ctx context.Context, eventID, content string) error {
	if _, err := c.session.ChannelMessageEdit(c.channelID, eventID, content); err != nil {
		return fmt.Errorf("discord edit: %w", err)
	}
	return nil
}

func (c *Collaborator) Typing(ctx context.Context) error {
	if err := c.session.ChannelTyping(c.channelID); err != nil {
		return fmt.Errorf("discord typing: %w", err)
	}
	return nil
}

func (c *Collaborator) SendNotification(ctx context.Context, content string) error {
	_, err := c.session.ChannelMessageSend(c.channelID, content)
	if err != nil {
		return fmt.Errorf("discord notify: %w", err)
	}
	return nil
}

func (c *Collaborator) LatestEventID(ctx context.Context) (string, error) {
	messages, err := c.session.ChannelMessages(c.channelID, 1, "", "", "")
	if err != nil {
		return "", fmt.Errorf("discord latest event: %w", err)
	}
	if len(messages) == 0 {
		return "", nil
	}
	return messages[0].ID, nil
}

// Close tears down the Discord session.
func (c *Collaborator) Close() error {
	return c.session.Close()
}

// Listen registers handler to be called with (senderID, content) for every
// message posted to this Collaborator's channel, skipping the bot's own
// messages — grounded on the teacher's Channel.Start wiring
// session.AddHandler(c.handleMessage) ahead of session.Open.
func (c *Collaborator) Listen(handler func(senderID, content string)) {
	c.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.ChannelID != c.channelID {
			return
		}
		if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
			return
		}
		handler(m.Author.Username, m.Content)
	})
}
