// Package telegram binds a Telegram chat to chat.Collaborator, grounded on
// the teacher's internal/channels/telegram (telego bot construction,
// tu.Message/tu.ID helpers, SendMessage/SendChatAction call sites).
package telegram

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Collaborator implements chat.Collaborator for a single Telegram chat.
type Collaborator struct {
	bot    *telego.Bot
	chatID int64
}

// New constructs a telego bot bound to chatID.
func New(token string, chatID int64) (*Collaborator, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Collaborator{bot: bot, chatID: chatID}, nil
}

func (c *Collaborator) RoomID() string { return strconv.FormatInt(c.chatID, 10) }

func (c *Collaborator) Send(ctx context.Context, content string) (string, error) {
	msg, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(c.chatID), content))
	if err != nil {
		return "", fmt.Errorf("telegram send: %w", err)
	}
	return strconv.Itoa(msg.MessageID), nil
}

func (c *Collaborator) Edit(ctx context.Context, eventID, content string) error {
	messageID, err := strconv.Atoi(eventID)
	if err != nil {
		return fmt.Errorf("telegram edit: invalid event id %q: %w", eventID, err)
	}
	params := tu.EditMessageText(tu.ID(c.chatID), messageID, content)
	if _, err := c.bot.EditMessageText(ctx, params); err != nil {
		return fmt.Errorf("telegram edit: %w", err)
	}
	return nil
}

func (c *Collaborator) Typing(ctx context.Context) error {
	if err := c.bot.SendChatAction(ctx, tu.ChatAction(tu.ID(c.chatID), telego.ChatActionTyping)); err != nil {
		return fmt.Errorf("telegram typing: %w", err)
	}
	return nil
}

func (c *Collaborator) SendNotification(ctx context.Context, content string) error {
	_, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(c.chatID), content))
	if err != nil {
		return fmt.Errorf("telegram notify: %w", err)
	}
	return nil
}

// LatestEventID has no direct Bot API equivalent (Telegram doesn't expose
// "last message in chat" without local tracking), so it always returns "".
// The Feed Manager treats an empty latest id as "not buried" and keeps
// editing the id it recorded from its own Send.
func (c *Collaborator) LatestEventID(ctx context.Context) (string, error) {
	return "", nil
}

// Listen begins long-polling for updates on this chat and calls handler
// with (senderID, content) for every text message received, blocking
// until ctx is cancelled — grounded on the teacher's Channel.Start, which
// opens UpdatesViaLongPolling and ranges over the resulting channel.
func (c *Collaborator) Listen(ctx context.Context, handler func(senderID, content string)) error {
	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return fmt.Errorf("start telegram long polling: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Chat.ID != c.chatID {
				continue
			}
			if update.Message.Text == "" {
				continue
			}
			sender := strconv.FormatInt(update.Message.Chat.ID, 10)
			if update.Message.From != nil {
				sender = update.Message.From.Username
				if sender == "" {
					sender = strconv.FormatInt(update.Message.From.ID, 10)
				}
			}
			handler(sender, update.Message.Text)
		}
	}
}
