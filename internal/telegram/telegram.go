// Package telegram connects the bot to the Telegram Bot API with long
// polling.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"budgetbot/internal/bot"
	"budgetbot/internal/log"
)

// Handler receives every text message.
type Handler interface {
	Handle(ctx context.Context, in bot.Incoming) error
}

// api is the part of *tgbot.Bot the messenger needs.
type api interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *tgbot.EditMessageTextParams) (*models.Message, error)
}

// Messenger implements bot.Messenger on the Bot API.
type Messenger struct {
	api api
}

var _ bot.Messenger = (*Messenger)(nil)

func (m *Messenger) Send(ctx context.Context, msg bot.OutgoingMessage) (int, error) {
	sent, err := m.api.SendMessage(ctx, sendParams(msg))
	if err != nil {
		return 0, fmt.Errorf("send message to chat %d: %w", msg.ChatID, err)
	}
	return sent.ID, nil
}

func (m *Messenger) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	_, err := m.api.EditMessageText(ctx, &tgbot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err == nil {
		return nil
	}
	if isNotModified(err) {
		return fmt.Errorf("edit message %d: %w", messageID, bot.ErrNotModified)
	}
	return fmt.Errorf("edit message %d: %w", messageID, err)
}

// Client owns the polling connection.
type Client struct {
	*Messenger
	bot     *tgbot.Bot
	logger  *log.Logger
	handler Handler
}

// New checks the token against the API and prepares polling. Updates are
// only received once Run is called.
func New(token string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	c := &Client{logger: logger}

	b, err := tgbot.New(token,
		tgbot.WithDefaultHandler(func(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
			c.dispatch(ctx, update)
		}),
		tgbot.WithErrorsHandler(func(err error) {
			logger.Error("Telegram polling error", log.FieldError, err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	c.bot = b
	c.Messenger = &Messenger{api: b}
	return c, nil
}

// Run polls for updates until ctx is done.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	c.handler = handler
	c.logger.InfoContext(ctx, "Polling for updates")
	c.bot.Start(ctx)
	return nil
}

func (c *Client) dispatch(ctx context.Context, update *models.Update) {
	in, ok := incomingFromUpdate(update)
	if !ok || c.handler == nil {
		return
	}

	logger := c.logger.With(log.FieldUpdateID, update.ID)
	ctx = log.NewContext(ctx, logger)

	start := time.Now()
	if err := c.handler.Handle(ctx, in); err != nil {
		logger.ErrorContext(ctx, "Failed to handle message",
			log.FieldChatID, in.ChatID,
			log.FieldThreadID, in.ThreadID,
			log.FieldMessageID, in.MessageID,
			log.FieldError, err)
		return
	}
	logger.DebugContext(ctx, "Handled message",
		log.FieldDuration, time.Since(start).Milliseconds())
}

// incomingFromUpdate keeps new text messages. The thread id is only taken
// from forum topic messages; in plain groups MessageThreadID points at a
// reply chain instead.
func incomingFromUpdate(update *models.Update) (bot.Incoming, bool) {
	if update == nil || update.Message == nil || update.Message.Text == "" {
		return bot.Incoming{}, false
	}
	msg := update.Message

	in := bot.Incoming{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      msg.Text,
	}
	if msg.IsTopicMessage {
		in.ThreadID = int64(msg.MessageThreadID)
	}
	return in, true
}

func sendParams(msg bot.OutgoingMessage) *tgbot.SendMessageParams {
	p := &tgbot.SendMessageParams{
		ChatID:          msg.ChatID,
		MessageThreadID: int(msg.ThreadID),
		Text:            msg.Text,
	}
	if msg.HTML {
		p.ParseMode = models.ParseModeHTML
	}
	if msg.ReplyTo != 0 {
		p.ReplyParameters = &models.ReplyParameters{
			MessageID:                msg.ReplyTo,
			AllowSendingWithoutReply: true,
		}
	}
	return p
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
