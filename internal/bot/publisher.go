package bot

import (
	"context"
	"errors"
	"fmt"

	"budgetbot/internal/log"
	"budgetbot/internal/storage"
)

// ErrNotModified is returned by a Messenger when an edit would leave the
// message text unchanged.
var ErrNotModified = errors.New("message is not modified")

// OutgoingMessage is a new message to post.
type OutgoingMessage struct {
	ChatID int64
	// ThreadID 0 posts outside any forum thread.
	ThreadID int64
	// ReplyTo is the message being answered, 0 for none.
	ReplyTo int
	Text    string
	HTML    bool
}

// Messenger is the transport used to talk back to the chat.
type Messenger interface {
	// Send posts a message and returns its id.
	Send(ctx context.Context, msg OutgoingMessage) (int, error)
	// Edit replaces the HTML text of an existing message.
	Edit(ctx context.Context, chatID int64, messageID int, text string) error
}

// BalancePublisher keeps one balance message per chat up to date.
type BalancePublisher struct {
	store         storage.LedgerStore
	messenger     Messenger
	balanceThread int64
	logger        *log.Logger
}

func NewBalancePublisher(store storage.LedgerStore, messenger Messenger, balanceThread int64, logger *log.Logger) *BalancePublisher {
	if logger == nil {
		logger = log.Discard()
	}
	return &BalancePublisher{
		store:         store,
		messenger:     messenger,
		balanceThread: balanceThread,
		logger:        logger,
	}
}

// Publish edits the tracked balance message in place. When there is none,
// or the edit fails for any reason, a new message is sent to the balance
// thread and becomes the tracked one.
func (p *BalancePublisher) Publish(ctx context.Context, chatID int64, text string) error {
	logger := log.FromContextOr(ctx, p.logger.With(log.FieldChatID, chatID))

	state, err := p.store.GetState(ctx, chatID)
	if err != nil {
		return err
	}

	if state.HasBalanceMessage() {
		err := p.messenger.Edit(ctx, chatID, state.BalanceMessageID, text)
		if err == nil || errors.Is(err, ErrNotModified) {
			return nil
		}
		fields := log.NewFields().WithOperation(log.OpEdit).WithError(err)
		fields[log.FieldMessageID] = state.BalanceMessageID
		logger.WarnContext(ctx, "Editing balance message failed, sending a new one", fields.ToSlice()...)
	}

	id, err := p.messenger.Send(ctx, OutgoingMessage{
		ChatID:   chatID,
		ThreadID: p.balanceThread,
		Text:     text,
		HTML:     true,
	})
	if err != nil {
		return fmt.Errorf("send balance message: %w", err)
	}

	if err := p.store.SetBalanceMessageRef(ctx, chatID, id); err != nil {
		return err
	}
	logger.InfoContext(ctx, "Posted new balance message",
		log.FieldOperation, log.OpSend,
		log.FieldMessageID, id)
	return nil
}
