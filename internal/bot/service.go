package bot

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"budgetbot/internal/core"
	"budgetbot/internal/events"
	"budgetbot/internal/log"
	"budgetbot/internal/storage"
)

const startHelp = "I keep the group budget by forum thread.\n\n" +
	"Threads:\n" +
	"🍽 Food: a separate budget, the total is not touched\n" +
	"🍽➕ Food top-up: adds to the food budget\n" +
	"🏠 Apartment: an expense, lowers the total\n" +
	"➕ Top-up: income, raises the total\n" +
	"Other marked threads: expenses, lower the total\n\n" +
	"Post an amount with an optional note, e.g. 1500 groceries.\n" +
	"A negative amount reverses the thread's effect.\n\n" +
	"Commands (post them in the Balance thread):\n" +
	"/settotal 50000.00\n" +
	"/setfood 20000.00\n\n" +
	"/where shows the ids of the current chat and thread"

const replyDone = "✅ Done."

// Options configure a Service. Every field is optional.
type Options struct {
	// Events receives every committed journal entry.
	Events   events.Publisher
	Now      func() time.Time
	Location *time.Location
	Logger   *log.Logger
}

// Service executes routed messages against the ledger.
type Service struct {
	store     storage.LedgerStore
	threads   core.ThreadRoleConfig
	messenger Messenger
	balance   *BalancePublisher
	events    events.Publisher
	now       func() time.Time
	location  *time.Location
	logger    *log.Logger

	mapMu sync.Mutex
	muMap map[int64]*sync.Mutex
}

func NewService(store storage.LedgerStore, threads core.ThreadRoleConfig, messenger Messenger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return &Service{
		store:     store,
		threads:   threads,
		messenger: messenger,
		balance:   NewBalancePublisher(store, messenger, threads.Balance, opts.Logger),
		events:    opts.Events,
		now:       opts.Now,
		location:  opts.Location,
		logger:    opts.Logger,
		muMap:     make(map[int64]*sync.Mutex),
	}
}

// chatLock serializes the read-compute-write cycle of one chat.
func (s *Service) chatLock(chatID int64) *sync.Mutex {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	if _, exists := s.muMap[chatID]; !exists {
		s.muMap[chatID] = &sync.Mutex{}
	}
	return s.muMap[chatID]
}

// Handle processes one incoming message. Persistence and transport errors
// are returned; the message is then considered not handled.
func (s *Service) Handle(ctx context.Context, in Incoming) error {
	action := Route(s.threads, in)
	logger := log.FromContextOr(ctx, s.logger).WithComponent(s.logger.Component()).WithChat(in.ChatID, in.ThreadID)
	ctx = log.NewContext(ctx, logger)
	if action.Kind != ActionIgnore {
		logger.DebugContext(ctx, "Routed message", log.FieldAction, action.Kind.String())
	}

	switch action.Kind {
	case ActionStart:
		return s.reply(ctx, in, startHelp)
	case ActionWhere:
		return s.reply(ctx, in, whereText(in))
	case ActionWrongThread:
		return s.reply(ctx, in, fmt.Sprintf("Use /%s in the Balance thread.", action.Command))
	case ActionCommandFormat:
		return s.reply(ctx, in, fmt.Sprintf("Format: /%s 10000.00", action.Command))
	case ActionInvalidAmount:
		return s.reply(ctx, in, fmt.Sprintf("Could not parse the amount. Example: /%s 12345.67", action.Command))
	case ActionSetTotal, ActionSetFood:
		return s.setAbsolute(ctx, logger, in, action)
	case ActionTransaction:
		return s.applyTransaction(ctx, logger, in, action)
	}
	return nil
}

// SetTotalAbsolute overwrites the total balance and republishes it.
func (s *Service) SetTotalAbsolute(ctx context.Context, chatID, cents int64) error {
	return s.overwrite(ctx, chatID, core.CounterTotal, cents)
}

// SetFoodAbsolute overwrites the food budget and republishes it.
func (s *Service) SetFoodAbsolute(ctx context.Context, chatID, cents int64) error {
	return s.overwrite(ctx, chatID, core.CounterFood, cents)
}

func (s *Service) setAbsolute(ctx context.Context, logger *log.Logger, in Incoming, action Action) error {
	counter := core.CounterTotal
	if action.Kind == ActionSetFood {
		counter = core.CounterFood
	}
	if err := s.overwrite(ctx, in.ChatID, counter, action.AmountCents); err != nil {
		return err
	}
	logger.InfoContext(ctx, "Counter overwritten",
		log.FieldOperation, log.OpSet,
		log.FieldCategory, string(counter),
		log.FieldAmountCents, action.AmountCents)
	return s.reply(ctx, in, replyDone)
}

func (s *Service) overwrite(ctx context.Context, chatID int64, counter core.Counter, cents int64) error {
	mu := s.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	annotation := core.AnnotationTotalSet
	set := s.store.SetTotal
	if counter == core.CounterFood {
		annotation = core.AnnotationFoodSet
		set = s.store.SetFood
	}
	if err := set(ctx, chatID, cents); err != nil {
		return err
	}

	state, err := s.store.GetState(ctx, chatID)
	if err != nil {
		return err
	}
	return s.balance.Publish(ctx, chatID, core.RenderBalance(state.TotalCents, state.FoodCents, annotation, s.timestamp()))
}

func (s *Service) applyTransaction(ctx context.Context, logger *log.Logger, in Incoming, action Action) error {
	mu := s.chatLock(in.ChatID)
	mu.Lock()
	defer mu.Unlock()

	state, err := s.store.GetState(ctx, in.ChatID)
	if err != nil {
		return err
	}

	effect, ok := core.ApplyPolicy(action.Role, action.Parsed.Sign, action.Parsed.AmountCents, state.TotalCents, state.FoodCents)
	if !ok {
		return nil
	}

	note := action.Parsed.Note
	entry, err := s.store.ApplyTransaction(ctx, effect.Transaction(in.ChatID, in.ThreadID, note))
	if err != nil {
		return err
	}
	fields := log.NewFields().
		WithOperation(log.OpApply).
		WithEntry(string(entry.Category), string(entry.Direction), entry.AmountCents)
	fields[log.FieldEntryID] = entry.ID
	fields[log.FieldTotalCents] = effect.TotalCents
	fields[log.FieldFoodCents] = effect.FoodCents
	logger.InfoContext(ctx, "Recorded entry", fields.ToSlice()...)

	s.emit(ctx, logger, events.NewEntryRecorded(entry, effect.TotalCents, effect.FoodCents))

	when := s.timestamp()
	text := core.RenderBalance(effect.TotalCents, effect.FoodCents, effect.Line(note, when), when)
	if err := s.balance.Publish(ctx, in.ChatID, text); err != nil {
		return err
	}
	return s.reply(ctx, in, fmt.Sprintf("✅ Recorded (%s).", effect.Name))
}

// emit publishes an event. A broker failure never fails the chat message;
// the entry is already committed.
func (s *Service) emit(ctx context.Context, logger *log.Logger, e *events.EntryRecorded) {
	if s.events == nil {
		logger.WarnContext(ctx, "Events publisher not available, skipping entry event", log.FieldEntryID, e.EntryID)
		return
	}
	if err := s.events.PublishEntry(ctx, e); err != nil {
		logger.ErrorContext(ctx, "Failed to publish entry event",
			log.FieldEntryID, e.EntryID,
			log.FieldEventID, e.EventID,
			log.FieldError, err)
	}
}

func (s *Service) reply(ctx context.Context, in Incoming, text string) error {
	_, err := s.messenger.Send(ctx, OutgoingMessage{
		ChatID:   in.ChatID,
		ThreadID: in.ThreadID,
		ReplyTo:  in.MessageID,
		Text:     text,
	})
	if err != nil {
		return fmt.Errorf("reply to message %d: %w", in.MessageID, err)
	}
	return nil
}

func (s *Service) timestamp() string {
	return s.now().In(s.location).Format(core.TimestampLayout)
}

func whereText(in Incoming) string {
	thread := "none"
	if in.ThreadID != 0 {
		thread = strconv.FormatInt(in.ThreadID, 10)
	}
	return fmt.Sprintf("chat_id=%d\nthread_id=%s", in.ChatID, thread)
}
