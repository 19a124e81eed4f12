package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldChatID      = "chat_id"
	FieldThreadID    = "thread_id"
	FieldMessageID   = "message_id"
	FieldUpdateID    = "update_id"
	FieldAction      = "action"
	FieldCategory    = "category"
	FieldDirection   = "direction"
	FieldAmountCents = "amount_cents"
	FieldEntryID     = "entry_id"
	FieldEventID     = "event_id"
	FieldTotalCents  = "total_cents"
	FieldFoodCents   = "food_cents"
	FieldDuration    = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentBot      = "bot"
	ComponentTelegram = "telegram"
	ComponentStorage  = "storage"
	ComponentBackend  = "backend"
	ComponentAMQP     = "amqp"
	ComponentKafka    = "kafka"
	ComponentWorker   = "worker"
	ComponentSheets   = "sheets"
	ComponentHTTP     = "http"
)

// Operations defines standard operation names
const (
	OpRoute    = "route"
	OpApply    = "apply"
	OpSet      = "set"
	OpPublish  = "publish"
	OpEdit     = "edit"
	OpSend     = "send"
	OpConsume  = "consume"
	OpAppend   = "append"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds the error text, skipping nil errors
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithChat(chatID, threadID int64) LogFields {
	f[FieldChatID] = chatID
	f[FieldThreadID] = threadID
	return f
}

// WithEntry adds journal entry fields
func (f LogFields) WithEntry(category, direction string, amountCents int64) LogFields {
	f[FieldCategory] = category
	f[FieldDirection] = direction
	f[FieldAmountCents] = amountCents
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
