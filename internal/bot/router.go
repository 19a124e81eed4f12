// Package bot turns incoming chat messages into ledger updates and keeps the
// balance message of each chat in sync.
package bot

import (
	"strings"
	"unicode"

	"budgetbot/internal/core"
)

// Incoming is one text message delivered by the transport.
type Incoming struct {
	ChatID int64
	// ThreadID is 0 when the message was not posted in a forum thread.
	ThreadID  int64
	MessageID int
	Text      string
}

type ActionKind int

const (
	ActionIgnore ActionKind = iota
	ActionStart
	ActionWhere
	ActionWrongThread
	ActionCommandFormat
	ActionInvalidAmount
	ActionSetTotal
	ActionSetFood
	ActionTransaction
)

var actionNames = map[ActionKind]string{
	ActionIgnore:        "ignore",
	ActionStart:         "start",
	ActionWhere:         "where",
	ActionWrongThread:   "wrong_thread",
	ActionCommandFormat: "command_format",
	ActionInvalidAmount: "invalid_amount",
	ActionSetTotal:      "set_total",
	ActionSetFood:       "set_food",
	ActionTransaction:   "transaction",
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return "unknown"
}

const (
	CommandStart    = "start"
	CommandWhere    = "where"
	CommandSetTotal = "settotal"
	CommandSetFood  = "setfood"
)

// Action is what Route decided to do with a message.
type Action struct {
	Kind ActionKind
	// Command is set for command actions, without the leading slash.
	Command string
	// AmountCents is the absolute value for SetTotal and SetFood.
	AmountCents int64
	// Role and Parsed are set for Transaction.
	Role   core.ThreadRole
	Parsed core.ParsedMessage
}

// Route decides what a message means. It has no side effects.
func Route(cfg core.ThreadRoleConfig, in Incoming) Action {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Action{Kind: ActionIgnore}
	}
	if strings.HasPrefix(text, "/") {
		return routeCommand(cfg, in.ThreadID, text)
	}

	if in.ThreadID == 0 || !cfg.Configured() {
		return Action{Kind: ActionIgnore}
	}
	role, ok := cfg.RoleOf(in.ThreadID)
	if !ok || role == core.RoleBalance {
		return Action{Kind: ActionIgnore}
	}
	parsed, ok := core.ParseMessage(text)
	if !ok {
		return Action{Kind: ActionIgnore}
	}
	return Action{Kind: ActionTransaction, Role: role, Parsed: parsed}
}

func routeCommand(cfg core.ThreadRoleConfig, threadID int64, text string) Action {
	name, arg := text[1:], ""
	if i := strings.IndexFunc(name, unicode.IsSpace); i >= 0 {
		name, arg = name[:i], name[i:]
	}
	// /settotal@budget_bot 100
	name, _, _ = strings.Cut(name, "@")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)

	switch name {
	case CommandStart:
		return Action{Kind: ActionStart, Command: name}
	case CommandWhere:
		return Action{Kind: ActionWhere, Command: name}
	case CommandSetTotal, CommandSetFood:
	default:
		return Action{Kind: ActionIgnore}
	}

	if cfg.Balance == 0 || threadID != cfg.Balance {
		return Action{Kind: ActionWrongThread, Command: name}
	}
	if arg == "" {
		return Action{Kind: ActionCommandFormat, Command: name}
	}
	cents, err := core.ParseAmount(arg)
	if err != nil {
		return Action{Kind: ActionInvalidAmount, Command: name}
	}

	kind := ActionSetTotal
	if name == CommandSetFood {
		kind = ActionSetFood
	}
	return Action{Kind: kind, Command: name, AmountCents: cents}
}
