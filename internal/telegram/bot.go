package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/muxgram/muxgram/internal/ledger"
	"github.com/muxgram/muxgram/internal/monitor"
	"github.com/muxgram/muxgram/internal/tmux"
)

// Controller is the monitor surface the bot reads.
type Controller interface {
	Snapshot() monitor.Snapshot
}

// Keyboard types text into a tmux window.
type Keyboard interface {
	SendText(ctx context.Context, windowID, text string) error
}

// History reads the relay ledger. May be absent.
type History interface {
	RecentRelays(limit int) ([]ledger.RelayRow, error)
	RecentTransitions(limit int) ([]ledger.TransitionRow, error)
	Counts() (relays, transitions int64, err error)
}

type BotConfig struct {
	ChatID  int64
	Allowed func(chatID int64) bool
	Monitor Controller
	Tmux    Keyboard
	History History
}

// Bot handles inbound Telegram traffic: commands for inspecting the
// relay and plain text that gets typed into the selected tmux window.
type Bot struct {
	api       *tgbotapi.BotAPI
	sender    *Sender
	cfg       BotConfig
	log       *slog.Logger
	startedAt time.Time

	mu     sync.Mutex
	target string // selected window id, empty until /use
}

func NewBot(api *tgbotapi.BotAPI, sender *Sender, cfg BotConfig) *Bot {
	return &Bot{
		api:       api,
		sender:    sender,
		cfg:       cfg,
		log:       sender.log,
		startedAt: time.Now(),
	}
}

// Run consumes updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.registerCommands()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.log.Info("bot_listening", slog.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// registerCommands publishes the command menu. Best effort: the bot
// works without it.
func (b *Bot) registerCommands() {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "windows", Description: "List tmux windows and their sessions"},
		tgbotapi.BotCommand{Command: "use", Description: "Select the window that receives your messages"},
		tgbotapi.BotCommand{Command: "status", Description: "Relay status"},
		tgbotapi.BotCommand{Command: "history", Description: "Recently relayed output"},
		tgbotapi.BotCommand{Command: "help", Description: "How this bot works"},
	)
	if _, err := b.api.Request(cmds); err != nil {
		b.log.Warn("set_commands_failed", slog.String("error", err.Error()))
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if b.cfg.Allowed != nil && !b.cfg.Allowed(msg.Chat.ID) {
		b.log.Warn("unauthorized_chat", slog.Int64("chat_id", msg.Chat.ID))
		reply := tgbotapi.NewMessage(msg.Chat.ID, "unauthorized")
		_, _ = b.api.Send(reply)
		return
	}

	var reply string
	var mono bool
	if msg.IsCommand() {
		reply, mono = b.handleCommand(msg.Command(), strings.TrimSpace(msg.CommandArguments()))
	} else {
		reply = b.routeText(ctx, msg.Text)
	}
	if reply == "" {
		return
	}

	var err error
	if mono {
		err = b.sender.SendPre(reply)
	} else {
		err = b.sender.SendText(reply)
	}
	if err != nil {
		b.log.Warn("reply_failed", slog.String("error", err.Error()))
	}
}

func (b *Bot) handleCommand(command, args string) (reply string, mono bool) {
	switch command {
	case "start", "help":
		return helpText(), false
	case "windows":
		return b.cmdWindows()
	case "use":
		return b.cmdUse(args), false
	case "status":
		return b.cmdStatus(), false
	case "history":
		return b.cmdHistory(args), true
	default:
		return fmt.Sprintf("unknown command /%s, try /help", command), false
	}
}

func helpText() string {
	return strings.Join([]string{
		"I relay Claude Code output from your tmux windows.",
		"",
		"/windows - list windows and their sessions",
		"/use <window> - pick the window that receives your messages",
		"/status - relay health",
		"/history [n] - recently relayed output",
		"",
		"Anything else you type is sent to the selected window as if",
		"you typed it there, followed by Enter.",
	}, "\n")
}

func (b *Bot) cmdWindows() (string, bool) {
	snap := b.cfg.Monitor.Snapshot()
	rows := make([]TableRow, 0, len(snap.Windows))
	for _, ws := range snap.Windows {
		row := TableRow{
			Window:   ws.Window.ID,
			Label:    ws.Window.Label,
			Marker:   ws.Marker,
			Failures: ws.Failures,
		}
		if ws.HasBinding {
			row.Session = ShortID(ws.Binding.SessionID.String())
		}
		rows = append(rows, row)
	}
	return FormatWindowTable(rows), true
}

func (b *Bot) cmdUse(args string) string {
	if args == "" {
		b.mu.Lock()
		target := b.target
		b.mu.Unlock()
		if target == "" {
			return "no window selected, use /use <window>"
		}
		return fmt.Sprintf("current target is %s", target)
	}

	matches := b.matchWindows(args)
	switch len(matches) {
	case 0:
		return fmt.Sprintf("no window matches %q, see /windows", args)
	case 1:
		b.mu.Lock()
		b.target = matches[0].ID
		b.mu.Unlock()
		return fmt.Sprintf("now sending to %s", windowTitle(matches[0]))
	default:
		names := make([]string, len(matches))
		for i, w := range matches {
			names[i] = windowTitle(w)
		}
		return fmt.Sprintf("%q is ambiguous: %s", args, strings.Join(names, ", "))
	}
}

// matchWindows resolves a user reference: exact id (@1), bare number
// (1), or case-insensitive label prefix.
func (b *Bot) matchWindows(ref string) []tmux.Window {
	snap := b.cfg.Monitor.Snapshot()

	id := ref
	if _, err := strconv.Atoi(ref); err == nil {
		id = "@" + ref
	}
	for _, ws := range snap.Windows {
		if ws.Window.ID == id {
			return []tmux.Window{ws.Window}
		}
	}

	var matches []tmux.Window
	needle := strings.ToLower(ref)
	for _, ws := range snap.Windows {
		if strings.HasPrefix(strings.ToLower(ws.Window.Label), needle) {
			matches = append(matches, ws.Window)
		}
	}
	return matches
}

func (b *Bot) cmdStatus() string {
	snap := b.cfg.Monitor.Snapshot()
	bound := 0
	for _, ws := range snap.Windows {
		if ws.HasBinding {
			bound++
		}
	}

	b.mu.Lock()
	target := b.target
	b.mu.Unlock()
	if target == "" {
		target = "none"
	}

	lines := []string{
		fmt.Sprintf("relay up %s", time.Since(b.startedAt).Round(time.Second)),
		fmt.Sprintf("ticks %d, last at %s", snap.Ticks, snap.LastTick.Format("15:04:05")),
		fmt.Sprintf("windows %d, bound %d", len(snap.Windows), bound),
		fmt.Sprintf("target: %s", target),
	}
	if b.cfg.History != nil {
		if relays, transitions, err := b.cfg.History.Counts(); err == nil {
			lines = append(lines, fmt.Sprintf("ledger: %d relays, %d transitions", relays, transitions))
		}
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) cmdHistory(args string) string {
	if b.cfg.History == nil {
		return "history is not enabled"
	}
	limit := 10
	if args != "" {
		if n, err := strconv.Atoi(args); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	relays, err := b.cfg.History.RecentRelays(limit)
	if err != nil {
		return fmt.Sprintf("history unavailable: %v", err)
	}
	transitions, err := b.cfg.History.RecentTransitions(limit)
	if err != nil {
		return fmt.Sprintf("history unavailable: %v", err)
	}

	var sb strings.Builder
	sb.WriteString("recent relays\n")
	if len(relays) == 0 {
		sb.WriteString("  none\n")
	}
	for _, r := range relays {
		sb.WriteString(fmt.Sprintf("  %s %s %s line %d, %d chars\n",
			r.SentAt.Format("15:04"), r.WindowID, ShortID(r.SessionID), r.Marker, r.Chars))
	}
	sb.WriteString("recent transitions\n")
	if len(transitions) == 0 {
		sb.WriteString("  none\n")
	}
	for _, t := range transitions {
		switch t.Kind {
		case ledger.KindTrouble:
			sb.WriteString(fmt.Sprintf("  %s %s trouble: %s\n",
				t.OccurredAt.Format("15:04"), t.WindowID, t.Detail))
		default:
			sb.WriteString(fmt.Sprintf("  %s %s %s → %s\n",
				t.OccurredAt.Format("15:04"), t.WindowID,
				ShortID(t.FromSession), ShortID(t.ToSession)))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// routeText types a plain message into the selected window. With no
// selection and exactly one bound window, that window is used.
func (b *Bot) routeText(ctx context.Context, text string) string {
	b.mu.Lock()
	target := b.target
	b.mu.Unlock()

	snap := b.cfg.Monitor.Snapshot()
	if target == "" {
		var bound []tmux.Window
		for _, ws := range snap.Windows {
			if ws.HasBinding {
				bound = append(bound, ws.Window)
			}
		}
		if len(bound) != 1 {
			return "no window selected, use /use <window> first"
		}
		target = bound[0].ID
		b.mu.Lock()
		b.target = target
		b.mu.Unlock()
	}

	var window tmux.Window
	found := false
	for _, ws := range snap.Windows {
		if ws.Window.ID == target {
			window = ws.Window
			found = true
			break
		}
	}
	if !found {
		b.mu.Lock()
		b.target = ""
		b.mu.Unlock()
		return fmt.Sprintf("window %s is gone, pick another with /use", target)
	}

	if err := b.cfg.Tmux.SendText(ctx, target, text); err != nil {
		b.log.Warn("send_to_window_failed",
			slog.String("window", target),
			slog.String("error", err.Error()))
		return fmt.Sprintf("could not type into %s: %v", windowTitle(window), err)
	}
	return fmt.Sprintf("✅ sent to %s", windowTitle(window))
}
