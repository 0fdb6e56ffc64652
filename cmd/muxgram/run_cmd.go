package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/muxgram/muxgram/internal/config"
	"github.com/muxgram/muxgram/internal/ledger"
	"github.com/muxgram/muxgram/internal/logging"
	"github.com/muxgram/muxgram/internal/monitor"
	"github.com/muxgram/muxgram/internal/platform"
	"github.com/muxgram/muxgram/internal/sessionmap"
	"github.com/muxgram/muxgram/internal/telegram"
	"github.com/muxgram/muxgram/internal/tmux"
	"github.com/muxgram/muxgram/internal/transcript"
)

// handleRun starts the daemon: the monitor loop, the Telegram bot, and
// the session map watcher, all sharing one cancellation.
func handleRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	debug := fs.Bool("debug", false, "mirror logs to stderr")
	fs.Parse(args)
	if os.Getenv("MUXGRAM_DEBUG") != "" {
		*debug = true
	}

	cfg, cfgErr := config.Load()
	initLogging(cfg, *debug)
	defer logging.Shutdown()
	log := logging.ForComponent(logging.CompMain)
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (continuing with defaults)\n", cfgErr)
		log.Warn("config_load_error", slog.String("error", cfgErr.Error()))
	}

	// Configuration problems that cannot heal at runtime abort here with
	// a diagnostic instead of looping.
	token := cfg.Telegram.GetToken()
	if token == "" {
		fmt.Fprintln(os.Stderr, "Error: no Telegram bot token configured.")
		fmt.Fprintln(os.Stderr, "Set MUXGRAM_TELEGRAM_TOKEN or [telegram] token in ~/.muxgram/config.toml.")
		os.Exit(1)
	}
	chatID := cfg.Telegram.GetChatID()
	if chatID == 0 {
		fmt.Fprintln(os.Stderr, "Error: no Telegram chat id configured.")
		fmt.Fprintln(os.Stderr, "Set MUXGRAM_TELEGRAM_CHAT_ID or [telegram] chat_id in ~/.muxgram/config.toml.")
		os.Exit(1)
	}
	if err := tmux.IsAvailable(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: tmux not found in PATH.")
		os.Exit(1)
	}
	if _, err := config.EnsureBaseDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	storePath, err := config.StorePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	historyPath, _ := config.HistoryPath()
	store := sessionmap.NewStore(storePath, historyPath)

	// The relay works without its history ledger; a broken database is
	// reported and left behind.
	var led *ledger.Ledger
	if ledgerPath, err := config.LedgerPath(); err == nil {
		led, err = ledger.Open(ledgerPath)
		if err != nil {
			log.Warn("ledger_unavailable", slog.String("error", err.Error()))
		} else if err := led.Migrate(); err != nil {
			log.Warn("ledger_migrate_failed", slog.String("error", err.Error()))
			led.Close()
			led = nil
		} else {
			defer led.Close()
		}
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Telegram authorization failed: %v\n", err)
		os.Exit(1)
	}
	sender := telegram.NewSender(api, chatID)

	tmuxClient := tmux.NewClient(cfg.Monitor.GetFetchTimeout())
	source := transcript.NewSource(cfg.Claude.GetConfigDir())

	var sink monitor.Sink = sender
	if led != nil {
		sink = &recordingSink{next: sender, ledger: led, log: logging.ForComponent(logging.CompLedger)}
	}

	mon := monitor.New(tmuxClient, store, source, sink, monitor.Config{
		PollInterval:     cfg.Monitor.GetPollInterval(),
		FailureThreshold: cfg.Monitor.GetFailureThreshold(),
	})

	watcher, err := sessionmap.NewWatcher(storePath)
	if err != nil {
		log.Warn("map_watcher_unavailable", slog.String("error", err.Error()))
	} else {
		mon.NudgeFrom(watcher.Nudge())
	}

	botCfg := telegram.BotConfig{
		ChatID:  chatID,
		Allowed: cfg.Telegram.Allowed,
		Monitor: mon,
		Tmux:    tmuxClient,
	}
	if led != nil {
		botCfg.History = led
	}
	bot := telegram.NewBot(api, sender, botCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("shutting_down", slog.String("signal", sig.String()))
		cancel()
	}()

	log.Info("muxgram_started",
		slog.String("version", Version),
		slog.String("platform", platform.Detect().String()),
		slog.String("store", storePath),
		slog.Int64("chat_id", chatID))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mon.Run(ctx) })
	g.Go(func() error { return bot.Run(ctx) })
	if watcher != nil {
		g.Go(func() error { return watcher.Run(ctx) })
	}
	if err := g.Wait(); err != nil {
		log.Error("daemon_failed", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "muxgram: %v\n", err)
		os.Exit(1)
	}
	log.Info("muxgram_stopped")
}

// recordingSink decorates the Telegram sink with best-effort ledger
// writes after each successful delivery. The monitor only sees delivery
// outcomes; a ledger write failure is logged and swallowed.
type recordingSink struct {
	next   monitor.Sink
	ledger *ledger.Ledger
	log    *slog.Logger
}

func (r *recordingSink) NewContent(ctx context.Context, w tmux.Window, b sessionmap.Binding, u transcript.Unit) error {
	if err := r.next.NewContent(ctx, w, b, u); err != nil {
		return err
	}
	err := r.ledger.RecordRelay(ledger.RelayRow{
		WindowID:    w.ID,
		WindowLabel: w.Label,
		SessionID:   b.SessionID.String(),
		Marker:      u.Marker,
		Chars:       len(u.Text),
	})
	if err != nil {
		r.log.Warn("relay_record_failed", slog.String("error", err.Error()))
	}
	return nil
}

func (r *recordingSink) SessionChanged(ctx context.Context, w tmux.Window, from, to sessionmap.SessionID) error {
	if err := r.next.SessionChanged(ctx, w, from, to); err != nil {
		return err
	}
	err := r.ledger.RecordTransition(ledger.TransitionRow{
		WindowID:    w.ID,
		FromSession: from.String(),
		ToSession:   to.String(),
		Kind:        ledger.KindSessionChange,
	})
	if err != nil {
		r.log.Warn("transition_record_failed", slog.String("error", err.Error()))
	}
	return nil
}

func (r *recordingSink) WindowTrouble(ctx context.Context, w tmux.Window, reason string, consecutive int) error {
	if err := r.next.WindowTrouble(ctx, w, reason, consecutive); err != nil {
		return err
	}
	err := r.ledger.RecordTransition(ledger.TransitionRow{
		WindowID: w.ID,
		Kind:     ledger.KindTrouble,
		Detail:   fmt.Sprintf("%s (%d consecutive)", reason, consecutive),
	})
	if err != nil {
		r.log.Warn("transition_record_failed", slog.String("error", err.Error()))
	}
	return nil
}
