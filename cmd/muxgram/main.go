package main

import (
	"fmt"
	"os"

	"github.com/muxgram/muxgram/internal/config"
	"github.com/muxgram/muxgram/internal/logging"
)

const Version = "0.1.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printHelp()
		return
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Printf("muxgram v%s\n", Version)
	case "help", "--help", "-h":
		printHelp()
	case "run":
		handleRun(args[1:])
	case "hook":
		handleHook(args[1:])
	case "hooks":
		handleHooks(args[1:])
	case "status":
		handleStatus(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`muxgram - relay Claude Code output from tmux windows to Telegram

Usage:
  muxgram run [-debug]      Run the monitor daemon and Telegram bot
  muxgram hook [event]      Record a session event (invoked by Claude Code)
  muxgram hooks <install|uninstall|status>
                            Manage muxgram entries in Claude Code settings.json
  muxgram status [-json]    Show recorded window bindings
  muxgram version           Print version

Getting started:
  1. Put your bot token and chat id in ~/.muxgram/config.toml, or export
     MUXGRAM_TELEGRAM_TOKEN and MUXGRAM_TELEGRAM_CHAT_ID.
  2. muxgram hooks install
  3. muxgram run (inside or outside tmux; sessions must run inside tmux)
`)
}

// initLogging wires the rotated log file from config. Both the daemon
// and short-lived hook invocations share it.
func initLogging(cfg *config.Config, debug bool) {
	logDir, err := config.LogDir()
	if err != nil {
		logDir = ""
	}
	logging.Init(logging.Config{
		LogDir:     logDir,
		Level:      cfg.Logs.Level,
		Format:     cfg.Logs.Format,
		MaxSizeMB:  cfg.Logs.MaxSizeMB,
		MaxBackups: cfg.Logs.MaxBackups,
		MaxAgeDays: cfg.Logs.MaxAgeDays,
		Compress:   cfg.Logs.Compress,
		Debug:      debug,
	})
}
