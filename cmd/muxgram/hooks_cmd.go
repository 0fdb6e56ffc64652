package main

import (
	"fmt"
	"os"

	"github.com/muxgram/muxgram/internal/claudehooks"
	"github.com/muxgram/muxgram/internal/config"
)

// handleHooks manages muxgram's entries in Claude Code settings.json.
func handleHooks(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: muxgram hooks <install|uninstall|status>")
		os.Exit(1)
	}

	cfg, _ := config.Load()
	initLogging(cfg, false)
	configDir := cfg.Claude.GetConfigDir()

	switch args[0] {
	case "install":
		installed, err := claudehooks.Install(configDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error installing hooks: %v\n", err)
			os.Exit(1)
		}
		if installed {
			fmt.Println("Claude Code hooks installed.")
			fmt.Printf("Config: %s/settings.json\n", configDir)
		} else {
			fmt.Println("Claude Code hooks are already installed.")
		}
	case "uninstall":
		removed, err := claudehooks.Uninstall(configDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error removing hooks: %v\n", err)
			os.Exit(1)
		}
		if removed {
			fmt.Println("Claude Code hooks removed.")
		} else {
			fmt.Println("No muxgram hooks found to remove.")
		}
	case "status":
		for _, s := range claudehooks.Status(configDir) {
			state := "missing"
			if s.Installed {
				state = "installed"
			}
			fmt.Printf("%-13s %s\n", s.Event, state)
		}
		if !claudehooks.Installed(configDir) {
			fmt.Println("\nRun 'muxgram hooks install' to install.")
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown hooks subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Usage: muxgram hooks <install|uninstall|status>")
		os.Exit(1)
	}
}
