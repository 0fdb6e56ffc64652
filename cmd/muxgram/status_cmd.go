package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/muxgram/muxgram/internal/config"
	"github.com/muxgram/muxgram/internal/sessionmap"
	"github.com/muxgram/muxgram/internal/telegram"
	"github.com/muxgram/muxgram/internal/tmux"
)

// handleStatus prints the recorded window bindings: an aligned table on
// a terminal, tab-separated through a pipe, or raw JSON with -json.
func handleStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "print the session map as JSON")
	fs.Parse(normalizeArgs(fs, args))

	storePath, err := config.StorePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	historyPath, _ := config.HistoryPath()
	store := sessionmap.NewStore(storePath, historyPath)

	m, loadErr := store.Load()
	if loadErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", loadErr)
	}

	if *jsonOut {
		data, err := json.MarshalIndent(m.Windows, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}

	if len(m.Windows) == 0 {
		fmt.Println("No session bindings recorded.")
		fmt.Println("Run 'muxgram hooks install', then start a Claude Code session inside tmux.")
		return
	}

	// Live window names when a tmux server is reachable; bindings whose
	// window vanished are flagged.
	liveNames := map[string]string{}
	haveLive := false
	if tmux.IsAvailable() == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if windows, err := tmux.NewClient(0).ListWindows(ctx); err == nil {
			haveLive = true
			for _, w := range windows {
				liveNames[w.ID] = w.Label
			}
		}
	}

	rows := statusRows(m, liveNames, haveLive)
	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Print(alignRows(rows))
	} else {
		for _, row := range rows[1:] {
			fmt.Println(strings.Join(row, "\t"))
		}
	}
}

func statusRows(m sessionmap.Map, liveNames map[string]string, haveLive bool) [][]string {
	ids := make([]string, 0, len(m.Windows))
	for id := range m.Windows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := [][]string{{"WINDOW", "NAME", "SESSION", "STATUS", "BOUND"}}
	for _, id := range ids {
		b := m.Windows[id]
		name := b.Label
		if haveLive {
			if live, ok := liveNames[id]; ok {
				name = live
			} else {
				name = "(gone)"
			}
		}
		if name == "" {
			name = "-"
		}
		rows = append(rows, []string{
			id,
			name,
			telegram.ShortID(b.SessionID.String()),
			b.Status,
			b.BoundAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return rows
}
