package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/muxgram/muxgram/internal/logging"
	"github.com/muxgram/muxgram/internal/sessionmap"
	"github.com/muxgram/muxgram/internal/tmux"
	"github.com/muxgram/muxgram/internal/transcript"
)

// apiClient is the slice of tgbotapi.BotAPI the sender needs, kept
// small so tests can script the API.
type apiClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// partDelay keeps multi-part messages arriving in order.
const partDelay = 100 * time.Millisecond

// Sender delivers monitor events to one Telegram chat. Relayed content
// goes as plain text: transcript output is arbitrary and any parse mode
// would reject it. Tables go as HTML <pre> blocks with a plain fallback.
type Sender struct {
	api    apiClient
	chatID int64
	log    *slog.Logger
}

func NewSender(api apiClient, chatID int64) *Sender {
	return &Sender{
		api:    api,
		chatID: chatID,
		log:    logging.ForComponent(logging.CompTelegram),
	}
}

// SendText splits and sends plain text.
func (s *Sender) SendText(text string) error {
	parts := NumberParts(SplitMessage(text, splitTarget))
	for i, part := range parts {
		if i > 0 {
			time.Sleep(partDelay)
		}
		msg := tgbotapi.NewMessage(s.chatID, part)
		if _, err := s.api.Send(msg); err != nil {
			return fmt.Errorf("telegram: send part %d/%d: %w", i+1, len(parts), err)
		}
	}
	return nil
}

// SendPre sends text in a monospace block. If the HTML variant is
// rejected the text is resent plain, so a delivery never fails over
// formatting.
func (s *Sender) SendPre(text string) error {
	wrapped := "<pre>" + html.EscapeString(text) + "</pre>"
	if len(wrapped) <= MaxMessageLen {
		msg := tgbotapi.NewMessage(s.chatID, wrapped)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := s.api.Send(msg); err == nil {
			return nil
		}
		s.log.Warn("pre_block_rejected_falling_back_plain")
	}
	return s.SendText(text)
}

func windowTitle(w tmux.Window) string {
	if w.Label != "" {
		return fmt.Sprintf("%s (%s)", w.Label, w.ID)
	}
	return w.ID
}

// NewContent relays one assistant turn.
func (s *Sender) NewContent(ctx context.Context, w tmux.Window, b sessionmap.Binding, u transcript.Unit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.SendText(fmt.Sprintf("🤖 %s\n%s", windowTitle(w), u.Text))
	if err != nil {
		s.log.Warn("content_delivery_failed",
			slog.String("window", w.ID),
			slog.Int("marker", u.Marker),
			slog.String("error", err.Error()))
		return err
	}
	s.log.Debug("content_delivered",
		slog.String("window", w.ID),
		slog.String("session", b.SessionID.String()),
		slog.Int("marker", u.Marker),
		slog.Int("chars", len(u.Text)))
	return nil
}

// SessionChanged announces that a window now hosts a different session.
func (s *Sender) SessionChanged(ctx context.Context, w tmux.Window, from, to sessionmap.SessionID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := fmt.Sprintf("🔄 %s: session changed\n%s → %s",
		windowTitle(w), ShortID(from.String()), ShortID(to.String()))
	if err := s.SendText(text); err != nil {
		s.log.Warn("change_delivery_failed",
			slog.String("window", w.ID),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// WindowTrouble reports a window the monitor keeps failing on.
func (s *Sender) WindowTrouble(ctx context.Context, w tmux.Window, reason string, consecutive int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := fmt.Sprintf("⚠️ %s: relay failing, %d consecutive errors\n%s",
		windowTitle(w), consecutive, reason)
	if err := s.SendText(text); err != nil {
		s.log.Warn("trouble_delivery_failed",
			slog.String("window", w.ID),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}
