package output

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/atotto/clipboard"
	"github.com/gen2brain/beeep"
	"github.com/micmonay/keybd_event"
)

// notifyTitle is the desktop notification title
const notifyTitle = "Transcription"

// notifyMaxLength bounds the notification body; longer transcripts are
// truncated with an ellipsis.
const notifyMaxLength = 200

// Config contains transcription delivery configuration
type Config struct {
	// Clipboard copies the transcript to the system clipboard
	Clipboard bool
	// Paste simulates the paste shortcut after copying; implies a
	// clipboard write and restores the previous clipboard content
	Paste bool
	// Notify shows a desktop notification with the transcript
	Notify bool
}

// Deliverer hands finished transcripts to the desktop: clipboard,
// simulated paste and notifications. All channels are best-effort;
// failures are logged and do not fail delivery of the others.
type Deliverer struct {
	config Config
	logger *slog.Logger
}

// New creates a transcript deliverer
func New(config Config, logger *slog.Logger) *Deliverer {
	return &Deliverer{
		config: config,
		logger: logger,
	}
}

// Deliver hands one transcript to the configured channels
func (d *Deliverer) Deliver(text string) {
	if text == "" {
		return
	}

	if d.config.Paste {
		if err := d.pasteText(text); err != nil {
			d.logger.Warn("Failed to paste transcript", slog.String("error", err.Error()))
		}
	} else if d.config.Clipboard {
		if err := clipboard.WriteAll(text); err != nil {
			d.logger.Warn("Failed to write transcript to clipboard", slog.String("error", err.Error()))
		}
	}

	if d.config.Notify {
		if err := beeep.Notify(notifyTitle, truncate(text, notifyMaxLength), ""); err != nil {
			d.logger.Warn("Failed to show notification", slog.String("error", err.Error()))
		}
	}
}

// pasteText writes the text to the clipboard, simulates the paste
// shortcut and restores the previous clipboard content.
func (d *Deliverer) pasteText(text string) error {
	orig, _ := clipboard.ReadAll()
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard write: %w", err)
	}
	// Give the clipboard owner time to take the new content
	time.Sleep(80 * time.Millisecond)

	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return fmt.Errorf("key binding: %w", err)
	}
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	kb.SetKeys(keybd_event.VK_V)
	if err := kb.Launching(); err != nil {
		return fmt.Errorf("paste keystroke: %w", err)
	}

	// Restore the clipboard once the paste target has read it. When
	// Clipboard is also enabled the transcript stays on the clipboard.
	if !d.config.Clipboard {
		time.Sleep(120 * time.Millisecond)
		if err := clipboard.WriteAll(orig); err != nil {
			return fmt.Errorf("clipboard restore: %w", err)
		}
	}
	return nil
}

// truncate shortens s to at most max runes, appending an ellipsis
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
