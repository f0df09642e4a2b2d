package output

import (
	"io"
	"log/slog"
	"testing"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		input    string
		max      int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is longer", 7, "this is…"},
		{"привіт світ", 6, "привіт…"}, // rune-based, not byte-based
		{"", 5, ""},
	}

	for _, tc := range cases {
		if got := truncate(tc.input, tc.max); got != tc.expected {
			t.Errorf("truncate(%q, %d): expected %q, got %q", tc.input, tc.max, tc.expected, got)
		}
	}
}

func TestDeliverEmptyText(t *testing.T) {
	// Empty transcripts must not touch the clipboard or notifications
	d := New(Config{Clipboard: true, Paste: true, Notify: true},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.Deliver("")
}
