// Package output delivers finished transcripts to the desktop via the
// clipboard, a simulated paste shortcut and notifications.
package output
