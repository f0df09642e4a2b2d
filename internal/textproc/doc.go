// Package textproc post-processes final transcripts through a chat
// completion API: reformulation (punctuation and recognition fixes) or
// translation to a target language.
package textproc
