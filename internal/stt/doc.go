// Package stt provides the transcription engine abstraction: a shared
// buffer-accumulate / dispatch / poll contract implemented by
// HTTP-backed provider engines and a local exec-based engine.
package stt
