package stt

import (
	"errors"
	"sync"
)

// Engine load and inference errors
var (
	// ErrModelNotFound indicates the model reference or credential is empty or missing
	ErrModelNotFound = errors.New("model not found")
	// ErrModelLoad indicates the engine could not be constructed from its configuration
	ErrModelLoad = errors.New("model load error")
	// ErrInvalidAudio indicates the buffered audio could not be encoded for inference
	ErrInvalidAudio = errors.New("invalid audio format")
)

// EventKind distinguishes provisional from definitive transcription results
type EventKind int

const (
	// EventPartial is a provisional result that may be superseded
	EventPartial EventKind = iota
	// EventFinal is a definitive result that is never revised
	EventFinal
)

// String returns the event kind name
func (k EventKind) String() string {
	switch k {
	case EventPartial:
		return "partial"
	case EventFinal:
		return "final"
	default:
		return "unknown"
	}
}

// Event is a transcription result produced by an engine.
// Events are drained in FIFO order via Poll.
type Event struct {
	Kind EventKind `json:"kind"`
	Text string    `json:"text"`
}

// Engine is the common contract of all transcription engines.
//
// PushAudio, Flush and Reset are expected to be called from a single
// goroutine (the pipeline's processing loop); the dispatched inference
// call runs concurrently and communicates back only through the event
// queue and the pending flag, so engines need no further locking
// against their caller.
type Engine interface {
	// Name returns a short engine identifier for logs and status
	Name() string
	// IsReady reports whether the engine can accept audio
	IsReady() bool
	// SetLanguage sets the language for subsequently dispatched requests
	SetLanguage(lang Language)
	// Language returns the active language
	Language() Language
	// PushAudio appends mono samples to the accumulation buffer
	PushAudio(samples []float32)
	// Poll pops one ready event in FIFO order; ok is false when empty
	Poll() (Event, bool)
	// Flush dispatches any buffered audio and blocks until the dispatch
	// settles or the engine's flush timeout elapses
	Flush()
	// Reset clears the buffer and any ready events; language is kept
	Reset()
}

// eventQueue is the FIFO queue shared between an engine and its
// detached inference calls.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
}

func (q *eventQueue) push(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, ev)
}

func (q *eventQueue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return Event{}, false
	}
	ev := q.events[0]
	q.events = q.events[1:]
	return ev, true
}

func (q *eventQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = nil
}
