package stt

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLocalEngine(t *testing.T, transcribe TranscribeFunc) *LocalEngine {
	t.Helper()
	config := DefaultLocalConfig()
	config.Transcribe = transcribe
	engine, err := NewLocalEngine(config, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewLocalEngine failed: %v", err)
	}
	return engine
}

// waitForEvent polls the engine until an event arrives or the deadline passes
func waitForEvent(t *testing.T, engine Engine, timeout time.Duration) (Event, bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ev, ok := engine.Poll(); ok {
			return ev, true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return Event{}, false
}

func TestLocalEngineAutoDispatch(t *testing.T) {
	var calls atomic.Int32
	engine := newTestLocalEngine(t, func(ctx context.Context, wavData []byte, lang Language) (string, error) {
		calls.Add(1)
		return "spoken text", nil
	})

	// 500ms at 16kHz crosses the default auto-dispatch threshold
	engine.PushAudio(make([]float32, 8000))

	ev, ok := waitForEvent(t, engine, 2*time.Second)
	if !ok {
		t.Fatal("Expected an event from auto-dispatch")
	}
	if ev.Kind != EventFinal || ev.Text != "spoken text" {
		t.Errorf("Expected final %q, got %v %q", "spoken text", ev.Kind, ev.Text)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("Expected 1 inference call, got %d", got)
	}
}

func TestLocalEngineBelowThresholdAccumulates(t *testing.T) {
	var calls atomic.Int32
	engine := newTestLocalEngine(t, func(ctx context.Context, wavData []byte, lang Language) (string, error) {
		calls.Add(1)
		return "text", nil
	})

	// 100ms is below the 500ms threshold, so no dispatch yet
	engine.PushAudio(make([]float32, 1600))
	time.Sleep(50 * time.Millisecond)

	if got := calls.Load(); got != 0 {
		t.Errorf("Expected no inference below threshold, got %d calls", got)
	}

	// The next push crosses the threshold with the accumulated audio
	engine.PushAudio(make([]float32, 6400))

	if _, ok := waitForEvent(t, engine, 2*time.Second); !ok {
		t.Fatal("Expected an event once the threshold is crossed")
	}
}

func TestLocalEngineFlushDiscardsShortBuffer(t *testing.T) {
	var calls atomic.Int32
	engine := newTestLocalEngine(t, func(ctx context.Context, wavData []byte, lang Language) (string, error) {
		calls.Add(1)
		return "text", nil
	})

	engine.PushAudio(make([]float32, 1600))
	engine.Flush()

	if got := calls.Load(); got != 0 {
		t.Errorf("Expected short buffer to be discarded on flush, got %d calls", got)
	}
	if _, ok := engine.Poll(); ok {
		t.Error("Expected no events for discarded buffer")
	}
}

func TestLocalEngineInferenceFailureProducesNoEvent(t *testing.T) {
	engine := newTestLocalEngine(t, func(ctx context.Context, wavData []byte, lang Language) (string, error) {
		return "", errors.New("model crashed")
	})

	engine.PushAudio(make([]float32, 8000))
	engine.Flush()

	if _, ok := engine.Poll(); ok {
		t.Error("Expected no event after inference failure")
	}
	if engine.Pending() {
		t.Error("Expected pending flag to be cleared after failure")
	}
}

func TestLocalEngineLanguagePassedToInference(t *testing.T) {
	langCh := make(chan Language, 1)
	engine := newTestLocalEngine(t, func(ctx context.Context, wavData []byte, lang Language) (string, error) {
		langCh <- lang
		return "text", nil
	})

	engine.SetLanguage(LanguageUkrainian)
	engine.PushAudio(make([]float32, 8000))
	engine.Flush()

	select {
	case lang := <-langCh:
		if lang != LanguageUkrainian {
			t.Errorf("Expected language uk, got %v", lang)
		}
	default:
		t.Fatal("Expected an inference call")
	}
}

func TestLocalEngineRequiresModel(t *testing.T) {
	config := DefaultLocalConfig()
	_, err := NewLocalEngine(config, testLogger(), nil)
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Expected ErrModelNotFound for empty model path, got %v", err)
	}

	config.ModelPath = "/nonexistent/model.bin"
	config.Command = "whisper-cli"
	_, err = NewLocalEngine(config, testLogger(), nil)
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Expected ErrModelNotFound for missing model file, got %v", err)
	}
}
