package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skypro1111/mic-stt-service/internal/audio"
	"github.com/skypro1111/mic-stt-service/internal/config"
	"github.com/skypro1111/mic-stt-service/internal/pipeline"
	"github.com/skypro1111/mic-stt-service/internal/stt"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testServer bundles the HTTP API with a faked capture session
type testServer struct {
	ts     *httptest.Server
	inject func([]float32)
}

type fakeCapture struct{}

func (c *fakeCapture) Stop() {}

func newTestServer(t *testing.T, transcribe stt.TranscribeFunc) *testServer {
	t.Helper()

	if transcribe == nil {
		transcribe = func(ctx context.Context, wavData []byte, lang stt.Language) (string, error) {
			return "", nil
		}
	}
	engineCfg := stt.DefaultLocalConfig()
	engineCfg.Transcribe = transcribe
	engine, err := stt.NewLocalEngine(engineCfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewLocalEngine failed: %v", err)
	}

	var mu sync.Mutex
	var onFrame func([]float32)

	pcfg := pipeline.DefaultConfig()
	pcfg.StartCapture = func(_ audio.CaptureConfig, _ *slog.Logger, cb func([]float32)) (pipeline.CaptureHandle, error) {
		mu.Lock()
		onFrame = cb
		mu.Unlock()
		return &fakeCapture{}, nil
	}
	p := pipeline.New(engine, pcfg, testLogger(), nil)

	appCfg := config.Default()
	h := NewHTTPServer(appCfg.HTTP, testLogger(), appCfg, p, nil, nil, nil)
	h.listDevices = func() []string { return []string{"Fake Microphone"} }

	ts := httptest.NewServer(h.server.Handler)
	t.Cleanup(func() {
		ts.Close()
		p.Close()
	})

	return &testServer{
		ts: ts,
		inject: func(frame []float32) {
			mu.Lock()
			cb := onFrame
			mu.Unlock()
			if cb == nil {
				t.Fatal("Capture not started")
			}
			cb(frame)
		},
	}
}

func getJSON(t *testing.T, url string, into interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("Failed to decode response from %s: %v", url, err)
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body string, into interface{}) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("Failed to decode response from %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	var health map[string]interface{}
	if code := getJSON(t, s.ts.URL+"/health", &health); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if health["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %v", health["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	var status map[string]interface{}
	if code := getJSON(t, s.ts.URL+"/status", &status); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if status["state"] != "stopped" {
		t.Errorf("Expected stopped state, got %v", status["state"])
	}
	if status["engine"] != "local" {
		t.Errorf("Expected local engine, got %v", status["engine"])
	}
}

func TestDevicesEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	var body map[string][]string
	if code := getJSON(t, s.ts.URL+"/devices", &body); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if len(body["devices"]) != 1 || body["devices"][0] != "Fake Microphone" {
		t.Errorf("Expected fake device list, got %v", body["devices"])
	}
}

func TestConfigEndpointOmitsCredentials(t *testing.T) {
	s := newTestServer(t, nil)

	resp, err := http.Get(s.ts.URL + "/config")
	if err != nil {
		t.Fatalf("GET /config failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if strings.Contains(string(body), "api_key") {
		t.Error("Expected /config to omit credentials")
	}
}

func TestPipelineStartStopFlow(t *testing.T) {
	s := newTestServer(t, func(ctx context.Context, wavData []byte, lang stt.Language) (string, error) {
		return "hello world", nil
	})

	var startResp map[string]interface{}
	if code := postJSON(t, s.ts.URL+"/pipeline/start", "", &startResp); code != http.StatusOK {
		t.Fatalf("Expected 200 on start, got %d", code)
	}

	// Starting again conflicts
	if code := postJSON(t, s.ts.URL+"/pipeline/start", "", nil); code != http.StatusConflict {
		t.Errorf("Expected 409 on double start, got %d", code)
	}

	// 500ms of audio at 16kHz crosses the local auto-dispatch threshold
	s.inject(make([]float32, 8000))

	var stopResp map[string]interface{}
	if code := postJSON(t, s.ts.URL+"/pipeline/stop", "", &stopResp); code != http.StatusOK {
		t.Fatalf("Expected 200 on stop, got %d", code)
	}
	if stopResp["transcript"] != "hello world" {
		t.Errorf("Expected transcript %q, got %v", "hello world", stopResp["transcript"])
	}

	// Stopping again is a harmless no-op with an empty transcript
	if code := postJSON(t, s.ts.URL+"/pipeline/stop", "", &stopResp); code != http.StatusOK {
		t.Errorf("Expected 200 on idempotent stop, got %d", code)
	}
	if stopResp["transcript"] != "" {
		t.Errorf("Expected empty transcript on idempotent stop, got %v", stopResp["transcript"])
	}
}

func TestLanguageEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	var resp map[string]interface{}
	if code := postJSON(t, s.ts.URL+"/pipeline/language", `{"language":"fr"}`, &resp); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if resp["language"] != "fr" {
		t.Errorf("Expected language fr, got %v", resp["language"])
	}

	var status map[string]interface{}
	getJSON(t, s.ts.URL+"/status", &status)
	if status["language"] != "fr" {
		t.Errorf("Expected status language fr, got %v", status["language"])
	}

	if code := postJSON(t, s.ts.URL+"/pipeline/language", "not json", nil); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid body, got %d", code)
	}
}

func TestPipelineStartRequiresPost(t *testing.T) {
	s := newTestServer(t, nil)

	resp, err := http.Get(s.ts.URL + "/pipeline/start")
	if err != nil {
		t.Fatalf("GET /pipeline/start failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", resp.StatusCode)
	}
}

func TestEventsStream(t *testing.T) {
	s := newTestServer(t, func(ctx context.Context, wavData []byte, lang stt.Language) (string, error) {
		return "streamed result", nil
	})

	if code := postJSON(t, s.ts.URL+"/pipeline/start", "", nil); code != http.StatusOK {
		t.Fatalf("Expected 200 on start, got %d", code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.ts.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Expected SSE content type, got %q", ct)
	}

	// Trigger a dispatch, then keep pushing small frames so the
	// processing loop drains the queued event once inference finishes
	s.inject(make([]float32, 8000))
	go func() {
		for i := 0; i < 200; i++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			s.inject(make([]float32, 160))
			time.Sleep(20 * time.Millisecond)
		}
	}()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev stt.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("Failed to decode SSE event: %v", err)
		}
		if ev.Text != "streamed result" {
			t.Errorf("Expected streamed result, got %q", ev.Text)
		}
		return
	}
	t.Fatalf("No event received before timeout: %v", scanner.Err())
}
