package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// CaptureConfig contains microphone capture parameters
type CaptureConfig struct {
	// TargetSampleRate is the output rate of captured frames (Hz).
	// The device's native rate is queried at start and converted.
	TargetSampleRate int
}

// DefaultCaptureConfig returns the capture configuration expected by
// the STT engines (16kHz mono).
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		TargetSampleRate: 16000,
	}
}

// Capture errors
var (
	// ErrNoDevice indicates no default input device is available
	ErrNoDevice = errors.New("no default input device")
	// ErrDeviceConfig indicates the device could not report a usable configuration
	ErrDeviceConfig = errors.New("device configuration error")
	// ErrStream indicates the input stream could not be built, started or stopped
	ErrStream = errors.New("input stream error")
)

// controlPollInterval is how often the capture goroutine checks for a
// stop signal while the stream runs. Stop latency is bounded by it.
const controlPollInterval = 100 * time.Millisecond

// Capture is a handle to an active microphone capture session.
// The native stream is owned by a dedicated goroutine; the device
// callback itself only downmixes, resamples and hands the frame off.
type Capture struct {
	logger *slog.Logger

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// StartCapture opens the default input device and starts capturing.
// Each hardware buffer is downmixed to mono, resampled to
// cfg.TargetSampleRate and passed to onFrame. Empty frames are skipped.
// onFrame runs on the device callback thread and must not block.
func StartCapture(cfg CaptureConfig, logger *slog.Logger, onFrame func([]float32)) (*Capture, error) {
	if cfg.TargetSampleRate <= 0 {
		return nil, fmt.Errorf("%w: target sample rate must be positive, got %d",
			ErrDeviceConfig, cfg.TargetSampleRate)
	}

	c := &Capture{
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	startErr := make(chan error, 1)
	go c.run(cfg, onFrame, startErr)

	if err := <-startErr; err != nil {
		<-c.doneCh
		return nil, err
	}

	return c, nil
}

// Stop signals the capture goroutine and waits for it to release the
// device. Safe to call multiple times; the wait is bounded by the
// control poll interval plus device teardown.
func (c *Capture) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	<-c.doneCh
}

// ListDevices returns the names of all available input devices.
// Enumeration failures yield an empty list rather than an error.
func ListDevices() []string {
	if err := portaudio.Initialize(); err != nil {
		return nil
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(devices))
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 {
			names = append(names, dev.Name)
		}
	}
	return names
}

// run owns the full lifetime of the native stream. The first error (or
// nil once the stream is started) is reported on startErr; after that
// the goroutine only waits for the stop signal.
func (c *Capture) run(cfg CaptureConfig, onFrame func([]float32), startErr chan<- error) {
	defer close(c.doneCh)

	if err := portaudio.Initialize(); err != nil {
		startErr <- fmt.Errorf("%w: initialize: %v", ErrStream, err)
		return
	}
	defer portaudio.Terminate()

	device, err := portaudio.DefaultInputDevice()
	if err != nil || device == nil {
		startErr <- ErrNoDevice
		return
	}

	// Use the device's native configuration; never assume 16kHz/mono.
	sourceRate := int(device.DefaultSampleRate)
	channels := device.MaxInputChannels
	if channels > 2 {
		channels = 2
	}
	if sourceRate <= 0 || channels <= 0 {
		startErr <- fmt.Errorf("%w: device %q reports %dHz %dch",
			ErrDeviceConfig, device.Name, sourceRate, channels)
		return
	}

	c.logger.Info("Audio capture configuration",
		slog.String("device", device.Name),
		slog.Int("source_rate", sourceRate),
		slog.Int("source_channels", channels),
		slog.Int("target_rate", cfg.TargetSampleRate),
	)

	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = channels
	params.SampleRate = float64(sourceRate)

	targetRate := cfg.TargetSampleRate
	stream, err := portaudio.OpenStream(params, func(in []float32) {
		mono := StereoToMono(in, channels)
		frame := Resample(mono, sourceRate, targetRate)
		if len(frame) == 0 {
			return
		}
		// When both conversions are passthrough the slice still aliases
		// the driver's buffer, which is reused after the callback returns.
		if channels == 1 && sourceRate == targetRate {
			owned := make([]float32, len(frame))
			copy(owned, frame)
			frame = owned
		}
		onFrame(frame)
	})
	if err != nil {
		startErr <- fmt.Errorf("%w: open: %v", ErrStream, err)
		return
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		startErr <- fmt.Errorf("%w: start: %v", ErrStream, err)
		return
	}

	startErr <- nil
	c.logger.Info("Audio capture started")

	ticker := time.NewTicker(controlPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			if err := stream.Stop(); err != nil {
				c.logger.Warn("Error stopping input stream", slog.String("error", err.Error()))
			}
			if err := stream.Close(); err != nil {
				c.logger.Warn("Error closing input stream", slog.String("error", err.Error()))
			}
			c.logger.Info("Audio capture stopped")
			return
		case <-ticker.C:
			// Idle poll; the OS audio thread is never awaited directly.
		}
	}
}
