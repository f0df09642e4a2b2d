package audio

import (
	"math"
	"testing"
)

func TestStereoToMonoMixdown(t *testing.T) {
	// Two stereo frames: (1.0, -1.0) and (0.5, 0.5)
	input := []float32{1.0, -1.0, 0.5, 0.5}
	mono := StereoToMono(input, 2)

	if len(mono) != 2 {
		t.Fatalf("Expected 2 mono samples, got %d", len(mono))
	}

	if mono[0] != 0.0 {
		t.Errorf("Frame 0: expected 0.0, got %f", mono[0])
	}
	if mono[1] != 0.5 {
		t.Errorf("Frame 1: expected 0.5, got %f", mono[1])
	}
}

func TestStereoToMonoPassthrough(t *testing.T) {
	input := []float32{0.1, 0.2, 0.3}
	mono := StereoToMono(input, 1)

	if len(mono) != len(input) {
		t.Fatalf("Expected %d samples, got %d", len(input), len(mono))
	}
	for i := range input {
		if mono[i] != input[i] {
			t.Errorf("Sample %d: expected %f, got %f", i, input[i], mono[i])
		}
	}
}

func TestStereoToMonoDropsPartialFrame(t *testing.T) {
	// 5 samples at 2 channels: last sample has no pair
	input := []float32{1.0, 1.0, 0.0, 0.0, 0.7}
	mono := StereoToMono(input, 2)

	if len(mono) != 2 {
		t.Errorf("Expected 2 mono samples, got %d", len(mono))
	}
}

func TestResampleSameRate(t *testing.T) {
	input := []float32{0.1, 0.2, 0.3, 0.4}
	output := Resample(input, 16000, 16000)

	if len(output) != len(input) {
		t.Fatalf("Expected %d samples, got %d", len(input), len(output))
	}
	for i := range input {
		if output[i] != input[i] {
			t.Errorf("Sample %d: expected %f, got %f", i, input[i], output[i])
		}
	}
}

func TestResampleDownsampleLength(t *testing.T) {
	// 480 samples at 48kHz is 10ms, which should become 160 samples at 16kHz
	input := make([]float32, 480)
	output := Resample(input, 48000, 16000)

	if len(output) != 160 {
		t.Errorf("Expected 160 samples, got %d", len(output))
	}
}

func TestResampleConstantSignal(t *testing.T) {
	// Linear interpolation between equal values must preserve them exactly
	input := make([]float32, 480)
	for i := range input {
		input[i] = 1.0
	}

	output := Resample(input, 48000, 16000)
	if len(output) != 160 {
		t.Fatalf("Expected 160 samples, got %d", len(output))
	}
	for i, s := range output {
		if s != 1.0 {
			t.Errorf("Sample %d: expected 1.0, got %f", i, s)
		}
	}
}

func TestResampleSineWave(t *testing.T) {
	// A low-frequency sine should survive 48kHz -> 16kHz with small error
	sourceRate := 48000
	targetRate := 16000
	frequency := 200.0

	input := make([]float32, sourceRate/10) // 100ms
	for i := range input {
		input[i] = float32(math.Sin(2 * math.Pi * frequency * float64(i) / float64(sourceRate)))
	}

	output := Resample(input, sourceRate, targetRate)
	if len(output) != len(input)/3 {
		t.Fatalf("Expected %d samples, got %d", len(input)/3, len(output))
	}

	for i, s := range output {
		expected := math.Sin(2 * math.Pi * frequency * float64(i) / float64(targetRate))
		if math.Abs(float64(s)-expected) > 0.01 {
			t.Fatalf("Sample %d: expected %.4f, got %.4f", i, expected, s)
		}
	}
}

func TestResampleUpsample(t *testing.T) {
	// 160 samples at 16kHz should become 480 samples at 48kHz
	input := make([]float32, 160)
	for i := range input {
		input[i] = float32(i) / 160.0
	}

	output := Resample(input, 16000, 48000)
	if len(output) != 480 {
		t.Errorf("Expected 480 samples, got %d", len(output))
	}
}

func TestResampleEmpty(t *testing.T) {
	output := Resample(nil, 48000, 16000)
	if len(output) != 0 {
		t.Errorf("Expected empty output, got %d samples", len(output))
	}
}
