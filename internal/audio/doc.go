// Package audio handles microphone capture and audio format conversion.
// It bridges the hardware-driven capture callback to a cooperative consumer,
// downmixes and resamples hardware buffers to the target rate, and encodes
// PCM audio to WAV for transcription.
package audio
