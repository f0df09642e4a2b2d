// Package metrics provides Prometheus metrics for monitoring the
// mic STT service, covering audio capture, engine dispatch,
// transcription requests, pipeline lifecycle and the HTTP API.
package metrics
