// Package server exposes the HTTP API: pipeline control, status and
// configuration endpoints, a server-sent event stream of transcription
// results and Prometheus metrics.
package server
