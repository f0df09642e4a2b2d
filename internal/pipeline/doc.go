// Package pipeline orchestrates the capture-to-transcription flow: it
// owns one engine and one capture session, drives the lifecycle state
// machine and broadcasts transcription events to subscribers.
package pipeline
