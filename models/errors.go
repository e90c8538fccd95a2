package models

import "errors"

var (
	// ErrNotConnected is returned when sending on a closed session
	ErrNotConnected = errors.New("not connected")
	// ErrInvalidPayload is returned when a message fails type-specific validation
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrTimeout is returned when a connect or fetch exceeds its bound
	ErrTimeout = errors.New("timeout")
	// ErrMalformedFrame is returned when inbound data cannot be parsed
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrQueueFull is returned when a non-critical send finds the queue full of critical entries
	ErrQueueFull = errors.New("send queue is full")
)
