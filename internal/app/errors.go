package service

import "errors"

// Sentinel errors returned by the service.
var (
	ErrNotStarted      = errors.New("service not started")
	ErrBackpressure    = errors.New("attempt queue is full")
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyStroke     = errors.New("no points given")
	ErrInvalidAttempt  = errors.New("invalid attempt")
)
