package loginstate

import "errors"

var (
	// ErrNotFound is returned when the state is unknown or was already consumed.
	ErrNotFound = errors.New("login state not found")

	// ErrExpired is returned when the state existed but its TTL had elapsed.
	ErrExpired = errors.New("login state expired")
)
