package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrSessionBusy     = errors.New("session already has an active agent turn")
	ErrQueueSaturated  = errors.New("analysis queue is full")
)
