package cheat

import "errors"

var (
	ErrDuplicateEntry = errors.New("cheat already exists")
	ErrEntryNotFound  = errors.New("cheat not found")
	ErrInvalidEntry   = errors.New("invalid cheat")

	// ErrSkipped is returned for an apply tick dropped because the access gate was held by a scan
	ErrSkipped = errors.New("apply skipped, target busy")

	// ErrNotRunning is returned by Trigger when no apply loop is running
	ErrNotRunning = errors.New("apply loop not running")

	ErrAlreadyRunning = errors.New("apply loop already running")
)
