package scan

import "errors"

var (
	// ErrInvalidState is returned for calls not allowed in the session's current state, e.g. Refine from Idle
	ErrInvalidState = errors.New("invalid scan state")

	// ErrInvalidPredicate is returned for predicates not usable for the requested pass
	ErrInvalidPredicate = errors.New("invalid search predicate")

	// ErrBusy is returned when a pass is started while another pass runs
	ErrBusy = errors.New("scan already in progress")

	// ErrAborted is returned by a pass whose results were discarded by a concurrent Reset
	ErrAborted = errors.New("scan aborted by reset")
)
