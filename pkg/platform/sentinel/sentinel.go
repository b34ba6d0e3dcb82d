package sentinel

import "errors"

// Infrastructure facts returned (optionally wrapped) by stores, caches and
// queue backends. Services translate them into domain errors; they never
// reach a client as-is.
//
//   - ErrNotFound: record or cache entry does not exist
//   - ErrConflict: unique constraint hit (username/email already taken)
//   - ErrUnavailable: backend temporarily unreachable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
