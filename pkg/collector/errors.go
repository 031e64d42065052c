package collector

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid collector configuration")

	// ErrDedupUnavailable means the deduplication backend failed. The request is answered with
	// 503 so the sender keeps the receipt cached.
	ErrDedupUnavailable = errors.New("deduplication backend unavailable")
	// ErrSinkFailed means an accepted receipt could not be handed over.
	ErrSinkFailed = errors.New("failed to store receipt")
)
