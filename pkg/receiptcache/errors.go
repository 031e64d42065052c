package receiptcache

import "errors"

var (
	// ErrNotFound means the entry vanished, usually because another invocation consumed it.
	// Callers treat it as a no-op.
	ErrNotFound = errors.New("cache entry not found")

	ErrInvalidConfig = errors.New("invalid cache configuration")
	ErrInvalidName   = errors.New("invalid cache entry name") // Prevents path traversal

	// I/O errors - wrapped with the underlying cause
	ErrCreateDirFailed = errors.New("failed to create cache directory")
	ErrWriteFailed     = errors.New("failed to write cache entry")
	ErrReadFailed      = errors.New("failed to read cache entry")
	ErrListFailed      = errors.New("failed to list cache entries")
	ErrRemoveFailed    = errors.New("failed to remove cache entry")

	// S3-specific classification
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrServiceUnavailable = errors.New("storage service temporarily unavailable")
	ErrOperationTimeout   = errors.New("storage operation timed out")
	ErrOperationCanceled  = errors.New("storage operation canceled")
	ErrFailedToLoadConfig = errors.New("failed to load AWS config")
)
