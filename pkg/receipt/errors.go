package receipt

import "errors"

var (
	ErrMissingID          = errors.New("receipt: identifier is required")
	ErrInvalidPayload     = errors.New("receipt: payload must be a JSON object")
	ErrMalformed          = errors.New("receipt: malformed encoded receipt")
	ErrUnsupportedVersion = errors.New("receipt: unsupported schema version")
)

// IsDecodeError reports whether err means the blob can never be decoded by this build.
// Such blobs are discarded rather than retried.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrMalformed) || errors.Is(err, ErrUnsupportedVersion)
}
