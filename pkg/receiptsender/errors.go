package receiptsender

import "errors"

// Classification errors carried in Result.Err. Transient errors leave the receipt cached for
// a later flush; permanent errors discard it.
var (
	ErrInvalidConfiguration = errors.New("invalid receipt sender configuration")
	ErrInvalidURL           = errors.New("invalid receipt endpoint URL")
	ErrInvalidPayload       = errors.New("invalid receipt payload")

	ErrPermanentFailure = errors.New("receipt permanently rejected")
	ErrTemporaryFailure = errors.New("temporary receipt delivery failure")
	ErrTimeout          = errors.New("receipt request timeout")
	ErrCircuitOpen      = errors.New("receipt endpoint circuit breaker is open")
)

// IsCircuitOpen checks if an error indicates the circuit breaker is open
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
