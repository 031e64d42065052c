package receipt

// Outcome is the result class of one delivery attempt.
type Outcome uint8

const (
	// Unknown is the zero value. Callers treat it like TransientFailure so an unset outcome
	// never removes a cached receipt.
	Unknown Outcome = iota
	// Delivered means the server accepted the receipt; the cached copy, if any, is removed.
	Delivered
	// TransientFailure means the receipt stays cached for a later invocation.
	TransientFailure
	// PermanentFailure means the receipt is discarded and never retried.
	PermanentFailure
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case TransientFailure:
		return "transient_failure"
	case PermanentFailure:
		return "permanent_failure"
	default:
		return "unknown"
	}
}
