package receipt

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Receipt is a single display event.
type Receipt struct {
	// ID is the stable identity the server deduplicates on together with SchemaVersion.
	ID string
	// Payload is the opaque notification metadata, always a JSON object.
	Payload json.RawMessage
	// SchemaVersion is set by Decode; Encode always stamps the current SchemaVersion.
	SchemaVersion string
	CreatedAt     time.Time
	// SendAttempt is 0 when the receipt is sent on display and 1 when it is replayed from the
	// cache. Cached blobs are never rewritten, so it does not count repeated replays.
	SendAttempt int
	// Replay is true when the receipt is sent from the cache rather than on display.
	Replay bool
}

// New creates a receipt. An empty id is replaced with a random UUID.
func New(id string, payload json.RawMessage, createdAt time.Time) Receipt {
	if id == "" {
		id = uuid.NewString()
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return Receipt{
		ID:            id,
		Payload:       payload,
		SchemaVersion: SchemaVersion,
		CreatedAt:     createdAt,
	}
}

// AsReplay returns a copy marked as sent from the cache. Applied to the stored blob, which
// always holds the first-send form, it yields SendAttempt 1.
func (r Receipt) AsReplay() Receipt {
	r.Replay = true
	r.SendAttempt++
	return r
}

// DedupKey is the identity the collector uses to drop duplicate deliveries.
func (r Receipt) DedupKey() string {
	v := r.SchemaVersion
	if v == "" {
		v = SchemaVersion
	}
	return r.ID + "@" + v
}
