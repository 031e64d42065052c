package receipt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// envelope is the on-disk and on-wire representation. Field names are part of the protocol.
type envelope struct {
	Version     string          `json:"v"`
	ID          string          `json:"id"`
	CreatedAt   int64           `json:"ts"`
	SendAttempt int             `json:"send_attempt,omitempty"`
	Replay      bool            `json:"replay,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

var emptyObject = json.RawMessage(`{}`)

// Encode serializes r into the versioned envelope, stamping SchemaVersion.
func Encode(r Receipt) ([]byte, error) {
	if r.ID == "" {
		return nil, ErrMissingID
	}

	payload := bytes.TrimSpace(r.Payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		payload = emptyObject
	}
	if payload[0] != '{' || !json.Valid(payload) {
		return nil, ErrInvalidPayload
	}

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return json.Marshal(envelope{
		Version:     SchemaVersion,
		ID:          r.ID,
		CreatedAt:   createdAt.UnixMilli(),
		SendAttempt: r.SendAttempt,
		Replay:      r.Replay,
		Payload:     payload,
	})
}

// Decode parses an encoded receipt. Unknown versions yield ErrUnsupportedVersion and corrupt
// blobs ErrMalformed; both satisfy IsDecodeError.
func Decode(data []byte) (Receipt, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Receipt{}, fmt.Errorf("%w: empty blob", ErrMalformed)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch {
	case env.Version == "":
		return Receipt{}, fmt.Errorf("%w: missing version", ErrMalformed)
	case env.Version != SchemaVersion:
		return Receipt{}, fmt.Errorf("%w: %q", ErrUnsupportedVersion, env.Version)
	case env.ID == "":
		return Receipt{}, fmt.Errorf("%w: missing id", ErrMalformed)
	}

	payload := env.Payload
	if len(payload) == 0 {
		payload = emptyObject
	}

	return Receipt{
		ID:            env.ID,
		Payload:       payload,
		SchemaVersion: env.Version,
		CreatedAt:     time.UnixMilli(env.CreatedAt),
		SendAttempt:   env.SendAttempt,
		Replay:        env.Replay,
	}, nil
}
