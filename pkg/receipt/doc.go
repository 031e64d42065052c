// Package receipt defines the display receipt data model and its versioned wire and storage
// format.
//
// A Receipt confirms that a push notification was displayed. It is immutable once created and is
// encoded into a self-describing JSON envelope that embeds the schema version. The same bytes are
// written to the receipt cache and sent as the HTTP request body, so a blob produced by an older
// build can be recognised and discarded instead of poisoning the flush loop.
//
// # Usage
//
//	r := receipt.New("", payload, time.Now())
//	blob, err := receipt.Encode(r)
//	if err != nil {
//	    return err
//	}
//
//	decoded, err := receipt.Decode(blob)
//	if receipt.IsDecodeError(err) {
//	    // discard, never retry
//	}
//
// # Outcomes
//
// Outcome is the tagged result of one delivery attempt: Delivered, TransientFailure (keep the
// receipt cached for a later invocation) or PermanentFailure (discard it). The zero value is
// Unknown and is handled like TransientFailure.
package receipt
