// Package collector implements the server side of the display receipt protocol.
//
// Handler serves two routes:
//
//	POST /v1/display-receipts  accept one encoded receipt
//	GET  /health               liveness and readiness
//
// A receipt request must carry x-batch-protocol-version: 1.0.0. Responses are chosen so that
// the sender's classification does the right thing:
//
//   - 202 accepted: first delivery, handed to the Sink.
//   - 200 duplicate: already seen; the sender drops its cached copy.
//   - 400: wrong protocol version or undecodable body; the sender discards the receipt.
//   - 503 / 500: deduplication or sink failure; the sender keeps the receipt cached.
//
// Receipts are delivered at least once, so duplicates are expected. They are detected by
// (receipt id, schema version) through a Deduplicator, either in memory or in Redis.
package collector
