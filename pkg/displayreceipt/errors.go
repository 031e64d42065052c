package displayreceipt

import "errors"

// Completion errors. The content is returned alongside them in every case, so a caller can
// always hand it back to the host.
var (
	// ErrReceiptRejected means the endpoint permanently rejected the current receipt; it was discarded.
	ErrReceiptRejected = errors.New("display receipt rejected by endpoint")
	// ErrReceiptNotPersisted means delivery failed transiently and the receipt could not be cached.
	ErrReceiptNotPersisted = errors.New("display receipt could not be cached")
	// ErrInvalidReceipt means the notification carried receipt data that cannot be encoded.
	ErrInvalidReceipt = errors.New("invalid display receipt data")

	ErrInvalidConfig = errors.New("invalid display receipt configuration")
)
