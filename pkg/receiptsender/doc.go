// Package receiptsender delivers encoded display receipts to the collection endpoint.
//
// A Sender makes exactly one POST per Send call, bounded by a timeout (20 seconds by default),
// and classifies the result into a receipt.Outcome. There is no in-process retry: a receipt
// that fails transiently is cached by the caller and retried by a later invocation.
//
// Every request carries two protocol headers:
//
//	x-batch-ext-version: <extension build version>
//	x-batch-protocol-version: 1.0.0
//
// # Classification
//
//   - 2xx responses are Delivered.
//   - Timeouts, connection failures, 5xx responses, and 408, 425 and 429 are TransientFailure.
//   - All other 4xx responses are PermanentFailure; the receipt is discarded.
//
// # Usage
//
//	sender, err := receiptsender.New(endpoint,
//	    receiptsender.WithExtensionVersion(build),
//	    receiptsender.WithCircuitBreaker(receiptsender.NewCircuitBreaker(3, 1, time.Minute)),
//	)
//	if err != nil {
//	    return err
//	}
//
//	res := sender.Send(ctx, blob)
//	switch res.Outcome {
//	case receipt.Delivered:
//	case receipt.TransientFailure:
//	    // keep it cached
//	case receipt.PermanentFailure:
//	    // discard
//	}
//
// Send never blocks longer than the timeout. If the parent context is canceled first the
// request is aborted and reported as TransientFailure.
package receiptsender
