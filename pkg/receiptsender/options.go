package receiptsender

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/receiptkit/pkg/receipt"
)

// Result describes one delivery attempt.
type Result struct {
	Outcome    receipt.Outcome
	StatusCode int // zero when no response was received
	Duration   time.Duration
	Err        error // nil only for receipt.Delivered
}

// Delivered reports whether the endpoint accepted the receipt.
func (r Result) Delivered() bool {
	return r.Outcome == receipt.Delivered
}

// DeliveryHook is called after each delivery attempt
type DeliveryHook func(result Result)

// Option configures Sender.
type Option func(*Sender)

// WithTimeout sets the per-attempt timeout. Default is 20 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Sender) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
// Useful for custom transports, proxies, or testing.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Sender) {
		if client != nil {
			s.client = client
		}
	}
}

// WithExtensionVersion sets the value of the extension version header,
// usually the host application's build version.
func WithExtensionVersion(version string) Option {
	return func(s *Sender) {
		if version != "" {
			s.extVersion = version
		}
	}
}

// WithHeader adds a custom header to every request.
// Protocol headers cannot be overridden.
func WithHeader(key, value string) Option {
	return func(s *Sender) {
		if key != "" && value != "" {
			s.headers[key] = value
		}
	}
}

// WithCircuitBreaker enables circuit breaker protection for the endpoint.
// Share one instance across Senders that target the same endpoint.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(s *Sender) {
		s.breaker = cb
	}
}

// WithOnDelivery sets a callback that's invoked after each delivery attempt.
func WithOnDelivery(hook DeliveryHook) Option {
	return func(s *Sender) {
		s.onDelivery = hook
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sender) {
		if l != nil {
			s.logger = l
		}
	}
}
