package receiptsender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrymomot/receiptkit/pkg/logger"
	"github.com/dmitrymomot/receiptkit/pkg/receipt"
)

const userAgent = "receiptkit-sender/1.0"

// Sender performs single, bounded delivery attempts of encoded receipts to one endpoint.
// It never retries; retry happens across invocations through the cache.
// Zero value is not usable; use New to create instances.
type Sender struct {
	endpoint   string
	client     *http.Client
	timeout    time.Duration
	extVersion string
	headers    map[string]string
	breaker    *CircuitBreaker
	onDelivery DeliveryHook
	logger     *slog.Logger
}

// New creates a sender for the given endpoint. Only absolute http and https URLs are accepted.
func New(endpoint string, opts ...Option) (*Sender, error) {
	if err := validateURL(endpoint); err != nil {
		return nil, err
	}

	s := &Sender{
		endpoint:   endpoint,
		timeout:    receipt.DefaultTimeout,
		extVersion: "unknown",
		headers:    make(map[string]string),
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		}
	}
	return s, nil
}

// Endpoint returns the target URL.
func (s *Sender) Endpoint() string {
	return s.endpoint
}

// Send POSTs body once and classifies the outcome:
//
//   - 2xx: Delivered
//   - timeout, network error, 5xx, 408, 425, 429, open circuit: TransientFailure
//   - any other 4xx, empty body: PermanentFailure
//
// A response that arrives is honored even if ctx is canceled afterwards.
func (s *Sender) Send(ctx context.Context, body []byte) Result {
	if len(body) == 0 {
		return s.finish(ctx, Result{
			Outcome: receipt.PermanentFailure,
			Err:     fmt.Errorf("%w: %w: body cannot be empty", ErrPermanentFailure, ErrInvalidPayload),
		})
	}

	if s.breaker != nil && !s.breaker.Allow() {
		return s.finish(ctx, Result{Outcome: receipt.TransientFailure, Err: ErrCircuitOpen})
	}

	result := s.attempt(ctx, body)

	if s.breaker != nil {
		// Any server verdict, even a rejection, shows the endpoint is reachable.
		if result.Outcome != receipt.Delivered && result.Outcome != receipt.PermanentFailure {
			s.breaker.RecordFailure()
		} else {
			s.breaker.RecordSuccess()
		}
	}

	return s.finish(ctx, result)
}

func (s *Sender) attempt(ctx context.Context, body []byte) Result {
	start := time.Now()
	result := Result{}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		result.Outcome = receipt.TransientFailure
		result.Err = fmt.Errorf("%w: failed to create request: %w", ErrTemporaryFailure, err)
		return result
	}

	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(receipt.HeaderExtensionVersion, s.extVersion)
	req.Header.Set(receipt.HeaderProtocolVersion, receipt.SchemaVersion)

	resp, err := s.client.Do(req)
	result.Duration = time.Since(start)

	if err != nil {
		result.Outcome = receipt.TransientFailure
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			result.Err = fmt.Errorf("%w: %w", ErrTimeout, err)
		} else {
			result.Err = fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
		}
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	result.Outcome = Classify(resp.StatusCode)
	if result.Outcome == receipt.Delivered {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024*64))
		return result
	}

	// Response body gives error context; 64KB limit prevents memory exhaustion.
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024*64))
	errMsg := fmt.Sprintf("endpoint returned status %d", resp.StatusCode)
	if len(respBody) > 0 {
		bodyStr := strings.ReplaceAll(string(respBody), "\n", " ")
		if len(bodyStr) > 200 {
			bodyStr = bodyStr[:200] + "..."
		}
		errMsg += ": " + bodyStr
	}

	sentinel := ErrTemporaryFailure
	if result.Outcome == receipt.PermanentFailure {
		sentinel = ErrPermanentFailure
	}
	result.Err = fmt.Errorf("%w: %s", sentinel, errMsg)
	return result
}

func (s *Sender) finish(ctx context.Context, result Result) Result {
	level := slog.LevelDebug
	if result.Outcome != receipt.Delivered {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "receipt delivery attempt",
		logger.Outcome(result.Outcome),
		logger.StatusCode(result.StatusCode),
		logger.Duration(result.Duration),
		logger.Error(result.Err),
	)

	if s.onDelivery != nil {
		s.onDelivery(result)
	}
	return result
}

// Classify maps an HTTP status to a delivery outcome.
// Most 4xx codes are permanent, but 408, 425 and 429 signal timing or rate limits that
// may resolve later.
func Classify(statusCode int) receipt.Outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return receipt.Delivered
	case statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusTooEarly,
		statusCode == http.StatusTooManyRequests:
		return receipt.TransientFailure
	case statusCode >= 400 && statusCode < 500:
		return receipt.PermanentFailure
	default:
		return receipt.TransientFailure
	}
}

func validateURL(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}

	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}

	return nil
}
