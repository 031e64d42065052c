package receiptsender_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/receiptkit/pkg/receipt"
	"github.com/dmitrymomot/receiptkit/pkg/receiptsender"
)

func TestNew_ValidatesEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		endpoint string
	}{
		{"empty", ""},
		{"no scheme", "example.com/receipts"},
		{"ftp", "ftp://example.com/receipts"},
		{"no host", "https:///receipts"},
		{"bad escape", "http://%zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := receiptsender.New(tt.endpoint)
			assert.ErrorIs(t, err, receiptsender.ErrInvalidURL)
		})
	}

	s, err := receiptsender.New("https://example.com/v1/display-receipts")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/v1/display-receipts", s.Endpoint())
}

func TestSender_Send_Delivered(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"v":"1.0.0","id":"r-1","ts":1,"payload":{}}`)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "3.2.1", r.Header.Get("x-batch-ext-version"))
		assert.Equal(t, "1.0.0", r.Header.Get("x-batch-protocol-version"))
		assert.Equal(t, "yes", r.Header.Get("X-Custom"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, payload, body)

		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender, err := receiptsender.New(server.URL,
		receiptsender.WithExtensionVersion("3.2.1"),
		receiptsender.WithHeader("X-Custom", "yes"),
		receiptsender.WithHeader(receipt.HeaderProtocolVersion, "9.9.9"),
	)
	require.NoError(t, err)

	res := sender.Send(context.Background(), payload)
	assert.Equal(t, receipt.Delivered, res.Outcome)
	assert.True(t, res.Delivered())
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	assert.NoError(t, res.Err)
}

func TestSender_Send_Classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  int
		outcome receipt.Outcome
		wantErr error
	}{
		{http.StatusOK, receipt.Delivered, nil},
		{http.StatusNoContent, receipt.Delivered, nil},
		{http.StatusBadRequest, receipt.PermanentFailure, receiptsender.ErrPermanentFailure},
		{http.StatusUnauthorized, receipt.PermanentFailure, receiptsender.ErrPermanentFailure},
		{http.StatusNotFound, receipt.PermanentFailure, receiptsender.ErrPermanentFailure},
		{http.StatusUnprocessableEntity, receipt.PermanentFailure, receiptsender.ErrPermanentFailure},
		{http.StatusRequestTimeout, receipt.TransientFailure, receiptsender.ErrTemporaryFailure},
		{http.StatusTooEarly, receipt.TransientFailure, receiptsender.ErrTemporaryFailure},
		{http.StatusTooManyRequests, receipt.TransientFailure, receiptsender.ErrTemporaryFailure},
		{http.StatusInternalServerError, receipt.TransientFailure, receiptsender.ErrTemporaryFailure},
		{http.StatusServiceUnavailable, receipt.TransientFailure, receiptsender.ErrTemporaryFailure},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("details\nhere"))
			}))
			defer server.Close()

			sender, err := receiptsender.New(server.URL)
			require.NoError(t, err)

			res := sender.Send(context.Background(), []byte(`{}`))
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.status, res.StatusCode)
			assert.Equal(t, tt.outcome, receiptsender.Classify(tt.status))
			if tt.wantErr == nil {
				assert.NoError(t, res.Err)
				return
			}
			assert.ErrorIs(t, res.Err, tt.wantErr)
			assert.Contains(t, res.Err.Error(), "details here")
		})
	}
}

func TestSender_Send_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	sender, err := receiptsender.New(server.URL, receiptsender.WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	res := sender.Send(context.Background(), []byte(`{}`))
	assert.Equal(t, receipt.TransientFailure, res.Outcome)
	assert.ErrorIs(t, res.Err, receiptsender.ErrTimeout)
	assert.Zero(t, res.StatusCode)
}

func TestSender_Send_ConnectionRefused(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	sender, err := receiptsender.New(url)
	require.NoError(t, err)

	res := sender.Send(context.Background(), []byte(`{}`))
	assert.Equal(t, receipt.TransientFailure, res.Outcome)
	assert.ErrorIs(t, res.Err, receiptsender.ErrTemporaryFailure)
}

func TestSender_Send_EmptyBody(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	sender, err := receiptsender.New(server.URL)
	require.NoError(t, err)

	res := sender.Send(context.Background(), nil)
	assert.Equal(t, receipt.PermanentFailure, res.Outcome)
	assert.ErrorIs(t, res.Err, receiptsender.ErrInvalidPayload)
	assert.Zero(t, hits.Load())
}

func TestSender_Send_CircuitBreaker(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cb := receiptsender.NewCircuitBreaker(2, 1, time.Hour)
	var results []receiptsender.Result
	sender, err := receiptsender.New(server.URL,
		receiptsender.WithCircuitBreaker(cb),
		receiptsender.WithOnDelivery(func(r receiptsender.Result) { results = append(results, r) }),
	)
	require.NoError(t, err)

	for range 2 {
		res := sender.Send(context.Background(), []byte(`{}`))
		assert.Equal(t, receipt.TransientFailure, res.Outcome)
	}
	assert.Equal(t, receiptsender.CircuitOpen, cb.State())

	res := sender.Send(context.Background(), []byte(`{}`))
	assert.Equal(t, receipt.TransientFailure, res.Outcome)
	assert.True(t, receiptsender.IsCircuitOpen(res.Err))
	assert.Equal(t, int32(2), hits.Load())
	assert.Len(t, results, 3)
}

func TestSender_Send_RejectionKeepsCircuitClosed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	cb := receiptsender.NewCircuitBreaker(1, 1, time.Hour)
	sender, err := receiptsender.New(server.URL, receiptsender.WithCircuitBreaker(cb))
	require.NoError(t, err)

	for range 3 {
		res := sender.Send(context.Background(), []byte(`{}`))
		assert.Equal(t, receipt.PermanentFailure, res.Outcome)
	}
	assert.Equal(t, receiptsender.CircuitClosed, cb.State())
}
