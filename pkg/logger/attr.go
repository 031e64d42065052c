package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// ReceiptID records the receipt identifier under the key "receipt_id".
// If id is empty, it returns an empty Attr.
func ReceiptID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("receipt_id", id)
}

// CacheFile records a cache entry name under the key "cache_file".
func CacheFile(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("cache_file", name)
}

// Outcome records a delivery outcome under the key "outcome".
func Outcome(o fmtStringer) slog.Attr {
	if o == nil {
		return slog.Attr{}
	}
	return slog.String("outcome", o.String())
}

// StatusCode records an HTTP status under the key "status_code".
// Zero means no response was received and yields an empty Attr.
func StatusCode(code int) slog.Attr {
	if code == 0 {
		return slog.Attr{}
	}
	return slog.Int("status_code", code)
}

// State records a pipeline state under the key "state".
func State(name string) slog.Attr {
	return slog.String("state", name)
}

// RequestID records the request identifier under the key "request_id".
// If id is empty, it returns an empty Attr.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Attempt records the send attempt number under the key "attempt".
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Count records a number of items under the given key.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

type fmtStringer interface {
	String() string
}
