package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/receiptkit/pkg/config"
	"github.com/dmitrymomot/receiptkit/pkg/logger"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json by default", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		log.Debug("hidden")
		log.Info("hello")

		entry := decodeEntry(t, buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "hello", entry["msg"])
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf), logger.WithFormat(logger.FormatText)).Info("hello")
		assert.Contains(t, buf.String(), "level=INFO")
		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("static attributes", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf), logger.WithAttr(slog.String("svc", "test"))).Info("msg")
		assert.Equal(t, "test", decodeEntry(t, buf)["svc"])
	})

	t.Run("context extractors", func(t *testing.T) {
		t.Parallel()
		type key struct{}
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithContextExtractors(nil, func(ctx context.Context) (slog.Attr, bool) {
				if v, ok := ctx.Value(key{}).(string); ok {
					return slog.String("request_id", v), true
				}
				return slog.Attr{}, false
			}),
		)

		ctx := context.WithValue(context.Background(), key{}, "42")
		log.With(logger.Component("sink")).InfoContext(ctx, "msg")

		entry := decodeEntry(t, buf)
		assert.Equal(t, "42", entry["request_id"])
		assert.Equal(t, "sink", entry["component"])
	})
}

func TestWithEnvironment(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger.New(logger.WithEnvironment("prod", "receiptd"), logger.WithOutput(buf)).Info("msg")
	entry := decodeEntry(t, buf)
	assert.Equal(t, logger.EnvProduction, entry["env"])
	assert.Equal(t, "receiptd", entry["service"])

	buf.Reset()
	logger.New(logger.WithEnvironment("anything", ""), logger.WithOutput(buf)).Debug("msg")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "env="+logger.EnvDevelopment)
	assert.NotContains(t, buf.String(), "service=")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		" warn ":  slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := logger.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := logger.ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	var cfg logger.Config
	require.NoError(t, config.Load(&cfg, config.WithEnvironment(map[string]string{
		"APP_ENV":    "production",
		"APP_NAME":   "displayreceipt",
		"LOG_LEVEL":  "warn",
		"LOG_FORMAT": "text",
	})))

	buf := &bytes.Buffer{}
	log, err := logger.NewFromConfig(cfg, logger.WithOutput(buf))
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "service=displayreceipt")

	_, err = logger.NewFromConfig(logger.Config{Level: "loud"})
	assert.Error(t, err)
	_, err = logger.NewFromConfig(logger.Config{Format: "xml"})
	assert.Error(t, err)
}

func TestSetAsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	buf := &bytes.Buffer{}
	logger.SetAsDefault(logger.New(logger.WithOutput(buf)))
	slog.Info("default")
	assert.Equal(t, "default", decodeEntry(t, buf)["msg"])
}

func TestWithFormatPanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() {
		logger.New(logger.WithFormat(logger.Format("xml")))
	})
}
