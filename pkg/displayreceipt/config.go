package displayreceipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dmitrymomot/receiptkit/pkg/config"
	"github.com/dmitrymomot/receiptkit/pkg/lifecycle"
	"github.com/dmitrymomot/receiptkit/pkg/optout"
	"github.com/dmitrymomot/receiptkit/pkg/receipt"
	"github.com/dmitrymomot/receiptkit/pkg/receiptcache"
	"github.com/dmitrymomot/receiptkit/pkg/receiptsender"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

type Config struct {
	Endpoint         string        `env:"RECEIPT_ENDPOINT,required"`                                     // Endpoint is the receipt collection URL.
	ExtensionVersion string        `env:"RECEIPT_EXTENSION_VERSION" envDefault:"unknown"`                // ExtensionVersion is sent in the x-batch-ext-version header.
	AppGroupDir      string        `env:"RECEIPT_APP_GROUP_DIR"`                                         // AppGroupDir is the directory shared by all invocations. Required for local storage.
	CacheDirName     string        `env:"RECEIPT_CACHE_DIR_NAME" envDefault:"com.batch.displayreceipts"` // CacheDirName is created inside AppGroupDir, or used as the S3 key prefix.
	MaxFiles         int           `env:"RECEIPT_MAX_FILES" envDefault:"5"`                              // MaxFiles bounds the number of cached receipts.
	MaxAge           time.Duration `env:"RECEIPT_MAX_AGE" envDefault:"720h"`                             // MaxAge is the retention bound for cached receipts, 30 days by default.
	Timeout          time.Duration `env:"RECEIPT_TIMEOUT" envDefault:"20s"`                              // Timeout bounds one network attempt.
	ExpireAfter      time.Duration `env:"RECEIPT_EXPIRE_AFTER"`                                          // ExpireAfter fires the termination signal after the given budget. Zero disables it.
	PreferencesFile  string        `env:"RECEIPT_PREFERENCES_FILE"`                                      // PreferencesFile is the YAML shared preferences file, relative to AppGroupDir unless absolute.
	OptOutKey        string        `env:"RECEIPT_OPT_OUT_KEY" envDefault:"opted_out"`                    // OptOutKey is the preferences key holding the opt-out flag.
	ReceiptKey       string        `env:"RECEIPT_USER_INFO_KEY" envDefault:"com.batch"`                  // ReceiptKey is the notification user-info key carrying receipt data.
	CircuitBreaker   bool          `env:"RECEIPT_CIRCUIT_BREAKER" envDefault:"false"`                    // CircuitBreaker stops sending after consecutive transient failures.
	Storage          string        `env:"RECEIPT_STORAGE" envDefault:"local"`                            // Storage selects the cache backend: local or s3.

	S3 S3Config
}

type S3Config struct {
	Bucket         string `env:"RECEIPT_S3_BUCKET"`
	Region         string `env:"RECEIPT_S3_REGION"`
	AccessKeyID    string `env:"RECEIPT_S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"RECEIPT_S3_SECRET_KEY"`
	Endpoint       string `env:"RECEIPT_S3_ENDPOINT"`                            // Endpoint is set for S3-compatible services.
	ForcePathStyle bool   `env:"RECEIPT_S3_FORCE_PATH_STYLE" envDefault:"false"` // ForcePathStyle is needed by MinIO and similar services.
}

// LoadConfig reads Config from the environment.
func LoadConfig(opts ...config.Option) (Config, error) {
	var cfg Config
	if err := config.Load(&cfg, opts...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that struct tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required"))
	}
	if c.MaxFiles <= 0 {
		errs = append(errs, fmt.Errorf("max files must be positive, got %d", c.MaxFiles))
	}
	if c.MaxAge <= 0 {
		errs = append(errs, fmt.Errorf("max age must be positive, got %s", c.MaxAge))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.ExpireAfter < 0 {
		errs = append(errs, fmt.Errorf("expire after must not be negative, got %s", c.ExpireAfter))
	}

	switch c.Storage {
	case StorageLocal:
		if c.AppGroupDir == "" {
			errs = append(errs, errors.New("app group directory is required for local storage"))
		}
	case StorageS3:
		if c.S3.Bucket == "" || c.S3.Region == "" {
			errs = append(errs, errors.New("s3 bucket and region are required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage %q", c.Storage))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return nil
}

// CacheDir is the local cache directory.
func (c Config) CacheDir() string {
	return filepath.Join(c.AppGroupDir, c.CacheDirName)
}

// PreferencesPath resolves PreferencesFile against AppGroupDir. Empty means no preferences file.
func (c Config) PreferencesPath() string {
	if c.PreferencesFile == "" || filepath.IsAbs(c.PreferencesFile) {
		return c.PreferencesFile
	}
	return filepath.Join(c.AppGroupDir, c.PreferencesFile)
}

// NewFromConfig wires the store, sender, evictor, opt-out source and guard described by cfg.
// Options are applied after the configured ones, so callers may override any of them.
// The guard starts its ExpireAfter countdown here.
func NewFromConfig(ctx context.Context, cfg Config, log *slog.Logger, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	senderOpts := []receiptsender.Option{
		receiptsender.WithTimeout(cfg.Timeout),
		receiptsender.WithExtensionVersion(cfg.ExtensionVersion),
		receiptsender.WithLogger(log),
	}
	if cfg.CircuitBreaker {
		senderOpts = append(senderOpts, receiptsender.WithCircuitBreaker(receiptsender.NewCircuitBreaker(2, 1, cfg.Timeout)))
	}
	sender, err := receiptsender.New(cfg.Endpoint, senderOpts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	var src optout.Source = optout.Static(false)
	if path := cfg.PreferencesPath(); path != "" {
		src = optout.NewFile(path, optout.WithKey(cfg.OptOutKey))
	}

	guard := lifecycle.New()
	if cfg.ExpireAfter > 0 {
		guard.ExpireAfter(cfg.ExpireAfter)
	}

	base := []Option{
		WithEvictor(receiptcache.NewEvictor(
			receiptcache.WithMaxFiles(cfg.MaxFiles),
			receiptcache.WithMaxAge(cfg.MaxAge),
			receiptcache.WithLogger(log),
		)),
		WithOptOut(src),
		WithGuard(guard),
		WithReceiptKey(cfg.ReceiptKey),
		WithLogger(log),
	}
	return New(store, sender, append(base, opts...)...)
}

func newStore(ctx context.Context, cfg Config) (receiptcache.Store, error) {
	switch cfg.Storage {
	case StorageS3:
		name := cfg.CacheDirName
		if name == "" {
			name = receipt.DefaultCacheDirectory
		}
		return receiptcache.NewS3Store(ctx, receiptcache.S3Config{
			Bucket:         cfg.S3.Bucket,
			Region:         cfg.S3.Region,
			Prefix:         name,
			AccessKeyID:    cfg.S3.AccessKeyID,
			SecretKey:      cfg.S3.SecretKey,
			Endpoint:       cfg.S3.Endpoint,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
	default:
		return receiptcache.NewLocalStore(cfg.CacheDir())
	}
}
