package collector

import (
	"fmt"
	"time"
)

const (
	DedupMemory = "memory"
	DedupRedis  = "redis"
)

type Config struct {
	DedupBackend   string        `env:"COLLECTOR_DEDUP_BACKEND" envDefault:"memory"`         // DedupBackend is memory or redis.
	DedupTTL       time.Duration `env:"COLLECTOR_DEDUP_TTL" envDefault:"720h"`               // DedupTTL is how long a receipt key is remembered.
	MemoryCapacity int           `env:"COLLECTOR_DEDUP_CAPACITY" envDefault:"100000"`        // MemoryCapacity bounds the in-memory key set.
	RedisPrefix    string        `env:"COLLECTOR_DEDUP_PREFIX" envDefault:"receipts:dedup:"` // RedisPrefix namespaces dedup keys.
	MaxBodyBytes   int64         `env:"COLLECTOR_MAX_BODY_BYTES" envDefault:"65536"`         // MaxBodyBytes limits one receipt.
}

// Validate checks Config.
func (c Config) Validate() error {
	switch c.DedupBackend {
	case DedupMemory, DedupRedis:
	default:
		return fmt.Errorf("%w: unknown dedup backend %q", ErrInvalidConfig, c.DedupBackend)
	}
	if c.DedupTTL <= 0 {
		return fmt.Errorf("%w: dedup ttl must be positive", ErrInvalidConfig)
	}
	return nil
}
