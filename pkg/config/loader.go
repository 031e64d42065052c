package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Option configures a single Load call.
type Option func(*loadOptions)

type loadOptions struct {
	files    []string
	optional bool
	prefix   string
	environ  map[string]string
}

// WithEnvFiles reads variables from the given dotenv files. Later files override earlier
// ones; the process environment overrides them all. Missing files are an error.
func WithEnvFiles(paths ...string) Option {
	return func(o *loadOptions) {
		o.files = append(o.files, paths...)
	}
}

// WithOptionalEnvFiles is like WithEnvFiles but skips files that do not exist.
func WithOptionalEnvFiles(paths ...string) Option {
	return func(o *loadOptions) {
		o.files = append(o.files, paths...)
		o.optional = true
	}
}

// WithPrefix only considers variables starting with prefix, stripped before tag matching.
func WithPrefix(prefix string) Option {
	return func(o *loadOptions) {
		o.prefix = prefix
	}
}

// WithEnvironment replaces the process environment as the variable source. Dotenv files are
// still layered underneath. Useful for tests.
func WithEnvironment(environ map[string]string) Option {
	return func(o *loadOptions) {
		if environ != nil {
			o.environ = maps.Clone(environ)
		}
	}
}

// Load parses variables into v based on its `env` struct tags.
//
// Every call reads the sources afresh and nothing is cached between calls, so the returned
// value can be threaded explicitly into constructors.
//
// Example:
//
//	type Config struct {
//		Endpoint string        `env:"ENDPOINT,required"`
//		Timeout  time.Duration `env:"TIMEOUT" envDefault:"20s"`
//	}
//
//	var cfg Config
//	err := config.Load(&cfg, config.WithPrefix("RECEIPT_"), config.WithOptionalEnvFiles(".env"))
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	environ := make(map[string]string)
	for _, path := range o.files {
		values, err := godotenv.Read(path)
		if err != nil {
			if o.optional && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return errors.Join(ErrLoadingEnvFile, fmt.Errorf("%s: %w", path, err))
		}
		maps.Copy(environ, values)
	}

	if o.environ != nil {
		maps.Copy(environ, o.environ)
	} else {
		maps.Copy(environ, env.ToMap(os.Environ()))
	}

	if err := env.ParseWithOptions(v, env.Options{
		Environment: environ,
		Prefix:      o.prefix,
	}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
