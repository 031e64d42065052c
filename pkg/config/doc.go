// Package config loads configuration structs from environment variables.
//
// It wraps `github.com/joho/godotenv` and `github.com/caarlos0/env/v11`:
//
//   - Optional dotenv files are read first; the process environment overrides them.
//   - Variables are parsed into any struct using `env` and `envDefault` field tags.
//   - A prefix scopes a struct to one component, e.g. RECEIPT_ or COLLECTOR_.
//
// Load keeps no process-wide state. Each call returns a fresh value that the caller passes to
// the constructors that need it, so two components can be configured differently in one
// process and tests can supply their own environment with WithEnvironment.
//
// # Usage
//
//	type Config struct {
//	    Endpoint string        `env:"ENDPOINT,required"`
//	    MaxFiles int           `env:"MAX_FILES" envDefault:"5"`
//	    Timeout  time.Duration `env:"TIMEOUT" envDefault:"20s"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg,
//	    config.WithPrefix("RECEIPT_"),
//	    config.WithOptionalEnvFiles(".env"),
//	); err != nil {
//	    return err
//	}
//
// # Error Handling
//
// Parsing failures, including missing required variables, are joined with ErrParsingConfig.
// Unreadable dotenv files are joined with ErrLoadingEnvFile.
package config
