// Package optout answers whether receipt collection is disabled for this installation.
//
// The flag lives in a preferences file inside the shared app-group directory, written by the
// host application and read by every receipt invocation. When opted out, nothing is sent and
// nothing is cached.
package optout

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultKey is the preferences key holding the opt-out flag.
const DefaultKey = "opted_out"

var (
	ErrReadPreferences  = errors.New("failed to read preferences file")
	ErrParsePreferences = errors.New("failed to parse preferences file")
)

// Source reports the opt-out flag.
type Source interface {
	OptedOut(ctx context.Context) (bool, error)
}

// Static is a fixed flag.
type Static bool

func (s Static) OptedOut(context.Context) (bool, error) {
	return bool(s), nil
}

// Func adapts a function to Source.
type Func func(ctx context.Context) (bool, error)

func (f Func) OptedOut(ctx context.Context) (bool, error) {
	return f(ctx)
}

// File reads the flag from a YAML preferences file on every call, so a change made by the host
// application is seen by the next invocation.
//
// A missing file or key means not opted out. Nested keys use dots: "batch.opted_out".
type File struct {
	path string
	key  string
}

// FileOption configures File.
type FileOption func(*File)

// WithKey sets the preferences key. Default is "opted_out".
func WithKey(key string) FileOption {
	return func(f *File) {
		if key != "" {
			f.key = key
		}
	}
}

// NewFile creates a File source for path.
func NewFile(path string, opts ...FileOption) *File {
	f := &File{path: path, key: DefaultKey}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the preferences file path.
func (f *File) Path() string {
	return f.path
}

func (f *File) OptedOut(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, errors.Join(ErrReadPreferences, err)
	}

	var prefs map[string]any
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return false, errors.Join(ErrParsePreferences, err)
	}

	value, ok := lookup(prefs, strings.Split(f.key, "."))
	if !ok || value == nil {
		return false, nil
	}

	switch v := value.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1":
			return true, nil
		case "false", "no", "0", "":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: key %q has unsupported value %v", ErrParsePreferences, f.key, value)
}

func lookup(m map[string]any, path []string) (any, bool) {
	v, ok := m[path[0]]
	if !ok {
		return nil, false
	}
	if len(path) == 1 {
		return v, true
	}
	next, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return lookup(next, path[1:])
}

var (
	_ Source = Static(false)
	_ Source = Func(nil)
	_ Source = (*File)(nil)
)
