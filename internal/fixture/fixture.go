// Package fixture supplies the calendar payload the simulated connection
// reads from.
package fixture

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed calendar.json
var calendarJSON []byte

// Source returns a raw calendar payload.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
}

type embedded struct{}

// Embedded returns the bundled calendar payload.
func Embedded() Source { return embedded{} }

func (embedded) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]byte, len(calendarJSON))
	copy(out, calendarJSON)
	return out, nil
}

// FileSource reads the payload from disk on every Load, so edits show up on
// the next refresh.
type FileSource struct {
	Path string
}

// File returns a Source backed by the file at path.
func File(path string) *FileSource { return &FileSource{Path: path} }

func (f *FileSource) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", f.Path, err)
	}
	return data, nil
}

// FromPath picks the payload source for a config value: empty means the
// embedded payload, an http(s) URL is fetched, anything else is a file.
func FromPath(path string) Source {
	switch {
	case path == "":
		return Embedded()
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		return NewHTTP(path)
	default:
		return File(path)
	}
}

// Static is a Source returning fixed bytes. Handy in tests.
type Static []byte

func (s Static) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte(s), nil
}
