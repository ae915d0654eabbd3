// Package schema reads column lists from existing tables so they can be fed
// to the DDL generator. Only metadata is read; nothing is executed.
package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/ddlgen/internal/ddl"
)

var (
	// ErrUnknownSource is returned when no source is configured for a kind.
	ErrUnknownSource = errors.New("unknown source")
	// ErrTableNotFound is returned when a table has no visible columns.
	ErrTableNotFound = errors.New("table not found")
)

// Source lists tables and reads their columns from one database.
type Source interface {
	Info() SourceInfo
	Tables(ctx context.Context) ([]Table, error)
	Columns(ctx context.Context, table string) (*Table, error)
	Close() error
}

// Sources is a set of sources keyed by kind.
type Sources struct {
	byKind map[string]Source
}

// NewSources indexes srcs by their kind; nil entries are skipped.
func NewSources(srcs ...Source) *Sources {
	s := &Sources{byKind: make(map[string]Source, len(srcs))}
	for _, src := range srcs {
		if src == nil {
			continue
		}
		s.byKind[src.Info().Kind] = src
	}
	return s
}

// Get returns the source for kind.
func (s *Sources) Get(kind string) (Source, error) {
	if s != nil {
		if src, ok := s.byKind[strings.ToLower(strings.TrimSpace(kind))]; ok {
			return src, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSource, kind)
}

// List returns the configured sources sorted by kind.
func (s *Sources) List() []SourceInfo {
	if s == nil {
		return []SourceInfo{}
	}
	out := make([]SourceInfo, 0, len(s.byKind))
	for _, src := range s.byKind {
		out = append(out, src.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Close closes every source and returns the first error.
func (s *Sources) Close() error {
	if s == nil {
		return nil
	}
	var first error
	for _, src := range s.byKind {
		if err := src.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// withTimeout returns a context with the query timeout applied.
// If the parent context already has a shorter deadline, that deadline is preserved.
// Returns the context and a cancel function that must be called.
func withTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	if deadline, ok := parent.Deadline(); ok && time.Until(deadline) <= timeout {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// splitTableName splits "schema.table" into its parts. The schema is empty
// for unqualified names.
func splitTableName(name string) (schemaName, table string, err error) {
	name = strings.TrimSpace(name)
	if !ddl.ValidTableName(name) {
		return "", "", fmt.Errorf("invalid table name %q", name)
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:], nil
	}
	return "", name, nil
}
