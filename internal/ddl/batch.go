package ddl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Request is one generation job. Exactly one of SQL and Fields is set.
type Request struct {
	SQL             string                `json:"sql,omitempty"`
	Fields          []string              `json:"fields,omitempty"`
	RulesByDatabase map[string][]RuleSpec `json:"rulesByDatabase,omitempty"`
	DatabaseTypes   []string              `json:"databaseTypes"`
	TableName       string                `json:"tableName,omitempty"`
	TableComment    string                `json:"tableComment,omitempty"`
	Comments        map[string]string     `json:"comments,omitempty"`
}

// DDLResult is the outcome for one requested database type. Exactly one of
// DDL and Error is set.
type DDLResult struct {
	DatabaseType string `json:"databaseType"`
	Label        string `json:"label"`
	DDL          string `json:"ddl,omitempty"`
	Error        string `json:"error,omitempty"`

	Err error `json:"-"`
}

// Response aggregates results in request order. DDL is filled when exactly
// one database type was requested and it succeeded.
type Response struct {
	DDLs        []DDLResult `json:"ddls"`
	DDL         string      `json:"ddl,omitempty"`
	ColumnCount int         `json:"columnCount"`
}

// Observer is notified after each dialect is rendered.
type Observer interface {
	ObserveRender(databaseType string, elapsed time.Duration, err error)
}

// Generator runs extraction once and rendering per dialect. It holds only
// read-only state and is safe for concurrent use.
type Generator struct {
	builtins    Rules
	dialects    *Registry
	placeholder string
	concurrency int
	observer    Observer
}

// Option configures a Generator.
type Option func(*Generator)

// WithPlaceholder sets the table name used when a request has none.
func WithPlaceholder(name string) Option {
	return func(g *Generator) {
		if name = strings.TrimSpace(name); name != "" {
			g.placeholder = name
		}
	}
}

// WithBuiltinRules replaces the built-in naming heuristics.
func WithBuiltinRules(rules Rules) Option {
	return func(g *Generator) { g.builtins = rules }
}

// WithConcurrency bounds how many dialects render in parallel.
func WithConcurrency(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// WithObserver registers a per-dialect observer.
func WithObserver(o Observer) Option {
	return func(g *Generator) { g.observer = o }
}

// NewGenerator returns a Generator over dialects. A nil registry means the
// built-in dialects.
func NewGenerator(dialects *Registry, opts ...Option) *Generator {
	if dialects == nil {
		dialects = DefaultDialects()
	}
	g := &Generator{
		builtins:    BuiltinRules(),
		dialects:    dialects,
		placeholder: DefaultPlaceholder,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dialects returns the generator's dialect registry.
func (g *Generator) Dialects() *Registry { return g.dialects }

// Generate extracts the columns once and renders one DDL per requested
// database type. Input problems abort the whole request with an error
// wrapping ErrInvalidInput; per-dialect failures are reported in the
// matching DDLResult.
func (g *Generator) Generate(ctx context.Context, req Request) (*Response, error) {
	types := normalizeTypes(req.DatabaseTypes)
	if len(types) == 0 {
		return nil, invalidInput("databaseTypes must not be empty")
	}

	cols, err := Extract(Input{SQL: req.SQL, Fields: req.Fields})
	if err != nil {
		return nil, err
	}
	applyComments(cols, req.Comments)

	overrides, err := compileOverrides(req.RulesByDatabase)
	if err != nil {
		return nil, err
	}

	var pk string
	if c, ok := SelectPrimaryKey(cols); ok {
		pk = c.Name
	}
	name := strings.TrimSpace(req.TableName)
	if name == "" {
		name = g.placeholder
	}

	results := make([]DDLResult, len(types))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, key := range types {
		i, key := i, key
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = g.renderOne(key, Table{
				Name:       name,
				Comment:    req.TableComment,
				Columns:    InferColumns(cols, overrides[key], g.builtins),
				PrimaryKey: pk,
			})
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	resp := &Response{DDLs: results, ColumnCount: len(cols)}
	if len(results) == 1 && results[0].Err == nil {
		resp.DDL = results[0].DDL
	}
	return resp, nil
}

func (g *Generator) renderOne(key string, t Table) DDLResult {
	start := time.Now()
	res := DDLResult{DatabaseType: key, Label: g.dialects.Label(key)}

	d, err := g.dialects.Lookup(key)
	if err == nil {
		res.DDL, err = Render(d, t)
	}
	if err != nil {
		res.DDL = ""
		res.Err = err
		res.Error = err.Error()
	}
	if g.observer != nil {
		g.observer.ObserveRender(key, time.Since(start), err)
	}
	return res
}

// normalizeTypes trims and lower-cases keys, dropping blanks and repeats
// while keeping first-seen order.
func normalizeTypes(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		k := strings.ToLower(strings.TrimSpace(t))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// compileOverrides compiles caller rules per normalized database type. Two
// keys that normalize to the same type are rejected.
func compileOverrides(byDatabase map[string][]RuleSpec) (map[string]Rules, error) {
	overrides := make(map[string]Rules, len(byDatabase))
	for _, key := range sortedKeys(byDatabase) {
		k := strings.ToLower(strings.TrimSpace(key))
		if _, dup := overrides[k]; dup {
			return nil, invalidInput("rulesByDatabase has more than one entry for %q", k)
		}
		rules, err := CompileRules(byDatabase[key])
		if err != nil {
			return nil, fmt.Errorf("rulesByDatabase[%s]: %w", key, err)
		}
		overrides[k] = rules
	}
	return overrides, nil
}

// applyComments overrides column comments. An exact name wins; otherwise
// the first case-insensitive match in sorted key order is used.
func applyComments(cols []Column, comments map[string]string) {
	if len(comments) == 0 {
		return
	}
	keys := sortedKeys(comments)
	for i := range cols {
		if c, ok := comments[cols[i].Name]; ok {
			cols[i].Comment = c
			continue
		}
		for _, k := range keys {
			if strings.EqualFold(k, cols[i].Name) {
				cols[i].Comment = comments[k]
				break
			}
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsUnsupported reports whether err came from an unknown database type.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupportedDatabaseType)
}
