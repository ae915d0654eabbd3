package ddl

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// CommentMode selects where column and table comments are written.
type CommentMode string

const (
	// CommentInline writes COMMENT '...' after each column and the table.
	CommentInline CommentMode = "inline"
	// CommentSeparate appends COMMENT ON TABLE/COLUMN statements.
	CommentSeparate CommentMode = "separate"
)

// TypeNames holds a dialect's spelling of each semantic type. Decimal may
// contain {p} and {s} placeholders for precision and scale.
type TypeNames struct {
	String   string `json:"string"`
	Integer  string `json:"integer"`
	Decimal  string `json:"decimal"`
	Date     string `json:"date"`
	DateTime string `json:"datetime"`
	Boolean  string `json:"boolean"`
}

var genericTypeNames = TypeNames{
	String:   "STRING",
	Integer:  "INT",
	Decimal:  "DECIMAL({p}, {s})",
	Date:     "DATE",
	DateTime: "TIMESTAMP",
	Boolean:  "BOOLEAN",
}

// withDefaults fills empty entries from the generic spelling.
func (n TypeNames) withDefaults() TypeNames {
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&n.String, genericTypeNames.String)
	fill(&n.Integer, genericTypeNames.Integer)
	fill(&n.Decimal, genericTypeNames.Decimal)
	fill(&n.Date, genericTypeNames.Date)
	fill(&n.DateTime, genericTypeNames.DateTime)
	fill(&n.Boolean, genericTypeNames.Boolean)
	return n
}

// Dialect describes how one target database spells a CREATE TABLE statement.
// It is plain data so new targets can be added from a JSON file.
type Dialect struct {
	Key          string      `json:"key"`
	Label        string      `json:"label"`
	IfNotExists  bool        `json:"ifNotExists"`
	Types        TypeNames   `json:"types"`
	Quote        QuoteStyle  `json:"quote"`
	Comments     CommentMode `json:"comments"`
	PrimaryKey   bool        `json:"primaryKey"`
	Engine       string      `json:"engine,omitempty"`
	TableComment bool        `json:"tableComment"`
}

// TypeName spells t in this dialect.
func (d Dialect) TypeName(t SemanticType) string {
	switch t.Kind {
	case KindString:
		return d.Types.String
	case KindInteger:
		return d.Types.Integer
	case KindDecimal:
		return strings.NewReplacer(
			"{p}", strconv.Itoa(t.Precision),
			"{s}", strconv.Itoa(t.Scale),
		).Replace(d.Types.Decimal)
	case KindDate:
		return d.Types.Date
	case KindDateTime:
		return d.Types.DateTime
	case KindBoolean:
		return d.Types.Boolean
	case KindRaw:
		return t.Literal
	}
	panic(fmt.Sprintf("ddl: unhandled type kind %v", t.Kind))
}

func (d Dialect) normalize() (Dialect, error) {
	d.Key = strings.ToLower(strings.TrimSpace(d.Key))
	if d.Key == "" {
		return Dialect{}, fmt.Errorf("dialect key is required")
	}
	if strings.TrimSpace(d.Label) == "" {
		d.Label = strings.ToUpper(d.Key)
	}
	switch d.Comments {
	case "":
		d.Comments = CommentInline
	case CommentInline, CommentSeparate:
	default:
		return Dialect{}, fmt.Errorf("dialect %s: unknown comment mode %q", d.Key, d.Comments)
	}
	switch d.Quote {
	case "":
		d.Quote = QuoteBacktick
	case QuoteBacktick, QuoteDouble:
	default:
		return Dialect{}, fmt.Errorf("dialect %s: unknown quote style %q", d.Key, d.Quote)
	}
	d.Types = d.Types.withDefaults()
	return d, nil
}

// Registry is an immutable set of dialects keyed by database type.
type Registry struct {
	byKey map[string]Dialect
	order []string
}

// NewRegistry builds a registry; later entries replace earlier ones with
// the same key but keep the original position.
func NewRegistry(dialects ...Dialect) (*Registry, error) {
	r := &Registry{byKey: make(map[string]Dialect, len(dialects))}
	for _, d := range dialects {
		nd, err := d.normalize()
		if err != nil {
			return nil, err
		}
		if _, ok := r.byKey[nd.Key]; !ok {
			r.order = append(r.order, nd.Key)
		}
		r.byKey[nd.Key] = nd
	}
	return r, nil
}

// Lookup returns the dialect for key. Unknown keys wrap
// ErrUnsupportedDatabaseType.
func (r *Registry) Lookup(key string) (Dialect, error) {
	d, ok := r.byKey[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Dialect{}, fmt.Errorf("%w: %q", ErrUnsupportedDatabaseType, key)
	}
	return d, nil
}

// Label returns the display label for key, or the upper-cased key when the
// dialect is unknown.
func (r *Registry) Label(key string) string {
	if d, err := r.Lookup(key); err == nil {
		return d.Label
	}
	return strings.ToUpper(key)
}

// Dialects returns all dialects in registration order.
func (r *Registry) Dialects() []Dialect {
	out := make([]Dialect, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.byKey[k])
	}
	return out
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	keys := append([]string(nil), r.order...)
	sort.Strings(keys)
	return keys
}

// Merge returns a new registry with extra dialects added or replaced.
func (r *Registry) Merge(extra ...Dialect) (*Registry, error) {
	return NewRegistry(append(r.Dialects(), extra...)...)
}

// DefaultDialects returns the built-in registry for spark, mysql,
// postgresql, starrocks, clickhouse, hive and doris.
func DefaultDialects() *Registry {
	r, err := NewRegistry(
		Dialect{
			Key: "spark", Label: "Spark SQL", IfNotExists: true,
			Types: genericTypeNames, Quote: QuoteBacktick,
			Comments: CommentInline, TableComment: true,
		},
		Dialect{
			Key: "mysql", Label: "MySQL", IfNotExists: true,
			Types: TypeNames{
				String: "VARCHAR(255)", Integer: "INT", Decimal: "DECIMAL({p}, {s})",
				Date: "DATE", DateTime: "DATETIME", Boolean: "TINYINT(1)",
			},
			Quote: QuoteBacktick, Comments: CommentInline,
			PrimaryKey: true, Engine: "ENGINE=InnoDB", TableComment: true,
		},
		Dialect{
			Key: "postgresql", Label: "PostgreSQL",
			Types: TypeNames{
				String: "TEXT", Integer: "INTEGER", Decimal: "DECIMAL({p}, {s})",
				Date: "DATE", DateTime: "TIMESTAMP", Boolean: "BOOLEAN",
			},
			Quote: QuoteDouble, Comments: CommentSeparate,
		},
		Dialect{
			Key: "starrocks", Label: "StarRocks", IfNotExists: true,
			Types: TypeNames{
				String: "STRING", Integer: "INT", Decimal: "DECIMAL({p}, {s})",
				Date: "DATE", DateTime: "DATETIME", Boolean: "BOOLEAN",
			},
			Quote: QuoteBacktick, Comments: CommentInline, TableComment: true,
		},
		Dialect{
			Key: "clickhouse", Label: "ClickHouse", IfNotExists: true,
			Types: TypeNames{
				String: "String", Integer: "Int32", Decimal: "Decimal({p}, {s})",
				Date: "Date", DateTime: "DateTime", Boolean: "Bool",
			},
			Quote: QuoteBacktick, Comments: CommentInline, TableComment: true,
		},
		Dialect{
			Key: "hive", Label: "Hive", IfNotExists: true,
			Types: genericTypeNames, Quote: QuoteBacktick,
			Comments: CommentInline, TableComment: true,
		},
		Dialect{
			Key: "doris", Label: "Doris", IfNotExists: true,
			Types: TypeNames{
				String: "STRING", Integer: "INT", Decimal: "DECIMAL({p}, {s})",
				Date: "DATE", DateTime: "DATETIME", Boolean: "BOOLEAN",
			},
			Quote: QuoteBacktick, Comments: CommentInline, TableComment: true,
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// LoadDialects decodes a JSON array of dialects.
func LoadDialects(rd io.Reader) ([]Dialect, error) {
	var ds []Dialect
	dec := json.NewDecoder(rd)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode dialects: %w", err)
	}
	return ds, nil
}

// LoadDialectsFile reads extra dialects from path and merges them over base.
func LoadDialectsFile(base *Registry, path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dialects file: %w", err)
	}
	defer f.Close()

	ds, err := LoadDialects(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return base.Merge(ds...)
}
