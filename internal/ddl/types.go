package ddl

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Errors surfaced to callers. Wrap with fmt.Errorf("%w: ...") to add detail.
var (
	// ErrInvalidInput covers malformed sql/fields, empty or duplicate columns,
	// and unparseable SELECT clauses. It aborts the whole request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedDatabaseType is returned when a database type key has no
	// dialect configuration. It only fails that dialect's entry in a batch.
	ErrUnsupportedDatabaseType = errors.New("unsupported database type")
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Kind is the dialect-independent category of a column type.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindDecimal
	KindDate
	KindDateTime
	KindBoolean
	// KindRaw carries a caller-supplied type literal that is emitted verbatim.
	KindRaw
)

var kindNames = map[Kind]string{
	KindString:   "STRING",
	KindInteger:  "INTEGER",
	KindDecimal:  "DECIMAL",
	KindDate:     "DATE",
	KindDateTime: "DATETIME",
	KindBoolean:  "BOOLEAN",
	KindRaw:      "RAW",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// SemanticType is an abstract column type, independent of any dialect's spelling.
type SemanticType struct {
	Kind      Kind
	Precision int
	Scale     int
	Literal   string // only for KindRaw
}

var (
	String   = SemanticType{Kind: KindString}
	Integer  = SemanticType{Kind: KindInteger}
	Date     = SemanticType{Kind: KindDate}
	DateTime = SemanticType{Kind: KindDateTime}
	Boolean  = SemanticType{Kind: KindBoolean}
)

// Decimal returns a DECIMAL(precision, scale) type.
func Decimal(precision, scale int) SemanticType {
	return SemanticType{Kind: KindDecimal, Precision: precision, Scale: scale}
}

// Raw returns a type whose literal is rendered as-is by every dialect.
func Raw(literal string) SemanticType {
	return SemanticType{Kind: KindRaw, Literal: strings.TrimSpace(literal)}
}

func (t SemanticType) String() string {
	switch t.Kind {
	case KindDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Precision, t.Scale)
	case KindRaw:
		return t.Literal
	default:
		return t.Kind.String()
	}
}

var decimalPattern = regexp.MustCompile(`^(?:DECIMAL|NUMERIC)\s*\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\)$`)

// ParseSemanticType maps a loosely spelled type name onto a SemanticType.
// The mapping is case-insensitive. Names it does not recognize become Raw
// types so that caller rules like "VARCHAR(64)" pass through untouched.
func ParseSemanticType(s string) SemanticType {
	norm := strings.ToUpper(strings.TrimSpace(s))
	switch norm {
	case "STRING", "TEXT", "VARCHAR":
		return String
	case "INT", "INTEGER", "BIGINT":
		return Integer
	case "DECIMAL", "NUMERIC":
		return Decimal(24, 6)
	case "DATE":
		return Date
	case "DATETIME", "TIMESTAMP":
		return DateTime
	case "BOOL", "BOOLEAN":
		return Boolean
	}
	if m := decimalPattern.FindStringSubmatch(norm); m != nil {
		p, _ := strconv.Atoi(m[1])
		sc := 0
		if m[2] != "" {
			sc, _ = strconv.Atoi(m[2])
		}
		return Decimal(p, sc)
	}
	return Raw(s)
}

// Column is a single output column. Type is filled in per dialect by the
// inference step; Name, Comment and Ordinal are fixed by extraction.
type Column struct {
	Name    string
	Comment string
	Ordinal int
	Type    SemanticType
}
