package ddl

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultPlaceholder is the table name used when the caller supplies none.
const DefaultPlaceholder = "表名"

const (
	defaultNameWidth = 30
	typeWidth        = 18
)

// Table is a fully typed table ready for rendering.
type Table struct {
	Name       string
	Comment    string
	Columns    []Column
	PrimaryKey string // empty when no key was selected
}

// Render produces the CREATE TABLE statement for t in dialect d.
//
// Column lines are aligned: the name is padded to the widest name, the type
// to 18 characters. Non-first columns start with "   ," rather than the
// previous line ending in a comma.
func Render(d Dialect, t Table) (string, error) {
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%w: table has no columns", ErrInvalidInput)
	}
	name := strings.TrimSpace(t.Name)
	if name == "" {
		name = DefaultPlaceholder
	}
	table := d.Quote.QuoteTable(name)

	names := make([]string, len(t.Columns))
	width := 0
	for i, c := range t.Columns {
		names[i] = d.Quote.QuoteIdent(c.Name)
		if n := utf8.RuneCountInString(names[i]); n > width {
			width = n
		}
	}
	if width == 0 {
		width = defaultNameWidth
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if d.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(table)
	b.WriteString(" (\n")

	for i, c := range t.Columns {
		if i == 0 {
			b.WriteString("    ")
		} else {
			b.WriteString("   ,")
		}
		typ := d.TypeName(c.Type)
		if d.Comments == CommentSeparate {
			b.WriteString(pad(names[i], width))
			b.WriteByte(' ')
			b.WriteString(typ)
		} else {
			b.WriteString(pad(names[i], width))
			b.WriteByte(' ')
			b.WriteString(pad(typ, typeWidth))
			b.WriteString(" COMMENT ")
			b.WriteString(quoteLiteral(commentOf(c)))
		}
		b.WriteByte('\n')
	}

	if d.PrimaryKey && t.PrimaryKey != "" {
		b.WriteString("   ,PRIMARY KEY (")
		b.WriteString(d.Quote.QuoteIdent(t.PrimaryKey))
		b.WriteString(")\n")
	}

	if d.Comments == CommentSeparate {
		b.WriteString(");\n\n")
		fmt.Fprintf(&b, "COMMENT ON TABLE %s IS %s;", table, quoteLiteral(t.Comment))
		for i, c := range t.Columns {
			fmt.Fprintf(&b, "\nCOMMENT ON COLUMN %s.%s IS %s;", table, names[i], quoteLiteral(commentOf(c)))
		}
		return b.String(), nil
	}

	b.WriteByte(')')
	if e := strings.TrimSpace(d.Engine); e != "" {
		b.WriteByte(' ')
		b.WriteString(e)
	}
	if d.TableComment {
		b.WriteString(" COMMENT ")
		b.WriteString(quoteLiteral(t.Comment))
	}
	b.WriteByte(';')
	return b.String(), nil
}

func commentOf(c Column) string {
	if c.Comment != "" {
		return c.Comment
	}
	return c.Name
}

// pad right-pads s with spaces to width runes; longer strings are kept whole.
func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
