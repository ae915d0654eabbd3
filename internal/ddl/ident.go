package ddl

import (
	"strings"
	"unicode"
)

// QuoteStyle is the character a dialect wraps non-plain identifiers in.
type QuoteStyle string

const (
	QuoteBacktick QuoteStyle = "`"
	QuoteDouble   QuoteStyle = `"`
)

const maxIdentifierLen = 128

// ValidIdentifier checks that name is a plain identifier: a letter or
// underscore followed by letters, digits or underscores.
// Exported for use in API handlers for path parameter validation.
func ValidIdentifier(name string) bool {
	if name == "" || len(name) > maxIdentifierLen {
		return false
	}
	for i, r := range name {
		if i == 0 {
			if !(unicode.IsLetter(r) || r == '_') {
				return false
			}
		} else if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
	}
	return true
}

// ValidTableName accepts a plain or schema-qualified ("schema.table") name.
func ValidTableName(name string) bool {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return false
	}
	for _, p := range parts {
		if !ValidIdentifier(p) {
			return false
		}
	}
	return true
}

// QuoteIdent leaves plain identifiers untouched and wraps anything else in
// the dialect's quote character, doubling embedded quotes.
func (q QuoteStyle) QuoteIdent(name string) string {
	if ValidIdentifier(name) || q == "" {
		return name
	}
	s := string(q)
	return s + strings.ReplaceAll(name, s, s+s) + s
}

// QuoteTable quotes each part of a possibly schema-qualified table name.
// Non-ASCII placeholders pass through unchanged.
func (q QuoteStyle) QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = q.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// quoteLiteral renders s as a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
