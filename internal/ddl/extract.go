package ddl

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Input is the raw column source: either a SQL text or a literal field list.
type Input struct {
	SQL    string
	Fields []string
}

var (
	selectKeyword   = regexp.MustCompile(`(?i)\bSELECT\b`)
	stopKeywords    = regexp.MustCompile(`(?i)\b(?:WHERE|GROUP\s+BY|ORDER\s+BY|HAVING|LIMIT|UNION)\b`)
	blockComment    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	leadingDistinct = regexp.MustCompile(`(?i)^DISTINCT\s+`)
	leadingSelect   = regexp.MustCompile(`(?i)^SELECT\s+`)
	plainName       = regexp.MustCompile(`^[\p{L}_$][\p{L}\p{N}_$]*$`)
)

// Extract turns the input into an ordered list of distinct columns.
//
// Exactly one of in.SQL and in.Fields must be set. SQL is read as a
// SELECT ... FROM statement, a FROM-less SELECT, or a bare comma-separated
// field list, in that order. Every failure wraps ErrInvalidInput.
func Extract(in Input) ([]Column, error) {
	hasSQL := strings.TrimSpace(in.SQL) != ""
	hasFields := len(in.Fields) > 0
	switch {
	case hasSQL && hasFields:
		return nil, invalidInput("provide either sql or fields, not both")
	case !hasSQL && !hasFields:
		return nil, invalidInput("sql or fields is required")
	}

	if hasFields {
		cols := make([]Column, 0, len(in.Fields))
		for i, f := range in.Fields {
			name := strings.TrimSpace(f)
			if name == "" {
				return nil, invalidInput("field %d is empty", i)
			}
			cols = append(cols, Column{Name: name, Comment: name})
		}
		return finalize(cols)
	}

	cols, err := parseSQL(in.SQL)
	if err != nil {
		return nil, err
	}
	return finalize(cols)
}

func parseSQL(sql string) ([]Column, error) {
	comments := collectComments(sql)
	clean := blockComment.ReplaceAllString(sql, " ")
	clean = strings.TrimSpace(stripLineComments(clean))

	clause := clean
	if loc := selectKeyword.FindStringIndex(clean); loc != nil {
		rest := clean[loc[1]:]
		if from := findTopLevelFrom(rest); from >= 0 {
			clause = rest[:from]
		} else if stop := stopKeywords.FindStringIndex(rest); stop != nil {
			clause = rest[:stop[0]]
		} else {
			clause = rest
		}
	}

	exprs := splitTopLevel(clause)
	cols := make([]Column, 0, len(exprs))
	for _, expr := range exprs {
		col, err := parseExpression(expr, comments)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// finalize assigns ordinals and rejects empty lists and duplicate names.
// Duplicates are detected with Unicode case folding.
func finalize(cols []Column) ([]Column, error) {
	if len(cols) == 0 {
		return nil, invalidInput("no columns found")
	}
	fold := cases.Fold()
	seen := make(map[string]string, len(cols))
	for i := range cols {
		key := fold.String(cols[i].Name)
		if prev, ok := seen[key]; ok {
			return nil, invalidInput("duplicate column %q (conflicts with %q)", cols[i].Name, prev)
		}
		seen[key] = cols[i].Name
		cols[i].Ordinal = i
	}
	return cols, nil
}

// collectComments maps the field text of each line to its trailing "--" comment.
func collectComments(sql string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(sql, "\n") {
		i := lineCommentStart(line)
		if i < 0 {
			continue
		}
		key := normalizeFieldText(line[:i])
		text := strings.TrimSpace(line[i+2:])
		if key == "" || text == "" {
			continue
		}
		out[key] = text
	}
	return out
}

// stripLineComments removes "--" comments that start outside quotes.
func stripLineComments(sql string) string {
	lines := strings.Split(sql, "\n")
	for n, line := range lines {
		if i := lineCommentStart(line); i >= 0 {
			lines[n] = line[:i]
		}
	}
	return strings.Join(lines, "\n")
}

// lineCommentStart returns the byte offset of the first "--" outside
// quotes, or -1.
func lineCommentStart(line string) int {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '-' && i+1 < len(line) && line[i+1] == '-':
			return i
		}
	}
	return -1
}

func normalizeFieldText(s string) string {
	s = strings.TrimSpace(s)
	s = leadingSelect.ReplaceAllString(s, "")
	s = strings.Trim(s, ", \t\r")
	return leadingDistinct.ReplaceAllString(s, "")
}

// findTopLevelFrom returns the byte offset of the first FROM keyword outside
// parentheses and quotes, or -1.
func findTopLevelFrom(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
		case 'f', 'F':
			if depth != 0 || i+4 > len(s) || !strings.EqualFold(s[i:i+4], "from") {
				continue
			}
			if i > 0 && isWordByte(s[i-1]) {
				continue
			}
			if i+4 < len(s) && isWordByte(s[i+4]) {
				continue
			}
			return i
		}
	}
	return -1
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

// splitTopLevel splits on commas that are not nested in parentheses or quotes.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)
	for i, r := range s {
		if quote != 0 {
			if r == quote {
				quote = 0
			}
			continue
		}
		switch r {
		case '\'', '"', '`':
			quote = r
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" || len(parts) > 0 {
		parts = append(parts, tail)
	}
	return parts
}

// lastTopLevelSpace returns the index of the last whitespace rune that is
// outside parentheses and quotes, or -1.
func lastTopLevelSpace(s string) int {
	pos := -1
	depth := 0
	var quote rune
	for i, r := range s {
		if quote != 0 {
			if r == quote {
				quote = 0
			}
			continue
		}
		switch {
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			depth--
		case depth == 0 && unicode.IsSpace(r):
			pos = i
		}
	}
	return pos
}

// parseExpression surfaces the output column name of one select-list entry.
func parseExpression(expr string, comments map[string]string) (Column, error) {
	expr = leadingDistinct.ReplaceAllString(strings.TrimSpace(expr), "")
	if expr == "" {
		return Column{}, invalidInput("empty column expression")
	}

	main, alias := splitAlias(expr)
	var name string
	if alias != "" {
		name = unquoteIdent(alias)
	} else {
		if main == "*" || strings.HasSuffix(main, ".*") {
			return Column{}, invalidInput("wildcard %q cannot be resolved to named columns", main)
		}
		n, ok := columnName(main)
		if !ok {
			return Column{}, invalidInput("cannot derive a column name from %q; add an alias", main)
		}
		name = n
	}
	if name == "" {
		return Column{}, invalidInput("empty column name in %q", expr)
	}

	comment := name
	if c, ok := comments[expr]; ok {
		comment = c
	} else if c, ok := comments[main]; ok {
		comment = c
	}
	return Column{Name: name, Comment: comment}, nil
}

// splitAlias separates "expr AS alias" and "expr alias". A bare trailing
// token only counts as an alias when the token before it is not an operator.
func splitAlias(expr string) (main, alias string) {
	pos := lastTopLevelSpace(expr)
	if pos < 0 {
		return expr, ""
	}
	head := strings.TrimSpace(expr[:pos])
	tail := strings.TrimSpace(expr[pos:])
	if tail == "" || strings.ContainsAny(tail, "()+-*/=<>,|") {
		return expr, ""
	}
	if i := lastTopLevelSpace(head); i >= 0 && strings.EqualFold(strings.TrimSpace(head[i:]), "AS") {
		return strings.TrimSpace(head[:i]), tail
	}
	if strings.EqualFold(head, "AS") || reservedAlias[strings.ToUpper(tail)] {
		return expr, ""
	}
	last := head
	if i := lastTopLevelSpace(head); i >= 0 {
		last = strings.TrimSpace(head[i:])
	}
	if strings.ContainsAny(last[len(last)-1:], "(+-*/=<>,|") {
		return expr, ""
	}
	return head, tail
}

// reservedAlias lists keywords that end an expression and so never act as
// a bare alias.
var reservedAlias = map[string]bool{
	"END": true, "THEN": true, "ELSE": true, "WHEN": true, "CASE": true,
	"AND": true, "OR": true, "NOT": true, "NULL": true, "IS": true,
	"IN": true, "LIKE": true, "BETWEEN": true, "ASC": true, "DESC": true,
	"TRUE": true, "FALSE": true, "DISTINCT": true,
}

// columnName returns the final segment of a (possibly qualified) column
// reference, or false when expr is not a plain column.
func columnName(expr string) (string, bool) {
	seg := expr
	if n := len(expr); n > 1 && strings.ContainsRune(`"'`+"`]", rune(expr[n-1])) {
		open := expr[n-1]
		if open == ']' {
			open = '['
		}
		if i := strings.LastIndexByte(expr[:n-1], open); i >= 0 {
			seg = expr[i:]
		}
	} else if i := strings.LastIndexByte(expr, '.'); i >= 0 {
		seg = expr[i+1:]
	}
	if isQuoted(seg) {
		return unquoteIdent(seg), true
	}
	if !plainName.MatchString(seg) {
		return "", false
	}
	return seg, true
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	switch s[0] {
	case '"', '\'', '`':
		return s[len(s)-1] == s[0]
	case '[':
		return s[len(s)-1] == ']'
	}
	return false
}

func unquoteIdent(s string) string {
	s = strings.TrimSpace(s)
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	return strings.Trim(s, `'"`)
}
