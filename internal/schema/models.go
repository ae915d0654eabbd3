package schema

import (
	"strings"

	"github.com/JonMunkholm/ddlgen/internal/ddl"
)

// Column represents a single column of an existing table.
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"dataType"`
	Comment  string `json:"comment,omitempty"`
	Ordinal  int    `json:"ordinal"`
}

// Table represents a table with its columns in ordinal order.
type Table struct {
	Schema  string   `json:"schema,omitempty"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns,omitempty"`
}

// Fields returns the column names in order and the non-empty column
// comments keyed by name.
func (t Table) Fields() ([]string, map[string]string) {
	names := make([]string, 0, len(t.Columns))
	comments := make(map[string]string)
	for _, c := range t.Columns {
		names = append(names, c.Name)
		if c.Comment != "" {
			comments[c.Name] = c.Comment
		}
	}
	return names, comments
}

// SourceInfo describes a configured column source.
type SourceInfo struct {
	Kind     string `json:"kind"`
	Database string `json:"database,omitempty"`
}

// ApplyTo fills req's fields from the table. Comments already on req take
// precedence over the table's own column comments, and the table name is
// used when req has none.
func (t Table) ApplyTo(req *ddl.Request) {
	names, comments := t.Fields()
	req.Fields = names
	for k, v := range req.Comments {
		comments[k] = v
	}
	req.Comments = comments
	if strings.TrimSpace(req.TableName) == "" {
		req.TableName = t.Name
	}
}
