package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ddlgen/internal/ddl"
)

type generateOptions struct {
	sql          string
	sqlFile      string
	fields       []string
	databases    []string
	table        string
	tableComment string
	rulesFile    string
	source       string
	sourceTable  string
	asJSON       bool
}

// NewGenerateCmd renders DDL for one or more database types to stdout.
func NewGenerateCmd() *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate CREATE TABLE statements",
		Example: `  ddlgen generate --sql "SELECT org_id, credit_amt FROM t" --db mysql,postgresql
  ddlgen generate --fields org_id,business_date --db hive --table dw.orders
  cat query.sql | ddlgen generate --sql-file - --db clickhouse --json
  ddlgen generate --source mysql --source-table orders --db starrocks`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			dialects, err := loadDialects(cfg)
			if err != nil {
				return err
			}

			req, err := opts.request(cmd.InOrStdin())
			if err != nil {
				return err
			}

			if opts.source != "" {
				src, sources, err := requireSource(cmd.Context(), cfg, opts.source)
				if err != nil {
					return err
				}
				defer sources.Close()
				t, err := src.Columns(cmd.Context(), opts.sourceTable)
				if err != nil {
					return fmt.Errorf("read %s table %s: %w", opts.source, opts.sourceTable, err)
				}
				t.ApplyTo(&req)
			}

			gen := ddl.NewGenerator(dialects, ddl.WithPlaceholder(cfg.TablePlaceholder))
			resp, err := gen.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeResponse(cmd.OutOrStdout(), resp, opts.asJSON)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.sql, "sql", "", "SELECT statement to derive columns from")
	f.StringVar(&opts.sqlFile, "sql-file", "", "read the SELECT statement from a file (- for stdin)")
	f.StringSliceVar(&opts.fields, "fields", nil, "comma-separated field names")
	f.StringSliceVar(&opts.databases, "db", nil, "target database types (repeatable or comma-separated)")
	f.StringVar(&opts.table, "table", "", "table name (default placeholder)")
	f.StringVar(&opts.tableComment, "table-comment", "", "table comment")
	f.StringVar(&opts.rulesFile, "rules", "", "JSON file of per-database type rules")
	f.StringVar(&opts.source, "source", "", "read fields from a configured source (postgresql, mysql, clickhouse)")
	f.StringVar(&opts.sourceTable, "source-table", "", "table to read when --source is set")
	f.BoolVar(&opts.asJSON, "json", false, "print the response as JSON")

	cmd.MarkFlagsMutuallyExclusive("sql", "sql-file", "fields", "source")
	cmd.MarkFlagsRequiredTogether("source", "source-table")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// request builds a ddl.Request from the flags. stdin is read when
// --sql-file is "-".
func (o *generateOptions) request(stdin io.Reader) (ddl.Request, error) {
	req := ddl.Request{
		SQL:           o.sql,
		Fields:        o.fields,
		DatabaseTypes: o.databases,
		TableName:     o.table,
		TableComment:  o.tableComment,
	}

	switch o.sqlFile {
	case "":
	case "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return req, fmt.Errorf("read sql from stdin: %w", err)
		}
		req.SQL = string(b)
	default:
		b, err := os.ReadFile(o.sqlFile)
		if err != nil {
			return req, fmt.Errorf("read sql file: %w", err)
		}
		req.SQL = string(b)
	}

	if o.rulesFile != "" {
		b, err := os.ReadFile(o.rulesFile)
		if err != nil {
			return req, fmt.Errorf("read rules file: %w", err)
		}
		if err := json.Unmarshal(b, &req.RulesByDatabase); err != nil {
			return req, fmt.Errorf("parse rules file %s: %w", o.rulesFile, err)
		}
	}
	return req, nil
}

// writeResponse prints each result under a "-- Label" header, or the whole
// response as JSON. Failed database types are reported after the output and
// turn into a non-nil error.
func writeResponse(w io.Writer, resp *ddl.Response, asJSON bool) error {
	var failed []string
	for _, d := range resp.DDLs {
		if d.Error != "" {
			failed = append(failed, fmt.Sprintf("%s: %s", d.DatabaseType, d.Error))
		}
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else {
		first := true
		for _, d := range resp.DDLs {
			if d.Error != "" {
				continue
			}
			if !first {
				fmt.Fprintln(w)
			}
			first = false
			fmt.Fprintf(w, "-- %s\n%s\n", d.Label, d.DDL)
		}
	}

	if len(failed) > 0 {
		return errors.New("generation failed for " + strings.Join(failed, "; "))
	}
	return nil
}
