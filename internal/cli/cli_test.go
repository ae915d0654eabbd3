package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/JonMunkholm/ddlgen/internal/ddl"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd(fstest.MapFS{"web/index.html": {Data: []byte("<html></html>")}})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGenerateCommand(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "", "generate",
		"--fields", "org_id,business_date,credit_amt",
		"--db", "mysql", "--db", "postgresql",
		"--table", "dw.ledger")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{
		"-- MySQL\nCREATE TABLE IF NOT EXISTS dw.ledger (",
		"PRIMARY KEY (org_id)",
		"-- PostgreSQL\nCREATE TABLE dw.ledger (",
		"COMMENT ON COLUMN dw.ledger.credit_amt IS 'credit_amt';",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "-- MySQL") > strings.Index(out, "-- PostgreSQL") {
		t.Error("results not in request order")
	}
}

func TestGenerateCommandStdinAndRules(t *testing.T) {
	t.Parallel()

	rules := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(rules, []byte(`{"hive":["org_id=INTEGER"]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "SELECT org_id, a.name AS org_name FROM orgs a",
		"generate", "--sql-file", "-", "--db", "hive", "--rules", rules, "--json")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var resp ddl.Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if resp.ColumnCount != 2 || len(resp.DDLs) != 1 {
		t.Fatalf("response = %+v", resp)
	}
	if !strings.Contains(resp.DDL, "org_id") || !strings.Contains(resp.DDL, " INT ") {
		t.Errorf("rule override not applied:\n%s", resp.DDL)
	}
	if !strings.Contains(resp.DDL, "org_name") {
		t.Errorf("alias not used:\n%s", resp.DDL)
	}
}

func TestGenerateCommandErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing db", []string{"generate", "--fields", "a"}, "db"},
		{"sql and fields", []string{"generate", "--sql", "SELECT a", "--fields", "a", "--db", "hive"}, "none of the others"},
		{"wildcard", []string{"generate", "--sql", "SELECT * FROM t", "--db", "hive"}, "wildcard"},
		{"unsupported type", []string{"generate", "--fields", "a", "--db", "hive,oracle"}, "oracle"},
		{"source without table", []string{"generate", "--source", "mysql", "--db", "hive"}, "source-table"},
		{"missing rules file", []string{"generate", "--fields", "a", "--db", "hive", "--rules", "/nonexistent/rules.json"}, "rules file"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := execute(t, "", tt.args...)
			if err == nil {
				t.Fatal("Execute() error = nil")
			}
			if !strings.Contains(strings.ToLower(err.Error()), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteResponsePartialFailure(t *testing.T) {
	t.Parallel()

	resp := &ddl.Response{DDLs: []ddl.DDLResult{
		{DatabaseType: "hive", Label: "Hive", DDL: "CREATE TABLE t (\n    a STRING\n);"},
		{DatabaseType: "oracle", Label: "ORACLE", Error: "unsupported database type: oracle"},
	}}

	var out bytes.Buffer
	err := writeResponse(&out, resp, false)
	if err == nil || !strings.Contains(err.Error(), "oracle") {
		t.Errorf("error = %v, want oracle failure", err)
	}
	if !strings.HasPrefix(out.String(), "-- Hive\nCREATE TABLE t") {
		t.Errorf("output = %q", out.String())
	}
	if strings.Contains(out.String(), "ORACLE") {
		t.Error("failed result printed as DDL")
	}
}

func TestDialectsCommand(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "", "dialects")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 8 {
		t.Fatalf("got %d lines, want header + 7:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "KEY") || !strings.Contains(out, "ENGINE=InnoDB") {
		t.Errorf("output:\n%s", out)
	}

	out, err = execute(t, "", "dialects", "--json")
	if err != nil {
		t.Fatalf("Execute(--json) error = %v", err)
	}
	var got []ddl.Dialect
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 7 || got[0].Key != "spark" {
		t.Errorf("dialects = %+v", got)
	}
}
