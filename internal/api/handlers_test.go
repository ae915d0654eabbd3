package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/JonMunkholm/ddlgen/internal/config"
	"github.com/JonMunkholm/ddlgen/internal/ddl"
	"github.com/JonMunkholm/ddlgen/internal/metrics"
	"github.com/JonMunkholm/ddlgen/internal/schema"
)

type stubSource struct {
	tables map[string]*schema.Table
	err    error
}

func (s *stubSource) Info() schema.SourceInfo {
	return schema.SourceInfo{Kind: "mysql", Database: "dw"}
}

func (s *stubSource) Tables(context.Context) ([]schema.Table, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []schema.Table
	for _, t := range s.tables {
		out = append(out, schema.Table{Schema: t.Schema, Name: t.Name})
	}
	return out, nil
}

func (s *stubSource) Columns(_ context.Context, table string) (*schema.Table, error) {
	if s.err != nil {
		return nil, s.err
	}
	if t, ok := s.tables[table]; ok {
		return t, nil
	}
	return nil, schema.ErrTableNotFound
}

func (s *stubSource) Close() error { return nil }

func newTestServer(t *testing.T, src schema.Source) *httptest.Server {
	t.Helper()

	cfg, err := config.FromLookup(func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatal(err)
	}
	cfg.MaxBodyBytes = 4096

	web := fstest.MapFS{"web/index.html": {Data: []byte("<html>ddlgen</html>")}}
	h, err := NewHandler(ddl.NewGenerator(nil), schema.NewSources(src), metrics.New(), web, cfg)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(func() {
		srv.Close()
		h.Stop()
	})
	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path, body string) (*http.Response, []byte) {
	t.Helper()

	resp, err := srv.Client().Post(srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, b
}

func TestGenerateDDLSingle(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	resp, body := postJSON(t, srv, "/api/generate-ddl",
		`{"fields":["org_id","trcl_id","business_date","credit_amt"],"databaseTypes":["mysql"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("missing request ID header")
	}

	var got ddl.Response
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DDL == "" || len(got.DDLs) != 1 || got.DDLs[0].Label != "MySQL" || got.ColumnCount != 4 {
		t.Fatalf("response = %+v", got)
	}
	for _, want := range []string{"PRIMARY KEY (org_id)", "ENGINE=InnoDB", "DECIMAL(24, 6)"} {
		if !strings.Contains(got.DDL, want) {
			t.Errorf("ddl missing %q:\n%s", want, got.DDL)
		}
	}
}

func TestGenerateDDLPartialFailure(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	resp, body := postJSON(t, srv, "/api/generate-ddl",
		`{"sql":"SELECT org_id, credit_amt FROM t","databaseTypes":["postgresql","oracle"],
		  "rulesByDatabase":{"postgresql":[{"pattern":"amt","type":"NUMERIC(18,2)"}]}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}

	var got ddl.Response
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.DDLs) != 2 || got.DDL != "" {
		t.Fatalf("response = %+v", got)
	}
	if !strings.Contains(got.DDLs[0].DDL, "DECIMAL(18, 2)") || !strings.Contains(got.DDLs[0].DDL, "COMMENT ON COLUMN") {
		t.Errorf("postgresql ddl:\n%s", got.DDLs[0].DDL)
	}
	if got.DDLs[1].Error == "" || got.DDLs[1].DDL != "" {
		t.Errorf("oracle entry = %+v", got.DDLs[1])
	}
}

func TestGenerateDDLErrors(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &stubSource{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"malformed json", `{"sql":`, http.StatusBadRequest, ErrInvalidRequest},
		{"wildcard", `{"sql":"SELECT * FROM t","databaseTypes":["mysql"]}`, http.StatusBadRequest, ErrInvalidInput},
		{"no types", `{"fields":["a"]}`, http.StatusBadRequest, ErrInvalidInput},
		{"duplicate fields", `{"fields":["a","A"],"databaseTypes":["hive"]}`, http.StatusBadRequest, ErrInvalidInput},
		{"source and fields", `{"fields":["a"],"sourceTable":{"kind":"mysql","table":"t"},"databaseTypes":["hive"]}`, http.StatusBadRequest, ErrInvalidInput},
		{"unknown source", `{"sourceTable":{"kind":"oracle","table":"t"},"databaseTypes":["hive"]}`, http.StatusNotFound, ErrUnknownSource},
		{"bad table name", `{"sourceTable":{"kind":"mysql","table":"t; drop"},"databaseTypes":["hive"]}`, http.StatusBadRequest, ErrInvalidTableName},
		{"missing table", `{"sourceTable":{"kind":"mysql","table":"nope"},"databaseTypes":["hive"]}`, http.StatusNotFound, ErrTableNotFound},
		{"body too large", `{"sql":"` + strings.Repeat("a", 5000) + `"}`, http.StatusRequestEntityTooLarge, ErrInvalidRequest},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, body := postJSON(t, srv, "/api/generate-ddl", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", resp.StatusCode, tt.wantStatus, body)
			}
			var e errorResponse
			if err := json.Unmarshal(body, &e); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if e.Code != tt.wantCode || e.Error == "" {
				t.Errorf("error = %+v, want code %s", e, tt.wantCode)
			}
		})
	}
}

func TestGenerateDDLFromSourceTable(t *testing.T) {
	t.Parallel()

	src := &stubSource{tables: map[string]*schema.Table{
		"orders": {Schema: "dw", Name: "orders", Columns: []schema.Column{
			{Name: "order_id", DataType: "bigint", Comment: "order key"},
			{Name: "paid_amt", DataType: "decimal"},
		}},
	}}
	srv := newTestServer(t, src)

	resp, body := postJSON(t, srv, "/api/generate-ddl",
		`{"sourceTable":{"kind":"mysql","table":"orders"},"databaseTypes":["hive"],"comments":{"paid_amt":"paid"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	var got ddl.Response
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, want := range []string{"EXISTS orders (", "COMMENT 'order key'", "COMMENT 'paid'"} {
		if !strings.Contains(got.DDL, want) {
			t.Errorf("ddl missing %q:\n%s", want, got.DDL)
		}
	}
}

func TestSourceRoutes(t *testing.T) {
	t.Parallel()

	src := &stubSource{tables: map[string]*schema.Table{
		"orders": {Name: "orders", Columns: []schema.Column{{Name: "order_id"}}},
	}}
	srv := newTestServer(t, src)

	get := func(path string) (int, string) {
		resp, err := srv.Client().Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	if code, body := get("/api/sources"); code != http.StatusOK || !strings.Contains(body, `"kind":"mysql"`) {
		t.Errorf("sources = %d %s", code, body)
	}
	if code, body := get("/api/sources/mysql/tables"); code != http.StatusOK || !strings.Contains(body, `"name":"orders"`) {
		t.Errorf("tables = %d %s", code, body)
	}
	if code, body := get("/api/sources/mysql/tables/orders/columns"); code != http.StatusOK || !strings.Contains(body, `"order_id"`) {
		t.Errorf("columns = %d %s", code, body)
	}
	if code, _ := get("/api/sources/clickhouse/tables"); code != http.StatusNotFound {
		t.Errorf("unknown source status = %d, want 404", code)
	}
	if code, body := get("/"); code != http.StatusOK || !strings.Contains(body, "ddlgen") {
		t.Errorf("index = %d %s", code, body)
	}
	if code, body := get("/metrics"); code != http.StatusOK || !strings.Contains(body, "go_goroutines") {
		t.Errorf("metrics = %d", code)
	}
}

func TestSourceFailure(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &stubSource{err: errors.New("connection refused")})

	resp, err := srv.Client().Get(srv.URL + "/api/sources/mysql/tables")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if strings.Contains(string(body), "connection refused") {
		t.Error("internal error leaked to client")
	}
}

func TestDialectsETag(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	resp, err := srv.Client().Get(srv.URL + "/api/dialects")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	etag := resp.Header.Get("ETag")
	if resp.StatusCode != http.StatusOK || etag == "" {
		t.Fatalf("status = %d, etag = %q", resp.StatusCode, etag)
	}
	var got dialectsData
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Dialects) != 7 {
		t.Errorf("got %d dialects, want 7", len(got.Dialects))
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/dialects", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err = srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotModified {
		t.Errorf("conditional GET status = %d, want 304", resp.StatusCode)
	}
}
