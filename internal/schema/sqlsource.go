package schema

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go"
	_ "github.com/go-sql-driver/mysql"
)

// sqlDialect holds the catalog queries for a database/sql backed source.
// Both queries take the schema name (empty for the current database); the
// columns query also takes the table name.
type sqlDialect struct {
	kind         string
	driver       string
	currentDB    string
	tablesQuery  string
	columnsQuery string
}

var mysqlCatalog = sqlDialect{
	kind:      "mysql",
	driver:    "mysql",
	currentDB: "SELECT DATABASE()",
	tablesQuery: `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
	columnsQuery: `
		SELECT column_name, data_type, column_comment, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND table_name = ?
		ORDER BY ordinal_position`,
}

var clickhouseCatalog = sqlDialect{
	kind:      "clickhouse",
	driver:    "clickhouse",
	currentDB: "SELECT currentDatabase()",
	tablesQuery: `
		SELECT database, name
		FROM system.tables
		WHERE database = if(? = '', currentDatabase(), ?)
		  AND is_temporary = 0
		ORDER BY name`,
	columnsQuery: `
		SELECT name, type, comment, position
		FROM system.columns
		WHERE database = if(? = '', currentDatabase(), ?)
		  AND table = ?
		ORDER BY position`,
}

// SQLSource reads table metadata over database/sql. It serves MySQL
// (and MySQL-protocol engines such as StarRocks and Doris) and ClickHouse.
type SQLSource struct {
	db           *sql.DB
	dialect      sqlDialect
	dbName       string
	queryTimeout time.Duration
}

// OpenMySQL opens a MySQL-protocol source.
func OpenMySQL(ctx context.Context, dsn string, queryTimeout time.Duration) (*SQLSource, error) {
	return openSQL(ctx, mysqlCatalog, dsn, queryTimeout)
}

// OpenClickHouse opens a ClickHouse source.
func OpenClickHouse(ctx context.Context, dsn string, queryTimeout time.Duration) (*SQLSource, error) {
	return openSQL(ctx, clickhouseCatalog, dsn, queryTimeout)
}

func openSQL(ctx context.Context, d sqlDialect, dsn string, queryTimeout time.Duration) (*SQLSource, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", d.kind, err)
	}

	ctx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()

	var dbName sql.NullString
	if err := db.QueryRowContext(ctx, d.currentDB).Scan(&dbName); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to query %s: %w", d.kind, err)
	}
	return &SQLSource{db: db, dialect: d, dbName: dbName.String, queryTimeout: queryTimeout}, nil
}

// Info reports the source kind and current database.
func (s *SQLSource) Info() SourceInfo {
	return SourceInfo{Kind: s.dialect.kind, Database: s.dbName}
}

// Tables returns the tables of the current database.
func (s *SQLSource) Tables(ctx context.Context) ([]Table, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.dialect.tablesQuery, s.args("")...)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}
	defer rows.Close()

	tables := make([]Table, 0, 64)
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// Columns returns the columns of table ("table" or "database.table").
func (s *SQLSource) Columns(ctx context.Context, table string) (*Table, error) {
	schemaName, name, err := splitTableName(table)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.dialect.columnsQuery, append(s.args(schemaName), name)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	defer rows.Close()

	t := &Table{Schema: schemaName, Name: name}
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.DataType, &col.Comment, &col.Ordinal); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		t.Columns = append(t.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	if t.Schema == "" {
		t.Schema = s.dbName
	}
	return t, nil
}

// args repeats the schema placeholder for ClickHouse's if(?, ?) form.
func (s *SQLSource) args(schemaName string) []any {
	if s.dialect.kind == "clickhouse" {
		return []any{schemaName, schemaName}
	}
	return []any{schemaName}
}

// Close closes the underlying database handle.
func (s *SQLSource) Close() error {
	return s.db.Close()
}
