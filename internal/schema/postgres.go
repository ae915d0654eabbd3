package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource reads table metadata from PostgreSQL.
type PostgresSource struct {
	pool         *pgxpool.Pool
	dbName       string
	queryTimeout time.Duration
}

// NewPostgresSource creates a source over an open pool.
func NewPostgresSource(pool *pgxpool.Pool, dbName string, queryTimeout time.Duration) *PostgresSource {
	return &PostgresSource{pool: pool, dbName: dbName, queryTimeout: queryTimeout}
}

// OpenPostgres connects to databaseURL and verifies the connection.
func OpenPostgres(ctx context.Context, databaseURL string, queryTimeout time.Duration) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgresql: %w", err)
	}

	pingCtx, cancel := withTimeout(ctx, queryTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgresql: %w", err)
	}
	return NewPostgresSource(pool, pool.Config().ConnConfig.Database, queryTimeout), nil
}

// Info reports the source kind and current database.
func (p *PostgresSource) Info() SourceInfo {
	return SourceInfo{Kind: "postgresql", Database: p.dbName}
}

// Tables returns all base tables outside the system schemas.
func (p *PostgresSource) Tables(ctx context.Context) ([]Table, error) {
	ctx, cancel := withTimeout(ctx, p.queryTimeout)
	defer cancel()

	query := `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name
	`
	rows, err := p.pool.Query(ctx, query)
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

// Columns returns the columns of table ("table" or "schema.table") with
// their comments. Unqualified names are looked up in the public schema.
func (p *PostgresSource) Columns(ctx context.Context, table string) (*Table, error) {
	schemaName, name, err := splitTableName(table)
	if err != nil {
		return nil, err
	}
	if schemaName == "" {
		schemaName = "public"
	}

	ctx, cancel := withTimeout(ctx, p.queryTimeout)
	defer cancel()

	query := `
		SELECT
			c.column_name,
			c.data_type,
			COALESCE(col_description(cls.oid, c.ordinal_position::int), '') AS comment,
			c.ordinal_position
		FROM information_schema.columns c
		JOIN pg_catalog.pg_namespace ns ON ns.nspname = c.table_schema
		JOIN pg_catalog.pg_class cls ON cls.relname = c.table_name AND cls.relnamespace = ns.oid
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`
	rows, err := p.pool.Query(ctx, query, schemaName, name)
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
		return nil, fmt.Errorf("%w: %s.%s", ErrTableNotFound, schemaName, name)
	}
	return t, nil
}

// Close releases the pool.
func (p *PostgresSource) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
