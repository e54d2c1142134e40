package database

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// TableCount is one row of the store diagnostic.
type TableCount struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

// Diagnostics describes the store for operator troubleshooting.
type Diagnostics struct {
	Path   string       `json:"path"`
	Tables []TableCount `json:"tables"`
}

// InitDB opens a plain database/sql handle on the store file.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database %s: %w", path, err)
	}
	return db, nil
}

// Diagnose opens its own connection, lists the user tables and counts
// their rows, then closes the connection.
func Diagnose(ctx context.Context, path string) (Diagnostics, error) {
	db, err := InitDB(path)
	if err != nil {
		return Diagnostics{}, err
	}
	defer db.Close()

	names, err := listTables(ctx, db)
	if err != nil {
		return Diagnostics{}, err
	}

	diag := Diagnostics{Path: path, Tables: make([]TableCount, 0, len(names))}
	for _, name := range names {
		sqlStr, args, err := psql.Select("COUNT(*)").From(quoteIdent(name)).ToSql()
		if err != nil {
			return Diagnostics{}, fmt.Errorf("failed to build SQL for counting %s: %w", name, err)
		}
		var rows int64
		if err := db.QueryRowContext(ctx, sqlStr, args...).Scan(&rows); err != nil {
			return Diagnostics{}, fmt.Errorf("failed to count rows in %s: %w", name, err)
		}
		diag.Tables = append(diag.Tables, TableCount{Name: name, Rows: rows})
	}
	return diag, nil
}

func listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	sqlStr, args, err := psql.Select("name").
		From("sqlite_master").
		Where(sq.Eq{"type": "table"}).
		Where(sq.NotLike{"name": "sqlite_%"}).
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for listing tables: %w", err)
	}

	rows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table names: %w", err)
	}
	return names, nil
}

func quoteIdent(name string) string {
	out := []byte{'"'}
	for i := 0; i < len(name); i++ {
		if name[i] == '"' {
			out = append(out, '"')
		}
		out = append(out, name[i])
	}
	return string(append(out, '"'))
}
