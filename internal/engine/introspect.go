package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"duck-gateway/internal/ddl"
	"duck-gateway/internal/domain"
	"duck-gateway/internal/sqllex"
)

// catalogFilter excludes engine-internal databases and system schemas.
const catalogFilter = `database_name NOT IN ('system', 'temp')
	AND NOT starts_with(database_name, '__ducklake_metadata_')`

const schemaFilter = catalogFilter + `
	AND schema_name NOT IN ('information_schema', 'pg_catalog')`

const (
	databasesQuery = `SELECT database_name FROM duckdb_databases()
WHERE NOT internal AND ` + catalogFilter + `
ORDER BY database_name`

	schemasQuery = `SELECT database_name, schema_name FROM duckdb_schemas()
WHERE ` + schemaFilter + `
ORDER BY database_name, schema_name`

	tablesQuery = `SELECT database_name, schema_name, table_name, has_primary_key,
	estimated_size, column_count, index_count, check_constraint_count, sql
FROM duckdb_tables()
WHERE ` + schemaFilter + `
ORDER BY database_name, schema_name, table_name`

	viewsQuery = `SELECT database_name, schema_name, view_name, sql FROM duckdb_views()
WHERE NOT internal AND ` + schemaFilter + `
ORDER BY database_name, schema_name, view_name`

	columnsQuery = `SELECT database_name, schema_name, table_name, column_name, data_type,
	numeric_precision, numeric_scale, is_nullable
FROM duckdb_columns()
WHERE ` + schemaFilter + `
ORDER BY database_name, schema_name, table_name, column_index`
)

// SchemaRow is one row of the schemas query.
type SchemaRow struct {
	Database string
	Schema   string
}

// ColumnRow is one row of the columns query. Owner is the table or view name.
type ColumnRow struct {
	Database string
	Schema   string
	Owner    string
	Column   domain.Column
}

// Snapshot holds the flat results of the five catalog queries.
type Snapshot struct {
	Databases []string
	Schemas   []SchemaRow
	Tables    []domain.Table
	Views     []domain.View
	Columns   []ColumnRow
}

// Snapshot initializes the session if needed and returns the catalog tree.
func (s *Session) Snapshot(ctx context.Context) ([]domain.Database, error) {
	snap, err := s.readCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return Assemble(snap), nil
}

// RenderSchemas returns the stored CREATE statement of every table and view,
// with the declared name qualified as "database"."schema"."name", separated
// by blank lines in database, schema, table, view order.
func (s *Session) RenderSchemas(ctx context.Context) (string, error) {
	dbs, err := s.Snapshot(ctx)
	if err != nil {
		return "", err
	}

	var parts []string
	add := func(stmt, db, schema, name string) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			return
		}
		qualified, err := QualifyCreateStatement(stmt, db, schema, name)
		if err != nil {
			s.logger.Warn("keeping unqualified DDL", "object", db+"."+schema+"."+name, "error", err)
			qualified = stmt
		}
		parts = append(parts, qualified)
	}
	for _, db := range dbs {
		for _, sc := range db.Schemas {
			for _, t := range sc.Tables {
				add(t.SQL, db.Name, sc.Name, t.Name)
			}
			for _, v := range sc.Views {
				add(v.SQL, db.Name, sc.Name, v.Name)
			}
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func (s *Session) readCatalog(ctx context.Context) (*Snapshot, error) {
	if err := s.EnsureReady(ctx); err != nil {
		return nil, err
	}
	snap := &Snapshot{}

	err := s.queryEach(ctx, databasesQuery, func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		snap.Databases = append(snap.Databases, name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}

	err = s.queryEach(ctx, schemasQuery, func(rows *sql.Rows) error {
		var r SchemaRow
		if err := rows.Scan(&r.Database, &r.Schema); err != nil {
			return err
		}
		snap.Schemas = append(snap.Schemas, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}

	err = s.queryEach(ctx, tablesQuery, func(rows *sql.Rows) error {
		var (
			t       domain.Table
			estSize sql.NullInt64
			stmt    sql.NullString
		)
		if err := rows.Scan(&t.Database, &t.Schema, &t.Name, &t.HasPrimaryKey,
			&estSize, &t.ColumnCount, &t.IndexCount, &t.CheckConstraintCount, &stmt); err != nil {
			return err
		}
		t.EstimatedRowCount = estSize.Int64
		t.SQL = stmt.String
		snap.Tables = append(snap.Tables, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	err = s.queryEach(ctx, viewsQuery, func(rows *sql.Rows) error {
		var (
			v    domain.View
			stmt sql.NullString
		)
		if err := rows.Scan(&v.Database, &v.Schema, &v.Name, &stmt); err != nil {
			return err
		}
		v.SQL = stmt.String
		snap.Views = append(snap.Views, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}

	err = s.queryEach(ctx, columnsQuery, func(rows *sql.Rows) error {
		var (
			c                ColumnRow
			precision, scale sql.NullInt64
		)
		if err := rows.Scan(&c.Database, &c.Schema, &c.Owner, &c.Column.Name, &c.Column.DataType,
			&precision, &scale, &c.Column.IsNullable); err != nil {
			return err
		}
		if precision.Valid {
			c.Column.Precision = &precision.Int64
		}
		if scale.Valid {
			c.Column.Scale = &scale.Int64
		}
		snap.Columns = append(snap.Columns, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}

	return snap, nil
}

func (s *Session) queryEach(ctx context.Context, query string, fn func(*sql.Rows) error) error {
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return domain.ErrEngine(err)
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		if err := fn(rows); err != nil {
			return domain.ErrEngine(err)
		}
	}
	if err := rows.Err(); err != nil {
		return domain.ErrEngine(err)
	}
	return nil
}

type schemaKey struct{ db, schema string }

type ownerKey struct{ db, schema, name string }

// Assemble nests the flat catalog rows into databases, schemas, tables,
// views and columns. Input order is kept and repeated rows are dropped at
// every level. Rows whose parent is missing are dropped.
func Assemble(snap *Snapshot) []domain.Database {
	columns := make(map[ownerKey][]domain.Column)
	seenColumn := make(map[ownerKey]map[string]bool)
	for _, c := range snap.Columns {
		k := ownerKey{c.Database, c.Schema, c.Owner}
		if seenColumn[k] == nil {
			seenColumn[k] = make(map[string]bool)
		}
		if seenColumn[k][c.Column.Name] {
			continue
		}
		seenColumn[k][c.Column.Name] = true
		columns[k] = append(columns[k], c.Column)
	}

	owned := func(k ownerKey) []domain.Column {
		if cols := columns[k]; cols != nil {
			return cols
		}
		return []domain.Column{}
	}

	tables := make(map[schemaKey][]domain.Table)
	views := make(map[schemaKey][]domain.View)
	seenOwner := make(map[ownerKey]bool)
	for _, t := range snap.Tables {
		k := ownerKey{t.Database, t.Schema, t.Name}
		if seenOwner[k] {
			continue
		}
		seenOwner[k] = true
		t.Columns = owned(k)
		sk := schemaKey{t.Database, t.Schema}
		tables[sk] = append(tables[sk], t)
	}
	for _, v := range snap.Views {
		k := ownerKey{v.Database, v.Schema, v.Name}
		if seenOwner[k] {
			continue
		}
		seenOwner[k] = true
		v.Columns = owned(k)
		sk := schemaKey{v.Database, v.Schema}
		views[sk] = append(views[sk], v)
	}

	schemas := make(map[string][]domain.Schema)
	seenSchema := make(map[schemaKey]bool)
	for _, r := range snap.Schemas {
		sk := schemaKey{r.Database, r.Schema}
		if seenSchema[sk] {
			continue
		}
		seenSchema[sk] = true
		sc := domain.Schema{Name: r.Schema, Tables: tables[sk], Views: views[sk]}
		if sc.Tables == nil {
			sc.Tables = []domain.Table{}
		}
		if sc.Views == nil {
			sc.Views = []domain.View{}
		}
		schemas[r.Database] = append(schemas[r.Database], sc)
	}

	out := make([]domain.Database, 0, len(snap.Databases))
	seenDB := make(map[string]bool)
	for _, name := range snap.Databases {
		if seenDB[name] {
			continue
		}
		seenDB[name] = true
		db := domain.Database{Name: name, Schemas: schemas[name]}
		if db.Schemas == nil {
			db.Schemas = []domain.Schema{}
		}
		out = append(out, db)
	}
	return out
}

// QualifyCreateStatement replaces the object name declared by a CREATE
// TABLE or CREATE VIEW statement with "db"."schema"."name". The name is
// located by token position, so other occurrences of the same text are left
// alone.
func QualifyCreateStatement(stmt, db, schema, name string) (string, error) {
	toks, err := sqllex.Tokenize(stmt)
	if err != nil {
		return "", err
	}

	i := 0
	expect := func(kws ...string) bool {
		for _, kw := range kws {
			if i < len(toks) && toks[i].IsKeyword(kw) {
				i++
				return true
			}
		}
		return false
	}

	if !expect("CREATE") {
		return "", fmt.Errorf("not a CREATE statement")
	}
	if expect("OR") && !expect("REPLACE") {
		return "", fmt.Errorf("expected REPLACE after CREATE OR")
	}
	expect("TEMP", "TEMPORARY")
	if !expect("TABLE", "VIEW") {
		return "", fmt.Errorf("not a CREATE TABLE or CREATE VIEW statement")
	}
	if expect("IF") {
		if !expect("NOT") || !expect("EXISTS") {
			return "", fmt.Errorf("expected IF NOT EXISTS")
		}
	}

	// The declared name is one to three identifiers joined by dots.
	if i >= len(toks) || toks[i].Kind != sqllex.Ident {
		return "", fmt.Errorf("missing object name")
	}
	start, end := toks[i].Pos, toks[i].End
	for i+2 < len(toks) && toks[i+1].IsPunct(".") && toks[i+2].Kind == sqllex.Ident {
		i += 2
		end = toks[i].End
	}

	return stmt[:start] + ddl.QualifiedName(db, schema, name) + stmt[end:], nil
}
