package domain

// Database is the root of the introspected catalog tree.
type Database struct {
	Name    string   `json:"name"`
	Schemas []Schema `json:"schemas"`
}

// Schema groups the tables and views of one database schema.
type Schema struct {
	Name   string  `json:"name"`
	Tables []Table `json:"tables"`
	Views  []View  `json:"views"`
}

// Table describes a base table as reported by duckdb_tables().
type Table struct {
	Database             string   `json:"database"`
	Schema               string   `json:"schema"`
	Name                 string   `json:"name"`
	HasPrimaryKey        bool     `json:"has_primary_key"`
	EstimatedRowCount    int64    `json:"estimated_row_count"`
	ColumnCount          int64    `json:"column_count"`
	IndexCount           int64    `json:"index_count"`
	CheckConstraintCount int64    `json:"check_constraint_count"`
	SQL                  string   `json:"sql"`
	Columns              []Column `json:"columns"`
}

// View describes a view as reported by duckdb_views().
type View struct {
	Database string   `json:"database"`
	Schema   string   `json:"schema"`
	Name     string   `json:"name"`
	SQL      string   `json:"sql"`
	Columns  []Column `json:"columns"`
}

// Column describes one column of a table or view.
type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	Precision  *int64 `json:"precision,omitempty"`
	Scale      *int64 `json:"scale,omitempty"`
	IsNullable bool   `json:"is_nullable"`
}
