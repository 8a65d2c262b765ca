// Package ddl builds DuckDB statements for extensions, settings, secrets and
// catalog attachment.
package ddl

import (
	"fmt"
	"path"
	"strings"
)

// InstallExtension returns INSTALL for a named extension, or for a local
// extension binary when dir is non-empty.
func InstallExtension(dir, name string) (string, error) {
	src, err := extensionSource(dir, name)
	if err != nil {
		return "", err
	}
	return "INSTALL " + src, nil
}

// LoadExtension returns LOAD for a named extension, or for a local extension
// binary when dir is non-empty.
func LoadExtension(dir, name string) (string, error) {
	src, err := extensionSource(dir, name)
	if err != nil {
		return "", err
	}
	return "LOAD " + src, nil
}

func extensionSource(dir, name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid extension name: %w", err)
	}
	if dir == "" {
		return name, nil
	}
	return QuoteLiteral(path.Join(dir, name+".duckdb_extension")), nil
}

// SetOption returns SET <name>=<value>. String values are quoted as literals;
// bool values are rendered as true/false.
func SetOption(name string, value any) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid setting name: %w", err)
	}
	switch v := value.(type) {
	case bool:
		return fmt.Sprintf("SET %s=%t", name, v), nil
	case string:
		return fmt.Sprintf("SET %s=%s", name, QuoteLiteral(v)), nil
	default:
		return "", fmt.Errorf("unsupported value type %T for setting %s", value, name)
	}
}

// CreateIcebergSecret returns a DuckDB statement to create (or replace) an
// Iceberg REST catalog secret.
func CreateIcebergSecret(name, token, endpoint string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid secret name: %w", err)
	}
	if err := ValidateCredential("catalog token", token); err != nil {
		return "", err
	}
	if err := ValidateCredential("catalog endpoint", endpoint); err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE OR REPLACE SECRET %s (TYPE ICEBERG, TOKEN %s, ENDPOINT %s)",
		QuoteIdentifier(name),
		QuoteLiteral(token),
		QuoteLiteral(endpoint),
	), nil
}

// AttachIceberg returns a DuckDB statement attaching an Iceberg REST catalog.
func AttachIceberg(catalogRef, alias, endpoint string) (string, error) {
	if err := ValidateIdentifier(alias); err != nil {
		return "", fmt.Errorf("invalid catalog alias: %w", err)
	}
	if err := ValidateCredential("catalog reference", catalogRef); err != nil {
		return "", err
	}
	if err := ValidateCredential("catalog endpoint", endpoint); err != nil {
		return "", err
	}
	return fmt.Sprintf("ATTACH %s AS %s (TYPE ICEBERG, ENDPOINT %s)",
		QuoteLiteral(catalogRef),
		QuoteIdentifier(alias),
		QuoteLiteral(endpoint),
	), nil
}

// CreateR2Secret returns a DuckDB statement to create (or replace) a
// Cloudflare R2 storage secret.
func CreateR2Secret(name, keyID, secret, accountID string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid secret name: %w", err)
	}
	if err := ValidateCredential("R2 access key id", keyID); err != nil {
		return "", err
	}
	if err := ValidateCredential("R2 secret access key", secret); err != nil {
		return "", err
	}
	if err := ValidateCredential("R2 account id", accountID); err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE OR REPLACE SECRET %s (TYPE R2, KEY_ID %s, SECRET %s, ACCOUNT_ID %s)",
		QuoteIdentifier(name),
		QuoteLiteral(keyID),
		QuoteLiteral(secret),
		QuoteLiteral(accountID),
	), nil
}

// PostgresParams are the libpq keyword/value parameters of a DuckLake
// Postgres metadata catalog.
type PostgresParams struct {
	Database string
	Host     string
	User     string
	Password string
}

// DSN renders the parameters as a libpq keyword/value string with TLS required.
func (p PostgresParams) DSN() (string, error) {
	fields := []struct{ key, label, value string }{
		{"dbname", "postgres database", p.Database},
		{"host", "postgres host", p.Host},
		{"user", "postgres user", p.User},
		{"password", "postgres password", p.Password},
	}
	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		if err := ValidateConnParam(f.label, f.value); err != nil {
			return "", err
		}
		parts = append(parts, f.key+"="+f.value)
	}
	parts = append(parts, "sslmode=require")
	return strings.Join(parts, " "), nil
}

// AttachDuckLakePostgres returns a DuckDB statement to attach a DuckLake catalog
// whose metadata lives in PostgreSQL and whose data files live under dataPath.
func AttachDuckLakePostgres(alias string, params PostgresParams, dataPath string) (string, error) {
	if err := ValidateIdentifier(alias); err != nil {
		return "", fmt.Errorf("invalid catalog alias: %w", err)
	}
	dsn, err := params.DSN()
	if err != nil {
		return "", err
	}
	if err := ValidateCredential("data path", dataPath); err != nil {
		return "", err
	}
	return fmt.Sprintf("ATTACH %s AS %s (DATA_PATH %s)",
		QuoteLiteral("ducklake:postgres:"+dsn),
		QuoteIdentifier(alias),
		QuoteLiteral(dataPath),
	), nil
}

// SetDefaultCatalog returns a DuckDB USE statement to set the default catalog.
func SetDefaultCatalog(catalogName string) (string, error) {
	if err := ValidateIdentifier(catalogName); err != nil {
		return "", fmt.Errorf("invalid catalog name: %w", err)
	}
	return fmt.Sprintf("USE %s", QuoteIdentifier(catalogName)), nil
}

// DisableFilesystems returns a statement disabling the named engine filesystems.
func DisableFilesystems(names ...string) (string, error) {
	if len(names) == 0 {
		return "", fmt.Errorf("at least one filesystem is required")
	}
	for _, n := range names {
		if err := ValidateIdentifier(n); err != nil {
			return "", fmt.Errorf("invalid filesystem name: %w", err)
		}
	}
	return SetOption("disabled_filesystems", strings.Join(names, ","))
}
