// Package engine owns the embedded DuckDB session: attachment planning,
// one-time initialization, query execution and catalog introspection.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"duck-gateway/internal/ddl"
)

// DefaultExtensions are loaded in this order during initialization: remote
// object access, Iceberg, DuckLake, Arrow interchange, Postgres scanning.
var DefaultExtensions = []string{"httpfs", "iceberg", "ducklake", "nanoarrow", "postgres_scanner"}

// tuningFlags are applied after the plan. lock_configuration must stay last
// so user queries cannot change engine settings afterwards.
var tuningFlags = []struct {
	name  string
	value any
}{
	{"enable_http_metadata_cache", true},
	{"enable_object_cache", true},
	{"unsafe_enable_version_guessing", true},
	{"lock_configuration", true},
}

// Options configures session initialization.
type Options struct {
	// ExtensionDir holds <name>.duckdb_extension binaries. Empty installs
	// extensions from the default repository by name.
	ExtensionDir string
	// Extensions overrides DefaultExtensions when non-nil.
	Extensions []string
	// HomeDirectory is the engine home and scratch directory.
	HomeDirectory string
	// Preflight runs after extensions are loaded and before the plan.
	Preflight func(ctx context.Context) error
	Logger    *slog.Logger
}

func (o Options) extensions() []string {
	if o.Extensions != nil {
		return o.Extensions
	}
	return DefaultExtensions
}

// Sequence returns the full initialization sequence for plan: home
// directory, extension installs and loads, a preflight marker when a
// preflight check is configured, the plan steps, then the tuning flags.
func Sequence(plan Plan, opts Options) ([]Step, error) {
	var steps []Step

	home := opts.HomeDirectory
	if home == "" {
		home = "/tmp"
	}
	stmt, err := ddl.SetOption("home_directory", home)
	if err != nil {
		return nil, err
	}
	steps = append(steps, Step{Kind: StepHome, Description: "set home directory " + home, SQL: stmt})

	for _, name := range opts.extensions() {
		install, err := ddl.InstallExtension(opts.ExtensionDir, name)
		if err != nil {
			return nil, err
		}
		load, err := ddl.LoadExtension(opts.ExtensionDir, name)
		if err != nil {
			return nil, err
		}
		steps = append(steps,
			Step{Kind: StepInstall, Description: "install extension " + name, SQL: install},
			Step{Kind: StepLoad, Description: "load extension " + name, SQL: load},
		)
	}

	if opts.Preflight != nil {
		steps = append(steps, Step{Kind: StepPreflight, Description: "preflight backend checks"})
	}

	steps = append(steps, plan.Steps...)

	for _, f := range tuningFlags {
		stmt, err := ddl.SetOption(f.name, f.value)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{Kind: StepTuning, Description: fmt.Sprintf("set %s=%v", f.name, f.value), SQL: stmt})
	}
	return steps, nil
}
