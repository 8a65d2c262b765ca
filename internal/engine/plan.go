package engine

import (
	"fmt"

	"duck-gateway/internal/config"
	"duck-gateway/internal/ddl"
)

// Catalog aliases and secret names used by attachment plans.
const (
	IcebergAlias      = "r2lake"
	IcebergSecretName = "r2_catalog_secret"
	DuckLakeAlias     = "ducklake"
	R2SecretName      = "r2"
)

// Backend is the set of remote catalogs an attachment plan brings up.
type Backend int

// Backend variants.
const (
	NoBackend Backend = iota
	IcebergOnly
	DuckLakeOnly
	Both
)

func (b Backend) String() string {
	switch b {
	case IcebergOnly:
		return "iceberg"
	case DuckLakeOnly:
		return "ducklake"
	case Both:
		return "iceberg+ducklake"
	default:
		return "none"
	}
}

// StepKind classifies an initialization statement.
type StepKind string

// Step kinds.
const (
	StepHome      StepKind = "home"
	StepInstall   StepKind = "install"
	StepLoad      StepKind = "load"
	StepPreflight StepKind = "preflight"
	StepSecret    StepKind = "secret"
	StepAttach    StepKind = "attach"
	StepUse       StepKind = "use"
	StepLockdown  StepKind = "lockdown"
	StepTuning    StepKind = "tuning"
)

// Step is one initialization statement. Sensitive steps embed credentials and
// are never logged or printed verbatim.
type Step struct {
	Kind        StepKind `json:"kind" yaml:"kind"`
	Description string   `json:"description" yaml:"description"`
	SQL         string   `json:"-" yaml:"-"`
	Sensitive   bool     `json:"sensitive,omitempty" yaml:"sensitive,omitempty"`
}

// Redacted returns the statement text, or a placeholder for sensitive steps.
func (s Step) Redacted() string {
	if s.Sensitive {
		return "<redacted>"
	}
	return s.SQL
}

// DuckLake data storage locations. Empty means no DuckLake backend.
const (
	StorageR2    = "r2"
	StorageLocal = "local"
)

// Plan is the ordered list of attach operations derived from the configured
// credential bundles. Iceberg steps always precede DuckLake steps.
type Plan struct {
	Backend                 Backend `yaml:"-"`
	Steps                   []Step  `yaml:"steps"`
	DefaultCatalog          string  `yaml:"default_catalog,omitempty"`
	DuckLakeStorage         string  `yaml:"ducklake_storage,omitempty"`
	DuckLakeDataPath        string  `yaml:"ducklake_data_path,omitempty"`
	LocalFilesystemDisabled bool    `yaml:"local_filesystem_disabled"`
}

// Resolve derives the attachment plan from cfg. It has no side effects.
// Malformed credential values are reported as errors.
func Resolve(cfg *config.Config) (Plan, error) {
	var p Plan
	hasIceberg := cfg.Iceberg != nil
	hasDuckLake := cfg.Postgres != nil

	if hasIceberg {
		steps, err := icebergSteps(cfg.Iceberg)
		if err != nil {
			return Plan{}, fmt.Errorf("iceberg bundle: %w", err)
		}
		p.Steps = append(p.Steps, steps...)
	}

	if hasDuckLake {
		p.DuckLakeStorage = StorageLocal
		p.DuckLakeDataPath = cfg.DuckLakeDataPath
		if cfg.R2 != nil {
			p.DuckLakeStorage = StorageR2
			p.DuckLakeDataPath = "r2://" + cfg.R2.Bucket + "/data"
		}
		steps, err := duckLakeSteps(cfg, p.DuckLakeDataPath)
		if err != nil {
			return Plan{}, fmt.Errorf("ducklake bundle: %w", err)
		}
		p.Steps = append(p.Steps, steps...)
		p.DefaultCatalog = DuckLakeAlias
	}

	switch {
	case hasIceberg && hasDuckLake:
		p.Backend = Both
	case hasIceberg:
		p.Backend = IcebergOnly
	case hasDuckLake:
		p.Backend = DuckLakeOnly
	}

	p.LocalFilesystemDisabled = lockdown(cfg.Lockdown, hasIceberg, p.DuckLakeStorage)
	if p.LocalFilesystemDisabled {
		if p.DuckLakeStorage == StorageLocal {
			return Plan{}, fmt.Errorf("LOCAL_FS_LOCKDOWN=%s disables the local filesystem that holds DuckLake data at %s", cfg.Lockdown, p.DuckLakeDataPath)
		}
		stmt, err := ddl.DisableFilesystems("LocalFileSystem")
		if err != nil {
			return Plan{}, err
		}
		p.Steps = append(p.Steps, Step{Kind: StepLockdown, Description: "disable local filesystem", SQL: stmt})
	}

	return p, nil
}

func lockdown(policy config.LockdownPolicy, hasIceberg bool, storage string) bool {
	switch policy {
	case config.LockdownAlways:
		return true
	case config.LockdownNever:
		return false
	case config.LockdownAnyRemote:
		return hasIceberg || storage == StorageR2
	default:
		return storage == StorageR2
	}
}
