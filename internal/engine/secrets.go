package engine

import (
	"duck-gateway/internal/config"
	"duck-gateway/internal/ddl"
)

// icebergSteps creates the R2 Data Catalog secret and attaches the Iceberg
// REST catalog under IcebergAlias.
func icebergSteps(c *config.IcebergConfig) ([]Step, error) {
	secret, err := ddl.CreateIcebergSecret(IcebergSecretName, c.Token, c.Endpoint)
	if err != nil {
		return nil, err
	}
	attach, err := ddl.AttachIceberg(c.Catalog, IcebergAlias, c.Endpoint)
	if err != nil {
		return nil, err
	}
	return []Step{
		{Kind: StepSecret, Description: "create iceberg catalog secret " + IcebergSecretName, SQL: secret, Sensitive: true},
		{Kind: StepAttach, Description: "attach iceberg catalog as " + IcebergAlias, SQL: attach},
	}, nil
}

// duckLakeSteps creates the R2 storage secret when R2 holds the data files,
// attaches the Postgres-backed DuckLake catalog and makes it the default.
func duckLakeSteps(cfg *config.Config, dataPath string) ([]Step, error) {
	var steps []Step
	if cfg.R2 != nil {
		secret, err := ddl.CreateR2Secret(R2SecretName, cfg.R2.AccessKeyID, cfg.R2.SecretAccessKey, cfg.R2.AccountID)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{Kind: StepSecret, Description: "create R2 storage secret " + R2SecretName, SQL: secret, Sensitive: true})
	}

	params := ddl.PostgresParams{
		Database: cfg.Postgres.Database,
		Host:     cfg.Postgres.Host,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
	}
	attach, err := ddl.AttachDuckLakePostgres(DuckLakeAlias, params, dataPath)
	if err != nil {
		return nil, err
	}
	use, err := ddl.SetDefaultCatalog(DuckLakeAlias)
	if err != nil {
		return nil, err
	}
	return append(steps,
		Step{Kind: StepAttach, Description: "attach ducklake catalog as " + DuckLakeAlias + " with data at " + dataPath, SQL: attach, Sensitive: true},
		Step{Kind: StepUse, Description: "use " + DuckLakeAlias + " as default catalog", SQL: use},
	), nil
}
