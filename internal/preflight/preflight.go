// Package preflight probes the remote backends of an attachment plan before
// the engine attaches them, so misconfigured credentials fail with a clear
// error instead of an opaque extension message.
package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"duck-gateway/internal/config"
	"duck-gateway/internal/ddl"
)

// DefaultTimeout bounds each probe.
const DefaultTimeout = 10 * time.Second

// Check is a named backend probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// R2Endpoint returns the S3-compatible endpoint of a Cloudflare account.
func R2Endpoint(accountID string) string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
}

// NewR2BucketCheck returns a probe that issues HeadBucket for the configured
// bucket against endpoint.
func NewR2BucketCheck(c *config.R2Config, endpoint string) Check {
	client := s3.New(s3.Options{
		Region: "auto",
		Credentials: credentials.NewStaticCredentialsProvider(
			c.AccessKeyID, c.SecretAccessKey, "",
		),
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
	})
	bucket := c.Bucket
	return Check{
		Name: "r2 bucket " + bucket,
		Run: func(ctx context.Context) error {
			if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
				return fmt.Errorf("head bucket %s: %w", bucket, err)
			}
			return nil
		},
	}
}

// NewPostgresCheck returns a probe that connects to the DuckLake metadata
// catalog and pings it.
func NewPostgresCheck(name, connString string) Check {
	return Check{
		Name: name,
		Run: func(ctx context.Context) error {
			cfg, err := pgxpool.ParseConfig(connString)
			if err != nil {
				return fmt.Errorf("parse connection config: %w", err)
			}
			cfg.MaxConns = 1

			pool, err := pgxpool.NewWithConfig(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create pool: %w", err)
			}
			defer pool.Close()

			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			return nil
		},
	}
}

// FromConfig builds the probes for every configured DuckLake backend.
func FromConfig(cfg *config.Config) ([]Check, error) {
	var checks []Check
	if cfg.R2 != nil && cfg.Postgres != nil {
		endpoint := cfg.R2S3Endpoint
		if endpoint == "" {
			endpoint = R2Endpoint(cfg.R2.AccountID)
		}
		checks = append(checks, NewR2BucketCheck(cfg.R2, endpoint))
	}
	if cfg.Postgres != nil {
		dsn, err := ddl.PostgresParams{
			Database: cfg.Postgres.Database,
			Host:     cfg.Postgres.Host,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
		}.DSN()
		if err != nil {
			return nil, err
		}
		checks = append(checks, NewPostgresCheck("postgres catalog "+cfg.Postgres.Host, dsn))
	}
	return checks, nil
}

// Run executes checks concurrently, each bounded by timeout, and returns the
// first failure.
func Run(ctx context.Context, checks []Check, timeout time.Duration, logger *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			if err := c.Run(cctx); err != nil {
				logger.Error("preflight check failed", "check", c.Name, "error", err)
				return fmt.Errorf("%s: %w", c.Name, err)
			}
			logger.Info("preflight check passed", "check", c.Name, "duration_ms", time.Since(start).Milliseconds())
			return nil
		})
	}
	return g.Wait()
}

// Func adapts checks into the hook engine initialization calls.
func Func(checks []Check, logger *slog.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return Run(ctx, checks, DefaultTimeout, logger)
	}
}
