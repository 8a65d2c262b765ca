package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"duck-gateway/internal/app"
	"duck-gateway/internal/config"
	"duck-gateway/internal/engine"
)

// planView is the printable form of an initialization sequence. Sensitive
// statements are redacted.
type planView struct {
	Backend                 string     `yaml:"backend"`
	DefaultCatalog          string     `yaml:"default_catalog,omitempty"`
	DuckLakeStorage         string     `yaml:"ducklake_storage,omitempty"`
	DuckLakeDataPath        string     `yaml:"ducklake_data_path,omitempty"`
	LocalFilesystemDisabled bool       `yaml:"local_filesystem_disabled"`
	Steps                   []stepView `yaml:"steps"`
}

type stepView struct {
	Kind        engine.StepKind `yaml:"kind"`
	Description string          `yaml:"description"`
	SQL         string          `yaml:"sql,omitempty"`
}

func newPlanView(plan engine.Plan, steps []engine.Step) planView {
	v := planView{
		Backend:                 plan.Backend.String(),
		DefaultCatalog:          plan.DefaultCatalog,
		DuckLakeStorage:         plan.DuckLakeStorage,
		DuckLakeDataPath:        plan.DuckLakeDataPath,
		LocalFilesystemDisabled: plan.LocalFilesystemDisabled,
		Steps:                   make([]stepView, 0, len(steps)),
	}
	for _, s := range steps {
		v.Steps = append(v.Steps, stepView{Kind: s.Kind, Description: s.Description, SQL: s.Redacted()})
	}
	return v
}

func newPlanCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the engine initialization sequence without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != "text" && output != "yaml" {
				return fmt.Errorf("unsupported output format %q (want text or yaml)", output)
			}
			cfg, logger, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			view, err := buildPlanView(cfg, logger)
			if err != nil {
				return err
			}
			if output == "yaml" {
				return renderPlanYAML(cmd.OutOrStdout(), view)
			}
			return renderPlanText(cmd.OutOrStdout(), view)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or yaml")
	return cmd
}

func buildPlanView(cfg *config.Config, logger *slog.Logger) (planView, error) {
	plan, err := engine.Resolve(cfg)
	if err != nil {
		return planView{}, err
	}
	opts, err := app.SessionOptions(cfg, logger)
	if err != nil {
		return planView{}, err
	}
	steps, err := engine.Sequence(plan, opts)
	if err != nil {
		return planView{}, err
	}
	return newPlanView(plan, steps), nil
}

func renderPlanYAML(w io.Writer, v planView) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	return enc.Close()
}

func renderPlanText(w io.Writer, v planView) error {
	var b strings.Builder
	fmt.Fprintf(&b, "backend:          %s\n", v.Backend)
	if v.DefaultCatalog != "" {
		fmt.Fprintf(&b, "default catalog:  %s\n", v.DefaultCatalog)
	}
	if v.DuckLakeStorage != "" {
		fmt.Fprintf(&b, "ducklake storage: %s (%s)\n", v.DuckLakeStorage, v.DuckLakeDataPath)
	}
	fs := "enabled"
	if v.LocalFilesystemDisabled {
		fs = "disabled"
	}
	fmt.Fprintf(&b, "local filesystem: %s\n", fs)
	b.WriteString("steps:\n")
	for i, s := range v.Steps {
		fmt.Fprintf(&b, "%3d. [%s] %s\n", i+1, s.Kind, s.Description)
		if s.SQL != "" {
			fmt.Fprintf(&b, "     %s\n", s.SQL)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
