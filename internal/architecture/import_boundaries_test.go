package architecture_test

import (
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const modulePath = "duck-gateway"

type layerRule struct {
	sourcePrefix string
	forbidden    []string
	hint         string
}

func internal(pkg string) string { return modulePath + "/internal/" + pkg }

var rules = []layerRule{
	{
		sourcePrefix: internal("domain"),
		forbidden:    []string{modulePath + "/"},
		hint:         "domain imports nothing from the module",
	},
	{
		sourcePrefix: internal("sqllex"),
		forbidden:    []string{modulePath + "/"},
		hint:         "the tokenizer is a leaf package",
	},
	{
		sourcePrefix: internal("ddl"),
		forbidden:    []string{modulePath + "/"},
		hint:         "the DDL builder is a leaf package",
	},
	{
		sourcePrefix: internal("config"),
		forbidden:    []string{modulePath + "/"},
		hint:         "config imports nothing from the module",
	},
	{
		sourcePrefix: internal("sqlguard"),
		forbidden:    []string{internal("engine"), internal("api"), internal("middleware"), internal("app"), internal("config"), modulePath + "/cmd"},
		hint:         "sqlguard depends on domain and sqllex",
	},
	{
		sourcePrefix: internal("engine"),
		forbidden:    []string{internal("api"), internal("middleware"), internal("app"), internal("preflight"), modulePath + "/cmd"},
		hint:         "engine receives preflight checks as a function; it never imports transport or wiring",
	},
	{
		sourcePrefix: internal("preflight"),
		forbidden:    []string{internal("engine"), internal("api"), internal("middleware"), internal("app"), modulePath + "/cmd"},
		hint:         "preflight depends on config and ddl",
	},
	{
		sourcePrefix: internal("middleware"),
		forbidden:    []string{modulePath + "/"},
		hint:         "middleware is independent of the gateway's domain",
	},
	{
		sourcePrefix: internal("api"),
		forbidden:    []string{internal("app"), internal("preflight"), internal("config"), internal("sqlguard"), modulePath + "/cmd"},
		hint:         "api talks to the engine session only",
	},
	{
		sourcePrefix: internal("app"),
		forbidden:    []string{modulePath + "/cmd"},
		hint:         "app is wired by cmd, not the reverse",
	},
}

func TestImportBoundaries(t *testing.T) {
	root := repoRootDir()
	fset := token.NewFileSet()
	violations := make([]string, 0)

	err := filepath.WalkDir(filepath.Join(root, "internal"), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		sourcePkg := modulePath + "/" + filepath.ToSlash(filepath.Dir(rel))
		rule, ok := findRule(sourcePkg)
		if !ok {
			return nil
		}

		parsed, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, imp := range parsed.Imports {
			importPath := strings.Trim(imp.Path.Value, `"`)
			if violatesRule(importPath, rule.forbidden) {
				violations = append(violations, sourcePkg+" imports "+importPath+" via "+rel+"; "+rule.hint)
			}
		}
		return nil
	})
	require.NoError(t, err)

	if len(violations) > 0 {
		sort.Strings(violations)
		t.Fatalf("%s", strings.Join(violations, "\n"))
	}
}

func TestEveryInternalPackageHasARule(t *testing.T) {
	entries, err := filepath.Glob(filepath.Join(repoRootDir(), "internal", "*"))
	require.NoError(t, err)

	for _, dir := range entries {
		name := filepath.Base(dir)
		if name == "architecture" {
			continue
		}
		_, ok := findRule(internal(name))
		require.Truef(t, ok, "internal/%s has no import boundary rule", name)
	}
}

func repoRootDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

func findRule(sourcePkg string) (layerRule, bool) {
	for _, r := range rules {
		if hasPathPrefix(sourcePkg, r.sourcePrefix) {
			return r, true
		}
	}
	return layerRule{}, false
}

func violatesRule(importPath string, forbidden []string) bool {
	for _, prefix := range forbidden {
		if strings.HasSuffix(prefix, "/") {
			if strings.HasPrefix(importPath, prefix) {
				return true
			}
			continue
		}
		if hasPathPrefix(importPath, prefix) {
			return true
		}
	}
	return false
}

func hasPathPrefix(value, prefix string) bool {
	return value == prefix || strings.HasPrefix(value, prefix+"/")
}
