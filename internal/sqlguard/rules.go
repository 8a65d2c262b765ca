package sqlguard

import (
	"strings"

	"duck-gateway/internal/domain"
	"duck-gateway/internal/sqllex"
)

// statementRules maps a statement's leading keyword to its check. Keywords
// not listed are allowed, subject to the file access check every statement
// goes through.
var statementRules = map[string]func(*Guard, statement) error{
	"SET":     denyConfiguration,
	"RESET":   denyConfiguration,
	"INSTALL": denyExtensions,
	"LOAD":    denyExtensions,
	"FORCE":   denyExtensions,
	"UPDATE":  checkUpdate,
	"ATTACH":  denyCatalogChange,
	"DETACH":  denyCatalogChange,
	"USE":     denyUse,
	"PRAGMA":  checkPragma,
	"CREATE":  checkCreate,
	"DROP":    checkDrop,
	"COPY":    checkCopy,
	"EXPORT":  checkDatabasePath,
	"IMPORT":  checkDatabasePath,
}

// readOnlyPragmas are the PRAGMA forms that only report engine state.
var readOnlyPragmas = map[string]bool{
	"table_info":           true,
	"show_tables":          true,
	"show_tables_expanded": true,
	"database_list":        true,
	"database_size":        true,
	"storage_info":         true,
	"version":              true,
	"show":                 true,
	"functions":            true,
	"platform":             true,
	"metadata_info":        true,
}

// fileFunctions are table functions that read paths given as their first
// argument. fileFunctionPrefixes covers their families.
var fileFunctions = map[string]bool{
	"read_parquet": true,
	"read_text":    true,
	"read_blob":    true,
	"glob":         true,
	"sniff_csv":    true,
	"delta_scan":   true,
	"read_xlsx":    true,
	"sqlite_scan":  true,
	"st_read":      true,
}

var fileFunctionPrefixes = []string{
	"read_csv",
	"read_json",
	"read_ndjson",
	"parquet_",
	"iceberg_",
}

var remotePrefixes = []string{
	"s3://", "s3a://", "s3n://", "r2://", "gs://", "gcs://",
	"az://", "azure://", "abfss://", "http://", "https://", "hf://",
}

// clauseKeywords open a clause. The current clause at each nesting depth
// decides whether a string after a comma is a FROM item.
var clauseKeywords = map[string]bool{
	"SELECT": true, "FROM": true, "JOIN": true, "WHERE": true, "GROUP": true,
	"HAVING": true, "ORDER": true, "LIMIT": true, "OFFSET": true, "QUALIFY": true,
	"WINDOW": true, "ON": true, "USING": true, "VALUES": true, "SET": true,
	"RETURNING": true, "UNION": true, "EXCEPT": true, "INTERSECT": true,
	"INTO": true, "TO": true, "PIVOT": true, "UNPIVOT": true,
}

// scanKeywords are keywords after which a string literal is read as a file.
var scanKeywords = map[string]bool{
	"FROM": true, "JOIN": true, "DESCRIBE": true, "SUMMARIZE": true, "SHOW": true,
}

func denyConfiguration(_ *Guard, s statement) error {
	return domain.ErrQueryRejected("%s statements are not allowed: engine configuration is locked", s.keyword(0))
}

func denyExtensions(_ *Guard, _ statement) error {
	return domain.ErrQueryRejected("extension management is not allowed")
}

func denyCatalogChange(_ *Guard, s statement) error {
	return domain.ErrQueryRejected("%s statements are not allowed: catalogs are managed by the gateway", s.keyword(0))
}

func denyUse(_ *Guard, _ statement) error {
	return domain.ErrQueryRejected("USE statements are not allowed: the engine session is shared")
}

func checkUpdate(_ *Guard, s statement) error {
	if s.keyword(1) == "EXTENSIONS" {
		return domain.ErrQueryRejected("extension management is not allowed")
	}
	return nil
}

func checkPragma(_ *Guard, s statement) error {
	if len(s) > 1 && s[1].Kind == sqllex.Ident && readOnlyPragmas[strings.ToLower(s[1].Text)] {
		return nil
	}
	name := ""
	if len(s) > 1 {
		name = " " + s[1].Text
	}
	return domain.ErrQueryRejected("PRAGMA%s is not allowed", name)
}

// secretTarget reports whether the object kind after CREATE or DROP
// modifiers is SECRET.
func secretTarget(s statement) bool {
	for i := 1; i < len(s); i++ {
		switch s.keyword(i) {
		case "OR", "REPLACE", "PERSISTENT", "TEMP", "TEMPORARY":
			continue
		case "SECRET":
			return true
		default:
			return false
		}
	}
	return false
}

func checkCreate(_ *Guard, s statement) error {
	if secretTarget(s) {
		return domain.ErrQueryRejected("CREATE SECRET is not allowed: secrets are managed by the gateway")
	}
	return nil
}

func checkDrop(_ *Guard, s statement) error {
	if secretTarget(s) {
		return domain.ErrQueryRejected("DROP SECRET is not allowed: secrets are managed by the gateway")
	}
	return nil
}

// checkCopy inspects the COPY ... TO target. COPY ... FROM sources are
// covered by the scan check.
func checkCopy(g *Guard, s statement) error {
	depth := 0
	for i, t := range s {
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case depth == 0 && t.IsKeyword("TO") && i+1 < len(s) && s[i+1].Kind == sqllex.String:
			return g.checkPath(s[i+1].Text)
		}
	}
	return nil
}

func checkDatabasePath(g *Guard, s statement) error {
	if s.keyword(1) != "DATABASE" {
		return nil
	}
	for _, t := range s[2:] {
		if t.Kind == sqllex.String {
			return g.checkPath(t.Text)
		}
	}
	return nil
}

// sqlTextFunctions evaluate their argument as SQL or as a table name, so
// what they read cannot be decided from the query text.
var sqlTextFunctions = map[string]bool{
	"query":       true,
	"query_table": true,
}

// checkFileAccess walks every token of s looking for file-reading table
// functions and replacement scans on string literals or quoted names.
func (g *Guard) checkFileAccess(s statement) error {
	if !g.policy.LocalFilesystemDisabled {
		return nil
	}
	clause := []string{""}
	for i, t := range s {
		switch {
		case t.IsPunct("("), t.IsPunct("["):
			clause = append(clause, "")
		case t.IsPunct(")"), t.IsPunct("]"):
			if len(clause) > 1 {
				clause = clause[:len(clause)-1]
			}
		case t.Kind == sqllex.Ident && t.Quoted:
			if pathLike(t.Text) && inScanPosition(s, i, clause[len(clause)-1]) {
				if err := g.checkPath(t.Text); err != nil {
					return err
				}
			}
		case t.Kind == sqllex.Ident:
			if kw := s.keyword(i); clauseKeywords[kw] {
				clause[len(clause)-1] = kw
			}
			if i+1 < len(s) && s[i+1].IsPunct("(") {
				if sqlTextFunctions[strings.ToLower(t.Text)] {
					return domain.ErrQueryRejected("%s is not allowed while local file access is disabled", t.Text)
				}
				if isFileFunction(t.Text) {
					if err := g.checkFunctionArgs(t.Text, s[i+2:]); err != nil {
						return err
					}
				}
			}
		case t.Kind == sqllex.String:
			if inScanPosition(s, i, clause[len(clause)-1]) {
				if err := g.checkPath(t.Text); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// inScanPosition reports whether s[i] names a FROM item: it follows a scan
// keyword, or a comma inside a FROM or JOIN clause. The qualifiers of a
// dotted name are skipped first.
func inScanPosition(s statement, i int, clause string) bool {
	for i >= 2 && s[i-1].IsPunct(".") && s[i-2].Kind == sqllex.Ident {
		i -= 2
	}
	if i == 0 {
		return false
	}
	if scanKeywords[s.keyword(i-1)] {
		return true
	}
	return s[i-1].IsPunct(",") && (clause == "FROM" || clause == "JOIN")
}

// pathLike reports whether a quoted name could be taken for a file by a
// replacement scan.
func pathLike(name string) bool {
	return strings.ContainsAny(name, "./\\:")
}

// checkFunctionArgs checks the first argument of a file function: a string
// literal or a list of string literals. Anything else cannot be verified.
func (g *Guard) checkFunctionArgs(fn string, args []sqllex.Token) error {
	if len(args) == 0 {
		return nil
	}
	switch {
	case args[0].Kind == sqllex.String:
		return g.checkPath(args[0].Text)
	case args[0].IsPunct(")"):
		return nil
	case args[0].IsPunct("["):
		for _, t := range args[1:] {
			switch {
			case t.IsPunct("]"):
				return nil
			case t.Kind == sqllex.String:
				if err := g.checkPath(t.Text); err != nil {
					return err
				}
			case t.IsPunct(","):
			default:
				return domain.ErrQueryRejected("%s requires literal paths while local file access is disabled", fn)
			}
		}
		return nil
	default:
		return domain.ErrQueryRejected("%s requires literal paths while local file access is disabled", fn)
	}
}

func (g *Guard) checkPath(p string) error {
	if !g.policy.LocalFilesystemDisabled || IsRemotePath(p) {
		return nil
	}
	return domain.ErrQueryRejected("local file access is disabled: %s", p)
}

// IsRemotePath reports whether p names an object store or HTTP location.
// Everything else, file:// URLs included, is local.
func IsRemotePath(p string) bool {
	lower := strings.ToLower(strings.TrimSpace(p))
	for _, prefix := range remotePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func isFileFunction(name string) bool {
	lower := strings.ToLower(name)
	if fileFunctions[lower] {
		return true
	}
	for _, prefix := range fileFunctionPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
