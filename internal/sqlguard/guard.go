// Package sqlguard inspects externally supplied SQL before it reaches the
// engine. Statements are classified by their leading keyword through an
// explicit rule table; file-reading forms are checked against the local
// filesystem policy of the attached backends.
package sqlguard

import (
	"duck-gateway/internal/domain"
	"duck-gateway/internal/sqllex"
)

// Policy carries the session facts the guard decides on.
type Policy struct {
	// LocalFilesystemDisabled rejects any statement that names a local path.
	LocalFilesystemDisabled bool
}

// Guard filters query text according to a Policy.
type Guard struct {
	policy Policy
}

// New creates a Guard for the given policy.
func New(p Policy) *Guard {
	return &Guard{policy: p}
}

// Filter returns text unchanged when it is allowed. With enabled false the
// text is trusted and passed through without inspection; that path is for the
// gateway's own initialization statements only.
//
// Rejections are *domain.QueryRejectedError; malformed or empty input is a
// *domain.ValidationError.
func (g *Guard) Filter(text string, enabled bool) (string, error) {
	if !enabled {
		return text, nil
	}
	toks, err := sqllex.Tokenize(text)
	if err != nil {
		return "", domain.ErrValidation("malformed query: %v", err)
	}
	stmts := splitStatements(toks)
	if len(stmts) == 0 {
		return "", domain.ErrValidation("query is empty")
	}
	for _, s := range stmts {
		if err := g.check(s); err != nil {
			return "", err
		}
	}
	return text, nil
}

// statement is one top-level statement's tokens, without the terminating
// semicolon.
type statement []sqllex.Token

func (s statement) keyword(i int) string {
	if i >= len(s) || s[i].Kind != sqllex.Ident || s[i].Quoted {
		return ""
	}
	return s[i].Upper()
}

func splitStatements(toks []sqllex.Token) []statement {
	var out []statement
	depth, start := 0, 0
	for i, t := range toks {
		switch {
		case t.IsPunct("("), t.IsPunct("["):
			depth++
		case t.IsPunct(")"), t.IsPunct("]"):
			if depth > 0 {
				depth--
			}
		case t.IsPunct(";") && depth == 0:
			if i > start {
				out = append(out, statement(toks[start:i]))
			}
			start = i + 1
		}
	}
	if start < len(toks) {
		out = append(out, statement(toks[start:]))
	}
	return out
}

func (g *Guard) check(s statement) error {
	if rule, ok := statementRules[s.keyword(0)]; ok {
		if err := rule(g, s); err != nil {
			return err
		}
	}
	return g.checkFileAccess(s)
}
