// Package sqllex tokenizes DuckDB SQL text with byte offsets so callers can
// classify statements and rewrite single tokens without a full parse.
package sqllex

import "fmt"

// Kind identifies the lexical class of a token.
type Kind int

// Token kinds. Keywords are reported as Ident; callers compare Upper().
const (
	EOF Kind = iota
	Ident
	String
	Number
	Param
	Punct
)

var kindNames = map[Kind]string{
	EOF:    "EOF",
	Ident:  "IDENT",
	String: "STRING",
	Number: "NUMBER",
	Param:  "PARAM",
	Punct:  "PUNCT",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is a lexical token. Text holds the decoded value: quotes are removed
// and doubled quotes collapsed for String and quoted Ident tokens. Pos and End
// are byte offsets of the raw token in the input, End exclusive.
type Token struct {
	Kind   Kind
	Text   string
	Pos    int
	End    int
	Quoted bool // Ident written as "name"
}

// IsKeyword reports whether the token is the unquoted identifier kw,
// compared case-insensitively. kw must be upper case.
func (t Token) IsKeyword(kw string) bool {
	return t.Kind == Ident && !t.Quoted && upper(t.Text) == kw
}

// IsPunct reports whether the token is the punctuation p.
func (t Token) IsPunct(p string) bool {
	return t.Kind == Punct && t.Text == p
}

// Upper returns the token text in upper case for unquoted identifiers and
// the text unchanged otherwise.
func (t Token) Upper() string {
	if t.Kind == Ident && !t.Quoted {
		return upper(t.Text)
	}
	return t.Text
}

// SyntaxError reports input the tokenizer cannot consume.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Msg, e.Pos)
}

func upper(s string) string {
	b := []byte(s)
	changed := false
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(b)
}
