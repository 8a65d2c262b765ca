package sqllex

import "strings"

// Lexer tokenizes SQL input. Comments and whitespace are skipped.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// Tokenize returns every token of input, excluding the trailing EOF.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == EOF {
			return toks, nil
		}
		toks = append(toks, tok)
	}
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// twoCharPunct lists operators that lex as one token.
var twoCharPunct = map[string]bool{
	"::": true, ":=": true, "->": true, "<=": true, ">=": true, "<>": true,
	"!=": true, "==": true, "||": true, "<<": true, ">>": true, "//": true,
	"**": true,
}

// Next returns the next token, or a *SyntaxError for unterminated strings,
// quoted identifiers and block comments.
func (l *Lexer) Next() (Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return Token{}, err
	}
	start := l.pos
	if l.atEOF() {
		return Token{Kind: EOF, Pos: start, End: start}, nil
	}

	switch {
	case l.ch == '\'':
		text, err := l.readQuoted(start, '\'', false)
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: String, Text: text, Pos: start, End: l.pos}, nil
	case l.ch == '"':
		text, err := l.readQuoted(start, '"', false)
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: Ident, Text: text, Pos: start, End: l.pos, Quoted: true}, nil
	case (l.ch == 'e' || l.ch == 'E') && l.peekChar() == '\'':
		l.readChar()
		text, err := l.readQuoted(start, '\'', true)
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: String, Text: text, Pos: start, End: l.pos}, nil
	case l.ch == '$':
		return l.readDollar()
	case l.ch == '?':
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
		return Token{Kind: Param, Text: l.input[start:l.pos], Pos: start, End: l.pos}, nil
	case isIdentStart(l.ch):
		for isIdentPart(l.ch) {
			l.readChar()
		}
		return Token{Kind: Ident, Text: l.input[start:l.pos], Pos: start, End: l.pos}, nil
	case isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())):
		l.readNumber()
		return Token{Kind: Number, Text: l.input[start:l.pos], Pos: start, End: l.pos}, nil
	}

	if twoCharPunct[l.input[start:min(start+2, len(l.input))]] {
		l.readChar()
	}
	l.readChar()
	return Token{Kind: Punct, Text: l.input[start:l.pos], Pos: start, End: l.pos}, nil
}

func (l *Lexer) skipWhitespaceAndComments() error {
	for {
		for isSpace(l.ch) && !l.atEOF() {
			l.readChar()
		}
		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			start := l.pos
			l.readChar()
			l.readChar()
			for {
				if l.atEOF() {
					return &SyntaxError{Pos: start, Msg: "unterminated block comment"}
				}
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					break
				}
				l.readChar()
			}
			continue
		}
		return nil
	}
}

// readQuoted reads a literal delimited by q where a doubled q stands for one
// q. With backslash set, a backslash escapes the following character. start
// is the offset reported on error.
func (l *Lexer) readQuoted(start int, q byte, backslash bool) (string, error) {
	l.readChar() // opening quote
	var b strings.Builder
	for {
		if l.atEOF() {
			if q == '"' {
				return "", &SyntaxError{Pos: start, Msg: "unterminated quoted identifier"}
			}
			return "", &SyntaxError{Pos: start, Msg: "unterminated string literal"}
		}
		switch {
		case backslash && l.ch == '\\' && l.readPos < len(l.input):
			l.readChar()
			b.WriteByte(unescape(l.ch))
			l.readChar()
		case l.ch == q && l.peekChar() == q:
			b.WriteByte(q)
			l.readChar()
			l.readChar()
		case l.ch == q:
			l.readChar()
			return b.String(), nil
		default:
			b.WriteByte(l.ch)
			l.readChar()
		}
	}
}

// readDollar reads $$...$$ and $tag$...$tag$ strings and $1 / $name parameters.
func (l *Lexer) readDollar() (Token, error) {
	start := l.pos
	l.readChar() // $
	tagStart := l.pos
	for isIdentPart(l.ch) && !l.atEOF() {
		l.readChar()
	}
	tag := l.input[tagStart:l.pos]
	if l.ch != '$' || (tag != "" && isDigit(tag[0])) {
		if tag == "" {
			return Token{Kind: Punct, Text: "$", Pos: start, End: l.pos}, nil
		}
		return Token{Kind: Param, Text: l.input[start:l.pos], Pos: start, End: l.pos}, nil
	}
	l.readChar() // closing $ of the opening delimiter
	delim := "$" + tag + "$"
	bodyStart := l.pos
	idx := strings.Index(l.input[bodyStart:], delim)
	if idx < 0 {
		return Token{}, &SyntaxError{Pos: start, Msg: "unterminated dollar-quoted string"}
	}
	end := bodyStart + idx + len(delim)
	l.readPos = end
	l.readChar()
	return Token{Kind: String, Text: l.input[bodyStart : bodyStart+idx], Pos: start, End: end}, nil
}

func (l *Lexer) readNumber() {
	for isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return c
	}
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v'
}

// isIdentStart accepts ASCII letters, underscore and any non-ASCII byte so
// UTF-8 identifiers lex as one token.
func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch >= 0x80
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
