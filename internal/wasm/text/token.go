// Package text implements the WebAssembly 1.0 text format (S-expression)
// decoder. DecodeText tokenizes then recursive-descent parses source into
// the same wasm.Module AST the binary decoder produces.
package text

import (
	"strconv"

	"github.com/pkg/errors"
)

// tokenType classifies one lexeme of the S-expression syntax: parens,
// keywords, identifiers, and the numeric/string literal forms.
type tokenType int

const (
	tokenKeyword tokenType = iota
	tokenUN
	tokenSN
	tokenFN
	tokenString
	tokenID
	tokenLParen
	tokenRParen
	tokenReserved
)

func (t tokenType) String() string {
	switch t {
	case tokenKeyword:
		return "keyword"
	case tokenUN:
		return "uN"
	case tokenSN:
		return "sN"
	case tokenFN:
		return "fN"
	case tokenString:
		return "string"
	case tokenID:
		return "id"
	case tokenLParen:
		return "("
	case tokenRParen:
		return ")"
	case tokenReserved:
		return "reserved"
	default:
		return "unknown"
	}
}

type token struct {
	typ        tokenType
	value      string // raw text, unescaped for tokenString
	line, col  int
}

// idChar is the identifier character class:
// [0-9A-Za-z!#$%&'*+\-./:<=>?@\^_`|~].
func idChar(b byte) bool {
	switch {
	case b >= '0' && b <= '9', b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z':
		return true
	}
	switch b {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '/', ':', '<', '=',
		'>', '?', '@', '\\', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// tokenizer splits WebAssembly text format source into tokens, tracking
// line/column for error reporting.
type tokenizer struct {
	src        []byte
	pos        int
	line, col  int
}

func newTokenizer(src []byte) *tokenizer {
	return &tokenizer{src: src, line: 1, col: 1}
}

func (tz *tokenizer) peekByte() (byte, bool) {
	if tz.pos >= len(tz.src) {
		return 0, false
	}
	return tz.src[tz.pos], true
}

func (tz *tokenizer) advance() byte {
	b := tz.src[tz.pos]
	tz.pos++
	if b == '\n' {
		tz.line++
		tz.col = 1
	} else {
		tz.col++
	}
	return b
}

// skipWhitespaceAndComments consumes spaces, line comments (";; ..."), and
// nested block comments ("(; ... ;)"), which are treated as whitespace.
func (tz *tokenizer) skipWhitespaceAndComments() error {
	for {
		b, ok := tz.peekByte()
		if !ok {
			return nil
		}
		switch {
		case b == ' ' || b == '\t' || b == '\r' || b == '\n':
			tz.advance()
		case b == ';' && tz.pos+1 < len(tz.src) && tz.src[tz.pos+1] == ';':
			for {
				b, ok := tz.peekByte()
				if !ok || b == '\n' {
					break
				}
				tz.advance()
			}
		case b == '(' && tz.pos+1 < len(tz.src) && tz.src[tz.pos+1] == ';':
			startLine, startCol := tz.line, tz.col
			tz.advance()
			tz.advance()
			depth := 1
			for depth > 0 {
				b, ok := tz.peekByte()
				if !ok {
					return tz.errf(startLine, startCol, "unterminated block comment")
				}
				if b == '(' && tz.pos+1 < len(tz.src) && tz.src[tz.pos+1] == ';' {
					tz.advance()
					tz.advance()
					depth++
					continue
				}
				if b == ';' && tz.pos+1 < len(tz.src) && tz.src[tz.pos+1] == ')' {
					tz.advance()
					tz.advance()
					depth--
					continue
				}
				tz.advance()
			}
		default:
			return nil
		}
	}
}

func (tz *tokenizer) errf(line, col int, format string, args ...interface{}) error {
	return &DecodeError{Line: line, Col: col, Msg: errors.Errorf(format, args...).Error()}
}

// next returns the next token, or (nil, nil) at end of input.
func (tz *tokenizer) next() (*token, error) {
	if err := tz.skipWhitespaceAndComments(); err != nil {
		return nil, err
	}
	b, ok := tz.peekByte()
	if !ok {
		return nil, nil
	}
	line, col := tz.line, tz.col

	switch b {
	case '(':
		tz.advance()
		return &token{typ: tokenLParen, value: "(", line: line, col: col}, nil
	case ')':
		tz.advance()
		return &token{typ: tokenRParen, value: ")", line: line, col: col}, nil
	case '"':
		return tz.lexString(line, col)
	case '$':
		start := tz.pos
		tz.advance()
		for {
			b, ok := tz.peekByte()
			if !ok || !idChar(b) {
				break
			}
			tz.advance()
		}
		return &token{typ: tokenID, value: string(tz.src[start:tz.pos]), line: line, col: col}, nil
	}

	start := tz.pos
	for {
		b, ok := tz.peekByte()
		if !ok || !idChar(b) {
			break
		}
		tz.advance()
	}
	if tz.pos == start {
		return nil, tz.errf(line, col, "unexpected character %q", b)
	}
	text := string(tz.src[start:tz.pos])
	return &token{typ: classifyWord(text), value: text, line: line, col: col}, nil
}

// classifyWord distinguishes keyword/uN/sN/fN/reserved for a non-id,
// non-string, non-paren word.
func classifyWord(s string) tokenType {
	if s == "" {
		return tokenReserved
	}
	first := s[0]
	if first == '+' || first == '-' || isDigit(first) {
		if isNumberLiteral(s) {
			if first == '-' {
				return tokenSN
			}
			if first == '+' {
				return tokenSN
			}
			return tokenUN
		}
		return tokenReserved
	}
	if first >= 'a' && first <= 'z' {
		return tokenKeyword
	}
	return tokenReserved
}

// isNumberLiteral is a permissive recognizer for the forms the parser's
// numeric-literal conversion helpers accept: decimal/hex integers with `_`
// separators, decimal/hex floats, and the special float keywords "inf",
// "nan", "nan:0x...".
func isNumberLiteral(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	rest := s[i:]
	if rest == "" {
		return false
	}
	if rest == "inf" {
		return true
	}
	if rest == "nan" {
		return true
	}
	if len(rest) > 4 && rest[:4] == "nan:" {
		return true
	}
	for j := 0; j < len(rest); j++ {
		c := rest[j]
		if isDigit(c) || c == '_' || c == '.' || c == 'x' || c == 'X' ||
			(c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') ||
			c == 'p' || c == 'P' || c == 'e' || c == 'E' || c == '+' || c == '-' {
			continue
		}
		return false
	}
	return true
}

func (tz *tokenizer) lexString(line, col int) (*token, error) {
	tz.advance() // opening quote
	var out []byte
	for {
		b, ok := tz.peekByte()
		if !ok {
			return nil, tz.errf(line, col, "unterminated string")
		}
		if b == '"' {
			tz.advance()
			return &token{typ: tokenString, value: string(out), line: line, col: col}, nil
		}
		if b == '\\' {
			tz.advance()
			esc, ok := tz.peekByte()
			if !ok {
				return nil, tz.errf(line, col, "unterminated string escape")
			}
			switch esc {
			case 'n':
				out = append(out, '\n')
				tz.advance()
			case 't':
				out = append(out, '\t')
				tz.advance()
			case '\\':
				out = append(out, '\\')
				tz.advance()
			case '\'':
				out = append(out, '\'')
				tz.advance()
			case '"':
				out = append(out, '"')
				tz.advance()
			default:
				if isHexDigit(esc) {
					start := tz.pos
					tz.advance()
					if b2, ok := tz.peekByte(); ok && isHexDigit(b2) {
						tz.advance()
					}
					v, err := strconv.ParseUint(string(tz.src[start:tz.pos]), 16, 8)
					if err != nil {
						return nil, tz.errf(line, col, "invalid hex escape")
					}
					out = append(out, byte(v))
				} else {
					return nil, tz.errf(line, col, "invalid escape \\%c", esc)
				}
			}
			continue
		}
		out = append(out, b)
		tz.advance()
	}
}

func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
