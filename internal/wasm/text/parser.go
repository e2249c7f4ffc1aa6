package text

import "github.com/pkg/errors"

// parser walks a pre-tokenized stream with simple lookahead: a
// recursive-descent parser composed over a flat token buffer instead of a
// pull-based lexer, advancing a shared cursor rather than returning a
// consumed-token count from every call.
type parser struct {
	toks []*token
	pos  int
}

func newParser(src []byte) (*parser, error) {
	tz := newTokenizer(src)
	var toks []*token
	for {
		tok, err := tz.next()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			break
		}
		toks = append(toks, tok)
	}
	return &parser{toks: toks}, nil
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() *token {
	if p.done() {
		return nil
	}
	return p.toks[p.pos]
}

func (p *parser) peekAt(offset int) *token {
	i := p.pos + offset
	if i < 0 || i >= len(p.toks) {
		return nil
	}
	return p.toks[i]
}

func (p *parser) advance() *token {
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *parser) errAt(t *token, format string, args ...interface{}) error {
	line, col := 1, 1
	if t != nil {
		line, col = t.line, t.col
	} else if len(p.toks) > 0 {
		last := p.toks[len(p.toks)-1]
		line, col = last.line, last.col
	}
	return &DecodeError{Line: line, Col: col, Msg: errors.Errorf(format, args...).Error()}
}

func (p *parser) expectLParen() error {
	t := p.peek()
	if t == nil || t.typ != tokenLParen {
		return p.unexpected(t, "'('")
	}
	p.advance()
	return nil
}

func (p *parser) expectRParen() error {
	t := p.peek()
	if t == nil || t.typ != tokenRParen {
		return p.unexpected(t, "')'")
	}
	p.advance()
	return nil
}

func (p *parser) atRParen() bool {
	t := p.peek()
	return t != nil && t.typ == tokenRParen
}

func (p *parser) atLParen() bool {
	t := p.peek()
	return t != nil && t.typ == tokenLParen
}

// atKeyword reports whether the next token is exactly the keyword kw,
// without consuming it.
func (p *parser) atKeyword(kw string) bool {
	t := p.peek()
	return t != nil && t.typ == tokenKeyword && t.value == kw
}

func (p *parser) expectKeyword(kw string) error {
	t := p.peek()
	if t == nil || t.typ != tokenKeyword || t.value != kw {
		return p.unexpected(t, "keyword: "+kw)
	}
	p.advance()
	return nil
}

// optID consumes a leading $identifier if present, returning ("", false)
// otherwise.
func (p *parser) optID() (string, bool) {
	t := p.peek()
	if t != nil && t.typ == tokenID {
		p.advance()
		return t.value, true
	}
	return "", false
}

func (p *parser) unexpected(t *token, want string) error {
	if t == nil {
		return p.errAt(nil, "expected %s, but reached end of input", want)
	}
	switch t.typ {
	case tokenKeyword, tokenUN, tokenSN, tokenFN, tokenReserved:
		return p.errAt(t, "expected %s, but found %s: %s", want, t.typ, t.value)
	case tokenString:
		return p.errAt(t, "expected %s, but found string: %q", want, t.value)
	case tokenID:
		return p.errAt(t, "expected %s, but found id: %s", want, t.value)
	default:
		return p.errAt(t, "expected %s, but found %s", want, t.typ)
	}
}

// skipToMatchingRParen consumes tokens (including nested parens) up to and
// including the RParen that balances the LParen already consumed by the
// caller. Used to skip grammar the decoder doesn't need semantically.
func (p *parser) skipToMatchingRParen() error {
	return p.skipBalanced(1)
}

// skipBalanced consumes tokens up to and including the RParen that brings an
// already-open paren depth back to zero. Used where the caller has consumed
// more than one unmatched "(" before deciding to skip (e.g. having already
// descended into an inline import clause).
func (p *parser) skipBalanced(depth int) error {
	for depth > 0 {
		t := p.peek()
		if t == nil {
			return p.errAt(nil, "unbalanced parens")
		}
		switch t.typ {
		case tokenLParen:
			depth++
		case tokenRParen:
			depth--
		}
		p.advance()
	}
	return nil
}
