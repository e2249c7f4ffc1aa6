package text

import "github.com/wasmcore/wasmcore/internal/wasm"

// parseParamsAndResults consumes a run of "(param ...)" clauses followed by
// a run of "(result ...)" clauses, the shared grammar used by top-level
// type definitions and a function's inline type-use.
func parseParamsAndResults(p *parser) (params []wasm.ValueType, paramNames []string, results []wasm.ValueType, err error) {
	for p.atLParen() && p.peekAt(1) != nil && p.peekAt(1).typ == tokenKeyword && p.peekAt(1).value == "param" {
		p.advance() // (
		p.advance() // param
		if id, ok := p.optID(); ok {
			vt, err := parseOneValueType(p)
			if err != nil {
				return nil, nil, nil, err
			}
			params = append(params, vt)
			paramNames = append(paramNames, id)
			if err := p.expectRParen(); err != nil {
				return nil, nil, nil, err
			}
			continue
		}
		for !p.atRParen() {
			vt, err := parseOneValueType(p)
			if err != nil {
				return nil, nil, nil, err
			}
			params = append(params, vt)
			paramNames = append(paramNames, "")
		}
		if err := p.expectRParen(); err != nil {
			return nil, nil, nil, err
		}
	}
	for p.atLParen() && p.peekAt(1) != nil && p.peekAt(1).typ == tokenKeyword && p.peekAt(1).value == "result" {
		p.advance() // (
		p.advance() // result
		for !p.atRParen() {
			vt, err := parseOneValueType(p)
			if err != nil {
				return nil, nil, nil, err
			}
			results = append(results, vt)
		}
		if err := p.expectRParen(); err != nil {
			return nil, nil, nil, err
		}
	}
	return params, paramNames, results, nil
}

func parseOneValueType(p *parser) (wasm.ValueType, error) {
	t := p.peek()
	if t == nil || t.typ != tokenKeyword {
		return 0, p.unexpected(t, "value type")
	}
	vt, err := parseValueType([]byte(t.value))
	if err != nil {
		return 0, p.errAt(t, "%s", err.Error())
	}
	p.advance()
	return vt, nil
}

// resolvedTypeUse is a function signature plus, when an explicit
// "(type ...)" clause was present, the type index it names.
type resolvedTypeUse struct {
	typeIdx    *uint32
	params     []wasm.ValueType
	paramNames []string
	results    []wasm.ValueType
}

// parseTypeUse parses an optional explicit "(type ...)" followed by an
// inline param/result signature (present when no explicit type is given, or
// when params are named).
func parseTypeUse(p *parser, resolve func(idOrIdx *token) (uint32, error)) (resolvedTypeUse, error) {
	var out resolvedTypeUse
	if p.atLParen() && p.peekAt(1) != nil && p.peekAt(1).typ == tokenKeyword && p.peekAt(1).value == "type" {
		p.advance() // (
		p.advance() // type
		t := p.peek()
		if t == nil {
			return out, p.unexpected(t, "type index or id")
		}
		idx, err := resolve(t)
		if err != nil {
			return out, err
		}
		p.advance()
		out.typeIdx = &idx
		if err := p.expectRParen(); err != nil {
			return out, err
		}
	}
	params, names, results, err := parseParamsAndResults(p)
	if err != nil {
		return out, err
	}
	out.params, out.paramNames, out.results = params, names, results
	return out, nil
}
