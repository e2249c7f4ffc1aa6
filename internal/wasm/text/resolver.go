package text

import "github.com/pkg/errors"

// identResolver maps an index space's optional "$name" identifiers back to
// their numeric index, the text format's core indirection. Populated during
// the module parser's first pass, consulted (never mutated) while parsing
// content in the second pass.
type identResolver struct {
	byName map[string]uint32
	count  uint32
}

func newIdentResolver() *identResolver {
	return &identResolver{byName: map[string]uint32{}}
}

// define registers the next index in the space, optionally under name. name
// == "" leaves the slot unaddressable by identifier, only by numeric index.
func (r *identResolver) define(name string) uint32 {
	idx := r.count
	r.count++
	if name != "" {
		r.byName[name] = idx
	}
	return idx
}

// resolve looks up a token naming an entry in this index space, accepting
// either a bare numeric index or a "$name" identifier.
func (r *identResolver) resolve(p *parser, t *token) (uint32, error) {
	if t == nil {
		return 0, p.unexpected(t, "index or identifier")
	}
	switch t.typ {
	case tokenUN:
		return parseU32Literal(t.value)
	case tokenID:
		idx, ok := r.byName[t.value]
		if !ok {
			return 0, p.errAt(t, "unknown identifier: %s", t.value)
		}
		return idx, nil
	default:
		return 0, p.unexpected(t, "index or identifier")
	}
}

// labelScope resolves branch targets, a stack of block/loop/if labels
// growing inward: label identifiers resolve to their nesting depth,
// innermost first. Index 0 of names is the outermost active label.
type labelScope struct {
	names []string
}

func (ls *labelScope) push(name string) { ls.names = append(ls.names, name) }
func (ls *labelScope) pop()             { ls.names = ls.names[:len(ls.names)-1] }

func (ls *labelScope) resolve(p *parser, t *token) (uint32, error) {
	if t == nil {
		return 0, p.unexpected(t, "label")
	}
	switch t.typ {
	case tokenUN:
		return parseU32Literal(t.value)
	case tokenID:
		for i := len(ls.names) - 1; i >= 0; i-- {
			if ls.names[i] == t.value {
				return uint32(len(ls.names) - 1 - i), nil
			}
		}
		return 0, p.errAt(t, "unknown label: %s", t.value)
	default:
		return 0, p.unexpected(t, "label")
	}
}

var errNoSuchMnemonic = errors.New("unknown mnemonic")
