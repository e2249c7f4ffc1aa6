package text

import "github.com/wasmcore/wasmcore/internal/wasm"

// DecodeText parses the WebAssembly text format (a single "(module ...)"
// S-expression) into a wasm.Module. Returned errors are *DecodeError,
// carrying a line/column source position.
func DecodeText(src []byte) (*wasm.Module, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	if p.done() {
		return nil, p.errAt(nil, "empty source")
	}
	return parseModuleFile(p)
}
