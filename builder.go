package wasmcore

import (
	"context"
	"math"
	"reflect"

	"github.com/pkg/errors"

	"github.com/wasmcore/wasmcore/internal/wasm"
)

// HostFunctionBuilder defines one host function (in Go), so that a
// WebAssembly module can import and call it.
//
// Here's an example of an addition function:
//
//	hostModuleBuilder.NewFunctionBuilder().
//		WithFunc(func(ctx context.Context, x, y uint32) uint32 {
//			return x + y
//		}).
//		Export("add")
//
// Methods return the same builder for chaining and do not themselves
// return errors; any invalid signature is reported from Compile.
type HostFunctionBuilder interface {
	// WithFunc uses reflect to map a Go func to a WebAssembly-compatible
	// signature. Parameters and results must be uint32, int32, uint64,
	// int64, float32, or float64; an optional leading context.Context
	// parameter is recognized and supplied the call's context.
	WithFunc(fn interface{}) HostFunctionBuilder

	// WithGoFunction is a lower-level alternative to WithFunc for callers
	// who want to avoid per-call reflection: fn receives and populates a
	// raw uint64 stack directly, with the types of each slot given by
	// params/results.
	WithGoFunction(fn func(ctx context.Context, stack []uint64), params, results []wasm.ValueType) HostFunctionBuilder

	// WithName sets the function's module-local name, used in diagnostics.
	// Defaults to the export name.
	WithName(name string) HostFunctionBuilder

	// Export registers the function under name and returns the owning
	// HostModuleBuilder for further chaining.
	Export(name string) HostModuleBuilder
}

// HostModuleBuilder builds a module of Go-implemented functions that a
// WebAssembly module can import. Host functions are stored in the same
// Store as module-defined functions.
type HostModuleBuilder interface {
	// NewFunctionBuilder begins the definition of one host function.
	NewFunctionBuilder() HostFunctionBuilder

	// Compile returns a CompiledModule that Runtime.InstantiateModule can
	// instantiate one or more times.
	Compile(ctx context.Context) (*CompiledModule, error)

	// Instantiate is a convenience that calls Compile, then
	// Runtime.InstantiateModule with NewModuleConfig().WithName(moduleName).
	Instantiate(ctx context.Context) (*Module, error)
}

// hostFunc is one function definition collected by hostModuleBuilder,
// ready to become a host wasm.FunctionInstance at instantiation time.
type hostFunc struct {
	name                    string
	exportName              string
	paramTypes, resultTypes []wasm.ValueType
	goFunc                  func(ctx context.Context, stack []uint64)
	err                     error // deferred signature-mapping failure
}

type hostModuleBuilder struct {
	r           *Runtime
	moduleName  string
	exportNames []string
	byName      map[string]*hostFunc
}

// NewHostModuleBuilder implements Runtime.NewHostModuleBuilder.
func (r *Runtime) NewHostModuleBuilder(moduleName string) HostModuleBuilder {
	return &hostModuleBuilder{r: r, moduleName: moduleName, byName: map[string]*hostFunc{}}
}

func (b *hostModuleBuilder) register(hf *hostFunc) {
	if _, ok := b.byName[hf.exportName]; !ok {
		b.exportNames = append(b.exportNames, hf.exportName)
	}
	b.byName[hf.exportName] = hf
}

// NewFunctionBuilder implements HostModuleBuilder.NewFunctionBuilder.
func (b *hostModuleBuilder) NewFunctionBuilder() HostFunctionBuilder {
	return &hostFunctionBuilder{b: b}
}

// Compile implements HostModuleBuilder.Compile.
func (b *hostModuleBuilder) Compile(context.Context) (*CompiledModule, error) {
	mod := &wasm.Module{Name: b.moduleName, ExportSection: map[string]wasm.Export{}}
	hostFuncs := make([]*hostFunc, 0, len(b.exportNames))
	for i, name := range b.exportNames {
		hf := b.byName[name]
		if hf.err != nil {
			return nil, errors.Wrapf(hf.err, "host function %q", name)
		}
		mod.TypeSection = append(mod.TypeSection, wasm.FunctionType{Params: hf.paramTypes, Results: hf.resultTypes})
		mod.FunctionSection = append(mod.FunctionSection, uint32(i))
		mod.ExportSection[name] = wasm.Export{Name: name, Kind: wasm.ExternKindFunc, Index: uint32(i)}
		hostFuncs = append(hostFuncs, hf)
	}
	return &CompiledModule{name: b.moduleName, module: mod, hostFuncs: hostFuncs}, nil
}

// Instantiate implements HostModuleBuilder.Instantiate.
func (b *hostModuleBuilder) Instantiate(ctx context.Context) (*Module, error) {
	compiled, err := b.Compile(ctx)
	if err != nil {
		return nil, err
	}
	return b.r.InstantiateModule(ctx, compiled, NewModuleConfig().WithName(b.moduleName))
}

// hostFunctionBuilder implements HostFunctionBuilder.
type hostFunctionBuilder struct {
	b      *hostModuleBuilder
	rawFn  interface{}
	goFunc func(ctx context.Context, stack []uint64)
	params []wasm.ValueType
	results []wasm.ValueType
	name   string
}

func (h *hostFunctionBuilder) WithFunc(fn interface{}) HostFunctionBuilder {
	h.rawFn = fn
	h.goFunc = nil
	return h
}

func (h *hostFunctionBuilder) WithGoFunction(fn func(ctx context.Context, stack []uint64), params, results []wasm.ValueType) HostFunctionBuilder {
	h.goFunc = fn
	h.params, h.results = params, results
	h.rawFn = nil
	return h
}

func (h *hostFunctionBuilder) WithName(name string) HostFunctionBuilder {
	h.name = name
	return h
}

func (h *hostFunctionBuilder) Export(exportName string) HostModuleBuilder {
	hf := &hostFunc{exportName: exportName, name: h.name}
	if hf.name == "" {
		hf.name = exportName
	}
	if h.goFunc != nil {
		hf.goFunc, hf.paramTypes, hf.resultTypes = h.goFunc, h.params, h.results
	} else {
		goFunc, params, results, err := reflectGoFunc(h.rawFn)
		hf.goFunc, hf.paramTypes, hf.resultTypes, hf.err = goFunc, params, results, err
	}
	h.b.register(hf)
	return h.b
}

var ctxInterface = reflect.TypeOf((*context.Context)(nil)).Elem()

// reflectGoFunc builds the uint64-stack calling convention wrapper for an
// arbitrary Go func, inferring its WebAssembly signature from its
// reflect.Type.
func reflectGoFunc(fn interface{}) (func(ctx context.Context, stack []uint64), []wasm.ValueType, []wasm.ValueType, error) {
	if fn == nil {
		return nil, nil, nil, errors.New("WithFunc requires a non-nil func")
	}
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, nil, nil, errors.Errorf("WithFunc requires a func, got %s", t)
	}

	skipCtx := t.NumIn() > 0 && t.In(0) == ctxInterface

	firstParam := 0
	if skipCtx {
		firstParam = 1
	}
	params := make([]wasm.ValueType, 0, t.NumIn()-firstParam)
	for i := firstParam; i < t.NumIn(); i++ {
		vt, err := reflectValueType(t.In(i))
		if err != nil {
			return nil, nil, nil, errors.Wrapf(err, "parameter %d", i-firstParam)
		}
		params = append(params, vt)
	}

	results := make([]wasm.ValueType, 0, t.NumOut())
	for i := 0; i < t.NumOut(); i++ {
		vt, err := reflectValueType(t.Out(i))
		if err != nil {
			return nil, nil, nil, errors.Wrapf(err, "result %d", i)
		}
		results = append(results, vt)
	}

	goFunc := func(ctx context.Context, stack []uint64) {
		args := make([]reflect.Value, t.NumIn())
		if skipCtx {
			args[0] = reflect.ValueOf(ctx)
		}
		for i := firstParam; i < t.NumIn(); i++ {
			args[i] = decodeReflectArg(t.In(i), stack[i-firstParam])
		}
		out := v.Call(args)
		for i, rv := range out {
			stack[i] = encodeReflectResult(rv)
		}
	}
	return goFunc, params, results, nil
}

func reflectValueType(t reflect.Type) (wasm.ValueType, error) {
	switch t.Kind() {
	case reflect.Uint32, reflect.Int32:
		return wasm.ValueTypeI32, nil
	case reflect.Uint64, reflect.Int64:
		return wasm.ValueTypeI64, nil
	case reflect.Float32:
		return wasm.ValueTypeF32, nil
	case reflect.Float64:
		return wasm.ValueTypeF64, nil
	default:
		return 0, errors.Errorf("unsupported Go type %s: must be uint32, int32, uint64, int64, float32, or float64", t)
	}
}

func decodeReflectArg(t reflect.Type, raw uint64) reflect.Value {
	switch t.Kind() {
	case reflect.Uint32:
		return reflect.ValueOf(uint32(raw))
	case reflect.Int32:
		return reflect.ValueOf(int32(uint32(raw)))
	case reflect.Uint64:
		return reflect.ValueOf(raw)
	case reflect.Int64:
		return reflect.ValueOf(int64(raw))
	case reflect.Float32:
		return reflect.ValueOf(math.Float32frombits(uint32(raw)))
	default: // reflect.Float64, validated by reflectValueType.
		return reflect.ValueOf(math.Float64frombits(raw))
	}
}

func encodeReflectResult(rv reflect.Value) uint64 {
	switch rv.Kind() {
	case reflect.Uint32:
		return uint64(uint32(rv.Uint()))
	case reflect.Int32:
		return uint64(uint32(rv.Int()))
	case reflect.Uint64:
		return rv.Uint()
	case reflect.Int64:
		return uint64(rv.Int())
	case reflect.Float32:
		return uint64(math.Float32bits(float32(rv.Float())))
	default: // reflect.Float64, validated by reflectValueType.
		return math.Float64bits(rv.Float())
	}
}
