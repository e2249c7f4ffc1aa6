package wasmcore

import (
	"bytes"
	"context"
	"math"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/wasmcore/wasmcore/api"
	"github.com/wasmcore/wasmcore/internal/memory"
	"github.com/wasmcore/wasmcore/internal/wasm"
	"github.com/wasmcore/wasmcore/internal/wasm/binary"
	"github.com/wasmcore/wasmcore/internal/wasm/interpreter"
	"github.com/wasmcore/wasmcore/internal/wasm/text"
	"github.com/wasmcore/wasmcore/internal/wasm/validator"
)

// binaryMagic is the 4-byte preamble that distinguishes the binary format
// from text source.
var binaryMagic = []byte{0x00, 0x61, 0x73, 0x6d}

// Runtime owns a Store shared by every module it compiles or instantiates,
// and the registry of named module instances used to resolve imports.
type Runtime struct {
	cfg    *RuntimeConfig
	store  *wasm.Store
	engine *interpreter.Engine

	mu      sync.Mutex
	modules map[string]*Module
}

// NewRuntime creates a Runtime using the default RuntimeConfig.
func NewRuntime(ctx context.Context) *Runtime {
	return NewRuntimeWithConfig(ctx, NewRuntimeConfig())
}

// NewRuntimeWithConfig creates a Runtime configured by cfg.
func NewRuntimeWithConfig(ctx context.Context, cfg *RuntimeConfig) *Runtime {
	if cfg == nil {
		cfg = NewRuntimeConfig()
	}
	cfg = cfg.WithContext(ctx)
	store := wasm.NewStore()
	return &Runtime{
		cfg:     cfg,
		store:   store,
		engine:  interpreter.NewEngine(store),
		modules: map[string]*Module{},
	}
}

// CompiledModule is a decoded and validated module, ready to be
// instantiated one or more times via Runtime.InstantiateModule.
type CompiledModule struct {
	name   string
	module *wasm.Module

	// hostFuncs parallels module.FunctionSection/CodeSection for a module
	// built by HostModuleBuilder: each entry is the Go-side implementation
	// of the function at the same position. nil for a decoded module.
	hostFuncs []*hostFunc
}

// CompileModule decodes source, sniffing the binary preamble to pick
// between the binary and text decoders, then validates the result.
func (r *Runtime) CompileModule(ctx context.Context, source []byte) (*CompiledModule, error) {
	var mod *wasm.Module
	var err error
	if bytes.HasPrefix(source, binaryMagic) {
		if mod, err = binary.DecodeBinary(bytes.NewReader(source)); err != nil {
			return nil, &DecodeError{Format: "binary", Cause: err}
		}
	} else {
		if mod, err = text.DecodeText(source); err != nil {
			return nil, &DecodeError{Format: "text", Cause: err}
		}
	}
	if err := validator.ValidateModule(mod); err != nil {
		return nil, &ValidationError{Cause: err}
	}
	r.cfg.logger.Debug("compiled module", zap.String("name", mod.Name), zap.Int("functions", mod.NumFunctions()))
	return &CompiledModule{name: mod.Name, module: mod}, nil
}

// Module is an instantiated CompiledModule: a live wasm.ModuleInstance
// bound to this Runtime's Store, whose exports can be called or read by
// other modules instantiated afterward.
// Module implements api.Module, the embedder-facing view a host function
// receives of the module that invoked it.
type Module struct {
	name     string
	runtime  *Runtime
	instance *wasm.ModuleInstance
}

var _ api.Module = (*Module)(nil)

// Name returns the instance name this module is registered under.
func (m *Module) Name() string { return m.name }

// ExportedFunction returns the named exported function, or ok=false if no
// such export exists or it is not a function.
func (m *Module) ExportedFunction(name string) (fn api.Function, ok bool) {
	exp, ok := m.instance.Exports[name]
	if !ok || exp.Kind != wasm.ExternKindFunc {
		return nil, false
	}
	addr := m.instance.Functions[exp.Index]
	return Function{name: name, runtime: m.runtime, addr: addr, fnType: m.runtime.store.Functions[addr].Type}, true
}

// Memory returns the module's memory, if it declared or imported one.
func (m *Module) Memory() (api.Memory, bool) {
	if m.instance.Memory == nil {
		return nil, false
	}
	return memoryView{mem: m.runtime.store.Memories[*m.instance.Memory]}, true
}

// Global returns the named exported global, or ok=false if no such export
// exists or it is not a global.
func (m *Module) Global(name string) (api.Global, bool) {
	exp, ok := m.instance.Exports[name]
	if !ok || exp.Kind != wasm.ExternKindGlobal {
		return nil, false
	}
	addr := m.instance.Globals[exp.Index]
	return globalView{g: m.runtime.store.Globals[addr]}, true
}

// Close removes this module from its Runtime's import registry. It does
// not release Store entries, since another already-instantiated module may
// still hold references into them.
func (m *Module) Close(context.Context) error {
	m.runtime.mu.Lock()
	defer m.runtime.mu.Unlock()
	if m.runtime.modules[m.name] == m {
		delete(m.runtime.modules, m.name)
	}
	return nil
}

// Function is a callable handle to one function address in a Runtime's
// Store, bound to the exported name it was looked up by (used only to
// annotate a Trap, if one occurs). Function implements api.Function.
type Function struct {
	name    string
	runtime *Runtime
	addr    int
	fnType  *wasm.FunctionType
}

var _ api.Function = Function{}

// Type returns the function's parameter and result types.
func (f Function) Type() api.FunctionType {
	return api.FunctionType{Params: f.fnType.Params, Results: f.fnType.Results}
}

// Call invokes the function with params in declared-parameter order and
// returns its results in declared-result order.
// A trapping execution returns a *Trap satisfying the error interface.
func (f Function) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	results, err := f.runtime.engine.Call(ctx, f.addr, params)
	if err != nil {
		return nil, asTrap(err, f.name)
	}
	return results, nil
}

// memoryView adapts a *wasm.MemoryInstance to api.Memory.
type memoryView struct{ mem *wasm.MemoryInstance }

var _ api.Memory = memoryView{}

func (v memoryView) Size() uint32 { return uint32(v.mem.Store.SizeBytes()) }

func (v memoryView) Grow(deltaPages uint32) (uint32, bool) {
	prev := v.mem.Store.Grow(deltaPages)
	return prev, prev != memory.GrowFailed
}

func (v memoryView) ReadByte(offset uint32) (byte, bool) {
	b, ok := v.mem.Store.ReadBytes(uint64(offset), 1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (v memoryView) WriteByte(offset uint32, b byte) bool {
	return v.mem.Store.WriteBytes(uint64(offset), []byte{b})
}

func (v memoryView) ReadUint32Le(offset uint32) (uint32, bool) {
	x, ok := v.mem.Store.ReadUint(uint64(offset), 4)
	return uint32(x), ok
}

func (v memoryView) WriteUint32Le(offset uint32, x uint32) bool {
	return v.mem.Store.WriteUint(uint64(offset), 4, uint64(x))
}

func (v memoryView) ReadUint64Le(offset uint32) (uint64, bool) {
	return v.mem.Store.ReadUint(uint64(offset), 8)
}

func (v memoryView) WriteUint64Le(offset uint32, x uint64) bool {
	return v.mem.Store.WriteUint(uint64(offset), 8, x)
}

func (v memoryView) Read(offset, byteCount uint32) ([]byte, bool) {
	return v.mem.Store.ReadBytes(uint64(offset), uint64(byteCount))
}

func (v memoryView) Write(offset uint32, data []byte) bool {
	return v.mem.Store.WriteBytes(uint64(offset), data)
}

// globalView adapts a *wasm.GlobalInstance to api.Global.
type globalView struct{ g *wasm.GlobalInstance }

var _ api.Global = globalView{}

func (v globalView) Type() api.ValueType { return v.g.Type.ValType }
func (v globalView) Get() uint64         { return v.g.Get() }

func (v globalView) Set(val uint64) {
	if v.g.Type.Mutable == wasm.Const {
		panic("wasm: cannot set an immutable global")
	}
	v.g.Set(val)
}

// InstantiateModule links compiled's imports against already-instantiated
// modules registered in this Runtime by name, allocates its Store entries,
// applies element and data segments, and runs its start function (plus any
// cfg.WithStartFunctions).
func (r *Runtime) InstantiateModule(ctx context.Context, compiled *CompiledModule, cfg *ModuleConfig) (*Module, error) {
	if cfg == nil {
		cfg = NewModuleConfig()
	}
	if ctx == nil {
		ctx = r.cfg.ctx
	}
	mod := compiled.module

	name := cfg.name
	if name == "" {
		name = compiled.name
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	inst := &wasm.ModuleInstance{
		Name:          name,
		Types:         append([]wasm.FunctionType(nil), mod.TypeSection...),
		Exports:       map[string]wasm.Export{},
		FunctionNames: mod.FunctionNames,
	}

	if err := r.linkImports(mod, inst); err != nil {
		return nil, err
	}
	r.allocateLocals(compiled, inst)

	if err := r.applyElementSegments(mod, inst); err != nil {
		return nil, err
	}
	if err := r.applyDataSegments(mod, inst); err != nil {
		return nil, err
	}

	for name, exp := range mod.ExportSection {
		inst.Exports[name] = exp
	}

	m := &Module{name: name, runtime: r, instance: inst}
	if name != "" {
		r.modules[name] = m
	}

	if mod.StartSection != nil {
		addr := inst.Functions[*mod.StartSection]
		if _, err := r.engine.Call(ctx, addr, nil); err != nil {
			return nil, asTrap(err, "")
		}
	}
	for _, fname := range cfg.startFunctions {
		fn, ok := m.ExportedFunction(fname)
		if !ok {
			continue
		}
		if _, err := fn.Call(ctx); err != nil {
			return nil, err
		}
	}

	r.cfg.logger.Info("instantiated module", zap.String("name", name))
	return m, nil
}

// linkImports resolves mod's ImportSection against r.modules, appending
// each resolved extern val's Store address to the matching index space of
// inst.
func (r *Runtime) linkImports(mod *wasm.Module, inst *wasm.ModuleInstance) error {
	for _, imp := range mod.ImportSection {
		src, ok := r.modules[imp.Module]
		if !ok {
			return &LinkError{Module: imp.Module, Name: imp.Name, Cause: errors.New("module not instantiated")}
		}
		exp, ok := src.instance.Exports[imp.Name]
		if !ok {
			return &LinkError{Module: imp.Module, Name: imp.Name, Cause: errors.New("no such export")}
		}
		if exp.Kind != imp.Kind {
			return &LinkError{Module: imp.Module, Name: imp.Name, Cause: errors.Errorf("expected a %s, got a %s", imp.Kind, exp.Kind)}
		}
		switch imp.Kind {
		case wasm.ExternKindFunc:
			addr := src.instance.Functions[exp.Index]
			fn := r.store.Functions[addr]
			want := mod.TypeSection[imp.FuncTypeIndex]
			if !fn.Type.EqualsSignature(want.Params, want.Results) {
				return &LinkError{Module: imp.Module, Name: imp.Name, Cause: errors.Errorf("signature mismatch: want %s, have %s", want.String(), fn.Type.String())}
			}
			inst.Functions = append(inst.Functions, addr)
		case wasm.ExternKindTable:
			addr := *src.instance.Table
			inst.Table = &addr
		case wasm.ExternKindMemory:
			addr := *src.instance.Memory
			inst.Memory = &addr
		case wasm.ExternKindGlobal:
			addr := src.instance.Globals[exp.Index]
			inst.Globals = append(inst.Globals, addr)
		}
	}
	return nil
}

// allocateLocals allocates Store entries for mod's locally-defined
// functions, table, memory, and globals, appending their addresses to
// inst's index spaces after the imported entries linkImports already
// placed there.
func (r *Runtime) allocateLocals(compiled *CompiledModule, inst *wasm.ModuleInstance) {
	mod := compiled.module
	for i, typeIdx := range mod.FunctionSection {
		fn := &wasm.FunctionInstance{Type: &inst.Types[typeIdx], Module: inst}
		if compiled.hostFuncs != nil {
			hf := compiled.hostFuncs[i]
			fn.GoFunc = hf.goFunc
			fn.Name = hf.name
		} else {
			code := mod.CodeSection[i]
			fn.Body = code.Body
			fn.Locals = code.LocalTypes
			if mod.FunctionNames != nil {
				fn.Name = mod.FunctionNames[uint32(len(inst.Functions))]
			}
		}
		addr := r.store.AllocateFunction(fn)
		inst.Functions = append(inst.Functions, addr)
	}

	for _, tt := range mod.TableSection {
		elems := make([]int64, tt.Min)
		for i := range elems {
			elems[i] = -1
		}
		addr := r.store.AllocateTable(&wasm.TableInstance{Type: tt, Elements: elems})
		inst.Table = &addr
	}

	for _, mt := range mod.MemorySection {
		if mt.Max != nil && *mt.Max > r.cfg.memoryMaxPages {
			capped := r.cfg.memoryMaxPages
			mt.Max = &capped
		} else if mt.Max == nil {
			capped := r.cfg.memoryMaxPages
			mt.Max = &capped
		}
		addr := r.store.AllocateMemory(wasm.NewMemoryInstance(mt))
		inst.Memory = &addr
	}

	for _, g := range mod.GlobalSection {
		v := evalConstExpr(g.Init, inst, r.store)
		addr := r.store.AllocateGlobal(wasm.NewGlobalInstance(g.Type, v))
		inst.Globals = append(inst.Globals, addr)
	}
}

// evalConstExpr evaluates a restricted constant expression against already-linked imported globals.
func evalConstExpr(ce wasm.ConstantExpression, inst *wasm.ModuleInstance, store *wasm.Store) uint64 {
	switch ce.Opcode {
	case wasm.OpcodeI32Const:
		return uint64(uint32(ce.ConstI32))
	case wasm.OpcodeI64Const:
		return uint64(ce.ConstI64)
	case wasm.OpcodeF32Const:
		return uint64(math.Float32bits(ce.ConstF32))
	case wasm.OpcodeF64Const:
		return math.Float64bits(ce.ConstF64)
	case wasm.OpcodeGlobalGet:
		addr := inst.Globals[ce.GlobalIndex]
		return store.Globals[addr].Get()
	default:
		return 0
	}
}

// applyElementSegments copies each element segment's function indices into
// the module's table starting at its constant offset.
func (r *Runtime) applyElementSegments(mod *wasm.Module, inst *wasm.ModuleInstance) error {
	if len(mod.ElementSection) == 0 {
		return nil
	}
	if inst.Table == nil {
		return &LinkError{Cause: errors.New("element segment with no table")}
	}
	table := r.store.Tables[*inst.Table]
	for _, seg := range mod.ElementSection {
		offset := uint32(evalConstExpr(seg.OffsetExpr, inst, r.store))
		if uint64(offset)+uint64(len(seg.Init)) > uint64(len(table.Elements)) {
			return &LinkError{Cause: errors.New("element segment out of table bounds")}
		}
		for i, funcIdx := range seg.Init {
			table.Elements[int(offset)+i] = int64(inst.Functions[funcIdx])
		}
	}
	return nil
}

// applyDataSegments copies each data segment's bytes into the module's
// memory starting at its constant offset.
func (r *Runtime) applyDataSegments(mod *wasm.Module, inst *wasm.ModuleInstance) error {
	if len(mod.DataSection) == 0 {
		return nil
	}
	if inst.Memory == nil {
		return &LinkError{Cause: errors.New("data segment with no memory")}
	}
	mem := r.store.Memories[*inst.Memory].Store
	for _, seg := range mod.DataSection {
		offset := uint64(evalConstExpr(seg.OffsetExpr, inst, r.store))
		if !mem.WriteBytes(offset, seg.Init) {
			return &LinkError{Cause: errors.New("data segment out of memory bounds")}
		}
	}
	return nil
}
