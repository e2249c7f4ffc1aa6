package wasmcore

import (
	"context"

	"go.uber.org/zap"

	"github.com/wasmcore/wasmcore/internal/wasm"
)

// RuntimeConfig controls Runtime-wide behavior, with the default
// implementation as NewRuntimeConfig.
type RuntimeConfig struct {
	ctx            context.Context
	memoryMaxPages uint32
	logger         *zap.Logger
}

// NewRuntimeConfig returns the default RuntimeConfig: background context,
// the format's full 65536-page memory ceiling, and a no-op logger.
func NewRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		ctx:            context.Background(),
		memoryMaxPages: wasm.MemoryMaxPages,
		logger:         zap.NewNop(),
	}
}

func (c *RuntimeConfig) clone() *RuntimeConfig {
	cp := *c
	return &cp
}

// WithContext sets the default context passed to a module's start function
// and to host functions invoked with no explicit context. Defaults to
// context.Background if nil.
func (c *RuntimeConfig) WithContext(ctx context.Context) *RuntimeConfig {
	if ctx == nil {
		ctx = context.Background()
	}
	ret := c.clone()
	ret.ctx = ctx
	return ret
}

// WithMemoryMaxPages lowers the maximum number of pages a module's memory
// can grow to, from the format's 65536-page (4GiB) ceiling. A module whose
// declared memory max exceeds this is instantiated with its max lowered to
// this value, and a memory with no declared max gets this value as its max.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#memory-types%E2%91%A0
func (c *RuntimeConfig) WithMemoryMaxPages(memoryMaxPages uint32) *RuntimeConfig {
	ret := c.clone()
	ret.memoryMaxPages = memoryMaxPages
	return ret
}

// WithLogger sets the structured logger used for instantiation, trap, and
// memory-growth diagnostics. Defaults to a no-op logger.
func (c *RuntimeConfig) WithLogger(logger *zap.Logger) *RuntimeConfig {
	if logger == nil {
		logger = zap.NewNop()
	}
	ret := c.clone()
	ret.logger = logger
	return ret
}

// ModuleConfig configures one instantiation of a CompiledModule.
type ModuleConfig struct {
	name           string
	startFunctions []string
}

// NewModuleConfig returns the default ModuleConfig: the module's own
// decoded name, and no functions called automatically besides the module's
// own start section (see Runtime.InstantiateModule).
func NewModuleConfig() *ModuleConfig {
	return &ModuleConfig{}
}

func (c *ModuleConfig) clone() *ModuleConfig {
	cp := *c
	cp.startFunctions = append([]string(nil), c.startFunctions...)
	return &cp
}

// WithName overrides the module's instance name used for import
// resolution by later-instantiated modules. Defaults to the name given to
// HostModuleBuilder, or the Module ID decoded from the text format, or "".
func (c *ModuleConfig) WithName(name string) *ModuleConfig {
	ret := c.clone()
	ret.name = name
	return ret
}

// WithStartFunctions configures exported functions to call, in order,
// immediately after the module's own start section (if any) runs. Unlike
// the start section, a named function here that doesn't exist is skipped
// rather than rejected at compile time.
func (c *ModuleConfig) WithStartFunctions(names ...string) *ModuleConfig {
	ret := c.clone()
	ret.startFunctions = names
	return ret
}
