package wasmcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wasmcore/wasmcore/internal/wasm"
)

func TestRuntimeConfig_Defaults(t *testing.T) {
	cfg := NewRuntimeConfig()
	require.Equal(t, context.Background(), cfg.ctx)
	require.Equal(t, uint32(wasm.MemoryMaxPages), cfg.memoryMaxPages)
	require.NotNil(t, cfg.logger)
}

func TestRuntimeConfig_WithersReturnNewInstances(t *testing.T) {
	base := NewRuntimeConfig()
	withMax := base.WithMemoryMaxPages(1)
	require.NotSame(t, base, withMax)
	require.Equal(t, uint32(wasm.MemoryMaxPages), base.memoryMaxPages)
	require.Equal(t, uint32(1), withMax.memoryMaxPages)

	withLogger := base.WithLogger(zap.NewExample())
	require.NotSame(t, base, withLogger)
	require.NotNil(t, withLogger.logger)
}

func TestRuntimeConfig_WithMemoryMaxPages_CapsModuleMemory(t *testing.T) {
	r := NewRuntimeWithConfig(testCtx, NewRuntimeConfig().WithMemoryMaxPages(2))
	compiled, err := r.CompileModule(testCtx, []byte(`(module (memory 1 10))`))
	require.NoError(t, err)

	m, err := r.InstantiateModule(testCtx, compiled, nil)
	require.NoError(t, err)
	require.NotNil(t, m.instance.Memory)

	mem := r.store.Memories[*m.instance.Memory]
	require.Equal(t, uint32(2), *mem.Type.Max)
}

func TestModuleConfig_WithName_OverridesRegistryKey(t *testing.T) {
	r := NewRuntime(testCtx)
	compiled, err := r.CompileModule(testCtx, []byte(`(module $original)`))
	require.NoError(t, err)

	m, err := r.InstantiateModule(testCtx, compiled, NewModuleConfig().WithName("renamed"))
	require.NoError(t, err)
	require.Equal(t, "renamed", m.Name())
	require.Same(t, m, r.modules["renamed"])
	require.Nil(t, r.modules["original"])
}

func TestModuleConfig_WithStartFunctions_SkipsMissingNames(t *testing.T) {
	r := NewRuntime(testCtx)
	compiled, err := r.CompileModule(testCtx, []byte(`(module
  (memory 1)
  (func $inc (export "inc")
    i32.const 0
    i32.const 0
    i32.load
    i32.const 1
    i32.add
    i32.store))`))
	require.NoError(t, err)

	_, err = r.InstantiateModule(testCtx, compiled, NewModuleConfig().WithStartFunctions("inc", "does-not-exist", "inc"))
	require.NoError(t, err)
}
