// Package wasmhost runs an evaluation engine compiled to WebAssembly.
//
// The engine module exports its linear memory as "memory" and
//
//	eval(ptr, len i32) i64
//
// which reads a request document from memory and returns the location of the
// response document packed as ptr<<32 | len. An optional
//
//	alloc(size i32) i32
//
// export tells the host where to write the request; without it the request is
// written at offset 0. Requests are {"mode": ..., "args": {...}}, responses
// are {"output": ..., "isError": ...}.
package wasmhost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/invakid404/cel-playground/internal/common"
)

const (
	evalExport   = "eval"
	allocExport  = "alloc"
	memoryExport = "memory"
)

// ErrNoEvalExport is returned for modules that do not implement the engine ABI
var ErrNoEvalExport = errors.New("module does not export eval")

// Config configures a Host
type Config struct {
	// MemoryPages limits the linear memory of the module, 64KiB per page.
	MemoryPages uint32
	// Timeout bounds a single evaluation.
	Timeout time.Duration
}

// DefaultConfig returns the limits used when none are configured
func DefaultConfig() Config {
	return Config{
		MemoryPages: 256, // 16MiB
		Timeout:     5 * time.Second,
	}
}

// Host evaluates expressions by calling into a compiled engine module. The
// module is compiled once and instantiated for every call, so evaluations
// never share state.
type Host struct {
	runtime wazero.Runtime
	module  wazero.CompiledModule
	config  Config
	logger  *zap.Logger
}

// New compiles the engine module in wasm
func New(ctx context.Context, wasm []byte, config Config, logger *zap.Logger) (*Host, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MemoryPages == 0 {
		config.MemoryPages = DefaultConfig().MemoryPages
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	runtimeConfig := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(config.MemoryPages).
		WithCloseOnContextDone(true)
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	// Engines built for wasip1 need WASI for clocks, random and stdio
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	module, err := runtime.CompileModule(ctx, wasm)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to compile WASM module: %w", err)
	}
	if _, ok := module.ExportedFunctions()[evalExport]; !ok {
		runtime.Close(ctx)
		return nil, ErrNoEvalExport
	}

	return &Host{
		runtime: runtime,
		module:  module,
		config:  config,
		logger:  logger,
	}, nil
}

// Load reads and compiles the engine module at path
func Load(ctx context.Context, path string, config Config, logger *zap.Logger) (*Host, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read WASM module: %w", err)
	}
	return New(ctx, wasm, config, logger)
}

// Call evaluates one request. The returned error reports a failure of the
// host or the module itself; evaluation errors arrive in the Response.
func (h *Host) Call(ctx context.Context, mode string, args map[string]string) (common.Response, error) {
	payload, err := json.Marshal(common.Request{Mode: mode, Args: args})
	if err != nil {
		return common.Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	out, err := h.call(ctx, payload)
	if err != nil {
		return common.Response{}, err
	}

	var resp common.Response
	if err := json.Unmarshal(out, &resp); err != nil {
		return common.Response{}, fmt.Errorf("failed to parse response JSON: %w", err)
	}
	return resp, nil
}

// Evaluate implements common.Engine, reporting host failures as error
// responses.
func (h *Host) Evaluate(ctx context.Context, mode string, args map[string]string) common.Response {
	resp, err := h.Call(ctx, mode, args)
	if err != nil {
		h.logger.Warn("wasm engine call failed", zap.String("mode", mode), zap.Error(err))
		return common.NewResponse("", err)
	}
	return resp
}

func (h *Host) call(ctx context.Context, payload []byte) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	instance, err := h.runtime.InstantiateModule(callCtx, h.module, wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize"))
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}
	defer instance.Close(context.Background())

	mem := instance.ExportedMemory(memoryExport)
	if mem == nil {
		return nil, fmt.Errorf("module has no memory")
	}

	ptr, err := h.write(callCtx, instance, mem, payload)
	if err != nil {
		return nil, err
	}

	results, err := instance.ExportedFunction(evalExport).Call(callCtx, uint64(ptr), uint64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to call eval function: %w", err)
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("eval function should return a packed (ptr, len), got %d results", len(results))
	}

	outPtr, outLen := uint32(results[0]>>32), uint32(results[0])
	data, ok := mem.Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("response out of memory bounds: ptr %d, len %d, memory %d", outPtr, outLen, mem.Size())
	}

	// The view is only valid until the instance is closed
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// write places payload into module memory, using the module allocator when
// there is one
func (h *Host) write(ctx context.Context, instance api.Module, mem api.Memory, payload []byte) (uint32, error) {
	offset := uint32(0)
	if alloc := instance.ExportedFunction(allocExport); alloc != nil {
		results, err := alloc.Call(ctx, uint64(len(payload)))
		if err != nil {
			return 0, fmt.Errorf("failed to allocate request: %w", err)
		}
		if len(results) != 1 {
			return 0, fmt.Errorf("alloc function should return a pointer, got %d results", len(results))
		}
		offset = uint32(results[0])
	}

	if uint64(offset)+uint64(len(payload)) > uint64(mem.Size()) {
		return 0, fmt.Errorf("not enough memory: need %d bytes, have %d", len(payload), mem.Size())
	}
	if !mem.Write(offset, payload) {
		return 0, fmt.Errorf("failed to write to memory")
	}
	return offset, nil
}

// Close releases the runtime and the compiled module
func (h *Host) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}
