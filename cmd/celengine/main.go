//go:build wasip1

// Command celengine packages the in-process engine as a WASI reactor for the
// wasm engine host:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o celengine.wasm ./cmd/celengine
package main

import (
	"context"
	"encoding/json"
	"unsafe"

	"github.com/invakid404/cel-playground/internal/common"
	"github.com/invakid404/cel-playground/internal/eval"
)

var (
	engine *eval.Builtin
	// pinned keeps buffers handed to the host alive until the next call
	pinned = map[uintptr][]byte{}
	last   []byte
)

func init() {
	var err error
	engine, err = eval.NewBuiltin()
	if err != nil {
		panic(err)
	}
}

//go:wasmexport alloc
func alloc(size uint32) uint32 {
	buf := make([]byte, size)
	ptr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	pinned[ptr] = buf
	return uint32(ptr)
}

//go:wasmexport eval
func evaluate(ptr, size uint32) uint64 {
	req := pinned[uintptr(ptr)]
	delete(pinned, uintptr(ptr))
	if uint32(len(req)) < size {
		return respond(common.Response{Output: "request buffer was not allocated", IsError: true})
	}

	var r common.Request
	if err := json.Unmarshal(req[:size], &r); err != nil {
		return respond(common.NewResponse("", err))
	}
	return respond(engine.Evaluate(context.Background(), r.Mode, r.Args))
}

func respond(resp common.Response) uint64 {
	out, err := json.Marshal(resp)
	if err != nil {
		out = []byte(`{"output":"failed to marshal the response","isError":true}`)
	}
	last = out
	ptr := uint64(uintptr(unsafe.Pointer(unsafe.SliceData(last))))
	return ptr<<32 | uint64(len(last))
}

func main() {}
