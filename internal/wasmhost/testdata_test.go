package wasmhost

// Hand-assembled engine modules. Each exports "memory" (one page) and
// (func $eval (param i32 i32) (result i64)).

// constModule answers every request with {"output":"2","isError":false},
// stored by a data segment at offset 1024.
var constModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // WASM_BINARY_MAGIC
	0x01, 0x00, 0x00, 0x00, // WASM_BINARY_VERSION
	// Type section
	0x01, 0x07, // section id, section size
	0x01,                                     // number of types
	0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7e, // (func (param i32 i32) (result i64))
	// Function section
	0x03, 0x02, 0x01, 0x00,
	// Memory section
	0x05, 0x03, 0x01, 0x00, 0x01, // min=1 page
	// Export section
	0x07, 0x11, // section id, section size
	0x02,                                                 // number of exports
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00, // export "memory"
	0x04, 0x65, 0x76, 0x61, 0x6c, 0x00, 0x00, // export "eval"
	// Code section
	0x0a, 0x0c, 0x01, 0x0a,
	0x00,                                           // no locals
	0x42, 0x9e, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01, // i64.const 1024<<32 | 30
	0x0b, // end
	// Data section
	0x0b, 0x25, 0x01,
	0x00, 0x41, 0x80, 0x08, 0x0b, // memory 0, offset i32.const 1024
	0x1e, // 30 bytes
	0x7b, 0x22, 0x6f, 0x75, 0x74, 0x70, 0x75, 0x74, 0x22, 0x3a, 0x22, 0x32, 0x22, 0x2c, 0x22,
	0x69, 0x73, 0x45, 0x72, 0x72, 0x6f, 0x72, 0x22, 0x3a, 0x66, 0x61, 0x6c, 0x73, 0x65, 0x7d,
}

// echoModule returns its input unchanged: (ptr << 32) | len.
var echoModule = []byte{
	0x00, 0x61, 0x73, 0x6d,
	0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7e,
	0x03, 0x02, 0x01, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x11, 0x02,
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00,
	0x04, 0x65, 0x76, 0x61, 0x6c, 0x00, 0x00,
	// Code section
	0x0a, 0x0e, 0x01, 0x0c,
	0x00,             // no locals
	0x20, 0x00, 0xad, // local.get 0, i64.extend_i32_u
	0x42, 0x20, 0x86, // i64.const 32, i64.shl
	0x20, 0x01, 0xad, // local.get 1, i64.extend_i32_u
	0x84, // i64.or
	0x0b, // end
}

// loopModule never returns.
var loopModule = []byte{
	0x00, 0x61, 0x73, 0x6d,
	0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7e,
	0x03, 0x02, 0x01, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x11, 0x02,
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00,
	0x04, 0x65, 0x76, 0x61, 0x6c, 0x00, 0x00,
	// Code section
	0x0a, 0x0a, 0x01, 0x08,
	0x00,       // no locals
	0x03, 0x40, // loop
	0x0c, 0x00, // br 0
	0x0b,       // end
	0x00,       // unreachable
	0x0b,       // end
}

// emptyModule exports nothing.
var emptyModule = []byte{
	0x00, 0x61, 0x73, 0x6d,
	0x01, 0x00, 0x00, 0x00,
}
