// Package vm implements the ella virtual machine.
//
// This package contains:
//   - the tagged Value representation
//   - opcodes, chunks and the chunk builder
//   - the bytecode interpreter with persistent global storage
//   - a disassembler and a CBOR chunk encoding
package vm
