// Package classfile holds the bytecode model of the inspected process:
// method bodies with their literal pools, class files grouping them, the
// CBOR wire form they travel in, and the loading layers (image, metered
// cache, persistent store) that make up the bytecode source.
package classfile

import "fmt"

// Opcode is a single bytecode instruction. Operands follow the opcode
// byte in little-endian order.
type Opcode byte

// Stack operations
const (
	OpNop Opcode = 0x00 // no operation
	OpPop Opcode = 0x01 // discard top of stack
	OpDup Opcode = 0x02 // duplicate top of stack
)

// Constants
const (
	OpPushNull  Opcode = 0x10 // push null reference
	OpPushInt   Opcode = 0x11 // push inline int: OpPushInt <value:i32>
	OpPushConst Opcode = 0x12 // push from literal pool: OpPushConst <index:u16>
)

// Locals
const (
	OpLoad  Opcode = 0x20 // push local slot: OpLoad <slot:u8>
	OpStore Opcode = 0x21 // pop into local slot: OpStore <slot:u8>
)

// Arithmetic (numeric operands with promotion; integer division and
// remainder by zero throw ArithmeticException)
const (
	OpAdd Opcode = 0x30
	OpSub Opcode = 0x31
	OpMul Opcode = 0x32
	OpDiv Opcode = 0x33
	OpRem Opcode = 0x34
	OpNeg Opcode = 0x35
)

// Comparisons (pop two, push int 1 or 0)
const (
	OpCmpEq Opcode = 0x40
	OpCmpNe Opcode = 0x41
	OpCmpLt Opcode = 0x42
	OpCmpGe Opcode = 0x43
	OpCmpGt Opcode = 0x44
	OpCmpLe Opcode = 0x45
)

// Control flow. Offsets are signed 16-bit, relative to the position just
// past the operand.
const (
	OpJump          Opcode = 0x50 // OpJump <offset:i16>
	OpJumpIfZero    Opcode = 0x51 // pop int; jump when zero: OpJumpIfZero <offset:i16>
	OpJumpIfNonZero Opcode = 0x52 // pop int; jump when nonzero: OpJumpIfNonZero <offset:i16>
)

// Field access (literal operand is a field reference)
const (
	OpGetField  Opcode = 0x60 // pop object, push field: OpGetField <ref:u16>
	OpPutField  Opcode = 0x61 // pop value, object; store: OpPutField <ref:u16>
	OpGetStatic Opcode = 0x62 // push static field: OpGetStatic <ref:u16>
	OpPutStatic Opcode = 0x63 // pop value; store static: OpPutStatic <ref:u16>
)

// Objects and arrays
const (
	OpNew        Opcode = 0x70 // allocate instance: OpNew <class:u16>
	OpNewArray   Opcode = 0x71 // pop length, allocate: OpNewArray <elem:u16>
	OpArrayLoad  Opcode = 0x72 // pop index, array; push element
	OpArrayStore Opcode = 0x73 // pop value, index, array; store element
	OpArrayLen   Opcode = 0x74 // pop array; push length
)

// Invocation (literal operand is a method reference; arguments are
// popped right to left, the receiver below them for instance calls)
const (
	OpInvokeVirtual Opcode = 0x80 // dynamic dispatch: OpInvokeVirtual <ref:u16>
	OpInvokeSpecial Opcode = 0x81 // exact class dispatch: OpInvokeSpecial <ref:u16>
	OpInvokeStatic  Opcode = 0x82 // static dispatch: OpInvokeStatic <ref:u16>
)

// Returns and throw
const (
	OpReturn      Opcode = 0x90 // return void
	OpReturnValue Opcode = 0x91 // pop value, return it
	OpThrow       Opcode = 0x92 // pop exception object, throw it
)

var opcodeNames = map[Opcode]string{
	OpNop: "nop", OpPop: "pop", OpDup: "dup",
	OpPushNull: "push_null", OpPushInt: "push_int", OpPushConst: "push_const",
	OpLoad: "load", OpStore: "store",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpRem: "rem", OpNeg: "neg",
	OpCmpEq: "cmp_eq", OpCmpNe: "cmp_ne", OpCmpLt: "cmp_lt",
	OpCmpGe: "cmp_ge", OpCmpGt: "cmp_gt", OpCmpLe: "cmp_le",
	OpJump: "jump", OpJumpIfZero: "jump_if_zero", OpJumpIfNonZero: "jump_if_nonzero",
	OpGetField: "get_field", OpPutField: "put_field",
	OpGetStatic: "get_static", OpPutStatic: "put_static",
	OpNew: "new", OpNewArray: "new_array",
	OpArrayLoad: "array_load", OpArrayStore: "array_store", OpArrayLen: "array_len",
	OpInvokeVirtual: "invoke_virtual", OpInvokeSpecial: "invoke_special",
	OpInvokeStatic: "invoke_static",
	OpReturn: "return", OpReturnValue: "return_value", OpThrow: "throw",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op_%#02x", byte(op))
}

// OperandWidth returns the number of operand bytes following the opcode.
func OperandWidth(op Opcode) int {
	switch op {
	case OpLoad, OpStore:
		return 1
	case OpPushConst, OpJump, OpJumpIfZero, OpJumpIfNonZero,
		OpGetField, OpPutField, OpGetStatic, OpPutStatic,
		OpNew, OpNewArray,
		OpInvokeVirtual, OpInvokeSpecial, OpInvokeStatic:
		return 2
	case OpPushInt:
		return 4
	}
	return 0
}
