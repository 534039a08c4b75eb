package classfile

import (
	"encoding/binary"
	"fmt"

	"github.com/henrybell/cloud-debug-java/jvm"
)

// ---------------------------------------------------------------------------
// Builder: programmatic method body assembly
// ---------------------------------------------------------------------------

// Default frame sizes applied when the author does not set them.
const (
	defaultMaxStack  = 32
	defaultMaxLocals = 16
)

// Builder assembles a MethodBody instruction by instruction. Literal
// pool entries are interned, jump targets are expressed through labels
// with forward references patched at Mark time.
type Builder struct {
	name       string
	descriptor string
	static     bool
	maxStack   int
	maxLocals  int
	literals   []Literal
	code       []byte
}

// NewBuilder starts a body for the given method name and descriptor.
func NewBuilder(name, descriptor string) *Builder {
	return &Builder{name: name, descriptor: descriptor}
}

func (b *Builder) SetStatic(static bool) *Builder {
	b.static = static
	return b
}

func (b *Builder) SetMaxStack(n int) *Builder {
	b.maxStack = n
	return b
}

func (b *Builder) SetMaxLocals(n int) *Builder {
	b.maxLocals = n
	return b
}

// AddLiteral interns a literal and returns its pool index.
func (b *Builder) AddLiteral(lit Literal) int {
	for i, existing := range b.literals {
		if existing == lit {
			return i
		}
	}
	b.literals = append(b.literals, lit)
	return len(b.literals) - 1
}

// Len returns the current code length, which is the offset the next
// emitted instruction will occupy.
func (b *Builder) Len() int { return len(b.code) }

func (b *Builder) Emit(op Opcode) {
	b.code = append(b.code, byte(op))
}

func (b *Builder) EmitByte(op Opcode, operand byte) {
	b.code = append(b.code, byte(op), operand)
}

func (b *Builder) EmitUint16(op Opcode, operand uint16) {
	b.code = append(b.code, byte(op))
	b.code = binary.LittleEndian.AppendUint16(b.code, operand)
}

func (b *Builder) EmitInt32(op Opcode, operand int32) {
	b.code = append(b.code, byte(op))
	b.code = binary.LittleEndian.AppendUint32(b.code, uint32(operand))
}

// PushInt emits an inline 32-bit integer push.
func (b *Builder) PushInt(v int32) { b.EmitInt32(OpPushInt, v) }

// PushLong interns a long literal and pushes it.
func (b *Builder) PushLong(v int64) {
	b.EmitUint16(OpPushConst, uint16(b.AddLiteral(LongLiteral(v))))
}

// PushDouble interns a double literal and pushes it.
func (b *Builder) PushDouble(v float64) {
	b.EmitUint16(OpPushConst, uint16(b.AddLiteral(DoubleLiteral(v))))
}

// PushString interns a string literal and pushes it.
func (b *Builder) PushString(s string) {
	b.EmitUint16(OpPushConst, uint16(b.AddLiteral(StringLiteral(s))))
}

func (b *Builder) Load(slot int)  { b.EmitByte(OpLoad, byte(slot)) }
func (b *Builder) Store(slot int) { b.EmitByte(OpStore, byte(slot)) }

// Invoke emits one of the invoke opcodes against a method reference.
func (b *Builder) Invoke(op Opcode, ref MethodRef) {
	b.EmitUint16(op, uint16(b.AddLiteral(MethodLiteral(ref))))
}

// Field emits one of the field opcodes against a field reference.
func (b *Builder) Field(op Opcode, ref FieldRef) {
	b.EmitUint16(op, uint16(b.AddLiteral(FieldLiteral(ref))))
}

// New emits an allocation of the given class signature.
func (b *Builder) New(classSignature string) {
	b.EmitUint16(OpNew, uint16(b.AddLiteral(ClassLiteral(classSignature))))
}

// NewArray emits an array allocation of the given element descriptor;
// the length is taken from the stack.
func (b *Builder) NewArray(elemDescriptor string) {
	b.EmitUint16(OpNewArray, uint16(b.AddLiteral(ClassLiteral(elemDescriptor))))
}

// Label is a jump target, possibly not yet placed. Forward references
// are patched when the label is marked.
type Label struct {
	resolved bool
	position int
	refs     []int
}

func (b *Builder) NewLabel() *Label {
	return &Label{refs: make([]int, 0, 2)}
}

// Mark places the label at the current position and patches every
// forward reference recorded so far.
func (b *Builder) Mark(label *Label) {
	if label.resolved {
		panic("classfile: label already marked")
	}
	label.resolved = true
	label.position = len(b.code)
	for _, ref := range label.refs {
		offset := label.position - (ref + 2)
		binary.LittleEndian.PutUint16(b.code[ref:], uint16(int16(offset)))
	}
	label.refs = nil
}

// EmitJump emits a jump opcode targeting the label. Backward jumps are
// encoded immediately, forward jumps leave a placeholder for Mark.
func (b *Builder) EmitJump(op Opcode, label *Label) {
	b.code = append(b.code, byte(op))
	if label.resolved {
		offset := label.position - (len(b.code) + 2)
		b.code = binary.LittleEndian.AppendUint16(b.code, uint16(int16(offset)))
		return
	}
	label.refs = append(label.refs, len(b.code))
	b.code = append(b.code, 0, 0)
}

// Build finalizes the body. Frame sizes fall back to generous defaults
// when not set explicitly; the local count never goes below what the
// descriptor's parameters (plus a receiver slot) need.
func (b *Builder) Build() *MethodBody {
	maxStack := b.maxStack
	if maxStack == 0 {
		maxStack = defaultMaxStack
	}
	maxLocals := b.maxLocals
	if maxLocals == 0 {
		maxLocals = defaultMaxLocals
	}
	if n, err := jvm.ParamCount(b.descriptor); err == nil {
		if need := n + 1; maxLocals < need {
			maxLocals = need
		}
	}
	if len(b.literals) > 0xFFFF {
		panic(fmt.Sprintf("classfile: literal pool overflow in %s%s", b.name, b.descriptor))
	}
	return &MethodBody{
		Name:       b.name,
		Descriptor: b.descriptor,
		Static:     b.static,
		MaxStack:   maxStack,
		MaxLocals:  maxLocals,
		Literals:   b.literals,
		Code:       b.code,
	}
}
