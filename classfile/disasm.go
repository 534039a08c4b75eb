package classfile

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble renders a method body's code for diagnostics, one
// instruction per line with offsets and decoded operands.
func Disassemble(m *MethodBody) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s%s  stack=%d locals=%d\n", m.Name, m.Descriptor, m.MaxStack, m.MaxLocals)
	pc := 0
	for pc < len(m.Code) {
		op := Opcode(m.Code[pc])
		width := OperandWidth(op)
		if pc+1+width > len(m.Code) {
			fmt.Fprintf(&sb, "%4d: %s <truncated>\n", pc, op)
			break
		}
		switch width {
		case 0:
			fmt.Fprintf(&sb, "%4d: %s\n", pc, op)
		case 1:
			fmt.Fprintf(&sb, "%4d: %s %d\n", pc, op, m.Code[pc+1])
		case 2:
			raw := binary.LittleEndian.Uint16(m.Code[pc+1:])
			switch op {
			case OpJump, OpJumpIfZero, OpJumpIfNonZero:
				target := pc + 3 + int(int16(raw))
				fmt.Fprintf(&sb, "%4d: %s -> %d\n", pc, op, target)
			default:
				fmt.Fprintf(&sb, "%4d: %s %s\n", pc, op, literalComment(m, int(raw)))
			}
		case 4:
			v := int32(binary.LittleEndian.Uint32(m.Code[pc+1:]))
			fmt.Fprintf(&sb, "%4d: %s %d\n", pc, op, v)
		}
		pc += 1 + width
	}
	return sb.String()
}

func literalComment(m *MethodBody, index int) string {
	lit, err := m.Literal(index)
	if err != nil {
		return fmt.Sprintf("#%d <bad index>", index)
	}
	switch lit.Kind {
	case LitInt:
		return fmt.Sprintf("#%d (%d)", index, lit.Int)
	case LitLong:
		return fmt.Sprintf("#%d (%dL)", index, lit.Int)
	case LitDouble:
		return fmt.Sprintf("#%d (%g)", index, lit.Num)
	case LitString:
		return fmt.Sprintf("#%d (%q)", index, lit.Str)
	case LitClass:
		return fmt.Sprintf("#%d (%s)", index, lit.Class)
	case LitMethodRef:
		return fmt.Sprintf("#%d (%s%s)", index, lit.AsMethodRef().Display(), lit.Desc)
	case LitFieldRef:
		return fmt.Sprintf("#%d (%s)", index, lit.AsFieldRef().Display())
	}
	return fmt.Sprintf("#%d", index)
}
