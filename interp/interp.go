package interp

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/henrybell/cloud-debug-java/classfile"
	"github.com/henrybell/cloud-debug-java/jvm"
)

// ---------------------------------------------------------------------------
// Interpreter: one supervised activation
//
// An Interpreter runs exactly one method body with its own locals and
// operand stack. Nested calls leave the engine through the supervisor,
// which owns the frame bookkeeping across activations. Malformed code
// surfaces as an internal-fault error naming the method and offset;
// debuggee-level faults (null dereference, division by zero, bad array
// index) surface as thrown exceptions.
// ---------------------------------------------------------------------------

// Practical ceiling for a single allocation request, enforced by the
// supervisor's array hook; kept here as the documented reference point.
const MaxReasonableArrayLength = 1 << 20

// Interpreter executes one method activation.
type Interpreter struct {
	method   jvm.Method
	body     *classfile.MethodBody
	receiver jvm.Value
	args     []jvm.Value
	resolver jvm.Resolver
	sup      Supervisor

	locals []jvm.Value
	stack  []jvm.Value
	sp     int
	pc     int
	opPC   int
}

// NewInterpreter prepares an activation for the given method body. The
// receiver is ignored for static methods.
func NewInterpreter(method jvm.Method, body *classfile.MethodBody, receiver jvm.Value, args []jvm.Value, resolver jvm.Resolver, sup Supervisor) *Interpreter {
	return &Interpreter{
		method:   method,
		body:     body,
		receiver: receiver,
		args:     args,
		resolver: resolver,
		sup:      sup,
	}
}

// Run executes the activation to completion and returns its result.
func (ip *Interpreter) Run() jvm.Result {
	if err := ip.setupFrame(); err != nil {
		return jvm.ErrorResult(err)
	}
	return ip.loop()
}

func (ip *Interpreter) setupFrame() *jvm.Error {
	needed := len(ip.args)
	if !ip.method.Static {
		needed++
	}
	if needed > ip.body.MaxLocals {
		return ip.fault("frame too small: %d locals for %d arguments", ip.body.MaxLocals, needed)
	}
	ip.locals = make([]jvm.Value, ip.body.MaxLocals)
	slot := 0
	if !ip.method.Static {
		ip.locals[0] = ip.receiver
		slot = 1
	}
	for _, a := range ip.args {
		ip.locals[slot] = a
		slot++
	}
	ip.stack = make([]jvm.Value, ip.body.MaxStack)
	return nil
}

func (ip *Interpreter) loop() jvm.Result {
	code := ip.body.Code
	for {
		ip.opPC = ip.pc
		if ip.pc < 0 || ip.pc >= len(code) {
			return jvm.ErrorResult(ip.fault("control fell outside the method body"))
		}
		if veto := ip.sup.InstructionAllowed(); veto != nil {
			return jvm.ErrorResult(veto)
		}

		op := classfile.Opcode(code[ip.pc])
		width := classfile.OperandWidth(op)
		if ip.pc+1+width > len(code) {
			return jvm.ErrorResult(ip.fault("truncated %s", op))
		}
		base := ip.pc + 1
		ip.pc += 1 + width

		switch op {
		case classfile.OpNop:

		case classfile.OpPop:
			if _, err := ip.pop(); err != nil {
				return jvm.ErrorResult(err)
			}

		case classfile.OpDup:
			v, err := ip.pop()
			if err != nil {
				return jvm.ErrorResult(err)
			}
			if err := ip.push2(v, v); err != nil {
				return jvm.ErrorResult(err)
			}

		case classfile.OpPushNull:
			if err := ip.push(jvm.Null()); err != nil {
				return jvm.ErrorResult(err)
			}

		case classfile.OpPushInt:
			v := int32(binary.LittleEndian.Uint32(code[base:]))
			if err := ip.push(jvm.Int(v)); err != nil {
				return jvm.ErrorResult(err)
			}

		case classfile.OpPushConst:
			lit, err := ip.literal(int(binary.LittleEndian.Uint16(code[base:])))
			if err != nil {
				return jvm.ErrorResult(err)
			}
			v, err := ip.literalValue(lit)
			if err != nil {
				return jvm.ErrorResult(err)
			}
			if err := ip.push(v); err != nil {
				return jvm.ErrorResult(err)
			}

		case classfile.OpLoad:
			slot := int(code[base])
			if slot >= len(ip.locals) {
				return jvm.ErrorResult(ip.fault("local slot %d out of range", slot))
			}
			if err := ip.push(ip.locals[slot]); err != nil {
				return jvm.ErrorResult(err)
			}

		case classfile.OpStore:
			slot := int(code[base])
			if slot >= len(ip.locals) {
				return jvm.ErrorResult(ip.fault("local slot %d out of range", slot))
			}
			v, err := ip.pop()
			if err != nil {
				return jvm.ErrorResult(err)
			}
			ip.locals[slot] = v

		case classfile.OpAdd, classfile.OpSub, classfile.OpMul, classfile.OpDiv, classfile.OpRem:
			b, err := ip.pop()
			if err != nil {
				return jvm.ErrorResult(err)
			}
			a, err := ip.pop()
			if err != nil {
				return jvm.ErrorResult(err)
			}
			v, res, ok := ip.arithmetic(op, a, b)
			if !ok {
				return res
			}
			if err := ip.push(v); err != nil {
				return jvm.ErrorResult(err)
			}

		case classfile.OpNeg:
			a, err := ip.pop()
			if err != nil {
				return jvm.ErrorResult(err)
			}
			if !a.Kind().IsNumeric() {
				return jvm.ErrorResult(ip.fault("negating a %s", a.Kind()))
			}
			var v jvm.Value
			switch a.Kind() {
			case jvm.KindFloat, jvm.KindDouble:
				v = jvm.Double(-a.AsDouble())
			case jvm.KindLong:
				v = jvm.Long(-a.Long())
			default:
				v = jvm.Int(-a.Int())
			}
			if err := ip.push(v); err != nil {
				return jvm.ErrorResult(err)
			}

		case classfile.OpCmpEq, classfile.OpCmpNe, classfile.OpCmpLt,
			classfile.OpCmpGe, classfile.OpCmpGt, classfile.OpCmpLe:
			b, err := ip.pop()
			if err != nil {
				return jvm.ErrorResult(err)
			}
			a, err := ip.pop()
			if err != nil {
				return jvm.ErrorResult(err)
			}
			truth, ferr := ip.compare(op, a, b)
			if ferr != nil {
				return jvm.ErrorResult(ferr)
			}
			v := jvm.Int(0)
			if truth {
				v = jvm.Int(1)
			}
			if err := ip.push(v); err != nil {
				return jvm.ErrorResult(err)
			}

		case classfile.OpJump:
			ip.pc += int(int16(binary.LittleEndian.Uint16(code[base:])))

		case classfile.OpJumpIfZero, classfile.OpJumpIfNonZero:
			v, err := ip.pop()
			if err != nil {
				return jvm.ErrorResult(err)
			}
			if v.Kind() == jvm.KindObject {
				return jvm.ErrorResult(ip.fault("conditional jump on a reference"))
			}
			zero := v.AsLong() == 0
			if (op == classfile.OpJumpIfZero) == zero {
				ip.pc += int(int16(binary.LittleEndian.Uint16(code[base:])))
			}

		case classfile.OpGetField:
			lit, err := ip.literal(int(binary.LittleEndian.Uint16(code[base:])))
			if err != nil {
				return jvm.ErrorResult(err)
			}
			ref := lit.AsFieldRef()
			obj, res, ok := ip.popObject("reading field " + ref.Name)
			if !ok {
				return res
			}
			if err := ip.push(obj.GetField(ref.Name, ref.Descriptor)); err != nil {
				return jvm.ErrorResult(err)
			}

		case classfile.OpPutField:
			lit, err := ip.literal(int(binary.LittleEndian.Uint16(code[base:])))
			if err != nil {
				return jvm.ErrorResult(err)
			}
			ref := lit.AsFieldRef()
			v, err := ip.pop()
			if err != nil {
				return jvm.ErrorResult(err)
			}
			obj, res, ok := ip.popObject("writing field " + ref.Name)
			if !ok {
				return res
			}
			if veto := ip.sup.FieldModifyAllowed(obj, ref); veto != nil {
				return jvm.ErrorResult(veto)
			}
			if !jvm.AssignableTo(v, ref.Descriptor) {
				return jvm.ErrorResult(ip.fault("storing %s into field %s of type %s",
					v.Kind(), ref.Name, jvm.BinaryName(ref.Descriptor)))
			}
			obj.SetField(ref.Name, v)

		case classfile.OpGetStatic:
			lit, err := ip.literal(int(binary.LittleEndian.Uint16(code[base:])))
			if err != nil {
				return jvm.ErrorResult(err)
			}
			ref := lit.AsFieldRef()
			cls, rerr := ip.resolver.FindClassBySignature(ref.Class)
			if rerr != nil {
				return jvm.ErrorResult(jvm.Errorf(jvm.ErrClassResolution, "%v", rerr))
			}
			if err := ip.push(cls.Statics().GetField(ref.Name, ref.Descriptor)); err != nil {
				return jvm.ErrorResult(err)
			}

		case classfile.OpPutStatic:
			lit, err := ip.literal(int(binary.LittleEndian.Uint16(code[base:])))
			if err != nil {
				return jvm.ErrorResult(err)
			}
			ref := lit.AsFieldRef()
			v, err := ip.pop()
			if err != nil {
				return jvm.ErrorResult(err)
			}
			cls, rerr := ip.resolver.FindClassBySignature(ref.Class)
			if rerr != nil {
				return jvm.ErrorResult(jvm.Errorf(jvm.ErrClassResolution, "%v", rerr))
			}
			if veto := ip.sup.FieldModifyAllowed(cls.Statics(), ref); veto != nil {
				return jvm.ErrorResult(veto)
			}
			cls.Statics().SetField(ref.Name, v)

		case classfile.OpNew:
			lit, err := ip.literal(int(binary.LittleEndian.Uint16(code[base:])))
			if err != nil {
				return jvm.ErrorResult(err)
			}
			cls, rerr := ip.resolver.FindClassBySignature(lit.Class)
			if rerr != nil {
				return jvm.ErrorResult(jvm.Errorf(jvm.ErrClassResolution, "%v", rerr))
			}
			obj := jvm.NewObject(cls)
			ip.sup.ObjectAllocated(obj)
			if err := ip.push(jvm.Ref(obj)); err != nil {
				return jvm.ErrorResult(err)
			}

		case classfile.OpNewArray:
			lit, err := ip.literal(int(binary.LittleEndian.Uint16(code[base:])))
			if err != nil {
				return jvm.ErrorResult(err)
			}
			length, err := ip.pop()
			if err != nil {
				return jvm.ErrorResult(err)
			}
			if length.Kind() != jvm.KindInt {
				return jvm.ErrorResult(ip.fault("array length is a %s", length.Kind()))
			}
			n := int(length.Int())
			if n < 0 {
				return jvm.ErrorResult(ip.fault("array length %d is negative", n))
			}
			if veto := ip.sup.NewArrayAllowed(n); veto != nil {
				return jvm.ErrorResult(veto)
			}
			cls, rerr := ip.resolver.FindClassBySignature("[" + lit.Class)
			if rerr != nil {
				return jvm.ErrorResult(jvm.Errorf(jvm.ErrClassResolution, "%v", rerr))
			}
			arr := jvm.NewArray(cls, lit.Class, n)
			ip.sup.ObjectAllocated(arr)
			if err := ip.push(jvm.Ref(arr)); err != nil {
				return jvm.ErrorResult(err)
			}

		case classfile.OpArrayLoad:
			idx, err := ip.pop()
			if err != nil {
				return jvm.ErrorResult(err)
			}
			arr, res, ok := ip.popArray("reading")
			if !ok {
				return res
			}
			i := int(idx.AsLong())
			if i < 0 || i >= arr.Len() {
				return ip.throwBounds(i, arr.Len())
			}
			if err := ip.push(arr.Elem(i)); err != nil {
				return jvm.ErrorResult(err)
			}

		case classfile.OpArrayStore:
			v, err := ip.pop()
			if err != nil {
				return jvm.ErrorResult(err)
			}
			idx, err := ip.pop()
			if err != nil {
				return jvm.ErrorResult(err)
			}
			arr, res, ok := ip.popArray("writing")
			if !ok {
				return res
			}
			if veto := ip.sup.ArrayModifyAllowed(arr); veto != nil {
				return jvm.ErrorResult(veto)
			}
			i := int(idx.AsLong())
			if i < 0 || i >= arr.Len() {
				return ip.throwBounds(i, arr.Len())
			}
			if !jvm.AssignableTo(v, arr.ElemDescriptor()) {
				return jvm.ErrorResult(ip.fault("storing %s into %s array",
					v.Kind(), jvm.BinaryName(arr.ElemDescriptor())))
			}
			arr.SetElem(i, v)

		case classfile.OpArrayLen:
			arr, res, ok := ip.popArray("measuring")
			if !ok {
				return res
			}
			if err := ip.push(jvm.Int(int32(arr.Len()))); err != nil {
				return jvm.ErrorResult(err)
			}

		case classfile.OpInvokeVirtual, classfile.OpInvokeSpecial, classfile.OpInvokeStatic:
			lit, err := ip.literal(int(binary.LittleEndian.Uint16(code[base:])))
			if err != nil {
				return jvm.ErrorResult(err)
			}
			ref := lit.AsMethodRef()
			res, ok := ip.invoke(op, ref)
			if !ok {
				return res
			}

		case classfile.OpReturn:
			return jvm.ValueResult(jvm.Void())

		case classfile.OpReturnValue:
			v, err := ip.pop()
			if err != nil {
				return jvm.ErrorResult(err)
			}
			return jvm.ValueResult(v)

		case classfile.OpThrow:
			v, err := ip.pop()
			if err != nil {
				return jvm.ErrorResult(err)
			}
			if v.Kind() != jvm.KindObject {
				return jvm.ErrorResult(ip.fault("throwing a %s", v.Kind()))
			}
			if v.IsNull() {
				return ip.throwRuntime(jvm.SigNullPointerException, "throw on a null reference")
			}
			return jvm.ThrownResult(v.Object())

		default:
			return jvm.ErrorResult(ip.fault("unknown opcode %#02x", byte(op)))
		}
	}
}

// invoke pops arguments and receiver, delegates to the supervisor, and
// pushes a non-void return value. ok=false carries the frame's final
// result (propagated error or unwinding throw).
func (ip *Interpreter) invoke(op classfile.Opcode, ref classfile.MethodRef) (jvm.Result, bool) {
	argc, derr := jvm.ParamCount(ref.Descriptor)
	if derr != nil {
		return jvm.ErrorResult(ip.fault("%v", derr)), false
	}
	args := make([]jvm.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		v, err := ip.pop()
		if err != nil {
			return jvm.ErrorResult(err), false
		}
		args[i] = v
	}

	receiver := jvm.Null()
	if op != classfile.OpInvokeStatic {
		v, err := ip.pop()
		if err != nil {
			return jvm.ErrorResult(err), false
		}
		receiver = v
	}
	nonvirtual := op != classfile.OpInvokeVirtual

	result := ip.sup.InvokeNested(nonvirtual, ref, receiver, args)
	if !result.IsValue() {
		return result, false
	}
	_, ret, derr2 := jvm.ParseMethodDescriptor(ref.Descriptor)
	if derr2 != nil {
		return jvm.ErrorResult(ip.fault("%v", derr2)), false
	}
	if ret == "V" {
		return jvm.Result{}, true
	}
	if err := ip.push(result.Value()); err != nil {
		return jvm.ErrorResult(err), false
	}
	return jvm.Result{}, true
}

// ---------------------------------------------------------------------------
// Frame mechanics
// ---------------------------------------------------------------------------

func (ip *Interpreter) push(v jvm.Value) *jvm.Error {
	if ip.sp >= len(ip.stack) {
		return ip.fault("operand stack overflow")
	}
	ip.stack[ip.sp] = v
	ip.sp++
	return nil
}

func (ip *Interpreter) push2(a, b jvm.Value) *jvm.Error {
	if err := ip.push(a); err != nil {
		return err
	}
	return ip.push(b)
}

func (ip *Interpreter) pop() (jvm.Value, *jvm.Error) {
	if ip.sp == 0 {
		return jvm.Value{}, ip.fault("operand stack underflow")
	}
	ip.sp--
	return ip.stack[ip.sp], nil
}

// popObject pops a non-null reference. ok=false carries the frame's
// final result: an internal fault for a non-reference, a thrown
// NullPointerException for null.
func (ip *Interpreter) popObject(context string) (*jvm.Object, jvm.Result, bool) {
	v, err := ip.pop()
	if err != nil {
		return nil, jvm.ErrorResult(err), false
	}
	if v.Kind() != jvm.KindObject {
		return nil, jvm.ErrorResult(ip.fault("%s on a %s", context, v.Kind())), false
	}
	if v.IsNull() {
		res := ip.throwRuntime(jvm.SigNullPointerException, context+" on a null reference")
		return nil, res, false
	}
	return v.Object(), jvm.Result{}, true
}

func (ip *Interpreter) popArray(context string) (*jvm.Object, jvm.Result, bool) {
	obj, res, ok := ip.popObject(context + " an array element")
	if !ok {
		return nil, res, false
	}
	if !obj.IsArray() {
		return nil, jvm.ErrorResult(ip.fault("%s an array element of a non-array", context)), false
	}
	return obj, jvm.Result{}, true
}

func (ip *Interpreter) literal(index int) (classfile.Literal, *jvm.Error) {
	lit, err := ip.body.Literal(index)
	if err != nil {
		return classfile.Literal{}, ip.fault("%v", err)
	}
	return lit, nil
}

func (ip *Interpreter) literalValue(lit classfile.Literal) (jvm.Value, *jvm.Error) {
	switch lit.Kind {
	case classfile.LitInt:
		return jvm.Int(int32(lit.Int)), nil
	case classfile.LitLong:
		return jvm.Long(lit.Int), nil
	case classfile.LitDouble:
		return jvm.Double(lit.Num), nil
	case classfile.LitString:
		strCls, err := ip.resolver.FindClassBySignature(jvm.SigString)
		if err != nil {
			return jvm.Value{}, jvm.Errorf(jvm.ErrClassResolution, "%v", err)
		}
		obj := jvm.NewStringObject(strCls, lit.Str)
		ip.sup.ObjectAllocated(obj)
		return jvm.Ref(obj), nil
	}
	return jvm.Value{}, ip.fault("literal kind %d is not pushable", lit.Kind)
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

// arithmetic applies a binary numeric op with promotion: any floating
// operand widens the operation to double, any long operand to long,
// everything else runs as 32-bit int. Integer division and remainder
// by zero throw; floating division follows IEEE. ok=false carries the
// frame's final result.
func (ip *Interpreter) arithmetic(op classfile.Opcode, a, b jvm.Value) (jvm.Value, jvm.Result, bool) {
	if !a.Kind().IsNumeric() || !b.Kind().IsNumeric() {
		return jvm.Value{}, jvm.ErrorResult(ip.fault("%s on %s and %s", op, a.Kind(), b.Kind())), false
	}
	floating := a.Kind() == jvm.KindFloat || a.Kind() == jvm.KindDouble ||
		b.Kind() == jvm.KindFloat || b.Kind() == jvm.KindDouble
	if floating {
		x, y := a.AsDouble(), b.AsDouble()
		var r float64
		switch op {
		case classfile.OpAdd:
			r = x + y
		case classfile.OpSub:
			r = x - y
		case classfile.OpMul:
			r = x * y
		case classfile.OpDiv:
			r = x / y
		case classfile.OpRem:
			r = math.Mod(x, y)
		}
		return jvm.Double(r), jvm.Result{}, true
	}

	if (op == classfile.OpDiv || op == classfile.OpRem) && b.AsLong() == 0 {
		return jvm.Value{}, ip.throwRuntime(jvm.SigArithmeticException, "/ by zero"), false
	}
	wide := a.Kind() == jvm.KindLong || b.Kind() == jvm.KindLong
	x, y := a.AsLong(), b.AsLong()
	var r int64
	switch op {
	case classfile.OpAdd:
		r = x + y
	case classfile.OpSub:
		r = x - y
	case classfile.OpMul:
		r = x * y
	case classfile.OpDiv:
		r = x / y
	case classfile.OpRem:
		r = x % y
	}
	if wide {
		return jvm.Long(r), jvm.Result{}, true
	}
	return jvm.Int(int32(r)), jvm.Result{}, true
}

func (ip *Interpreter) compare(op classfile.Opcode, a, b jvm.Value) (bool, *jvm.Error) {
	aRef := a.Kind() == jvm.KindObject
	bRef := b.Kind() == jvm.KindObject
	if aRef || bRef {
		if !aRef || !bRef {
			return false, ip.fault("%s on %s and %s", op, a.Kind(), b.Kind())
		}
		same := a.Object() == b.Object()
		switch op {
		case classfile.OpCmpEq:
			return same, nil
		case classfile.OpCmpNe:
			return !same, nil
		}
		return false, ip.fault("%s on references", op)
	}

	if a.Kind() == jvm.KindBoolean || b.Kind() == jvm.KindBoolean {
		if a.Kind() != b.Kind() {
			return false, ip.fault("%s on %s and %s", op, a.Kind(), b.Kind())
		}
		switch op {
		case classfile.OpCmpEq:
			return a.Bool() == b.Bool(), nil
		case classfile.OpCmpNe:
			return a.Bool() != b.Bool(), nil
		}
		return false, ip.fault("%s on booleans", op)
	}

	if a.Kind() == jvm.KindFloat || a.Kind() == jvm.KindDouble ||
		b.Kind() == jvm.KindFloat || b.Kind() == jvm.KindDouble {
		x, y := a.AsDouble(), b.AsDouble()
		switch op {
		case classfile.OpCmpEq:
			return x == y, nil
		case classfile.OpCmpNe:
			return x != y, nil
		case classfile.OpCmpLt:
			return x < y, nil
		case classfile.OpCmpGe:
			return x >= y, nil
		case classfile.OpCmpGt:
			return x > y, nil
		case classfile.OpCmpLe:
			return x <= y, nil
		}
	}

	x, y := a.AsLong(), b.AsLong()
	switch op {
	case classfile.OpCmpEq:
		return x == y, nil
	case classfile.OpCmpNe:
		return x != y, nil
	case classfile.OpCmpLt:
		return x < y, nil
	case classfile.OpCmpGe:
		return x >= y, nil
	case classfile.OpCmpGt:
		return x > y, nil
	case classfile.OpCmpLe:
		return x <= y, nil
	}
	return false, ip.fault("unknown comparison %s", op)
}

// ---------------------------------------------------------------------------
// Faults and thrown exceptions
// ---------------------------------------------------------------------------

func (ip *Interpreter) fault(format string, args ...any) *jvm.Error {
	msg := fmt.Sprintf(format, args...)
	return jvm.Errorf(jvm.ErrInternalFault, "%s (at offset %d in %s)",
		msg, ip.opPC, ip.method.DisplayName())
}

func (ip *Interpreter) throwBounds(index, length int) jvm.Result {
	return ip.throwRuntime(jvm.SigArrayIndexOutOfBounds,
		fmt.Sprintf("index %d out of bounds for length %d", index, length))
}

// throwRuntime allocates an exception object (reported to the
// supervisor like any other allocation) and returns it as a thrown
// result.
func (ip *Interpreter) throwRuntime(signature, message string) jvm.Result {
	cls, err := ip.resolver.FindClassBySignature(signature)
	if err != nil {
		cls = jvm.NewClass(signature, nil)
	}
	exc := jvm.NewObject(cls)
	if strCls, serr := ip.resolver.FindClassBySignature(jvm.SigString); serr == nil {
		msg := jvm.NewStringObject(strCls, message)
		ip.sup.ObjectAllocated(msg)
		exc.SetField("message", jvm.Ref(msg))
	}
	ip.sup.ObjectAllocated(exc)
	return jvm.ThrownResult(exc)
}
