package interp

import (
	"math"
	"strings"
	"testing"

	"github.com/henrybell/cloud-debug-java/classfile"
	"github.com/henrybell/cloud-debug-java/jvm"
)

const probeSig = "Lcom/test/Probe;"

// testSupervisor approves everything within its configured limits and
// records hook traffic for assertions.
type testSupervisor struct {
	instructions    int
	maxInstructions int // 0 means unlimited
	allocations     []*jvm.Object
	arrayLimit      int // 0 means unlimited
	denyFieldWrites bool
	denyArrayWrites bool
	onNested        func(nonvirtual bool, ref classfile.MethodRef, receiver jvm.Value, args []jvm.Value) jvm.Result
}

func (s *testSupervisor) InvokeNested(nonvirtual bool, ref classfile.MethodRef, receiver jvm.Value, args []jvm.Value) jvm.Result {
	if s.onNested == nil {
		return jvm.ErrorResult(jvm.Errorf(jvm.ErrInternalFault, "unexpected nested call to %s", ref.Name))
	}
	return s.onNested(nonvirtual, ref, receiver, args)
}

func (s *testSupervisor) InstructionAllowed() *jvm.Error {
	s.instructions++
	if s.maxInstructions > 0 && s.instructions > s.maxInstructions {
		return jvm.Errorf(jvm.ErrQuotaExceeded, "instruction budget exhausted")
	}
	return nil
}

func (s *testSupervisor) ObjectAllocated(obj *jvm.Object) {
	s.allocations = append(s.allocations, obj)
}

func (s *testSupervisor) NewArrayAllowed(length int) *jvm.Error {
	if s.arrayLimit > 0 && length > s.arrayLimit {
		return jvm.Errorf(jvm.ErrQuotaExceeded, "array of %d elements exceeds the limit", length)
	}
	return nil
}

func (s *testSupervisor) ArrayModifyAllowed(arr *jvm.Object) *jvm.Error {
	if s.denyArrayWrites {
		return jvm.Errorf(jvm.ErrIllegalMutation, "array write refused")
	}
	return nil
}

func (s *testSupervisor) FieldModifyAllowed(target *jvm.Object, field classfile.FieldRef) *jvm.Error {
	if s.denyFieldWrites {
		return jvm.Errorf(jvm.ErrIllegalMutation, "field write refused")
	}
	return nil
}

func testRegistry(t *testing.T) (*jvm.Registry, *jvm.Class) {
	t.Helper()
	reg := jvm.NewRegistry()
	object, ok := reg.Lookup(jvm.SigObject)
	if !ok {
		t.Fatal("registry is missing java.lang.Object")
	}
	probe := jvm.NewClass(probeSig, object,
		jvm.Method{Name: "run", Descriptor: "()I"},
		jvm.Method{Name: "add", Descriptor: "(II)I"},
	)
	reg.Register(probe)
	return reg, probe
}

func run(t *testing.T, reg *jvm.Registry, sup Supervisor, body *classfile.MethodBody, receiver jvm.Value, args ...jvm.Value) jvm.Result {
	t.Helper()
	method := jvm.Method{
		ClassSignature: probeSig,
		Name:           body.Name,
		Descriptor:     body.Descriptor,
		Static:         body.Static,
	}
	return NewInterpreter(method, body, receiver, args, reg, sup).Run()
}

func wantValue(t *testing.T, res jvm.Result, want jvm.Value) {
	t.Helper()
	if !res.IsValue() {
		t.Fatalf("result = %v, want value %v", res, want)
	}
	if got := res.Value(); got != want {
		t.Errorf("result value = %v, want %v", got, want)
	}
}

func wantErrorKind(t *testing.T, res jvm.Result, kind jvm.ErrorKind) *jvm.Error {
	t.Helper()
	if !res.IsError() {
		t.Fatalf("result = %v, want %v error", res, kind)
	}
	if res.Err().Kind != kind {
		t.Fatalf("error kind = %v, want %v (message %q)", res.Err().Kind, kind, res.Err().Message)
	}
	return res.Err()
}

func wantThrown(t *testing.T, res jvm.Result, classSignature string) *jvm.Object {
	t.Helper()
	if !res.IsThrown() {
		t.Fatalf("result = %v, want thrown %s", res, classSignature)
	}
	if got := res.Thrown().Class().Signature(); got != classSignature {
		t.Errorf("thrown class = %s, want %s", got, classSignature)
	}
	return res.Thrown()
}

func thrownMessage(t *testing.T, exc *jvm.Object) string {
	t.Helper()
	msg := exc.GetField("message", "Ljava/lang/String;")
	if msg.IsNull() || msg.Kind() != jvm.KindObject {
		t.Fatal("thrown exception has no message")
	}
	return msg.Object().StringValue()
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		emit func(b *classfile.Builder)
		want jvm.Value
	}{
		{
			name: "int multiply",
			emit: func(b *classfile.Builder) {
				b.PushInt(6)
				b.PushInt(7)
				b.Emit(classfile.OpMul)
			},
			want: jvm.Int(42),
		},
		{
			name: "int division truncates",
			emit: func(b *classfile.Builder) {
				b.PushInt(7)
				b.PushInt(2)
				b.Emit(classfile.OpDiv)
			},
			want: jvm.Int(3),
		},
		{
			name: "int remainder",
			emit: func(b *classfile.Builder) {
				b.PushInt(7)
				b.PushInt(3)
				b.Emit(classfile.OpRem)
			},
			want: jvm.Int(1),
		},
		{
			name: "int addition wraps",
			emit: func(b *classfile.Builder) {
				b.PushInt(math.MaxInt32)
				b.PushInt(1)
				b.Emit(classfile.OpAdd)
			},
			want: jvm.Int(math.MinInt32),
		},
		{
			name: "long promotion",
			emit: func(b *classfile.Builder) {
				b.PushLong(1 << 40)
				b.PushInt(2)
				b.Emit(classfile.OpMul)
			},
			want: jvm.Long(1 << 41),
		},
		{
			name: "double division",
			emit: func(b *classfile.Builder) {
				b.PushDouble(1)
				b.PushDouble(4)
				b.Emit(classfile.OpDiv)
			},
			want: jvm.Double(0.25),
		},
		{
			name: "double promotion from int",
			emit: func(b *classfile.Builder) {
				b.PushInt(3)
				b.PushDouble(0.5)
				b.Emit(classfile.OpMul)
			},
			want: jvm.Double(1.5),
		},
		{
			name: "negate int",
			emit: func(b *classfile.Builder) {
				b.PushInt(5)
				b.Emit(classfile.OpNeg)
			},
			want: jvm.Int(-5),
		},
		{
			name: "subtract to long",
			emit: func(b *classfile.Builder) {
				b.PushLong(10)
				b.PushLong(4)
				b.Emit(classfile.OpSub)
			},
			want: jvm.Long(6),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg, _ := testRegistry(t)
			b := classfile.NewBuilder("calc", "()D").SetStatic(true)
			tc.emit(b)
			b.Emit(classfile.OpReturnValue)
			res := run(t, reg, &testSupervisor{}, b.Build(), jvm.Null())
			wantValue(t, res, tc.want)
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	reg, _ := testRegistry(t)
	sup := &testSupervisor{}
	b := classfile.NewBuilder("boom", "()I").SetStatic(true)
	b.PushInt(1)
	b.PushInt(0)
	b.Emit(classfile.OpDiv)
	b.Emit(classfile.OpReturnValue)

	res := run(t, reg, sup, b.Build(), jvm.Null())
	exc := wantThrown(t, res, jvm.SigArithmeticException)
	if got := thrownMessage(t, exc); got != "/ by zero" {
		t.Errorf("message = %q, want %q", got, "/ by zero")
	}
	// The exception and its message string both go through the
	// allocation hook.
	if len(sup.allocations) != 2 {
		t.Errorf("allocations = %d, want 2", len(sup.allocations))
	}
}

func TestLoopSumsRange(t *testing.T) {
	reg, _ := testRegistry(t)
	b := classfile.NewBuilder("sum", "()I").SetStatic(true)
	// sum = 0; i = 1; while (i <= 5) { sum += i; i++ }
	b.PushInt(0)
	b.Store(1)
	b.PushInt(1)
	b.Store(0)
	loop := b.NewLabel()
	done := b.NewLabel()
	b.Mark(loop)
	b.Load(0)
	b.PushInt(5)
	b.Emit(classfile.OpCmpLe)
	b.EmitJump(classfile.OpJumpIfZero, done)
	b.Load(1)
	b.Load(0)
	b.Emit(classfile.OpAdd)
	b.Store(1)
	b.Load(0)
	b.PushInt(1)
	b.Emit(classfile.OpAdd)
	b.Store(0)
	b.EmitJump(classfile.OpJump, loop)
	b.Mark(done)
	b.Load(1)
	b.Emit(classfile.OpReturnValue)

	res := run(t, reg, &testSupervisor{}, b.Build(), jvm.Null())
	wantValue(t, res, jvm.Int(15))
}

func TestConditionalBranch(t *testing.T) {
	reg, _ := testRegistry(t)
	b := classfile.NewBuilder("pick", "(I)I").SetStatic(true)
	taken := b.NewLabel()
	b.Load(0)
	b.EmitJump(classfile.OpJumpIfNonZero, taken)
	b.PushInt(100)
	b.Emit(classfile.OpReturnValue)
	b.Mark(taken)
	b.PushInt(200)
	b.Emit(classfile.OpReturnValue)
	body := b.Build()

	res := run(t, reg, &testSupervisor{}, body, jvm.Null(), jvm.Int(0))
	wantValue(t, res, jvm.Int(100))
	res = run(t, reg, &testSupervisor{}, body, jvm.Null(), jvm.Int(1))
	wantValue(t, res, jvm.Int(200))
}

func TestReferenceEquality(t *testing.T) {
	reg, probe := testRegistry(t)
	b := classfile.NewBuilder("same", "(Lcom/test/Probe;Lcom/test/Probe;)I").SetStatic(true)
	b.Load(0)
	b.Load(1)
	b.Emit(classfile.OpCmpEq)
	b.Emit(classfile.OpReturnValue)
	body := b.Build()

	x := jvm.NewObject(probe)
	y := jvm.NewObject(probe)
	res := run(t, reg, &testSupervisor{}, body, jvm.Null(), jvm.Ref(x), jvm.Ref(x))
	wantValue(t, res, jvm.Int(1))
	res = run(t, reg, &testSupervisor{}, body, jvm.Null(), jvm.Ref(x), jvm.Ref(y))
	wantValue(t, res, jvm.Int(0))
	res = run(t, reg, &testSupervisor{}, body, jvm.Null(), jvm.Null(), jvm.Null())
	wantValue(t, res, jvm.Int(1))
}

func TestInstructionHookConsultedPerInstruction(t *testing.T) {
	reg, _ := testRegistry(t)
	sup := &testSupervisor{maxInstructions: 2}
	b := classfile.NewBuilder("calc", "()I").SetStatic(true)
	b.PushInt(6)
	b.PushInt(7)
	b.Emit(classfile.OpMul)
	b.Emit(classfile.OpReturnValue)

	res := run(t, reg, sup, b.Build(), jvm.Null())
	wantErrorKind(t, res, jvm.ErrQuotaExceeded)
	// Two grants plus the refused third consultation.
	if sup.instructions != 3 {
		t.Errorf("hook consultations = %d, want 3", sup.instructions)
	}
}

func TestStringLiteralReportsAllocation(t *testing.T) {
	reg, _ := testRegistry(t)
	sup := &testSupervisor{}
	b := classfile.NewBuilder("hi", "()Ljava/lang/String;").SetStatic(true)
	b.PushString("hi")
	b.Emit(classfile.OpReturnValue)

	res := run(t, reg, sup, b.Build(), jvm.Null())
	if !res.IsValue() {
		t.Fatalf("result = %v, want string value", res)
	}
	obj := res.Value().Object()
	if !obj.IsString() || obj.StringValue() != "hi" {
		t.Errorf("returned object = %v, want string %q", obj.Describe(), "hi")
	}
	if len(sup.allocations) != 1 || sup.allocations[0] != obj {
		t.Errorf("allocation hook saw %d objects, want the returned string", len(sup.allocations))
	}
}

func TestInstanceFieldRoundtrip(t *testing.T) {
	reg, probe := testRegistry(t)
	ref := classfile.FieldRef{Class: probeSig, Name: "x", Descriptor: "I"}
	b := classfile.NewBuilder("bump", "()I")
	b.Load(0)
	b.Load(0)
	b.Field(classfile.OpGetField, ref)
	b.PushInt(1)
	b.Emit(classfile.OpAdd)
	b.Field(classfile.OpPutField, ref)
	b.Load(0)
	b.Field(classfile.OpGetField, ref)
	b.Emit(classfile.OpReturnValue)

	obj := jvm.NewObject(probe)
	obj.SetField("x", jvm.Int(41))
	res := run(t, reg, &testSupervisor{}, b.Build(), jvm.Ref(obj))
	wantValue(t, res, jvm.Int(42))
	if got := obj.GetField("x", "I"); got != jvm.Int(42) {
		t.Errorf("field after run = %v, want 42", got)
	}
}

func TestFieldWriteVetoLeavesTargetUntouched(t *testing.T) {
	reg, probe := testRegistry(t)
	ref := classfile.FieldRef{Class: probeSig, Name: "x", Descriptor: "I"}
	b := classfile.NewBuilder("poke", "(Lcom/test/Probe;I)V").SetStatic(true)
	b.Load(0)
	b.Load(1)
	b.Field(classfile.OpPutField, ref)
	b.Emit(classfile.OpReturn)

	obj := jvm.NewObject(probe)
	obj.SetField("x", jvm.Int(1))
	sup := &testSupervisor{denyFieldWrites: true}
	res := run(t, reg, sup, b.Build(), jvm.Null(), jvm.Ref(obj), jvm.Int(9))
	wantErrorKind(t, res, jvm.ErrIllegalMutation)
	if got := obj.GetField("x", "I"); got != jvm.Int(1) {
		t.Errorf("field after vetoed write = %v, want 1", got)
	}
}

func TestStaticFields(t *testing.T) {
	ref := classfile.FieldRef{Class: probeSig, Name: "count", Descriptor: "I"}
	build := func() *classfile.MethodBody {
		b := classfile.NewBuilder("stat", "()I").SetStatic(true)
		b.PushInt(33)
		b.Field(classfile.OpPutStatic, ref)
		b.Field(classfile.OpGetStatic, ref)
		b.Emit(classfile.OpReturnValue)
		return b.Build()
	}

	t.Run("roundtrip", func(t *testing.T) {
		reg, probe := testRegistry(t)
		res := run(t, reg, &testSupervisor{}, build(), jvm.Null())
		wantValue(t, res, jvm.Int(33))
		if got := probe.Statics().GetField("count", "I"); got != jvm.Int(33) {
			t.Errorf("static field = %v, want 33", got)
		}
	})

	t.Run("write veto", func(t *testing.T) {
		reg, probe := testRegistry(t)
		sup := &testSupervisor{denyFieldWrites: true}
		res := run(t, reg, sup, build(), jvm.Null())
		wantErrorKind(t, res, jvm.ErrIllegalMutation)
		if got := probe.Statics().GetField("count", "I"); got != jvm.Int(0) {
			t.Errorf("static field after vetoed write = %v, want 0", got)
		}
	})
}

func TestGetFieldOnNullThrows(t *testing.T) {
	reg, _ := testRegistry(t)
	b := classfile.NewBuilder("deref", "(Lcom/test/Probe;)I").SetStatic(true)
	b.Load(0)
	b.Field(classfile.OpGetField, classfile.FieldRef{Class: probeSig, Name: "x", Descriptor: "I"})
	b.Emit(classfile.OpReturnValue)

	res := run(t, reg, &testSupervisor{}, b.Build(), jvm.Null(), jvm.Null())
	wantThrown(t, res, jvm.SigNullPointerException)
}

func TestArraySumAndLength(t *testing.T) {
	reg, _ := testRegistry(t)
	sup := &testSupervisor{}
	b := classfile.NewBuilder("arr", "()I").SetStatic(true)
	b.PushInt(3)
	b.NewArray("I")
	b.Store(0)
	b.Load(0)
	b.PushInt(0)
	b.PushInt(11)
	b.Emit(classfile.OpArrayStore)
	b.Load(0)
	b.PushInt(1)
	b.PushInt(22)
	b.Emit(classfile.OpArrayStore)
	b.Load(0)
	b.PushInt(0)
	b.Emit(classfile.OpArrayLoad)
	b.Load(0)
	b.PushInt(1)
	b.Emit(classfile.OpArrayLoad)
	b.Emit(classfile.OpAdd)
	b.Load(0)
	b.Emit(classfile.OpArrayLen)
	b.Emit(classfile.OpAdd)
	b.Emit(classfile.OpReturnValue)

	res := run(t, reg, sup, b.Build(), jvm.Null())
	wantValue(t, res, jvm.Int(36))
	if len(sup.allocations) != 1 || !sup.allocations[0].IsArray() {
		t.Errorf("allocation hook saw %d objects, want the array", len(sup.allocations))
	}
}

func TestArrayIndexOutOfBounds(t *testing.T) {
	reg, _ := testRegistry(t)
	b := classfile.NewBuilder("oob", "()I").SetStatic(true)
	b.PushInt(2)
	b.NewArray("I")
	b.PushInt(5)
	b.Emit(classfile.OpArrayLoad)
	b.Emit(classfile.OpReturnValue)

	res := run(t, reg, &testSupervisor{}, b.Build(), jvm.Null())
	exc := wantThrown(t, res, jvm.SigArrayIndexOutOfBounds)
	want := "index 5 out of bounds for length 2"
	if got := thrownMessage(t, exc); got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}

func TestArrayWriteVetoLeavesElementsUntouched(t *testing.T) {
	reg, _ := testRegistry(t)
	arrCls, err := reg.FindClassBySignature("[I")
	if err != nil {
		t.Fatalf("FindClassBySignature([I) error: %v", err)
	}
	arr := jvm.NewArray(arrCls, "I", 1)

	b := classfile.NewBuilder("poke", "([I)V").SetStatic(true)
	b.Load(0)
	b.PushInt(0)
	b.PushInt(5)
	b.Emit(classfile.OpArrayStore)
	b.Emit(classfile.OpReturn)

	sup := &testSupervisor{denyArrayWrites: true}
	res := run(t, reg, sup, b.Build(), jvm.Null(), jvm.Ref(arr))
	wantErrorKind(t, res, jvm.ErrIllegalMutation)
	if got := arr.Elem(0); got != jvm.Int(0) {
		t.Errorf("element after vetoed write = %v, want 0", got)
	}
}

func TestArrayAllocationVeto(t *testing.T) {
	reg, _ := testRegistry(t)
	sup := &testSupervisor{arrayLimit: 10}
	b := classfile.NewBuilder("big", "()V").SetStatic(true)
	b.PushInt(100)
	b.NewArray("I")
	b.Emit(classfile.OpReturn)

	res := run(t, reg, sup, b.Build(), jvm.Null())
	wantErrorKind(t, res, jvm.ErrQuotaExceeded)
	if len(sup.allocations) != 0 {
		t.Errorf("allocations after veto = %d, want 0", len(sup.allocations))
	}
}

func TestNegativeArrayLength(t *testing.T) {
	reg, _ := testRegistry(t)
	b := classfile.NewBuilder("neg", "()V").SetStatic(true)
	b.PushInt(-1)
	b.NewArray("I")
	b.Emit(classfile.OpReturn)

	res := run(t, reg, &testSupervisor{}, b.Build(), jvm.Null())
	err := wantErrorKind(t, res, jvm.ErrInternalFault)
	if !strings.Contains(err.Message, "negative") {
		t.Errorf("message = %q, want mention of negative length", err.Message)
	}
}

func TestNestedCallReceiverAndArguments(t *testing.T) {
	reg, probe := testRegistry(t)
	obj := jvm.NewObject(probe)

	var gotNonvirtual bool
	var gotRef classfile.MethodRef
	var gotReceiver jvm.Value
	var gotArgs []jvm.Value
	sup := &testSupervisor{
		onNested: func(nonvirtual bool, ref classfile.MethodRef, receiver jvm.Value, args []jvm.Value) jvm.Result {
			gotNonvirtual = nonvirtual
			gotRef = ref
			gotReceiver = receiver
			gotArgs = args
			return jvm.ValueResult(jvm.Int(7))
		},
	}

	b := classfile.NewBuilder("call", "(Lcom/test/Probe;)I").SetStatic(true)
	b.Load(0)
	b.PushInt(1)
	b.PushInt(2)
	b.Invoke(classfile.OpInvokeVirtual, classfile.MethodRef{Class: probeSig, Name: "add", Descriptor: "(II)I"})
	b.Emit(classfile.OpReturnValue)

	res := run(t, reg, sup, b.Build(), jvm.Null(), jvm.Ref(obj))
	wantValue(t, res, jvm.Int(7))
	if gotNonvirtual {
		t.Error("invoke_virtual reported as nonvirtual")
	}
	if gotRef.Name != "add" || gotRef.Descriptor != "(II)I" {
		t.Errorf("nested ref = %+v, want add(II)I", gotRef)
	}
	if gotReceiver.Object() != obj {
		t.Error("nested receiver is not the pushed object")
	}
	if len(gotArgs) != 2 || gotArgs[0] != jvm.Int(1) || gotArgs[1] != jvm.Int(2) {
		t.Errorf("nested args = %v, want [1 2]", gotArgs)
	}
}

func TestStaticInvokeIsNonvirtual(t *testing.T) {
	reg, _ := testRegistry(t)
	var gotNonvirtual bool
	var gotReceiver jvm.Value
	sup := &testSupervisor{
		onNested: func(nonvirtual bool, ref classfile.MethodRef, receiver jvm.Value, args []jvm.Value) jvm.Result {
			gotNonvirtual = nonvirtual
			gotReceiver = receiver
			return jvm.ValueResult(jvm.Int(0))
		},
	}

	b := classfile.NewBuilder("call", "()I").SetStatic(true)
	b.PushInt(5)
	b.Invoke(classfile.OpInvokeStatic, classfile.MethodRef{Class: jvm.SigMath, Name: "abs", Descriptor: "(I)I"})
	b.Emit(classfile.OpReturnValue)

	res := run(t, reg, sup, b.Build(), jvm.Null())
	wantValue(t, res, jvm.Int(0))
	if !gotNonvirtual {
		t.Error("invoke_static reported as virtual")
	}
	if !gotReceiver.IsNull() {
		t.Errorf("static call receiver = %v, want null", gotReceiver)
	}
}

func TestNestedThrowUnwinds(t *testing.T) {
	reg, probe := testRegistry(t)
	exc := jvm.NewObject(probe)
	sup := &testSupervisor{
		onNested: func(nonvirtual bool, ref classfile.MethodRef, receiver jvm.Value, args []jvm.Value) jvm.Result {
			return jvm.ThrownResult(exc)
		},
	}

	b := classfile.NewBuilder("call", "(Lcom/test/Probe;)I").SetStatic(true)
	b.Load(0)
	b.Invoke(classfile.OpInvokeVirtual, classfile.MethodRef{Class: probeSig, Name: "run", Descriptor: "()I"})
	b.Emit(classfile.OpReturnValue)

	obj := jvm.NewObject(probe)
	res := run(t, reg, sup, b.Build(), jvm.Null(), jvm.Ref(obj))
	if !res.IsThrown() || res.Thrown() != exc {
		t.Fatalf("result = %v, want the nested thrown object", res)
	}
}

func TestNestedErrorPropagates(t *testing.T) {
	reg, probe := testRegistry(t)
	sup := &testSupervisor{
		onNested: func(nonvirtual bool, ref classfile.MethodRef, receiver jvm.Value, args []jvm.Value) jvm.Result {
			return jvm.ErrorResult(jvm.Errorf(jvm.ErrMethodBlocked, "method %s is blocked", ref.Name))
		},
	}

	b := classfile.NewBuilder("call", "(Lcom/test/Probe;)I").SetStatic(true)
	b.Load(0)
	b.Invoke(classfile.OpInvokeVirtual, classfile.MethodRef{Class: probeSig, Name: "run", Descriptor: "()I"})
	b.Emit(classfile.OpReturnValue)

	obj := jvm.NewObject(probe)
	res := run(t, reg, sup, b.Build(), jvm.Null(), jvm.Ref(obj))
	err := wantErrorKind(t, res, jvm.ErrMethodBlocked)
	if !strings.Contains(err.Message, "run") {
		t.Errorf("message = %q, want mention of the blocked method", err.Message)
	}
}

func TestThrowStatement(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		reg, _ := testRegistry(t)
		sup := &testSupervisor{}
		b := classfile.NewBuilder("raise", "()V").SetStatic(true)
		b.New(jvm.SigRuntimeException)
		b.Emit(classfile.OpThrow)

		res := run(t, reg, sup, b.Build(), jvm.Null())
		exc := wantThrown(t, res, jvm.SigRuntimeException)
		if len(sup.allocations) != 1 || sup.allocations[0] != exc {
			t.Errorf("allocation hook saw %d objects, want the thrown exception", len(sup.allocations))
		}
	})

	t.Run("null", func(t *testing.T) {
		reg, _ := testRegistry(t)
		b := classfile.NewBuilder("raise", "()V").SetStatic(true)
		b.Emit(classfile.OpPushNull)
		b.Emit(classfile.OpThrow)

		res := run(t, reg, &testSupervisor{}, b.Build(), jvm.Null())
		wantThrown(t, res, jvm.SigNullPointerException)
	})
}

func TestStoreTypeMismatchFaults(t *testing.T) {
	reg, probe := testRegistry(t)
	b := classfile.NewBuilder("poke", "(Lcom/test/Probe;)V").SetStatic(true)
	b.Load(0)
	b.PushDouble(1.5)
	b.Field(classfile.OpPutField, classfile.FieldRef{Class: probeSig, Name: "x", Descriptor: "I"})
	b.Emit(classfile.OpReturn)

	obj := jvm.NewObject(probe)
	res := run(t, reg, &testSupervisor{}, b.Build(), jvm.Null(), jvm.Ref(obj))
	wantErrorKind(t, res, jvm.ErrInternalFault)
}

func TestMalformedCode(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want string
	}{
		{
			name: "stack underflow",
			code: []byte{byte(classfile.OpAdd)},
			want: "underflow",
		},
		{
			name: "unknown opcode",
			code: []byte{0xEE},
			want: "unknown opcode",
		},
		{
			name: "missing return",
			code: []byte{byte(classfile.OpNop)},
			want: "outside the method body",
		},
		{
			name: "truncated operand",
			code: []byte{byte(classfile.OpPushInt), 0x01},
			want: "truncated",
		},
		{
			name: "local slot out of range",
			code: []byte{byte(classfile.OpLoad), 0xFF},
			want: "out of range",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg, _ := testRegistry(t)
			body := &classfile.MethodBody{
				Name:       "bad",
				Descriptor: "()V",
				Static:     true,
				MaxStack:   4,
				MaxLocals:  4,
				Code:       tc.code,
			}
			res := run(t, reg, &testSupervisor{}, body, jvm.Null())
			err := wantErrorKind(t, res, jvm.ErrInternalFault)
			if !strings.Contains(err.Message, tc.want) {
				t.Errorf("message = %q, want substring %q", err.Message, tc.want)
			}
			if !strings.Contains(err.Message, "com.test.Probe.bad") {
				t.Errorf("message = %q, want the method name", err.Message)
			}
		})
	}
}

func TestFrameTooSmallForArguments(t *testing.T) {
	reg, _ := testRegistry(t)
	body := &classfile.MethodBody{
		Name:       "tiny",
		Descriptor: "(III)V",
		Static:     true,
		MaxStack:   4,
		MaxLocals:  1,
		Code:       []byte{byte(classfile.OpReturn)},
	}
	res := run(t, reg, &testSupervisor{}, body, jvm.Null(), jvm.Int(1), jvm.Int(2), jvm.Int(3))
	wantErrorKind(t, res, jvm.ErrInternalFault)
}
