// Package interp executes method bodies one activation at a time under
// the control of a supervisor. The engine owns instruction mechanics
// only; every safety-relevant decision (nested calls, budgets, object
// allocation, mutation) is delegated through the Supervisor interface,
// and a veto is data that halts the activation, never a panic.
package interp

import (
	"github.com/henrybell/cloud-debug-java/classfile"
	"github.com/henrybell/cloud-debug-java/jvm"
)

// Supervisor is the capability record the engine runs under. The
// orchestrator implements it; tests substitute fakes.
type Supervisor interface {
	// InvokeNested performs a nested method call on the engine's
	// behalf. nonvirtual is true for exact-class dispatch (static
	// calls included, with a null receiver). The result propagates
	// to the invoking frame arm-for-arm.
	InvokeNested(nonvirtual bool, ref classfile.MethodRef, receiver jvm.Value, args []jvm.Value) jvm.Result

	// InstructionAllowed is consulted before every instruction.
	// A non-nil return vetoes further execution.
	InstructionAllowed() *jvm.Error

	// ObjectAllocated reports a fresh allocation (objects, arrays,
	// implicitly thrown exceptions). Never fails.
	ObjectAllocated(obj *jvm.Object)

	// NewArrayAllowed is consulted before array allocation; the
	// length is never negative. A veto refuses the allocation.
	NewArrayAllowed(length int) *jvm.Error

	// ArrayModifyAllowed is consulted before an array store. On veto
	// the store is not applied.
	ArrayModifyAllowed(arr *jvm.Object) *jvm.Error

	// FieldModifyAllowed is consulted before an instance or static
	// field store; for statics the target is the class's static
	// carrier. On veto the store is not applied.
	FieldModifyAllowed(target *jvm.Object, field classfile.FieldRef) *jvm.Error
}
