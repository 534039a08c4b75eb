package safecall

import (
	"github.com/henrybell/cloud-debug-java/classfile"
	"github.com/henrybell/cloud-debug-java/interp"
	"github.com/henrybell/cloud-debug-java/jvm"
)

// The Caller is the supervisor of every interpreter activation it
// starts: nested invocations come back through the same pipeline as
// top-level calls, and each allocation or mutation attempt is checked
// against the evaluation's ownership and budgets.

// InvokeNested serves an invocation issued by interpreted code.
func (c *Caller) InvokeNested(nonvirtual bool, ref classfile.MethodRef, receiver jvm.Value, args []jvm.Value) jvm.Result {
	return c.call(nonvirtual, ref.Class, ref.Name, ref.Descriptor, receiver, args)
}

// InstructionAllowed charges one instruction against the cumulative
// budget. The counter never resets, so the budget spans every Invoke
// this caller ever serves.
func (c *Caller) InstructionAllowed() *jvm.Error {
	c.instructions++
	if c.instructions > int64(c.quota.MaxInterpreterInstructions) {
		return jvm.Errorf(jvm.ErrQuotaExceeded, msgInstructionQuota, c.quota.MaxInterpreterInstructions)
	}
	return nil
}

// ObjectAllocated records an object created by interpreted code. From
// this point on the evaluation may mutate it freely.
func (c *Caller) ObjectAllocated(obj *jvm.Object) {
	c.tracked.Track(obj)
}

// NewArrayAllowed bounds a single array allocation request.
func (c *Caller) NewArrayAllowed(length int) *jvm.Error {
	if length > interp.MaxReasonableArrayLength {
		return jvm.Errorf(jvm.ErrQuotaExceeded, msgArrayTooLarge, length, interp.MaxReasonableArrayLength)
	}
	return nil
}

// ArrayModifyAllowed permits element stores only into arrays the
// evaluation created.
func (c *Caller) ArrayModifyAllowed(arr *jvm.Object) *jvm.Error {
	if c.tracked.Tracked(arr) {
		return nil
	}
	return jvm.Errorf(jvm.ErrIllegalMutation, msgArrayMutation)
}

// FieldModifyAllowed permits field stores only into objects the
// evaluation created. Static fields are never writable: the statics
// carrier belongs to the inspected process by definition.
func (c *Caller) FieldModifyAllowed(target *jvm.Object, field classfile.FieldRef) *jvm.Error {
	if target != nil && target.Class() != nil && target == target.Class().Statics() {
		return jvm.Errorf(jvm.ErrIllegalMutation, msgStaticMutation, field.Name)
	}
	if c.tracked.Tracked(target) {
		return nil
	}
	return jvm.Errorf(jvm.ErrIllegalMutation, msgFieldMutation, field.Name)
}
