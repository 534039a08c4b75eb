package jvm

import "fmt"

// ---------------------------------------------------------------------------
// Method call results
//
// Every invocation produces exactly one of: a value, an exception thrown
// by the invoked code, or a structured error from the safety pipeline.
// Nested results propagate arm-for-arm without translation.
// ---------------------------------------------------------------------------

// ErrorKind classifies structured call failures.
type ErrorKind int

const (
	// ErrClassResolution: the runtime or declaring type could not be
	// resolved, or no class in the chain defines the method.
	ErrClassResolution ErrorKind = iota
	// ErrSignatureMismatch: arity or argument types do not satisfy the
	// method descriptor.
	ErrSignatureMismatch
	// ErrMethodBlocked: policy forbids the call, or no policy exists.
	ErrMethodBlocked
	// ErrQuotaExceeded: instruction, class-load, or cost budget exhausted.
	ErrQuotaExceeded
	// ErrIllegalMutation: interpreted code attempted to modify debuggee
	// state that was not created by this evaluation.
	ErrIllegalMutation
	// ErrNativeInvocation: the native bridge could not perform the call.
	ErrNativeInvocation
	// ErrInternalFault: malformed bytecode or an engine invariant broke.
	ErrInternalFault
)

var errorKindNames = [...]string{
	ErrClassResolution:   "class resolution failure",
	ErrSignatureMismatch: "signature mismatch",
	ErrMethodBlocked:     "method blocked",
	ErrQuotaExceeded:     "quota exceeded",
	ErrIllegalMutation:   "illegal mutation",
	ErrNativeInvocation:  "native invocation failure",
	ErrInternalFault:     "internal fault",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("error kind %d", int(k))
}

// Error is a structured failure from the safe-call pipeline. It doubles
// as the veto message supervisor hooks return: a veto is data, never a
// panic.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

// Errorf builds an Error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

type resultArm uint8

const (
	armValue resultArm = iota
	armThrown
	armError
)

// Result is the outcome of invoking one method. The zero Result is a
// void value.
type Result struct {
	arm    resultArm
	value  Value
	thrown *Object
	err    *Error
}

// ValueResult wraps a successfully returned value.
func ValueResult(v Value) Result { return Result{arm: armValue, value: v} }

// ThrownResult wraps an exception object thrown by the invoked code.
func ThrownResult(exc *Object) Result { return Result{arm: armThrown, thrown: exc} }

// ErrorResult wraps a structured pipeline error.
func ErrorResult(err *Error) Result { return Result{arm: armError, err: err} }

func (r Result) IsValue() bool  { return r.arm == armValue }
func (r Result) IsThrown() bool { return r.arm == armThrown }
func (r Result) IsError() bool  { return r.arm == armError }

// Value returns the returned value; meaningful only when IsValue.
func (r Result) Value() Value { return r.value }

// Thrown returns the thrown exception object; meaningful only when
// IsThrown.
func (r Result) Thrown() *Object { return r.thrown }

// Err returns the structured error; nil unless IsError.
func (r Result) Err() *Error {
	if r.arm != armError {
		return nil
	}
	return r.err
}

func (r Result) String() string {
	switch r.arm {
	case armThrown:
		return "threw " + describeThrown(r.thrown)
	case armError:
		return "error: " + r.err.Error()
	}
	return r.value.String()
}

func describeThrown(exc *Object) string {
	if exc == nil {
		return "null"
	}
	name := "exception"
	if exc.Class() != nil {
		name = exc.Class().Name()
	}
	msg := exc.GetField("message", SigString)
	if !msg.IsNull() && msg.Object().IsString() {
		return name + ": " + msg.Object().StringValue()
	}
	return name
}
