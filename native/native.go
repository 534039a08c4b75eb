// Package native executes allowlisted platform methods directly in the
// agent process. Each built-in is a Go implementation of one resolved
// method, keyed by declaring class, name, and descriptor; everything
// the policy allows but no built-in serves fails as a native invocation
// error rather than falling through to the debuggee.
package native

import (
	"sync"

	"github.com/tliron/commonlog"

	"github.com/henrybell/cloud-debug-java/jvm"
)

var log = commonlog.GetLogger("native")

// Func is one built-in implementation. The receiver is nil for static
// methods. Built-ins return a full call result so they can throw
// platform exceptions.
type Func func(recv *jvm.Object, args []jvm.Value) jvm.Result

type key struct {
	class      string
	name       string
	descriptor string
}

// Runtime dispatches native calls to built-in implementations of the
// platform methods. Objects a built-in allocates belong to the agent,
// not to any evaluation.
type Runtime struct {
	registry *jvm.Registry

	mu       sync.Mutex
	builtins map[key]Func
	hashes   map[*jvm.Object]int32
	hashSeed int32
}

// NewRuntime creates a runtime with the standard built-ins installed.
func NewRuntime(registry *jvm.Registry) *Runtime {
	rt := &Runtime{
		registry: registry,
		builtins: make(map[key]Func),
		hashes:   make(map[*jvm.Object]int32),
	}
	rt.registerBuiltins()
	return rt
}

// Register installs a built-in for one method. A later registration
// replaces an earlier one with the same key.
func (rt *Runtime) Register(classSignature, name, descriptor string, fn Func) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.builtins[key{classSignature, name, descriptor}] = fn
}

func (rt *Runtime) lookup(method jvm.Method) (Func, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	fn, ok := rt.builtins[key{method.ClassSignature, method.Name, method.Descriptor}]
	return fn, ok
}

// CallNative runs the built-in for the resolved method. A panic inside
// a built-in is contained and reported as a native invocation failure.
func (rt *Runtime) CallNative(method jvm.Method, source jvm.Value, args []jvm.Value) (result jvm.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("built-in %s panicked: %v", method.DisplayName(), r)
			result = jvm.ErrorResult(jvm.Errorf(jvm.ErrNativeInvocation,
				"built-in %s panicked: %v", method.DisplayName(), r))
		}
	}()

	fn, ok := rt.lookup(method)
	if !ok {
		return jvm.ErrorResult(jvm.Errorf(jvm.ErrNativeInvocation,
			"no built-in for %s%s", method.DisplayName(), method.Descriptor))
	}

	var recv *jvm.Object
	if !method.Static {
		if source.Kind() != jvm.KindObject {
			return jvm.ErrorResult(jvm.Errorf(jvm.ErrNativeInvocation,
				"receiver for %s is a %s, not an object", method.DisplayName(), source.Kind()))
		}
		if source.IsNull() {
			return rt.throw(jvm.SigNullPointerException,
				"calling "+method.DisplayName()+" on a null reference")
		}
		recv = source.Object()
	}
	return fn(recv, args)
}

// throw builds a thrown result carrying a platform exception.
func (rt *Runtime) throw(signature, message string) jvm.Result {
	return jvm.ThrownResult(rt.registry.NewExceptionObject(signature, message))
}

// identityHash assigns each object a stable hash on first use. The
// linear congruential step spreads consecutive assignments apart the
// way address-derived hashes would.
func (rt *Runtime) identityHash(obj *jvm.Object) int32 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if h, ok := rt.hashes[obj]; ok {
		return h
	}
	rt.hashSeed = rt.hashSeed*1103515245 + 12345
	h := rt.hashSeed | 1
	rt.hashes[obj] = h
	return h
}
