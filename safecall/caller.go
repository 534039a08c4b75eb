// Package safecall is the method-call orchestrator: the single gate
// through which a debugger evaluation calls methods in the inspected
// process. Every call is resolved against class metadata, checked
// against the configured policy, and then either run natively through
// the bridge, interpreted under supervision, or refused. Side effects
// stay inside the evaluation: only objects the evaluation itself
// created may be mutated, and cumulative quotas bound how much work one
// orchestrator may ever do.
package safecall

import (
	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/henrybell/cloud-debug-java/classfile"
	"github.com/henrybell/cloud-debug-java/config"
	"github.com/henrybell/cloud-debug-java/interp"
	"github.com/henrybell/cloud-debug-java/jvm"
	"github.com/henrybell/cloud-debug-java/quota"
)

var log = commonlog.GetLogger("safecall")

// Bridge executes an allowlisted method natively in the agent process.
// Implementations must contain panics and report them as native
// invocation errors; objects they allocate belong to the agent and are
// not mutable by the evaluation.
type Bridge interface {
	CallNative(method jvm.Method, source jvm.Value, args []jvm.Value) jvm.Result
}

// callTarget is a resolved call: the declaring class and the method
// metadata dispatch selected.
type callTarget struct {
	class  *jvm.Class
	method jvm.Method
}

type frame struct {
	method jvm.Method
}

// Caller orchestrates method calls for one evaluation owner. A Caller
// is cheap and meant to be one per evaluation thread; it is not safe
// for concurrent use. Quota counters are cumulative over the Caller's
// lifetime and never reset, so a sequence of small calls exhausts the
// same budget one large call would.
type Caller struct {
	id       string
	cfg      *config.Config
	quota    config.MethodCallQuota
	resolver jvm.Resolver
	cache    *classfile.Cache
	bridge   Bridge
	cost     *quota.LeakyBucket

	frames  []frame
	tracked *objectTracker

	instructions  int64
	classesLoaded int64
}

// NewCaller assembles an orchestrator from its collaborators: the
// policy store, the quota profile for this caller's role, the class
// resolver, the bytecode cache for interpreted calls, and the native
// bridge.
func NewCaller(cfg *config.Config, q config.MethodCallQuota, resolver jvm.Resolver, cache *classfile.Cache, bridge Bridge) *Caller {
	return &Caller{
		id:       uuid.NewString(),
		cfg:      cfg,
		quota:    q,
		resolver: resolver,
		cache:    cache,
		bridge:   bridge,
		tracked:  newObjectTracker(),
	}
}

// WithCostLimit installs a shared governor debited once per top-level
// Invoke. Several callers may share one bucket.
func (c *Caller) WithCostLimit(b *quota.LeakyBucket) *Caller {
	c.cost = b
	return c
}

// ID identifies this caller in logs.
func (c *Caller) ID() string { return c.id }

// TotalInstructions returns the cumulative count of interpreter
// instructions this caller has executed.
func (c *Caller) TotalInstructions() int64 { return c.instructions }

// TotalClassesLoaded returns the cumulative count of class files this
// caller has charged against its load quota. Cache hits are free.
func (c *Caller) TotalClassesLoaded() int64 { return c.classesLoaded }

// TrackedObjects returns how many objects the evaluation has created.
func (c *Caller) TrackedObjects() int { return c.tracked.Len() }

// CurrentCallStack renders the in-flight calls outermost first. Empty
// when no call is executing.
func (c *Caller) CurrentCallStack() []string {
	stack := make([]string, len(c.frames))
	for i, f := range c.frames {
		stack[i] = f.method.DisplayName()
	}
	return stack
}

// CurrentMethodName names the innermost in-flight call, or "" when the
// caller is idle.
func (c *Caller) CurrentMethodName() string {
	if len(c.frames) == 0 {
		return ""
	}
	return c.frames[len(c.frames)-1].method.DisplayName()
}

// Invoke calls a method on the given source value. The source is
// ignored for static methods; instance methods dispatch dynamically on
// the source's class. Every outcome, including refusals, arrives as a
// Result; Invoke never panics on malformed input.
func (c *Caller) Invoke(method jvm.Method, source jvm.Value, args []jvm.Value) jvm.Result {
	if c.cost != nil && !c.cost.TryTake(1) {
		return jvm.ErrorResult(jvm.Errorf(jvm.ErrQuotaExceeded, msgRateLimited))
	}
	log.Debugf("[%s] invoke %s%s", c.id, method.DisplayName(), method.Descriptor)
	return c.call(false, method.ClassSignature, method.Name, method.Descriptor, source, args)
}

// call runs the shared pipeline for top-level and nested invocations:
// resolution, signature check, policy decision, dispatch.
func (c *Caller) call(nonvirtual bool, classSig, name, descriptor string, source jvm.Value, args []jvm.Value) jvm.Result {
	target, err := c.resolveTarget(nonvirtual, classSig, name, descriptor, source)
	if err != nil {
		return jvm.ErrorResult(err)
	}
	if err := c.checkSignature(target.method, args); err != nil {
		return jvm.ErrorResult(err)
	}

	c.frames = append(c.frames, frame{method: target.method})
	defer func() { c.frames = c.frames[:len(c.frames)-1] }()

	rule := c.cfg.RuleFor(target.class, name, descriptor)
	switch {
	case rule == nil || rule.Action == config.ActionBlock:
		return jvm.ErrorResult(jvm.Errorf(jvm.ErrMethodBlocked, msgMethodBlocked, target.method.DisplayName()))
	case rule.Action == config.ActionInterpret:
		return c.interpret(target, source, args)
	default:
		return c.native(target.method, source, args)
	}
}

// interpret runs the target's bytecode under this caller's supervision.
// The class file load is charged before any instruction executes.
func (c *Caller) interpret(target callTarget, source jvm.Value, args []jvm.Value) jvm.Result {
	if c.quota.InterpreterDisabled() {
		return jvm.ErrorResult(jvm.Errorf(jvm.ErrMethodBlocked, msgInterpreterDisabled, target.method.DisplayName()))
	}
	if !target.method.Static && source.IsNull() {
		return c.throwNullReceiver(target.method)
	}

	cf, loaded, err := c.cache.Load(target.class.Signature())
	if err != nil {
		return jvm.ErrorResult(jvm.Errorf(jvm.ErrClassResolution, "%v", err))
	}
	if loaded {
		c.classesLoaded++
		log.Debugf("[%s] loaded class file %s (%d of %d)",
			c.id, target.class.Name(), c.classesLoaded, c.quota.MaxClassesLoad)
		if c.classesLoaded > int64(c.quota.MaxClassesLoad) {
			return jvm.ErrorResult(jvm.Errorf(jvm.ErrQuotaExceeded, msgClassLoadQuota, c.quota.MaxClassesLoad))
		}
	}

	body, ok := cf.Method(target.method.Name, target.method.Descriptor)
	if !ok {
		return jvm.ErrorResult(jvm.Errorf(jvm.ErrClassResolution,
			"class file %s has no body for %s%s",
			target.class.Name(), target.method.Name, target.method.Descriptor))
	}
	return interp.NewInterpreter(target.method, body, source, args, c.resolver, c).Run()
}

// native hands the call to the bridge.
func (c *Caller) native(method jvm.Method, source jvm.Value, args []jvm.Value) jvm.Result {
	if !method.Static && source.IsNull() {
		return c.throwNullReceiver(method)
	}
	if c.bridge == nil {
		return jvm.ErrorResult(jvm.Errorf(jvm.ErrNativeInvocation,
			"no native bridge is installed for %s", method.DisplayName()))
	}
	return c.bridge.CallNative(method, source, args)
}

// throwNullReceiver produces the NullPointerException an instance call
// on null raises. The exception belongs to the evaluation, so it is
// tracked like any interpreted allocation.
func (c *Caller) throwNullReceiver(method jvm.Method) jvm.Result {
	cls, err := c.resolver.FindClassBySignature(jvm.SigNullPointerException)
	if err != nil {
		cls = jvm.NewClass(jvm.SigNullPointerException, nil)
	}
	exc := jvm.NewObject(cls)
	if strCls, serr := c.resolver.FindClassBySignature(jvm.SigString); serr == nil {
		msg := jvm.NewStringObject(strCls, "calling "+method.DisplayName()+" on a null reference")
		c.tracked.Track(msg)
		exc.SetField("message", jvm.Ref(msg))
	}
	c.tracked.Track(exc)
	return jvm.ThrownResult(exc)
}
