package safecall

import (
	"github.com/henrybell/cloud-debug-java/jvm"
)

// resolveTarget turns a symbolic reference into the class and method
// dispatch selects. Virtual calls start the search at the receiver's
// dynamic class when the receiver is typed under the named class;
// nonvirtual calls and static calls start at the named class itself.
func (c *Caller) resolveTarget(nonvirtual bool, classSig, name, descriptor string, source jvm.Value) (callTarget, *jvm.Error) {
	named, err := c.resolver.FindClassBySignature(classSig)
	if err != nil {
		return callTarget{}, jvm.Errorf(jvm.ErrClassResolution, "%v", err)
	}

	start := named
	if !nonvirtual && source.Kind() == jvm.KindObject && !source.IsNull() {
		if recv := source.Object().Class(); recv.IsSubclassOf(named) {
			start = recv
		}
	}

	declaring, method, ok := start.ResolveVirtual(name, descriptor)
	if !ok {
		if hasMethodNamed(start, name) {
			return callTarget{}, jvm.Errorf(jvm.ErrSignatureMismatch,
				"method %s.%s does not accept descriptor %s", named.Name(), name, descriptor)
		}
		return callTarget{}, jvm.Errorf(jvm.ErrSignatureMismatch,
			"class %s has no method %s", named.Name(), name)
	}

	if !method.Static {
		switch {
		case source.Kind() != jvm.KindObject:
			return callTarget{}, jvm.Errorf(jvm.ErrSignatureMismatch,
				"receiver for %s is a %s, not an object", method.DisplayName(), source.Kind())
		case !source.IsNull() && !source.Object().Class().IsSubclassOf(named):
			return callTarget{}, jvm.Errorf(jvm.ErrSignatureMismatch,
				"receiver of type %s is not a %s", source.Object().Class().Name(), named.Name())
		}
	}
	return callTarget{class: declaring, method: method}, nil
}

// checkSignature validates the argument list against the method
// descriptor before any dispatch decision is made.
func (c *Caller) checkSignature(method jvm.Method, args []jvm.Value) *jvm.Error {
	params, _, err := jvm.ParseMethodDescriptor(method.Descriptor)
	if err != nil {
		return jvm.Errorf(jvm.ErrSignatureMismatch, "%v", err)
	}
	if len(args) != len(params) {
		return jvm.Errorf(jvm.ErrSignatureMismatch,
			"%s takes %d arguments, got %d", method.DisplayName(), len(params), len(args))
	}
	for i, p := range params {
		if !jvm.AssignableTo(args[i], p) {
			return jvm.Errorf(jvm.ErrSignatureMismatch,
				"argument %d of %s: %s is not assignable to %s",
				i+1, method.DisplayName(), args[i].Kind(), jvm.BinaryName(p))
		}
	}
	return nil
}

func hasMethodNamed(cls *jvm.Class, name string) bool {
	for cur := cls; cur != nil; cur = cur.Superclass() {
		for _, m := range cur.Methods() {
			if m.Name == name {
				return true
			}
		}
	}
	return false
}
