package jvm

import (
	"fmt"
	"strconv"
)

// Object is one heap object in the inspected process model. Identity is
// pointer identity; two objects are the same object only if they are the
// same *Object. Arrays are objects with element storage; strings are
// objects of the String class carrying an immutable Go string payload.
type Object struct {
	class    *Class
	fields   map[string]Value
	elems    []Value
	elemDesc string
	str      string
	isStr    bool
}

// NewObject allocates an instance of class with all fields unset.
// Reading an unset field yields the zero value of its descriptor.
func NewObject(class *Class) *Object {
	return &Object{class: class, fields: make(map[string]Value)}
}

// NewArray allocates an array of the given element descriptor and length,
// zero-filled. The class should be the array class ("[I" and so on).
func NewArray(class *Class, elemDesc string, length int) *Object {
	elems := make([]Value, length)
	zero := ZeroValue(elemDesc)
	for i := range elems {
		elems[i] = zero
	}
	return &Object{class: class, elems: elems, elemDesc: elemDesc}
}

// NewStringObject allocates a string instance with the given payload.
// Callers normally go through Registry.NewString, which supplies the
// seeded String class.
func NewStringObject(class *Class, s string) *Object {
	return &Object{class: class, fields: make(map[string]Value), str: s, isStr: true}
}

func (o *Object) Class() *Class { return o.class }

// GetField reads an instance field, yielding the descriptor's zero value
// when the field was never written.
func (o *Object) GetField(name, descriptor string) Value {
	if v, ok := o.fields[name]; ok {
		return v
	}
	return ZeroValue(descriptor)
}

func (o *Object) SetField(name string, v Value) {
	if o.fields == nil {
		o.fields = make(map[string]Value)
	}
	o.fields[name] = v
}

func (o *Object) IsArray() bool { return o.elems != nil || o.elemDesc != "" }

// Len returns the array length, 0 for non-arrays.
func (o *Object) Len() int { return len(o.elems) }

func (o *Object) Elem(i int) Value       { return o.elems[i] }
func (o *Object) SetElem(i int, v Value) { o.elems[i] = v }

// ElemDescriptor returns the array element type descriptor, "" for
// non-arrays.
func (o *Object) ElemDescriptor() string { return o.elemDesc }

func (o *Object) IsString() bool { return o.isStr }

// StringValue returns the string payload; "" for non-strings.
func (o *Object) StringValue() string { return o.str }

// Describe renders the object for diagnostics: strings quote their
// payload, arrays show element type and length, everything else shows
// its class name.
func (o *Object) Describe() string {
	switch {
	case o.isStr:
		return strconv.Quote(o.str)
	case o.IsArray():
		return fmt.Sprintf("%s[%d]", BinaryName(o.elemDesc), len(o.elems))
	case o.class != nil:
		return o.class.Name()
	}
	return "object"
}
