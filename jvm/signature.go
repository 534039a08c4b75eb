package jvm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// JVM type descriptors
//
// Field descriptors: Z B C S I J F D, L<name>; for classes, [ prefix for
// arrays. Method descriptors: (<param descriptors>)<return descriptor>,
// with V allowed as a return.
// ---------------------------------------------------------------------------

// ParseMethodDescriptor splits a method descriptor into its parameter
// descriptors and return descriptor.
func ParseMethodDescriptor(desc string) (params []string, ret string, err error) {
	if len(desc) == 0 || desc[0] != '(' {
		return nil, "", fmt.Errorf("malformed method descriptor %q", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		p, next, perr := readFieldDescriptor(desc, i)
		if perr != nil {
			return nil, "", fmt.Errorf("malformed method descriptor %q: %w", desc, perr)
		}
		params = append(params, p)
		i = next
	}
	if i >= len(desc) {
		return nil, "", fmt.Errorf("malformed method descriptor %q: missing ')'", desc)
	}
	rest := desc[i+1:]
	if rest == "V" {
		return params, "V", nil
	}
	r, next, perr := readFieldDescriptor(desc, i+1)
	if perr != nil || next != len(desc) {
		return nil, "", fmt.Errorf("malformed method descriptor %q: bad return type", desc)
	}
	return params, r, nil
}

// ParamCount returns the number of parameters a method descriptor takes.
func ParamCount(desc string) (int, error) {
	params, _, err := ParseMethodDescriptor(desc)
	if err != nil {
		return 0, err
	}
	return len(params), nil
}

func readFieldDescriptor(s string, i int) (string, int, error) {
	if i >= len(s) {
		return "", 0, fmt.Errorf("truncated at %d", i)
	}
	switch s[i] {
	case 'Z', 'B', 'C', 'S', 'I', 'J', 'F', 'D':
		return s[i : i+1], i + 1, nil
	case 'L':
		end := strings.IndexByte(s[i:], ';')
		if end < 0 {
			return "", 0, fmt.Errorf("unterminated class descriptor at %d", i)
		}
		return s[i : i+end+1], i + end + 1, nil
	case '[':
		elem, next, err := readFieldDescriptor(s, i+1)
		if err != nil {
			return "", 0, err
		}
		return "[" + elem, next, nil
	}
	return "", 0, fmt.Errorf("unknown descriptor tag %q at %d", s[i], i)
}

// KindOf maps a field descriptor to its value kind. Class and array
// descriptors map to KindObject.
func KindOf(desc string) Kind {
	if desc == "" {
		return KindVoid
	}
	switch desc[0] {
	case 'Z':
		return KindBoolean
	case 'B':
		return KindByte
	case 'C':
		return KindChar
	case 'S':
		return KindShort
	case 'I':
		return KindInt
	case 'J':
		return KindLong
	case 'F':
		return KindFloat
	case 'D':
		return KindDouble
	case 'L', '[':
		return KindObject
	case 'V':
		return KindVoid
	}
	return KindVoid
}

// ZeroValue returns the default value of a field of the given descriptor.
func ZeroValue(desc string) Value {
	switch KindOf(desc) {
	case KindBoolean:
		return Boolean(false)
	case KindByte:
		return Byte(0)
	case KindChar:
		return Char(0)
	case KindShort:
		return Short(0)
	case KindInt:
		return Int(0)
	case KindLong:
		return Long(0)
	case KindFloat:
		return Float(0)
	case KindDouble:
		return Double(0)
	case KindObject:
		return Null()
	}
	return Void()
}

// BinaryName renders a descriptor or class signature as a source-level
// type name: "Lcom/acme/Point;" becomes "com.acme.Point", "[I" becomes
// "int[]", "I" becomes "int".
func BinaryName(sig string) string {
	switch {
	case sig == "":
		return ""
	case sig[0] == 'L' && sig[len(sig)-1] == ';':
		return strings.ReplaceAll(sig[1:len(sig)-1], "/", ".")
	case sig[0] == '[':
		return BinaryName(sig[1:]) + "[]"
	}
	switch sig[0] {
	case 'Z':
		return "boolean"
	case 'B':
		return "byte"
	case 'C':
		return "char"
	case 'S':
		return "short"
	case 'I':
		return "int"
	case 'J':
		return "long"
	case 'F':
		return "float"
	case 'D':
		return "double"
	case 'V':
		return "void"
	}
	return sig
}

func numericRank(k Kind) int {
	switch k {
	case KindByte:
		return 1
	case KindShort, KindChar:
		return 2
	case KindInt:
		return 3
	case KindLong:
		return 4
	case KindFloat:
		return 5
	case KindDouble:
		return 6
	}
	return 0
}

// widens reports whether a widening primitive conversion exists from one
// kind to another: byte to short and onward, char to int and onward.
// Nothing widens into boolean, byte, or char.
func widens(from, to Kind) bool {
	if !from.IsNumeric() || !to.IsNumeric() {
		return false
	}
	if to == KindByte || to == KindChar {
		return false
	}
	if to == KindShort {
		return from == KindByte
	}
	return numericRank(to) > numericRank(from)
}

// AssignableTo reports whether a value may be passed for a parameter of
// the given descriptor: primitive identity or widening for primitives,
// null for any reference type, and ancestry containment for references.
func AssignableTo(v Value, desc string) bool {
	target := KindOf(desc)
	if target != KindObject {
		if v.Kind() == target {
			return true
		}
		return widens(v.Kind(), target)
	}
	if v.Kind() != KindObject {
		return false
	}
	if v.IsNull() {
		return true
	}
	if desc == "Ljava/lang/Object;" {
		return true
	}
	obj := v.Object()
	if obj.IsArray() {
		return desc == "["+obj.ElemDescriptor()
	}
	for c := obj.Class(); c != nil; c = c.Superclass() {
		if c.Signature() == desc {
			return true
		}
	}
	return false
}
