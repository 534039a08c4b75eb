// Package jvm models the data surface of an inspected Java process:
// values, heap objects, classes with their ancestry, method metadata,
// type descriptors, and the result variant returned by method calls.
package jvm

import (
	"fmt"
	"strconv"
)

// Kind identifies the category a Value belongs to. The categories mirror
// the JVM's primitive types plus object references.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBoolean
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindObject
)

var kindNames = [...]string{
	KindVoid:    "void",
	KindBoolean: "boolean",
	KindByte:    "byte",
	KindChar:    "char",
	KindShort:   "short",
	KindInt:     "int",
	KindLong:    "long",
	KindFloat:   "float",
	KindDouble:  "double",
	KindObject:  "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsNumeric reports whether the kind participates in arithmetic and
// widening conversions. Booleans do not.
func (k Kind) IsNumeric() bool {
	return k >= KindByte && k <= KindDouble
}

// Value is one debuggee value: a primitive or an object reference.
// Integral kinds share the int64 payload, floating kinds the float64
// payload, references the object pointer (nil meaning Java null).
// The zero Value is the void value.
type Value struct {
	kind Kind
	i    int64
	f    float64
	obj  *Object
}

func Void() Value            { return Value{kind: KindVoid} }
func Int(v int32) Value      { return Value{kind: KindInt, i: int64(v)} }
func Long(v int64) Value     { return Value{kind: KindLong, i: v} }
func Byte(v int8) Value      { return Value{kind: KindByte, i: int64(v)} }
func Short(v int16) Value    { return Value{kind: KindShort, i: int64(v)} }
func Char(v uint16) Value    { return Value{kind: KindChar, i: int64(v)} }
func Float(v float32) Value  { return Value{kind: KindFloat, f: float64(v)} }
func Double(v float64) Value { return Value{kind: KindDouble, f: v} }
func Ref(obj *Object) Value  { return Value{kind: KindObject, obj: obj} }
func Null() Value            { return Value{kind: KindObject} }

func Boolean(b bool) Value {
	v := Value{kind: KindBoolean}
	if b {
		v.i = 1
	}
	return v
}

func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is a null reference.
func (v Value) IsNull() bool { return v.kind == KindObject && v.obj == nil }

func (v Value) Bool() bool      { return v.i != 0 }
func (v Value) Int() int32      { return int32(v.i) }
func (v Value) Long() int64     { return v.i }
func (v Value) Float() float32  { return float32(v.f) }
func (v Value) Double() float64 { return v.f }
func (v Value) Object() *Object { return v.obj }

// AsLong widens any integral value (boolean excluded) to int64.
func (v Value) AsLong() int64 { return v.i }

// AsDouble widens any numeric value to float64.
func (v Value) AsDouble() float64 {
	if v.kind == KindFloat || v.kind == KindDouble {
		return v.f
	}
	return float64(v.i)
}

// String renders the value for diagnostics and demo output.
func (v Value) String() string {
	switch v.kind {
	case KindVoid:
		return "void"
	case KindBoolean:
		if v.i != 0 {
			return "true"
		}
		return "false"
	case KindByte, KindShort, KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindChar:
		return strconv.QuoteRune(rune(v.i))
	case KindLong:
		return strconv.FormatInt(v.i, 10) + "L"
	case KindFloat, KindDouble:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindObject:
		if v.obj == nil {
			return "null"
		}
		return v.obj.Describe()
	}
	return fmt.Sprintf("value(%d)", v.kind)
}
