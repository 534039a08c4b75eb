package classfile

import (
	"fmt"

	"github.com/henrybell/cloud-debug-java/jvm"
)

// ---------------------------------------------------------------------------
// Code model: literals, references, method bodies, class files
// ---------------------------------------------------------------------------

// MethodRef names a method from a literal pool: the declaring class
// signature, the method name, and its descriptor.
type MethodRef struct {
	Class      string `cbor:"1,keyasint"`
	Name       string `cbor:"2,keyasint"`
	Descriptor string `cbor:"3,keyasint"`
}

func (r MethodRef) Display() string {
	return jvm.BinaryName(r.Class) + "." + r.Name
}

// FieldRef names a field from a literal pool.
type FieldRef struct {
	Class      string `cbor:"1,keyasint"`
	Name       string `cbor:"2,keyasint"`
	Descriptor string `cbor:"3,keyasint"`
}

func (r FieldRef) Display() string {
	return jvm.BinaryName(r.Class) + "." + r.Name
}

// LiteralKind tags a literal pool entry.
type LiteralKind uint8

const (
	LitInt LiteralKind = iota
	LitLong
	LitDouble
	LitString
	LitClass // class signature (OpNew) or element descriptor (OpNewArray)
	LitMethodRef
	LitFieldRef
)

// Literal is one literal pool entry. The kind selects which payload
// fields are meaningful; the struct stays flat and comparable so the
// builder can deduplicate entries.
type Literal struct {
	Kind   LiteralKind `cbor:"1,keyasint"`
	Int    int64       `cbor:"2,keyasint,omitempty"`
	Num    float64     `cbor:"3,keyasint,omitempty"`
	Str    string      `cbor:"4,keyasint,omitempty"`
	Class  string      `cbor:"5,keyasint,omitempty"`
	Member string      `cbor:"6,keyasint,omitempty"`
	Desc   string      `cbor:"7,keyasint,omitempty"`
}

func IntLiteral(v int64) Literal      { return Literal{Kind: LitInt, Int: v} }
func LongLiteral(v int64) Literal     { return Literal{Kind: LitLong, Int: v} }
func DoubleLiteral(v float64) Literal { return Literal{Kind: LitDouble, Num: v} }
func StringLiteral(s string) Literal  { return Literal{Kind: LitString, Str: s} }
func ClassLiteral(sig string) Literal { return Literal{Kind: LitClass, Class: sig} }

func MethodLiteral(ref MethodRef) Literal {
	return Literal{Kind: LitMethodRef, Class: ref.Class, Member: ref.Name, Desc: ref.Descriptor}
}

func FieldLiteral(ref FieldRef) Literal {
	return Literal{Kind: LitFieldRef, Class: ref.Class, Member: ref.Name, Desc: ref.Descriptor}
}

func (l Literal) AsMethodRef() MethodRef {
	return MethodRef{Class: l.Class, Name: l.Member, Descriptor: l.Desc}
}

func (l Literal) AsFieldRef() FieldRef {
	return FieldRef{Class: l.Class, Name: l.Member, Descriptor: l.Desc}
}

// MethodBody is the executable form of one method: its identity, frame
// sizing, literal pool, and code bytes.
type MethodBody struct {
	Name       string    `cbor:"1,keyasint"`
	Descriptor string    `cbor:"2,keyasint"`
	Static     bool      `cbor:"3,keyasint,omitempty"`
	MaxStack   int       `cbor:"4,keyasint"`
	MaxLocals  int       `cbor:"5,keyasint"`
	Literals   []Literal `cbor:"6,keyasint,omitempty"`
	Code       []byte    `cbor:"7,keyasint"`
}

// Key returns the name+descriptor pair identifying the body within its
// class file.
func (m *MethodBody) Key() string { return m.Name + m.Descriptor }

// Literal returns the pool entry at index, or an error for a bad index.
func (m *MethodBody) Literal(index int) (Literal, error) {
	if index < 0 || index >= len(m.Literals) {
		return Literal{}, fmt.Errorf("literal index %d out of range (pool size %d)", index, len(m.Literals))
	}
	return m.Literals[index], nil
}

// ClassFile carries the method bodies of one class as fetched from the
// bytecode source.
type ClassFile struct {
	Signature string        `cbor:"1,keyasint"`
	Super     string        `cbor:"2,keyasint,omitempty"`
	Methods   []*MethodBody `cbor:"3,keyasint,omitempty"`
}

// Method finds a body by name and descriptor.
func (cf *ClassFile) Method(name, descriptor string) (*MethodBody, bool) {
	for _, m := range cf.Methods {
		if m.Name == name && m.Descriptor == descriptor {
			return m, true
		}
	}
	return nil, false
}

// MethodMetadata derives declared-method metadata from the bodies, for
// registering the class in a resolver.
func (cf *ClassFile) MethodMetadata() []jvm.Method {
	out := make([]jvm.Method, 0, len(cf.Methods))
	for _, m := range cf.Methods {
		out = append(out, jvm.Method{
			ClassSignature: cf.Signature,
			Name:           m.Name,
			Descriptor:     m.Descriptor,
			Static:         m.Static,
		})
	}
	return out
}
