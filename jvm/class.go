package jvm

import (
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// Class: metadata for one loaded class in the inspected process
// ---------------------------------------------------------------------------

// Class describes a class: its JVM signature, superclass link, declared
// method metadata, and the carrier object holding its static fields. The
// superclass chain is the only subtyping axis; interfaces are not modeled.
type Class struct {
	signature string
	name      string
	super     *Class
	methods   []Method
	statics   *Object
}

// NewClass creates a class with the given signature and superclass
// (nil for java.lang.Object and array classes' element roots). Method
// metadata is stamped with the class signature.
func NewClass(signature string, super *Class, methods ...Method) *Class {
	c := &Class{
		signature: signature,
		name:      BinaryName(signature),
		super:     super,
		methods:   methods,
	}
	for i := range c.methods {
		c.methods[i].ClassSignature = signature
	}
	c.statics = &Object{class: c, fields: make(map[string]Value)}
	return c
}

func (c *Class) Signature() string  { return c.signature }
func (c *Class) Name() string       { return c.name }
func (c *Class) Superclass() *Class { return c.super }

// Statics returns the object carrying the class's static fields. The
// carrier belongs to the inspected process, never to an evaluation.
func (c *Class) Statics() *Object { return c.statics }

func (c *Class) Methods() []Method { return c.methods }

// AddMethod appends declared method metadata. Used when classes are
// assembled incrementally from a bytecode image.
func (c *Class) AddMethod(m Method) {
	m.ClassSignature = c.signature
	c.methods = append(c.methods, m)
}

// FindMethod looks up a method declared on this class itself.
func (c *Class) FindMethod(name, descriptor string) (Method, bool) {
	for _, m := range c.methods {
		if m.Name == name && m.Descriptor == descriptor {
			return m, true
		}
	}
	return Method{}, false
}

// ResolveVirtual walks the ancestry from this class upward and returns
// the first class declaring the method, which is the implementation
// dynamic dispatch selects.
func (c *Class) ResolveVirtual(name, descriptor string) (*Class, Method, bool) {
	for cur := c; cur != nil; cur = cur.super {
		if m, ok := cur.FindMethod(name, descriptor); ok {
			return cur, m, true
		}
	}
	return nil, Method{}, false
}

// IsSubclassOf reports whether other appears in this class's ancestry,
// the class itself included.
func (c *Class) IsSubclassOf(other *Class) bool {
	for cur := c; cur != nil; cur = cur.super {
		if cur == other || cur.signature == other.signature {
			return true
		}
	}
	return false
}

// Ancestry returns the chain from this class to the root, most derived
// first.
func (c *Class) Ancestry() []*Class {
	var chain []*Class
	for cur := c; cur != nil; cur = cur.super {
		chain = append(chain, cur)
	}
	return chain
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// Resolver resolves class signatures to class metadata. The orchestrator
// and the interpreter depend on this interface only.
type Resolver interface {
	FindClassBySignature(signature string) (*Class, error)
}

// Registry is the in-memory Resolver: a signature-keyed class table that
// fabricates array classes on demand and comes pre-seeded with the core
// platform classes. Safe for concurrent readers; registration normally
// happens before evaluations start.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewRegistry creates a registry seeded with the platform classes
// (Object, String, the boxed types, Math, and the runtime exceptions).
func NewRegistry() *Registry {
	r := &Registry{classes: make(map[string]*Class)}
	r.seed()
	return r
}

// Register adds a class to the table, replacing any previous entry with
// the same signature.
func (r *Registry) Register(c *Class) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[c.signature] = c
}

// Lookup returns the class for a signature without fabricating anything.
func (r *Registry) Lookup(signature string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[signature]
	return c, ok
}

// FindClassBySignature implements Resolver. Array class signatures are
// fabricated on first use with java.lang.Object as superclass.
func (r *Registry) FindClassBySignature(signature string) (*Class, error) {
	r.mu.RLock()
	c, ok := r.classes[signature]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}
	if len(signature) > 0 && signature[0] == '[' {
		return r.arrayClass(signature), nil
	}
	return nil, fmt.Errorf("class %s is not loaded", BinaryName(signature))
}

func (r *Registry) arrayClass(signature string) *Class {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.classes[signature]; ok {
		return c
	}
	c := NewClass(signature, r.classes[SigObject])
	r.classes[signature] = c
	return c
}

// NewString allocates a string object backed by the seeded String class.
func (r *Registry) NewString(s string) *Object {
	cls, _ := r.Lookup(SigString)
	return NewStringObject(cls, s)
}

// NewExceptionObject allocates an exception instance of the given class
// signature with its message field set. Unknown signatures fall back to
// RuntimeException.
func (r *Registry) NewExceptionObject(signature, message string) *Object {
	cls, ok := r.Lookup(signature)
	if !ok {
		cls, _ = r.Lookup(SigRuntimeException)
	}
	obj := NewObject(cls)
	obj.SetField("message", Ref(r.NewString(message)))
	return obj
}

// Signatures of the seeded platform classes.
const (
	SigObject                = "Ljava/lang/Object;"
	SigString                = "Ljava/lang/String;"
	SigNumber                = "Ljava/lang/Number;"
	SigInteger               = "Ljava/lang/Integer;"
	SigLong                  = "Ljava/lang/Long;"
	SigShort                 = "Ljava/lang/Short;"
	SigByte                  = "Ljava/lang/Byte;"
	SigDouble                = "Ljava/lang/Double;"
	SigFloat                 = "Ljava/lang/Float;"
	SigBoolean               = "Ljava/lang/Boolean;"
	SigCharacter             = "Ljava/lang/Character;"
	SigMath                  = "Ljava/lang/Math;"
	SigThrowable             = "Ljava/lang/Throwable;"
	SigException             = "Ljava/lang/Exception;"
	SigRuntimeException      = "Ljava/lang/RuntimeException;"
	SigArithmeticException   = "Ljava/lang/ArithmeticException;"
	SigNullPointerException  = "Ljava/lang/NullPointerException;"
	SigNumberFormatException = "Ljava/lang/NumberFormatException;"
	SigIndexOutOfBounds      = "Ljava/lang/IndexOutOfBoundsException;"
	SigArrayIndexOutOfBounds = "Ljava/lang/ArrayIndexOutOfBoundsException;"
)

func (r *Registry) seed() {
	object := NewClass(SigObject, nil,
		Method{Name: "toString", Descriptor: "()Ljava/lang/String;"},
		Method{Name: "hashCode", Descriptor: "()I"},
		Method{Name: "equals", Descriptor: "(Ljava/lang/Object;)Z"},
	)
	str := NewClass(SigString, object,
		Method{Name: "length", Descriptor: "()I"},
		Method{Name: "isEmpty", Descriptor: "()Z"},
		Method{Name: "charAt", Descriptor: "(I)C"},
		Method{Name: "indexOf", Descriptor: "(Ljava/lang/String;)I"},
		Method{Name: "contains", Descriptor: "(Ljava/lang/String;)Z"},
		Method{Name: "startsWith", Descriptor: "(Ljava/lang/String;)Z"},
		Method{Name: "endsWith", Descriptor: "(Ljava/lang/String;)Z"},
		Method{Name: "substring", Descriptor: "(II)Ljava/lang/String;"},
		Method{Name: "concat", Descriptor: "(Ljava/lang/String;)Ljava/lang/String;"},
		Method{Name: "trim", Descriptor: "()Ljava/lang/String;"},
		Method{Name: "toString", Descriptor: "()Ljava/lang/String;"},
		Method{Name: "hashCode", Descriptor: "()I"},
		Method{Name: "equals", Descriptor: "(Ljava/lang/Object;)Z"},
		Method{Name: "valueOf", Descriptor: "(I)Ljava/lang/String;", Static: true},
	)
	number := NewClass(SigNumber, object,
		Method{Name: "intValue", Descriptor: "()I"},
		Method{Name: "longValue", Descriptor: "()J"},
		Method{Name: "doubleValue", Descriptor: "()D"},
	)
	integer := NewClass(SigInteger, number,
		Method{Name: "intValue", Descriptor: "()I"},
		Method{Name: "toString", Descriptor: "()Ljava/lang/String;"},
		Method{Name: "valueOf", Descriptor: "(I)Ljava/lang/Integer;", Static: true},
		Method{Name: "parseInt", Descriptor: "(Ljava/lang/String;)I", Static: true},
	)
	long := NewClass(SigLong, number,
		Method{Name: "longValue", Descriptor: "()J"},
		Method{Name: "toString", Descriptor: "()Ljava/lang/String;"},
		Method{Name: "valueOf", Descriptor: "(J)Ljava/lang/Long;", Static: true},
	)
	short := NewClass(SigShort, number,
		Method{Name: "shortValue", Descriptor: "()S"},
	)
	byteCls := NewClass(SigByte, number,
		Method{Name: "byteValue", Descriptor: "()B"},
	)
	double := NewClass(SigDouble, number,
		Method{Name: "doubleValue", Descriptor: "()D"},
		Method{Name: "toString", Descriptor: "()Ljava/lang/String;"},
		Method{Name: "valueOf", Descriptor: "(D)Ljava/lang/Double;", Static: true},
	)
	float := NewClass(SigFloat, number,
		Method{Name: "floatValue", Descriptor: "()F"},
	)
	boolean := NewClass(SigBoolean, object,
		Method{Name: "booleanValue", Descriptor: "()Z"},
		Method{Name: "toString", Descriptor: "()Ljava/lang/String;"},
		Method{Name: "valueOf", Descriptor: "(Z)Ljava/lang/Boolean;", Static: true},
	)
	character := NewClass(SigCharacter, object,
		Method{Name: "charValue", Descriptor: "()C"},
	)
	math := NewClass(SigMath, object,
		Method{Name: "abs", Descriptor: "(I)I", Static: true},
		Method{Name: "abs", Descriptor: "(J)J", Static: true},
		Method{Name: "abs", Descriptor: "(D)D", Static: true},
		Method{Name: "max", Descriptor: "(II)I", Static: true},
		Method{Name: "min", Descriptor: "(II)I", Static: true},
		Method{Name: "sqrt", Descriptor: "(D)D", Static: true},
	)
	throwable := NewClass(SigThrowable, object,
		Method{Name: "getMessage", Descriptor: "()Ljava/lang/String;"},
		Method{Name: "toString", Descriptor: "()Ljava/lang/String;"},
	)
	exception := NewClass(SigException, throwable)
	runtimeExc := NewClass(SigRuntimeException, exception)
	arithmetic := NewClass(SigArithmeticException, runtimeExc)
	nullPointer := NewClass(SigNullPointerException, runtimeExc)
	numberFormat := NewClass(SigNumberFormatException, runtimeExc)
	indexOOB := NewClass(SigIndexOutOfBounds, runtimeExc)
	arrayIndexOOB := NewClass(SigArrayIndexOutOfBounds, indexOOB)

	for _, c := range []*Class{
		object, str, number, integer, long, short, byteCls, double, float,
		boolean, character, math, throwable, exception, runtimeExc,
		arithmetic, nullPointer, numberFormat, indexOOB, arrayIndexOOB,
	} {
		r.classes[c.signature] = c
	}
}
