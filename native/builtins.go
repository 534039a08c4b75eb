package native

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/henrybell/cloud-debug-java/jvm"
)

// registerBuiltins installs the platform methods the default policy
// allows natively. Argument shapes are normally guaranteed by the
// signature check that runs before dispatch; a built-in fed garbage
// through the public API at worst panics into CallNative's recovery.
func (rt *Runtime) registerBuiltins() {
	rt.registerObject()
	rt.registerString()
	rt.registerBoxed()
	rt.registerMath()
	rt.registerThrowable()
}

func (rt *Runtime) registerObject() {
	rt.Register(jvm.SigObject, "toString", "()Ljava/lang/String;",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			s := fmt.Sprintf("%s@%x", recv.Class().Name(), uint32(rt.identityHash(recv)))
			return rt.stringResult(s)
		})
	rt.Register(jvm.SigObject, "hashCode", "()I",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return jvm.ValueResult(jvm.Int(rt.identityHash(recv)))
		})
	rt.Register(jvm.SigObject, "equals", "(Ljava/lang/Object;)Z",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			other := args[0]
			same := other.Kind() == jvm.KindObject && other.Object() == recv
			return jvm.ValueResult(jvm.Boolean(same))
		})
}

func (rt *Runtime) registerString() {
	// self unwraps the receiver's payload. A String-class object
	// without one (allocated raw in bytecode) cannot be served.
	self := func(recv *jvm.Object) (string, jvm.Result, bool) {
		if !recv.IsString() {
			return "", jvm.ErrorResult(jvm.Errorf(jvm.ErrNativeInvocation,
				"string receiver %s has no string payload", recv.Describe())), false
		}
		return recv.StringValue(), jvm.Result{}, true
	}
	str := func(fn func(s string, args []jvm.Value) jvm.Result) Func {
		return func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			s, res, ok := self(recv)
			if !ok {
				return res
			}
			return fn(s, args)
		}
	}
	// strPair additionally unwraps a string argument, throwing
	// NullPointerException for null the way the platform methods do.
	strPair := func(fn func(s, arg string) jvm.Result) Func {
		return str(func(s string, args []jvm.Value) jvm.Result {
			arg := args[0]
			if arg.Kind() != jvm.KindObject || arg.IsNull() {
				return rt.throw(jvm.SigNullPointerException, "null string argument")
			}
			if !arg.Object().IsString() {
				return jvm.ErrorResult(jvm.Errorf(jvm.ErrNativeInvocation,
					"string argument %s has no string payload", arg.Object().Describe()))
			}
			return fn(s, arg.Object().StringValue())
		})
	}

	rt.Register(jvm.SigString, "length", "()I", str(
		func(s string, args []jvm.Value) jvm.Result {
			return jvm.ValueResult(jvm.Int(int32(len(utf16.Encode([]rune(s))))))
		}))
	rt.Register(jvm.SigString, "isEmpty", "()Z", str(
		func(s string, args []jvm.Value) jvm.Result {
			return jvm.ValueResult(jvm.Boolean(s == ""))
		}))
	rt.Register(jvm.SigString, "charAt", "(I)C", str(
		func(s string, args []jvm.Value) jvm.Result {
			units := utf16.Encode([]rune(s))
			i := int(args[0].AsLong())
			if i < 0 || i >= len(units) {
				return rt.throw(jvm.SigIndexOutOfBounds,
					fmt.Sprintf("index %d out of bounds for length %d", i, len(units)))
			}
			return jvm.ValueResult(jvm.Char(units[i]))
		}))
	rt.Register(jvm.SigString, "indexOf", "(Ljava/lang/String;)I", strPair(
		func(s, sub string) jvm.Result {
			i := strings.Index(s, sub)
			if i > 0 {
				i = len(utf16.Encode([]rune(s[:i])))
			}
			return jvm.ValueResult(jvm.Int(int32(i)))
		}))
	rt.Register(jvm.SigString, "contains", "(Ljava/lang/String;)Z", strPair(
		func(s, sub string) jvm.Result {
			return jvm.ValueResult(jvm.Boolean(strings.Contains(s, sub)))
		}))
	rt.Register(jvm.SigString, "startsWith", "(Ljava/lang/String;)Z", strPair(
		func(s, prefix string) jvm.Result {
			return jvm.ValueResult(jvm.Boolean(strings.HasPrefix(s, prefix)))
		}))
	rt.Register(jvm.SigString, "endsWith", "(Ljava/lang/String;)Z", strPair(
		func(s, suffix string) jvm.Result {
			return jvm.ValueResult(jvm.Boolean(strings.HasSuffix(s, suffix)))
		}))
	rt.Register(jvm.SigString, "substring", "(II)Ljava/lang/String;", str(
		func(s string, args []jvm.Value) jvm.Result {
			units := utf16.Encode([]rune(s))
			begin, end := int(args[0].AsLong()), int(args[1].AsLong())
			if begin < 0 || end > len(units) || begin > end {
				return rt.throw(jvm.SigIndexOutOfBounds,
					fmt.Sprintf("begin %d, end %d, length %d", begin, end, len(units)))
			}
			return rt.stringResult(string(utf16.Decode(units[begin:end])))
		}))
	rt.Register(jvm.SigString, "concat", "(Ljava/lang/String;)Ljava/lang/String;",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			s, res, ok := self(recv)
			if !ok {
				return res
			}
			arg := args[0]
			if arg.Kind() != jvm.KindObject || arg.IsNull() {
				return rt.throw(jvm.SigNullPointerException, "null string argument")
			}
			other := arg.Object()
			if !other.IsString() {
				return jvm.ErrorResult(jvm.Errorf(jvm.ErrNativeInvocation,
					"string argument %s has no string payload", other.Describe()))
			}
			if other.StringValue() == "" {
				return jvm.ValueResult(jvm.Ref(recv))
			}
			return rt.stringResult(s + other.StringValue())
		})
	rt.Register(jvm.SigString, "trim", "()Ljava/lang/String;", str(
		func(s string, args []jvm.Value) jvm.Result {
			// Matches the platform contract: strips code points up to
			// and including U+0020, not general Unicode whitespace.
			trimmed := strings.TrimFunc(s, func(r rune) bool { return r <= ' ' })
			return rt.stringResult(trimmed)
		}))
	rt.Register(jvm.SigString, "toString", "()Ljava/lang/String;",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return jvm.ValueResult(jvm.Ref(recv))
		})
	rt.Register(jvm.SigString, "hashCode", "()I", str(
		func(s string, args []jvm.Value) jvm.Result {
			var h int32
			for _, unit := range utf16.Encode([]rune(s)) {
				h = 31*h + int32(unit)
			}
			return jvm.ValueResult(jvm.Int(h))
		}))
	rt.Register(jvm.SigString, "equals", "(Ljava/lang/Object;)Z", str(
		func(s string, args []jvm.Value) jvm.Result {
			other := args[0]
			eq := other.Kind() == jvm.KindObject && !other.IsNull() &&
				other.Object().IsString() && other.Object().StringValue() == s
			return jvm.ValueResult(jvm.Boolean(eq))
		}))
	rt.Register(jvm.SigString, "valueOf", "(I)Ljava/lang/String;",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return rt.stringResult(strconv.FormatInt(args[0].AsLong(), 10))
		})
}

func (rt *Runtime) registerBoxed() {
	value := func(recv *jvm.Object) jvm.Value {
		return recv.GetField("value", "I")
	}

	intOf := func(recv *jvm.Object, args []jvm.Value) jvm.Result {
		return jvm.ValueResult(jvm.Int(int32(numericLong(value(recv)))))
	}
	longOf := func(recv *jvm.Object, args []jvm.Value) jvm.Result {
		return jvm.ValueResult(jvm.Long(numericLong(value(recv))))
	}
	doubleOf := func(recv *jvm.Object, args []jvm.Value) jvm.Result {
		return jvm.ValueResult(jvm.Double(value(recv).AsDouble()))
	}

	rt.Register(jvm.SigNumber, "intValue", "()I", intOf)
	rt.Register(jvm.SigNumber, "longValue", "()J", longOf)
	rt.Register(jvm.SigNumber, "doubleValue", "()D", doubleOf)

	rt.Register(jvm.SigInteger, "intValue", "()I", intOf)
	rt.Register(jvm.SigInteger, "toString", "()Ljava/lang/String;",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return rt.stringResult(strconv.FormatInt(numericLong(value(recv)), 10))
		})
	rt.Register(jvm.SigInteger, "valueOf", "(I)Ljava/lang/Integer;",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return rt.box(jvm.SigInteger, jvm.Int(args[0].Int()))
		})
	rt.Register(jvm.SigInteger, "parseInt", "(Ljava/lang/String;)I",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			arg := args[0]
			if arg.Kind() != jvm.KindObject || arg.IsNull() || !arg.Object().IsString() {
				return rt.throw(jvm.SigNumberFormatException, "null")
			}
			s := arg.Object().StringValue()
			v, err := strconv.ParseInt(s, 10, 32)
			if err != nil {
				return rt.throw(jvm.SigNumberFormatException,
					fmt.Sprintf("For input string: %q", s))
			}
			return jvm.ValueResult(jvm.Int(int32(v)))
		})

	rt.Register(jvm.SigLong, "longValue", "()J", longOf)
	rt.Register(jvm.SigLong, "toString", "()Ljava/lang/String;",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return rt.stringResult(strconv.FormatInt(numericLong(value(recv)), 10))
		})
	rt.Register(jvm.SigLong, "valueOf", "(J)Ljava/lang/Long;",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return rt.box(jvm.SigLong, jvm.Long(args[0].Long()))
		})

	rt.Register(jvm.SigShort, "shortValue", "()S",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return jvm.ValueResult(jvm.Short(int16(numericLong(value(recv)))))
		})
	rt.Register(jvm.SigByte, "byteValue", "()B",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return jvm.ValueResult(jvm.Byte(int8(numericLong(value(recv)))))
		})

	rt.Register(jvm.SigDouble, "doubleValue", "()D", doubleOf)
	rt.Register(jvm.SigDouble, "toString", "()Ljava/lang/String;",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return rt.stringResult(formatDouble(value(recv).AsDouble()))
		})
	rt.Register(jvm.SigDouble, "valueOf", "(D)Ljava/lang/Double;",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return rt.box(jvm.SigDouble, jvm.Double(args[0].Double()))
		})

	rt.Register(jvm.SigFloat, "floatValue", "()F",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return jvm.ValueResult(jvm.Float(float32(value(recv).AsDouble())))
		})

	rt.Register(jvm.SigBoolean, "booleanValue", "()Z",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return jvm.ValueResult(jvm.Boolean(value(recv).Bool()))
		})
	rt.Register(jvm.SigBoolean, "toString", "()Ljava/lang/String;",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			if value(recv).Bool() {
				return rt.stringResult("true")
			}
			return rt.stringResult("false")
		})
	rt.Register(jvm.SigBoolean, "valueOf", "(Z)Ljava/lang/Boolean;",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return rt.box(jvm.SigBoolean, jvm.Boolean(args[0].Bool()))
		})

	rt.Register(jvm.SigCharacter, "charValue", "()C",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return jvm.ValueResult(jvm.Char(uint16(numericLong(value(recv)))))
		})
}

func (rt *Runtime) registerMath() {
	rt.Register(jvm.SigMath, "abs", "(I)I",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			v := args[0].Int()
			if v < 0 {
				v = -v
			}
			return jvm.ValueResult(jvm.Int(v))
		})
	rt.Register(jvm.SigMath, "abs", "(J)J",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			v := args[0].Long()
			if v < 0 {
				v = -v
			}
			return jvm.ValueResult(jvm.Long(v))
		})
	rt.Register(jvm.SigMath, "abs", "(D)D",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return jvm.ValueResult(jvm.Double(math.Abs(args[0].AsDouble())))
		})
	rt.Register(jvm.SigMath, "max", "(II)I",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return jvm.ValueResult(jvm.Int(max(args[0].Int(), args[1].Int())))
		})
	rt.Register(jvm.SigMath, "min", "(II)I",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return jvm.ValueResult(jvm.Int(min(args[0].Int(), args[1].Int())))
		})
	rt.Register(jvm.SigMath, "sqrt", "(D)D",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return jvm.ValueResult(jvm.Double(math.Sqrt(args[0].AsDouble())))
		})
}

func (rt *Runtime) registerThrowable() {
	rt.Register(jvm.SigThrowable, "getMessage", "()Ljava/lang/String;",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			return jvm.ValueResult(recv.GetField("message", "Ljava/lang/String;"))
		})
	rt.Register(jvm.SigThrowable, "toString", "()Ljava/lang/String;",
		func(recv *jvm.Object, args []jvm.Value) jvm.Result {
			s := recv.Class().Name()
			msg := recv.GetField("message", "Ljava/lang/String;")
			if !msg.IsNull() && msg.Object().IsString() {
				s += ": " + msg.Object().StringValue()
			}
			return rt.stringResult(s)
		})
}

func (rt *Runtime) stringResult(s string) jvm.Result {
	return jvm.ValueResult(jvm.Ref(rt.registry.NewString(s)))
}

// box allocates a boxed wrapper carrying the given primitive.
func (rt *Runtime) box(classSignature string, v jvm.Value) jvm.Result {
	cls, err := rt.registry.FindClassBySignature(classSignature)
	if err != nil {
		return jvm.ErrorResult(jvm.Errorf(jvm.ErrClassResolution, "%v", err))
	}
	obj := jvm.NewObject(cls)
	obj.SetField("value", v)
	return jvm.ValueResult(jvm.Ref(obj))
}

// numericLong converts any numeric payload to int64, truncating
// floating values the way a primitive conversion would.
func numericLong(v jvm.Value) int64 {
	if v.Kind() == jvm.KindFloat || v.Kind() == jvm.KindDouble {
		return int64(v.Double())
	}
	return v.AsLong()
}

// formatDouble renders a double the way the platform's Double.toString
// does for the common cases.
func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
