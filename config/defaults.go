package config

import "github.com/henrybell/cloud-debug-java/jvm"

// Default returns the built-in policy: immutable accessors on the core
// platform classes are allowed natively, everything else stays blocked
// until a file or a caller adds rules, and each caller role gets a
// conservative quota profile.
func Default() *Config {
	c := New()

	c.SetQuota(RoleExpression, MethodCallQuota{
		MaxInterpreterInstructions: 10000,
		MaxClassesLoad:             10,
	})
	c.SetQuota(RolePrettyPrinter, MethodCallQuota{
		MaxInterpreterInstructions: 25000,
		MaxClassesLoad:             20,
	})
	c.SetQuota(RoleDynamicLog, MethodCallQuota{
		MaxInterpreterInstructions: 5000,
		MaxClassesLoad:             5,
	})

	allow := func(classSig string, names ...string) {
		for _, name := range names {
			c.AddRule(MethodRule{Class: classSig, Name: name, Action: ActionAllow})
		}
	}

	allow(jvm.SigObject, "toString", "hashCode", "equals")
	allow(jvm.SigString,
		"length", "isEmpty", "charAt", "indexOf", "contains", "startsWith",
		"endsWith", "substring", "concat", "trim", "toString", "hashCode",
		"equals", "valueOf")
	allow(jvm.SigNumber, "intValue", "longValue", "doubleValue")
	allow(jvm.SigInteger, "intValue", "toString", "valueOf", "parseInt")
	allow(jvm.SigLong, "longValue", "toString", "valueOf")
	allow(jvm.SigShort, "shortValue")
	allow(jvm.SigByte, "byteValue")
	allow(jvm.SigDouble, "doubleValue", "toString", "valueOf")
	allow(jvm.SigFloat, "floatValue")
	allow(jvm.SigBoolean, "booleanValue", "toString", "valueOf")
	allow(jvm.SigCharacter, "charValue")
	allow(jvm.SigMath, "abs", "max", "min", "sqrt")
	c.AddRule(MethodRule{Class: jvm.SigThrowable, Name: "getMessage", Action: ActionAllow, Derived: true})

	return c
}
