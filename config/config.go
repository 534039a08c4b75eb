// Package config holds the method-call policy store: which methods an
// evaluation may call and how (natively or interpreted), the quota
// profiles per caller role, and the optional shared cost limit. Loaded
// from a safecaller.toml file, built programmatically, or both.
package config

import (
	"fmt"

	"github.com/henrybell/cloud-debug-java/jvm"
)

// CallAction classifies how a method may be called.
type CallAction int

const (
	// ActionBlock forbids the call.
	ActionBlock CallAction = iota
	// ActionAllow runs the method natively through the call bridge.
	ActionAllow
	// ActionInterpret runs the method's bytecode under supervision.
	ActionInterpret
)

var actionNames = [...]string{
	ActionBlock:     "block",
	ActionAllow:     "allow",
	ActionInterpret: "interpret",
}

func (a CallAction) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", int(a))
}

func parseAction(s string) (CallAction, error) {
	for a, name := range actionNames {
		if s == name {
			return CallAction(a), nil
		}
	}
	return ActionBlock, fmt.Errorf("unknown call action %q", s)
}

// MethodRule is one policy entry. An empty Descriptor matches every
// overload of the name; Derived extends the rule to subclasses of the
// class.
type MethodRule struct {
	Class      string
	Name       string
	Descriptor string
	Action     CallAction
	Derived    bool
}

// MethodCallQuota bounds one orchestrator's cumulative consumption.
// Both fields zero means the interpreter is disabled entirely: every
// method either runs natively or is blocked.
type MethodCallQuota struct {
	MaxInterpreterInstructions int
	MaxClassesLoad             int
}

// InterpreterDisabled reports whether interpretation is switched off.
func (q MethodCallQuota) InterpreterDisabled() bool {
	return q.MaxInterpreterInstructions == 0 && q.MaxClassesLoad == 0
}

// Caller roles with separate quota profiles, matching how the agent
// budgets watch expressions, object pretty printing, and log statements
// differently.
const (
	RoleExpression    = "expression"
	RolePrettyPrinter = "pretty_printer"
	RoleDynamicLog    = "dynamic_log"
)

// CostLimit configures the shared leaky-bucket governor.
type CostLimit struct {
	Capacity int64
	FillRate float64
}

// Config is the policy store.
type Config struct {
	rules  map[string][]MethodRule
	quotas map[string]MethodCallQuota
	cost   *CostLimit
}

// New returns an empty policy store: everything blocked, zero quotas.
func New() *Config {
	return &Config{
		rules:  make(map[string][]MethodRule),
		quotas: make(map[string]MethodCallQuota),
	}
}

// AddRule registers a policy entry.
func (c *Config) AddRule(r MethodRule) {
	c.rules[r.Class] = append(c.rules[r.Class], r)
}

// SetQuota sets the quota profile for a caller role.
func (c *Config) SetQuota(role string, q MethodCallQuota) {
	c.quotas[role] = q
}

// QuotaFor returns the quota profile for a role; an unknown role gets
// the zero quota, which disables the interpreter.
func (c *Config) QuotaFor(role string) MethodCallQuota {
	return c.quotas[role]
}

// SetCostLimit installs the shared cost limit.
func (c *Config) SetCostLimit(l CostLimit) { c.cost = &l }

// CostLimit returns the shared cost limit, nil when none is configured.
func (c *Config) CostLimit() *CostLimit { return c.cost }

// RuleFor finds the policy entry governing a call to cls.name with the
// given descriptor. Precedence: an exact-class rule naming the
// descriptor, then an exact-class rule for any descriptor, then the
// nearest ancestor rule marked Derived. Nil means no policy exists and
// the method is not callable.
func (c *Config) RuleFor(cls *jvm.Class, name, descriptor string) *MethodRule {
	if cls == nil {
		return nil
	}
	if r := c.classRule(cls.Signature(), name, descriptor); r != nil {
		return r
	}
	for ancestor := cls.Superclass(); ancestor != nil; ancestor = ancestor.Superclass() {
		if r := c.classRule(ancestor.Signature(), name, descriptor); r != nil && r.Derived {
			return r
		}
	}
	return nil
}

func (c *Config) classRule(classSig, name, descriptor string) *MethodRule {
	var loose *MethodRule
	entries := c.rules[classSig]
	for i := range entries {
		r := &entries[i]
		if r.Name != name {
			continue
		}
		if r.Descriptor == descriptor {
			return r
		}
		if r.Descriptor == "" && loose == nil {
			loose = r
		}
	}
	return loose
}
