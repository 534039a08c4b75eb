package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// safecaller.toml layout:
//
//	[quota.expression]
//	max_interpreter_instructions = 10000
//	max_classes_load = 10
//
//	[cost_limit]
//	capacity = 5000
//	fill_rate = 500.0
//
//	[[method]]
//	class = "Lcom/acme/Point;"
//	name = "getX"
//	signature = "()I"   # optional, "" matches every overload
//	action = "allow"    # allow | block | interpret
//	derived = false
type fileConfig struct {
	Quota     map[string]fileQuota `toml:"quota"`
	CostLimit *fileCostLimit       `toml:"cost_limit"`
	Methods   []fileMethod         `toml:"method"`
}

type fileQuota struct {
	MaxInterpreterInstructions int `toml:"max_interpreter_instructions"`
	MaxClassesLoad             int `toml:"max_classes_load"`
}

type fileCostLimit struct {
	Capacity int64   `toml:"capacity"`
	FillRate float64 `toml:"fill_rate"`
}

type fileMethod struct {
	Class     string `toml:"class"`
	Name      string `toml:"name"`
	Signature string `toml:"signature"`
	Action    string `toml:"action"`
	Derived   bool   `toml:"derived"`
}

// LoadFile applies a safecaller.toml file on top of the receiver: file
// quotas and the cost limit override, file method rules take precedence
// over existing ones for the same class.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	var f fileConfig
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse error in %s: %w", path, err)
	}

	for role, q := range f.Quota {
		c.SetQuota(role, MethodCallQuota{
			MaxInterpreterInstructions: q.MaxInterpreterInstructions,
			MaxClassesLoad:             q.MaxClassesLoad,
		})
	}
	if f.CostLimit != nil {
		c.SetCostLimit(CostLimit{Capacity: f.CostLimit.Capacity, FillRate: f.CostLimit.FillRate})
	}
	for i, m := range f.Methods {
		if m.Class == "" || m.Name == "" {
			return fmt.Errorf("%s: method rule %d is missing class or name", path, i)
		}
		action, err := parseAction(m.Action)
		if err != nil {
			return fmt.Errorf("%s: method rule %d: %w", path, i, err)
		}
		rule := MethodRule{
			Class:      m.Class,
			Name:       m.Name,
			Descriptor: m.Signature,
			Action:     action,
			Derived:    m.Derived,
		}
		c.rules[rule.Class] = append([]MethodRule{rule}, c.rules[rule.Class]...)
	}
	return nil
}

// Load reads a safecaller.toml into a fresh, otherwise empty store.
func Load(path string) (*Config, error) {
	c := New()
	if err := c.LoadFile(path); err != nil {
		return nil, err
	}
	return c, nil
}
