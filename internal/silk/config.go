package silk

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/silkedit/silkedit-helper/internal/rpc"
)

// ConfigDefinition is one entry of a package's config.yml.
type ConfigDefinition struct {
	Type        string `yaml:"type" json:"type"`
	Default     any    `yaml:"default" json:"default,omitempty"`
	Description string `yaml:"description" json:"description,omitempty"`
}

type configGetter interface {
	GetConfig(ctx context.Context, name string) (any, error)
}

// Configs holds the declared config entries and reads their values from the host.
type Configs struct {
	host configGetter

	mu     sync.RWMutex
	defs   map[string]ConfigDefinition
	owners map[string]string // qualified name -> package
}

func newConfigs(host configGetter) *Configs {
	return &Configs{
		host:   host,
		defs:   make(map[string]ConfigDefinition),
		owners: make(map[string]string),
	}
}

// Define declares key for pkg under its qualified name and returns that name.
// A later definition replaces the earlier one and takes over ownership.
func (c *Configs) Define(pkg, key string, def ConfigDefinition) string {
	name := QualifiedName(pkg, key)
	c.mu.Lock()
	c.defs[name] = def
	c.owners[name] = pkg
	c.mu.Unlock()
	return name
}

// Undefine removes every definition owned by pkg.
func (c *Configs) Undefine(pkg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, owner := range c.owners {
		if owner == pkg {
			delete(c.owners, name)
			delete(c.defs, name)
		}
	}
}

// Definition returns the declaration of name.
func (c *Configs) Definition(name string) (ConfigDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[name]
	return def, ok
}

// Names lists declared names in sorted order.
func (c *Configs) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.defs))
	for name := range c.defs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Get returns the value of name converted to its declared type.
// Undeclared names and unknown types yield nil without asking the host.
// When the host has no value the declared default (or the type's zero value) is used.
func (c *Configs) Get(ctx context.Context, name string) (any, error) {
	def, ok := c.Definition(name)
	if !ok {
		return nil, nil
	}

	var conv func(any) (any, bool)
	var zero any
	switch def.Type {
	case "bool", "boolean":
		conv, zero = toBool, false
	case "string":
		conv, zero = toString, nil
	case "int", "integer":
		conv, zero = toInt, 0
	case "float":
		conv, zero = toFloat, 0.0
	default:
		return nil, nil
	}

	raw, err := c.host.GetConfig(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get config %s: %w", name, err)
	}
	if raw != nil {
		if v, ok := conv(raw); ok {
			return v, nil
		}
	}
	if def.Default != nil {
		return def.Default, nil
	}
	return zero, nil
}

func toBool(v any) (any, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		return b == "true", true
	case []byte:
		return string(b) == "true", true
	}
	return nil, false
}

func toString(v any) (any, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return fmt.Sprint(v), true
}

func toInt(v any) (any, bool) {
	if n, ok := rpc.AsInt(v); ok {
		return n, true
	}
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil, false
	}
	return n, true
}

func toFloat(v any) (any, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, false
		}
		return n, true
	}
	if n, ok := rpc.AsInt(v); ok {
		return float64(n), true
	}
	return nil, false
}
