// Package execctx holds the execution context shared by every dispatch path:
// the merged configuration consulted by the engine plus the variable bindings
// a step reads and writes. The context is passed by reference into each call
// rather than living in a process global; callers must not dispatch
// concurrently against the same context.
package execctx

import "sort"

// Invocation carries the per-invocation keys that must not leak between
// unrelated runs: the resolved step input/output/depends lists and the
// variable classifications recorded by section analysis.
type Invocation struct {
	StepInput   []string
	StepOutput  []string
	StepDepends []string

	SignatureVars []string
	EnvironVars   []string
	ChangedVars   []string
}

// Context is the shared mutable execution state.
type Context struct {
	Config     map[string]any
	Invocation Invocation

	vars map[string]any
}

// New returns an empty context with initialized maps.
func New() *Context {
	return &Context{
		Config: map[string]any{},
		vars:   map[string]any{},
	}
}

// Set binds a variable.
func (c *Context) Set(name string, value any) {
	c.vars[name] = value
}

// Get looks up a variable binding.
func (c *Context) Get(name string) (any, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// Delete removes a variable binding if present.
func (c *Context) Delete(name string) {
	delete(c.vars, name)
}

// VarNames returns the bound variable names in sorted order.
func (c *Context) VarNames() []string {
	names := make([]string, 0, len(c.vars))
	for name := range c.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MergeConfig overlays values onto the configuration map.
func (c *Context) MergeConfig(values map[string]any) {
	if c.Config == nil {
		c.Config = map[string]any{}
	}
	for k, v := range values {
		c.Config[k] = v
	}
}

// ResetInvocation clears every per-invocation key by explicit assignment so
// no run observes step inputs, outputs, or classifications from a prior
// unrelated run.
func (c *Context) ResetInvocation() {
	c.Invocation = Invocation{}
}
