package operation

import "fmt"

// Builder constructs an Operation definition. It exists because the
// source language built operations via compile-time macros;
// here a builder produces the same immutable data model at plain
// runtime.
type Builder struct {
	op  *Operation
	err error
}

// NewBuilder starts building an operation named name.
func NewBuilder(name string) *Builder {
	return &Builder{op: &Operation{
		name:      name,
		callbacks: make(map[string]CallbackEntry),
		initial:   func() Value { return nil },
	}}
}

// InPorts sets the ordered in-port names. Call once.
func (b *Builder) InPorts(names ...string) *Builder {
	if b.err != nil {
		return b
	}
	if len(b.op.inPorts) != 0 {
		b.err = fmt.Errorf("operation %s: in-ports already set", b.op.name)
		return b
	}
	b.op.inPorts = append([]string(nil), names...)
	return b
}

// OutPorts sets the ordered out-port names. Call once.
func (b *Builder) OutPorts(names ...string) *Builder {
	if b.err != nil {
		return b
	}
	if len(b.op.outPorts) != 0 {
		b.err = fmt.Errorf("operation %s: out-ports already set", b.op.name)
		return b
	}
	b.op.outPorts = append([]string(nil), names...)
	return b
}

// InitialState sets the lazily-evaluated initial state producer.
func (b *Builder) InitialState(fn func() Value) *Builder {
	if b.err != nil {
		return b
	}
	b.op.initial = fn
	return b
}

// Strategy sets the strategy reference this operation deploys under.
func (b *Builder) Strategy(ref string) *Builder {
	if b.err != nil {
		return b
	}
	b.op.strategy = ref
	return b
}

// Callback registers a named callback with its declared info.
func (b *Builder) Callback(name string, info Info, fn Callback) *Builder {
	if b.err != nil {
		return b
	}
	if _, exists := b.op.callbacks[name]; exists {
		b.err = fmt.Errorf("operation %s: callback %q already registered", b.op.name, name)
		return b
	}
	b.op.callbacks[name] = CallbackEntry{Name: name, Info: info, Fn: fn}
	return b
}

// Build validates and returns the finished Operation.
func (b *Builder) Build() (*Operation, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.op.name == "" {
		return nil, fmt.Errorf("operation: name is required")
	}
	if b.op.strategy == "" {
		return nil, fmt.Errorf("operation %s: strategy reference is required", b.op.name)
	}
	seen := make(map[string]struct{})
	for _, p := range b.op.inPorts {
		if _, dup := seen[p]; dup {
			return nil, fmt.Errorf("operation %s: duplicate in-port %q", b.op.name, p)
		}
		seen[p] = struct{}{}
	}
	seen = make(map[string]struct{})
	for _, p := range b.op.outPorts {
		if _, dup := seen[p]; dup {
			return nil, fmt.Errorf("operation %s: duplicate out-port %q", b.op.name, p)
		}
		seen[p] = struct{}{}
	}
	return b.op, nil
}
