// Package operation defines the uniform metadata interface
// that every user-defined reactive unit exposes: ordered ports, an
// initial state, a strategy reference, and a set of named callbacks the
// strategy runtime dispatches by name.
package operation

import "fmt"

// Value is the opaque payload type flowing through ports, state cells,
// and callback arguments. Ports are typed by name only; the
// runtime never inspects a Value's shape.
type Value any

// EmitMap maps an out-port name to the ordered sequence of values a
// callback produced on it.
type EmitMap map[string][]Value

// Result is what a callback returns: a (possibly unchanged) state, the
// values it emitted per out-port, and an optional return value for
// callers that invoke it synchronously.
type Result struct {
	State   Value
	Emit    EmitMap
	Retval  Value
}

// Callback is a pure function of (state, config, args) to a Result. It
// never performs I/O directly; strategies route its emissions and any
// blocking work happens in the worker hosting it.
type Callback func(state Value, config Value, args []Value) (Result, error)

// Info declares what a callback does without running it, so a strategy
// can skip reading state or allocating emission tables when unnecessary
//.
type Info struct {
	Reads  bool
	Writes bool
	Emits  bool
	Arity  int
}

// CallbackEntry is one named, registered callback plus its declared Info.
type CallbackEntry struct {
	Name string
	Info Info
	Fn   Callback
}

// Operation is the immutable definition of a reactive unit: its ports,
// initial state, strategy reference, and callback set. Once built via
// Builder, the port lists never change.
type Operation struct {
	name       string
	inPorts    []string
	outPorts   []string
	initial    func() Value
	strategy   string
	callbacks  map[string]CallbackEntry
}

// Name returns the operation's definition name.
func (o *Operation) Name() string { return o.name }

// InPorts returns the ordered in-port names.
func (o *Operation) InPorts() []string { return append([]string(nil), o.inPorts...) }

// OutPorts returns the ordered out-port names.
func (o *Operation) OutPorts() []string { return append([]string(nil), o.outPorts...) }

// Strategy returns the strategy reference this operation deploys under.
func (o *Operation) Strategy() string { return o.strategy }

// InitialState evaluates the operation's initial state. Called lazily by
// the worker hosting an instance, by convention
func (o *Operation) InitialState() Value { return o.initial() }

// Callbacks returns every registered callback name.
func (o *Operation) Callbacks() []string {
	names := make([]string, 0, len(o.callbacks))
	for name := range o.callbacks {
		names = append(names, name)
	}
	return names
}

// CallbackInfo returns the declared Info for name.
func (o *Operation) CallbackInfo(name string) (Info, bool) {
	entry, ok := o.callbacks[name]
	return entry.Info, ok
}

// Call invokes the named callback against state, config and args.
func (o *Operation) Call(name string, state, config Value, args []Value) (Result, error) {
	entry, ok := o.callbacks[name]
	if !ok {
		return Result{}, fmt.Errorf("operation %s: no such callback %q", o.name, name)
	}
	if len(args) != entry.Info.Arity {
		return Result{}, fmt.Errorf("operation %s: callback %q wants arity %d, got %d", o.name, name, entry.Info.Arity, len(args))
	}
	return entry.Fn(state, config, args)
}

// InPortIndex returns the declared index of an in-port name.
func (o *Operation) InPortIndex(name string) (int, bool) {
	return indexOf(o.inPorts, name)
}

// OutPortIndex returns the declared index of an out-port name.
func (o *Operation) OutPortIndex(name string) (int, bool) {
	return indexOf(o.outPorts, name)
}

func indexOf(ports []string, name string) (int, bool) {
	for i, p := range ports {
		if p == name {
			return i, true
		}
	}
	return 0, false
}
