package ecma

// Realm owns the prototype chain roots and well-known symbols shared by
// every EvalContext spawned within it (spec.md §3 Realm state).
type Realm struct {
	ObjectPrototype   *Object
	FunctionPrototype *Object
	ArrayPrototype    *Object
	GlobalObject      *Object
	GlobalEnv         *Environment

	errorCtors map[errorConstructorName]*Object

	PromiseConstructor *Object

	SymIterator      *Symbol
	SymAsyncIterator *Symbol
	SymHasInstance   *Symbol
	SymToStringTag   *Symbol
	SymToPrimitive   *Symbol

	// restrictedGlobalNames may not be redeclared as a lexical binding at
	// global scope (spec.md §4.1 pre-flight check).
	restrictedGlobalNames map[string]bool

	Options RealmOptions

	Scheduler AwaitScheduler

	Tracer Tracer
}

// RealmOptions carries the realm-wide configuration flags named in
// spec.md §3 ("a table of restricted global properties... and
// configuration flags (enable_annex_b, max_call_depth)"); see config.go
// for the YAML-backed loader.
type RealmOptions struct {
	EnableAnnexB  bool `yaml:"enable_annex_b"`
	MaxCallDepth  int  `yaml:"max_call_depth"`
}

func DefaultRealmOptions() RealmOptions {
	return RealmOptions{EnableAnnexB: true, MaxCallDepth: 4000}
}

// NewRealm allocates prototype roots, well-known symbols, and error
// constructors, wiring everything the evaluator needs to run a program
// without any external stdlib collaborator present (spec.md §6: stdlib
// objects are out of scope, but TypeError/ReferenceError/RangeError/
// SyntaxError constructors are required by the evaluator itself per
// §4.7, so a minimal built-in version of them lives here).
func NewRealm(opts RealmOptions) *Realm {
	r := &Realm{
		Options:               opts,
		restrictedGlobalNames: map[string]bool{"undefined": true, "NaN": true, "Infinity": true, "globalThis": true},
	}
	r.ObjectPrototype = &Object{class: "Object", props: map[PropertyKey]*PropertyDescriptor{}, extensible: true}
	r.FunctionPrototype = newObject(r.ObjectPrototype)
	r.FunctionPrototype.class = "Function"
	r.FunctionPrototype.callable = &callableSlot{invoke: func(FunctionCall) (Value, error) { return _undefined, nil }, kind: callableHost}
	r.ArrayPrototype = newObject(r.ObjectPrototype)
	r.ArrayPrototype.class = "Array"
	r.ArrayPrototype.isArray = true

	r.SymIterator = NewSymbol("Symbol.iterator")
	r.SymAsyncIterator = NewSymbol("Symbol.asyncIterator")
	r.SymHasInstance = NewSymbol("Symbol.hasInstance")
	r.SymToStringTag = NewSymbol("Symbol.toStringTag")
	r.SymToPrimitive = NewSymbol("Symbol.toPrimitive")

	r.errorCtors = make(map[errorConstructorName]*Object)
	for _, name := range []errorConstructorName{errTypeError, errReferenceError, errRangeError, errSyntaxError} {
		r.errorCtors[name] = r.buildErrorConstructor(name)
	}

	r.GlobalObject = r.NewPlainObject()
	r.GlobalEnv = newGlobalEnvironment(r.GlobalObject, r)
	r.Scheduler = &syncBridgeScheduler{}
	r.Tracer = noopTracer{}
	return r
}

func (r *Realm) errorConstructor(name errorConstructorName) *Object {
	return r.errorCtors[name]
}

func (r *Realm) buildErrorConstructor(name errorConstructorName) *Object {
	proto := newObject(r.ObjectPrototype)
	proto.class = "Error"
	proto.defineOwn(StringKey("name"), DataDescriptor(StringValue(string(name)), true, false, true))
	proto.defineOwn(StringKey("message"), DataDescriptor(StringValue(""), true, false, true))

	ctor := r.NewConstructableHostFunction(string(name), 1, func(call FunctionCall) (Value, error) {
		return buildErrorInstance(proto, call.Argument(0)), nil
	}, func(args []Value, newTarget *Object) (*Object, error) {
		var msg Value = _undefined
		if len(args) > 0 {
			msg = args[0]
		}
		return buildErrorInstance(proto, msg), nil
	})
	ctor.defineOwn(StringKey("prototype"), DataDescriptor(proto, false, false, false))
	proto.defineOwn(StringKey("constructor"), DataDescriptor(ctor, true, false, true))
	return ctor
}

func buildErrorInstance(proto *Object, message Value) *Object {
	o := newObject(proto)
	o.class = "Error"
	if !IsNullish(message) {
		o.defineOwn(StringKey("message"), DataDescriptor(StringValue(message.ToString()), true, false, true))
	}
	return o
}

// InstanceOfErrorConstructor reports whether ctor is the realm's
// constructor for the error kind name (an identity check only; it does
// not walk any prototype chain).
func (r *Realm) InstanceOfErrorConstructor(ctor *Object, name string) bool {
	return r.errorCtors[errorConstructorName(name)] == ctor
}

// IsRestrictedGlobalName reports whether name may not be redeclared as a
// lexical binding at global scope (spec.md §4.1 pre-flight check).
func (r *Realm) IsRestrictedGlobalName(name string) bool {
	return r.restrictedGlobalNames[name]
}
