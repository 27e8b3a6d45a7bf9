package ecma

// Binding is a single name→value slot inside an Environment (spec.md §3
// Environment). Uninitialized is the TDZ sentinel state for lexical
// bindings: reading one before its declaration has executed fails with
// ReferenceError.
type Binding struct {
	value               Value
	initialized         bool
	isLexical           bool
	isConst             bool
	isParameter         bool
	blocksFunctionScope bool // true for let/const/class: blocks Annex-B var hoisting
	simpleCatch         bool // true for a bare-identifier catch parameter
}

// Environment is a lexical environment record forming a parent chain
// (spec.md §3/§4.2).
type Environment struct {
	parent *Environment

	bindings map[string]*Binding

	isFunctionScope bool
	isStrict        bool
	isGlobal        bool

	// withObject turns this record into a `with` virtual outer record
	// (spec.md §4.2): identifier lookups test the object's property
	// presence before falling through to parent.
	withObject *Object

	// bodyLexicalNames lists names declared lexically directly in this
	// environment's block, used by hoisting to decide whether a var/
	// function declaration may cross into it (spec.md §3 invariant ii).
	bodyLexicalNames map[string]bool

	globalObject *Object // non-nil only for the realm's global environment
	realm        *Realm  // non-nil only for the realm's global environment
}

func newEnvironment(parent *Environment, isFunctionScope bool) *Environment {
	strict := false
	if parent != nil {
		strict = parent.isStrict
	}
	return &Environment{
		parent:          parent,
		bindings:        make(map[string]*Binding),
		isFunctionScope: isFunctionScope,
		isStrict:        strict,
	}
}

// NewBlockEnvironment creates a block-scoped child environment.
func NewBlockEnvironment(parent *Environment) *Environment {
	return newEnvironment(parent, false)
}

// NewFunctionEnvironment creates a function-scoped child environment.
func NewFunctionEnvironment(parent *Environment) *Environment {
	return newEnvironment(parent, true)
}

// NewStrictEnvironment wraps parent in an environment that is identical
// except for its strictness flag (used for the program-level strict wrap
// per spec.md §4.1 pre-flight).
func NewStrictEnvironment(parent *Environment) *Environment {
	env := newEnvironment(parent, false)
	env.isStrict = true
	return env
}

func newGlobalEnvironment(global *Object, realm *Realm) *Environment {
	env := newEnvironment(nil, true)
	env.isGlobal = true
	env.globalObject = global
	env.realm = realm
	return env
}

func (e *Environment) Parent() *Environment { return e.parent }
func (e *Environment) IsStrict() bool       { return e.isStrict }
func (e *Environment) IsFunctionScope() bool { return e.isFunctionScope }

// WithObject returns the with-binding object for a `with` environment, or
// nil.
func (e *Environment) WithObject() *Object { return e.withObject }

// NewWithEnvironment wraps obj as a virtual outer record over parent
// (spec.md §4.2 `with` statements).
func NewWithEnvironment(parent *Environment, obj *Object) *Environment {
	env := newEnvironment(parent, false)
	env.withObject = obj
	return env
}

// Define creates a new binding in this environment (spec.md §4.2).
// Duplicate let/const in the same scope is a SyntaxError at the call
// site (evaluator.go's declareBlockLexicals checks this before calling Define);
// Define itself just overwrites, matching var's re-declaration semantics.
func (e *Environment) Define(name string, value Value, isLexical, isConst bool, initialized bool) {
	e.bindings[name] = &Binding{
		value:               value,
		initialized:         initialized,
		isLexical:           isLexical,
		isConst:             isConst,
		blocksFunctionScope: isLexical,
	}
}

// DefineParameter defines a function-parameter binding (always lexical-ish
// in the sense that it lives in the function's top environment, but never
// TDZ'd — parameters are always pre-initialized).
func (e *Environment) DefineParameter(name string, value Value) {
	e.bindings[name] = &Binding{value: value, initialized: true, isParameter: true}
}

// DefineSimpleCatch defines a bare catch-parameter binding, which Annex-B
// var hoisting is permitted to see through (spec.md §9 Open Question ii).
func (e *Environment) DefineSimpleCatch(name string, value Value) {
	e.bindings[name] = &Binding{value: value, initialized: true, isLexical: true, simpleCatch: true}
}

// HasOwnLexicalBinding reports whether name is declared directly (not via
// an ancestor) as a lexical binding in this environment.
func (e *Environment) HasOwnLexicalBinding(name string) bool {
	b, ok := e.bindings[name]
	return ok && b.isLexical
}

// HasBinding walks the chain (and any with-object) for presence.
func (e *Environment) HasBinding(name string) bool {
	for env := e; env != nil; env = env.parent {
		if env.withObject != nil && env.withObject.HasProperty(StringKey(name)) {
			return true
		}
		if _, ok := env.bindings[name]; ok {
			return true
		}
		if env.isGlobal && env.globalObject.HasProperty(StringKey(name)) {
			return true
		}
	}
	return false
}

// Get resolves an identifier, honoring TDZ (spec.md §3 invariant i).
func (e *Environment) Get(name string) (Value, error) {
	for env := e; env != nil; env = env.parent {
		if env.withObject != nil && env.withObject.HasProperty(StringKey(name)) {
			return env.withObject.Get(StringKey(name)), nil
		}
		if b, ok := env.bindings[name]; ok {
			if !b.initialized {
				return nil, NewReferenceError(nil, "Cannot access '%s' before initialization", name)
			}
			return b.value, nil
		}
		if env.isGlobal && env.globalObject.HasProperty(StringKey(name)) {
			return env.globalObject.Get(StringKey(name)), nil
		}
	}
	return nil, NewReferenceError(nil, "%s is not defined", name)
}

// TryGet resolves an identifier without raising on miss (used by `typeof`
// on an undeclared identifier, which must yield "undefined" and never
// throw, per spec.md §8 invariant).
func (e *Environment) TryGet(name string) (Value, bool) {
	for env := e; env != nil; env = env.parent {
		if env.withObject != nil && env.withObject.HasProperty(StringKey(name)) {
			return env.withObject.Get(StringKey(name)), true
		}
		if b, ok := env.bindings[name]; ok {
			if !b.initialized {
				return nil, true // present but TDZ; caller that cares uses Get
			}
			return b.value, true
		}
		if env.isGlobal && env.globalObject.HasProperty(StringKey(name)) {
			return env.globalObject.Get(StringKey(name)), true
		}
	}
	return nil, false
}

// Assign implements identifier assignment, honoring const rejection
// (spec.md §3 invariant iii) and TDZ.
func (e *Environment) Assign(name string, value Value) error {
	for env := e; env != nil; env = env.parent {
		if env.withObject != nil && env.withObject.HasProperty(StringKey(name)) {
			env.withObject.SetProperty(StringKey(name), value, env.withObject)
			return nil
		}
		if b, ok := env.bindings[name]; ok {
			if !b.initialized {
				return NewReferenceError(nil, "Cannot access '%s' before initialization", name)
			}
			if b.isConst {
				return NewTypeError(nil, "Assignment to constant variable.")
			}
			b.value = value
			return nil
		}
		if env.isGlobal {
			if env.globalObject.HasProperty(StringKey(name)) {
				env.globalObject.SetProperty(StringKey(name), value, env.globalObject)
				return nil
			}
		}
	}
	// Sloppy-mode implicit global creation.
	if !e.IsStrict() {
		global := e.globalEnv()
		if global != nil {
			global.globalObject.SetProperty(StringKey(name), value, global.globalObject)
			return nil
		}
	}
	return NewReferenceError(nil, "%s is not defined", name)
}

func (e *Environment) globalEnv() *Environment {
	for env := e; env != nil; env = env.parent {
		if env.isGlobal {
			return env
		}
	}
	return nil
}

// RealmOf returns the Realm that owns this environment's global scope,
// letting code that only has an Environment in hand (no EvalContext)
// recover its Realm, e.g. to build a throwaway EvalContext.
func (e *Environment) RealmOf() *Realm {
	g := e.globalEnv()
	if g == nil {
		return nil
	}
	return g.realm
}

// Initialize transitions a TDZ binding to initialized (used once a let/
// const/class declaration's position is reached during evaluation, and
// for parameter/catch bindings created already-initialized).
func (e *Environment) Initialize(name string, value Value) {
	if b, ok := e.bindings[name]; ok {
		b.value = value
		b.initialized = true
		return
	}
	e.bindings[name] = &Binding{value: value, initialized: true}
}

// nearestFunctionScope walks up to the nearest function-scope environment,
// used by DefineFunctionScoped (spec.md §4.2).
func (e *Environment) nearestFunctionScope() *Environment {
	for env := e; env != nil; env = env.parent {
		if env.isFunctionScope || env.isGlobal {
			return env
		}
	}
	return e
}

// DefineFunctionScoped installs a `var` binding at the nearest enclosing
// function scope (spec.md §4.2). If a binding already exists there, its
// value is left untouched unless hasInitializer is true — matching
// hoisting's "creating undefined slots without clobbering existing
// initialized ones" rule (spec.md §4.3).
func (e *Environment) DefineFunctionScoped(name string, value Value, hasInitializer bool) {
	target := e.nearestFunctionScope()
	if b, ok := target.bindings[name]; ok {
		if hasInitializer {
			b.value = value
			b.initialized = true
		}
		return
	}
	target.bindings[name] = &Binding{value: value, initialized: true}
}

// TryAssignBlockedBinding assigns to a var binding specifically at the
// nearest function scope, used by Annex-B function-declaration execution
// which must update both the lexical and the function-scoped slot.
func (e *Environment) TryAssignBlockedBinding(name string, value Value) {
	target := e.nearestFunctionScope()
	if b, ok := target.bindings[name]; ok {
		b.value = value
		b.initialized = true
		return
	}
	target.bindings[name] = &Binding{value: value, initialized: true}
}

// DeleteBinding implements delete on a variable environment record
// (bindings created via `var` in non-strict `eval` are deletable in real
// engines only in narrow cases; this evaluator treats all bindings as
// non-configurable, matching ordinary function/lexical declarations).
func (e *Environment) DeleteBinding(name string) DeleteResult {
	if _, ok := e.bindings[name]; ok {
		return NotConfigurable
	}
	return NotFound
}
