package ecma

// makeScriptFunction builds the callable *Object backing a function
// declaration, function expression, or arrow function (spec.md §3
// Callable / ScriptFunction). The closure captures env as its defining
// environment; every invocation creates a fresh function environment
// chained off it.
func makeScriptFunction(ctx *EvalContext, env *Environment, node *FunctionNode) *Object {
	sf := &ScriptFunction{
		Node:        node,
		Env:         env,
		Realm:       ctx.Realm,
		Name:        node.Name,
		Strict:      node.IsStrict || env.IsStrict(),
		IsArrow:     node.IsArrow,
		IsAsync:     node.IsAsync,
		IsGenerator: node.IsGenerator,
	}
	if node.HomeObject != nil {
		sf.HomeObject = node.HomeObject.Object
	}
	// A method/getter/setter/field-initializer function created while a
	// class body is being evaluated inherits that class's private-name
	// scope, so `this.#x` inside it resolves against the right brand
	// (spec.md §4.1 Classes).
	sf.PrivateScope = ctx.currentPrivateScope()

	fnObj := newObject(ctx.Realm.FunctionPrototype)
	fnObj.class = "Function"
	fnObj.defineOwn(StringKey("name"), DataDescriptor(StringValue(node.Name), false, false, true))
	fnObj.defineOwn(StringKey("length"), DataDescriptor(NumberValue(float64(countExpectedArgs(node.Params))), false, false, true))

	fnObj.callable = &callableSlot{
		kind:   callableScript,
		script: sf,
		invoke: func(call FunctionCall) (Value, error) {
			return callScriptFunction(sf, fnObj, call)
		},
	}
	if !node.IsArrow && !node.IsGenerator {
		proto := ctx.Realm.NewPlainObject()
		proto.defineOwn(StringKey("constructor"), DataDescriptor(fnObj, true, false, true))
		fnObj.defineOwn(StringKey("prototype"), DataDescriptor(proto, true, false, false))
		fnObj.callable.construct = func(args []Value, newTarget *Object) (*Object, error) {
			return constructScriptFunction(sf, fnObj, args, newTarget)
		}
	}
	return fnObj
}

func countExpectedArgs(params []Param) int {
	n := 0
	for _, p := range params {
		if p.Rest || p.Default != nil {
			break
		}
		if _, ok := p.Target.(*IdentifierPattern); !ok {
			break
		}
		n++
	}
	return n
}

// callScriptFunction is the [[Call]] internal method for a user-defined
// function (spec.md §4.1 Call protocol).
func callScriptFunction(sf *ScriptFunction, fnObj *Object, call FunctionCall) (result Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if tv, ok := r.(*ThrownValue); ok {
				err = tv
				return
			}
			panic(r)
		}
	}()

	fnEnv := NewFunctionEnvironment(sf.Env)
	if sf.Strict {
		fnEnv.isStrict = true
	}

	this := call.This
	if !sf.IsArrow {
		if IsNullish(this) && !sf.Strict {
			this = sf.Realm.GlobalObject
		}
		fnEnv.Define("this", this, false, false, true)
		fnEnv.Define("%homeObject%", homeObjectValue(sf.HomeObject), false, false, true)
		nt := Value(_undefined)
		if call.NewTarget != nil {
			nt = call.NewTarget
		}
		fnEnv.Define("new.target", nt, false, false, true)
		if !sf.IsArrow {
			fnEnv.Define("arguments", makeArgumentsObject(sf.Realm, call.Args, fnEnv, sf.Node), false, false, true)
		}
	}

	bindParameters(nil, fnEnv, sf.Node.Params, call.Args)

	genCtx := NewEvalContext(sf.Realm, ExecScript, nil)
	genCtx.pushFrame(ScopeFrame{Kind: FrameFunction, Mode: modeFor(fnEnv.IsStrict()), PrivateScope: sf.PrivateScope})

	if sf.IsGenerator {
		gen := newGeneratorObject(sf.Realm, sf, genCtx, fnEnv)
		return gen, nil
	}

	if sf.Node.ExprBody != nil {
		v := evalExpr(genCtx, fnEnv, sf.Node.ExprBody)
		if genCtx.Signal.Kind == SigThrow {
			return nil, &ThrownValue{Val: genCtx.Signal.Value}
		}
		if sf.IsAsync {
			return resolvedPromise(sf.Realm, v), nil
		}
		return v, nil
	}

	h := AnalyzeBlock(sf.Node.Body)
	hoistDeclarations(genCtx, fnEnv, h)
	for _, s := range sf.Node.Body {
		evalStmt(genCtx, fnEnv, s)
		if genCtx.Signal.ShouldStop() {
			break
		}
	}

	switch genCtx.Signal.Kind {
	case SigThrow:
		if sf.IsAsync {
			return rejectedPromise(sf.Realm, genCtx.Signal.Value), nil
		}
		return nil, &ThrownValue{Val: genCtx.Signal.Value}
	case SigReturn:
		if sf.IsAsync {
			return resolvedPromise(sf.Realm, genCtx.Signal.Value), nil
		}
		return genCtx.Signal.Value, nil
	default:
		if sf.IsAsync {
			return resolvedPromise(sf.Realm, _undefined), nil
		}
		return _undefined, nil
	}
}

func homeObjectValue(o *Object) Value {
	if o == nil {
		return _undefined
	}
	return o
}

// bindParameters destructures call args into fnEnv per spec.md §4.4
// (defaults evaluated left-to-right, rest collects the remainder).
func bindParameters(ctx *EvalContext, fnEnv *Environment, params []Param, args []Value) {
	if ctx == nil {
		ctx = NewEvalContext(fnEnv.RealmOf(), ExecScript, nil)
	}
	for i, p := range params {
		if p.Rest {
			var rest []Value
			if i < len(args) {
				rest = append(rest, args[i:]...)
			}
			BindPattern(ctx, fnEnv, p.Target, ctx.Realm.NewArray(rest...), BindDeclare, DeclLet)
			continue
		}
		var v Value = _undefined
		if i < len(args) {
			v = args[i]
		}
		if IsUndefinedValue(v) && p.Default != nil {
			v = evalExpr(ctx, fnEnv, p.Default)
		}
		BindPattern(ctx, fnEnv, p.Target, v, BindDeclare, DeclLet)
	}
}

// makeArgumentsObject builds the `arguments` object for a non-arrow
// function invocation. It is unmapped: index properties hold copies of the
// argument values, so assigning a parameter does not change arguments[i]
// and assigning arguments[i] does not change the parameter.
func makeArgumentsObject(r *Realm, args []Value, fnEnv *Environment, node *FunctionNode) *Object {
	o := newObject(r.ObjectPrototype)
	o.class = "Arguments"
	for i, v := range args {
		o.defineOwn(StringKey(itoa(i)), DataDescriptor(v, true, true, true))
	}
	o.defineOwn(StringKey("length"), DataDescriptor(NumberValue(float64(len(args))), true, false, true))
	o.defineOwn(r.SymIterator, DataDescriptor(r.NewHostFunction("[Symbol.iterator]", 0, func(FunctionCall) (Value, error) {
		idx := 0
		it := r.NewPlainObject()
		it.defineOwn(StringKey("next"), DataDescriptor(r.NewHostFunction("next", 0, func(FunctionCall) (Value, error) {
			if idx >= len(args) {
				return makeIterResult(r, _undefined, true), nil
			}
			v := args[idx]
			idx++
			return makeIterResult(r, v, false), nil
		}), true, false, true))
		return it, nil
	}), true, false, true))
	return o
}

// constructScriptFunction is the [[Construct]] internal method (spec.md
// §4.1), including the derived-class `this`-TDZ rule: a derived
// constructor's `this` stays unbound until its own body calls `super(...)`.
func constructScriptFunction(sf *ScriptFunction, fnObj *Object, args []Value, newTarget *Object) (result *Object, err error) {
	defer func() {
		if r := recover(); r != nil {
			if tv, ok := r.(*ThrownValue); ok {
				err = tv
				return
			}
			panic(r)
		}
	}()

	if sf.IsArrow || sf.IsGenerator || sf.IsAsync {
		return nil, NewTypeErrorNoRealm("%s is not a constructor", sf.Name)
	}

	fnEnv := NewFunctionEnvironment(sf.Env)
	if sf.Strict {
		fnEnv.isStrict = true
	}

	// OrdinaryCreateFromConstructor: the instance's prototype comes from
	// new.target's own "prototype" property, not necessarily fnObj's own
	// (a derived-class `new Sub()` call reaches a base [[Construct]] with
	// newTarget == Sub, so the instance must link to Sub.prototype).
	protoSource := fnObj
	if newTarget != nil {
		protoSource = newTarget
	}
	protoVal := protoSource.Get(StringKey("prototype"))
	proto, ok := protoVal.(*Object)
	if !ok {
		proto = sf.Realm.ObjectPrototype
	}

	var this *Object
	if !sf.DerivedCtor {
		this = newObject(proto)
		initializeInstanceFields(sf.Realm, sf.Fields, sf.PrivateScope, sf.HomeObject, this)
		fnEnv.Define("this", this, false, false, true)
	} else {
		// Derived constructor: `this` starts uninitialized (TDZ) until the
		// body's own `super(...)` call initializes it.
		fnEnv.Define("this", nil, false, false, false)
		if superCtor, ok := fnObj.Get(StringKey("__superConstructor__")).(*Object); ok {
			fnEnv.Define("%superConstructor%", superCtor, false, false, true)
		}
	}
	fnEnv.Define("%homeObject%", homeObjectValue(sf.HomeObject), false, false, true)
	fnEnv.Define("new.target", newTarget, false, false, true)
	fnEnv.Define("arguments", makeArgumentsObject(sf.Realm, args, fnEnv, sf.Node), false, false, true)

	ctx := NewEvalContext(sf.Realm, ExecScript, nil)
	bindParameters(ctx, fnEnv, sf.Node.Params, args)
	frame := ScopeFrame{Kind: FrameFunction, Mode: modeFor(fnEnv.IsStrict()), PrivateScope: sf.PrivateScope}
	if sf.DerivedCtor {
		frame.DerivedFields = sf.Fields
		frame.DerivedHomeObject = sf.HomeObject
	}
	ctx.pushFrame(frame)

	h := AnalyzeBlock(sf.Node.Body)
	hoistDeclarations(ctx, fnEnv, h)
	for _, s := range sf.Node.Body {
		evalStmt(ctx, fnEnv, s)
		if ctx.Signal.ShouldStop() {
			break
		}
	}

	if ctx.Signal.Kind == SigThrow {
		return nil, &ThrownValue{Val: ctx.Signal.Value}
	}

	if sf.DerivedCtor {
		if ctx.Signal.Kind == SigReturn {
			if ro, ok := ctx.Signal.Value.(*Object); ok {
				return ro, nil
			}
		}
		tv, err := fnEnv.Get("this")
		if err != nil {
			return nil, NewReferenceError(sf.Realm, "Must call super constructor in derived class before accessing 'this' or returning from derived constructor")
		}
		this, _ = tv.(*Object)
		if this == nil {
			return nil, NewReferenceError(sf.Realm, "Must call super constructor in derived class before accessing 'this' or returning from derived constructor")
		}
		return this, nil
	}

	if ctx.Signal.Kind == SigReturn {
		if ro, ok := ctx.Signal.Value.(*Object); ok {
			return ro, nil
		}
	}
	return this, nil
}

// runInitializerExpr evaluates a field/static-field initializer expression
// (or a private method/accessor's FunctionExpr) in a fresh function
// environment carrying `this`/`%homeObject%`/the class's private-name
// scope, shared by instance field initialization and class.go's static
// member evaluation.
func runInitializerExpr(realm *Realm, e Expr, definingEnv *Environment, this Value, homeObject *Object, privScope *privateScope) Value {
	if e == nil {
		return _undefined
	}
	fieldEnv := NewFunctionEnvironment(definingEnv)
	fieldEnv.Define("this", this, false, false, true)
	fieldEnv.Define("%homeObject%", homeObjectValue(homeObject), false, false, true)
	ctx := NewEvalContext(realm, ExecScript, nil)
	ctx.pushFrame(ScopeFrame{PrivateScope: privScope})
	v := evalExpr(ctx, fieldEnv, e)
	if ctx.Signal.Kind == SigThrow {
		panic(&ThrownValue{Val: ctx.Signal.Value})
	}
	return v
}

// initializeInstanceFields runs a class's own field, private-method, and
// private-accessor initializers in declaration order against the new
// instance (spec.md §4.1 Classes, InitializeInstance). Public methods and
// accessors are installed once on the prototype at class-definition time
// instead (see class.go); only per-instance state flows through here.
func initializeInstanceFields(realm *Realm, fields []instanceFieldInit, privScope *privateScope, homeObject *Object, this *Object) {
	for _, f := range fields {
		if f.Private == "" {
			v := runInitializerExpr(realm, f.Init, f.DefiningEnv, this, homeObject, privScope)
			this.defineOwn(f.Key, DataDescriptor(v, true, true, true))
			continue
		}
		switch f.Kind {
		case ClassMethod:
			v := runInitializerExpr(realm, f.Init, f.DefiningEnv, this, homeObject, privScope)
			this.definePrivate(privScope, f.Private, DataDescriptor(v, false, false, false))
		case ClassGetter, ClassSetter:
			var getVal, setVal Value
			if f.Init != nil {
				getVal = runInitializerExpr(realm, f.Init, f.DefiningEnv, this, homeObject, privScope)
			}
			if f.SetInit != nil {
				setVal = runInitializerExpr(realm, f.SetInit, f.DefiningEnv, this, homeObject, privScope)
			}
			this.definePrivate(privScope, f.Private, AccessorDescriptor(getVal, setVal, false, false))
		default: // ClassField
			v := runInitializerExpr(realm, f.Init, f.DefiningEnv, this, homeObject, privScope)
			this.definePrivate(privScope, f.Private, DataDescriptor(v, true, true, false))
		}
	}
}

// ---- minimal promise shape for async function returns ----

// resolvedPromise/rejectedPromise build a thenable exposing the settled
// state synchronously, compatible with syncBridgeScheduler's Await.
func resolvedPromise(r *Realm, v Value) *Object {
	return settledPromise(r, v, false)
}

func rejectedPromise(r *Realm, v Value) *Object {
	return settledPromise(r, v, true)
}

func settledPromise(r *Realm, v Value, rejected bool) *Object {
	p := r.NewPlainObject()
	p.class = "Promise"
	p.defineOwn(StringKey("then"), DataDescriptor(r.NewHostFunction("then", 2, func(call FunctionCall) (Value, error) {
		if rejected {
			if fn, ok := call.Argument(1).(*Object); ok && fn.callable != nil {
				return fn.callable.invoke(FunctionCall{This: _undefined, Args: []Value{v}})
			}
			return _undefined, nil
		}
		if fn, ok := call.Argument(0).(*Object); ok && fn.callable != nil {
			return fn.callable.invoke(FunctionCall{This: _undefined, Args: []Value{v}})
		}
		return _undefined, nil
	}), true, false, true))
	return p
}
