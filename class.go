package ecma

// evalClass lowers a class declaration/expression into a constructor
// *Object (spec.md §4.1 Classes): resolve the superclass, build the
// constructor function, link prototypes, install methods/accessors,
// allocate a private-name scope when the body uses any `#` member, and run
// static field initializers and static blocks immediately. Instance fields
// and private instance methods/accessors are deferred onto the
// constructor's ScriptFunction.Fields and run later by
// initializeInstanceFields during `new` (or, for a derived class, right
// after its own `super(...)` call returns).
func evalClass(ctx *EvalContext, env *Environment, cls *ClassNode) *Object {
	classEnv := NewBlockEnvironment(env)
	if cls.Name != "" {
		classEnv.Define(cls.Name, nil, true, true, false)
	}

	derived := cls.SuperClass != nil
	var superCtor *Object
	var superProto *Object = ctx.Realm.ObjectPrototype

	if derived {
		superVal := evalExpr(ctx, classEnv, cls.SuperClass)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		if superVal == _null {
			superCtor = nil
			superProto = nil
		} else {
			sc, ok := superVal.(*Object)
			if !ok || sc.callable == nil || sc.callable.construct == nil {
				ctx.throw(newEvalError(ctx.Realm, errTypeError, "Class extends value %s is not a constructor", superVal.ToString()))
				return nil
			}
			protoVal := sc.Get(StringKey("prototype"))
			sp, ok := protoVal.(*Object)
			if !ok {
				ctx.throw(newEvalError(ctx.Realm, errTypeError, "Class extends value does not have valid prototype property"))
				return nil
			}
			superCtor = sc
			superProto = sp
		}
	}

	proto := newObject(superProto)

	// Any `#name` field, method, getter, or setter anywhere in the body
	// (instance or static) shares one private-name scope and brand token
	// for this class (spec.md §4.1: "allocate a private-name scope if any
	// `#` field or member exists").
	privScope := classPrivateScope(cls)

	ctorNode := cls.Constructor
	if ctorNode == nil {
		ctorNode = defaultConstructorNode(cls.Name, derived)
	}

	sf := &ScriptFunction{
		Node:        ctorNode,
		Env:         classEnv,
		Realm:       ctx.Realm,
		Name:        cls.Name,
		Strict:      true,
		IsClassCtor: true,
		DerivedCtor: derived,
		HomeObject:  proto,
		PrivateScope: privScope,
	}

	ctorObj := newObject(ctx.Realm.FunctionPrototype)
	ctorObj.class = "Function"
	ctorObj.defineOwn(StringKey("name"), DataDescriptor(StringValue(cls.Name), false, false, true))
	ctorObj.defineOwn(StringKey("length"), DataDescriptor(NumberValue(float64(countExpectedArgs(ctorNode.Params))), false, false, true))
	ctorObj.defineOwn(StringKey("prototype"), DataDescriptor(proto, false, false, false))
	proto.defineOwn(StringKey("constructor"), DataDescriptor(ctorObj, true, false, true))

	ctorObj.callable = &callableSlot{
		kind:   callableScript,
		script: sf,
		invoke: func(call FunctionCall) (Value, error) {
			return nil, NewTypeErrorNoRealm("Class constructor %s cannot be invoked without 'new'", nameOrAnonymous(cls.Name))
		},
		construct: func(args []Value, newTarget *Object) (*Object, error) {
			return constructScriptFunction(sf, ctorObj, args, newTarget)
		},
	}

	if superCtor != nil {
		ctorObj.SetPrototype(superCtor)
		ctorObj.defineOwn(StringKey("__superConstructor__"), DataDescriptor(superCtor, false, false, false))
	} else if derived {
		// extends null: still a derived constructor (`this` stays TDZ'd
		// until super() runs), but there is nothing to call; a body that
		// invokes super() fails the [[Construct]] lookup with a
		// TypeError, same as any other non-constructor super value.
		ctorObj.SetPrototype(ctx.Realm.FunctionPrototype)
	} else {
		ctorObj.SetPrototype(ctx.Realm.FunctionPrototype)
	}

	if cls.Name != "" {
		classEnv.Initialize(cls.Name, ctorObj)
	}

	var instanceFields []instanceFieldInit
	privateAccessorIdx := map[string]int{}

	// Methods/getters/setters built below via makeScriptFunction read the
	// ambient private-name scope off ctx, so it must be in force for the
	// whole member list, not just the constructor itself.
	ctx.pushFrame(ScopeFrame{PrivateScope: privScope})
	defer ctx.popFrame()

	for _, m := range cls.Members {
		if m.Kind == ClassStaticBlock {
			runStaticBlock(ctx.Realm, m.StaticBlk, classEnv, ctorObj, privScope)
			continue
		}

		key, priv := classMemberKey(ctx, classEnv, m)
		if ctx.Signal.ShouldStop() {
			return nil
		}

		target := proto
		homeObject := proto
		if m.Static {
			target = ctorObj
			homeObject = ctorObj
		}

		switch m.Kind {
		case ClassField:
			if priv != "" {
				if m.Static {
					v := runInitializerExpr(ctx.Realm, m.Value, classEnv, Value(ctorObj), homeObject, privScope)
					ctorObj.definePrivate(privScope, priv, DataDescriptor(v, true, true, false))
				} else {
					instanceFields = append(instanceFields, instanceFieldInit{
						Private: priv, Init: m.Value, Kind: ClassField, DefiningEnv: classEnv,
					})
				}
				continue
			}
			if m.Static {
				v := runInitializerExpr(ctx.Realm, m.Value, classEnv, Value(ctorObj), homeObject, privScope)
				ctorObj.defineOwn(key, DataDescriptor(v, true, true, true))
			} else {
				instanceFields = append(instanceFields, instanceFieldInit{
					Key: key, Init: m.Value, Kind: ClassField, DefiningEnv: classEnv,
				})
			}

		case ClassMethod:
			fn, ok := m.Value.(*FunctionExpr)
			if !ok {
				continue
			}
			fn.Function.HomeObject = &ObjectRef{Object: homeObject}
			if priv != "" {
				if m.Static {
					v := makeScriptFunction(ctx, classEnv, fn.Function)
					ctorObj.definePrivate(privScope, priv, DataDescriptor(v, false, false, false))
				} else {
					instanceFields = append(instanceFields, instanceFieldInit{
						Private: priv, Init: fn, Kind: ClassMethod, DefiningEnv: classEnv,
					})
				}
				continue
			}
			v := makeScriptFunction(ctx, classEnv, fn.Function)
			target.defineOwn(key, DataDescriptor(v, true, false, true))

		case ClassGetter, ClassSetter:
			fn, ok := m.Value.(*FunctionExpr)
			if !ok {
				continue
			}
			fn.Function.HomeObject = &ObjectRef{Object: homeObject}
			if priv != "" {
				if m.Static {
					v := makeScriptFunction(ctx, classEnv, fn.Function)
					prior, _ := ctorObj.privateDescriptor(privScope, priv)
					desc := AccessorDescriptor(prior.Get, prior.Set, false, false)
					if m.Kind == ClassGetter {
						desc.Get = v
					} else {
						desc.Set = v
					}
					ctorObj.definePrivate(privScope, priv, desc)
				} else {
					if idx, ok := privateAccessorIdx[priv]; ok {
						if m.Kind == ClassGetter {
							instanceFields[idx].Init = fn
						} else {
							instanceFields[idx].SetInit = fn
						}
					} else {
						entry := instanceFieldInit{Private: priv, Kind: ClassGetter, DefiningEnv: classEnv}
						if m.Kind == ClassGetter {
							entry.Init = fn
						} else {
							entry.SetInit = fn
						}
						instanceFields = append(instanceFields, entry)
						privateAccessorIdx[priv] = len(instanceFields) - 1
					}
				}
				continue
			}
			v := makeScriptFunction(ctx, classEnv, fn.Function)
			var get, set Value
			if m.Kind == ClassGetter {
				get = v
			} else {
				set = v
			}
			desc := mergeAccessor(target, key, get, set)
			desc.Enumerable = false
			target.defineOwn(key, desc)
		}
	}

	sf.Fields = instanceFields
	return ctorObj
}

func nameOrAnonymous(name string) string {
	if name == "" {
		return "(anonymous)"
	}
	return name
}

// classMemberKey resolves a class member's property key, returning either
// a non-empty PropertyKey (public member) or a non-empty private name
// (private member) — never both.
func classMemberKey(ctx *EvalContext, env *Environment, m ClassMember) (PropertyKey, string) {
	if m.Private != "" {
		return nil, m.Private
	}
	if m.Computed {
		v := evalExpr(ctx, env, m.Key)
		if ctx.Signal.ShouldStop() {
			return nil, ""
		}
		return ToPropertyKey(v), ""
	}
	return propKeyFromLiteral(m.Key), ""
}

// classPrivateScope allocates a fresh private-name scope iff the class
// body declares at least one `#` member anywhere (instance or static).
func classPrivateScope(cls *ClassNode) *privateScope {
	for _, m := range cls.Members {
		if m.Private != "" {
			return newPrivateScope()
		}
	}
	return nil
}

// defaultConstructorNode synthesizes the implicit constructor ECMA-262
// gives a class with no explicit `constructor(...)`: an empty body for a
// base class, or `constructor(...args) { super(...args); }` for a derived
// one.
func defaultConstructorNode(name string, derived bool) *FunctionNode {
	if !derived {
		return &FunctionNode{Name: name, IsStrict: true, IsMethod: true}
	}
	return &FunctionNode{
		Name:     name,
		IsStrict: true,
		IsMethod: true,
		Params:   []Param{{Target: idPat("args"), Rest: true}},
		Body: []Stmt{
			exprStmt(&CallExpr{
				Callee:  &SuperExpr{},
				Args:    []Expr{&SpreadExpr{Argument: id("args")}},
				Spreads: []bool{true},
			}),
		},
	}
}

// runStaticBlock executes a `static { ... }` block once during class
// definition, with `this` bound to the constructor object and no
// arguments/new.target binding (SPEC_FULL.md supplemented feature #8).
func runStaticBlock(realm *Realm, body []Stmt, definingEnv *Environment, ctorObj *Object, privScope *privateScope) {
	blockEnv := NewFunctionEnvironment(definingEnv)
	blockEnv.Define("this", ctorObj, false, false, true)
	blockEnv.Define("%homeObject%", homeObjectValue(ctorObj), false, false, true)
	ctx := NewEvalContext(realm, ExecScript, nil)
	ctx.pushFrame(ScopeFrame{Kind: FrameFunction, Mode: ModeStrict, PrivateScope: privScope})
	h := AnalyzeBlock(body)
	hoistDeclarations(ctx, blockEnv, h)
	declareBlockLexicals(ctx, blockEnv, body)
	if ctx.Signal.ShouldStop() {
		panic(&ThrownValue{Val: ctx.Signal.Value})
	}
	for _, s := range body {
		evalStmt(ctx, blockEnv, s)
		if ctx.Signal.ShouldStop() {
			break
		}
	}
	if ctx.Signal.Kind == SigThrow {
		panic(&ThrownValue{Val: ctx.Signal.Value})
	}
}
