package ecma

// BindKind distinguishes a fresh-binding destructuring declaration from a
// destructuring assignment into already-existing references (spec.md
// §4.4).
type BindKind uint8

const (
	BindDeclare BindKind = iota
	BindAssign
)

// resolvedRef is a pre-evaluated assignment target, used to preserve
// left-to-right evaluation order of the LHS in assignment-mode array/
// object patterns independent of when the corresponding value becomes
// available from the iterator (spec.md §4.4: "resolve any pre-resolved
// assignment reference to preserve evaluation order of LHS when the
// binding mode is assign").
type resolvedRef struct {
	set func(ctx *EvalContext, env *Environment, v Value) bool // false => ctx.Signal already set
}

func resolveAssignTarget(ctx *EvalContext, env *Environment, p Pattern) *resolvedRef {
	switch n := p.(type) {
	case *MemberPattern:
		targetVal := evalExpr(ctx, env, n.Target.Target)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		obj, ok := targetVal.(*Object)
		if !ok {
			ctx.throw(newEvalError(ctx.Realm, errTypeError, "Cannot create property on non-object"))
			return nil
		}
		var key PropertyKey
		if n.Target.Computed {
			kv := evalExpr(ctx, env, n.Target.Property)
			if ctx.Signal.ShouldStop() {
				return nil
			}
			key = ToPropertyKey(kv)
		} else {
			key = propKeyFromLiteral(n.Target.Property)
		}
		return &resolvedRef{set: func(ctx *EvalContext, env *Environment, v Value) bool {
			if !obj.SetProperty(key, v, obj) && env.IsStrict() {
				ctx.throw(newEvalError(ctx.Realm, errTypeError, "Cannot assign to read only property"))
				return false
			}
			return true
		}}
	default:
		return &resolvedRef{set: func(ctx *EvalContext, env *Environment, v Value) bool {
			BindPattern(ctx, env, p, v, BindAssign, DeclVar)
			return !ctx.Signal.ShouldStop()
		}}
	}
}

// BindPattern destructures value into p. kind selects declare-new-binding
// vs assign-to-existing-reference semantics; declKind only matters when
// kind == BindDeclare (var is function-scoped, let/const are lexical).
func BindPattern(ctx *EvalContext, env *Environment, p Pattern, value Value, kind BindKind, declKind DeclKind) {
	switch n := p.(type) {
	case *IdentifierPattern:
		bindIdentifier(ctx, env, n.Name, value, kind, declKind)
	case *ArrayPattern:
		bindArrayPattern(ctx, env, n, value, kind, declKind)
	case *ObjectPattern:
		bindObjectPattern(ctx, env, n, value, kind, declKind)
	case *MemberPattern:
		if kind != BindAssign {
			ctx.throw(newEvalError(ctx.Realm, errSyntaxError, "Invalid destructuring assignment target"))
			return
		}
		ref := resolveAssignTarget(ctx, env, n)
		if ref == nil {
			return
		}
		ref.set(ctx, env, value)
	}
}

func bindIdentifier(ctx *EvalContext, env *Environment, name string, value Value, kind BindKind, declKind DeclKind) {
	if kind == BindDeclare {
		switch declKind {
		case DeclVar:
			env.DefineFunctionScoped(name, value, true)
		case DeclLet:
			env.Define(name, value, true, false, true)
		case DeclConst:
			env.Define(name, value, true, true, true)
		}
		return
	}
	if err := env.Assign(name, value); err != nil {
		ctx.throwErrSignal(err)
	}
}

// bindArrayPattern implements spec.md §4.4 "Array patterns": consume an
// iterator, apply defaults, collect a rest element, and close the
// iterator exactly once on abrupt completion.
func bindArrayPattern(ctx *EvalContext, env *Environment, p *ArrayPattern, value Value, kind BindKind, declKind DeclKind) {
	it, err := GetIterator(ctx, value, IterSync)
	if err != nil {
		ctx.throwErrSignal(err)
		return
	}
	closed := false
	closeOnce := func(wasThrow bool) {
		if closed {
			return
		}
		closed = true
		_ = IteratorClose(ctx, it, wasThrow || ctx.Signal.Kind == SigThrow)
	}

	for i, el := range p.Elements {
		if el.Rest {
			rest := make([]Value, 0)
			for {
				v, done, nerr := IteratorNext(ctx, it, nil)
				if nerr != nil {
					closed = true
					ctx.throwErrSignal(nerr)
					return
				}
				if done {
					break
				}
				rest = append(rest, v)
			}
			closed = true
			arr := ctx.Realm.NewArray(rest...)
			if el.Target != nil {
				BindPattern(ctx, env, el.Target, arr, kind, declKind)
			}
			if ctx.Signal.ShouldStop() {
				return
			}
			continue
		}

		var ref *resolvedRef
		if kind == BindAssign && el.Target != nil {
			ref = resolveAssignTarget(ctx, env, el.Target)
			if ctx.Signal.ShouldStop() {
				closeOnce(true)
				return
			}
		}

		v, done, nerr := IteratorNext(ctx, it, nil)
		if nerr != nil {
			closed = true
			ctx.throwErrSignal(nerr)
			return
		}
		if done {
			v = _undefined
		}
		if IsUndefinedValue(v) && el.Default != nil {
			v = evalExpr(ctx, env, el.Default)
			if ctx.Signal.ShouldStop() {
				closeOnce(true)
				return
			}
		}
		if el.Target == nil {
			continue // elision
		}
		if ref != nil {
			if !ref.set(ctx, env, v) {
				closeOnce(true)
				return
			}
		} else {
			BindPattern(ctx, env, el.Target, v, kind, declKind)
		}
		if ctx.Signal.ShouldStop() {
			closeOnce(true)
			return
		}
		_ = i
	}
	closeOnce(false)
}

// bindObjectPattern implements spec.md §4.4 "Object patterns".
func bindObjectPattern(ctx *EvalContext, env *Environment, p *ObjectPattern, value Value, kind BindKind, declKind DeclKind) {
	if IsNullish(value) {
		ctx.throw(newEvalError(ctx.Realm, errTypeError, "Cannot destructure '%s' as it is %s.", value.ToString(), value.ToString()))
		return
	}
	consumed := map[PropertyKey]bool{}
	for _, prop := range p.Properties {
		if prop.Rest {
			restObj := ctx.Realm.NewPlainObject()
			if o, ok := value.(*Object); ok {
				for _, k := range o.GetOwnPropertyNames() {
					if consumed[k] {
						continue
					}
					d, ok := o.GetOwnPropertyDescriptor(k)
					if ok && d.Enumerable {
						restObj.SetProperty(k, o.Get(k), restObj)
					}
				}
			}
			if prop.Value != nil {
				BindPattern(ctx, env, prop.Value, restObj, kind, declKind)
			}
			if ctx.Signal.ShouldStop() {
				return
			}
			continue
		}
		var key PropertyKey
		if prop.Computed {
			kv := evalExpr(ctx, env, prop.Key)
			if ctx.Signal.ShouldStop() {
				return
			}
			key = ToPropertyKey(kv)
		} else {
			key = propKeyFromLiteral(prop.Key)
		}
		consumed[key] = true

		v := getPropertyFromValue(ctx, value, key)
		if ctx.Signal.ShouldStop() {
			return
		}
		if IsUndefinedValue(v) && prop.Default != nil {
			v = evalExpr(ctx, env, prop.Default)
			if ctx.Signal.ShouldStop() {
				return
			}
		}
		BindPattern(ctx, env, prop.Value, v, kind, declKind)
		if ctx.Signal.ShouldStop() {
			return
		}
	}
}

func propKeyFromLiteral(e Expr) PropertyKey {
	switch n := e.(type) {
	case *IdentifierExpr:
		return StringKey(n.Name)
	case *LiteralExpr:
		if n.Kind == LitString {
			return StringKey(n.Str)
		}
		return StringKey(formatFloat(n.Number))
	}
	return StringKey("")
}

// getPropertyFromValue reads a property off any Value, coercing primitives
// to their wrapper-object semantics only for the member-lookup itself
// (full primitive wrapper objects are a stdlib concern out of scope here;
// strings expose `length`/indices directly as a pragmatic subset).
func getPropertyFromValue(ctx *EvalContext, v Value, key PropertyKey) Value {
	if o, ok := v.(*Object); ok {
		return o.Get(key)
	}
	if s, ok := v.(valueString); ok {
		if key == StringKey("length") {
			return valueFloat(len([]rune(string(s))))
		}
		if sk, ok := key.(StringKey); ok {
			if idx, ok := arrayIndex(string(sk)); ok {
				runes := []rune(string(s))
				if idx >= 0 && idx < len(runes) {
					return StringValue(string(runes[idx]))
				}
				return _undefined
			}
		}
	}
	return _undefined
}

func IsUndefinedValue(v Value) bool {
	_, ok := v.(valueUndefined)
	return ok
}
