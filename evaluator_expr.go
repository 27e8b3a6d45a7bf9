package ecma

import "math/big"

// evalExpr dispatches one expression to its value, honoring the explicit
// Signal model: callers must check ctx.Signal.ShouldStop() immediately
// after and treat the returned Value as meaningless if so.
func evalExpr(ctx *EvalContext, env *Environment, e Expr) Value {
	if err := ctx.pollCancellation(); err != nil {
		panic(err)
	}
	switch n := e.(type) {
	case *LiteralExpr:
		return evalLiteral(ctx, n)
	case *IdentifierExpr:
		v, err := env.Get(n.Name)
		if err != nil {
			ctx.throwErrSignal(err)
			return nil
		}
		return v
	case *ThisExpr:
		v, _ := env.Get("this")
		if v == nil {
			return _undefined
		}
		return v
	case *NewTargetExpr:
		v, ok := env.TryGet("new.target")
		if !ok || v == nil {
			return _undefined
		}
		return v
	case *SuperExpr:
		panic(newHostError(HostErrUnsupportedNode, n.Ref(), "`super` may only appear as a call or member target"))
	case *ArrayExpr:
		return evalArrayLiteral(ctx, env, n)
	case *ObjectExpr:
		return evalObjectLiteral(ctx, env, n)
	case *TemplateExpr:
		return evalTemplate(ctx, env, n)
	case *TaggedTemplateExpr:
		return evalTaggedTemplate(ctx, env, n)
	case *FunctionExpr:
		return makeScriptFunction(ctx, env, n.Function)
	case *ArrowFunctionExpr:
		return makeScriptFunction(ctx, env, n.Function)
	case *ClassExpr:
		return evalClass(ctx, env, n.Class)
	case *SequenceExpr:
		var v Value = _undefined
		for _, sub := range n.Exprs {
			v = evalExpr(ctx, env, sub)
			if ctx.Signal.ShouldStop() {
				return nil
			}
		}
		return v
	case *ConditionalExpr:
		test := evalExpr(ctx, env, n.Test)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		if test.ToBoolean() {
			return evalExpr(ctx, env, n.Consequent)
		}
		return evalExpr(ctx, env, n.Alternate)
	case *LogicalExpr:
		return evalLogical(ctx, env, n)
	case *BinaryExpr:
		l := evalExpr(ctx, env, n.Left)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		r := evalExpr(ctx, env, n.Right)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		v, err := evalBinary(ctx, n.Op, l, r)
		if err != nil {
			ctx.throwErrSignal(err)
			return nil
		}
		return v
	case *UnaryExpr:
		return evalUnaryExpr(ctx, env, n)
	case *UpdateExpr:
		return evalUpdateExpr(ctx, env, n)
	case *AssignmentExpr:
		return evalAssignment(ctx, env, n)
	case *DestructuringAssignmentExpr:
		v := evalExpr(ctx, env, n.Value)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		BindPattern(ctx, env, n.Target, v, BindAssign, DeclVar)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		return v
	case *MemberExpr:
		v, _ := evalMemberGet(ctx, env, n)
		return v
	case *CallExpr:
		return evalCall(ctx, env, n)
	case *NewExpr:
		return evalNew(ctx, env, n)
	case *SpreadExpr:
		panic(newHostError(HostErrUnsupportedNode, n.Ref(), "spread element may only appear inside a call/array/object"))
	case *YieldExpr:
		return evalYield(ctx, env, n)
	case *AwaitExpr:
		return evalAwait(ctx, env, n)
	}
	panic(newHostError(HostErrUnsupportedNode, e.Ref(), "unsupported expression node %T", e))
}

func evalLiteral(ctx *EvalContext, n *LiteralExpr) Value {
	switch n.Kind {
	case LitUndefined:
		return _undefined
	case LitNull:
		return _null
	case LitBool:
		return BoolValue(n.Bool)
	case LitNumber:
		return NumberValue(n.Number)
	case LitBigInt:
		bi, ok := parseBigIntDigits(n.BigInt)
		if !ok {
			panic(newHostError(HostErrInvariant, n.Ref(), "malformed bigint literal %q", n.BigInt))
		}
		return BigIntValue(bi)
	case LitString:
		return StringValue(n.Str)
	}
	return _undefined
}

func evalLogical(ctx *EvalContext, env *Environment, n *LogicalExpr) Value {
	l := evalExpr(ctx, env, n.Left)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	switch n.Op {
	case OpLogicalAnd:
		if !l.ToBoolean() {
			return l
		}
	case OpLogicalOr:
		if l.ToBoolean() {
			return l
		}
	case OpNullish:
		if !IsNullish(l) {
			return l
		}
	}
	return evalExpr(ctx, env, n.Right)
}

func evalUnaryExpr(ctx *EvalContext, env *Environment, n *UnaryExpr) Value {
	if n.Op == OpTypeof {
		if ident, ok := n.Argument.(*IdentifierExpr); ok {
			v, present := env.TryGet(ident.Name)
			if !present || v == nil {
				return StringValue("undefined")
			}
			return StringValue(v.typeName())
		}
	}
	if n.Op == OpDelete {
		return evalDelete(ctx, env, n.Argument)
	}
	v := evalExpr(ctx, env, n.Argument)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	res, err := evalUnary(ctx, n.Op, v)
	if err != nil {
		ctx.throwErrSignal(err)
		return nil
	}
	return res
}

// evalDelete implements the `delete` operator (supplemented feature: not a
// plain unary op, since it needs the reference rather than its value).
func evalDelete(ctx *EvalContext, env *Environment, target Expr) Value {
	m, ok := target.(*MemberExpr)
	if !ok {
		return _true // deleting a non-reference is a no-op success
	}
	obj := evalExpr(ctx, env, m.Target)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	if IsNullish(obj) {
		ctx.throw(newEvalError(ctx.Realm, errTypeError, "Cannot convert undefined or null to object"))
		return nil
	}
	o, ok := obj.(*Object)
	if !ok {
		return _true
	}
	key := memberKey(ctx, env, m)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	res := o.Delete(key)
	if res == NotConfigurable && env.IsStrict() {
		ctx.throw(newEvalError(ctx.Realm, errTypeError, "Cannot delete property '%v' of object", key))
		return nil
	}
	return BoolValue(res != NotConfigurable)
}

func memberKey(ctx *EvalContext, env *Environment, m *MemberExpr) PropertyKey {
	if !m.Computed {
		return propKeyFromLiteral(m.Property)
	}
	kv := evalExpr(ctx, env, m.Property)
	if ctx.Signal.ShouldStop() {
		return StringKey("")
	}
	return ToPropertyKey(kv)
}

// evalMemberGet evaluates a member expression, returning (value, thisForCall)
// so call-expression evaluation can bind the correct `this` without
// re-evaluating the target.
func evalMemberGet(ctx *EvalContext, env *Environment, m *MemberExpr) (Value, Value) {
	if m.Private != "" {
		targetVal := evalExpr(ctx, env, m.Target)
		if ctx.Signal.ShouldStop() {
			return nil, nil
		}
		return evalPrivateGet(ctx, env, targetVal, m.Private), targetVal
	}
	if _, ok := m.Target.(*SuperExpr); ok {
		return evalSuperMemberGet(ctx, env, m)
	}
	targetVal := evalExpr(ctx, env, m.Target)
	if ctx.Signal.ShouldStop() {
		return nil, nil
	}
	if m.Optional && IsNullish(targetVal) {
		ctx.Signal = Signal{Kind: SigEmpty}
		return _undefined, _undefined
	}
	key := memberKey(ctx, env, m)
	if ctx.Signal.ShouldStop() {
		return nil, nil
	}
	v := safeGetProp(ctx, targetVal, key)
	return v, targetVal
}

func evalPrivateGet(ctx *EvalContext, env *Environment, targetVal Value, name string) Value {
	o, ok := targetVal.(*Object)
	if !ok {
		ctx.throw(newEvalError(ctx.Realm, errTypeError, "Cannot read private member #%s from non-object", name))
		return nil
	}
	scope := ctx.currentPrivateScope()
	if scope == nil || !o.carriesBrand(scope) {
		ctx.throw(newEvalError(ctx.Realm, errTypeError, "Cannot read private member #%s from an object whose class did not declare it", name))
		return nil
	}
	v, ok := o.getPrivate(scope, name)
	if !ok {
		ctx.throw(newEvalError(ctx.Realm, errTypeError, "Cannot read private member #%s from an object whose class did not declare it", name))
		return nil
	}
	return v
}

func evalSuperMemberGet(ctx *EvalContext, env *Environment, m *MemberExpr) (Value, Value) {
	home, _ := env.Get("%homeObject%")
	homeObj, _ := home.(*Object)
	this, _ := env.Get("this")
	if homeObj == nil || homeObj.Prototype() == nil {
		ctx.throw(newEvalError(ctx.Realm, errTypeError, "'super' keyword is only valid inside a method"))
		return nil, nil
	}
	key := memberKey(ctx, env, m)
	if ctx.Signal.ShouldStop() {
		return nil, nil
	}
	v, ok := homeObj.Prototype().TryGetProperty(key, this)
	if !ok {
		return _undefined, this
	}
	return v, this
}

// safeGetProp reads a property off v, converting an accessor-invocation
// panic back into a catchable Signal instead of letting it escape as a raw
// Go panic (Object.TryGetProperty/SetProperty panic with the raw error on
// accessor failure since they have no EvalContext of their own to set a
// Signal on).
func safeGetProp(ctx *EvalContext, v Value, key PropertyKey) (result Value) {
	if IsNullish(v) {
		ctx.throw(newEvalError(ctx.Realm, errTypeError, "Cannot read properties of %s (reading '%v')", v.ToString(), key))
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			result = recoverAsSignal(ctx, r)
		}
	}()
	if o, ok := v.(*Object); ok {
		return o.Get(key)
	}
	return getPropertyFromValue(ctx, v, key)
}

func safeSetProp(ctx *EvalContext, o *Object, key PropertyKey, value Value) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			recoverAsSignal(ctx, r)
			ok = false
		}
	}()
	return o.SetProperty(key, value, o)
}

// recoverAsSignal converts a panicked error from a capability method
// (Object property accessors) into ctx.Signal when it's a catchable
// *ThrownValue, and re-panics any genuine *HostError so the top-level
// recovery in EvaluateProgram still sees it.
func recoverAsSignal(ctx *EvalContext, r interface{}) Value {
	err, ok := r.(error)
	if !ok {
		panic(r)
	}
	if tv, ok := AsThrown(err); ok {
		ctx.throw(tv)
		return nil
	}
	panic(err)
}

func evalArrayLiteral(ctx *EvalContext, env *Environment, n *ArrayExpr) Value {
	var elems []Value
	for _, el := range n.Elements {
		if el.Expr == nil {
			elems = append(elems, _undefined)
			continue
		}
		if el.Spread {
			v := evalExpr(ctx, env, el.Expr)
			if ctx.Signal.ShouldStop() {
				return nil
			}
			it, err := GetIterator(ctx, v, IterSync)
			if err != nil {
				ctx.throwErrSignal(err)
				return nil
			}
			for {
				item, done, nerr := IteratorNext(ctx, it, nil)
				if nerr != nil {
					ctx.throwErrSignal(nerr)
					return nil
				}
				if done {
					break
				}
				elems = append(elems, item)
			}
			continue
		}
		v := evalExpr(ctx, env, el.Expr)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		elems = append(elems, v)
	}
	return ctx.Realm.NewArray(elems...)
}

func evalObjectLiteral(ctx *EvalContext, env *Environment, n *ObjectExpr) Value {
	obj := ctx.Realm.NewPlainObject()
	for _, m := range n.Members {
		if m.Kind == PropSpread {
			src := evalExpr(ctx, env, m.Value)
			if ctx.Signal.ShouldStop() {
				return nil
			}
			if so, ok := src.(*Object); ok {
				for _, k := range so.GetOwnPropertyNames() {
					d, ok := so.GetOwnPropertyDescriptor(k)
					if ok && d.Enumerable {
						obj.SetProperty(k, so.Get(k), obj)
					}
				}
			}
			continue
		}
		var key PropertyKey
		if m.Computed {
			kv := evalExpr(ctx, env, m.Key)
			if ctx.Signal.ShouldStop() {
				return nil
			}
			key = ToPropertyKey(kv)
		} else {
			key = propKeyFromLiteral(m.Key)
		}
		switch m.Kind {
		case PropGetter:
			fn := makeScriptFunction(ctx, env, m.Value.(*FunctionExpr).Function)
			merged := mergeAccessor(obj, key, fn, nil)
			obj.defineOwn(key, merged)
		case PropSetter:
			fn := makeScriptFunction(ctx, env, m.Value.(*FunctionExpr).Function)
			merged := mergeAccessor(obj, key, nil, fn)
			obj.defineOwn(key, merged)
		default:
			v := evalExpr(ctx, env, m.Value)
			if ctx.Signal.ShouldStop() {
				return nil
			}
			if sk, ok := key.(StringKey); ok {
				nameInferAnonymous(v, string(sk))
			}
			obj.defineOwn(key, DataDescriptor(v, true, true, true))
		}
	}
	return obj
}

func mergeAccessor(obj *Object, key PropertyKey, get, set Value) PropertyDescriptor {
	if prior, ok := obj.GetOwnPropertyDescriptor(key); ok && prior.IsAccessor {
		if get == nil {
			get = prior.Get
		}
		if set == nil {
			set = prior.Set
		}
	}
	return AccessorDescriptor(get, set, true, true)
}

func evalTemplate(ctx *EvalContext, env *Environment, n *TemplateExpr) Value {
	var b []byte
	for i, cooked := range n.Cooked {
		b = append(b, cooked...)
		if i < len(n.Expressions) {
			v := evalExpr(ctx, env, n.Expressions[i])
			if ctx.Signal.ShouldStop() {
				return nil
			}
			b = append(b, v.ToString()...)
		}
	}
	return StringValue(string(b))
}

func evalTaggedTemplate(ctx *EvalContext, env *Environment, n *TaggedTemplateExpr) Value {
	tagFn, thisVal := resolveCallee(ctx, env, n.Tag)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	strings := ctx.Realm.NewArray()
	raw := ctx.Realm.NewArray()
	for _, s := range n.Template.Cooked {
		strings.arrayData = append(strings.arrayData, StringValue(s))
	}
	for _, s := range n.Template.Raw {
		raw.arrayData = append(raw.arrayData, StringValue(s))
	}
	strings.defineOwn(StringKey("raw"), DataDescriptor(raw, false, false, false))
	args := []Value{strings}
	for _, e := range n.Template.Expressions {
		v := evalExpr(ctx, env, e)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		args = append(args, v)
	}
	return invokeCallable(ctx, tagFn, thisVal, args, nil)
}

// ---- assignment & update ----

func evalAssignment(ctx *EvalContext, env *Environment, n *AssignmentExpr) Value {
	if n.Op == AssignPlain {
		if p, ok := n.Target.(Pattern); ok {
			if _, isMember := p.(*MemberPattern); !isMember {
				v := evalExpr(ctx, env, n.Value)
				if ctx.Signal.ShouldStop() {
					return nil
				}
				BindPattern(ctx, env, p, v, BindAssign, DeclVar)
				return v
			}
		}
	}
	switch t := n.Target.(type) {
	case *IdentifierExpr:
		if n.Op == AssignLAnd || n.Op == AssignLOr || n.Op == AssignNullsh {
			return evalLogicalAssign(ctx, env, n, t)
		}
		cur, err := env.Get(t.Name)
		if err != nil {
			ctx.throwErrSignal(err)
			return nil
		}
		rhs := evalExpr(ctx, env, n.Value)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		result := rhs
		if n.Op != AssignPlain {
			result = applyCompound(ctx, n.Op, cur, rhs)
			if ctx.Signal.ShouldStop() {
				return nil
			}
		} else {
			nameInferAnonymous(rhs, t.Name)
		}
		if err := env.Assign(t.Name, result); err != nil {
			ctx.throwErrSignal(err)
			return nil
		}
		return result
	case *MemberExpr:
		return evalMemberAssign(ctx, env, n, t)
	}
	if p, ok := n.Target.(Pattern); ok {
		v := evalExpr(ctx, env, n.Value)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		BindPattern(ctx, env, p, v, BindAssign, DeclVar)
		return v
	}
	panic(newHostError(HostErrUnsupportedNode, n.Ref(), "unsupported assignment target %T", n.Target))
}

func evalLogicalAssign(ctx *EvalContext, env *Environment, n *AssignmentExpr, t *IdentifierExpr) Value {
	cur, err := env.Get(t.Name)
	if err != nil {
		ctx.throwErrSignal(err)
		return nil
	}
	switch n.Op {
	case AssignLAnd:
		if !cur.ToBoolean() {
			return cur
		}
	case AssignLOr:
		if cur.ToBoolean() {
			return cur
		}
	case AssignNullsh:
		if !IsNullish(cur) {
			return cur
		}
	}
	rhs := evalExpr(ctx, env, n.Value)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	if err := env.Assign(t.Name, rhs); err != nil {
		ctx.throwErrSignal(err)
		return nil
	}
	return rhs
}

func evalMemberAssign(ctx *EvalContext, env *Environment, n *AssignmentExpr, m *MemberExpr) Value {
	targetVal := evalExpr(ctx, env, m.Target)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	o, ok := targetVal.(*Object)
	if !ok {
		ctx.throw(newEvalError(ctx.Realm, errTypeError, "Cannot set property on non-object"))
		return nil
	}
	if m.Private != "" {
		return evalPrivateAssign(ctx, env, n, o, m.Private)
	}
	key := memberKey(ctx, env, m)
	if ctx.Signal.ShouldStop() {
		return nil
	}

	isLogical := n.Op == AssignLAnd || n.Op == AssignLOr || n.Op == AssignNullsh
	var cur Value
	if n.Op != AssignPlain {
		cur = safeGetProp(ctx, o, key)
		if ctx.Signal.ShouldStop() {
			return nil
		}
	}
	if isLogical {
		switch n.Op {
		case AssignLAnd:
			if !cur.ToBoolean() {
				return cur
			}
		case AssignLOr:
			if cur.ToBoolean() {
				return cur
			}
		case AssignNullsh:
			if !IsNullish(cur) {
				return cur
			}
		}
	}
	rhs := evalExpr(ctx, env, n.Value)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	result := rhs
	if !isLogical && n.Op != AssignPlain {
		result = applyCompound(ctx, n.Op, cur, rhs)
		if ctx.Signal.ShouldStop() {
			return nil
		}
	}
	if !safeSetProp(ctx, o, key, result) {
		if ctx.Signal.ShouldStop() {
			return nil
		}
		if env.IsStrict() {
			ctx.throw(newEvalError(ctx.Realm, errTypeError, "Cannot assign to read only property '%v' of object", key))
			return nil
		}
	}
	return result
}

func evalPrivateAssign(ctx *EvalContext, env *Environment, n *AssignmentExpr, o *Object, name string) Value {
	scope := ctx.currentPrivateScope()
	if scope == nil || !o.carriesBrand(scope) {
		ctx.throw(newEvalError(ctx.Realm, errTypeError, "Cannot write private member #%s to an object whose class did not declare it", name))
		return nil
	}
	var cur Value
	if n.Op != AssignPlain && n.Op != AssignLAnd && n.Op != AssignLOr && n.Op != AssignNullsh {
		cur, _ = o.getPrivate(scope, name)
	}
	rhs := evalExpr(ctx, env, n.Value)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	result := rhs
	if n.Op != AssignPlain {
		result = applyCompound(ctx, n.Op, cur, rhs)
		if ctx.Signal.ShouldStop() {
			return nil
		}
	}
	if !o.setPrivate(scope, name, result) {
		ctx.throw(newEvalError(ctx.Realm, errTypeError, "Cannot write private member #%s", name))
		return nil
	}
	return result
}

func applyCompound(ctx *EvalContext, op AssignOp, cur, rhs Value) Value {
	binOp, ok := assignToBinary[op]
	if !ok {
		panic(newHostError(HostErrInvariant, SourceReference{}, "unsupported compound assignment %q", op))
	}
	v, err := evalBinary(ctx, binOp, cur, rhs)
	if err != nil {
		ctx.throwErrSignal(err)
		return nil
	}
	return v
}

var assignToBinary = map[AssignOp]BinaryOp{
	AssignAdd:  OpAdd,
	AssignSub:  OpSub,
	AssignMul:  OpMul,
	AssignDiv:  OpDiv,
	AssignMod:  OpMod,
	AssignExp:  OpExp,
	AssignShl:  OpShl,
	AssignShr:  OpShr,
	AssignUShr: OpUShr,
	AssignAnd:  OpBitAnd,
	AssignOr:   OpBitOr,
	AssignXor:  OpBitXor,
}

func evalUpdateExpr(ctx *EvalContext, env *Environment, n *UpdateExpr) Value {
	var delta float64 = 1
	if n.Op == OpDecrement {
		delta = -1
	}
	switch t := n.Target.(type) {
	case *IdentifierExpr:
		cur, err := env.Get(t.Name)
		if err != nil {
			ctx.throwErrSignal(err)
			return nil
		}
		next, isBI := updateValue(cur, delta)
		if err := env.Assign(t.Name, next); err != nil {
			ctx.throwErrSignal(err)
			return nil
		}
		if n.Prefix {
			return next
		}
		if isBI {
			return cur
		}
		return valueFloat(cur.ToNumber())
	case *MemberExpr:
		targetVal := evalExpr(ctx, env, t.Target)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		o, ok := targetVal.(*Object)
		if !ok {
			ctx.throw(newEvalError(ctx.Realm, errTypeError, "Cannot update property on non-object"))
			return nil
		}
		key := memberKey(ctx, env, t)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		cur := safeGetProp(ctx, o, key)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		next, isBI := updateValue(cur, delta)
		safeSetProp(ctx, o, key, next)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		if n.Prefix {
			return next
		}
		if isBI {
			return cur
		}
		return valueFloat(cur.ToNumber())
	}
	panic(newHostError(HostErrUnsupportedNode, n.Ref(), "unsupported update target %T", n.Target))
}

func updateValue(cur Value, delta float64) (Value, bool) {
	n := toNumeric(cur)
	if isBigInt(n) {
		d := int64(delta)
		sum := new(big.Int).Add(n.(valueBigInt).n, bigFromInt64(d))
		return BigIntValue(sum), true
	}
	return valueFloat(n.ToNumber() + delta), false
}

// ---- calls ----

// resolveCallee evaluates callee, returning (function value, `this` value)
// so that a trailing member-expression callee (obj.method()) binds the
// correct receiver.
func resolveCallee(ctx *EvalContext, env *Environment, callee Expr) (Value, Value) {
	if m, ok := callee.(*MemberExpr); ok {
		if _, isSuper := m.Target.(*SuperExpr); isSuper {
			return evalSuperMemberGet(ctx, env, m)
		}
		return evalMemberGet(ctx, env, m)
	}
	v := evalExpr(ctx, env, callee)
	return v, _undefined
}

func evalCall(ctx *EvalContext, env *Environment, n *CallExpr) Value {
	if _, isSuper := n.Callee.(*SuperExpr); isSuper {
		return evalSuperCall(ctx, env, n)
	}
	fn, this := resolveCallee(ctx, env, n.Callee)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	if n.Optional && IsNullish(fn) {
		ctx.Signal = emptySignal
		return _undefined
	}
	args := evalArgs(ctx, env, n.Args, n.Spreads)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	return invokeCallable(ctx, fn, this, args, nil)
}

func evalArgs(ctx *EvalContext, env *Environment, exprs []Expr, spreads []bool) []Value {
	var args []Value
	for i, a := range exprs {
		v := evalExpr(ctx, env, a)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		if i < len(spreads) && spreads[i] {
			it, err := GetIterator(ctx, v, IterSync)
			if err != nil {
				ctx.throwErrSignal(err)
				return nil
			}
			for {
				item, done, nerr := IteratorNext(ctx, it, nil)
				if nerr != nil {
					ctx.throwErrSignal(nerr)
					return nil
				}
				if done {
					break
				}
				args = append(args, item)
			}
			continue
		}
		args = append(args, v)
	}
	return args
}

func invokeCallable(ctx *EvalContext, fn, this Value, args []Value, newTarget *Object) Value {
	o, ok := fn.(*Object)
	if !ok || o.callable == nil {
		ctx.throw(newEvalError(ctx.Realm, errTypeError, "%s is not a function", fn.ToString()))
		return nil
	}
	ctx.CallDepth++
	if ctx.CallDepth > ctx.Realm.Options.MaxCallDepth {
		ctx.CallDepth--
		panic(newHostError(HostErrMaxDepth, ctx.SourceRef, "maximum call stack size exceeded"))
	}
	ctx.Realm.Tracer.EnterCall(funcDisplayName(o), ctx.SourceRef)
	res, err := o.callable.invoke(FunctionCall{This: this, Args: args, NewTarget: newTarget})
	ctx.Realm.Tracer.LeaveCall(funcDisplayName(o))
	ctx.CallDepth--
	if err != nil {
		ctx.throwErrSignal(err)
		return nil
	}
	return res
}

func funcDisplayName(o *Object) string {
	if d, ok := o.GetOwnPropertyDescriptor(StringKey("name")); ok && d.Value != nil {
		if s := d.Value.ToString(); s != "" {
			return s
		}
	}
	return "<anonymous>"
}

func evalSuperCall(ctx *EvalContext, env *Environment, n *CallExpr) Value {
	superCtor, _ := env.Get("%superConstructor%")
	sc, ok := superCtor.(*Object)
	if !ok || sc.callable == nil || sc.callable.construct == nil {
		ctx.throw(newEvalError(ctx.Realm, errTypeError, "Super constructor null of this expression is not a constructor"))
		return nil
	}
	args := evalArgs(ctx, env, n.Args, n.Spreads)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	ntVal, _ := env.TryGet("new.target")
	nt, _ := ntVal.(*Object)
	inst, err := sc.callable.construct(args, nt)
	if err != nil {
		ctx.throwErrSignal(err)
		return nil
	}
	if thisB, ok := env.bindings["this"]; ok {
		thisB.value = inst
		thisB.initialized = true
	} else {
		env.Initialize("this", inst)
	}
	ctx.ThisInitialized = true

	// The current (derived) class's own instance fields/private methods
	// aren't ready to run until `this` exists, which is exactly now
	// (spec.md §4.1 Classes, InitializeInstance runs right after the
	// super() call returns inside a derived constructor).
	if frame := ctx.currentFrame(); frame != nil && frame.DerivedFields != nil {
		initializeInstanceFields(ctx.Realm, frame.DerivedFields, frame.PrivateScope, frame.DerivedHomeObject, inst)
	}
	return _undefined
}

func evalNew(ctx *EvalContext, env *Environment, n *NewExpr) Value {
	calleeVal := evalExpr(ctx, env, n.Callee)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	o, ok := calleeVal.(*Object)
	if !ok || o.callable == nil || o.callable.construct == nil {
		ctx.throw(newEvalError(ctx.Realm, errTypeError, "%s is not a constructor", calleeVal.ToString()))
		return nil
	}
	args := evalArgs(ctx, env, n.Args, n.Spreads)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	inst, err := o.callable.construct(args, o)
	if err != nil {
		ctx.throwErrSignal(err)
		return nil
	}
	return inst
}

// ---- yield / await ----

func evalYield(ctx *EvalContext, env *Environment, n *YieldExpr) Value {
	if ctx.yield == nil {
		panic(newHostError(HostErrInvariant, n.Ref(), "yield used outside a generator body"))
	}
	if n.Delegate {
		return evalYieldStar(ctx, env, n)
	}
	var v Value = _undefined
	if n.Argument != nil {
		v = evalExpr(ctx, env, n.Argument)
		if ctx.Signal.ShouldStop() {
			return nil
		}
	}
	return doYield(ctx, v)
}

func evalYieldStar(ctx *EvalContext, env *Environment, n *YieldExpr) Value {
	v := evalExpr(ctx, env, n.Argument)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	it, err := GetIterator(ctx, v, IterSync)
	if err != nil {
		ctx.throwErrSignal(err)
		return nil
	}
	var sent Value = _undefined
	for {
		val, done, nerr := IteratorNext(ctx, it, sent)
		if nerr != nil {
			ctx.throwErrSignal(nerr)
			return nil
		}
		if done {
			return val
		}
		resumeVal := doYield(ctx, val)
		if ctx.Signal.Kind == SigReturn {
			if ret := it.Object.Get(StringKey("return")); !IsNullish(ret) {
				if fn, ok := ret.(*Object); ok && fn.callable != nil {
					fn.callable.invoke(FunctionCall{This: it.Object, Args: []Value{ctx.Signal.Value}})
				}
			}
			return nil
		}
		if ctx.Signal.Kind == SigThrow {
			return nil
		}
		sent = resumeVal
	}
}

func evalAwait(ctx *EvalContext, env *Environment, n *AwaitExpr) Value {
	v := evalExpr(ctx, env, n.Argument)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	resolved, err := ctx.Realm.Scheduler.Await(ctx, v)
	if err != nil {
		ctx.throwErrSignal(err)
		return nil
	}
	return resolved
}

func awaitSynchronously(ctx *EvalContext, v Value) (Value, error) {
	return ctx.Realm.Scheduler.Await(ctx, v)
}
