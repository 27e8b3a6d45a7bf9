package ecma

// AwaitScheduler resolves the operand of an `await` expression to its
// settled value (or a rejection reason, delivered as an error). Realms are
// built with a default synchronous bridge; embedders that have their own
// event loop / microtask queue can install a different Scheduler instead.
type AwaitScheduler interface {
	Await(ctx *EvalContext, v Value) (Value, error)
}

// syncBridgeScheduler implements the transitional "await blocks until the
// awaited value settles" strategy: a thenable's `.then` is invoked with
// resolve/reject callbacks that must fire synchronously (no microtask
// queue backs this realm), and whichever fires first determines the
// result. A non-thenable value resolves to itself immediately. This is
// explicitly a stand-in for a real job queue and is documented as such;
// swapping in a queue-backed scheduler only requires a different
// AwaitScheduler implementation, not any evaluator change.
type syncBridgeScheduler struct{}

func (syncBridgeScheduler) Await(ctx *EvalContext, v Value) (Value, error) {
	o, ok := v.(*Object)
	if !ok {
		return v, nil
	}
	thenVal := o.Get(StringKey("then"))
	then, ok := thenVal.(*Object)
	if !ok || then.callable == nil {
		return v, nil
	}

	var settled, rejected bool
	var result Value = _undefined

	resolveFn := ctx.Realm.NewHostFunction("", 1, func(call FunctionCall) (Value, error) {
		if !settled {
			settled = true
			result = call.Argument(0)
		}
		return _undefined, nil
	})
	rejectFn := ctx.Realm.NewHostFunction("", 1, func(call FunctionCall) (Value, error) {
		if !settled {
			settled = true
			rejected = true
			result = call.Argument(0)
		}
		return _undefined, nil
	})

	if _, err := then.callable.invoke(FunctionCall{This: o, Args: []Value{resolveFn, rejectFn}}); err != nil {
		return nil, err
	}
	if !settled {
		return nil, newHostError(HostErrInvariant, ctx.SourceRef, "await: promise did not settle synchronously under the bridge scheduler")
	}
	if rejected {
		return nil, &ThrownValue{Val: result}
	}
	return result, nil
}
