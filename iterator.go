package ecma

// IterationKind distinguishes sync from async iteration (spec.md §4.4).
type IterationKind uint8

const (
	IterSync IterationKind = iota
	IterAsync
)

// IteratorHandle wraps the iterator object plus its cached `next` method,
// so callers don't repeatedly re-resolve the property (matching the
// "cache iterator.next once, outside the loop" pattern grounded in
// other_examples/8c4965c8_nooga-paserati__pkg-compiler-compile_for_of_new.go.go).
type IteratorHandle struct {
	Object *Object
	next   Value
}

// GetIterator implements spec.md §4.4 step 1-3: prefer @@asyncIterator for
// async iteration, fall back to @@iterator, then to built-in string/array
// enumeration, then to the defensive next-only fallback.
func GetIterator(ctx *EvalContext, v Value, kind IterationKind) (*IteratorHandle, error) {
	if o, ok := v.(*Object); ok {
		sym := ctx.Realm.SymIterator
		if kind == IterAsync {
			sym = ctx.Realm.SymAsyncIterator
		}
		if m := o.Get(sym); !IsNullish(m) {
			fn, ok := m.(*Object)
			if !ok || fn.callable == nil {
				return nil, NewTypeError(ctx.Realm, "Result of the Symbol.iterator method is not an object")
			}
			res, err := fn.callable.invoke(FunctionCall{This: o, Args: nil})
			if err != nil {
				return nil, err
			}
			io, ok := res.(*Object)
			if !ok {
				return nil, NewTypeError(ctx.Realm, "Result of the Symbol.iterator method is not an object")
			}
			return &IteratorHandle{Object: io, next: io.Get(StringKey("next"))}, nil
		}
		if kind == IterAsync {
			if m := o.Get(ctx.Realm.SymIterator); !IsNullish(m) {
				return GetIterator(ctx, v, IterSync)
			}
		}
		if o.isArray {
			return newArrayIteratorHandle(ctx, o), nil
		}
		// Defensive fallback (spec.md §4.4 step 3): an object exposing
		// `next` but no @@iterator is treated as its own iterator.
		if next := o.Get(StringKey("next")); !IsNullish(next) {
			if fn, ok := next.(*Object); ok && fn.callable != nil {
				return &IteratorHandle{Object: o, next: next}, nil
			}
		}
	}
	if s, ok := v.(valueString); ok {
		return newStringIteratorHandle(ctx, string(s)), nil
	}
	return nil, NewTypeError(ctx.Realm, "%s is not iterable", describeForIterable(v))
}

func describeForIterable(v Value) string {
	if v == nil {
		return "undefined"
	}
	return v.typeName()
}

// IteratorNext implements spec.md §4.4 IteratorNext: call .next([value]),
// require an object result with done/value.
func IteratorNext(ctx *EvalContext, it *IteratorHandle, value Value) (result Value, done bool, err error) {
	fn, ok := it.next.(*Object)
	if !ok || fn.callable == nil {
		return nil, false, NewTypeError(ctx.Realm, "iterator.next is not a function")
	}
	var args []Value
	if value != nil {
		args = []Value{value}
	}
	res, err := fn.callable.invoke(FunctionCall{This: it.Object, Args: args})
	if err != nil {
		return nil, false, err
	}
	ro, ok := res.(*Object)
	if !ok {
		return nil, false, NewTypeError(ctx.Realm, "Iterator result is not an object")
	}
	d := ro.Get(StringKey("done")).ToBoolean()
	val := ro.Get(StringKey("value"))
	return val, d, nil
}

// IteratorClose implements spec.md §4.4 IteratorClose: call
// it.return(undefined) if present; if completion is already an abrupt
// Throw, a secondary throw from return() is suppressed (spec.md §4.4,
// §7 "IteratorClose preserves the original Throw when cleanup fails").
func IteratorClose(ctx *EvalContext, it *IteratorHandle, completionIsThrow bool) error {
	if it == nil || it.Object == nil {
		return nil
	}
	ret := it.Object.Get(StringKey("return"))
	if IsNullish(ret) {
		return nil
	}
	fn, ok := ret.(*Object)
	if !ok || fn.callable == nil {
		return nil
	}
	_, err := fn.callable.invoke(FunctionCall{This: it.Object})
	if err != nil && !completionIsThrow {
		return err
	}
	return nil
}

// ---- built-in enumerations backing step 2 of GetIterator ----

func newArrayIteratorHandle(ctx *EvalContext, arr *Object) *IteratorHandle {
	idx := 0
	io := ctx.Realm.NewPlainObject()
	io.class = "Array Iterator"
	io.defineOwn(StringKey("next"), DataDescriptor(ctx.Realm.NewHostFunction("next", 0, func(FunctionCall) (Value, error) {
		if idx >= len(arr.arrayData) {
			return makeIterResult(ctx.Realm, _undefined, true), nil
		}
		v := arr.arrayData[idx]
		idx++
		return makeIterResult(ctx.Realm, v, false), nil
	}), true, false, true))
	return &IteratorHandle{Object: io, next: io.Get(StringKey("next"))}
}

func newStringIteratorHandle(ctx *EvalContext, s string) *IteratorHandle {
	runes := []rune(s)
	idx := 0
	io := ctx.Realm.NewPlainObject()
	io.class = "String Iterator"
	io.defineOwn(StringKey("next"), DataDescriptor(ctx.Realm.NewHostFunction("next", 0, func(FunctionCall) (Value, error) {
		if idx >= len(runes) {
			return makeIterResult(ctx.Realm, _undefined, true), nil
		}
		v := string(runes[idx])
		idx++
		return makeIterResult(ctx.Realm, StringValue(v), false), nil
	}), true, false, true))
	return &IteratorHandle{Object: io, next: io.Get(StringKey("next"))}
}

// makeIterResult builds the `{value, done}` object every iterator result
// must be (spec.md Glossary "Iterator result").
func makeIterResult(r *Realm, value Value, done bool) *Object {
	o := r.NewPlainObject()
	o.defineOwn(StringKey("value"), DataDescriptor(value, true, true, true))
	o.defineOwn(StringKey("done"), DataDescriptor(BoolValue(done), true, true, true))
	return o
}
