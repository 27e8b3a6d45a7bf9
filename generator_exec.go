package ecma

// genStepKind/genResumeKind/genStep/genResume implement the channel
// handoff a generator's goroutine uses to suspend and resume at a `yield`
// point. Suspending the goroutine itself (rather than a flattened
// instruction pointer) means every surrounding try/finally, loop, and
// switch frame the yield sits inside keeps working through the ordinary
// evalStmt/evalTry control-flow paths — a `return()` call resumes the
// goroutine with the Return signal already set, and normal signal
// propagation (including running pending `finally` blocks) takes it from
// there.
type genStepKind uint8

const (
	genStepYield genStepKind = iota
	genStepDone
	genStepThrow
)

type genStep struct {
	kind  genStepKind
	value Value
	err   error
}

type genResumeKind uint8

const (
	genResumeNext genResumeKind = iota
	genResumeReturn
	genResumeThrow
)

type genResume struct {
	kind  genResumeKind
	value Value
}

type yieldHandoff struct {
	toConsumer chan genStep
	toProducer chan genResume
}

// doYield is called by evalYield/evalYieldStar: it hands v to whoever
// called .next()/.return()/.throw() and blocks until the next resume.
func doYield(ctx *EvalContext, v Value) Value {
	ctx.Realm.Tracer.Step(IYield.String(), ctx.SourceRef)
	ctx.yield.toConsumer <- genStep{kind: genStepYield, value: v}
	resume := <-ctx.yield.toProducer
	switch resume.kind {
	case genResumeNext:
		return resume.value
	case genResumeReturn:
		ctx.Signal = Signal{Kind: SigReturn, Value: resume.value}
		return _undefined
	case genResumeThrow:
		ctx.throw(resume.value)
		return _undefined
	}
	return _undefined
}

// generatorRuntime is the Go-side state backing one `function*`/`async
// function*` invocation's returned generator object.
type generatorRuntime struct {
	fn      *ScriptFunction
	ctx     *EvalContext
	env     *Environment
	handoff *yieldHandoff
	started bool
	done    bool
}

func newGeneratorRuntime(fn *ScriptFunction, ctx *EvalContext, env *Environment) *generatorRuntime {
	return &generatorRuntime{fn: fn, ctx: ctx, env: env}
}

func (g *generatorRuntime) ensureStarted() {
	if g.started {
		return
	}
	g.started = true
	g.handoff = &yieldHandoff{
		toConsumer: make(chan genStep),
		toProducer: make(chan genResume),
	}
	g.ctx.yield = g.handoff
	go g.run()
}

func (g *generatorRuntime) run() {
	defer func() {
		if r := recover(); r != nil {
			if he, ok := r.(*HostError); ok {
				g.handoff.toConsumer <- genStep{kind: genStepThrow, err: he}
				return
			}
			if err, ok := r.(error); ok {
				if tv, ok := AsThrown(err); ok {
					g.handoff.toConsumer <- genStep{kind: genStepThrow, value: tv}
					return
				}
			}
			panic(r)
		}
	}()

	// Block until the first .next() call: a generator does not execute any
	// of its body until resumed out of the "suspendedStart" state.
	first := <-g.handoff.toProducer
	if first.kind == genResumeReturn {
		g.handoff.toConsumer <- genStep{kind: genStepDone, value: first.value}
		return
	}
	if first.kind == genResumeThrow {
		g.handoff.toConsumer <- genStep{kind: genStepThrow, value: first.value}
		return
	}

	ctx := g.ctx
	h := AnalyzeBlock(g.fn.Node.Body)
	hoistDeclarations(ctx, g.env, h)
	for _, s := range g.fn.Node.Body {
		evalStmt(ctx, g.env, s)
		if ctx.Signal.ShouldStop() {
			break
		}
	}

	switch ctx.Signal.Kind {
	case SigThrow:
		g.handoff.toConsumer <- genStep{kind: genStepThrow, value: ctx.Signal.Value}
	case SigReturn:
		g.handoff.toConsumer <- genStep{kind: genStepDone, value: ctx.Signal.Value}
	default:
		g.handoff.toConsumer <- genStep{kind: genStepDone, value: _undefined}
	}
}

func (g *generatorRuntime) resume(kind genResumeKind, v Value) (Value, bool, error) {
	if g.done {
		return _undefined, true, nil
	}
	if !g.started {
		if kind == genResumeNext {
			g.ensureStarted()
		} else {
			// .return()/.throw() before the first .next(): the body never
			// runs, so there is nothing to unwind through.
			g.done = true
			if kind == genResumeThrow {
				return nil, true, &ThrownValue{Val: v}
			}
			return v, true, nil
		}
	}
	g.handoff.toProducer <- genResume{kind: kind, value: v}
	step := <-g.handoff.toConsumer
	switch step.kind {
	case genStepYield:
		return step.value, false, nil
	case genStepDone:
		g.done = true
		return step.value, true, nil
	case genStepThrow:
		g.done = true
		if step.err != nil {
			return nil, true, step.err
		}
		return nil, true, &ThrownValue{Val: step.value}
	}
	return _undefined, true, nil
}

// newGeneratorObject builds the iterator-protocol object returned by
// calling a `function*`/`async function*`.
func newGeneratorObject(realm *Realm, fn *ScriptFunction, genCtx *EvalContext, env *Environment) *Object {
	g := newGeneratorRuntime(fn, genCtx, env)
	obj := realm.NewPlainObject()
	obj.class = "Generator"

	wrap := func(kind genResumeKind) func(FunctionCall) (Value, error) {
		return func(call FunctionCall) (Value, error) {
			v, done, err := g.resume(kind, call.Argument(0))
			if err != nil {
				return nil, err
			}
			return makeIterResult(realm, v, done), nil
		}
	}

	obj.defineOwn(StringKey("next"), DataDescriptor(realm.NewHostFunction("next", 1, wrap(genResumeNext)), true, false, true))
	obj.defineOwn(StringKey("return"), DataDescriptor(realm.NewHostFunction("return", 1, wrap(genResumeReturn)), true, false, true))
	obj.defineOwn(StringKey("throw"), DataDescriptor(realm.NewHostFunction("throw", 1, wrap(genResumeThrow)), true, false, true))

	selfIter := realm.NewHostFunction("[Symbol.iterator]", 0, func(FunctionCall) (Value, error) { return obj, nil })
	obj.defineOwn(realm.SymIterator, DataDescriptor(selfIter, true, false, true))
	if fn.IsAsync {
		selfAsyncIter := realm.NewHostFunction("[Symbol.asyncIterator]", 0, func(FunctionCall) (Value, error) { return obj, nil })
		obj.defineOwn(realm.SymAsyncIterator, DataDescriptor(selfAsyncIter, true, false, true))
	}
	return obj
}
