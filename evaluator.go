package ecma

import gocontext "context"

// EvalOptions mirrors spec.md §4.1's `evaluate_program` options.
type EvalOptions struct {
	ExecutionKind   ExecutionKind
	Cancel          gocontext.Context
	CreateStrictEnv bool
}

// EvaluateProgram is the evaluator's single public entry point (spec.md
// §4.1, §6 "To caller").
func EvaluateProgram(program *ProgramNode, env *Environment, realm *Realm, opts EvalOptions) (result Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if he, ok := r.(*HostError); ok {
				err = he
				return
			}
			panic(r)
		}
	}()

	ctx := NewEvalContext(realm, opts.ExecutionKind, opts.Cancel)
	if program.IsStrict && opts.CreateStrictEnv {
		env = NewStrictEnvironment(env)
	}
	ctx.pushFrame(ScopeFrame{Kind: FrameProgram, Mode: modeFor(env.IsStrict())})
	defer ctx.popFrame()

	h := AnalyzeBlock(program.Body)
	for name := range h.LexicalNames {
		if realm.IsRestrictedGlobalName(name) {
			return nil, NewSyntaxError(realm, "Identifier '%s' has already been declared", name)
		}
	}

	hoistDeclarations(ctx, env, h)
	declareBlockLexicals(ctx, env, program.Body)
	if ctx.Signal.ShouldStop() {
		return nil, &ThrownValue{Val: ctx.Signal.Value}
	}

	completion := Value(_undefined)
	for _, s := range program.Body {
		v := evalStmt(ctx, env, s)
		if ctx.Signal.ShouldStop() {
			break
		}
		if v != nil {
			completion = v
		}
	}

	switch ctx.Signal.Kind {
	case SigThrow:
		return nil, &ThrownValue{Val: ctx.Signal.Value}
	case SigEmpty:
		return completion, nil
	default:
		// Return/break/continue escaping the program is a host invariant
		// violation (a top-level `return` outside a function is a parse
		// error upstream; reaching here means the AST didn't enforce it).
		return nil, newHostError(HostErrInvariant, ctx.SourceRef, "unexpected signal %v at program top level", ctx.Signal.Kind)
	}
}

func modeFor(strict bool) ScopeMode {
	if strict {
		return ModeStrict
	}
	return ModeSloppy
}

// hoistDeclarations implements spec.md §4.3's ordering: functions first
// (establishing initial values), then vars (creating undefined slots
// without clobbering existing initialized ones).
func hoistDeclarations(ctx *EvalContext, env *Environment, h *HoistResult) {
	for _, fd := range h.FunctionDecls {
		fn := makeScriptFunction(ctx, env, fd.Function)
		env.DefineFunctionScoped(fd.Function.Name, fn, true)
	}
	for name := range h.VarNames {
		env.DefineFunctionScoped(name, _undefined, false)
	}
}

// evalStmt dispatches one statement, returning its completion value (nil
// if the statement type carries none). The caller must check
// ctx.Signal.ShouldStop() immediately after (spec.md §4.1).
func evalStmt(ctx *EvalContext, env *Environment, s Stmt) Value {
	ctx.SourceRef = s.Ref()
	if err := ctx.pollCancellation(); err != nil {
		panic(err)
	}
	switch n := s.(type) {
	case *BlockStmt:
		return evalBlock(ctx, env, n.Body, nil)
	case *ExpressionStmt:
		return evalExpr(ctx, env, n.Expr)
	case *EmptyStmt:
		return nil
	case *VariableDeclarationStmt:
		evalVariableDeclaration(ctx, env, n)
		return nil
	case *FunctionDeclarationStmt:
		return nil // already hoisted
	case *ClassDeclarationStmt:
		cls := evalClass(ctx, env, n.Class)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		env.Initialize(n.Class.Name, cls)
		return nil
	case *ReturnStmt:
		var v Value = _undefined
		if n.Argument != nil {
			v = evalExpr(ctx, env, n.Argument)
			if ctx.Signal.ShouldStop() {
				return nil
			}
		}
		ctx.Signal = Signal{Kind: SigReturn, Value: v}
		return nil
	case *ThrowStmt:
		v := evalExpr(ctx, env, n.Argument)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		ctx.throw(v)
		return nil
	case *IfStmt:
		test := evalExpr(ctx, env, n.Test)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		if test.ToBoolean() {
			return evalStmt(ctx, env, n.Consequent)
		} else if n.Alternate != nil {
			return evalStmt(ctx, env, n.Alternate)
		}
		return nil
	case *WhileStmt:
		return evalWhile(ctx, env, n, "")
	case *DoWhileStmt:
		return evalDoWhile(ctx, env, n, "")
	case *ForStmt:
		return evalFor(ctx, env, n, "")
	case *ForEachStmt:
		return evalForEach(ctx, env, n, "")
	case *BreakStmt:
		ctx.Signal = Signal{Kind: SigBreak, Label: n.Label}
		return nil
	case *ContinueStmt:
		ctx.Signal = Signal{Kind: SigContinue, Label: n.Label}
		return nil
	case *LabeledStmt:
		return evalLabeled(ctx, env, n)
	case *TryStmt:
		return evalTry(ctx, env, n)
	case *SwitchStmt:
		return evalSwitch(ctx, env, n)
	case *WithStmt:
		obj := evalExpr(ctx, env, n.Object)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		o, ok := obj.(*Object)
		if !ok {
			ctx.throw(newEvalError(ctx.Realm, errTypeError, "Cannot convert value to object for 'with' statement"))
			return nil
		}
		withEnv := NewWithEnvironment(env, o)
		return evalStmt(ctx, withEnv, n.Body)
	}
	panic(newHostError(HostErrUnsupportedNode, s.Ref(), "unsupported statement node %T", s))
}

// evalBlock evaluates a statement list in its own block environment
// (unless env is passed in pre-built for loop bodies with their own
// per-iteration lexical scope), hoisting the block's own lexical/var
// declarations first.
func evalBlock(ctx *EvalContext, parent *Environment, body []Stmt, preHoisted *HoistResult) Value {
	blockEnv := NewBlockEnvironment(parent)
	h := preHoisted
	if h == nil {
		h = AnalyzeBlock(body)
	}
	declareBlockLexicals(ctx, blockEnv, body)
	for _, fd := range h.FunctionDecls {
		fn := makeScriptFunction(ctx, blockEnv, fd.Function)
		blockEnv.Initialize(fd.Function.Name, fn)
		if ctx.Realm.Options.EnableAnnexB && !blockEnv.HasOwnLexicalBinding(fd.Function.Name) {
			// handled in annexBHoistFunctionDecls below; no-op here
		}
	}
	if ctx.Realm.Options.EnableAnnexB {
		annexBHoistFunctionDecls(ctx, parent, blockEnv, body)
	}

	var completion Value
	for _, s := range body {
		v := evalStmt(ctx, blockEnv, s)
		if ctx.Signal.ShouldStop() {
			return completion
		}
		if v != nil {
			completion = v
		}
	}
	return completion
}

// declareBlockLexicals pre-declares (uninitialized, TDZ) every let/const/
// class name directly in this block, and class/function hoisted names,
// before any statement runs (spec.md §3 invariant i).
func declareBlockLexicals(ctx *EvalContext, env *Environment, body []Stmt) {
	for _, s := range body {
		switch n := s.(type) {
		case *VariableDeclarationStmt:
			if n.Kind != DeclVar {
				isConst := n.Kind == DeclConst
				for _, d := range n.Declarators {
					for name := range patternNames(d.Target) {
						if env.HasOwnLexicalBinding(name) {
							ctx.throw(newEvalError(ctx.Realm, errSyntaxError, "Identifier '%s' has already been declared", name))
							return
						}
						env.Define(name, nil, true, isConst, false)
					}
				}
			}
		case *ClassDeclarationStmt:
			if env.HasOwnLexicalBinding(n.Class.Name) {
				ctx.throw(newEvalError(ctx.Realm, errSyntaxError, "Identifier '%s' has already been declared", n.Class.Name))
				return
			}
			env.Define(n.Class.Name, nil, true, false, false)
		case *FunctionDeclarationStmt:
			// Keep a binding already created (and initialized) by
			// hoistDeclarations in this same environment.
			if _, ok := env.bindings[n.Function.Name]; !ok {
				env.Define(n.Function.Name, nil, true, false, false)
			}
		}
	}
}

// annexBHoistFunctionDecls implements the sloppy-mode legacy rule (spec.md
// §4.3, §9 Open Question ii): a nested function declaration in a
// non-strict block additionally creates a function-scoped var binding,
// unless a lexical binding (other than a simple-catch parameter) blocks
// it anywhere between the block and the nearest function scope.
func annexBHoistFunctionDecls(ctx *EvalContext, outerEnv, blockEnv *Environment, body []Stmt) {
	if blockEnv.IsStrict() {
		return
	}
	for _, s := range body {
		fd, ok := s.(*FunctionDeclarationStmt)
		if !ok {
			continue
		}
		name := fd.Function.Name
		if annexBBlocked(outerEnv, name) {
			continue
		}
		fn, _ := blockEnv.Get(name)
		if fn == nil {
			continue
		}
		outerEnv.TryAssignBlockedBinding(name, fn)
	}
}

// annexBBlocked walks from the function-declaration's block up to (but
// not across) the nearest function scope, checking for a lexical
// binding that blocks Annex-B hoisting. Simple catch-parameter bindings
// are permeable per spec.md §9 Open Question ii.
func annexBBlocked(env *Environment, name string) bool {
	for e := env; e != nil; e = e.parent {
		if b, ok := e.bindings[name]; ok && b.isLexical {
			if b.simpleCatch {
				continue
			}
			return true
		}
		if e.isFunctionScope || e.isGlobal {
			return false
		}
	}
	return false
}

func evalVariableDeclaration(ctx *EvalContext, env *Environment, n *VariableDeclarationStmt) {
	for _, d := range n.Declarators {
		var v Value = _undefined
		if d.Init != nil {
			v = evalExpr(ctx, env, d.Init)
			if ctx.Signal.ShouldStop() {
				return
			}
			if ident, ok := d.Target.(*IdentifierPattern); ok {
				nameInferAnonymous(v, ident.Name)
			}
		} else if n.Kind == DeclVar {
			continue // leave the hoisted `undefined` slot untouched
		}
		BindPattern(ctx, env, d.Target, v, BindDeclare, n.Kind)
		if ctx.Signal.ShouldStop() {
			return
		}
	}
}

// nameInferAnonymous assigns an inferred "name" to anonymous function/
// class/arrow values bound directly by a declarator (used also by
// destructuring defaults per spec.md §4.4: "anonymous function defaults
// receive the binding name via name-inference").
func nameInferAnonymous(v Value, name string) {
	o, ok := v.(*Object)
	if !ok || o.callable == nil {
		return
	}
	if d, ok := o.GetOwnPropertyDescriptor(StringKey("name")); !ok || d.Value == nil || d.Value.ToString() == "" {
		o.defineOwn(StringKey("name"), DataDescriptor(StringValue(name), false, false, true))
	}
}

// ---- Loops ----

func evalWhile(ctx *EvalContext, env *Environment, n *WhileStmt, label string) Value {
	var completion Value
	for {
		if err := ctx.pollCancellation(); err != nil {
			panic(err)
		}
		test := evalExpr(ctx, env, n.Test)
		if ctx.Signal.ShouldStop() {
			return completion
		}
		if !test.ToBoolean() {
			return completion
		}
		v := evalStmt(ctx, env, n.Body)
		if v != nil {
			completion = v
		}
		if !handleLoopSignal(ctx, label) {
			return completion
		}
	}
}

func evalDoWhile(ctx *EvalContext, env *Environment, n *DoWhileStmt, label string) Value {
	var completion Value
	for {
		v := evalStmt(ctx, env, n.Body)
		if v != nil {
			completion = v
		}
		if !handleLoopSignal(ctx, label) {
			return completion
		}
		test := evalExpr(ctx, env, n.Test)
		if ctx.Signal.ShouldStop() {
			return completion
		}
		if !test.ToBoolean() {
			return completion
		}
	}
}

func evalFor(ctx *EvalContext, env *Environment, n *ForStmt, label string) Value {
	loopEnv := env
	var perIterNames []string
	if decl, ok := n.Init.(*VariableDeclarationStmt); ok {
		if decl.Kind != DeclVar {
			loopEnv = NewBlockEnvironment(env)
			for _, d := range decl.Declarators {
				for name := range patternNames(d.Target) {
					perIterNames = append(perIterNames, name)
					loopEnv.Define(name, nil, true, decl.Kind == DeclConst, false)
				}
			}
		}
		evalVariableDeclaration(ctx, loopEnv, decl)
		if ctx.Signal.ShouldStop() {
			return nil
		}
	} else if n.Init != nil {
		evalExpr(ctx, loopEnv, n.Init.(Expr))
		if ctx.Signal.ShouldStop() {
			return nil
		}
	}

	var completion Value
	for {
		if len(perIterNames) > 0 {
			// Each iteration gets a fresh copy of the lexical loop bindings
			// per ECMA-262 CreatePerIterationEnvironment, so closures formed
			// inside the body capture that iteration's value.
			next := NewBlockEnvironment(env)
			for _, name := range perIterNames {
				v, _ := loopEnv.Get(name)
				next.Define(name, v, true, false, true)
			}
			loopEnv = next
		}
		if n.Test != nil {
			test := evalExpr(ctx, loopEnv, n.Test)
			if ctx.Signal.ShouldStop() {
				return completion
			}
			if !test.ToBoolean() {
				return completion
			}
		}
		v := evalStmt(ctx, loopEnv, n.Body)
		if v != nil {
			completion = v
		}
		if !handleLoopSignal(ctx, label) {
			return completion
		}
		if n.Update != nil {
			evalExpr(ctx, loopEnv, n.Update)
			if ctx.Signal.ShouldStop() {
				return completion
			}
		}
	}
}

func evalForEach(ctx *EvalContext, env *Environment, n *ForEachStmt, label string) Value {
	iterable := evalExpr(ctx, env, n.Iterable)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	var completion Value

	if n.Kind == ForIn {
		o, ok := iterable.(*Object)
		if !ok {
			return completion
		}
		seen := map[PropertyKey]bool{}
		for cur := o; cur != nil; cur = cur.Prototype() {
			for _, k := range cur.GetOwnPropertyNames() {
				if seen[k] {
					continue
				}
				seen[k] = true
				d, ok := cur.GetOwnPropertyDescriptor(k)
				if !ok || !d.Enumerable {
					continue
				}
				if sk, ok := k.(StringKey); ok {
					if !forEachBindAndRun(ctx, env, n, StringValue(string(sk)), label, &completion) {
						return completion
					}
					if ctx.Signal.ShouldStop() {
						return completion
					}
				}
			}
		}
		return completion
	}

	kind := IterSync
	if n.Kind == ForAwaitOf {
		kind = IterAsync
	}
	it, err := GetIterator(ctx, iterable, kind)
	if err != nil {
		ctx.throwErrSignal(err)
		return completion
	}
	for {
		if err := ctx.pollCancellation(); err != nil {
			_ = IteratorClose(ctx, it, false)
			panic(err)
		}
		v, done, nerr := IteratorNext(ctx, it, nil)
		if nerr != nil {
			ctx.throwErrSignal(nerr)
			return completion
		}
		if done {
			return completion
		}
		if n.Kind == ForAwaitOf {
			resolved, aerr := awaitSynchronously(ctx, v)
			if aerr != nil {
				_ = IteratorClose(ctx, it, true)
				ctx.throwErrSignal(aerr)
				return completion
			}
			v = resolved
		}
		if !forEachBindAndRun(ctx, env, n, v, label, &completion) {
			_ = IteratorClose(ctx, it, ctx.Signal.Kind == SigThrow)
			return completion
		}
		if ctx.Signal.ShouldStop() {
			if ctx.Signal.Kind == SigBreak && ctx.Signal.Label == "" {
				ctx.Signal = emptySignal
				_ = IteratorClose(ctx, it, false)
				return completion
			}
			if ctx.Signal.Kind == SigBreak && ctx.Signal.Label == label {
				ctx.Signal = emptySignal
				_ = IteratorClose(ctx, it, false)
				return completion
			}
			_ = IteratorClose(ctx, it, ctx.Signal.Kind == SigThrow)
			return completion
		}
	}
}

// forEachBindAndRun binds one iteration value into a fresh block
// environment, evaluates the loop body, and reports whether iteration
// should continue (false on break/throw/return).
func forEachBindAndRun(ctx *EvalContext, env *Environment, n *ForEachStmt, v Value, label string, completion *Value) bool {
	iterEnv := NewBlockEnvironment(env)
	if n.Decl != nil {
		d := n.Decl.Declarators[0]
		BindPattern(ctx, iterEnv, d.Target, v, BindDeclare, n.Decl.Kind)
	} else {
		BindPattern(ctx, iterEnv, n.Target, v, BindAssign, DeclVar)
	}
	if ctx.Signal.ShouldStop() {
		return false
	}
	res := evalStmt(ctx, iterEnv, n.Body)
	if res != nil {
		*completion = res
	}
	return handleLoopSignal(ctx, label)
}

// handleLoopSignal consumes a Break/Continue signal matching label (or
// unlabeled), returning whether the loop should keep iterating.
func handleLoopSignal(ctx *EvalContext, label string) bool {
	if !ctx.Signal.ShouldStop() {
		return true
	}
	switch ctx.Signal.Kind {
	case SigBreak:
		if ctx.Signal.Label == "" || ctx.Signal.Label == label {
			ctx.Signal = emptySignal
		}
		return false
	case SigContinue:
		if ctx.Signal.Label == "" || ctx.Signal.Label == label {
			ctx.Signal = emptySignal
			return true
		}
		return false
	default:
		return false
	}
}

func evalLabeled(ctx *EvalContext, env *Environment, n *LabeledStmt) Value {
	ctx.labelStack = append(ctx.labelStack, n.Label)
	defer func() { ctx.labelStack = ctx.labelStack[:len(ctx.labelStack)-1] }()

	var v Value
	switch body := n.Body.(type) {
	case *WhileStmt:
		v = evalWhile(ctx, env, body, n.Label)
	case *DoWhileStmt:
		v = evalDoWhile(ctx, env, body, n.Label)
	case *ForStmt:
		v = evalFor(ctx, env, body, n.Label)
	case *ForEachStmt:
		v = evalForEach(ctx, env, body, n.Label)
	default:
		v = evalStmt(ctx, env, n.Body)
		if ctx.Signal.Kind == SigBreak && ctx.Signal.Label == n.Label {
			ctx.Signal = emptySignal
		}
	}
	return v
}

func evalTry(ctx *EvalContext, env *Environment, n *TryStmt) Value {
	v := evalBlock(ctx, env, n.Try.Body, nil)

	if ctx.Signal.Kind == SigThrow && n.Catch != nil {
		thrown := ctx.Signal.Value
		ctx.Signal = emptySignal
		catchEnv := NewBlockEnvironment(env)
		if n.Catch.Param != nil {
			if ident, ok := n.Catch.Param.(*IdentifierPattern); ok {
				catchEnv.DefineSimpleCatch(ident.Name, thrown)
			} else {
				for name := range patternNames(n.Catch.Param) {
					catchEnv.Define(name, nil, true, false, false)
				}
				BindPattern(ctx, catchEnv, n.Catch.Param, thrown, BindDeclare, DeclLet)
			}
		}
		if !ctx.Signal.ShouldStop() {
			v = evalBlock(ctx, catchEnv, n.Catch.Body.Body, nil)
		}
	}

	if n.Finally != nil {
		pending := ctx.Signal
		ctx.Signal = emptySignal
		fv := evalBlock(ctx, env, n.Finally.Body, nil)
		if ctx.Signal.ShouldStop() {
			// finally's own abrupt completion overrides the pending one
			// (spec.md §7: "finally blocks observe but do not implicitly
			// swallow"; an abrupt finally completion replaces, it doesn't
			// merge with, the try/catch completion).
			return fv
		}
		// finally completed normally: restore the pre-finally signal
		// (spec.md §7: "finally restores the pre-finally signal if its
		// own body completes normally").
		ctx.Signal = pending
	}
	return v
}

func evalSwitch(ctx *EvalContext, env *Environment, n *SwitchStmt) Value {
	disc := evalExpr(ctx, env, n.Discriminant)
	if ctx.Signal.ShouldStop() {
		return nil
	}
	switchEnv := NewBlockEnvironment(env)
	var allBody []Stmt
	for _, c := range n.Cases {
		allBody = append(allBody, c.Body...)
	}
	declareBlockLexicals(ctx, switchEnv, allBody)
	if ctx.Signal.ShouldStop() {
		return nil
	}

	matchIdx := -1
	defaultIdx := -1
	for i, c := range n.Cases {
		if c.Test == nil {
			defaultIdx = i
			continue
		}
		tv := evalExpr(ctx, switchEnv, *c.Test)
		if ctx.Signal.ShouldStop() {
			return nil
		}
		if strictEquals(disc, tv) {
			matchIdx = i
			break
		}
	}
	if matchIdx == -1 {
		matchIdx = defaultIdx
	}
	if matchIdx == -1 {
		return nil
	}

	var completion Value
	for i := matchIdx; i < len(n.Cases); i++ {
		for _, s := range n.Cases[i].Body {
			v := evalStmt(ctx, switchEnv, s)
			if v != nil {
				completion = v
			}
			if ctx.Signal.ShouldStop() {
				if ctx.Signal.Kind == SigBreak && ctx.Signal.Label == "" {
					ctx.Signal = emptySignal
				}
				return completion
			}
		}
	}
	return completion
}
