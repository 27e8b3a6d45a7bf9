package ecma

// Hand-construction helpers standing in for the absent parser collaborator
// (spec.md §6: the AST is "assumed given" upstream). Tests build small
// programs directly out of these rather than embedding a lexer/parser,
// mirroring the teacher's own preference for building `Object`/`Value`
// trees in Go rather than pulling in a second toolchain for fixtures.

func strLit(s string) *LiteralExpr { return &LiteralExpr{Kind: LitString, Str: s} }
func numLit(n float64) *LiteralExpr { return &LiteralExpr{Kind: LitNumber, Number: n} }
func boolLit(b bool) *LiteralExpr  { return &LiteralExpr{Kind: LitBool, Bool: b} }

func id(name string) *IdentifierExpr { return &IdentifierExpr{Name: name} }
func idPat(name string) *IdentifierPattern { return &IdentifierPattern{Name: name} }

func exprStmt(e Expr) *ExpressionStmt { return &ExpressionStmt{Expr: e} }

func constDecl(name string, init Expr) *VariableDeclarationStmt {
	return &VariableDeclarationStmt{
		Kind:        DeclConst,
		Declarators: []Declarator{{Target: idPat(name), Init: init}},
	}
}

func letDecl(name string, init Expr) *VariableDeclarationStmt {
	return &VariableDeclarationStmt{
		Kind:        DeclLet,
		Declarators: []Declarator{{Target: idPat(name), Init: init}},
	}
}

func block(stmts ...Stmt) *BlockStmt { return &BlockStmt{Body: stmts} }

func yieldExpr(arg Expr) *YieldExpr            { return &YieldExpr{Argument: arg} }
func yieldStarExpr(arg Expr) *YieldExpr        { return &YieldExpr{Argument: arg, Delegate: true} }

func tryStmt(try *BlockStmt, catch *CatchClause, finally *BlockStmt) *TryStmt {
	return &TryStmt{Try: try, Catch: catch, Finally: finally}
}

func returnStmt(arg Expr) *ReturnStmt { return &ReturnStmt{Argument: arg} }
func throwStmt(arg Expr) *ThrowStmt   { return &ThrowStmt{Argument: arg} }

// call builds `callee(args...)`.
func call(callee Expr, args ...Expr) *CallExpr {
	return &CallExpr{Callee: callee, Args: args, Spreads: make([]bool, len(args))}
}

// member builds `target.name` (non-computed).
func member(target Expr, name string) *MemberExpr {
	return &MemberExpr{Target: target, Property: strLit(name)}
}

// genFunctionDecl builds `function* name() { body... }`.
func genFunctionDecl(name string, body ...Stmt) *FunctionDeclarationStmt {
	return &FunctionDeclarationStmt{Function: &FunctionNode{
		Name: name, Body: body, IsGenerator: true,
	}}
}

func funcDecl(name string, body ...Stmt) *FunctionDeclarationStmt {
	return &FunctionDeclarationStmt{Function: &FunctionNode{Name: name, Body: body}}
}

// program wraps stmts into a ProgramNode ready for EvaluateProgram.
func program(stmts ...Stmt) *ProgramNode {
	return &ProgramNode{Body: stmts}
}

// objectExpr builds `{ key1: val1, key2: val2, ... }` from pairs given as
// alternating (string key, Expr value).
func objectExpr(pairs ...interface{}) *ObjectExpr {
	var members []ObjectMember
	for i := 0; i < len(pairs); i += 2 {
		key := pairs[i].(string)
		val := pairs[i+1].(Expr)
		members = append(members, ObjectMember{Kind: PropNormal, Key: strLit(key), Value: val})
	}
	return &ObjectExpr{Members: members}
}

// runProgram is the shared test entry point: builds a fresh Realm and
// evaluates stmts against its global environment, returning the
// completion value.
func runProgram(stmts ...Stmt) (Value, error) {
	realm := NewRealm(DefaultRealmOptions())
	return EvaluateProgram(program(stmts...), realm.GlobalEnv, realm, EvalOptions{ExecutionKind: ExecScript})
}
