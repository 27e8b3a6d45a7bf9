package ecma

import "testing"

// These cases are re-expressed against this module's hand-built AST/
// evaluator API (there is no parser in-pack) from the teacher's own
// retrieved generator-return/finally regression tests, which drove a K6
// production incident around yield inside a finally block during
// generator.return(). See DESIGN.md for the grounding note.

func genResultObj(t *testing.T, v Value) *Object {
	t.Helper()
	o, ok := v.(*Object)
	if !ok {
		t.Fatalf("iterator result is not an object: %#v", v)
	}
	return o
}

func TestGeneratorYieldInFinally(t *testing.T) {
	// function* withCleanupYield() {
	//   try { yield "working"; return "done"; }
	//   finally { yield "cleanup"; }
	// }
	// const gen = withCleanupYield();
	// const r1 = gen.next();
	// const r2 = gen.return("cancelled");
	fn := genFunctionDecl("withCleanupYield",
		tryStmt(
			block(exprStmt(yieldExpr(strLit("working"))), returnStmt(strLit("done"))),
			nil,
			block(exprStmt(yieldExpr(strLit("cleanup")))),
		),
	)
	stmts := []Stmt{
		fn,
		constDecl("gen", call(id("withCleanupYield"))),
		constDecl("r1", call(member(id("gen"), "next"))),
		constDecl("r2", call(member(id("gen"), "return"), strLit("cancelled"))),
		exprStmt(objectExpr(
			"r1Value", member(id("r1"), "value"),
			"r2Value", member(id("r2"), "value"),
			"r2Done", member(id("r2"), "done"),
		)),
	}
	result, err := runProgram(stmts...)
	if err != nil {
		t.Fatalf("program error: %v", err)
	}
	obj := genResultObj(t, result)
	if got := obj.Get(StringKey("r1Value")).ToString(); got != "working" {
		t.Fatalf("r1.value = %q, want %q", got, "working")
	}
	if got := obj.Get(StringKey("r2Value")).ToString(); got != "cleanup" {
		t.Fatalf("r2.value = %q, want %q (finally's yield must suspend, not be skipped)", got, "cleanup")
	}
	if obj.Get(StringKey("r2Done")).ToBoolean() {
		t.Fatal("r2.done = true, want false")
	}
}

func TestGeneratorReturnNestedFinallyYields(t *testing.T) {
	// function* nestedCleanup() {
	//   try { try { yield "work"; } finally { yield "inner-cleanup"; } }
	//   finally { yield "outer-cleanup"; }
	// }
	fn := genFunctionDecl("nestedCleanup",
		tryStmt(
			block(tryStmt(
				block(exprStmt(yieldExpr(strLit("work")))),
				nil,
				block(exprStmt(yieldExpr(strLit("inner-cleanup")))),
			)),
			nil,
			block(exprStmt(yieldExpr(strLit("outer-cleanup")))),
		),
	)
	stmts := []Stmt{
		fn,
		constDecl("gen", call(id("nestedCleanup"))),
		constDecl("r1", call(member(id("gen"), "next"))),
		constDecl("r2", call(member(id("gen"), "return"), strLit("cancelled"))),
		constDecl("r3", call(member(id("gen"), "next"))),
		constDecl("r4", call(member(id("gen"), "next"))),
		exprStmt(objectExpr(
			"r1Value", member(id("r1"), "value"),
			"r2Value", member(id("r2"), "value"), "r2Done", member(id("r2"), "done"),
			"r3Value", member(id("r3"), "value"), "r3Done", member(id("r3"), "done"),
			"r4Value", member(id("r4"), "value"), "r4Done", member(id("r4"), "done"),
		)),
	}
	result, err := runProgram(stmts...)
	if err != nil {
		t.Fatalf("program error: %v", err)
	}
	obj := genResultObj(t, result)
	checks := []struct {
		key, want string
	}{
		{"r1Value", "work"},
		{"r2Value", "inner-cleanup"},
		{"r3Value", "outer-cleanup"},
		{"r4Value", "cancelled"},
	}
	for _, c := range checks {
		if got := obj.Get(StringKey(c.key)).ToString(); got != c.want {
			t.Fatalf("%s = %q, want %q", c.key, got, c.want)
		}
	}
	if obj.Get(StringKey("r2Done")).ToBoolean() || obj.Get(StringKey("r3Done")).ToBoolean() {
		t.Fatal("intermediate results must have done=false")
	}
	if !obj.Get(StringKey("r4Done")).ToBoolean() {
		t.Fatal("final result must have done=true")
	}
}

func TestGeneratorReturnFinallyYieldStar(t *testing.T) {
	// function* delegatedCleanup() { yield "cleanup-1"; yield "cleanup-2"; }
	// function* withYieldStarCleanup() {
	//   try { yield "work"; } finally { yield* delegatedCleanup(); }
	// }
	delegated := genFunctionDecl("delegatedCleanup",
		exprStmt(yieldExpr(strLit("cleanup-1"))),
		exprStmt(yieldExpr(strLit("cleanup-2"))),
	)
	outer := genFunctionDecl("withYieldStarCleanup",
		tryStmt(
			block(exprStmt(yieldExpr(strLit("work")))),
			nil,
			block(exprStmt(yieldStarExpr(call(id("delegatedCleanup"))))),
		),
	)
	stmts := []Stmt{
		delegated, outer,
		constDecl("gen", call(id("withYieldStarCleanup"))),
		constDecl("r1", call(member(id("gen"), "next"))),
		constDecl("r2", call(member(id("gen"), "return"), strLit("cancelled"))),
		constDecl("r3", call(member(id("gen"), "next"))),
		constDecl("r4", call(member(id("gen"), "next"))),
		exprStmt(objectExpr(
			"r1Value", member(id("r1"), "value"),
			"r2Value", member(id("r2"), "value"), "r2Done", member(id("r2"), "done"),
			"r3Value", member(id("r3"), "value"), "r3Done", member(id("r3"), "done"),
			"r4Value", member(id("r4"), "value"), "r4Done", member(id("r4"), "done"),
		)),
	}
	result, err := runProgram(stmts...)
	if err != nil {
		t.Fatalf("program error: %v", err)
	}
	obj := genResultObj(t, result)
	checks := []struct{ key, want string }{
		{"r1Value", "work"}, {"r2Value", "cleanup-1"}, {"r3Value", "cleanup-2"}, {"r4Value", "cancelled"},
	}
	for _, c := range checks {
		if got := obj.Get(StringKey(c.key)).ToString(); got != c.want {
			t.Fatalf("%s = %q, want %q", c.key, got, c.want)
		}
	}
	if obj.Get(StringKey("r2Done")).ToBoolean() || obj.Get(StringKey("r3Done")).ToBoolean() {
		t.Fatal("delegated cleanup results must have done=false")
	}
	if !obj.Get(StringKey("r4Done")).ToBoolean() {
		t.Fatal("final result must have done=true")
	}
}

func TestGeneratorReturnFinallyReturnOverridesValue(t *testing.T) {
	// function* genWithOverride() { try { yield "work"; } finally { return "cleanup-override"; } }
	fn := genFunctionDecl("genWithOverride",
		tryStmt(
			block(exprStmt(yieldExpr(strLit("work")))),
			nil,
			block(returnStmt(strLit("cleanup-override"))),
		),
	)
	stmts := []Stmt{
		fn,
		constDecl("gen", call(id("genWithOverride"))),
		exprStmt(call(member(id("gen"), "next"))),
		constDecl("r", call(member(id("gen"), "return"), strLit("cancelled"))),
		exprStmt(objectExpr("value", member(id("r"), "value"), "done", member(id("r"), "done"))),
	}
	result, err := runProgram(stmts...)
	if err != nil {
		t.Fatalf("program error: %v", err)
	}
	obj := genResultObj(t, result)
	if got := obj.Get(StringKey("value")).ToString(); got != "cleanup-override" {
		t.Fatalf("r.value = %q, want %q (finally's own return must override)", got, "cleanup-override")
	}
	if !obj.Get(StringKey("done")).ToBoolean() {
		t.Fatal("r.done = false, want true")
	}
}

func TestGeneratorReturnBeforeStart(t *testing.T) {
	// function* neverStarted() { entered = true; yield "work"; }
	// const gen = neverStarted();
	// const r = gen.return("cancelled");
	fn := genFunctionDecl("neverStarted",
		exprStmt(&AssignmentExpr{Op: AssignPlain, Target: id("entered"), Value: boolLit(true)}),
		exprStmt(yieldExpr(strLit("work"))),
	)
	stmts := []Stmt{
		letDecl("entered", boolLit(false)),
		fn,
		constDecl("gen", call(id("neverStarted"))),
		constDecl("r", call(member(id("gen"), "return"), strLit("cancelled"))),
		exprStmt(objectExpr("value", member(id("r"), "value"), "done", member(id("r"), "done"), "entered", id("entered"))),
	}
	result, err := runProgram(stmts...)
	if err != nil {
		t.Fatalf("program error: %v", err)
	}
	obj := genResultObj(t, result)
	if got := obj.Get(StringKey("value")).ToString(); got != "cancelled" {
		t.Fatalf("r.value = %q, want %q", got, "cancelled")
	}
	if !obj.Get(StringKey("done")).ToBoolean() {
		t.Fatal("r.done = false, want true")
	}
	if obj.Get(StringKey("entered")).ToBoolean() {
		t.Fatal("entered = true, want false: body must never run before the first next()")
	}
}

func TestGeneratorNextAfterCompletionReturnsDoneUndefined(t *testing.T) {
	// function* g() { yield 1; }
	// exhaust it, then call next() again (spec.md §8 invariant).
	fn := genFunctionDecl("g", exprStmt(yieldExpr(numLit(1))))
	stmts := []Stmt{
		fn,
		constDecl("gen", call(id("g"))),
		exprStmt(call(member(id("gen"), "next"))),
		constDecl("r2", call(member(id("gen"), "next"))),
		constDecl("r3", call(member(id("gen"), "next"))),
		exprStmt(objectExpr(
			"r2Done", member(id("r2"), "done"),
			"r3Value", member(id("r3"), "value"),
			"r3Done", member(id("r3"), "done"),
		)),
	}
	result, err := runProgram(stmts...)
	if err != nil {
		t.Fatalf("program error: %v", err)
	}
	obj := genResultObj(t, result)
	if !obj.Get(StringKey("r2Done")).ToBoolean() {
		t.Fatal("r2.done = false, want true (generator body has only one yield)")
	}
	if !IsNullish(obj.Get(StringKey("r3Value"))) {
		t.Fatalf("r3.value = %v, want undefined", obj.Get(StringKey("r3Value")))
	}
	if !obj.Get(StringKey("r3Done")).ToBoolean() {
		t.Fatal("r3.done = false, want true")
	}
}
