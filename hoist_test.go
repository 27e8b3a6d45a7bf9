package ecma

import (
	"sort"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
)

// sortedHoistResult renders a HoistResult as a stable, snapshot-friendly
// value: Go map iteration order is randomized, so the raw struct can't be
// compared textually across runs.
type sortedHoistResult struct {
	Lexical      []string
	CatchParams  []string
	SimpleCatch  []string
	Vars         []string
	FunctionDecl []string
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortHoistResult(h *HoistResult) sortedHoistResult {
	fns := make([]string, 0, len(h.FunctionDecls))
	for _, fd := range h.FunctionDecls {
		fns = append(fns, fd.Function.Name)
	}
	sort.Strings(fns)
	return sortedHoistResult{
		Lexical:      sortedKeys(h.LexicalNames),
		CatchParams:  sortedKeys(h.CatchParamNames),
		SimpleCatch:  sortedKeys(h.SimpleCatchNames),
		Vars:         sortedKeys(h.VarNames),
		FunctionDecl: fns,
	}
}

// TestAnalyzeBlockSnapshot exercises the two-pass hoisting scan (spec.md
// §4.3) over a program mixing var/let/const, a nested Annex-B function
// declaration, and a destructuring catch parameter, snapshotting the
// resulting binding sets end to end rather than asserting field by field.
func TestAnalyzeBlockSnapshot(t *testing.T) {
	body := []Stmt{
		letDecl("a", numLit(1)),
		constDecl("b", numLit(2)),
		&VariableDeclarationStmt{Kind: DeclVar, Declarators: []Declarator{{Target: idPat("c")}}},
		funcDecl("topLevelFn"),
		&IfStmt{
			Test:       id("a"),
			Consequent: block(funcDecl("nestedAnnexB")),
		},
		tryStmt(
			block(),
			&CatchClause{Param: idPat("e"), Body: block()},
			nil,
		),
		tryStmt(
			block(),
			&CatchClause{Param: &ObjectPattern{Properties: []ObjectPatternProperty{{Key: strLit("code"), Value: idPat("code")}}}, Body: block()},
			nil,
		),
	}

	result := sortHoistResult(AnalyzeBlock(body))
	dumpf(t, "hoist result", result)
	snaps.MatchSnapshot(t, "analyze_block", result)
}

// TestAnalyzeBlockIdempotent is the "Idempotence of hoisting" law (spec.md
// §8): running the hoister twice on the same body must agree.
func TestAnalyzeBlockIdempotent(t *testing.T) {
	body := []Stmt{
		letDecl("x", numLit(1)),
		&VariableDeclarationStmt{Kind: DeclVar, Declarators: []Declarator{{Target: idPat("y")}}},
		funcDecl("f"),
	}
	first, second := IdempotentReanalyze(body)
	a, b := sortHoistResult(first), sortHoistResult(second)
	dumpf(t, "first pass", a)
	dumpf(t, "second pass", b)
	if len(a.Lexical) != len(b.Lexical) || len(a.Vars) != len(b.Vars) || len(a.FunctionDecl) != len(b.FunctionDecl) {
		t.Fatalf("hoisting is not idempotent: %+v vs %+v", a, b)
	}
	for i := range a.Lexical {
		if a.Lexical[i] != b.Lexical[i] {
			t.Fatalf("lexical name mismatch at %d: %q vs %q", i, a.Lexical[i], b.Lexical[i])
		}
	}
}
