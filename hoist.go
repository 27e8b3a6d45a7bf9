package ecma

// HoistResult is the output of the two-pass scope analysis over a single
// block/function body (spec.md §4.3).
type HoistResult struct {
	LexicalNames     map[string]bool
	CatchParamNames  map[string]bool
	SimpleCatchNames map[string]bool
	FunctionDecls    []*FunctionDeclarationStmt
	VarNames         map[string]bool
}

func newHoistResult() *HoistResult {
	return &HoistResult{
		LexicalNames:     map[string]bool{},
		CatchParamNames:  map[string]bool{},
		SimpleCatchNames: map[string]bool{},
		VarNames:         map[string]bool{},
	}
}

// AnalyzeBlock performs the two-pass scan described in spec.md §4.3: it
// walks recursively through every control structure, descending into
// nested function bodies only far enough to record their own declared
// name (not their inner hoisting, which is deferred to when that function
// itself is entered).
func AnalyzeBlock(body []Stmt) *HoistResult {
	h := newHoistResult()
	for _, s := range body {
		collectLexical(s, h)
	}
	for _, s := range body {
		collectVar(s, h, true)
	}
	return h
}

func collectLexical(s Stmt, h *HoistResult) {
	switch n := s.(type) {
	case *VariableDeclarationStmt:
		if n.Kind != DeclVar {
			for _, d := range n.Declarators {
				for name := range patternNames(d.Target) {
					h.LexicalNames[name] = true
				}
			}
		}
	case *ClassDeclarationStmt:
		if n.Class.Name != "" {
			h.LexicalNames[n.Class.Name] = true
		}
	case *FunctionDeclarationStmt:
		// Function declarations are collected by collectVar (hoisted as
		// var-like bindings at the top level; Annex-B handling happens in
		// evaluator.go for nested blocks).
	case *LabeledStmt:
		collectLexical(n.Body, h)
	}
}

// collectVar walks recursively through every control structure (spec.md
// §4.3: if/while/for/try/switch/labeled/with). A function declaration
// contributes only its own name; its body is never walked.
func collectVar(s Stmt, h *HoistResult, topLevel bool) {
	switch n := s.(type) {
	case *VariableDeclarationStmt:
		if n.Kind == DeclVar {
			for _, d := range n.Declarators {
				for name := range patternNames(d.Target) {
					h.VarNames[name] = true
				}
			}
		}
	case *FunctionDeclarationStmt:
		if topLevel {
			h.FunctionDecls = append(h.FunctionDecls, n)
			h.VarNames[n.Function.Name] = true
		} else {
			// Nested function declaration in a non-top-level block: Annex-B
			// candidate. Record the name as a var candidate too; the
			// evaluator decides at runtime whether a lexical name blocks it.
			h.VarNames[n.Function.Name] = true
		}
	case *BlockStmt:
		for _, inner := range n.Body {
			collectVar(inner, h, false)
		}
	case *IfStmt:
		collectVar(n.Consequent, h, false)
		if n.Alternate != nil {
			collectVar(n.Alternate, h, false)
		}
	case *WhileStmt:
		collectVar(n.Body, h, false)
	case *DoWhileStmt:
		collectVar(n.Body, h, false)
	case *ForStmt:
		if decl, ok := n.Init.(*VariableDeclarationStmt); ok {
			collectVar(decl, h, false)
		}
		collectVar(n.Body, h, false)
	case *ForEachStmt:
		if n.Decl != nil {
			collectVar(n.Decl, h, false)
		}
		collectVar(n.Body, h, false)
	case *TryStmt:
		for _, inner := range n.Try.Body {
			collectVar(inner, h, false)
		}
		if n.Catch != nil {
			if n.Catch.Param != nil {
				if ident, ok := n.Catch.Param.(*IdentifierPattern); ok {
					h.CatchParamNames[ident.Name] = true
					h.SimpleCatchNames[ident.Name] = true
				} else {
					for name := range patternNames(n.Catch.Param) {
						h.CatchParamNames[name] = true
					}
				}
			}
			for _, inner := range n.Catch.Body.Body {
				collectVar(inner, h, false)
			}
		}
		if n.Finally != nil {
			for _, inner := range n.Finally.Body {
				collectVar(inner, h, false)
			}
		}
	case *SwitchStmt:
		for _, c := range n.Cases {
			for _, inner := range c.Body {
				collectVar(inner, h, false)
			}
		}
	case *LabeledStmt:
		collectVar(n.Body, h, topLevel)
	case *WithStmt:
		collectVar(n.Body, h, false)
	}
}

// patternNames flattens every identifier bound by a destructuring pattern.
func patternNames(p Pattern) map[string]bool {
	names := map[string]bool{}
	collectPatternNames(p, names)
	return names
}

func collectPatternNames(p Pattern, out map[string]bool) {
	switch n := p.(type) {
	case *IdentifierPattern:
		out[n.Name] = true
	case *ArrayPattern:
		for _, el := range n.Elements {
			if el.Target != nil {
				collectPatternNames(el.Target, out)
			}
		}
	case *ObjectPattern:
		for _, prop := range n.Properties {
			if prop.Value != nil {
				collectPatternNames(prop.Value, out)
			}
		}
	case *MemberPattern:
		// Assignment to an existing reference declares no new name.
	}
}

// IdempotentReanalyze is a convenience used by tests to assert the
// "Idempotence of hoisting" law (spec.md §8): running AnalyzeBlock twice
// on the same body must produce identical binding sets.
func IdempotentReanalyze(body []Stmt) (*HoistResult, *HoistResult) {
	return AnalyzeBlock(body), AnalyzeBlock(body)
}
