package compiler

// Inspect traverses the tree rooted at n in depth-first order. It calls
// f(n) first; if f returns true, Inspect visits each child and then calls
// f(nil). Function bodies are visited as children of their FuncStmt.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch n := n.(type) {
	case *UnaryExpr:
		Inspect(n.Operand, f)
	case *BinaryExpr:
		Inspect(n.Left, f)
		Inspect(n.Right, f)
	case *ParenExpr:
		Inspect(n.Inner, f)
	case *MemberExpr:
		Inspect(n.Base, f)
	case *CallExpr:
		Inspect(n.Callee, f)
		for _, a := range n.Args {
			Inspect(a, f)
		}
	case *CastExpr:
		Inspect(n.Value, f)
	case *SizeofExpr:
		Inspect(n.Value, f)
	case *VarStmt:
		if n.Init != nil {
			Inspect(n.Init, f)
		}
	case *AssignStmt:
		Inspect(n.Target, f)
		Inspect(n.Value, f)
	case *ExprStmt:
		Inspect(n.Expr, f)
	case *BlockStmt:
		for _, s := range n.Stmts {
			Inspect(s, f)
		}
	case *IfStmt:
		Inspect(n.Cond, f)
		Inspect(n.Then, f)
		if n.Else != nil {
			Inspect(n.Else, f)
		}
	case *WhileStmt:
		Inspect(n.Cond, f)
		Inspect(n.Body, f)
	case *ReturnStmt:
		if n.Value != nil {
			Inspect(n.Value, f)
		}
	case *FuncStmt:
		if n.Decl.Body != nil {
			Inspect(n.Decl.Body, f)
		}
	}
	f(nil)
}
