package irgen

import (
	"fmt"

	"minicc/pkg/ast"
	"minicc/pkg/cfg"
	"minicc/pkg/ir"
	"minicc/pkg/ops"
)

func (b *builder) stmt(s ast.Stmt) {
	b.g.ResetTemps()
	if b.g.CurrentBlock().Terminated() {
		b.g.AddBlock(b.g.NewBlock("after"))
	}

	switch n := s.(type) {
	case *ast.DeclStmt:
		for _, v := range n.Vars {
			b.declare(v)
		}

	case *ast.AssignStmt:
		b.assign(n)

	case *ast.ExprStmt:
		b.expr(n.X)

	case *ast.ReturnStmt:
		if n.Value != nil {
			b.toAcc(b.expr(n.Value))
		}
		b.jump(b.g.Exit())

	case *ast.BlockStmt:
		defer b.enter()()
		for _, inner := range n.Stmts {
			b.stmt(inner)
		}

	case *ast.IfStmt:
		b.ifStmt(n)

	case *ast.WhileStmt:
		b.whileStmt(n)

	case *ast.ForStmt:
		b.forStmt(n)

	case *ast.BreakStmt:
		b.jump(b.innermost().brk)

	case *ast.ContinueStmt:
		b.jump(b.innermost().cont)

	default:
		panic(fmt.Sprintf("irgen: unexpected statement %T", s))
	}
}

func (b *builder) innermost() loop {
	if len(b.loops) == 0 {
		panic("irgen: jump outside of a loop")
	}
	return b.loops[len(b.loops)-1]
}

// jump ends the current block with an explicit transfer to target.
func (b *builder) jump(target *cfg.BasicBlock) {
	cur := b.g.CurrentBlock()
	cur.Append(&ir.Jump{Label: target.Label})
	cur.True = target
}

// join wires the current block to target unless it already jumped away.
func (b *builder) join(target *cfg.BasicBlock) {
	if cur := b.g.CurrentBlock(); !cur.Terminated() {
		cur.True = target
	}
}

// toAcc leaves v in the accumulator.
func (b *builder) toAcc(v ir.Operand) {
	if !v.IsReg(ir.EAX) {
		b.store(ir.Acc(), v)
	}
}

// test evaluates cond into the accumulator and turns the current block into
// a two-way test.
func (b *builder) test(cond ast.Expr) *cfg.BasicBlock {
	if cond == nil {
		b.emit(&ir.LoadConst{Value: 1, Dest: ir.Acc()})
	} else {
		b.toAcc(b.expr(cond))
	}
	blk := b.g.CurrentBlock()
	blk.Test = true
	return blk
}

func (b *builder) declare(v ast.Declarator) {
	sym := b.scope.Lookup(v.Name)
	if sym == nil {
		panic(fmt.Sprintf("irgen: %s was not declared in %s", v.Name, b.scope.Name))
	}

	switch {
	case sym.IsArray() && v.HasList:
		for i := 0; i < sym.Length; i++ {
			val := ir.Imm(0)
			if i < len(v.InitList) {
				val = b.expr(v.InitList[i])
			}
			b.emit(&ir.StoreToArray{Base: sym, Index: i, Src: val})
		}
	case v.Init != nil:
		b.store(ir.Sym(sym), b.expr(v.Init))
	}
	b.live[sym] = true
}

func (b *builder) assign(n *ast.AssignStmt) {
	switch t := n.Target.(type) {
	case *ast.VarRef:
		sym := b.resolve(t.Name)
		b.store(ir.Sym(sym), b.expr(n.Value))

	case *ast.IndexExpr:
		sym := b.resolve(t.Name)
		if k, ok := ast.ConstValue(t.Index); ok {
			b.emit(&ir.StoreToArray{Base: sym, Index: int(k), Src: b.expr(n.Value)})
			return
		}

		idx := b.expr(t.Index)
		var val ir.Operand
		if isLeaf(n.Value) {
			val = b.expr(n.Value)
		} else {
			idx = b.spill(idx)
			val = b.expr(n.Value)
		}
		b.index(idx)
		b.emit(&ir.StoreToArray{Base: sym, Index: -1, Src: val})

	default:
		panic(fmt.Sprintf("irgen: %s is not assignable", n.Target))
	}
}

// index moves a dynamic element number into the index register.
func (b *builder) index(idx ir.Operand) {
	b.store(ir.Reg(ir.R11D), idx)
	b.emit(&ir.Unary{Op: ops.SignExtend, Operand: ir.Reg(ir.R11D)})
}

func (b *builder) ifStmt(n *ast.IfStmt) {
	cond := b.test(n.Cond)
	then := b.g.NewBlock("then")
	var els *cfg.BasicBlock
	if n.Else != nil {
		els = b.g.NewBlock("else")
	}
	merge := b.g.NewBlock("endif")

	cond.True = then
	cond.False = merge
	if els != nil {
		cond.False = els
	}

	b.g.AddBlock(then)
	b.stmt(n.Then)
	b.join(merge)

	if els != nil {
		b.g.AddBlock(els)
		b.stmt(n.Else)
		b.join(merge)
	}
	b.g.AddBlock(merge)
}

func (b *builder) whileStmt(n *ast.WhileStmt) {
	head := b.g.NewBlock("while")
	b.join(head)
	b.g.AddBlock(head)
	b.test(n.Cond)

	body := b.g.NewBlock("body")
	exit := b.g.NewBlock("endwhile")
	head.True, head.False = body, exit

	b.loops = append(b.loops, loop{cont: head, brk: exit})
	b.g.AddBlock(body)
	b.stmt(n.Body)
	b.join(head)
	b.loops = b.loops[:len(b.loops)-1]

	b.g.AddBlock(exit)
}

func (b *builder) forStmt(n *ast.ForStmt) {
	defer b.enter()()
	if n.Init != nil {
		b.stmt(n.Init)
	}

	head := b.g.NewBlock("for")
	b.join(head)
	b.g.AddBlock(head)
	b.g.ResetTemps()
	b.test(n.Cond)

	body := b.g.NewBlock("body")
	post := b.g.NewBlock("next")
	exit := b.g.NewBlock("endfor")
	head.True, head.False = body, exit

	b.loops = append(b.loops, loop{cont: post, brk: exit})
	b.g.AddBlock(body)
	b.stmt(n.Body)
	b.join(post)
	b.loops = b.loops[:len(b.loops)-1]

	b.g.AddBlock(post)
	if n.Post != nil {
		b.stmt(n.Post)
	}
	b.join(head)

	b.g.AddBlock(exit)
}
