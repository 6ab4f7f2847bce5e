package parser

import (
	"github.com/dr8co/kplc/check"
	"github.com/dr8co/kplc/diag"
	"github.com/dr8co/kplc/symtab"
	"github.com/dr8co/kplc/token"
	"github.com/dr8co/kplc/types"
)

// Cond = Expr relop Expr, relop = "=" | "!=" | "<=" | "<" | ">=" | ">"
func (p *Parser) parseCond() {
	lhsPos := p.cur.Pos
	lhs := p.parseExpr()

	opPos := p.cur.Pos
	op := p.cur.Kind
	switch op {
	case token.EQ, token.NEQ, token.LE, token.LT, token.GE, token.GT:
		p.next()
	default:
		diag.Fatal(diag.ErrInvalidComparator, opPos, "expected a comparison operator, got %s", op)
	}

	rhs := p.parseExpr()
	check.BasicType(lhs, lhsPos)
	check.TypeEquality(lhs, rhs, opPos)

	switch op {
	case token.EQ:
		p.gen.Equal(opPos)
	case token.NEQ:
		p.gen.NotEqual(opPos)
	case token.LE:
		p.gen.LessOrEqual(opPos)
	case token.LT:
		p.gen.Less(opPos)
	case token.GE:
		p.gen.GreaterOrEqual(opPos)
	case token.GT:
		p.gen.Greater(opPos)
	}
}

// Expr = ["+"|"-"] Expr2
func (p *Parser) parseExpr() *types.Type {
	pos := p.cur.Pos
	negate := false
	switch p.cur.Kind {
	case token.PLUS:
		p.next()
	case token.MINUS:
		negate = true
		p.next()
	}

	t := p.parseExpr2()
	if negate {
		check.IntType(t, pos)
		p.gen.Negate(pos)
	}
	return t
}

// Expr2 = Term {("+"|"-") Term}
func (p *Parser) parseExpr2() *types.Type {
	lhsPos := p.cur.Pos
	t := p.parseTerm()

	for p.cur.Kind == token.PLUS || p.cur.Kind == token.MINUS {
		op := p.cur.Kind
		opPos := p.cur.Pos
		p.next()

		check.IntType(t, lhsPos)
		rt := p.parseTerm()
		check.IntType(rt, opPos)

		if op == token.PLUS {
			p.gen.Add(opPos)
		} else {
			p.gen.Sub(opPos)
		}
		t = types.NewInt()
	}
	return t
}

// Term = Factor {("*"|"/") Factor}
func (p *Parser) parseTerm() *types.Type {
	lhsPos := p.cur.Pos
	t := p.parseFactor()

	for p.cur.Kind == token.TIMES || p.cur.Kind == token.SLASH {
		op := p.cur.Kind
		opPos := p.cur.Pos
		p.next()

		check.IntType(t, lhsPos)
		rt := p.parseFactor()
		check.IntType(rt, opPos)

		if op == token.TIMES {
			p.gen.Mul(opPos)
		} else {
			p.gen.Div(opPos)
		}
		t = types.NewInt()
	}
	return t
}

// Factor = number | char-literal | ident [Arguments] | "(" Expr ")"
//
//	| "IF" Cond "RETURN" Expr "ELSE" "RETURN" Expr
func (p *Parser) parseFactor() *types.Type {
	pos := p.cur.Pos
	switch p.cur.Kind {
	case token.NUMBER:
		v := p.cur.IntValue
		p.next()
		p.gen.Constant(v, pos)
		return types.NewInt()

	case token.CHAR:
		v := p.cur.CharValue
		p.next()
		p.gen.Constant(int32(v), pos)
		return types.NewChar()

	case token.LPAREN:
		p.next()
		t := p.parseExpr()
		p.eat(token.RPAREN)
		return t

	case token.IF:
		return p.parseConditionalExpr()

	case token.IDENT:
		return p.parseIdentFactor()

	default:
		diag.Fatal(diag.ErrInvalidFactor, pos, "invalid factor, got %s", p.cur.Kind)
		return nil
	}
}

// parseIdentFactor resolves an identifier used as a value: a constant
// inlines its value, a scalar variable or value parameter loads it, an
// array-indexed variable computes the element address then LI, a
// by-reference parameter loads its stored address then LI, and a
// function name issues a call, leaving the result in place.
func (p *Parser) parseIdentFactor() *types.Type {
	nameTok := p.cur
	p.eat(token.IDENT)
	scope := p.st.Current
	ent := check.DeclaredIdent(p.st, nameTok.Literal, nameTok.Pos)

	switch e := ent.(type) {
	case *symtab.ConstantEntity:
		p.gen.Constant(constantCode(e.Value), nameTok.Pos)
		return e.Value.Type()

	case *symtab.VariableEntity:
		if p.cur.Kind == token.LBRACKET {
			p.gen.VariableAddress(scope, e, nameTok.Pos)
			elemType := p.parseIndexChain(e.Type, nameTok.Pos)
			check.BasicType(elemType, nameTok.Pos)
			p.gen.Load(nameTok.Pos)
			return elemType
		}
		p.gen.VariableValue(scope, e, nameTok.Pos)
		return e.Type

	case *symtab.ParameterEntity:
		p.gen.ParameterValue(scope, e, nameTok.Pos)
		if e.ByRef {
			p.gen.Load(nameTok.Pos)
		}
		return e.Type

	case *symtab.FunctionEntity:
		return p.emitFunctionCall(e, nameTok.Pos)

	default:
		diag.Fatal(diag.ErrInvalidExpression, nameTok.Pos, "%s cannot be used in an expression", nameTok.Literal)
		return nil
	}
}

// constantCode returns the runtime word value of a constant: its
// character code for a CHAR constant, its integer value otherwise.
func constantCode(v types.Value) int32 {
	if v.Kind == types.Char {
		return int32(v.CharValue)
	}
	return v.IntValue
}

// emitFunctionCall mirrors emitProcedureCall's header/DCT dance, using
// the fixed reserved-header size as the frame reservation (§4.6: "INT(4),
// arguments, DCT(4 + paramCount), CALL").
func (p *Parser) emitFunctionCall(fn *symtab.FunctionEntity, pos token.Position) *types.Type {
	if fn == p.st.BuiltinReadI || fn == p.st.BuiltinReadC {
		p.parseArguments(fn.Params, pos)
		p.gen.PredefinedFunctionCall(p.st, fn, pos)
		return fn.ReturnType
	}
	p.gen.ReserveFrame(symtab.ReservedHeaderSize, pos)
	p.parseArguments(fn.Params, pos)
	p.gen.ReleaseFrame(symtab.ReservedHeaderSize+len(fn.Params), pos)
	p.gen.FunctionCall(p.st.Current, fn, pos)
	return fn.ReturnType
}

// parseConditionalExpr: "IF" Cond "RETURN" Expr "ELSE" "RETURN" Expr,
// KPL's conditional-expression extension. Both branches must agree in
// type; the branch taken at runtime leaves its value where the whole
// factor's value is expected.
func (p *Parser) parseConditionalExpr() *types.Type {
	pos := p.cur.Pos
	p.eat(token.IF)
	p.parseCond()
	falseJump := p.gen.FalseJump(pos)

	p.eat(token.RETURN)
	thenType := p.parseExpr()
	endJump := p.gen.Jump(pos)

	p.gen.UpdateFalseJump(falseJump, p.gen.CurrentAddress())
	p.eat(token.ELSE)
	p.eat(token.RETURN)
	elsePos := p.cur.Pos
	elseType := p.parseExpr()

	p.gen.UpdateJump(endJump, p.gen.CurrentAddress())
	check.TypeEquality(thenType, elseType, elsePos)
	return thenType
}
