package parser

import (
	"github.com/dr8co/kplc/check"
	"github.com/dr8co/kplc/diag"
	"github.com/dr8co/kplc/symtab"
	"github.com/dr8co/kplc/token"
	"github.com/dr8co/kplc/types"
)

// Statements = Stmt (";" Stmt)*
func (p *Parser) parseStatements() {
	p.parseStmt()
	for p.cur.Kind == token.SEMI {
		p.next()
		p.parseStmt()
	}
}

// Stmt = AssignSt | CallSt | GroupSt | IfSt | WhileSt | ForSt | ε
//
// An identifier that names a procedure (predefined or user-declared) may
// also start a call with the leading CALL keyword omitted — this is how
// S5's bare `WRITEI(i)` parses as a statement rather than as an
// assignment target.
func (p *Parser) parseStmt() {
	switch p.cur.Kind {
	case token.CALL:
		p.next()
		p.parseCallTarget()
	case token.BEGIN:
		p.parseGroupSt()
	case token.IF:
		p.parseIfSt()
	case token.WHILE:
		p.parseWhileSt()
	case token.FOR:
		p.parseForSt()
	case token.IDENT:
		if ent, ok := p.st.Lookup(p.cur.Literal); ok {
			if _, isProc := ent.(*symtab.ProcedureEntity); isProc {
				p.parseCallTarget()
				return
			}
		}
		p.parseAssignSt()
	default:
		// ε: empty statement.
	}
}

// GroupSt = "BEGIN" Statements "END"
func (p *Parser) parseGroupSt() {
	p.eat(token.BEGIN)
	p.parseStatements()
	p.eat(token.END)
}

// CallSt = "CALL" ident Arguments, and the CALL-less bare form used for
// predefined and in-line procedure calls.
func (p *Parser) parseCallTarget() {
	nameTok := p.cur
	p.eat(token.IDENT)
	ent := check.DeclaredIdent(p.st, nameTok.Literal, nameTok.Pos)
	proc, ok := ent.(*symtab.ProcedureEntity)
	if !ok {
		diag.Fatal(diag.ErrInvalidIdentUsage, nameTok.Pos, "%s is not a procedure", nameTok.Literal)
	}
	p.emitProcedureCall(proc, nameTok.Pos)
}

// emitProcedureCall follows §4.6's CALL statement shape: a user
// procedure reserves the frame header, evaluates arguments, reclaims the
// header before CALL re-establishes it properly. A predefined procedure
// skips the header dance entirely.
func (p *Parser) emitProcedureCall(proc *symtab.ProcedureEntity, pos token.Position) {
	if p.isPredefinedProcedure(proc) {
		p.parseArguments(proc.Params, pos)
		p.gen.PredefinedProcedureCall(p.st, proc, pos)
		return
	}
	p.gen.ReserveFrame(symtab.ReservedHeaderSize, pos)
	p.parseArguments(proc.Params, pos)
	p.gen.ReleaseFrame(symtab.ReservedHeaderSize+len(proc.Params), pos)
	p.gen.ProcedureCall(p.st.Current, proc, pos)
}

func (p *Parser) isPredefinedProcedure(proc *symtab.ProcedureEntity) bool {
	return proc == p.st.BuiltinWriteI || proc == p.st.BuiltinWriteC || proc == p.st.BuiltinWriteLn
}

// Arguments binds actuals against params in order: by-value formals
// parse an expression (pushing a value), by-reference formals parse an
// L-value (pushing an address); each actual is type-checked against its
// formal, and a count mismatch either way is fatal.
func (p *Parser) parseArguments(params []*symtab.ParameterEntity, callPos token.Position) {
	if len(params) == 0 {
		if p.cur.Kind == token.LPAREN {
			p.next()
			if p.cur.Kind != token.RPAREN {
				diag.Fatal(diag.ErrInvalidArguments, callPos, "too many arguments: expected 0")
			}
			p.next()
		}
		return
	}

	p.eat(token.LPAREN)
	for i, param := range params {
		if i > 0 {
			p.eat(token.COMMA)
		}
		argPos := p.cur.Pos
		var argType *types.Type
		if param.ByRef {
			emit, t, _ := p.parseLValue()
			emit(argPos)
			argType = t
		} else {
			argType = p.parseExpr()
		}
		check.TypeEquality(param.Type, argType, argPos)
	}
	if p.cur.Kind != token.RPAREN {
		diag.Fatal(diag.ErrArgumentCountMismatch, callPos, "too many arguments: expected %d", len(params))
	}
	p.next()
}

// AssignSt = LValue ("," LValue)* ":=" Expr ("," Expr)*
//
// Every target's address and its matching value are emitted as an
// interleaved pair — target-address(v_i) then value(e_i) — before any
// ST is emitted, so that all right-hand values are computed from the
// pre-assignment state no matter how the targets alias each other (the
// x,y := y,x swap). Because target-address emission for a plain
// variable or parameter has no side effects of its own, deferring it
// into a closure and calling it at the right point in that interleaved
// order is equivalent to emitting it eagerly.
func (p *Parser) parseAssignSt() {
	pos := p.cur.Pos

	type target struct {
		emit func(token.Position)
		typ  *types.Type
	}
	var targets []target
	indexed := false

	emit, typ, hadIndex := p.parseLValue()
	targets = append(targets, target{emit, typ})
	indexed = indexed || hadIndex

	for p.cur.Kind == token.COMMA {
		p.next()
		emit, typ, hadIndex := p.parseLValue()
		targets = append(targets, target{emit, typ})
		indexed = indexed || hadIndex
	}

	if len(targets) > 1 && indexed {
		diag.Fatal(diag.ErrInvalidLValue, pos, "array elements cannot appear in a multi-target assignment")
	}

	p.eat(token.ASSIGN)

	for i, t := range targets {
		if i > 0 {
			p.eat(token.COMMA)
		}
		t.emit(pos)
		ePos := p.cur.Pos
		eType := p.parseExpr()
		check.TypeEquality(t.typ, eType, ePos)
	}
	for range targets {
		p.gen.Store(pos)
	}
}

// LValue = ident ("[" Expr "]")*, resolved to one of: a plain variable,
// a value or by-reference parameter, or (inside its own body) a
// function name standing for its return value. The returned emit
// closure pushes the target's address when called; for an indexed
// array element, the address arithmetic runs immediately (legal only
// because a multi-target assignment forbids indexing, so ordering
// relative to other targets never matters for it).
func (p *Parser) parseLValue() (emit func(token.Position), typ *types.Type, indexed bool) {
	nameTok := p.eat(token.IDENT)
	scope := p.st.Current
	ent := check.DeclaredLValueIdent(p.st, nameTok.Literal, nameTok.Pos)

	switch e := ent.(type) {
	case *symtab.VariableEntity:
		if p.cur.Kind == token.LBRACKET {
			p.gen.VariableAddress(scope, e, nameTok.Pos)
			elemType := p.parseIndexChain(e.Type, nameTok.Pos)
			check.BasicType(elemType, nameTok.Pos)
			return func(token.Position) {}, elemType, true
		}
		return func(pos token.Position) { p.gen.VariableAddress(scope, e, pos) }, e.Type, false

	case *symtab.ParameterEntity:
		if e.ByRef {
			return func(pos token.Position) { p.gen.ParameterValue(scope, e, pos) }, e.Type, false
		}
		return func(pos token.Position) { p.gen.ParameterAddress(scope, e, pos) }, e.Type, false

	case *symtab.FunctionEntity:
		return func(pos token.Position) { p.gen.ReturnValueAddress(pos) }, e.ReturnType, false
	}

	diag.Fatal(diag.ErrInvalidLValue, nameTok.Pos, "%s is not an l-value", nameTok.Literal)
	return nil, nil, false
}

// parseIndexChain consumes zero or more "[" Expr "]" suffixes against
// base, emitting LC(size_of(element)), ML, AD for each: the stack top
// must already hold the address being indexed into, and afterward holds
// the address of the selected element.
func (p *Parser) parseIndexChain(base *types.Type, pos token.Position) *types.Type {
	t := base
	for p.cur.Kind == token.LBRACKET {
		check.ArrayType(t, pos)
		p.next()
		idxPos := p.cur.Pos
		idxType := p.parseExpr()
		check.IntType(idxType, idxPos)
		p.eat(token.RBRACKET)

		p.gen.Constant(int32(types.SizeOf(t.Elem)), idxPos)
		p.gen.Mul(idxPos)
		p.gen.Add(idxPos)
		t = t.Elem
	}
	return t
}

// IfSt = "IF" Cond "THEN" Stmt ["ELSE" Stmt]
func (p *Parser) parseIfSt() {
	pos := p.cur.Pos
	p.eat(token.IF)
	p.parseCond()
	falseJump := p.gen.FalseJump(pos)
	p.eat(token.THEN)
	p.parseStmt()

	if p.cur.Kind == token.ELSE {
		endJump := p.gen.Jump(pos)
		p.gen.UpdateFalseJump(falseJump, p.gen.CurrentAddress())
		p.next()
		p.parseStmt()
		p.gen.UpdateJump(endJump, p.gen.CurrentAddress())
		return
	}
	p.gen.UpdateFalseJump(falseJump, p.gen.CurrentAddress())
}

// WhileSt = "WHILE" Cond "DO" Stmt
func (p *Parser) parseWhileSt() {
	pos := p.cur.Pos
	p.eat(token.WHILE)
	start := p.gen.CurrentAddress()
	p.parseCond()
	exit := p.gen.FalseJump(pos)
	p.eat(token.DO)
	p.parseStmt()
	back := p.gen.Jump(pos)
	p.gen.UpdateJump(back, start)
	p.gen.UpdateFalseJump(exit, p.gen.CurrentAddress())
}

// ForSt = "FOR" LValue ":=" Expr "TO" Expr "DO" Stmt
//
// Shape (per S5): init (LA, CV, start-expr, ST), preamble (CV, LI), test
// (end-expr, LE, FJ @exit), body, increment (CV, CV, LI, LC 1, AD, ST),
// refresh (CV, LI), J @test, @exit: DCT 1. The loop variable's address
// stays on the stack across the whole loop, duplicated whenever its
// current value is needed, and is dropped once with DCT 1 on exit.
func (p *Parser) parseForSt() {
	pos := p.cur.Pos
	p.eat(token.FOR)

	emit, typ, _ := p.parseLValue()
	check.IntType(typ, pos)
	p.eat(token.ASSIGN)

	emit(pos)
	p.gen.Duplicate(pos)
	startPos := p.cur.Pos
	startType := p.parseExpr()
	check.IntType(startType, startPos)
	p.gen.Store(pos)

	p.eat(token.TO)

	p.gen.Duplicate(pos)
	p.gen.Load(pos)

	testAddr := p.gen.CurrentAddress()
	endPos := p.cur.Pos
	endType := p.parseExpr()
	check.IntType(endType, endPos)
	p.gen.LessOrEqual(pos)
	exit := p.gen.FalseJump(pos)

	p.eat(token.DO)
	p.parseStmt()

	p.gen.Duplicate(pos)
	p.gen.Duplicate(pos)
	p.gen.Load(pos)
	p.gen.Constant(1, pos)
	p.gen.Add(pos)
	p.gen.Store(pos)

	p.gen.Duplicate(pos)
	p.gen.Load(pos)

	back := p.gen.Jump(pos)
	p.gen.UpdateJump(back, testAddr)
	p.gen.UpdateFalseJump(exit, p.gen.CurrentAddress())
	p.gen.ReleaseFrame(1, pos)
}
