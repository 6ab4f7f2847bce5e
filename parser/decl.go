package parser

import (
	"github.com/dr8co/kplc/check"
	"github.com/dr8co/kplc/diag"
	"github.com/dr8co/kplc/symtab"
	"github.com/dr8co/kplc/token"
	"github.com/dr8co/kplc/types"
)

// ConstDecl = "CONST" (ident "=" Constant ";")+
func (p *Parser) parseConstDecls() {
	if p.cur.Kind != token.CONST {
		return
	}
	p.next()
	for p.cur.Kind == token.IDENT {
		nameTok := p.cur
		p.next()
		check.FreshIdent(p.st.Current, nameTok.Literal, nameTok.Pos)
		p.eat(token.EQ)
		val := p.parseConstant()
		p.eat(token.SEMI)
		p.st.Declare(&symtab.ConstantEntity{NameField: nameTok.Literal, Value: val})
	}
}

// TypeDecl = "TYPE" (ident "=" Type ";")+
func (p *Parser) parseTypeDecls() {
	if p.cur.Kind != token.TYPE {
		return
	}
	p.next()
	for p.cur.Kind == token.IDENT {
		nameTok := p.cur
		p.next()
		check.FreshIdent(p.st.Current, nameTok.Literal, nameTok.Pos)
		p.eat(token.EQ)
		typ := p.parseType()
		p.eat(token.SEMI)
		p.st.Declare(&symtab.TypeAliasEntity{NameField: nameTok.Literal, Type: typ})
	}
}

// VarDecl = "VAR" (ident ("," ident)* ":" Type ";")+
//
// The grammar skeleton in the parser overview shows one identifier per
// declaration, but S3's `VAR x,y: INTEGER;` needs a comma-separated name
// list sharing one type annotation, so that form is accepted here.
func (p *Parser) parseVarDecls() {
	if p.cur.Kind != token.VAR {
		return
	}
	p.next()
	for p.cur.Kind == token.IDENT {
		names := []token.Token{p.cur}
		p.next()
		for p.cur.Kind == token.COMMA {
			p.next()
			names = append(names, p.eat(token.IDENT))
		}
		p.eat(token.COLON)
		typ := p.parseType()
		p.eat(token.SEMI)
		for _, nt := range names {
			check.FreshIdent(p.st.Current, nt.Literal, nt.Pos)
			p.st.Declare(&symtab.VariableEntity{NameField: nt.Literal, Type: typ})
		}
	}
}

// SubDecl = FuncDecl | ProcDecl, repeated until neither keyword starts
// the next declaration.
func (p *Parser) parseSubDecls(scope *symtab.Scope) {
	for p.cur.Kind == token.FUNCTION || p.cur.Kind == token.PROCEDURE {
		if p.cur.Kind == token.FUNCTION {
			p.parseFuncDecl(scope)
		} else {
			p.parseProcDecl(scope)
		}
	}
}

// FuncDecl = "FUNCTION" ident Params ":" BasicType ";" Block ";"
func (p *Parser) parseFuncDecl(parentScope *symtab.Scope) {
	p.eat(token.FUNCTION)
	nameTok := p.eat(token.IDENT)
	check.FreshIdent(parentScope, nameTok.Literal, nameTok.Pos)

	scope := symtab.NewScope(nil)
	fn := &symtab.FunctionEntity{NameField: nameTok.Literal, Scope: scope}
	scope.Owner = fn

	p.st.Declare(fn)
	p.st.Enter(scope)

	p.parseParams(scope)
	p.eat(token.COLON)
	fn.ReturnType = p.parseBasicType()
	p.eat(token.SEMI)

	fn.CodeAddress = int(p.gen.CurrentAddress())
	p.parseBlock(scope, func(pos token.Position) { p.gen.ReturnFunction(pos) })
	p.eat(token.SEMI)

	p.st.Exit()
}

// ProcDecl = "PROCEDURE" ident Params ";" Block ";"
func (p *Parser) parseProcDecl(parentScope *symtab.Scope) {
	p.eat(token.PROCEDURE)
	nameTok := p.eat(token.IDENT)
	check.FreshIdent(parentScope, nameTok.Literal, nameTok.Pos)

	scope := symtab.NewScope(nil)
	proc := &symtab.ProcedureEntity{NameField: nameTok.Literal, Scope: scope}
	scope.Owner = proc

	p.st.Declare(proc)
	p.st.Enter(scope)

	p.parseParams(scope)
	p.eat(token.SEMI)

	proc.CodeAddress = int(p.gen.CurrentAddress())
	p.parseBlock(scope, func(pos token.Position) { p.gen.ReturnProcedure(pos) })
	p.eat(token.SEMI)

	p.st.Exit()
}

// Params = ε | "(" Param (";" Param)* ")"
func (p *Parser) parseParams(scope *symtab.Scope) {
	if p.cur.Kind != token.LPAREN {
		return
	}
	p.next()
	p.parseParam(scope)
	for p.cur.Kind == token.SEMI {
		p.next()
		p.parseParam(scope)
	}
	p.eat(token.RPAREN)
}

// Param = ["VAR"] ident ":" BasicType
func (p *Parser) parseParam(scope *symtab.Scope) {
	byRef := false
	if p.cur.Kind == token.VAR {
		byRef = true
		p.next()
	}
	nameTok := p.eat(token.IDENT)
	check.FreshIdent(scope, nameTok.Literal, nameTok.Pos)
	p.eat(token.COLON)
	typ := p.parseBasicType()
	p.st.Declare(&symtab.ParameterEntity{NameField: nameTok.Literal, ByRef: byRef, Type: typ})
}

// Type = "INTEGER" | "CHAR" | "ARRAY" "[" number "]" "OF" Type | ident
func (p *Parser) parseType() *types.Type {
	pos := p.cur.Pos
	switch p.cur.Kind {
	case token.INTEGER:
		p.next()
		return types.NewInt()
	case token.CHARTYPE:
		p.next()
		return types.NewChar()
	case token.ARRAY:
		p.next()
		p.eat(token.LBRACKET)
		sizeTok := p.eat(token.NUMBER)
		if sizeTok.IntValue <= 0 {
			diag.Fatal(diag.ErrInvalidArraySize, sizeTok.Pos, "array size must be positive, got %d", sizeTok.IntValue)
		}
		p.eat(token.RBRACKET)
		p.eat(token.OF)
		elem := p.parseType()
		return types.NewArray(int(sizeTok.IntValue), elem)
	case token.IDENT:
		nameTok := p.cur
		p.next()
		return check.DeclaredType(p.st, nameTok.Literal, nameTok.Pos).Type
	default:
		diag.Fatal(diag.ErrInvalidType, pos, "invalid type, got %s", p.cur.Kind)
		return nil
	}
}

// BasicType = "INTEGER" | "CHAR"
func (p *Parser) parseBasicType() *types.Type {
	pos := p.cur.Pos
	switch p.cur.Kind {
	case token.INTEGER:
		p.next()
		return types.NewInt()
	case token.CHARTYPE:
		p.next()
		return types.NewChar()
	default:
		diag.Fatal(diag.ErrInvalidBasicType, pos, "expected INTEGER or CHAR, got %s", p.cur.Kind)
		return nil
	}
}

// Constant = ["+"|"-"] (number | ident-of-int-const) | char-literal
func (p *Parser) parseConstant() types.Value {
	pos := p.cur.Pos
	sign := int32(1)
	switch p.cur.Kind {
	case token.PLUS:
		p.next()
	case token.MINUS:
		sign = -1
		p.next()
	}

	switch p.cur.Kind {
	case token.NUMBER:
		v := p.cur.IntValue
		p.next()
		return types.NewIntValue(sign * v)
	case token.IDENT:
		nameTok := p.cur
		p.next()
		c := check.DeclaredConstant(p.st, nameTok.Literal, nameTok.Pos)
		if c.Value.Kind != types.Int {
			diag.Fatal(diag.ErrInvalidConstant, nameTok.Pos, "%s is not an integer constant", nameTok.Literal)
		}
		return types.NewIntValue(sign * c.Value.IntValue)
	case token.CHAR:
		if sign != 1 {
			diag.Fatal(diag.ErrInvalidConstant, pos, "a character constant cannot be signed")
		}
		v := p.cur.CharValue
		p.next()
		return types.NewCharValue(v)
	default:
		diag.Fatal(diag.ErrInvalidConstant, pos, "invalid constant, got %s", p.cur.Kind)
		return types.Value{}
	}
}
