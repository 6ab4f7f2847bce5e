// Package parser implements KPL's recursive-descent parser: one function
// per grammar nonterminal, each both validating its input against the
// symbol table and type system and emitting the bytecode for it as it
// goes. There is no intermediate syntax tree — parsing, name resolution,
// type checking, and code generation all happen in the same left-to-right
// pass.
//
// The parser never returns an error. A syntax or semantic problem is
// reported through diag.Fatal, which unwinds the whole parse via panic;
// compiler.CompileSource is the only place that recovers it.
package parser

import (
	"github.com/dr8co/kplc/code"
	"github.com/dr8co/kplc/codegen"
	"github.com/dr8co/kplc/diag"
	"github.com/dr8co/kplc/lexer"
	"github.com/dr8co/kplc/symtab"
	"github.com/dr8co/kplc/token"
)

// Parser holds the one-token lookahead buffer and the state threaded
// through every production: the symbol table being built and the code
// generator appending to the output buffer.
type Parser struct {
	lex *lexer.Lexer
	cur token.Token

	st  *symtab.SymbolTable
	gen *codegen.Generator
}

// Parse runs a whole compilation unit through the grammar starting at
// Program, returning the populated symbol table and the emitted code
// buffer. lex must already be primed to scan from the start of the
// source; Parse pulls every token it needs from it.
func Parse(lex *lexer.Lexer) (*symtab.SymbolTable, *code.Buffer) {
	p := &Parser{lex: lex, st: symtab.New(), gen: codegen.New()}
	p.next()
	p.parseProgram()
	p.eat(token.EOF)
	return p.st, p.gen.Buf
}

// next pulls the next token into the lookahead buffer. The lexer already
// retries past any invalid symbol it has reported, so every token that
// reaches the parser is well-formed or EOF.
func (p *Parser) next() {
	p.cur = p.lex.Next()
}

// eat consumes the current token if it matches kind, reporting a fatal
// missing-token diagnostic otherwise.
func (p *Parser) eat(kind token.Kind) token.Token {
	if p.cur.Kind != kind {
		diag.Fatal(diag.ErrMissingToken, p.cur.Pos, "expected %s, got %s", kind, p.cur.Kind)
	}
	tok := p.cur
	p.next()
	return tok
}

// Program = "PROGRAM" ident ";" Block "."
func (p *Parser) parseProgram() {
	p.eat(token.PROGRAM)
	nameTok := p.eat(token.IDENT)
	p.eat(token.SEMI)

	scope := symtab.NewScope(nil)
	prog := &symtab.ProgramEntity{NameField: nameTok.Literal, Scope: scope}
	scope.Owner = prog

	p.st.Declare(prog)
	p.st.Program = prog
	p.st.Enter(scope)

	prog.CodeAddress = int(p.gen.CurrentAddress())
	p.parseBlock(scope, func(pos token.Position) { p.gen.Halt(pos) })

	p.st.Exit()
	p.eat(token.PERIOD)
}

// Block = J_placeholder ConstDecls TypeDecls VarDecls SubDecls
//
//	patch(J, here) INT(scope.frameSize)
//	"BEGIN" Statements "END"
//
// end is called with the END token's position once the statement
// sequence has been parsed, to emit the body's closing instruction: HL
// for the program, EF for a function, EP for a procedure.
func (p *Parser) parseBlock(scope *symtab.Scope, end func(token.Position)) {
	jump := p.gen.Jump(p.cur.Pos)

	p.parseConstDecls()
	p.parseTypeDecls()
	p.parseVarDecls()
	p.parseSubDecls(scope)

	p.gen.UpdateJump(jump, p.gen.CurrentAddress())
	p.gen.ReserveFrame(scope.FrameSize, p.cur.Pos)

	p.eat(token.BEGIN)
	p.parseStatements()
	endTok := p.eat(token.END)

	end(endTok.Pos)
}
