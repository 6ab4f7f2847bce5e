// Package codegen implements KPL's code generator: thin helpers over a
// code.Buffer that compute nesting level from the symbol table's scope
// chain and emit the load/store/jump/call primitives the parser's
// grammar productions need, plus the backpatch helpers forward jumps
// depend on.
//
// Every exported function here either appends to the buffer and returns
// normally, or calls diag.Fatal on a buffer overflow — the one resource
// error this package can raise on its own; everything else (wrong kind,
// wrong type, undeclared name) is caught upstream by check before
// codegen is ever invoked. Internal inconsistencies that a well-formed
// parse never produces (a non-ancestor scope, a non-builtin passed to a
// predefined-call helper) cause a plain panic rather than a diagnostic.
package codegen

import (
	"github.com/dr8co/kplc/code"
	"github.com/dr8co/kplc/diag"
	"github.com/dr8co/kplc/symtab"
	"github.com/dr8co/kplc/token"
)

// Generator wraps a code.Buffer with the symbol-table-aware emission
// helpers the parser calls while walking the grammar.
type Generator struct {
	Buf *code.Buffer
}

// New returns a Generator over a fresh, empty buffer.
func New() *Generator {
	return &Generator{Buf: code.NewBuffer()}
}

func (g *Generator) emit(pos token.Position, op code.Opcode, op1, op2 int32) code.Addr {
	addr, ok := g.Buf.Append(op, op1, op2)
	if !ok {
		diag.Fatal(diag.ErrCodeOverflow, pos, "code buffer overflow")
	}
	return addr
}

// level computes the nesting distance from current to target, panicking
// with a plain (non-diag) internal error if target is not actually an
// ancestor of current — which should never happen for a
// well-formed program, since every entity's declaring scope is always
// an ancestor of any scope where it can be resolved at all.
func level(current, target *symtab.Scope) int {
	lvl, ok := current.LevelTo(target)
	if !ok {
		panic("codegen: target scope is not an ancestor of the current scope")
	}
	return lvl
}

// VariableAddress emits LA level,offset for v, addressed from current.
func (g *Generator) VariableAddress(current *symtab.Scope, v *symtab.VariableEntity, pos token.Position) {
	g.emit(pos, code.LA, int32(level(current, v.Scope)), int32(v.Offset))
}

// VariableValue emits LV level,offset for v, addressed from current.
func (g *Generator) VariableValue(current *symtab.Scope, v *symtab.VariableEntity, pos token.Position) {
	g.emit(pos, code.LV, int32(level(current, v.Scope)), int32(v.Offset))
}

// ParameterAddress emits LA level,offset for p, addressed from current.
// For a by-reference parameter this is the address of the slot holding
// the caller's address, not the callee-side variable's address; callers
// that need the latter additionally emit LI.
func (g *Generator) ParameterAddress(current *symtab.Scope, p *symtab.ParameterEntity, pos token.Position) {
	g.emit(pos, code.LA, int32(level(current, p.Scope)), int32(p.Offset))
}

// ParameterValue emits LV level,offset for p, addressed from current.
func (g *Generator) ParameterValue(current *symtab.Scope, p *symtab.ParameterEntity, pos token.Position) {
	g.emit(pos, code.LV, int32(level(current, p.Scope)), int32(p.Offset))
}

// ReturnValueAddress emits LA 0,0 — the address of fn's own return slot,
// used only from inside fn's own body.
func (g *Generator) ReturnValueAddress(pos token.Position) {
	g.emit(pos, code.LA, 0, 0)
}

// ReturnValueValue emits LV 0,0.
func (g *Generator) ReturnValueValue(pos token.Position) {
	g.emit(pos, code.LV, 0, 0)
}

// Constant emits LC c.
func (g *Generator) Constant(c int32, pos token.Position) {
	g.emit(pos, code.LC, code.NoOperand, c)
}

// Load emits LI.
func (g *Generator) Load(pos token.Position) {
	g.emit(pos, code.LI, code.NoOperand, code.NoOperand)
}

// Store emits ST.
func (g *Generator) Store(pos token.Position) {
	g.emit(pos, code.ST, code.NoOperand, code.NoOperand)
}

// ReserveFrame emits INT n.
func (g *Generator) ReserveFrame(n int, pos token.Position) {
	g.emit(pos, code.INT, code.NoOperand, int32(n))
}

// ReleaseFrame emits DCT n.
func (g *Generator) ReleaseFrame(n int, pos token.Position) {
	g.emit(pos, code.DCT, code.NoOperand, int32(n))
}

// Halt emits HL.
func (g *Generator) Halt(pos token.Position) {
	g.emit(pos, code.HL, code.NoOperand, code.NoOperand)
}

// ReturnProcedure emits EP.
func (g *Generator) ReturnProcedure(pos token.Position) {
	g.emit(pos, code.EP, code.NoOperand, code.NoOperand)
}

// ReturnFunction emits EF.
func (g *Generator) ReturnFunction(pos token.Position) {
	g.emit(pos, code.EF, code.NoOperand, code.NoOperand)
}

// ProcedureCall emits CALL level,target where level is computed from the
// outer of the callee's own scope — the scope in which the callee was
// declared — not the callee's own scope, plus one: the VM's CALL needs the
// number of static links to climb from the frame it is about to push, which
// is one more than the number of hops from the caller to the declaring
// scope (a call to a procedure declared in the caller's own scope is
// level 1, not level 0).
func (g *Generator) ProcedureCall(current *symtab.Scope, proc *symtab.ProcedureEntity, pos token.Position) {
	g.emit(pos, code.CALL, int32(level(current, proc.Scope.Outer)+1), int32(proc.CodeAddress))
}

// FunctionCall emits CALL level,target for a user function.
func (g *Generator) FunctionCall(current *symtab.Scope, fn *symtab.FunctionEntity, pos token.Position) {
	g.emit(pos, code.CALL, int32(level(current, fn.Scope.Outer)+1), int32(fn.CodeAddress))
}

// PredefinedProcedureCall emits the opcode for a built-in procedure,
// dispatched by pointer identity against st's bootstrapped builtins.
func (g *Generator) PredefinedProcedureCall(st *symtab.SymbolTable, proc *symtab.ProcedureEntity, pos token.Position) {
	switch proc {
	case st.BuiltinWriteI:
		g.emit(pos, code.WRI, code.NoOperand, code.NoOperand)
	case st.BuiltinWriteC:
		g.emit(pos, code.WRC, code.NoOperand, code.NoOperand)
	case st.BuiltinWriteLn:
		g.emit(pos, code.WLN, code.NoOperand, code.NoOperand)
	default:
		panic("codegen: not a predefined procedure")
	}
}

// PredefinedFunctionCall emits the opcode for a built-in function.
func (g *Generator) PredefinedFunctionCall(st *symtab.SymbolTable, fn *symtab.FunctionEntity, pos token.Position) {
	switch fn {
	case st.BuiltinReadI:
		g.emit(pos, code.RI, code.NoOperand, code.NoOperand)
	case st.BuiltinReadC:
		g.emit(pos, code.RC, code.NoOperand, code.NoOperand)
	default:
		panic("codegen: not a predefined function")
	}
}

// Jump emits J with a placeholder target and returns its handle for
// UpdateJump to patch once the target is known.
func (g *Generator) Jump(pos token.Position) code.Addr {
	return g.emit(pos, code.J, code.NoOperand, -1)
}

// FalseJump emits FJ with a placeholder target.
func (g *Generator) FalseJump(pos token.Position) code.Addr {
	return g.emit(pos, code.FJ, code.NoOperand, -1)
}

// UpdateJump backpatches a J emitted by Jump to target addr.
func (g *Generator) UpdateJump(handle code.Addr, addr code.Addr) {
	g.Buf.Patch(handle, int32(addr))
}

// UpdateFalseJump backpatches an FJ emitted by FalseJump to target addr.
func (g *Generator) UpdateFalseJump(handle code.Addr, addr code.Addr) {
	g.Buf.Patch(handle, int32(addr))
}

// CurrentAddress returns the buffer's next-write address.
func (g *Generator) CurrentAddress() code.Addr {
	return g.Buf.CurrentAddress()
}

// Arithmetic and comparison opcodes, each a direct zero-operand emit.

func (g *Generator) Add(pos token.Position) { g.emit(pos, code.AD, code.NoOperand, code.NoOperand) }

func (g *Generator) Sub(pos token.Position) { g.emit(pos, code.SB, code.NoOperand, code.NoOperand) }

func (g *Generator) Mul(pos token.Position) { g.emit(pos, code.ML, code.NoOperand, code.NoOperand) }

func (g *Generator) Div(pos token.Position) { g.emit(pos, code.DV, code.NoOperand, code.NoOperand) }

func (g *Generator) Negate(pos token.Position) {
	g.emit(pos, code.NEG, code.NoOperand, code.NoOperand)
}

func (g *Generator) Duplicate(pos token.Position) {
	g.emit(pos, code.CV, code.NoOperand, code.NoOperand)
}

func (g *Generator) Equal(pos token.Position) { g.emit(pos, code.EQ, code.NoOperand, code.NoOperand) }

func (g *Generator) NotEqual(pos token.Position) {
	g.emit(pos, code.NE, code.NoOperand, code.NoOperand)
}

func (g *Generator) Greater(pos token.Position) {
	g.emit(pos, code.GT, code.NoOperand, code.NoOperand)
}

func (g *Generator) Less(pos token.Position) { g.emit(pos, code.LT, code.NoOperand, code.NoOperand) }

func (g *Generator) GreaterOrEqual(pos token.Position) {
	g.emit(pos, code.GE, code.NoOperand, code.NoOperand)
}

func (g *Generator) LessOrEqual(pos token.Position) {
	g.emit(pos, code.LE, code.NoOperand, code.NoOperand)
}
