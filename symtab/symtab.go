// Package symtab implements the KPL symbol table: declared entities
// (constants, types, variables, parameters, functions, procedures, the
// program itself), the scopes that own them, and name resolution across
// the scope chain.
//
// Scopes form a tree, not a stack: the current-scope register moves
// between them as the parser enters and leaves blocks, but a scope
// object persists (owned by the entity that created it) once parsing
// has moved past it, so the code generator can still walk its Outer
// chain to compute nesting levels for non-local access.
package symtab

import "github.com/dr8co/kplc/types"

// Predefined procedure and function names, recognized by pointer
// identity rather than by name once resolved — see Builtin* below.
const (
	nameReadI   = "READI"
	nameReadC   = "READC"
	nameWriteI  = "WRITEI"
	nameWriteC  = "WRITEC"
	nameWriteLn = "WRITELN"
)

// SymbolTable is the root of the whole declared-name universe for one
// compilation: the program entity, the current-scope register used
// while parsing, and the global list holding the predefined procedures
// and functions.
type SymbolTable struct {
	// Program is set once the PROGRAM declaration is parsed.
	Program *ProgramEntity

	// Current is the innermost scope presently being parsed, or nil
	// before the program's own scope has been entered.
	Current *Scope

	// Globals holds entities with no enclosing scope: the predefined
	// I/O procedures and functions.
	Globals []Entity

	// Builtin* hold the predefined entities created by New, identified
	// by pointer so dispatch in the code generator never compares names.
	BuiltinReadI   *FunctionEntity
	BuiltinReadC   *FunctionEntity
	BuiltinWriteI  *ProcedureEntity
	BuiltinWriteC  *ProcedureEntity
	BuiltinWriteLn *ProcedureEntity
}

// New creates a symbol table with the predefined I/O entities already
// bootstrapped into Globals.
func New() *SymbolTable {
	st := &SymbolTable{}
	st.initBuiltins()
	return st
}

func (st *SymbolTable) initBuiltins() {
	st.BuiltinReadI = &FunctionEntity{NameField: nameReadI, ReturnType: types.NewInt()}
	st.BuiltinReadC = &FunctionEntity{NameField: nameReadC, ReturnType: types.NewChar()}
	st.BuiltinWriteI = &ProcedureEntity{
		NameField: nameWriteI,
		Params:    []*ParameterEntity{{NameField: "I", Type: types.NewInt()}},
	}
	st.BuiltinWriteC = &ProcedureEntity{
		NameField: nameWriteC,
		Params:    []*ParameterEntity{{NameField: "CH", Type: types.NewChar()}},
	}
	st.BuiltinWriteLn = &ProcedureEntity{NameField: nameWriteLn}

	st.Globals = []Entity{
		st.BuiltinReadI, st.BuiltinReadC,
		st.BuiltinWriteI, st.BuiltinWriteC, st.BuiltinWriteLn,
	}
}

// Declare records e as declared. If no scope is current, e is appended
// directly to Globals (this is only expected for the program entity
// itself, which is declared before its own scope is entered). Otherwise,
// kind-specific bookkeeping runs before e is appended to the current
// scope's entity list:
//
//   - Variable: Scope and Offset are filled in, and the current scope's
//     FrameSize advances by the variable's size.
//   - Parameter: Scope and Offset are filled in, the current scope's
//     FrameSize advances by one word, and e is additionally appended to
//     the owning function/procedure's Params list (found via Owner).
//   - Function/Procedure: its own scope's Outer is set to the current
//     scope, recording where it was declared; its own scope does not
//     become current here (that happens later, when its body is parsed).
//   - Constant/TypeAlias: no offset bookkeeping.
func (st *SymbolTable) Declare(e Entity) {
	if st.Current == nil {
		st.Globals = append(st.Globals, e)
		return
	}

	switch ent := e.(type) {
	case *VariableEntity:
		ent.Scope = st.Current
		ent.Offset = st.Current.FrameSize
		st.Current.FrameSize += types.SizeOf(ent.Type)
	case *ParameterEntity:
		ent.Scope = st.Current
		ent.Offset = st.Current.FrameSize
		st.Current.FrameSize++
		switch owner := st.Current.Owner.(type) {
		case *FunctionEntity:
			owner.Params = append(owner.Params, ent)
		case *ProcedureEntity:
			owner.Params = append(owner.Params, ent)
		}
	case *FunctionEntity:
		ent.Scope.Outer = st.Current
	case *ProcedureEntity:
		ent.Scope.Outer = st.Current
	}

	st.Current.Entities = append(st.Current.Entities, e)
}

// Enter makes scope the current scope. The caller is responsible for
// having linked scope.Outer appropriately beforehand (Declare does this
// for Function/Procedure scopes; the program's own scope has a nil
// Outer since it is the outermost).
func (st *SymbolTable) Enter(scope *Scope) {
	st.Current = scope
}

// Exit moves the current-scope register back to the current scope's
// Outer. The scope object itself is not discarded: it remains reachable
// from its Owner entity for later nesting-level computation.
func (st *SymbolTable) Exit() {
	if st.Current != nil {
		st.Current = st.Current.Outer
	}
}

// Lookup resolves name by walking outward from the current scope,
// searching each scope's own entity list, then falling back to Globals
// if no scope resolves it.
func (st *SymbolTable) Lookup(name string) (Entity, bool) {
	for s := st.Current; s != nil; s = s.Outer {
		if e, ok := s.Find(name); ok {
			return e, true
		}
	}
	for _, e := range st.Globals {
		if e.Name() == name {
			return e, true
		}
	}
	return nil, false
}
