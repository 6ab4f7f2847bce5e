package symtab

import "github.com/dr8co/kplc/types"

// Kind tags the variant an Entity holds.
type Kind int

const (
	// KindProgram is the single top-level program entity.
	KindProgram Kind = iota
	// KindConstant is a named constant value.
	KindConstant
	// KindTypeAlias is a named type.
	KindTypeAlias
	// KindVariable is a declared variable.
	KindVariable
	// KindParameter is a function/procedure formal parameter.
	KindParameter
	// KindFunction is a declared function.
	KindFunction
	// KindProcedure is a declared procedure.
	KindProcedure
)

// String names a kind for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindProgram:
		return "program"
	case KindConstant:
		return "constant"
	case KindTypeAlias:
		return "type"
	case KindVariable:
		return "variable"
	case KindParameter:
		return "parameter"
	case KindFunction:
		return "function"
	case KindProcedure:
		return "procedure"
	default:
		return "entity"
	}
}

// Entity is a declared name in the symbol table. It is a sealed
// interface: every concrete implementation lives in this file, and
// callers that need one kind's attributes type-assert to the concrete
// struct rather than growing a God-struct with fields that only make
// sense for some kinds. The unexported marker method seals the set.
type Entity interface {
	// Name returns the entity's upper-cased, already-normalized name.
	Name() string
	// Kind returns the entity's kind tag.
	Kind() Kind

	sealed()
}

// ProgramEntity is the single compilation unit's program entity.
type ProgramEntity struct {
	NameField string
	// Scope is the program's own top-level block scope.
	Scope *Scope
	// CodeAddress is the address of the program block's first
	// instruction (its initial jump), recorded just before that jump is
	// emitted.
	CodeAddress int
}

func (e *ProgramEntity) Name() string { return e.NameField }
func (e *ProgramEntity) Kind() Kind   { return KindProgram }
func (e *ProgramEntity) sealed()      {}

// ConstantEntity is a named constant value.
type ConstantEntity struct {
	NameField string
	Value     types.Value
}

func (e *ConstantEntity) Name() string { return e.NameField }
func (e *ConstantEntity) Kind() Kind   { return KindConstant }
func (e *ConstantEntity) sealed()      {}

// TypeAliasEntity is a named type, introduced by a TYPE declaration.
type TypeAliasEntity struct {
	NameField string
	Type      *types.Type
}

func (e *TypeAliasEntity) Name() string { return e.NameField }
func (e *TypeAliasEntity) Kind() Kind   { return KindTypeAlias }
func (e *TypeAliasEntity) sealed()      {}

// VariableEntity is a declared variable.
type VariableEntity struct {
	NameField string
	Type      *types.Type
	// Scope is the scope that owns this variable.
	Scope *Scope
	// Offset is the word offset within Scope's frame.
	Offset int
}

func (e *VariableEntity) Name() string { return e.NameField }
func (e *VariableEntity) Kind() Kind   { return KindVariable }
func (e *VariableEntity) sealed()      {}

// ParameterEntity is a formal parameter of a function or procedure.
// Arrays cannot be parameters, so Type is always basic (Int or Char);
// ByRef selects VAR-parameter (by-reference) passing.
type ParameterEntity struct {
	NameField string
	ByRef     bool
	Type      *types.Type
	// Scope is the owning function/procedure's own scope.
	Scope *Scope
	// Offset is the word offset within Scope's frame.
	Offset int
}

func (e *ParameterEntity) Name() string { return e.NameField }
func (e *ParameterEntity) Kind() Kind   { return KindParameter }
func (e *ParameterEntity) sealed()      {}

// FunctionEntity is a declared function.
type FunctionEntity struct {
	NameField string
	// Params is an ordered, reference-only view into Scope's entity list;
	// it does not own the parameters it points at.
	Params     []*ParameterEntity
	ReturnType *types.Type
	// Scope is the function's own scope; its Outer is the scope in which
	// the function was declared.
	Scope *Scope
	// CodeAddress is the address of the function body's first instruction.
	CodeAddress int
}

func (e *FunctionEntity) Name() string { return e.NameField }
func (e *FunctionEntity) Kind() Kind   { return KindFunction }
func (e *FunctionEntity) sealed()      {}

// ProcedureEntity is a declared procedure.
type ProcedureEntity struct {
	NameField   string
	Params      []*ParameterEntity
	Scope       *Scope
	CodeAddress int
}

func (e *ProcedureEntity) Name() string { return e.NameField }
func (e *ProcedureEntity) Kind() Kind   { return KindProcedure }
func (e *ProcedureEntity) sealed()      {}
