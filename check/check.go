// Package check implements KPL's semantic checker: a family of
// kind-restricted name resolvers and type predicates, each reporting a
// distinct diagnostic kind through diag.Fatal on failure.
//
// Every function here either returns a usable value or does not return
// at all — it panics through diag.Fatal, which compiler.CompileSource recovers
// at the top of the call stack. Callers in the parser can therefore treat
// these as total functions and never have to thread an error return
// through fifty call sites.
package check

import (
	"github.com/dr8co/kplc/diag"
	"github.com/dr8co/kplc/symtab"
	"github.com/dr8co/kplc/token"
	"github.com/dr8co/kplc/types"
)

// FreshIdent fails if name is already bound in scope's own entity list.
// Shadowing an outer declaration is legal, so only the current scope is
// consulted.
func FreshIdent(scope *symtab.Scope, name string, pos token.Position) {
	if _, ok := scope.Find(name); ok {
		diag.Fatal(diag.ErrDuplicateIdent, pos, "%s is already declared in this scope", name)
	}
}

// DeclaredIdent resolves name to any entity, failing if it is undeclared.
func DeclaredIdent(st *symtab.SymbolTable, name string, pos token.Position) symtab.Entity {
	e, ok := st.Lookup(name)
	if !ok {
		diag.Fatal(diag.ErrUndeclaredIdent, pos, "%s is not declared", name)
	}
	return e
}

// DeclaredConstant resolves name to a *symtab.ConstantEntity.
func DeclaredConstant(st *symtab.SymbolTable, name string, pos token.Position) *symtab.ConstantEntity {
	e := DeclaredIdent(st, name, pos)
	c, ok := e.(*symtab.ConstantEntity)
	if !ok {
		diag.Fatal(diag.ErrInvalidIdentUsage, pos, "%s is not a constant", name)
	}
	return c
}

// DeclaredType resolves name to a *symtab.TypeAliasEntity.
func DeclaredType(st *symtab.SymbolTable, name string, pos token.Position) *symtab.TypeAliasEntity {
	e := DeclaredIdent(st, name, pos)
	ta, ok := e.(*symtab.TypeAliasEntity)
	if !ok {
		diag.Fatal(diag.ErrInvalidIdentUsage, pos, "%s is not a type", name)
	}
	return ta
}

// DeclaredVariable resolves name to a *symtab.VariableEntity.
func DeclaredVariable(st *symtab.SymbolTable, name string, pos token.Position) *symtab.VariableEntity {
	e := DeclaredIdent(st, name, pos)
	v, ok := e.(*symtab.VariableEntity)
	if !ok {
		diag.Fatal(diag.ErrInvalidIdentUsage, pos, "%s is not a variable", name)
	}
	return v
}

// DeclaredFunction resolves name to a *symtab.FunctionEntity.
func DeclaredFunction(st *symtab.SymbolTable, name string, pos token.Position) *symtab.FunctionEntity {
	e := DeclaredIdent(st, name, pos)
	f, ok := e.(*symtab.FunctionEntity)
	if !ok {
		diag.Fatal(diag.ErrInvalidIdentUsage, pos, "%s is not a function", name)
	}
	return f
}

// DeclaredProcedure resolves name to a *symtab.ProcedureEntity.
func DeclaredProcedure(st *symtab.SymbolTable, name string, pos token.Position) *symtab.ProcedureEntity {
	e := DeclaredIdent(st, name, pos)
	p, ok := e.(*symtab.ProcedureEntity)
	if !ok {
		diag.Fatal(diag.ErrInvalidIdentUsage, pos, "%s is not a procedure", name)
	}
	return p
}

// DeclaredLValueIdent resolves name to an entity usable as an L-value: a
// variable or parameter are always admissible; a function name is
// admissible only from inside that function's own body, which is tested
// by walking outward from the current scope and succeeding iff the
// function's own scope is reached before running off the top. This is
// how KPL expresses "assign to the return value."
func DeclaredLValueIdent(st *symtab.SymbolTable, name string, pos token.Position) symtab.Entity {
	e := DeclaredIdent(st, name, pos)
	switch ent := e.(type) {
	case *symtab.VariableEntity, *symtab.ParameterEntity:
		return ent
	case *symtab.FunctionEntity:
		for s := st.Current; s != nil; s = s.Outer {
			if s == ent.Scope {
				return ent
			}
		}
		diag.Fatal(diag.ErrInvalidLValue, pos, "%s can only be assigned to from within its own body", name)
	}
	diag.Fatal(diag.ErrInvalidLValue, pos, "%s is not an l-value", name)
	return nil
}

// IntType fails unless t is INTEGER.
func IntType(t *types.Type, pos token.Position) {
	if t.Kind != types.Int {
		diag.Fatal(diag.ErrTypeMismatch, pos, "expected INTEGER, got %s", t)
	}
}

// CharType fails unless t is CHAR.
func CharType(t *types.Type, pos token.Position) {
	if t.Kind != types.Char {
		diag.Fatal(diag.ErrTypeMismatch, pos, "expected CHAR, got %s", t)
	}
}

// BasicType fails unless t is INTEGER or CHAR.
func BasicType(t *types.Type, pos token.Position) {
	if !t.IsBasic() {
		diag.Fatal(diag.ErrInvalidType, pos, "expected a basic type, got %s", t)
	}
}

// ArrayType fails unless t is an ARRAY type.
func ArrayType(t *types.Type, pos token.Position) {
	if t.Kind != types.Array {
		diag.Fatal(diag.ErrInvalidType, pos, "expected an array type, got %s", t)
	}
}

// TypeEquality fails unless a and b are structurally equal.
func TypeEquality(a, b *types.Type, pos token.Position) {
	if !types.Equal(a, b) {
		diag.Fatal(diag.ErrTypeMismatch, pos, "type mismatch: %s vs %s", a, b)
	}
}
