package check

import (
	"testing"

	"github.com/dr8co/kplc/diag"
	"github.com/dr8co/kplc/symtab"
	"github.com/dr8co/kplc/token"
	"github.com/dr8co/kplc/types"
)

func fatalKind(t *testing.T, f func()) diag.Kind {
	t.Helper()
	var kind diag.Kind
	var panicked bool

	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			panicked = true
			e, ok := r.(*diag.Error)
			if !ok {
				panic(r)
			}
			kind = e.Kind
		}()
		f()
	}()

	if !panicked {
		t.Fatalf("expected a diag.Fatal panic, got none")
	}
	return kind
}

var zeroPos = token.Position{Line: 1, Col: 1}

func TestFreshIdentOK(t *testing.T) {
	scope := symtab.NewScope(nil)
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()
	FreshIdent(scope, "X", zeroPos)
}

func TestFreshIdentDuplicate(t *testing.T) {
	scope := symtab.NewScope(nil)
	scope.Entities = append(scope.Entities, &symtab.VariableEntity{NameField: "X", Type: types.NewInt()})

	kind := fatalKind(t, func() { FreshIdent(scope, "X", zeroPos) })
	if kind != diag.ErrDuplicateIdent {
		t.Errorf("got %v, want ErrDuplicateIdent", kind)
	}
}

func TestDeclaredIdentUndeclared(t *testing.T) {
	st := symtab.New()
	kind := fatalKind(t, func() { DeclaredIdent(st, "NOPE", zeroPos) })
	if kind != diag.ErrUndeclaredIdent {
		t.Errorf("got %v, want ErrUndeclaredIdent", kind)
	}
}

func TestDeclaredVariableWrongKind(t *testing.T) {
	st := symtab.New()
	kind := fatalKind(t, func() { DeclaredVariable(st, "WRITELN", zeroPos) })
	if kind != diag.ErrInvalidIdentUsage {
		t.Errorf("got %v, want ErrInvalidIdentUsage", kind)
	}
}

func TestDeclaredFunctionOK(t *testing.T) {
	st := symtab.New()
	f := DeclaredFunction(st, "READI", zeroPos)
	if f != st.BuiltinReadI {
		t.Fatalf("got %v, want the READI builtin", f)
	}
}

func TestLValueVariableAndParameterAlwaysOK(t *testing.T) {
	st := symtab.New()
	outer := symtab.NewScope(nil)
	st.Enter(outer)
	v := &symtab.VariableEntity{NameField: "X", Type: types.NewInt()}
	st.Declare(v)

	got := DeclaredLValueIdent(st, "X", zeroPos)
	if got != symtab.Entity(v) {
		t.Fatalf("got %v, want the variable entity", got)
	}
}

func TestLValueFunctionInsideOwnBody(t *testing.T) {
	st := symtab.New()
	outer := symtab.NewScope(nil)
	st.Enter(outer)

	fn := &symtab.FunctionEntity{NameField: "F", ReturnType: types.NewInt(), Scope: symtab.NewScope(nil)}
	fn.Scope.Owner = fn
	st.Declare(fn)

	st.Enter(fn.Scope)
	got := DeclaredLValueIdent(st, "F", zeroPos)
	if got != symtab.Entity(fn) {
		t.Fatalf("got %v, want the function entity (inside its own body)", got)
	}
}

func TestLValueFunctionOutsideOwnBodyFails(t *testing.T) {
	st := symtab.New()
	outer := symtab.NewScope(nil)
	st.Enter(outer)

	fn := &symtab.FunctionEntity{NameField: "F", ReturnType: types.NewInt(), Scope: symtab.NewScope(nil)}
	fn.Scope.Owner = fn
	st.Declare(fn)

	// Still in outer, not inside fn's own body.
	kind := fatalKind(t, func() { DeclaredLValueIdent(st, "F", zeroPos) })
	if kind != diag.ErrInvalidLValue {
		t.Errorf("got %v, want ErrInvalidLValue", kind)
	}
}

func TestTypePredicates(t *testing.T) {
	kind := fatalKind(t, func() { IntType(types.NewChar(), zeroPos) })
	if kind != diag.ErrTypeMismatch {
		t.Errorf("IntType(CHAR) kind = %v, want ErrTypeMismatch", kind)
	}

	kind = fatalKind(t, func() { CharType(types.NewInt(), zeroPos) })
	if kind != diag.ErrTypeMismatch {
		t.Errorf("CharType(INTEGER) kind = %v, want ErrTypeMismatch", kind)
	}

	kind = fatalKind(t, func() { ArrayType(types.NewInt(), zeroPos) })
	if kind != diag.ErrInvalidType {
		t.Errorf("ArrayType(INTEGER) kind = %v, want ErrInvalidType", kind)
	}

	kind = fatalKind(t, func() { BasicType(types.NewArray(2, types.NewInt()), zeroPos) })
	if kind != diag.ErrInvalidType {
		t.Errorf("BasicType(ARRAY) kind = %v, want ErrInvalidType", kind)
	}
}

func TestTypeEquality(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("unexpected panic on equal types: %v", r)
		}
	}()
	TypeEquality(types.NewInt(), types.NewInt(), zeroPos)

	kind := fatalKind(t, func() { TypeEquality(types.NewInt(), types.NewChar(), zeroPos) })
	if kind != diag.ErrTypeMismatch {
		t.Errorf("got %v, want ErrTypeMismatch", kind)
	}
}
