package parser

import (
	"bytes"
	"testing"

	"github.com/dr8co/kplc/code"
	"github.com/dr8co/kplc/diag"
	"github.com/dr8co/kplc/lexer"
	"github.com/dr8co/kplc/reader"
	"github.com/dr8co/kplc/symtab"
)

func compile(t *testing.T, src string) (*symtab.SymbolTable, *code.Buffer) {
	t.Helper()
	rep := diag.NewReporter()
	lex := lexer.New(reader.NewFromString(src), rep)
	st, buf := Parse(lex)
	if rep.HasErrors() {
		t.Fatalf("unexpected lexical errors: %v", rep.Errors())
	}
	return st, buf
}

func assertInstructions(t *testing.T, buf *code.Buffer, want []code.Instruction) {
	t.Helper()
	if buf.Len() != len(want) {
		t.Fatalf("got %d instructions, want %d:\n%s", buf.Len(), len(want), buf.String())
	}
	for i, w := range want {
		if got := buf.At(code.Addr(i + 1)); got != w {
			t.Errorf("instruction %d: got %+v, want %+v\nfull disassembly:\n%s", i+1, got, w, buf.String())
		}
	}
}

// fatalKind runs fn and reports the diag.Kind of the *diag.Error it
// panicked with, or fails the test if it did not panic with one.
func fatalKind(t *testing.T, fn func()) diag.Kind {
	t.Helper()
	var kind diag.Kind
	panicked := false
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			e, ok := r.(*diag.Error)
			if !ok {
				panic(r)
			}
			panicked = true
			kind = e.Kind
		}()
		fn()
	}()
	if !panicked {
		t.Fatalf("expected a fatal diagnostic, got none")
	}
	return kind
}

func TestS1MinimumProgram(t *testing.T) {
	_, buf := compile(t, "PROGRAM p; BEGIN END.")
	assertInstructions(t, buf, []code.Instruction{
		{Op: code.J, Op1: code.NoOperand, Op2: 2},
		{Op: code.INT, Op1: code.NoOperand, Op2: 4},
		{Op: code.HL, Op1: code.NoOperand, Op2: code.NoOperand},
	})
}

func TestS2VariableAssignment(t *testing.T) {
	_, buf := compile(t, "PROGRAM p; VAR x: INTEGER; BEGIN x := 3 END.")
	assertInstructions(t, buf, []code.Instruction{
		{Op: code.J, Op1: code.NoOperand, Op2: 2},
		{Op: code.INT, Op1: code.NoOperand, Op2: 5},
		{Op: code.LA, Op1: 0, Op2: 4},
		{Op: code.LC, Op1: code.NoOperand, Op2: 3},
		{Op: code.ST, Op1: code.NoOperand, Op2: code.NoOperand},
		{Op: code.HL, Op1: code.NoOperand, Op2: code.NoOperand},
	})
}

func TestS3SwapViaMultiAssignment(t *testing.T) {
	_, buf := compile(t, "PROGRAM p; VAR x,y: INTEGER; BEGIN x := 1; y := 2; x, y := y, x END.")
	assertInstructions(t, buf, []code.Instruction{
		{Op: code.J, Op1: code.NoOperand, Op2: 2},
		{Op: code.INT, Op1: code.NoOperand, Op2: 6},
		{Op: code.LA, Op1: 0, Op2: 4},
		{Op: code.LC, Op1: code.NoOperand, Op2: 1},
		{Op: code.ST, Op1: code.NoOperand, Op2: code.NoOperand},
		{Op: code.LA, Op1: 0, Op2: 5},
		{Op: code.LC, Op1: code.NoOperand, Op2: 2},
		{Op: code.ST, Op1: code.NoOperand, Op2: code.NoOperand},
		{Op: code.LA, Op1: 0, Op2: 4},
		{Op: code.LV, Op1: 0, Op2: 5},
		{Op: code.LA, Op1: 0, Op2: 5},
		{Op: code.LV, Op1: 0, Op2: 4},
		{Op: code.ST, Op1: code.NoOperand, Op2: code.NoOperand},
		{Op: code.ST, Op1: code.NoOperand, Op2: code.NoOperand},
		{Op: code.HL, Op1: code.NoOperand, Op2: code.NoOperand},
	})
}

func TestS4IfElse(t *testing.T) {
	_, buf := compile(t, "PROGRAM p; VAR x: INTEGER; BEGIN IF x = 0 THEN x := 1 ELSE x := 2 END.")
	assertInstructions(t, buf, []code.Instruction{
		{Op: code.J, Op1: code.NoOperand, Op2: 2},      // 1
		{Op: code.INT, Op1: code.NoOperand, Op2: 5},     // 2
		{Op: code.LV, Op1: 0, Op2: 4},                   // 3  x
		{Op: code.LC, Op1: code.NoOperand, Op2: 0},       // 4  0
		{Op: code.EQ, Op1: code.NoOperand, Op2: code.NoOperand}, // 5
		{Op: code.FJ, Op1: code.NoOperand, Op2: 11},      // 6  -> else branch
		{Op: code.LA, Op1: 0, Op2: 4},                   // 7  THEN: x :=
		{Op: code.LC, Op1: code.NoOperand, Op2: 1},       // 8
		{Op: code.ST, Op1: code.NoOperand, Op2: code.NoOperand}, // 9
		{Op: code.J, Op1: code.NoOperand, Op2: 14},       // 10 -> end
		{Op: code.LA, Op1: 0, Op2: 4},                   // 11 ELSE: x :=
		{Op: code.LC, Op1: code.NoOperand, Op2: 2},       // 12
		{Op: code.ST, Op1: code.NoOperand, Op2: code.NoOperand}, // 13
		{Op: code.HL, Op1: code.NoOperand, Op2: code.NoOperand}, // 14
	})

	// Invariant 4: every FJ/forward-J target is >= the jump's own address.
	if fj := buf.At(6); fj.Op2 < 6 {
		t.Fatalf("FJ target %d precedes its own address", fj.Op2)
	}
	if j := buf.At(10); j.Op2 < 10 {
		t.Fatalf("J target %d precedes its own address", j.Op2)
	}
}

func TestS5ForLoop(t *testing.T) {
	_, buf := compile(t, "PROGRAM p; VAR i: INTEGER; BEGIN FOR i := 1 TO 3 DO WRITEI(i) END.")
	assertInstructions(t, buf, []code.Instruction{
		{Op: code.J, Op1: code.NoOperand, Op2: 2},      // 1
		{Op: code.INT, Op1: code.NoOperand, Op2: 5},     // 2
		{Op: code.LA, Op1: 0, Op2: 4},                   // 3  init
		{Op: code.CV, Op1: code.NoOperand, Op2: code.NoOperand}, // 4
		{Op: code.LC, Op1: code.NoOperand, Op2: 1},       // 5
		{Op: code.ST, Op1: code.NoOperand, Op2: code.NoOperand}, // 6
		{Op: code.CV, Op1: code.NoOperand, Op2: code.NoOperand}, // 7  preamble
		{Op: code.LI, Op1: code.NoOperand, Op2: code.NoOperand}, // 8
		{Op: code.LC, Op1: code.NoOperand, Op2: 3},       // 9  test: end-expr
		{Op: code.LE, Op1: code.NoOperand, Op2: code.NoOperand}, // 10
		{Op: code.FJ, Op1: code.NoOperand, Op2: 23},      // 11 -> exit
		{Op: code.LV, Op1: 0, Op2: 4},                   // 12 body: WRITEI(i)
		{Op: code.WRI, Op1: code.NoOperand, Op2: code.NoOperand}, // 13
		{Op: code.CV, Op1: code.NoOperand, Op2: code.NoOperand}, // 14 increment
		{Op: code.CV, Op1: code.NoOperand, Op2: code.NoOperand}, // 15
		{Op: code.LI, Op1: code.NoOperand, Op2: code.NoOperand}, // 16
		{Op: code.LC, Op1: code.NoOperand, Op2: 1},       // 17
		{Op: code.AD, Op1: code.NoOperand, Op2: code.NoOperand}, // 18
		{Op: code.ST, Op1: code.NoOperand, Op2: code.NoOperand}, // 19
		{Op: code.CV, Op1: code.NoOperand, Op2: code.NoOperand}, // 20 refresh
		{Op: code.LI, Op1: code.NoOperand, Op2: code.NoOperand}, // 21
		{Op: code.J, Op1: code.NoOperand, Op2: 9},        // 22 -> test
		{Op: code.DCT, Op1: code.NoOperand, Op2: 1},      // 23 exit
		{Op: code.HL, Op1: code.NoOperand, Op2: code.NoOperand}, // 24
	})
}

func TestS6NestedProceduresNonLocalAccess(t *testing.T) {
	src := `PROGRAM p; VAR x: INTEGER;
PROCEDURE outer;
  VAR y: INTEGER;
  PROCEDURE inner; BEGIN x := y END;
BEGIN CALL inner END;
BEGIN CALL outer END.`
	st, buf := compile(t, src)

	outerEnt, ok := st.Program.Scope.Find("OUTER")
	if !ok {
		t.Fatalf("OUTER not declared in program scope")
	}
	outer, ok := outerEnt.(*symtab.ProcedureEntity)
	if !ok {
		t.Fatalf("OUTER is not a procedure: %T", outerEnt)
	}
	innerEnt, ok := outer.Scope.Find("INNER")
	if !ok {
		t.Fatalf("INNER not declared in outer's scope")
	}
	inner, ok := innerEnt.(*symtab.ProcedureEntity)
	if !ok {
		t.Fatalf("INNER is not a procedure: %T", innerEnt)
	}

	var calls []code.Instruction
	for i := 1; i <= buf.Len(); i++ {
		instr := buf.At(code.Addr(i))
		if instr.Op == code.CALL {
			calls = append(calls, instr)
		}
	}
	if len(calls) != 2 {
		t.Fatalf("got %d CALL instructions, want 2:\n%s", len(calls), buf.String())
	}
	for _, c := range calls {
		if c.Op1 != 1 {
			t.Errorf("CALL %+v: level = %d, want 1", c, c.Op1)
		}
	}
	wantTargets := map[int32]bool{int32(outer.CodeAddress): false, int32(inner.CodeAddress): false}
	for _, c := range calls {
		if _, ok := wantTargets[c.Op2]; ok {
			wantTargets[c.Op2] = true
		}
	}
	for target, seen := range wantTargets {
		if !seen {
			t.Errorf("no CALL targets address %d", target)
		}
	}

	// Inside inner's body: LA 2,<x offset> then LV 1,<y offset> then ST.
	xEnt, _ := st.Program.Scope.Find("X")
	x := xEnt.(*symtab.VariableEntity)
	yEnt, _ := outer.Scope.Find("Y")
	y := yEnt.(*symtab.VariableEntity)

	found := false
	for i := 1; i+2 <= buf.Len(); i++ {
		a := buf.At(code.Addr(i))
		b := buf.At(code.Addr(i + 1))
		c := buf.At(code.Addr(i + 2))
		if a.Op == code.LA && a.Op1 == 2 && a.Op2 == int32(x.Offset) &&
			b.Op == code.LV && b.Op1 == 1 && b.Op2 == int32(y.Offset) &&
			c.Op == code.ST {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("did not find LA 2,%d / LV 1,%d / ST sequence:\n%s", x.Offset, y.Offset, buf.String())
	}
}

func TestConditionalExpression(t *testing.T) {
	_, buf := compile(t, `PROGRAM p; VAR x,y: INTEGER;
BEGIN y := IF x = 0 RETURN 1 ELSE RETURN 2 END.`)

	var fjCount, jCount int
	for i := 1; i <= buf.Len(); i++ {
		switch buf.At(code.Addr(i)).Op {
		case code.FJ:
			fjCount++
		case code.J:
			jCount++
		}
	}
	if fjCount != 1 {
		t.Errorf("got %d FJ, want 1", fjCount)
	}
	// One J for the program skeleton's entry jump, one for the conditional
	// expression's then-branch skip.
	if jCount != 2 {
		t.Errorf("got %d J, want 2", jCount)
	}
}

func TestDuplicateIdentifierIsFatal(t *testing.T) {
	kind := fatalKind(t, func() {
		compile(t, "PROGRAM p; VAR x, x: INTEGER; BEGIN END.")
	})
	if kind != diag.ErrDuplicateIdent {
		t.Errorf("got %v, want ErrDuplicateIdent", kind)
	}
}

func TestUndeclaredIdentifierIsFatal(t *testing.T) {
	kind := fatalKind(t, func() {
		compile(t, "PROGRAM p; BEGIN x := 1 END.")
	})
	if kind != diag.ErrUndeclaredIdent {
		t.Errorf("got %v, want ErrUndeclaredIdent", kind)
	}
}

func TestAssignmentTypeMismatchIsFatal(t *testing.T) {
	kind := fatalKind(t, func() {
		compile(t, "PROGRAM p; VAR x: INTEGER; BEGIN x := 'a' END.")
	})
	if kind != diag.ErrTypeMismatch {
		t.Errorf("got %v, want ErrTypeMismatch", kind)
	}
}

func TestNonPositiveArraySizeIsFatal(t *testing.T) {
	kind := fatalKind(t, func() {
		compile(t, "PROGRAM p; VAR a: ARRAY[0] OF INTEGER; BEGIN END.")
	})
	if kind != diag.ErrInvalidArraySize {
		t.Errorf("got %v, want ErrInvalidArraySize", kind)
	}
}

func TestArrayLValueForbiddenInMultiAssignment(t *testing.T) {
	kind := fatalKind(t, func() {
		compile(t, "PROGRAM p; VAR a: ARRAY[3] OF INTEGER; x: INTEGER; BEGIN a[0], x := 1, 2 END.")
	})
	if kind != diag.ErrInvalidLValue {
		t.Errorf("got %v, want ErrInvalidLValue", kind)
	}
}

func TestFunctionNameLValueOnlyInsideOwnBody(t *testing.T) {
	kind := fatalKind(t, func() {
		compile(t, `PROGRAM p;
FUNCTION f: INTEGER;
BEGIN f := 1 END;
BEGIN f := 2 END.`)
	})
	if kind != diag.ErrInvalidLValue {
		t.Errorf("got %v, want ErrInvalidLValue", kind)
	}
}

func TestArgumentCountMismatchIsFatal(t *testing.T) {
	kind := fatalKind(t, func() {
		compile(t, `PROGRAM p;
PROCEDURE takesOne(i: INTEGER);
BEGIN END;
BEGIN CALL takesOne(1, 2) END.`)
	})
	if kind != diag.ErrArgumentCountMismatch {
		t.Errorf("got %v, want ErrArgumentCountMismatch", kind)
	}
}

func TestByRefParameterRoundTrip(t *testing.T) {
	_, buf := compile(t, `PROGRAM p; VAR x: INTEGER;
PROCEDURE inc(VAR i: INTEGER);
BEGIN i := i END;
BEGIN CALL inc(x) END.`)

	// The call site passes x's address (LA), not its value.
	foundAddrArg := false
	for i := 1; i <= buf.Len(); i++ {
		if instr := buf.At(code.Addr(i)); instr.Op == code.LA && instr.Op1 == 0 && instr.Op2 == 4 {
			foundAddrArg = true
		}
	}
	if !foundAddrArg {
		t.Fatalf("expected an LA 0,4 argument push:\n%s", buf.String())
	}
}

func TestArrayIndexAddressArithmetic(t *testing.T) {
	_, buf := compile(t, "PROGRAM p; VAR a: ARRAY[10] OF INTEGER; BEGIN a[1] := 5 END.")

	wantTail := []code.Instruction{
		{Op: code.LA, Op1: 0, Op2: 4},
		{Op: code.LC, Op1: code.NoOperand, Op2: 1},
		{Op: code.LC, Op1: code.NoOperand, Op2: 1}, // size_of(INTEGER)
		{Op: code.ML, Op1: code.NoOperand, Op2: code.NoOperand},
		{Op: code.AD, Op1: code.NoOperand, Op2: code.NoOperand},
		{Op: code.LC, Op1: code.NoOperand, Op2: 5},
		{Op: code.ST, Op1: code.NoOperand, Op2: code.NoOperand},
	}
	if buf.Len() < len(wantTail) {
		t.Fatalf("buffer too short: %s", buf.String())
	}
	offset := buf.Len() - len(wantTail) - 1 // -1 for the trailing HL
	for i, w := range wantTail {
		if got := buf.At(code.Addr(offset + i + 1)); got != w {
			t.Errorf("instruction %d: got %+v, want %+v\n%s", offset+i+1, got, w, buf.String())
		}
	}
}

func TestRoundTripThroughEncodeDecode(t *testing.T) {
	_, buf := compile(t, "PROGRAM p; VAR x,y: INTEGER; BEGIN x := 1; y := 2; x, y := y, x END.")

	var out bytes.Buffer
	if err := buf.Encode(&out); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := code.Decode(&out)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Len() != buf.Len() {
		t.Fatalf("decoded length %d, want %d", decoded.Len(), buf.Len())
	}
	for i := 1; i <= buf.Len(); i++ {
		if got, want := decoded.At(code.Addr(i)), buf.At(code.Addr(i)); got != want {
			t.Errorf("instruction %d: got %+v, want %+v", i, got, want)
		}
	}
}
