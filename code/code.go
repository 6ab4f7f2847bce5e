// Package code implements KPL's bytecode instruction model: the opcode
// set, a fixed-shape (opcode, operand1, operand2) instruction, an
// append-only buffer with in-place operand patching for backpatched
// jumps, and the binary image codec.
//
// Unlike a variable-width bytecode, every KPL instruction occupies the
// same three fields regardless of opcode; operand slots an opcode does
// not use simply hold a don't-care value. This keeps Buffer.Patch and
// the binary codec free of any per-opcode switch.
package code

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Opcode identifies a single VM instruction.
type Opcode byte

const (
	// LA pushes address = frame(level) + offset.
	LA Opcode = iota
	// LV pushes the value stored at frame(level) + offset.
	LV
	// LC pushes a constant.
	LC
	// LI replaces the top of stack with the value stored at that address.
	LI
	// ST pops a value then an address, and stores the value there.
	ST
	// INT advances the stack top by n words, reserving space.
	INT
	// DCT retracts the stack top by n words, reclaiming space.
	DCT

	// J jumps unconditionally to target.
	J
	// FJ pops the top of stack and jumps to target if it is zero.
	FJ
	// HL halts the program.
	HL
	// CALL pushes the dynamic link, return address, and static link
	// (computed from level), then sets the frame base and program
	// counter to target.
	CALL
	// EP returns from a procedure.
	EP
	// EF returns from a function, preserving the result slot.
	EF

	// RC reads one character into the address on top of stack.
	RC
	// RI reads one integer into the address on top of stack.
	RI
	// WRC writes the character on top of stack.
	WRC
	// WRI writes the integer on top of stack.
	WRI
	// WLN writes a newline.
	WLN

	// AD pops two, pushes their sum.
	AD
	// SB pops two, pushes their difference.
	SB
	// ML pops two, pushes their product.
	ML
	// DV pops two, pushes their quotient.
	DV
	// NEG negates the top of stack.
	NEG
	// CV duplicates the top of stack.
	CV

	// EQ pops two, pushes 1 if equal else 0.
	EQ
	// NE pops two, pushes 1 if not equal else 0.
	NE
	// GT pops two, pushes 1 if the first is greater.
	GT
	// LT pops two, pushes 1 if the first is less.
	LT
	// GE pops two, pushes 1 if the first is greater or equal.
	GE
	// LE pops two, pushes 1 if the first is less or equal.
	LE
)

// names gives each opcode its mnemonic for disassembly.
var names = map[Opcode]string{
	LA: "LA", LV: "LV", LC: "LC", LI: "LI", ST: "ST", INT: "INT", DCT: "DCT",
	J: "J", FJ: "FJ", HL: "HL", CALL: "CALL", EP: "EP", EF: "EF",
	RC: "RC", RI: "RI", WRC: "WRC", WRI: "WRI", WLN: "WLN",
	AD: "AD", SB: "SB", ML: "ML", DV: "DV", NEG: "NEG", CV: "CV",
	EQ: "EQ", NE: "NE", GT: "GT", LT: "LT", GE: "GE", LE: "LE",
}

// String renders an opcode's mnemonic, or "OP(n)" if it is unrecognized.
func (op Opcode) String() string {
	if name, ok := names[op]; ok {
		return name
	}
	return fmt.Sprintf("OP(%d)", byte(op))
}

// NoOperand is the don't-care value stored in an operand slot an opcode
// does not use.
const NoOperand int32 = 0

// Instruction is the fixed (opcode, operand1, operand2) triple every VM
// instruction is encoded as. By convention, a single-operand opcode
// (LC, INT, DCT, J, FJ) stores its value in Op2 and leaves Op1 at
// NoOperand; this is what lets Patch always touch the same slot
// regardless of which kind of forward jump it is backpatching. A
// two-operand opcode (LA, LV, CALL) stores level in Op1 and
// offset/target in Op2.
type Instruction struct {
	Op  Opcode
	Op1 int32
	Op2 int32
}

// Addr is a stable handle to an instruction's position in a Buffer,
// returned by Append and used by Patch and as a jump target.
type Addr int

// MaxInstructions bounds the size of a single compiled image. Append
// reports overflow once this many instructions have been emitted, rather
// than growing without limit; this mirrors the original compiler's
// fixed-size instruction array (CODE_SIZE) and gives code buffer overflow
// a concrete trigger (exercised by TestAppendOverflow).
const MaxInstructions = 10000

// Buffer is an append-only sequence of instructions with in-place
// operand patching, used to emit forward jumps whose target is not yet
// known at the point they are written.
type Buffer struct {
	instructions []Instruction
}

// NewBuffer returns an empty instruction buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Addresses are 1-based: the first instruction appended to a buffer is
// address 1, not 0. This matches the target VM's convention that
// address 0 is never a valid code location (the program's own entry
// jump is always the first instruction written, and its patched target
// is therefore always >= 2), and keeps disassembly addresses lining up
// with the bytecode traces the original compiler produces.

// Append adds an instruction and returns its address. ok is false if the
// buffer is already at MaxInstructions; the caller (the code generator)
// is expected to turn that into a fatal resource-overflow diagnostic.
func (b *Buffer) Append(op Opcode, op1, op2 int32) (Addr, bool) {
	if len(b.instructions) >= MaxInstructions {
		return 0, false
	}
	b.instructions = append(b.instructions, Instruction{Op: op, Op1: op1, Op2: op2})
	return Addr(len(b.instructions)), true
}

// CurrentAddress returns the address the next Append will use, which is
// exactly the address a forward jump wants to target once it is known.
func (b *Buffer) CurrentAddress() Addr {
	return Addr(len(b.instructions) + 1)
}

// Patch overwrites the second operand of a previously emitted
// instruction — used to backpatch a forward J or FJ once its target
// address is known.
func (b *Buffer) Patch(addr Addr, newOp2 int32) {
	b.instructions[addr-1].Op2 = newOp2
}

// At returns the instruction at addr.
func (b *Buffer) At(addr Addr) Instruction {
	return b.instructions[addr-1]
}

// Len returns the number of instructions currently in the buffer.
func (b *Buffer) Len() int {
	return len(b.instructions)
}

// instructionSize is the encoded byte width of one instruction: one
// opcode byte plus two little-endian 4-byte operands.
const instructionSize = 1 + 4 + 4

// Encode writes the buffer as a contiguous binary block: each
// instruction as its opcode byte followed by its two operands, each a
// little-endian 4-byte signed integer.
func (b *Buffer) Encode(w io.Writer) error {
	buf := make([]byte, instructionSize)
	for _, instr := range b.instructions {
		buf[0] = byte(instr.Op)
		binary.LittleEndian.PutUint32(buf[1:5], uint32(instr.Op1))
		binary.LittleEndian.PutUint32(buf[5:9], uint32(instr.Op2))
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads the inverse of Encode, returning a Buffer populated with
// every instruction read until EOF.
func Decode(r io.Reader) (*Buffer, error) {
	b := NewBuffer()
	buf := make([]byte, instructionSize)
	for {
		_, err := io.ReadFull(r, buf)
		if err == io.EOF {
			return b, nil
		}
		if err != nil {
			return nil, err
		}
		op := Opcode(buf[0])
		op1 := int32(binary.LittleEndian.Uint32(buf[1:5]))
		op2 := int32(binary.LittleEndian.Uint32(buf[5:9]))
		b.instructions = append(b.instructions, Instruction{Op: op, Op1: op1, Op2: op2})
	}
}

// operandCounts lists how many of an opcode's two operand slots are
// actually meaningful, purely for disassembly formatting — Encode/Decode
// always read and write both slots regardless.
var operandCounts = map[Opcode]int{
	LA: 2, LV: 2, LC: 1, LI: 0, ST: 0, INT: 1, DCT: 1,
	J: 1, FJ: 1, HL: 0, CALL: 2, EP: 0, EF: 0,
	RC: 0, RI: 0, WRC: 0, WRI: 0, WLN: 0,
	AD: 0, SB: 0, ML: 0, DV: 0, NEG: 0, CV: 0,
	EQ: 0, NE: 0, GT: 0, LT: 0, GE: 0, LE: 0,
}

// String disassembles the buffer one instruction per line, in the form
// "0003 LA 0,4".
func (b *Buffer) String() string {
	var out strings.Builder
	for i, instr := range b.instructions {
		fmt.Fprintf(&out, "%04d %s\n", i+1, formatInstruction(instr))
	}
	return out.String()
}

func formatInstruction(instr Instruction) string {
	switch operandCounts[instr.Op] {
	case 0:
		return instr.Op.String()
	case 1:
		return fmt.Sprintf("%s %d", instr.Op, instr.Op2)
	default:
		return fmt.Sprintf("%s %d,%d", instr.Op, instr.Op1, instr.Op2)
	}
}
