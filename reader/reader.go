// Package reader provides the character-level input primitive the scanner
// is built on: a single current-character register with one-character
// lookahead, and line/column tracking for diagnostics.
package reader

import "io"

// eof is the sentinel returned by Current when input is exhausted.
const eof = 0

// Reader reads raw bytes from an underlying source, tracking line and
// column position as it goes. KPL source is plain ASCII text, so bytes
// rather than runes are the natural unit here, matching the character
// reader this module stands in for.
type Reader struct {
	src  []byte
	pos  int
	ch   byte
	ok   bool
	line int
	col  int
}

// New creates a Reader over the full contents of r.
func New(r io.Reader) (*Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	rd := &Reader{src: data, line: 1, col: 0}
	rd.advance()
	return rd, nil
}

// NewFromString creates a Reader over an in-memory source string.
func NewFromString(s string) *Reader {
	rd := &Reader{src: []byte(s), line: 1, col: 0}
	rd.advance()
	return rd
}

// Current returns the current character and whether one is available
// (false signals EOF).
func (r *Reader) Current() (byte, bool) {
	return r.ch, r.ok
}

// Peek returns the character after the current one without consuming
// anything, and whether one is available.
func (r *Reader) Peek() (byte, bool) {
	if r.pos >= len(r.src) {
		return eof, false
	}
	return r.src[r.pos], true
}

// Line returns the 1-based line number of the current character.
func (r *Reader) Line() int { return r.line }

// Col returns the 1-based column number of the current character.
func (r *Reader) Col() int { return r.col }

// Advance consumes the current character and loads the next one,
// updating line/column bookkeeping. Calling Advance once Current reports
// EOF is a no-op.
func (r *Reader) Advance() {
	if !r.ok {
		return
	}
	r.advance()
}

// advance performs the actual read, independent of whether a character
// was already loaded; used both by the constructors (to prime the first
// character) and by Advance. A newline bumps the line counter and resets
// the column only when the newline itself is consumed, so the newline is
// still reported on the line it terminates and the character after it
// starts the next line.
func (r *Reader) advance() {
	if r.ok && r.ch == '\n' {
		r.line++
		r.col = 0
	}

	if r.pos >= len(r.src) {
		r.ch, r.ok = eof, false
		return
	}

	r.ch = r.src[r.pos]
	r.pos++
	r.col++
	r.ok = true
}
