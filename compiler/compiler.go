// Package compiler drives the KPL pipeline end to end: it reads source
// text, runs it through the reader, lexer, and parser, and hands back the
// resulting symbol table and bytecode image, or writes that image to an
// output stream.
//
// This is the single place that recovers the panic/recover boundary the
// parser and checker use internally (see diag.Fatal): a fatal diagnostic
// unwinds straight up to CompileSource as a panic, and CompileSource
// turns it back into a plain returned error. Everything below this package can treat a
// syntax or semantic error as "the parse aborted," without threading an
// error return through every production.
package compiler

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dr8co/kplc/code"
	"github.com/dr8co/kplc/diag"
	"github.com/dr8co/kplc/lexer"
	"github.com/dr8co/kplc/parser"
	"github.com/dr8co/kplc/reader"
	"github.com/dr8co/kplc/symtab"
)

// Options configures a single compilation.
type Options struct {
	// Debug, when true, logs each compiled block's frame size once the
	// whole program has compiled successfully, via the standard log
	// package.
	Debug bool
}

// Result holds everything a successful compilation produced: the
// populated symbol table (for introspection — the REPL's symbol view
// reads this directly) and the emitted instruction buffer.
type Result struct {
	Symbols *symtab.SymbolTable
	Code    *code.Buffer
}

// CompileSource runs src through the full pipeline and returns the
// resulting Result, or the first diag.Error encountered (lexical,
// syntactic, or semantic) as a plain error.
func CompileSource(src io.Reader, opts Options) (result *Result, err error) {
	rd, rerr := reader.New(src)
	if rerr != nil {
		return nil, fmt.Errorf("reading source: %w", rerr)
	}

	rep := diag.NewReporter()
	lex := lexer.New(rd, rep)

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		de, ok := r.(*diag.Error)
		if !ok {
			panic(r)
		}
		result, err = nil, de
	}()

	st, buf := parser.Parse(lex)
	if rep.HasErrors() {
		return nil, rep.First()
	}

	if opts.Debug {
		logFrameSizes(st)
	}
	return &Result{Symbols: st, Code: buf}, nil
}

// Compile runs src through the pipeline and writes the resulting binary
// bytecode image to out.
func Compile(src io.Reader, out io.Writer, opts Options) (*Result, error) {
	result, err := CompileSource(src, opts)
	if err != nil {
		return nil, err
	}
	if err := result.Code.Encode(out); err != nil {
		return nil, fmt.Errorf("writing bytecode image: %w", err)
	}
	return result, nil
}

// CompileFile opens inputPath, compiles it, and writes the resulting
// image to outputPath. It logs file open/write failures through the
// standard log package before returning them, matching the original
// compiler's "report then fail" behavior without terminating the process.
func CompileFile(inputPath, outputPath string, opts Options) (*Result, error) {
	in, err := os.Open(inputPath)
	if err != nil {
		log.Printf("opening %s: %v", inputPath, err)
		return nil, fmt.Errorf("opening %s: %w", inputPath, err)
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		log.Printf("creating %s: %v", outputPath, err)
		return nil, fmt.Errorf("creating %s: %w", outputPath, err)
	}
	defer out.Close()

	result, err := Compile(in, out, opts)
	if err != nil {
		log.Printf("compiling %s: %v", inputPath, err)
		return nil, err
	}
	return result, nil
}

// logFrameSizes walks the program's scope tree, logging each function or
// procedure's frame size as it is visited. Intended for -debug tracing:
// frame size is the one quantity per block worth surfacing without
// dumping the whole instruction stream.
func logFrameSizes(st *symtab.SymbolTable) {
	log.Printf("program %s: frame size %d", st.Program.Name(), st.Program.Scope.FrameSize)
	walkScope(st.Program.Scope)
}

func walkScope(scope *symtab.Scope) {
	for _, e := range scope.Entities {
		switch ent := e.(type) {
		case *symtab.FunctionEntity:
			log.Printf("function %s: frame size %d", ent.Name(), ent.Scope.FrameSize)
			walkScope(ent.Scope)
		case *symtab.ProcedureEntity:
			log.Printf("procedure %s: frame size %d", ent.Name(), ent.Scope.FrameSize)
			walkScope(ent.Scope)
		}
	}
}
