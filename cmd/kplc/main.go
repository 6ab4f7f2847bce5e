// kplc compiles KPL source into a bytecode image, optionally
// disassembling it, or starts an interactive compile-and-disassemble
// console.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"flag"

	"github.com/dr8co/kplc/compiler"
	"github.com/dr8co/kplc/repl"
)

const version = "0.1.0"

// printUsage displays custom usage information.
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, `kplc KPL Compiler v%s

USAGE:
    %s [OPTIONS] <source.kpl>

DESCRIPTION:
    kplc compiles a KPL source file into a bytecode image.
    Without a source file, it starts an interactive REPL.

OPTIONS:
    -o, --output <path>     Write the bytecode image to path (default: input with .kplc extension)
    -S, --disassemble       Print the disassembled instruction stream instead of writing an image
    -debug                  Log each compiled block's frame size to stderr
    -repl                   Start the interactive console regardless of other arguments
    -v, --version           Show version information
    -h, --help              Show this help message

EXAMPLES:
    # Compile a program
    %s program.kpl

    # Compile with an explicit output path
    %s -o out.kplc program.kpl

    # Inspect the generated bytecode without writing an image
    %s -S program.kpl

    # Start the interactive console
    %s -repl

`, version, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	flag.Usage = printUsage

	outputFlag := flag.String("output", "", "write the bytecode image to path")
	disassembleFlag := flag.Bool("disassemble", false, "print the disassembled instruction stream")
	debugFlag := flag.Bool("debug", false, "log each compiled block's frame size")
	replFlag := flag.Bool("repl", false, "start the interactive console")
	versionFlag := flag.Bool("version", false, "show version information")

	flag.StringVar(outputFlag, "o", "", "write the bytecode image to path")
	flag.BoolVar(disassembleFlag, "S", false, "print the disassembled instruction stream")
	flag.BoolVar(versionFlag, "v", false, "show version information")

	flag.Parse()

	if *versionFlag {
		fmt.Printf("kplc KPL Compiler v%s\n", version)
		return
	}

	args := flag.Args()
	if *replFlag || len(args) == 0 {
		repl.Start(os.Stdin, os.Stdout)
		return
	}

	inputPath := args[0]
	outputPath := *outputFlag
	if outputPath == "" {
		outputPath = defaultOutputPath(inputPath)
	}

	opts := compiler.Options{Debug: *debugFlag}

	if *disassembleFlag {
		disassemble(inputPath, opts)
		return
	}

	compileToFile(inputPath, outputPath, opts)
}

// defaultOutputPath replaces inputPath's extension with .kplc.
func defaultOutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(inputPath, ext)
	return base + ".kplc"
}

func compileToFile(inputPath, outputPath string, opts compiler.Options) {
	result, err := compiler.CompileFile(inputPath, outputPath, opts)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "kplc: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("compiled %s -> %s (%d instructions)\n", inputPath, outputPath, result.Code.Len())
}

func disassemble(inputPath string, opts compiler.Options) {
	in, err := os.Open(inputPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "kplc: %s\n", err)
		os.Exit(1)
	}
	defer in.Close()

	result, err := compiler.CompileSource(in, opts)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "kplc: %s\n", err)
		os.Exit(1)
	}
	fmt.Print(result.Code.String())
}
