// Package repl implements an interactive compile-and-disassemble console
// for KPL.
//
// The console accepts KPL source a block at a time, compiles each block
// through the same compiler package the CLI and the test suite use, and
// renders the resulting disassembly, the program's top-level symbol
// table, or the fatal diagnostic that aborted compilation. It uses the
// Charm libraries (Bubbletea, Bubbles, and Lipgloss) for a modern
// terminal interface with syntax highlighting and history, and
// github.com/atotto/clipboard to copy the last disassembly to the system
// clipboard.
//
// The main entry point is the Start function, which runs the console
// over the given input and output streams.
package repl

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dr8co/kplc/compiler"
	"github.com/dr8co/kplc/diag"
	"github.com/dr8co/kplc/lexer"
	"github.com/dr8co/kplc/reader"
	"github.com/dr8co/kplc/symtab"
	"github.com/dr8co/kplc/token"
)

const (
	// Prompt is the default prompt for the console.
	Prompt = "kpl> "

	// ContPrompt is the continuation prompt used while a block is
	// incomplete — no trailing "." has been seen yet, or brackets are
	// unbalanced.
	ContPrompt = " ... "
)

// Start runs the console over in and out. If an error occurs running the
// underlying Bubbletea program, it is printed to out.
func Start(in io.Reader, out io.Writer) {
	p := tea.NewProgram(initialModel(), tea.WithInput(in), tea.WithOutput(out))
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(out, "Error running console:", err)
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	disasmStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	symbolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8BE9FD"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Bold(true)

	historyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676"))

	keywordStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6")).Bold(true)
	identifierStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F8F8F2"))
	literalStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F1FA8C"))
	operatorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	delimiterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#BD93F9"))
)

// compileResultMsg carries the outcome of an asynchronous compile back to
// Update.
type compileResultMsg struct {
	disassembly string
	symbols     string
	errText     string
	isError     bool
	elapsed     time.Duration
}

// historyEntry is one compiled block and what it produced.
type historyEntry struct {
	input          string
	disassembly    string
	symbols        string
	errText        string
	isError        bool
	evaluationTime time.Duration
}

type model struct {
	textInput textinput.Model
	spinner   spinner.Model
	history   []historyEntry

	compiling bool
	current   string

	buffer      string
	inBlock     bool
	lastOutput  string
	clipboardOK bool
}

func initialModel() model {
	ti := textinput.New()
	ti.Placeholder = "PROGRAM p; BEGIN END."
	ti.Focus()
	ti.Width = 80
	ti.Prompt = promptStyle.Render(Prompt)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return model{textInput: ti, spinner: s}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// bracketsBalanced reports whether every "(" and "[" in input has a
// matching close. KPL has no brace-delimited blocks, so only parens and
// brackets need tracking — unlike a curly-brace language's REPL, a
// dangling BEGIN/END pair is not detectable this way and is instead
// covered by isComplete's trailing-period check.
func bracketsBalanced(input string) bool {
	var stack []rune
	for _, ch := range input {
		switch ch {
		case '(', '[':
			stack = append(stack, ch)
		case ')':
			if len(stack) == 0 || stack[len(stack)-1] != '(' {
				return false
			}
			stack = stack[:len(stack)-1]
		case ']':
			if len(stack) == 0 || stack[len(stack)-1] != '[' {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

// isComplete reports whether buffer looks like a finished compilation
// unit: a KPL program always ends with a period, so that is the signal
// to stop collecting lines and try compiling, provided brackets are also
// balanced (a period can legally appear before a closing paren is typed
// on a continuation line only in pathological input, so this check is a
// practical heuristic, not a full parse).
func isComplete(buffer string) bool {
	trimmed := strings.TrimRight(buffer, " \t\n")
	return strings.HasSuffix(trimmed, ".") && bracketsBalanced(trimmed)
}

func compileCmd(src string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		result, err := compiler.CompileSource(strings.NewReader(src), compiler.Options{})
		elapsed := time.Since(start)

		if err != nil {
			return compileResultMsg{errText: formatCompileError(err), isError: true, elapsed: elapsed}
		}
		return compileResultMsg{
			disassembly: result.Code.String(),
			symbols:     renderSymbols(result.Symbols),
			elapsed:     elapsed,
		}
	}
}

func formatCompileError(err error) string {
	de, ok := err.(*diag.Error)
	if !ok {
		return err.Error()
	}
	return fmt.Sprintf("%s: %s", de.Pos, de.Error())
}

// renderSymbols lists the program's top-level symbol table: every name
// declared directly in the program scope, its kind, and the attribute
// that matters most for that kind (offset for a variable, code address
// for a function or procedure), followed by the scope's frame size.
func renderSymbols(st *symtab.SymbolTable) string {
	var s strings.Builder
	fmt.Fprintf(&s, "program %s (frame size %d)\n", st.Program.Name(), st.Program.Scope.FrameSize)
	for _, e := range st.Program.Scope.Entities {
		switch ent := e.(type) {
		case *symtab.VariableEntity:
			fmt.Fprintf(&s, "  %-12s variable  offset=%d type=%s\n", ent.Name(), ent.Offset, ent.Type)
		case *symtab.ConstantEntity:
			fmt.Fprintf(&s, "  %-12s constant  value=%s\n", ent.Name(), ent.Value)
		case *symtab.TypeAliasEntity:
			fmt.Fprintf(&s, "  %-12s type      = %s\n", ent.Name(), ent.Type)
		case *symtab.FunctionEntity:
			fmt.Fprintf(&s, "  %-12s function  entry=%d frame=%d\n", ent.Name(), ent.CodeAddress, ent.Scope.FrameSize)
		case *symtab.ProcedureEntity:
			fmt.Fprintf(&s, "  %-12s procedure entry=%d frame=%d\n", ent.Name(), ent.CodeAddress, ent.Scope.FrameSize)
		}
	}
	return s.String()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.compiling {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case compileResultMsg:
		m.compiling = false
		m.history = append(m.history, historyEntry{
			input:          m.current,
			disassembly:    msg.disassembly,
			symbols:        msg.symbols,
			errText:        msg.errText,
			isError:        msg.isError,
			evaluationTime: msg.elapsed,
		})
		if !msg.isError {
			m.lastOutput = msg.disassembly
		}
		m.current = ""
		return m, nil

	case tea.KeyMsg:
		if m.compiling && msg.Type != tea.KeyCtrlC {
			return m, m.spinner.Tick
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyCtrlD:
			return m, tea.Quit

		case tea.KeyCtrlY:
			if m.lastOutput != "" {
				m.clipboardOK = clipboard.WriteAll(m.lastOutput) == nil
			}
			return m, nil

		case tea.KeyEnter:
			line := m.textInput.Value()
			m.textInput.SetValue("")

			if m.inBlock {
				m.buffer += "\n" + line
			} else if line == "" {
				return m, nil
			} else {
				m.buffer = line
				m.inBlock = true
			}

			if isComplete(m.buffer) {
				block := m.buffer
				m.buffer = ""
				m.inBlock = false
				m.compiling = true
				m.current = block
				return m, compileCmd(block)
			}
			return m, nil
		}
	}

	if !m.compiling {
		m.textInput, cmd = m.textInput.Update(msg)
	}
	if m.compiling {
		return m, m.spinner.Tick
	}
	return m, cmd
}

func (m model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" KPL Console "))
	s.WriteString("\n\n")

	for _, entry := range m.history {
		for i, line := range strings.Split(entry.input, "\n") {
			if i == 0 {
				s.WriteString(promptStyle.Render(Prompt))
			} else {
				s.WriteString(promptStyle.Render(ContPrompt))
			}
			s.WriteString(highlightLine(line))
			s.WriteString("\n")
		}

		if entry.isError {
			s.WriteString(errorStyle.Render(entry.errText))
			s.WriteString("\n")
		} else {
			s.WriteString(disasmStyle.Render(entry.disassembly))
			s.WriteString(symbolStyle.Render(entry.symbols))
		}

		if entry.evaluationTime > time.Millisecond {
			s.WriteString(historyStyle.Render(fmt.Sprintf(" (%s)", entry.evaluationTime)))
			s.WriteString("\n")
		}
		s.WriteString("\n")
	}

	if m.compiling {
		s.WriteString(promptStyle.Render(Prompt))
		s.WriteString(highlightLine(m.current))
		s.WriteString("\n")
		s.WriteString(m.spinner.View())
		s.WriteString(" compiling...\n\n")
	}

	if !m.compiling {
		if m.inBlock {
			m.textInput.Prompt = promptStyle.Render(ContPrompt)
		} else {
			m.textInput.Prompt = promptStyle.Render(Prompt)
		}
		s.WriteString(m.textInput.View())
		s.WriteString("\n")
	}

	help := "Esc/Ctrl+C/Ctrl+D to exit | Ctrl+Y to copy the last disassembly"
	if m.clipboardOK {
		help += " (copied)"
	}
	s.WriteString(historyStyle.Render(help))

	return s.String()
}

// highlightLine colors a single line of KPL source using the real
// lexer. Column tracking in token.Position lets whitespace between
// tokens on the same line be reproduced exactly rather than reflowed.
func highlightLine(src string) string {
	rep := diag.NewReporter()
	lex := lexer.New(reader.NewFromString(src), rep)

	var out strings.Builder
	col := 0
	for {
		tok := lex.Next()
		if tok.Kind == token.EOF {
			break
		}
		if tok.Pos.Col > col+1 {
			out.WriteString(strings.Repeat(" ", tok.Pos.Col-col-1))
		}
		out.WriteString(styleToken(tok))
		col = tok.Pos.Col + len(tok.Literal) - 1
	}
	return out.String()
}

func styleToken(tok token.Token) string {
	switch tok.Kind {
	case token.PROGRAM, token.CONST, token.TYPE, token.VAR, token.FUNCTION,
		token.PROCEDURE, token.BEGIN, token.END, token.CALL, token.IF,
		token.THEN, token.ELSE, token.WHILE, token.DO, token.FOR, token.TO,
		token.RETURN, token.INTEGER, token.CHARTYPE, token.ARRAY, token.OF:
		return keywordStyle.Render(tok.Literal)
	case token.IDENT:
		return identifierStyle.Render(tok.Literal)
	case token.NUMBER, token.CHAR:
		return literalStyle.Render(tok.Literal)
	case token.PLUS, token.MINUS, token.TIMES, token.SLASH, token.EQ, token.NEQ,
		token.LT, token.LE, token.GT, token.GE, token.ASSIGN, token.COLON:
		return operatorStyle.Render(tok.Literal)
	case token.SEMI, token.COMMA, token.PERIOD, token.LPAREN, token.RPAREN,
		token.LBRACKET, token.RBRACKET:
		return delimiterStyle.Render(tok.Literal)
	default:
		return tok.Literal
	}
}
