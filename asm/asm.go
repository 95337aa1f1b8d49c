// package asm reads and writes the text form of bunny programs.
//
// Each line holds one instruction: a mnemonic followed by its operands.
//
//	cpy 41 a
//	inc a
//	jnz a 2   # comments start with '#'
//
// Operands are a register (a, b, c or d) or a signed 32 bit decimal integer.
package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"bunnyvm.org/bunny/isa"
)

var (
	ErrUnknownOp    = errors.New("unknown instruction")
	ErrOperandCount = errors.New("wrong number of operands")
	ErrOperand      = errors.New("invalid operand")
)

// MaxLineSize is the longest line Parse will read.
const MaxLineSize = 1 << 20

// ParseError is returned when a line of a program can not be decoded.
type ParseError struct {
	Name string
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	name := e.Name
	if name == "" {
		name = "<input>"
	}
	return fmt.Sprintf("%s:%d: %v: %q", name, e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// lineAST is a single instruction
type lineAST struct {
	Op   string    `@Ident`
	Args []*argAST `@@*`
}

type argAST struct {
	Pos lexer.Position

	Reg *string `  @Ident`
	Imm *string `| @Int`
}

var asmLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "Int", Pattern: `[-+]?[0-9]+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
})

var lineParser = participle.MustBuild[lineAST](
	participle.Lexer(asmLexer),
	participle.Elide("Whitespace"),
)

// Parse decodes a whole program.
// name is used in error messages.
func Parse(name string, r io.Reader) (isa.Program, error) {
	var prog isa.Program
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, MaxLineSize)
	lineNum := 1
	for ; sc.Scan(); lineNum++ {
		text := sc.Text()
		ix, err := ParseLine(text)
		if err != nil {
			return nil, &ParseError{Name: name, Line: lineNum, Text: text, Err: err}
		}
		if ix != nil {
			prog = append(prog, ix)
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &ParseError{Name: name, Line: lineNum, Err: err}
		}
		return nil, err
	}
	return prog, nil
}

// ParseString decodes a program held in a string
func ParseString(src string) (isa.Program, error) {
	return Parse("", strings.NewReader(src))
}

// ParseFile decodes the program in the file at p
func ParseFile(p string) (isa.Program, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(p, f)
}

// MustParse calls ParseString and panics on error
func MustParse(src string) isa.Program {
	prog, err := ParseString(src)
	if err != nil {
		panic(err)
	}
	return prog
}

// ParseLine decodes a single line.
// It returns nil, nil for blank lines and comments.
func ParseLine(text string) (isa.I, error) {
	if i := strings.IndexByte(text, '#'); i >= 0 {
		text = text[:i]
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	ast, err := lineParser.ParseString("", text)
	if err != nil {
		return nil, err
	}
	return ast.decode(text)
}

// decode checks the instruction in l, which was parsed from text.
func (l *lineAST) decode(text string) (isa.I, error) {
	op := isa.LookupMnemonic(strings.ToLower(l.Op))
	if op == isa.Unknown {
		return nil, fmt.Errorf("%w %q", ErrUnknownOp, l.Op)
	}
	if len(l.Args) != op.Arity() {
		return nil, fmt.Errorf("%w: %v takes %d, have %d", ErrOperandCount, op, op.Arity(), len(l.Args))
	}
	args := make([]isa.Operand, len(l.Args))
	for i, arg := range l.Args {
		// operands must be separated from what comes before them.
		if !isSpace(text[arg.Pos.Offset-1]) {
			return nil, fmt.Errorf("%w at column %d: missing space before operand", ErrOperand, arg.Pos.Column)
		}
		o, err := arg.decode()
		if err != nil {
			return nil, fmt.Errorf("%w at column %d: %v", ErrOperand, arg.Pos.Column, err)
		}
		args[i] = o
	}
	return isa.New(op, args...)
}

func (a *argAST) decode() (isa.Operand, error) {
	switch {
	case a.Reg != nil:
		r, err := isa.ParseRegister(strings.ToLower(*a.Reg))
		if err != nil {
			return isa.Operand{}, err
		}
		return isa.Reg(r), nil
	case a.Imm != nil:
		n, err := strconv.ParseInt(*a.Imm, 10, 32)
		if err != nil {
			return isa.Operand{}, err
		}
		return isa.Imm(n), nil
	default:
		panic("empty operand")
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r'
}
