package sema

import "fmt"

// Kind classifies a diagnostic.
type Kind int

const (
	Redeclaration Kind = iota
	UnresolvedSymbol
	ArityMismatch
	InvalidArrayInit
	InvalidArraySize
	TypeMismatch
	UnsupportedType
	IndexOutOfRange
	NonConstantInit
	MisplacedJump

	UnusedSymbol
	UseBeforeValue
)

var kindNames = [...]string{
	Redeclaration:    "redeclaration",
	UnresolvedSymbol: "unresolved symbol",
	ArityMismatch:    "arity mismatch",
	InvalidArrayInit: "invalid array initializer",
	InvalidArraySize: "invalid array size",
	TypeMismatch:     "type mismatch",
	UnsupportedType:  "unsupported type",
	IndexOutOfRange:  "index out of range",
	NonConstantInit:  "non-constant initializer",
	MisplacedJump:    "misplaced jump",
	UnusedSymbol:     "unused symbol",
	UseBeforeValue:   "use before value",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type Severity int

const (
	Fatal Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

// Diagnostic is one message about the program. Fatal diagnostics are
// returned as errors; warnings are written to the diagnostics stream.
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	Symbol   string
	Line     int
	Message  string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("line %d: %s [%s]: %s", d.Line, d.Severity, d.Kind, d.Message)
}

func newFatal(kind Kind, symbol string, line int, format string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: kind, Severity: Fatal, Symbol: symbol, Line: line, Message: fmt.Sprintf(format, args...)}
}

func newWarning(kind Kind, symbol string, line int, format string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: kind, Severity: Warning, Symbol: symbol, Line: line, Message: fmt.Sprintf(format, args...)}
}
