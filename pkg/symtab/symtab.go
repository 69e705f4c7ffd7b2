// Package symtab implements the lexically scoped symbol table: a tree of
// scope nodes, each mapping names to symbols with frame offsets.
package symtab

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"minicc/pkg/types"
)

// ErrRedeclaration is returned when a name already exists in the same scope.
var ErrRedeclaration = errors.New("redeclaration")

// MaxParams is the number of register-resident parameter positions.
const MaxParams = 6

// Kind classifies a scope node.
type Kind int

const (
	Root Kind = iota
	Function
	Block
)

func (k Kind) String() string {
	switch k {
	case Root:
		return "root"
	case Function:
		return "function"
	default:
		return "block"
	}
}

// Symbol is a named storage slot.
type Symbol struct {
	Name     string
	Offset   int // frame offset from the base pointer; negative for locals
	Type     types.Type
	Size     int // bytes reserved
	Length   int // element count for arrays; 0 for scalars
	Position int // 1..MaxParams for parameters, 0 otherwise
	Global   bool
	Temp     bool
	Line     int

	Used     bool // read at least once
	HasValue bool // assigned or initialised at least once
}

// IsArray reports whether the symbol names a flat array.
func (s *Symbol) IsArray() bool { return s.Length > 0 }

// IsParam reports whether the symbol is a register-resident parameter.
func (s *Symbol) IsParam() bool { return s.Position > 0 }

// Table is one scope node. Children are owned exclusively by their parent
// and kept in creation order, which is the order both compiler passes visit
// them in.
type Table struct {
	Name string
	Kind Kind

	parent   *Table
	children []*Table
	symbols  map[string]*Symbol
	order    []*Symbol

	offset int // running offset; decreases as slots are reserved
	low    int // deepest offset reached by this node
	cursor int // index of the next child handed out by NextChild
}

// NewRoot returns an empty root scope. Symbols added to it are globals.
func NewRoot() *Table {
	return &Table{Name: "<root>", Kind: Root, symbols: make(map[string]*Symbol)}
}

// NewChild creates a child scope that starts allocating at the parent's
// current offset. Function scopes always start at zero.
func (t *Table) NewChild(kind Kind, name string) *Table {
	child := &Table{
		Name:    name,
		Kind:    kind,
		parent:  t,
		symbols: make(map[string]*Symbol),
	}
	if kind == Block && t.Kind != Root {
		child.offset = t.offset
		child.low = t.offset
	}
	t.children = append(t.children, child)
	return child
}

// NextChild returns the next child in creation order. It is used by a later
// pass to re-enter the scopes an earlier pass created. Running past the last
// child is an internal error.
func (t *Table) NextChild() *Table {
	if t.cursor >= len(t.children) {
		panic(fmt.Sprintf("symtab: scope %q has no child #%d", t.Name, t.cursor))
	}
	child := t.children[t.cursor]
	t.cursor++
	return child
}

// ResetCursors rewinds the child cursor of t and every descendant.
func (t *Table) ResetCursors() {
	t.Walk(func(n *Table) { n.cursor = 0 })
}

func (t *Table) Parent() *Table     { return t.parent }
func (t *Table) Children() []*Table { return t.children }

// Symbols returns the symbols of this node in declaration order.
func (t *Table) Symbols() []*Symbol { return t.order }

// Offset returns the running offset of this node.
func (t *Table) Offset() int { return t.offset }

// Function returns the nearest enclosing function scope, or nil at the root.
func (t *Table) Function() *Table {
	for n := t; n != nil; n = n.parent {
		if n.Kind == Function {
			return n
		}
	}
	return nil
}

// AddSymbol declares name in this scope. Parameters (position 1..MaxParams)
// live in argument registers and reserve no frame slot; root symbols are
// globals; every other symbol reserves size bytes below the running offset.
func (t *Table) AddSymbol(name string, typ types.Type, size int, position int, line int) (*Symbol, error) {
	if _, exists := t.symbols[name]; exists {
		return nil, fmt.Errorf("%w of %q in %s scope %q", ErrRedeclaration, name, t.Kind, t.Name)
	}

	sym := &Symbol{Name: name, Type: typ, Size: size, Position: position, Line: line}
	switch {
	case t.Kind == Root:
		sym.Global = true
	case position > 0:
		if position > MaxParams {
			return nil, fmt.Errorf("parameter %q at position %d exceeds %d register slots", name, position, MaxParams)
		}
	default:
		t.offset -= size
		sym.Offset = t.offset
		if t.offset < t.low {
			t.low = t.offset
		}
	}

	t.insert(sym)
	return sym, nil
}

// AddArray declares a flat array of length elements. The symbol's offset is
// that of element 0; later elements sit at ascending addresses.
func (t *Table) AddArray(name string, typ types.Type, length int, line int) (*Symbol, error) {
	sym, err := t.AddSymbol(name, typ, length*types.SizeOf(typ), 0, line)
	if err != nil {
		return nil, err
	}
	sym.Length = length
	return sym, nil
}

// Place inserts a compiler-generated temporary at a fixed offset. The
// running offset is not moved.
func (t *Table) Place(name string, typ types.Type, offset int) *Symbol {
	sym := &Symbol{Name: name, Type: typ, Size: types.SizeOf(typ), Offset: offset, Temp: true}
	t.insert(sym)
	return sym
}

func (t *Table) insert(sym *Symbol) {
	t.symbols[sym.Name] = sym
	t.order = append(t.order, sym)
}

// Lookup searches only this node.
func (t *Table) Lookup(name string) *Symbol {
	return t.symbols[name]
}

// Resolve searches this node and then each ancestor. It returns nil when no
// scope on the chain declares name.
func (t *Table) Resolve(name string) *Symbol {
	for n := t; n != nil; n = n.parent {
		if sym, ok := n.symbols[name]; ok {
			return sym
		}
	}
	return nil
}

func (t *Table) resolveOrLog(op, name string) *Symbol {
	sym := t.Resolve(name)
	if sym == nil {
		log.Printf("symtab: %s: %q not found from scope %q", op, name, t.Name)
	}
	return sym
}

// MarkUsed records that name was read.
func (t *Table) MarkUsed(name string) {
	if sym := t.resolveOrLog("mark used", name); sym != nil {
		sym.Used = true
	}
}

// MarkDefined records that name received a value.
func (t *Table) MarkDefined(name string) {
	if sym := t.resolveOrLog("mark defined", name); sym != nil {
		sym.HasValue = true
	}
}

// IsUsed reports whether name was ever read. Unknown names report false.
func (t *Table) IsUsed(name string) bool {
	sym := t.resolveOrLog("is used", name)
	return sym != nil && sym.Used
}

// HasValue reports whether name was ever assigned. Unknown names report false.
func (t *Table) HasValue(name string) bool {
	sym := t.resolveOrLog("has value", name)
	return sym != nil && sym.HasValue
}

// Walk visits t and its descendants depth-first in creation order.
func (t *Table) Walk(fn func(*Table)) {
	fn(t)
	for _, c := range t.children {
		c.Walk(fn)
	}
}

// LowWater returns the deepest offset reserved anywhere in the subtree
// rooted at t. Temporaries are allocated below it.
func (t *Table) LowWater() int {
	low := t.low
	for _, c := range t.children {
		if l := c.LowWater(); l < low {
			low = l
		}
	}
	return low
}

// String returns a deterministically ordered dump of the subtree.
func (t *Table) String() string {
	var sb strings.Builder
	t.dump(&sb, 0)
	return sb.String()
}

func (t *Table) dump(sb *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(sb, "%s%s %s:\n", indent, t.Kind, t.Name)

	names := make([]string, 0, len(t.symbols))
	for name := range t.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sym := t.symbols[name]
		switch {
		case sym.Global:
			fmt.Fprintf(sb, "%s  %-20s  Global (Size: %d, Type: %s)\n", indent, name, sym.Size, sym.Type)
		case sym.IsParam():
			fmt.Fprintf(sb, "%s  %-20s  Param #%d (Type: %s)\n", indent, name, sym.Position, sym.Type)
		default:
			fmt.Fprintf(sb, "%s  %-20s  Offset: %d (Size: %d, Type: %s)\n", indent, name, sym.Offset, sym.Size, sym.Type)
		}
	}
	for _, c := range t.children {
		c.dump(sb, depth+1)
	}
}
