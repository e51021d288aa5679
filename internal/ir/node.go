// Package ir defines the expression tree produced by lifting a function and
// its canonical text form.
//
// An expression node carries an operation tag and an ordered list of
// operands. Operands are nested nodes, grouped operand lists, or terminal
// literals. The canonical form is what templates are matched against, so
// every character it emits is controlled here rather than left to a generic
// printer.
package ir

import (
	"errors"
	"fmt"
)

// Operand is one operand of an expression node: *Node, List, Int, Uint, Str
// or Ref.
type Operand interface {
	operand()
}

// Int is a signed integer literal.
type Int int64

// Uint is an unsigned integer literal, typically an address.
type Uint uint64

// Str is a string literal.
type Str string

// Ref is an opaque reference such as a register or variable name.
type Ref string

// List is a grouped operand list, e.g. the arguments of a call.
type List []Operand

// Node is one IR expression.
type Node struct {
	// Op is the operation tag. Never empty.
	Op string

	// Operands in the order produced by the lifter.
	Operands []Operand

	// Addr is the address of the instruction the node was lifted from.
	// It is not part of the canonical form.
	Addr uint64
}

func (Int) operand()   {}
func (Uint) operand()  {}
func (Str) operand()   {}
func (Ref) operand()   {}
func (List) operand()  {}
func (*Node) operand() {}

// ErrEmptyOp is returned by Validate for a node without an operation tag.
var ErrEmptyOp = errors.New("expression node has an empty operation tag")

// NewNode builds a node. It panics on an empty tag since such a node can
// never be rendered unambiguously.
func NewNode(op string, operands ...Operand) *Node {
	if op == "" {
		panic(ErrEmptyOp)
	}
	return &Node{Op: op, Operands: operands}
}

// Validate walks the tree and reports the first malformed node.
func Validate(n *Node) error {
	if n == nil {
		return errors.New("nil expression node")
	}
	if n.Op == "" {
		return ErrEmptyOp
	}
	for i, op := range n.Operands {
		if err := validateOperand(op); err != nil {
			return fmt.Errorf("%s operand %d: %w", n.Op, i, err)
		}
	}
	return nil
}

func validateOperand(op Operand) error {
	switch v := op.(type) {
	case nil:
		return errors.New("nil operand")
	case *Node:
		return Validate(v)
	case List:
		for i, elem := range v {
			if err := validateOperand(elem); err != nil {
				return fmt.Errorf("list element %d: %w", i, err)
			}
		}
	}
	return nil
}

// Function is a lifted function. The start address is unique within one
// image.
type Function struct {
	Start uint64
	End   uint64
	Name  string
}

// Contains reports whether addr lies inside the function's byte range.
func (f *Function) Contains(addr uint64) bool {
	return addr >= f.Start && addr < f.End
}

func (f *Function) String() string {
	return fmt.Sprintf("%s@0x%x", f.Name, f.Start)
}
