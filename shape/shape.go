package shape

import (
	"strconv"
	"strings"

	. "github.com/stevegt/goadapt"
	"github.com/xiam/sexpr/ast"
	"github.com/xiam/sexpr/parser"
)

// Shape is the (rows, cols) dimensionality contract a layer expects
// of its input matrix.
type Shape struct {
	Rows int
	Cols int
}

// New returns a Shape with the given dimensions.
func New(rows, cols int) Shape {
	return Shape{Rows: rows, Cols: cols}
}

// Vec returns the shape of an n-element column vector.
func Vec(n int) Shape {
	return Shape{Rows: n, Cols: 1}
}

// Size returns the number of elements in a matrix of this shape.
func (s Shape) Size() int {
	return s.Rows * s.Cols
}

// String returns the shape in the form "(R x C)".
func (s Shape) String() (out string) {
	out = Spf("(%d x %d)", s.Rows, s.Cols)
	return
}

// Equal returns true if both dimensions match.
func (s Shape) Equal(other Shape) bool {
	return s.Rows == other.Rows && s.Cols == other.Cols
}

// Of returns the shape of the given matrix.  A nil or empty matrix
// has shape (0 x 0).  The column count is taken from the first row;
// use Regular to verify the matrix is rectangular first.
func Of(m [][]float64) (s Shape) {
	s.Rows = len(m)
	if s.Rows > 0 {
		s.Cols = len(m[0])
	}
	return
}

// Regular reports whether every row of m has the same length.
func Regular(m [][]float64) bool {
	for i := 1; i < len(m); i++ {
		if len(m[i]) != len(m[0]) {
			return false
		}
	}
	return true
}

// NetShape is a parsed description of a layer stack.  The DSL is an
// s-expression whose head symbol is the network name, followed by one
// expression per layer giving the activation name and node count:
//
//	(xor (sigmoid 3) (linear 1))
type NetShape struct {
	Name   string
	Layers []LayerShape
}

// LayerShape describes one layer of a NetShape.
type LayerShape struct {
	Activation string
	Size       int
}

// String returns the canonical DSL text for the shape.
func (s *NetShape) String() (out string) {
	parts := []string{s.Name}
	for _, layer := range s.Layers {
		parts = append(parts, Spf("(%s %d)", layer.Activation, layer.Size))
	}
	out = Spf("(%s)", strings.Join(parts, " "))
	return
}

// SyntaxError is a syntax error.
type SyntaxError struct {
	msg  string
	node *ast.Node
}

func (e *SyntaxError) Error() string {
	return Spf("[shape:%s] %s:\n%s", e.node.Token().Pos, e.msg, e.node.String())
}

// synck raises a syntax err if cond is false.
func synck(node *ast.Node, cond bool, args ...interface{}) {
	if !cond {
		msg := FormatArgs(args...)
		panic(&SyntaxError{msg, node})
	}
}

// Parse parses DSL text into a NetShape.
func Parse(txt string) (s *NetShape, err error) {
	defer func() {
		if r := recover(); r != nil {
			serr, ok := r.(*SyntaxError)
			if !ok {
				panic(r)
			}
			err = serr
			s = nil
		}
	}()
	root, err := parser.Parse([]byte(txt))
	if err != nil {
		return nil, err
	}

	// root is a list holding a single expression
	synck(root, root.Type() == ast.NodeTypeList, "root is not a list")
	children := root.List()
	synck(root, len(children) == 1, "root has %d children", len(children))
	expr := children[0]
	synck(expr, expr.Type() == ast.NodeTypeExpression, "root's child is not an expression")

	s = parseShape(expr)
	return
}

func parseShape(n *ast.Node) (s *NetShape) {
	s = &NetShape{}

	children := n.List()
	synck(n, len(children) > 0, "missing net name")
	name := children[0]
	synck(name, name.Type() == ast.NodeTypeSymbol, "net name is not a symbol")
	s.Name = name.Encode()

	synck(n, len(children) > 1, "missing layer expressions")
	for i := 1; i < len(children); i++ {
		child := children[i]
		synck(child, child.Type() == ast.NodeTypeExpression, "layer is not an expression")
		s.Layers = append(s.Layers, parseLayer(child))
	}
	return
}

func parseLayer(n *ast.Node) (layer LayerShape) {
	children := n.List()
	synck(n, len(children) == 2, "layer must be (activation count)")
	act := children[0]
	synck(act, act.Type() == ast.NodeTypeSymbol, "activation is not a symbol")
	layer.Activation = act.Encode()
	count := children[1]
	size, cerr := strconv.Atoi(count.Encode())
	synck(count, cerr == nil, "node count is not an integer")
	synck(count, size > 0, "node count must be positive")
	layer.Size = size
	return
}
