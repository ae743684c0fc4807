package querylang

// Node is a node of the filter expression tree.
type Node interface {
	node()
}

// BinaryExpr joins two expressions with AND or OR.
type BinaryExpr struct {
	Op    string // "AND" or "OR"
	Left  Node
	Right Node
}

// NotExpr negates an expression.
type NotExpr struct {
	Expr Node
}

// Comparison compares a field or property against a literal. The parser
// always puts the reference on the left, mirroring the operator if needed.
type Comparison struct {
	Ref     Ref
	Op      string // = != > >= < <= LIKE
	Literal Literal
	Pos     int
}

// Ref names what a comparison reads: a core column (@level) or a property.
type Ref struct {
	Name  string
	Field bool
	Pos   int
}

// LiteralKind classifies a literal value.
type LiteralKind int

const (
	LitString LiteralKind = iota
	LitNumber
	LitBool
	LitNull
)

// Literal is a constant operand.
type Literal struct {
	Kind  LiteralKind
	Value string
	Pos   int
}

func (BinaryExpr) node() {}
func (NotExpr) node()    {}
func (Comparison) node() {}
