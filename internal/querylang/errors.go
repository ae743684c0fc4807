package querylang

import "fmt"

// SyntaxError reports a malformed filter expression. Pos is the byte offset
// in Query where the problem was detected.
type SyntaxError struct {
	Query string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("query syntax error at position %d: %s", e.Pos, e.Msg)
}
