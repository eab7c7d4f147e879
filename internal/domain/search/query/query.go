// Package query is a backend-neutral query tree. The store layer renders it into its own syntax.
package query

// Node is a query clause.
type Node interface {
	node()
}

// MatchAll matches every document.
type MatchAll struct{}

// Term matches an exact (or, on text fields, analyzed) value in one field.
type Term struct {
	Field string
	Value string
	Boost float64
}

// Match matches any of Terms in any of Fields (analyzed, OR-combined).
type Match struct {
	Fields []string
	Terms  []string
	Boost  float64
}

// Phrase matches Text as an exact word sequence.
type Phrase struct {
	Field string
	Text  string
	Boost float64
}

// Fuzzy matches Term with automatic edit-distance tolerance.
type Fuzzy struct {
	Field string
	Term  string
}

// Prefix matches words starting with Value.
type Prefix struct {
	Field string
	Value string
}

// DisMax scores the best clause plus TieBreaker times the rest.
type DisMax struct {
	TieBreaker float64
	Clauses    []Node
}

// And requires every clause.
type And struct {
	Clauses []Node
}

func (MatchAll) node() {}
func (Term) node()     {}
func (Match) node()    {}
func (Phrase) node()   {}
func (Fuzzy) node()    {}
func (Prefix) node()   {}
func (DisMax) node()   {}
func (And) node()      {}

// AutoFuzziness mirrors the usual AUTO edit distance: 0 up to 2 runes, 1 up to 5, 2 beyond.
func AutoFuzziness(term string) int {
	n := len([]rune(term))
	switch {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}
