// Package search holds the faceted-search query compiler: a structured
// predicate builder plus the selector and pagination translation shared by
// the chair and estate search paths.
package search

import (
	"strconv"
	"strings"
)

// Predicate is an ordered conjunction of SQL fragments with ? placeholders
// and their bind parameters. Fragments are code-authored; user input only
// ever travels through the parameter list. The count query and the page
// query for one search are always rendered from the same Predicate, so the
// reported total is consistent with the page contents.
type Predicate struct {
	terms []string
	args  []any
}

// Where appends one fragment and its parameters.
func (p *Predicate) Where(expr string, args ...any) {
	p.terms = append(p.terms, expr)
	p.args = append(p.args, args...)
}

// Empty reports whether no term has been added.
func (p *Predicate) Empty() bool { return len(p.terms) == 0 }

// Args returns a copy of the bind parameters in placeholder order.
func (p *Predicate) Args() []any {
	out := make([]any, len(p.args))
	copy(out, p.args)
	return out
}

// SQL renders the terms joined with AND, rewriting each ? to a positional
// $n placeholder numbered from start. It returns the clause and the next
// free placeholder index, so callers can append LIMIT/OFFSET parameters.
func (p *Predicate) SQL(start int) (string, int) {
	var sb strings.Builder
	n := start
	for i, term := range p.terms {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		for _, r := range term {
			if r == '?' {
				sb.WriteByte('$')
				sb.WriteString(strconv.Itoa(n))
				n++
				continue
			}
			sb.WriteRune(r)
		}
	}
	return sb.String(), n
}

// Placeholders returns n comma-separated ? placeholders for IN lists.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
