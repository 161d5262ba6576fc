package search

import (
	"fmt"
	"strconv"

	"github.com/sumika-cloud/sumika/internal/domain"
	"github.com/sumika-cloud/sumika/internal/domain/condition"
)

// AddRange translates one optional range selector into predicate terms.
// An empty selector is an absent filter. A selector that does not parse or
// points outside the bucket list is a caller error. A bucket with an
// unbounded edge emits no term for that edge, so a fully unbounded bucket
// is a legal no-op.
func AddRange(p *Predicate, column string, rc condition.RangeCondition, selector string) error {
	if selector == "" {
		return nil
	}
	id, err := strconv.ParseInt(selector, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s selector %q", domain.ErrInvalidSelector, column, selector)
	}
	b, err := rc.Bucket(id)
	if err != nil {
		return fmt.Errorf("%s: %w", column, err)
	}
	if b.BoundedMin() {
		p.Where(column+" >= ?", b.Min)
	}
	if b.BoundedMax() {
		p.Where(column+" < ?", b.Max)
	}
	return nil
}

// AddEquals translates one optional exact-match categorical selector.
func AddEquals(p *Predicate, column, value string) {
	if value == "" {
		return
	}
	p.Where(column+" = ?", value)
}

// Page is a validated pagination window.
type Page struct {
	Limit  int
	Offset int
}

// ParsePage validates page and perPage as non-negative base-10 integers and
// computes offset = page * perPage. No upper bound on perPage is enforced
// here; that constraint, if wanted, belongs to the caller.
func ParsePage(page, perPage string) (Page, error) {
	n, err := strconv.Atoi(page)
	if err != nil || n < 0 {
		return Page{}, fmt.Errorf("%w: page %q", domain.ErrInvalidPagination, page)
	}
	size, err := strconv.Atoi(perPage)
	if err != nil || size < 0 {
		return Page{}, fmt.Errorf("%w: perPage %q", domain.ErrInvalidPagination, perPage)
	}
	return Page{Limit: size, Offset: n * size}, nil
}
