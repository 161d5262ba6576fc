// Package condition holds the static search-condition catalogs: the discrete
// range buckets and the categorical value lists clients may filter by. A
// catalog is loaded once at startup and never mutated.
package condition

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sumika-cloud/sumika/internal/domain"
)

// Unbounded marks a bucket edge with no bound.
const Unbounded = -1

// Bucket is one catalog-defined numeric sub-range. The compiled predicate for
// a bucket is the half-open range [Min, Max); an Unbounded edge emits no term.
type Bucket struct {
	ID  int64 `json:"id"`
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// BoundedMin reports whether the bucket has a lower bound.
func (b Bucket) BoundedMin() bool { return b.Min != Unbounded }

// BoundedMax reports whether the bucket has an upper bound.
func (b Bucket) BoundedMax() bool { return b.Max != Unbounded }

// RangeCondition is the ordered bucket list for one numeric attribute.
type RangeCondition struct {
	Prefix string   `json:"prefix"`
	Suffix string   `json:"suffix"`
	Ranges []Bucket `json:"ranges"`
}

// Bucket looks a bucket up by its index. An index outside the list is a
// caller error.
func (rc RangeCondition) Bucket(id int64) (Bucket, error) {
	if id < 0 || id >= int64(len(rc.Ranges)) {
		return Bucket{}, fmt.Errorf("%w: bucket %d of %d", domain.ErrInvalidSelector, id, len(rc.Ranges))
	}
	return rc.Ranges[id], nil
}

// validate checks the catalog invariants the query compiler relies on:
// ids match positions, buckets are ordered and contiguous, and unbounded
// edges appear only at the ends.
func (rc RangeCondition) validate(attr string) error {
	for i, b := range rc.Ranges {
		if b.ID != int64(i) {
			return fmt.Errorf("%s: bucket at position %d has id %d", attr, i, b.ID)
		}
		if !b.BoundedMin() && i != 0 {
			return fmt.Errorf("%s: bucket %d has an unbounded min", attr, i)
		}
		if !b.BoundedMax() && i != len(rc.Ranges)-1 {
			return fmt.Errorf("%s: bucket %d has an unbounded max", attr, i)
		}
		if i > 0 {
			prev := rc.Ranges[i-1]
			if prev.BoundedMax() && b.BoundedMin() && b.Min != prev.Max {
				return fmt.Errorf("%s: bucket %d min %d does not continue bucket %d max %d",
					attr, i, b.Min, i-1, prev.Max)
			}
		}
	}
	return nil
}

// ListCondition is the closed set of values for one categorical attribute.
type ListCondition struct {
	List []string `json:"list"`
}

// ChairCatalog is the chair search-condition document.
type ChairCatalog struct {
	Price   RangeCondition `json:"price"`
	Height  RangeCondition `json:"height"`
	Width   RangeCondition `json:"width"`
	Depth   RangeCondition `json:"depth"`
	Color   ListCondition  `json:"color"`
	Feature ListCondition  `json:"feature"`
	Kind    ListCondition  `json:"kind"`

	raw json.RawMessage
}

// Raw returns the catalog document bytes exactly as loaded, for the
// describe-search-conditions operation.
func (c *ChairCatalog) Raw() json.RawMessage { return c.raw }

// EstateCatalog is the estate search-condition document.
type EstateCatalog struct {
	DoorHeight RangeCondition `json:"doorHeight"`
	DoorWidth  RangeCondition `json:"doorWidth"`
	Rent       RangeCondition `json:"rent"`
	Feature    ListCondition  `json:"feature"`

	raw json.RawMessage
}

// Raw returns the catalog document bytes exactly as loaded.
func (c *EstateCatalog) Raw() json.RawMessage { return c.raw }

// LoadChair reads and validates the chair catalog document.
func LoadChair(path string) (*ChairCatalog, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read chair catalog: %w", err)
	}

	var c ChairCatalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse chair catalog: %w", err)
	}
	c.raw = data

	for attr, rc := range map[string]RangeCondition{
		"price": c.Price, "height": c.Height, "width": c.Width, "depth": c.Depth,
	} {
		if len(rc.Ranges) == 0 {
			return nil, fmt.Errorf("chair catalog: %s has no ranges", attr)
		}
		if err := rc.validate(attr); err != nil {
			return nil, fmt.Errorf("chair catalog: %w", err)
		}
	}
	return &c, nil
}

// LoadEstate reads and validates the estate catalog document.
func LoadEstate(path string) (*EstateCatalog, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read estate catalog: %w", err)
	}

	var c EstateCatalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse estate catalog: %w", err)
	}
	c.raw = data

	for attr, rc := range map[string]RangeCondition{
		"doorHeight": c.DoorHeight, "doorWidth": c.DoorWidth, "rent": c.Rent,
	} {
		if len(rc.Ranges) == 0 {
			return nil, fmt.Errorf("estate catalog: %s has no ranges", attr)
		}
		if err := rc.validate(attr); err != nil {
			return nil, fmt.Errorf("estate catalog: %w", err)
		}
	}
	return &c, nil
}
