package condition

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sumika-cloud/sumika/internal/domain"
)

const chairDoc = `{
  "price": {
    "prefix": "",
    "suffix": "円",
    "ranges": [
      {"id": 0, "min": -1, "max": 3000},
      {"id": 1, "min": 3000, "max": 6000},
      {"id": 2, "min": 6000, "max": -1}
    ]
  },
  "height": {"prefix": "", "suffix": "cm", "ranges": [{"id": 0, "min": -1, "max": -1}]},
  "width": {"prefix": "", "suffix": "cm", "ranges": [{"id": 0, "min": -1, "max": 80}, {"id": 1, "min": 80, "max": -1}]},
  "depth": {"prefix": "", "suffix": "cm", "ranges": [{"id": 0, "min": -1, "max": 80}, {"id": 1, "min": 80, "max": -1}]},
  "color": {"list": ["黒", "白"]},
  "feature": {"list": ["ヘッドレスト付き", "肘掛け付き"]},
  "kind": {"list": ["ゲーミングチェア"]}
}`

func writeDoc(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadChair(t *testing.T) {
	c, err := LoadChair(writeDoc(t, chairDoc))
	if err != nil {
		t.Fatalf("LoadChair: %v", err)
	}

	if got := len(c.Price.Ranges); got != 3 {
		t.Errorf("expected 3 price ranges, got %d", got)
	}
	if c.Price.Suffix != "円" {
		t.Errorf("unexpected price suffix %q", c.Price.Suffix)
	}
	if len(c.Feature.List) != 2 {
		t.Errorf("expected 2 feature labels, got %d", len(c.Feature.List))
	}
	if !bytes.Equal(c.Raw(), []byte(chairDoc)) {
		t.Error("Raw() must return the catalog document verbatim")
	}
}

func TestRangeCondition_Bucket(t *testing.T) {
	c, err := LoadChair(writeDoc(t, chairDoc))
	if err != nil {
		t.Fatalf("LoadChair: %v", err)
	}

	b, err := c.Price.Bucket(1)
	if err != nil {
		t.Fatalf("Bucket(1): %v", err)
	}
	if b.Min != 3000 || b.Max != 6000 {
		t.Errorf("unexpected bucket %+v", b)
	}
	if !b.BoundedMin() || !b.BoundedMax() {
		t.Error("bucket 1 must be bounded on both ends")
	}

	first, _ := c.Price.Bucket(0)
	if first.BoundedMin() {
		t.Error("first bucket min must be unbounded")
	}
	last, _ := c.Price.Bucket(2)
	if last.BoundedMax() {
		t.Error("last bucket max must be unbounded")
	}

	for _, id := range []int64{-1, 3, 100} {
		if _, err := c.Price.Bucket(id); !errors.Is(err, domain.ErrInvalidSelector) {
			t.Errorf("Bucket(%d): expected ErrInvalidSelector, got %v", id, err)
		}
	}
}

func TestLoadChair_RejectsBrokenCatalogs(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "id gap",
			doc: `{"price": {"ranges": [{"id": 0, "min": -1, "max": 10}, {"id": 2, "min": 10, "max": -1}]},
			       "height": {"ranges": [{"id": 0, "min": -1, "max": -1}]},
			       "width": {"ranges": [{"id": 0, "min": -1, "max": -1}]},
			       "depth": {"ranges": [{"id": 0, "min": -1, "max": -1}]}}`,
		},
		{
			name: "not contiguous",
			doc: `{"price": {"ranges": [{"id": 0, "min": -1, "max": 10}, {"id": 1, "min": 20, "max": -1}]},
			       "height": {"ranges": [{"id": 0, "min": -1, "max": -1}]},
			       "width": {"ranges": [{"id": 0, "min": -1, "max": -1}]},
			       "depth": {"ranges": [{"id": 0, "min": -1, "max": -1}]}}`,
		},
		{
			name: "unbounded min in the middle",
			doc: `{"price": {"ranges": [{"id": 0, "min": -1, "max": 10}, {"id": 1, "min": -1, "max": -1}]},
			       "height": {"ranges": [{"id": 0, "min": -1, "max": -1}]},
			       "width": {"ranges": [{"id": 0, "min": -1, "max": -1}]},
			       "depth": {"ranges": [{"id": 0, "min": -1, "max": -1}]}}`,
		},
		{
			name: "missing attribute",
			doc:  `{"price": {"ranges": [{"id": 0, "min": -1, "max": -1}]}}`,
		},
		{
			name: "not json",
			doc:  `not json`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadChair(writeDoc(t, tc.doc)); err == nil {
				t.Error("expected load error")
			}
		})
	}
}

func TestLoadEstate(t *testing.T) {
	doc := `{
	  "doorHeight": {"prefix": "", "suffix": "cm", "ranges": [{"id": 0, "min": -1, "max": 80}, {"id": 1, "min": 80, "max": -1}]},
	  "doorWidth": {"prefix": "", "suffix": "cm", "ranges": [{"id": 0, "min": -1, "max": 80}, {"id": 1, "min": 80, "max": -1}]},
	  "rent": {"prefix": "", "suffix": "円", "ranges": [{"id": 0, "min": -1, "max": 50000}, {"id": 1, "min": 50000, "max": -1}]},
	  "feature": {"list": ["最上階"]}
	}`

	c, err := LoadEstate(writeDoc(t, doc))
	if err != nil {
		t.Fatalf("LoadEstate: %v", err)
	}
	if len(c.Rent.Ranges) != 2 {
		t.Errorf("expected 2 rent ranges, got %d", len(c.Rent.Ranges))
	}
	if !bytes.Equal(c.Raw(), []byte(doc)) {
		t.Error("Raw() must return the catalog document verbatim")
	}
}
