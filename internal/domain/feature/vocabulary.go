// Package feature maps human-readable feature labels to the small integer
// ids stored in the association tables.
package feature

// Vocabulary is an immutable label→id mapping for one entity kind. Ids are
// 1-based positions in the catalog's feature list, so the mapping is stable
// across processes as long as the catalog document is.
type Vocabulary struct {
	ids    map[string]int64
	labels []string
}

// NewVocabulary builds a vocabulary from an ordered label list.
func NewVocabulary(labels []string) *Vocabulary {
	ids := make(map[string]int64, len(labels))
	for i, label := range labels {
		ids[label] = int64(i) + 1
	}
	return &Vocabulary{ids: ids, labels: labels}
}

// ID returns the feature id for a label. Unknown labels report ok=false;
// how that is handled differs by path: ingestion drops the label silently,
// search resolves the whole filter to an empty result.
func (v *Vocabulary) ID(label string) (int64, bool) {
	id, ok := v.ids[label]
	return id, ok
}

// IDs translates every label. Any unknown label reports ok=false and no ids.
// An empty input is a valid, empty translation.
func (v *Vocabulary) IDs(labels []string) ([]int64, bool) {
	if len(labels) == 0 {
		return nil, true
	}
	ids := make([]int64, 0, len(labels))
	for _, label := range labels {
		id, ok := v.ids[label]
		if !ok {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// Len returns the vocabulary size.
func (v *Vocabulary) Len() int { return len(v.labels) }
