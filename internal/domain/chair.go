package domain

// Chair is a catalog row. Features holds the denormalized comma-separated
// feature labels as uploaded; the chair_feature association rows are derived
// from it at ingest time and are the representation search queries use.
type Chair struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	Price       int64  `json:"price"`
	Height      int64  `json:"height"`
	Width       int64  `json:"width"`
	Depth       int64  `json:"depth"`
	Color       string `json:"color"`
	Features    string `json:"features"`
	Kind        string `json:"kind"`
	Popularity  int64  `json:"popularity"`
	Stock       int64  `json:"stock"`
}

// FeatureRow is one association-table row: an entity has a feature.
type FeatureRow struct {
	EntityID  int64
	FeatureID int64
}
