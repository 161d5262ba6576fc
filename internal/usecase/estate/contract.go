package estate

import (
	"context"

	"github.com/sumika-cloud/sumika/internal/domain"
	"github.com/sumika-cloud/sumika/internal/domain/geo"
	"github.com/sumika-cloud/sumika/internal/domain/search"
)

// Repository defines the storage contract for estates.
type Repository interface {
	GetByID(ctx context.Context, id int64) (domain.Estate, error)
	LowPriced(ctx context.Context, limit int) ([]domain.Estate, error)
	Search(ctx context.Context, pred *search.Predicate, featureIDs []int64, page search.Page) (total int64, estates []domain.Estate, err error)
	SearchInPolygon(ctx context.Context, bounds geo.Bounds, polygonWKT string, limit int) ([]domain.Estate, error)
	RecommendedForChair(ctx context.Context, c domain.Chair, limit int) ([]domain.Estate, error)
}

// ChairReader resolves the chair a recommendation is anchored on. The
// lookup ignores stock on purpose: recommendations stay stable while a
// chair is sold out.
type ChairReader interface {
	GetByID(ctx context.Context, id int64) (domain.Chair, error)
}
