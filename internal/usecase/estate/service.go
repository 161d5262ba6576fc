// Package estate implements estate search, the polygon draw-to-search
// flow, and doorway-fit recommendations.
package estate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sumika-cloud/sumika/internal/domain"
	"github.com/sumika-cloud/sumika/internal/domain/condition"
	"github.com/sumika-cloud/sumika/internal/domain/feature"
	"github.com/sumika-cloud/sumika/internal/domain/geo"
	"github.com/sumika-cloud/sumika/internal/domain/search"
	"github.com/sumika-cloud/sumika/internal/logger"
)

const (
	lowPricedLimit   = 20
	recommendedLimit = 20
	nazotteLimit     = 50
)

// SearchInput carries the raw query selectors for the faceted search.
type SearchInput struct {
	DoorHeightRangeID string
	DoorWidthRangeID  string
	RentRangeID       string
	Features          []string
	Page              string
	PerPage           string
}

// SearchResult is one page of matches plus the total match count.
type SearchResult struct {
	Count   int64           `json:"count"`
	Estates []domain.Estate `json:"estates"`
}

// Service handles estate queries.
type Service struct {
	repo    Repository
	chairs  ChairReader
	catalog *condition.EstateCatalog
	vocab   *feature.Vocabulary
}

// New creates an estate service.
func New(repo Repository, chairs ChairReader, catalog *condition.EstateCatalog, vocab *feature.Vocabulary) *Service {
	return &Service{repo: repo, chairs: chairs, catalog: catalog, vocab: vocab}
}

// Search compiles the selectors against the condition catalog and runs the
// faceted query.
func (s *Service) Search(ctx context.Context, in SearchInput) (SearchResult, error) {
	pred := &search.Predicate{}
	if err := search.AddRange(pred, "door_height", s.catalog.DoorHeight, in.DoorHeightRangeID); err != nil {
		return SearchResult{}, err
	}
	if err := search.AddRange(pred, "door_width", s.catalog.DoorWidth, in.DoorWidthRangeID); err != nil {
		return SearchResult{}, err
	}
	if err := search.AddRange(pred, "rent", s.catalog.Rent, in.RentRangeID); err != nil {
		return SearchResult{}, err
	}

	if pred.Empty() && len(in.Features) == 0 {
		return SearchResult{}, domain.ErrNoSearchCriteria
	}

	page, err := search.ParsePage(in.Page, in.PerPage)
	if err != nil {
		return SearchResult{}, err
	}

	featureIDs, ok := s.vocab.IDs(in.Features)
	if !ok {
		return SearchResult{Estates: []domain.Estate{}}, nil
	}

	total, estates, err := s.repo.Search(ctx, pred, featureIDs, page)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search estates: %w", err)
	}
	if estates == nil {
		estates = []domain.Estate{}
	}
	return SearchResult{Count: total, Estates: estates}, nil
}

// Nazotte resolves a drawn polygon to the estates inside it. The result is
// capped, not paginated.
func (s *Service) Nazotte(ctx context.Context, coords []geo.Coordinate) (SearchResult, error) {
	poly, err := geo.NewPolygon(coords)
	if err != nil {
		return SearchResult{}, err
	}

	polygonWKT, err := poly.WKT()
	if err != nil {
		return SearchResult{}, err
	}

	estates, err := s.repo.SearchInPolygon(ctx, poly.Bounds(), polygonWKT, nazotteLimit)
	if err != nil {
		return SearchResult{}, fmt.Errorf("nazotte search: %w", err)
	}
	if estates == nil {
		estates = []domain.Estate{}
	}
	return SearchResult{Count: int64(len(estates)), Estates: estates}, nil
}

// LowPriced returns the cheapest listings for the landing page.
func (s *Service) LowPriced(ctx context.Context) ([]domain.Estate, error) {
	estates, err := s.repo.LowPriced(ctx, lowPricedLimit)
	if err != nil {
		return nil, fmt.Errorf("low priced estates: %w", err)
	}
	return estates, nil
}

// Get returns a listing by id.
func (s *Service) Get(ctx context.Context, id int64) (domain.Estate, error) {
	return s.repo.GetByID(ctx, id)
}

// RequestDocument records a viewing-document request for a listing. The
// listing must exist; nothing is persisted beyond the log line.
func (s *Service) RequestDocument(ctx context.Context, id int64, email string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("estate document requested",
		zap.Int64("estate_id", id),
		zap.String("email", email),
	)
	return nil
}

// RecommendedForChair returns listings whose doorway admits the given
// chair. The chair may be sold out.
func (s *Service) RecommendedForChair(ctx context.Context, chairID int64) ([]domain.Estate, error) {
	c, err := s.chairs.GetByID(ctx, chairID)
	if err != nil {
		return nil, err
	}

	estates, err := s.repo.RecommendedForChair(ctx, c, recommendedLimit)
	if err != nil {
		return nil, fmt.Errorf("recommended estates: %w", err)
	}
	return estates, nil
}
