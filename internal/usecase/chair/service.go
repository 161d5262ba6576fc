// Package chair implements chair search, listing, and purchase flows.
package chair

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sumika-cloud/sumika/internal/db/postgres"
	"github.com/sumika-cloud/sumika/internal/domain"
	"github.com/sumika-cloud/sumika/internal/domain/condition"
	"github.com/sumika-cloud/sumika/internal/domain/feature"
	"github.com/sumika-cloud/sumika/internal/domain/search"
	"github.com/sumika-cloud/sumika/internal/logger"
)

const lowPricedLimit = 20

// SearchInput carries the raw query selectors exactly as the client sent
// them. Validation and compilation happen here, not in transport.
type SearchInput struct {
	PriceRangeID  string
	HeightRangeID string
	WidthRangeID  string
	DepthRangeID  string
	Kind          string
	Color         string
	Features      []string
	Page          string
	PerPage       string
}

// SearchResult is one page of matches plus the total match count.
type SearchResult struct {
	Count  int64          `json:"count"`
	Chairs []domain.Chair `json:"chairs"`
}

// Service handles chair queries and the guarded purchase transaction.
type Service struct {
	repo    Repository
	tx      TxRunner
	catalog *condition.ChairCatalog
	vocab   *feature.Vocabulary
}

// New creates a chair service.
func New(repo Repository, tx TxRunner, catalog *condition.ChairCatalog, vocab *feature.Vocabulary) *Service {
	return &Service{repo: repo, tx: tx, catalog: catalog, vocab: vocab}
}

// Search compiles the selectors against the condition catalog and runs the
// faceted query. Results only ever include in-stock chairs.
func (s *Service) Search(ctx context.Context, in SearchInput) (SearchResult, error) {
	pred := &search.Predicate{}
	if err := search.AddRange(pred, "price", s.catalog.Price, in.PriceRangeID); err != nil {
		return SearchResult{}, err
	}
	if err := search.AddRange(pred, "height", s.catalog.Height, in.HeightRangeID); err != nil {
		return SearchResult{}, err
	}
	if err := search.AddRange(pred, "width", s.catalog.Width, in.WidthRangeID); err != nil {
		return SearchResult{}, err
	}
	if err := search.AddRange(pred, "depth", s.catalog.Depth, in.DepthRangeID); err != nil {
		return SearchResult{}, err
	}
	search.AddEquals(pred, "kind", in.Kind)
	search.AddEquals(pred, "color", in.Color)

	if pred.Empty() && len(in.Features) == 0 {
		return SearchResult{}, domain.ErrNoSearchCriteria
	}
	pred.Where("stock > 0")

	page, err := search.ParsePage(in.Page, in.PerPage)
	if err != nil {
		return SearchResult{}, err
	}

	featureIDs, ok := s.vocab.IDs(in.Features)
	if !ok {
		return SearchResult{Chairs: []domain.Chair{}}, nil
	}

	total, chairs, err := s.repo.Search(ctx, pred, featureIDs, page)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search chairs: %w", err)
	}
	if chairs == nil {
		chairs = []domain.Chair{}
	}
	return SearchResult{Count: total, Chairs: chairs}, nil
}

// LowPriced returns the cheapest in-stock chairs for the landing page.
func (s *Service) LowPriced(ctx context.Context) ([]domain.Chair, error) {
	chairs, err := s.repo.LowPriced(ctx, lowPricedLimit)
	if err != nil {
		return nil, fmt.Errorf("low priced chairs: %w", err)
	}
	return chairs, nil
}

// Get returns a chair by id. A sold-out chair is indistinguishable from a
// missing one.
func (s *Service) Get(ctx context.Context, id int64) (domain.Chair, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Chair{}, err
	}
	if c.Stock <= 0 {
		return domain.Chair{}, fmt.Errorf("chair %d sold out: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

// Buy decrements stock under a row lock so concurrent purchases of the
// last unit cannot both succeed.
func (s *Service) Buy(ctx context.Context, id int64, email string) error {
	return s.tx.InTransaction(ctx, "chair_purchase", func(ctx context.Context, tx postgres.Tx) error {
		if _, err := s.repo.LockForPurchase(ctx, tx, id); err != nil {
			return err
		}
		if err := s.repo.DecrementStock(ctx, tx, id); err != nil {
			return err
		}
		logger.FromContext(ctx).Info("chair purchased",
			zap.Int64("chair_id", id),
			zap.String("email", email),
		)
		return nil
	})
}
