package chair

import (
	"context"

	"github.com/sumika-cloud/sumika/internal/db/postgres"
	"github.com/sumika-cloud/sumika/internal/domain"
	"github.com/sumika-cloud/sumika/internal/domain/search"
)

// Repository defines the storage contract for chairs.
type Repository interface {
	GetByID(ctx context.Context, id int64) (domain.Chair, error)
	LowPriced(ctx context.Context, limit int) ([]domain.Chair, error)
	Search(ctx context.Context, pred *search.Predicate, featureIDs []int64, page search.Page) (total int64, chairs []domain.Chair, err error)
	LockForPurchase(ctx context.Context, tx postgres.Querier, id int64) (domain.Chair, error)
	DecrementStock(ctx context.Context, tx postgres.Querier, id int64) error
}

// TxRunner runs a function inside a guarded transaction.
type TxRunner interface {
	InTransaction(ctx context.Context, name string, fn func(ctx context.Context, tx postgres.Tx) error) error
}
