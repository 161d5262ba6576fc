package ingest

import (
	"context"

	"github.com/sumika-cloud/sumika/internal/db/postgres"
	"github.com/sumika-cloud/sumika/internal/domain"
)

// TxRunner runs a function inside a guarded transaction.
type TxRunner interface {
	InTransaction(ctx context.Context, name string, fn func(ctx context.Context, tx postgres.Tx) error) error
}

// ChairWriter writes chair batches inside the ingest transaction.
type ChairWriter interface {
	BulkInsert(ctx context.Context, tx postgres.Querier, chairs []domain.Chair) error
	BulkInsertFeatures(ctx context.Context, tx postgres.Querier, rows []domain.FeatureRow) error
}

// EstateWriter writes estate batches inside the ingest transaction.
type EstateWriter interface {
	BulkInsert(ctx context.Context, tx postgres.Querier, estates []domain.Estate) error
	BulkInsertFeatures(ctx context.Context, tx postgres.Querier, rows []domain.FeatureRow) error
}
