// Package sumika is the embeddable SDK entry point: it wires the storage
// layer and the chair/estate services over a PostgreSQL connection without
// going through the HTTP server.
package sumika

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sumika-cloud/sumika/internal/db/postgres"
	"github.com/sumika-cloud/sumika/internal/domain/condition"
	"github.com/sumika-cloud/sumika/internal/domain/feature"
	chairrepo "github.com/sumika-cloud/sumika/internal/repository/chair"
	estaterepo "github.com/sumika-cloud/sumika/internal/repository/estate"
	chairuc "github.com/sumika-cloud/sumika/internal/usecase/chair"
	estateuc "github.com/sumika-cloud/sumika/internal/usecase/estate"
	ingestuc "github.com/sumika-cloud/sumika/internal/usecase/ingest"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the sumika SDK entry point.
type Client struct {
	store   *postgres.Store
	chairs  *chairuc.Service
	estates *estateuc.Service
	ingest  *ingestuc.Service
}

// New creates a Client, connects to the database, and loads the
// search-condition catalogs.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		readinessTimeout: defaultReadinessTimeout,
	}
	for _, o := range opts {
		o(cfg)
	}

	if cfg.databaseURL == "" {
		return nil, errors.New("sumika: database url required (use WithDatabaseURL)")
	}
	if cfg.chairCatalogPath == "" || cfg.estateCatalogPath == "" {
		return nil, errors.New("sumika: catalog paths required (use WithCatalogPaths)")
	}

	ctx := context.Background()
	store, err := postgres.NewStore(ctx, cfg.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("sumika: create store: %w", err)
	}
	if err := store.WaitForReady(ctx, cfg.readinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("sumika: database not ready: %w", err)
	}

	client, err := wireClient(store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return client, nil
}

func wireClient(store *postgres.Store, cfg *clientConfig) (*Client, error) {
	chairCatalog, err := condition.LoadChair(cfg.chairCatalogPath)
	if err != nil {
		return nil, fmt.Errorf("sumika: %w", err)
	}
	estateCatalog, err := condition.LoadEstate(cfg.estateCatalogPath)
	if err != nil {
		return nil, fmt.Errorf("sumika: %w", err)
	}
	chairVocab := feature.NewVocabulary(chairCatalog.Feature.List)
	estateVocab := feature.NewVocabulary(estateCatalog.Feature.List)

	logger := cfg.logger
	if logger == nil {
		logger = noopLogger()
	}

	guard := postgres.NewGuard(store.Pool(), logger)
	chairRepo := chairrepo.New(store.Pool())
	estateRepo := estaterepo.New(store.Pool())

	ingestSvc := ingestuc.New(guard, chairRepo, estateRepo, chairVocab, estateVocab)
	if cfg.ingestBatchSize > 0 {
		ingestSvc = ingestSvc.WithBatchSize(cfg.ingestBatchSize)
	}

	return &Client{
		store:   store,
		chairs:  chairuc.New(chairRepo, guard, chairCatalog, chairVocab),
		estates: estateuc.New(estateRepo, chairRepo, estateCatalog, estateVocab),
		ingest:  ingestSvc,
	}, nil
}

// Chairs returns the chair service.
func (c *Client) Chairs() *chairuc.Service { return c.chairs }

// Estates returns the estate service.
func (c *Client) Estates() *estateuc.Service { return c.estates }

// Ingest returns the bulk-ingest service.
func (c *Client) Ingest() *ingestuc.Service { return c.ingest }

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error { return c.store.Ping(ctx) }

// Close releases the connection pool.
func (c *Client) Close() { c.store.Close() }
