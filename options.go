package sumika

import (
	"time"

	"go.uber.org/zap"
)

type clientConfig struct {
	databaseURL       string
	chairCatalogPath  string
	estateCatalogPath string
	logger            *zap.Logger
	readinessTimeout  time.Duration
	ingestBatchSize   int
}

// Option configures the Client.
type Option func(*clientConfig)

// WithDatabaseURL sets the PostgreSQL connection URL.
func WithDatabaseURL(url string) Option {
	return func(c *clientConfig) { c.databaseURL = url }
}

// WithCatalogPaths sets the chair and estate search-condition documents.
func WithCatalogPaths(chairPath, estatePath string) Option {
	return func(c *clientConfig) {
		c.chairCatalogPath = chairPath
		c.estateCatalogPath = estatePath
	}
}

// WithLogger sets the logger used by the transaction guard and services.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}

// WithReadinessTimeout bounds how long New waits for the database.
func WithReadinessTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		if d > 0 {
			c.readinessTimeout = d
		}
	}
}

// WithIngestBatchSize overrides the bulk-ingest rows-per-insert batch size.
func WithIngestBatchSize(n int) Option {
	return func(c *clientConfig) { c.ingestBatchSize = n }
}

func noopLogger() *zap.Logger { return zap.NewNop() }
