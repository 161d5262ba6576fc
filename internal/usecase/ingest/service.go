// Package ingest loads chair and estate CSV snapshots into the database in
// batched, single-transaction imports.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/sumika-cloud/sumika/internal/db/postgres"
	"github.com/sumika-cloud/sumika/internal/domain"
	"github.com/sumika-cloud/sumika/internal/domain/feature"
	"github.com/sumika-cloud/sumika/internal/logger"
)

const (
	defaultBatchSize = 1000

	chairFieldCount  = 13
	estateFieldCount = 12
)

// Service streams CSV uploads into batched inserts. Each upload commits or
// rolls back as a whole.
type Service struct {
	tx          TxRunner
	chairs      ChairWriter
	estates     EstateWriter
	chairVocab  *feature.Vocabulary
	estateVocab *feature.Vocabulary
	batchSize   int
}

// New creates an ingest service.
func New(tx TxRunner, chairs ChairWriter, estates EstateWriter, chairVocab, estateVocab *feature.Vocabulary) *Service {
	return &Service{
		tx:          tx,
		chairs:      chairs,
		estates:     estates,
		chairVocab:  chairVocab,
		estateVocab: estateVocab,
		batchSize:   defaultBatchSize,
	}
}

// WithBatchSize overrides the rows-per-insert batch size.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// IngestChairs loads a chair CSV snapshot. Returns the number of rows
// inserted.
func (s *Service) IngestChairs(ctx context.Context, r io.Reader) (int, error) {
	job := uuid.NewString()
	log := logger.FromContext(ctx).With(zap.String("job", job))
	log.Info("chair ingest started")

	total := 0
	err := s.tx.InTransaction(ctx, "chair_ingest", func(ctx context.Context, tx postgres.Tx) error {
		csvr := csv.NewReader(r)
		csvr.FieldsPerRecord = chairFieldCount

		batch := make([]domain.Chair, 0, s.batchSize)
		for {
			rec, err := csvr.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("%w: %v", domain.ErrMalformedUpload, err)
			}

			c, err := parseChairRecord(rec)
			if err != nil {
				return err
			}
			batch = append(batch, c)

			if len(batch) == s.batchSize {
				if err := s.flushChairs(ctx, tx, batch); err != nil {
					return err
				}
				total += len(batch)
				batch = batch[:0]
			}
		}

		if err := s.flushChairs(ctx, tx, batch); err != nil {
			return err
		}
		total += len(batch)
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Info("chair ingest finished", zap.Int("rows", total))
	return total, nil
}

// IngestEstates loads an estate CSV snapshot. Returns the number of rows
// inserted.
func (s *Service) IngestEstates(ctx context.Context, r io.Reader) (int, error) {
	job := uuid.NewString()
	log := logger.FromContext(ctx).With(zap.String("job", job))
	log.Info("estate ingest started")

	total := 0
	err := s.tx.InTransaction(ctx, "estate_ingest", func(ctx context.Context, tx postgres.Tx) error {
		csvr := csv.NewReader(r)
		csvr.FieldsPerRecord = estateFieldCount

		batch := make([]domain.Estate, 0, s.batchSize)
		for {
			rec, err := csvr.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("%w: %v", domain.ErrMalformedUpload, err)
			}

			e, err := parseEstateRecord(rec)
			if err != nil {
				return err
			}
			batch = append(batch, e)

			if len(batch) == s.batchSize {
				if err := s.flushEstates(ctx, tx, batch); err != nil {
					return err
				}
				total += len(batch)
				batch = batch[:0]
			}
		}

		if err := s.flushEstates(ctx, tx, batch); err != nil {
			return err
		}
		total += len(batch)
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Info("estate ingest finished", zap.Int("rows", total))
	return total, nil
}

func (s *Service) flushChairs(ctx context.Context, tx postgres.Tx, batch []domain.Chair) error {
	if len(batch) == 0 {
		return nil
	}
	if err := s.chairs.BulkInsert(ctx, tx, batch); err != nil {
		return err
	}

	var rows []domain.FeatureRow
	for _, c := range batch {
		rows = append(rows, featureRows(s.chairVocab, c.ID, c.Features)...)
	}
	return s.chairs.BulkInsertFeatures(ctx, tx, rows)
}

func (s *Service) flushEstates(ctx context.Context, tx postgres.Tx, batch []domain.Estate) error {
	if len(batch) == 0 {
		return nil
	}
	if err := s.estates.BulkInsert(ctx, tx, batch); err != nil {
		return err
	}

	var rows []domain.FeatureRow
	for _, e := range batch {
		rows = append(rows, featureRows(s.estateVocab, e.ID, e.Features)...)
	}
	return s.estates.BulkInsertFeatures(ctx, tx, rows)
}

// featureRows normalizes one entity's comma-joined feature text. Labels
// outside the vocabulary are dropped without failing the upload, and a label
// repeated within one row yields a single association.
func featureRows(vocab *feature.Vocabulary, entityID int64, features string) []domain.FeatureRow {
	labels := lo.Uniq(strings.Split(features, ","))
	return lo.FilterMap(labels, func(label string, _ int) (domain.FeatureRow, bool) {
		id, ok := vocab.ID(label)
		return domain.FeatureRow{EntityID: entityID, FeatureID: id}, ok
	})
}

func parseChairRecord(rec []string) (domain.Chair, error) {
	var (
		c   domain.Chair
		err error
	)
	for _, f := range []struct {
		dst  *int64
		pos  int
		name string
	}{
		{&c.ID, 0, "id"},
		{&c.Price, 4, "price"},
		{&c.Height, 5, "height"},
		{&c.Width, 6, "width"},
		{&c.Depth, 7, "depth"},
		{&c.Popularity, 11, "popularity"},
		{&c.Stock, 12, "stock"},
	} {
		*f.dst, err = strconv.ParseInt(rec[f.pos], 10, 64)
		if err != nil {
			return domain.Chair{}, fmt.Errorf("%w: chair %s %q", domain.ErrMalformedUpload, f.name, rec[f.pos])
		}
	}

	c.Name = rec[1]
	c.Description = rec[2]
	c.Thumbnail = rec[3]
	c.Color = rec[8]
	c.Features = rec[9]
	c.Kind = rec[10]
	return c, nil
}

func parseEstateRecord(rec []string) (domain.Estate, error) {
	var (
		e   domain.Estate
		err error
	)
	for _, f := range []struct {
		dst  *int64
		pos  int
		name string
	}{
		{&e.ID, 0, "id"},
		{&e.Rent, 7, "rent"},
		{&e.DoorHeight, 8, "door_height"},
		{&e.DoorWidth, 9, "door_width"},
		{&e.Popularity, 11, "popularity"},
	} {
		*f.dst, err = strconv.ParseInt(rec[f.pos], 10, 64)
		if err != nil {
			return domain.Estate{}, fmt.Errorf("%w: estate %s %q", domain.ErrMalformedUpload, f.name, rec[f.pos])
		}
	}

	for _, f := range []struct {
		dst  *float64
		pos  int
		name string
	}{
		{&e.Latitude, 5, "latitude"},
		{&e.Longitude, 6, "longitude"},
	} {
		*f.dst, err = strconv.ParseFloat(rec[f.pos], 64)
		if err != nil {
			return domain.Estate{}, fmt.Errorf("%w: estate %s %q", domain.ErrMalformedUpload, f.name, rec[f.pos])
		}
	}

	e.Name = rec[1]
	e.Description = rec[2]
	e.Thumbnail = rec[3]
	e.Address = rec[4]
	e.Features = rec[10]
	return e, nil
}
