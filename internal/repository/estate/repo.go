// Package estate persists rental listings in PostgreSQL, including the
// geospatial polygon search.
package estate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/lo"

	"github.com/sumika-cloud/sumika/internal/db/postgres"
	"github.com/sumika-cloud/sumika/internal/domain"
	"github.com/sumika-cloud/sumika/internal/domain/geo"
	"github.com/sumika-cloud/sumika/internal/domain/search"
)

// querier is the consumer interface for the connection pool (ISP).
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const estateColumns = "id, name, description, thumbnail, address, latitude, longitude, rent, door_height, door_width, features, popularity"

const uniqueViolation = "23505"

// Repo implements the estate read and write contracts over PostgreSQL.
type Repo struct {
	db querier
}

// New creates an estate repository.
func New(db querier) *Repo {
	return &Repo{db: db}
}

func scanEstate(row pgx.Row) (domain.Estate, error) {
	var e domain.Estate
	err := row.Scan(
		&e.ID,
		&e.Name,
		&e.Description,
		&e.Thumbnail,
		&e.Address,
		&e.Latitude,
		&e.Longitude,
		&e.Rent,
		&e.DoorHeight,
		&e.DoorWidth,
		&e.Features,
		&e.Popularity,
	)
	return e, err
}

func collectEstates(rows pgx.Rows) ([]domain.Estate, error) {
	defer rows.Close()

	var estates []domain.Estate
	for rows.Next() {
		e, err := scanEstate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan estate: %w", err)
		}
		estates = append(estates, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate estates: %w", err)
	}
	return estates, nil
}

// GetByID returns a single listing.
func (r *Repo) GetByID(ctx context.Context, id int64) (domain.Estate, error) {
	row := r.db.QueryRow(ctx, "SELECT "+estateColumns+" FROM estate WHERE id = $1", id)
	e, err := scanEstate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Estate{}, fmt.Errorf("estate %d: %w", id, domain.ErrNotFound)
		}
		return domain.Estate{}, fmt.Errorf("get estate %d: %w", id, err)
	}
	return e, nil
}

// LowPriced returns the cheapest listings, rent then id ascending.
func (r *Repo) LowPriced(ctx context.Context, limit int) ([]domain.Estate, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+estateColumns+" FROM estate ORDER BY rent ASC, id ASC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("low priced estates: %w", err)
	}
	return collectEstates(rows)
}

// Search runs a compiled predicate with optional feature matching.
func (r *Repo) Search(ctx context.Context, pred *search.Predicate, featureIDs []int64, page search.Page) (int64, []domain.Estate, error) {
	if len(featureIDs) > 0 {
		return r.searchWithFeatures(ctx, pred, featureIDs, page)
	}

	where, next := pred.SQL(1)
	args := pred.Args()

	var total int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM estate WHERE "+where, args...).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("count estates: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM estate WHERE %s ORDER BY popularity DESC, id ASC LIMIT $%d OFFSET $%d",
		estateColumns, where, next, next+1,
	)
	rows, err := r.db.Query(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return 0, nil, fmt.Errorf("search estates: %w", err)
	}
	estates, err := collectEstates(rows)
	if err != nil {
		return 0, nil, err
	}
	return total, estates, nil
}

func (r *Repo) searchWithFeatures(ctx context.Context, pred *search.Predicate, featureIDs []int64, page search.Page) (int64, []domain.Estate, error) {
	pred.Where("ef.feature_id IN ("+search.Placeholders(len(featureIDs))+")", lo.ToAnySlice(featureIDs)...)
	where, next := pred.SQL(1)
	args := append(pred.Args(), len(featureIDs))

	grouped := fmt.Sprintf(
		"FROM estate JOIN estate_feature AS ef ON ef.estate_id = estate.id WHERE %s GROUP BY estate.id HAVING COUNT(estate.id) = $%d",
		where, next,
	)
	next++

	var total int64
	countQuery := "SELECT COUNT(*) FROM (SELECT estate.id " + grouped + ") AS matched"
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("count estates by features: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s %s ORDER BY popularity DESC, id ASC LIMIT $%d OFFSET $%d",
		estateColumns, grouped, next, next+1,
	)
	rows, err := r.db.Query(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return 0, nil, fmt.Errorf("search estates by features: %w", err)
	}
	estates, err := collectEstates(rows)
	if err != nil {
		return 0, nil, err
	}
	return total, estates, nil
}

// SearchInPolygon returns listings whose point lies inside the polygon.
// The bounding box terms keep the scan on the latitude/longitude indexes
// before the exact containment check runs.
func (r *Repo) SearchInPolygon(ctx context.Context, bounds geo.Bounds, polygonWKT string, limit int) ([]domain.Estate, error) {
	query := "SELECT " + estateColumns + " FROM estate" +
		" WHERE latitude >= $1 AND latitude <= $2" +
		" AND longitude >= $3 AND longitude <= $4" +
		" AND ST_Contains(ST_GeomFromText($5), ST_Point(latitude, longitude))" +
		" ORDER BY popularity DESC, id ASC LIMIT $6"

	rows, err := r.db.Query(ctx, query,
		bounds.MinLatitude, bounds.MaxLatitude,
		bounds.MinLongitude, bounds.MaxLongitude,
		polygonWKT, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search estates in polygon: %w", err)
	}
	return collectEstates(rows)
}

// RecommendedForChair returns listings whose doorway admits the chair in
// any orientation. The chair enters door-first with two of its three
// dimensions facing the frame, which gives six width/height pairings.
func (r *Repo) RecommendedForChair(ctx context.Context, c domain.Chair, limit int) ([]domain.Estate, error) {
	query := "SELECT " + estateColumns + " FROM estate WHERE " +
		"(door_width >= $1 AND door_height >= $2) OR " +
		"(door_width >= $1 AND door_height >= $3) OR " +
		"(door_width >= $2 AND door_height >= $1) OR " +
		"(door_width >= $2 AND door_height >= $3) OR " +
		"(door_width >= $3 AND door_height >= $1) OR " +
		"(door_width >= $3 AND door_height >= $2) " +
		"ORDER BY popularity DESC, id ASC LIMIT $4"

	rows, err := r.db.Query(ctx, query, c.Width, c.Height, c.Depth, limit)
	if err != nil {
		return nil, fmt.Errorf("recommended estates for chair %d: %w", c.ID, err)
	}
	return collectEstates(rows)
}

// BulkInsert writes one batch of listings inside the ingest transaction.
func (r *Repo) BulkInsert(ctx context.Context, tx postgres.Querier, estates []domain.Estate) error {
	if len(estates) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO estate (")
	sb.WriteString(estateColumns)
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(estates)*12)
	for i, e := range estates {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 12
		sb.WriteString("(")
		for j := 1; j <= 12; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+j)
		}
		sb.WriteString(")")
		args = append(args,
			e.ID, e.Name, e.Description, e.Thumbnail, e.Address,
			e.Latitude, e.Longitude, e.Rent, e.DoorHeight, e.DoorWidth,
			e.Features, e.Popularity,
		)
	}

	if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("estate batch: %w", domain.ErrDuplicateID)
		}
		return fmt.Errorf("insert estate batch: %w", err)
	}
	return nil
}

// BulkInsertFeatures writes normalized feature rows for one estate batch.
func (r *Repo) BulkInsertFeatures(ctx context.Context, tx postgres.Querier, rows []domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO estate_feature (estate_id, feature_id) VALUES ")

	args := make([]any, 0, len(rows)*2)
	for i, fr := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d)", i*2+1, i*2+2)
		args = append(args, fr.EntityID, fr.FeatureID)
	}

	if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert estate feature batch: %w", err)
	}
	return nil
}
