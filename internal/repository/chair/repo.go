// Package chair persists the chair inventory in PostgreSQL.
package chair

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
	"github.com/sumika-cloud/sumika/internal/domain/search"
)

// querier is the consumer interface for the connection pool (ISP).
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const chairColumns = "id, name, description, thumbnail, price, height, width, depth, color, features, kind, popularity, stock"

const uniqueViolation = "23505"

// Repo implements the chair read and write contracts over PostgreSQL.
// Read methods run on the pool; write methods take the transaction handle
// they must run on.
type Repo struct {
	db querier
}

// New creates a chair repository.
func New(db querier) *Repo {
	return &Repo{db: db}
}

func scanChair(row pgx.Row) (domain.Chair, error) {
	var c domain.Chair
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Description,
		&c.Thumbnail,
		&c.Price,
		&c.Height,
		&c.Width,
		&c.Depth,
		&c.Color,
		&c.Features,
		&c.Kind,
		&c.Popularity,
		&c.Stock,
	)
	return c, err
}

func collectChairs(rows pgx.Rows) ([]domain.Chair, error) {
	defer rows.Close()

	var chairs []domain.Chair
	for rows.Next() {
		c, err := scanChair(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chair: %w", err)
		}
		chairs = append(chairs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chairs: %w", err)
	}
	return chairs, nil
}

// GetByID returns a chair regardless of its stock. Stock visibility rules
// live with the caller.
func (r *Repo) GetByID(ctx context.Context, id int64) (domain.Chair, error) {
	row := r.db.QueryRow(ctx, "SELECT "+chairColumns+" FROM chair WHERE id = $1", id)
	c, err := scanChair(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Chair{}, fmt.Errorf("chair %d: %w", id, domain.ErrNotFound)
		}
		return domain.Chair{}, fmt.Errorf("get chair %d: %w", id, err)
	}
	return c, nil
}

// LowPriced returns the cheapest in-stock chairs, price then id ascending.
func (r *Repo) LowPriced(ctx context.Context, limit int) ([]domain.Chair, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+chairColumns+" FROM chair WHERE stock > 0 ORDER BY price ASC, id ASC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("low priced chairs: %w", err)
	}
	return collectChairs(rows)
}

// Search runs a compiled predicate with optional feature matching and
// returns the total match count alongside one page of results ordered by
// popularity descending, id ascending.
func (r *Repo) Search(ctx context.Context, pred *search.Predicate, featureIDs []int64, page search.Page) (int64, []domain.Chair, error) {
	if len(featureIDs) > 0 {
		return r.searchWithFeatures(ctx, pred, featureIDs, page)
	}

	where, next := pred.SQL(1)
	args := pred.Args()

	var total int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM chair WHERE "+where, args...).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("count chairs: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM chair WHERE %s ORDER BY popularity DESC, id ASC LIMIT $%d OFFSET $%d",
		chairColumns, where, next, next+1,
	)
	rows, err := r.db.Query(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return 0, nil, fmt.Errorf("search chairs: %w", err)
	}
	chairs, err := collectChairs(rows)
	if err != nil {
		return 0, nil, err
	}
	return total, chairs, nil
}

// searchWithFeatures requires every requested feature id to be attached,
// which the grouped join expresses as a match count equal to the number of
// requested features.
func (r *Repo) searchWithFeatures(ctx context.Context, pred *search.Predicate, featureIDs []int64, page search.Page) (int64, []domain.Chair, error) {
	pred.Where("cf.feature_id IN ("+search.Placeholders(len(featureIDs))+")", lo.ToAnySlice(featureIDs)...)
	where, next := pred.SQL(1)
	args := append(pred.Args(), len(featureIDs))

	grouped := fmt.Sprintf(
		"FROM chair JOIN chair_feature AS cf ON cf.chair_id = chair.id WHERE %s GROUP BY chair.id HAVING COUNT(chair.id) = $%d",
		where, next,
	)
	next++

	var total int64
	countQuery := "SELECT COUNT(*) FROM (SELECT chair.id " + grouped + ") AS matched"
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("count chairs by features: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s %s ORDER BY popularity DESC, id ASC LIMIT $%d OFFSET $%d",
		chairColumns, grouped, next, next+1,
	)
	rows, err := r.db.Query(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return 0, nil, fmt.Errorf("search chairs by features: %w", err)
	}
	chairs, err := collectChairs(rows)
	if err != nil {
		return 0, nil, err
	}
	return total, chairs, nil
}

// LockForPurchase locks an in-stock chair row for the duration of the
// purchase transaction.
func (r *Repo) LockForPurchase(ctx context.Context, tx postgres.Querier, id int64) (domain.Chair, error) {
	row := tx.QueryRow(ctx, "SELECT "+chairColumns+" FROM chair WHERE id = $1 AND stock > 0 FOR UPDATE", id)
	c, err := scanChair(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Chair{}, fmt.Errorf("chair %d: %w", id, domain.ErrNotFound)
		}
		return domain.Chair{}, fmt.Errorf("lock chair %d: %w", id, err)
	}
	return c, nil
}

// DecrementStock reduces the locked chair's stock by one.
func (r *Repo) DecrementStock(ctx context.Context, tx postgres.Querier, id int64) error {
	if _, err := tx.Exec(ctx, "UPDATE chair SET stock = stock - 1 WHERE id = $1", id); err != nil {
		return fmt.Errorf("decrement stock for chair %d: %w", id, err)
	}
	return nil
}

// BulkInsert writes one batch of chairs inside the ingest transaction.
func (r *Repo) BulkInsert(ctx context.Context, tx postgres.Querier, chairs []domain.Chair) error {
	if len(chairs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO chair (")
	sb.WriteString(chairColumns)
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(chairs)*13)
	for i, c := range chairs {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 13
		sb.WriteString("(")
		for j := 1; j <= 13; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+j)
		}
		sb.WriteString(")")
		args = append(args,
			c.ID, c.Name, c.Description, c.Thumbnail, c.Price,
			c.Height, c.Width, c.Depth, c.Color, c.Features,
			c.Kind, c.Popularity, c.Stock,
		)
	}

	if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("chair batch: %w", domain.ErrDuplicateID)
		}
		return fmt.Errorf("insert chair batch: %w", err)
	}
	return nil
}

// BulkInsertFeatures writes normalized feature rows for one chair batch.
func (r *Repo) BulkInsertFeatures(ctx context.Context, tx postgres.Querier, rows []domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO chair_feature (chair_id, feature_id) VALUES ")

	args := make([]any, 0, len(rows)*2)
	for i, fr := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d)", i*2+1, i*2+2)
		args = append(args, fr.EntityID, fr.FeatureID)
	}

	if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert chair feature batch: %w", err)
	}
	return nil
}
