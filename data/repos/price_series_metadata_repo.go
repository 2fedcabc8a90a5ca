package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	m "stockdash/data/models"
	q "stockdash/data/queries"
)

// GetMetadataBySymbol returns nil without an error when the symbol has never been stored
func (pg *Postgres) GetMetadataBySymbol(ctx context.Context, symbol string) (*m.PriceSeriesMetadata, error) {
	args := pgx.NamedArgs{
		"symbol": symbol,
	}

	res, err := QuerySingle[m.PriceSeriesMetadata](ctx, pg, q.Get(q.QueryHelper.Select.MetadataBySymbol), args)
	if errors.Is(err, m.ErrNoData) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query metadata by symbol (%s): %w", symbol, err)
	}

	return res, nil
}

func (pg *Postgres) GetAllMetadata(ctx context.Context) ([]*m.PriceSeriesMetadata, error) {
	res, err := Query[m.PriceSeriesMetadata](ctx, pg, q.Get(q.QueryHelper.Select.AllMetadata), pgx.NamedArgs{})
	if err != nil {
		return nil, fmt.Errorf("unable to query all metadata: %w", err)
	}
	return res, nil
}

func (pg *Postgres) InsertNewMetadata(ctx context.Context, metadata *m.PriceSeriesMetadata, tx pgx.Tx) error {
	sql := q.Get(q.QueryHelper.Insert.Metadata)
	args := pgx.NamedArgs{
		"symbol":         metadata.Symbol,
		"source":         metadata.Source,
		"last_refreshed": metadata.LastRefreshed,
	}

	var err error
	if tx == nil {
		err = pg.db.QueryRow(ctx, sql, args).Scan(&metadata.Id)
	} else {
		err = tx.QueryRow(ctx, sql, args).Scan(&metadata.Id)
	}

	if err != nil {
		return fmt.Errorf("error inserting new metadata: %w", err)
	}

	return nil
}

func (pg *Postgres) UpdateLastRefreshedDate(ctx context.Context, symbol string, lastRefreshed time.Time, tx pgx.Tx) (err error) {
	sql := q.Get(q.QueryHelper.Update.LastRefreshedDate)
	args := pgx.NamedArgs{
		"last_refreshed": lastRefreshed,
		"symbol":         symbol,
	}

	if tx == nil {
		_, err = pg.db.Exec(ctx, sql, args)
	} else {
		_, err = tx.Exec(ctx, sql, args)
	}

	if err != nil {
		return fmt.Errorf("error updating last refreshed date for %s: %w", symbol, err)
	}
	return nil
}

// DeleteSymbol removes the metadata row, price rows cascade
func (pg *Postgres) DeleteSymbol(ctx context.Context, symbol string) error {
	if _, err := pg.db.Exec(ctx, q.Get(q.QueryHelper.Delete.MetadataBySymbol), pgx.NamedArgs{"symbol": symbol}); err != nil {
		return fmt.Errorf("error deleting symbol %s: %w", symbol, err)
	}
	return nil
}
