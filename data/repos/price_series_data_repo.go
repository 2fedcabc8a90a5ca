package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	m "stockdash/data/models"
	q "stockdash/data/queries"
)

const priceSeriesDataTable = "price_series_data"

// GetPriceSeriesData returns rows in [start, end), ascending
func (pg *Postgres) GetPriceSeriesData(ctx context.Context, symbol string, start, end time.Time) ([]*m.PriceSeriesData, error) {
	args := pgx.NamedArgs{
		"symbol": symbol,
		"start":  start,
		"end":    end,
	}

	res, err := Query[m.PriceSeriesData](ctx, pg, q.Get(q.QueryHelper.Select.PriceSeriesData), args)
	if err != nil {
		return nil, fmt.Errorf("unable to query price series data by symbol (%s): %w", symbol, err)
	}
	return res, nil
}

// GetMostRecentTimestampForSymbol returns nil when nothing is stored for the symbol
func (pg *Postgres) GetMostRecentTimestampForSymbol(ctx context.Context, symbol string) (*time.Time, error) {
	var ts *time.Time
	if err := pg.db.QueryRow(ctx, q.Get(q.QueryHelper.Select.MostRecentTimestampBySymbol), pgx.NamedArgs{"symbol": symbol}).Scan(&ts); err != nil {
		return nil, fmt.Errorf("unable to query most recent timestamp for %s: %w", symbol, err)
	}
	return ts, nil
}

func (pg *Postgres) InsertPriceSeriesData(ctx context.Context, data []*m.PriceSeriesData, sourceId int32, tx pgx.Tx) (int64, error) {
	columns := []string{
		"source_id", "timestamp", "open", "high", "low",
		"close", "adjusted_close", "volume",
	}

	entries := make([][]any, len(data))
	for i, ent := range data {
		entries[i] = []any{
			sourceId, ent.Timestamp, ent.Open, ent.High, ent.Low,
			ent.Close, ent.AdjustedClose, ent.Volume,
		}
	}

	ct, err := pg.BulkInsert(ctx, priceSeriesDataTable, columns, entries, tx)
	if err != nil {
		return 0, fmt.Errorf("error copying price series data: %w", err)
	}
	return ct, nil
}
