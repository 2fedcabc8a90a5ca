package repos

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	m "stockdash/data/models"
	q "stockdash/data/queries"
)

// InsertDashboardRun stores the run and fills in its id and start time
func (pg *Postgres) InsertDashboardRun(ctx context.Context, run *m.DashboardRun) error {
	args := pgx.NamedArgs{
		"run_key":    run.RunKey,
		"symbol":     run.Symbol,
		"start_date": run.StartDate,
		"end_date":   run.EndDate,
	}

	if err := pg.db.QueryRow(ctx, q.Get(q.QueryHelper.Insert.DashboardRun), args).Scan(&run.Id, &run.StartedAt); err != nil {
		return fmt.Errorf("error inserting dashboard run history: %w", err)
	}

	return nil
}

func (pg *Postgres) UpdateDashboardRunAsFailure(ctx context.Context, runId int32, errorMessage string) error {
	cleanErrorMessage := strings.TrimSpace(errorMessage)
	if cleanErrorMessage == "" {
		return fmt.Errorf("error message is required if dashboard run is failing, occurred in %d", runId)
	}

	return pg.updateDashboardRun(ctx, pgx.NamedArgs{
		"id":            runId,
		"error_message": cleanErrorMessage,
	})
}

func (pg *Postgres) UpdateDashboardRunAsSuccess(ctx context.Context, runId int32) error {
	return pg.updateDashboardRun(ctx, pgx.NamedArgs{
		"id":            runId,
		"error_message": nil,
	})
}

func (pg *Postgres) updateDashboardRun(ctx context.Context, args pgx.NamedArgs) error {
	if _, err := pg.db.Exec(ctx, q.Get(q.QueryHelper.Update.DashboardRun), args); err != nil {
		return fmt.Errorf("error updating dashboard run: %w", err)
	}
	return nil
}

func (pg *Postgres) GetDashboardRuns(ctx context.Context, symbol string, limit int) ([]*m.DashboardRun, error) {
	args := pgx.NamedArgs{
		"symbol": symbol,
		"limit":  limit,
	}

	res, err := Query[m.DashboardRun](ctx, pg, q.Get(q.QueryHelper.Select.DashboardRunsBySymbol), args)
	if err != nil {
		return nil, fmt.Errorf("unable to query dashboard runs for %s: %w", symbol, err)
	}
	return res, nil
}

func (pg *Postgres) DeleteDashboardRuns(ctx context.Context, symbol string) error {
	if _, err := pg.db.Exec(ctx, q.Get(q.QueryHelper.Delete.DashboardRunsBySymbol), pgx.NamedArgs{"symbol": symbol}); err != nil {
		return fmt.Errorf("error deleting dashboard runs for %s: %w", symbol, err)
	}
	return nil
}
