package alpha_vantage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/guregu/null/v6"
	"golang.org/x/sync/errgroup"

	m "stockdash/data/models"
)

// statement metadata, everything else in a report is a line item
const (
	fiscalDateEndingKey = "fiscalDateEnding"
	reportedCurrencyKey = "reportedCurrency"
)

var statementFunctions = map[m.StatementKind]string{
	m.BalanceSheet:    "BALANCE_SHEET",
	m.IncomeStatement: "INCOME_STATEMENT",
	m.CashFlow:        "CASH_FLOW",
}

// GetFundamentals fetches the three annual statements concurrently
func (avc *AlphaVantageClient) GetFundamentals(ctx context.Context, ticker string) (*m.Fundamentals, error) {
	res := &m.Fundamentals{Symbol: ticker}
	targets := map[m.StatementKind]*m.FinancialStatement{
		m.BalanceSheet:    &res.BalanceSheet,
		m.IncomeStatement: &res.IncomeStatement,
		m.CashFlow:        &res.CashFlow,
	}

	g, gctx := errgroup.WithContext(ctx)
	for kind, target := range targets {
		g.Go(func() error {
			statement, err := avc.GetFinancialStatement(gctx, ticker, kind)
			if err != nil {
				return err
			}
			*target = *statement
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return res, nil
}

// https://www.alphavantage.co/documentation/#balance-sheet
func (avc *AlphaVantageClient) GetFinancialStatement(ctx context.Context, ticker string, kind m.StatementKind) (*m.FinancialStatement, error) {
	fn, ok := statementFunctions[kind]
	if !ok {
		return nil, fmt.Errorf("unknown statement kind %q", kind)
	}

	raw, err := avc.getRaw(ctx, map[string]string{
		function: fn,
		symbol:   ticker,
	})
	if err != nil {
		return nil, err
	}

	periods, err := parseAnnualReports(raw)
	if err != nil {
		return nil, fmt.Errorf("%s for %s: %w", fn, ticker, err)
	}

	return &m.FinancialStatement{
		Symbol:  ticker,
		Kind:    kind,
		Periods: periods,
	}, nil
}

func parseAnnualReports(raw map[string]json.RawMessage) ([]m.StatementPeriod, error) {
	section, ok := raw["annualReports"]
	if !ok {
		return nil, fmt.Errorf("%w: no annual reports", m.ErrNoData)
	}

	var reports []map[string]string
	if err := json.Unmarshal(section, &reports); err != nil {
		return nil, fmt.Errorf("error unmarshaling annual reports: %w", err)
	}

	if len(reports) == 0 {
		return nil, fmt.Errorf("%w: no annual reports", m.ErrNoData)
	}

	periods := make([]m.StatementPeriod, len(reports))
	for i, report := range reports {
		period := m.StatementPeriod{
			FiscalDateEnding: report[fiscalDateEndingKey],
			ReportedCurrency: report[reportedCurrencyKey],
			LineItems:        make(map[string]null.Float, len(report)),
		}

		for k, v := range report {
			if k == fiscalDateEndingKey || k == reportedCurrencyKey {
				continue
			}
			period.LineItems[k] = parseFloat(v)
		}

		periods[i] = period
	}

	return periods, nil
}
