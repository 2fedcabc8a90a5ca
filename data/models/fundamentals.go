package models

import (
	"slices"

	"github.com/guregu/null/v6"
)

type StatementKind string

const (
	BalanceSheet    StatementKind = "balance_sheet"
	IncomeStatement StatementKind = "income_statement"
	CashFlow        StatementKind = "cash_flow"
)

// StatementPeriod is one annual report, line items the source reported as "None" are invalid
type StatementPeriod struct {
	FiscalDateEnding string                `json:"fiscalDateEnding"`
	ReportedCurrency string                `json:"reportedCurrency"`
	LineItems        map[string]null.Float `json:"lineItems"`
}

type FinancialStatement struct {
	Symbol  string            `json:"symbol"`
	Kind    StatementKind     `json:"kind"`
	Periods []StatementPeriod `json:"periods"`
}

type Fundamentals struct {
	Symbol          string             `json:"symbol"`
	BalanceSheet    FinancialStatement `json:"balanceSheet"`
	IncomeStatement FinancialStatement `json:"incomeStatement"`
	CashFlow        FinancialStatement `json:"cashFlow"`
}

// StatementTable is a statement transposed to line item rows by period columns
type StatementTable struct {
	Columns []string       `json:"columns"`
	Rows    []StatementRow `json:"rows"`
}

type StatementRow struct {
	LineItem string       `json:"lineItem"`
	Values   []null.Float `json:"values"`
}

// Table pivots the statement, rows are sorted by line item name and columns follow period order
func (fs *FinancialStatement) Table() StatementTable {
	res := StatementTable{Columns: make([]string, len(fs.Periods))}

	names := make(map[string]struct{})
	for i, p := range fs.Periods {
		res.Columns[i] = p.FiscalDateEnding
		for k := range p.LineItems {
			names[k] = struct{}{}
		}
	}

	lineItems := make([]string, 0, len(names))
	for k := range names {
		lineItems = append(lineItems, k)
	}
	slices.Sort(lineItems)

	res.Rows = make([]StatementRow, len(lineItems))
	for i, name := range lineItems {
		values := make([]null.Float, len(fs.Periods))
		for j, p := range fs.Periods {
			values[j] = p.LineItems[name]
		}
		res.Rows[i] = StatementRow{LineItem: name, Values: values}
	}

	return res
}
