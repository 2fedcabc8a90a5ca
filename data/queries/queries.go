package queries

import (
	"embed"
	"fmt"
)

//go:embed delete/*.sql insert/*.sql schema/*.sql select/*.sql update/*.sql
var Files embed.FS

type DeleteQueries struct {
	DashboardRunsBySymbol string
	MetadataBySymbol      string
}

type InsertQueries struct {
	DashboardRun string
	Metadata     string
}

type SchemaQueries struct {
	CreateTables string
}

type SelectQueries struct {
	AllMetadata                 string
	DashboardRunsBySymbol       string
	MetadataBySymbol            string
	MostRecentTimestampBySymbol string
	PriceSeriesData             string
}

type UpdateQueries struct {
	DashboardRun      string
	LastRefreshedDate string
}

type QueryHelperStruct struct {
	Delete DeleteQueries
	Insert InsertQueries
	Schema SchemaQueries
	Select SelectQueries
	Update UpdateQueries
}

var QueryHelper = QueryHelperStruct{
	Delete: DeleteQueries{
		DashboardRunsBySymbol: "delete/dashboard_runs_by_symbol.sql",
		MetadataBySymbol:      "delete/metadata_by_symbol.sql",
	},
	Insert: InsertQueries{
		DashboardRun: "insert/dashboard_run.sql",
		Metadata:     "insert/metadata.sql",
	},
	Schema: SchemaQueries{
		CreateTables: "schema/create_tables.sql",
	},
	Select: SelectQueries{
		AllMetadata:                 "select/all_metadata.sql",
		DashboardRunsBySymbol:       "select/dashboard_runs_by_symbol.sql",
		MetadataBySymbol:            "select/metadata_by_symbol.sql",
		MostRecentTimestampBySymbol: "select/most_recent_timestamp_by_symbol.sql",
		PriceSeriesData:             "select/price_series_data.sql",
	},
	Update: UpdateQueries{
		DashboardRun:      "update/dashboard_run.sql",
		LastRefreshedDate: "update/last_refreshed_date.sql",
	},
}

// Get reads an embedded query, a missing path is a programming error so it panics
func Get(path string) string {
	content, err := Files.ReadFile(path)
	if err != nil {
		panic(fmt.Errorf("error reading query file: %w", err))
	}

	return string(content)
}
