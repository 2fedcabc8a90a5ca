package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
)

type DashboardRun struct {
	Id           int32       `db:"id" json:"id"`
	RunKey       uuid.UUID   `db:"run_key" json:"runKey"`
	Symbol       string      `db:"symbol" json:"symbol"`
	StartDate    time.Time   `db:"start_date" json:"startDate"`
	EndDate      time.Time   `db:"end_date" json:"endDate"`
	StartedAt    time.Time   `db:"started_at" json:"startedAt"`
	CompletedAt  null.Time   `db:"completed_at" json:"completedAt"`
	ErrorMessage null.String `db:"error_message" json:"errorMessage"`
}
