package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/PvtMilo/gen-ai/internal/database"
)

// PricePerRequest is the flat USD cost charged per successful
// event-mode generation.
const PricePerRequest = 0.04

// Row is one billable generation, timestamped in the event timezone.
type Row struct {
	ID          int64   `json:"id"`
	UserName    string  `json:"user_name"`
	UserID      int64   `json:"user_id"`
	Mode        string  `json:"mode"`
	Error       *string `json:"error"`
	PricePerReq float64 `json:"price_per_req"`
	Timestamp   string  `json:"timestamp"`
}

// Summary totals a report.
type Summary struct {
	TotalRequests int     `json:"total_requests"`
	PricePerReq   float64 `json:"price_per_req"`
	TotalCost     float64 `json:"total_cost"`
	Currency      string  `json:"currency"`
}

// Report is the usage report for a date range.
type Report struct {
	Rows    []Row   `json:"rows"`
	Summary Summary `json:"summary"`
}

// EstimatorStore is the database surface the estimator reads from.
type EstimatorStore interface {
	ListEventReportRows(startUTC, endUTC time.Time) ([]database.EventReportRow, error)
}

// Estimator builds usage reports over completed event-mode jobs.
type Estimator struct {
	store EstimatorStore
	loc   *time.Location
}

func NewEstimator(store EstimatorStore, loc *time.Location) *Estimator {
	return &Estimator{store: store, loc: loc}
}

// Build produces the report for the inclusive local-date range.
func (e *Estimator) Build(startDate, endDate string) (*Report, error) {
	startUTC, endUTC, err := DayRangeUTC(startDate, endDate, e.loc)
	if err != nil {
		return nil, err
	}

	dbRows, err := e.store.ListEventReportRows(startUTC, endUTC)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(dbRows))
	for _, r := range dbRows {
		row := Row{
			ID:          r.JobID,
			UserName:    r.UserName,
			UserID:      r.UserID,
			Mode:        r.Mode,
			PricePerReq: PricePerRequest,
			Timestamp:   r.CreatedAt.In(e.loc).Format("2006-01-02 15:04:05"),
		}
		if r.ErrorMessage.Valid {
			msg := r.ErrorMessage.String
			row.Error = &msg
		}
		rows = append(rows, row)
	}

	return &Report{Rows: rows, Summary: Summarize(len(rows))}, nil
}

// Summarize totals n billable requests, rounding the cost to cents.
func Summarize(n int) Summary {
	return Summary{
		TotalRequests: n,
		PricePerReq:   PricePerRequest,
		TotalCost:     math.Round(float64(n)*PricePerRequest*100) / 100,
		Currency:      "USD",
	}
}

// CSVFilename names the export attachment for a date range.
func CSVFilename(startDate, endDate string) string {
	return fmt.Sprintf("token_estimator_%s_%s.csv", startDate, endDate)
}

// WriteCSV streams the report as CSV: one row per request, then a
// blank line and a summary block.
func WriteCSV(w io.Writer, report *Report) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"id", "user_name", "user_id", "mode", "error", "price_per_req", "timestamp"}); err != nil {
		return err
	}
	for _, row := range report.Rows {
		errText := ""
		if row.Error != nil {
			errText = *row.Error
		}
		record := []string{
			fmt.Sprintf("%d", row.ID),
			row.UserName,
			fmt.Sprintf("%d", row.UserID),
			row.Mode,
			errText,
			fmt.Sprintf("%.2f", row.PricePerReq),
			row.Timestamp,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	summary := report.Summary
	blocks := [][]string{
		{},
		{"total_requests", fmt.Sprintf("%d", summary.TotalRequests)},
		{"price_per_req", fmt.Sprintf("%.2f", summary.PricePerReq)},
		{"total_cost", fmt.Sprintf("%.2f", summary.TotalCost)},
		{"currency", summary.Currency},
	}
	for _, record := range blocks {
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
