package report

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange is returned when end_date falls before start_date or
// a date fails to parse.
var ErrInvalidRange = errors.New("end_date must be on or after start_date")

const dateLayout = "2006-01-02"

// DayRangeUTC converts an inclusive local-date range into a half-open
// UTC window [start, end). Each day runs midnight to midnight in the
// event timezone, so end is midnight of the day after endDate.
func DayRangeUTC(startDate, endDate string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dateLayout, startDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date %q: %w", startDate, ErrInvalidRange)
	}
	end, err := time.ParseInLocation(dateLayout, endDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date %q: %w", endDate, ErrInvalidRange)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	endExclusive := end.AddDate(0, 0, 1)
	return start.UTC(), endExclusive.UTC(), nil
}
