package utils

import (
	"fmt"
	"strings"
	"time"
)

var (
	dateLayouts = []string{"2006-01-02", "02/01/2006"}
	timeLayouts = []string{"15:04:05", "15:04", "3:04 PM", "3:04PM"}
)

// CombineDateTime parses a backend date ("2024-03-01") and time of day
// ("14:30" or "14:30:00") into a single instant in loc.
func CombineDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)

	var day time.Time
	var err error
	for _, layout := range dateLayouts {
		if day, err = time.ParseInLocation(layout, date, loc); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", date)
	}
	if clock == "" {
		return day, nil
	}

	for _, layout := range timeLayouts {
		tod, err := time.ParseInLocation(layout, clock, loc)
		if err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", clock)
}
