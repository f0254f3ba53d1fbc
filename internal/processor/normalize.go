package processor

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
)

const dayKeyLayout = "2006-01-02"

// timestampLayouts lists the created_at formats accepted from the feed
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Normalize parses raw feed entries into typed readings and groups them by day.
//
// An entry is kept only when both units and cost are finite numbers and its
// timestamp can be read. Dropped entries are not reported.
func Normalize(raw []models.RawReading) ([]models.ParsedReading, *DayIndex) {
	entries := make([]models.ParsedReading, 0, len(raw))
	days := NewDayIndex()

	for _, r := range raw {
		units, ok := parseFinite(r.Field1)
		if !ok {
			continue
		}
		cost, ok := parseFinite(r.Field2)
		if !ok {
			continue
		}
		date, ok := parseTimestamp(r.CreatedAt)
		if !ok {
			continue
		}

		var voltage *float64
		if v, ok := parseFinite(r.Field3); ok {
			voltage = models.Float(v)
		}

		// The timestamp's own calendar date is used; no zone conversion.
		dateKey := date.Format(dayKeyLayout)

		entries = append(entries, models.ParsedReading{
			Date:    date,
			DateKey: dateKey,
			Units:   units,
			Cost:    cost,
			Voltage: voltage,
		})
		days.Add(dateKey, units, cost, voltage)
	}

	return entries, days
}

func parseFinite(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
