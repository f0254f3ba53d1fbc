package models

import (
	"time"
)

// RawReading is a single feed entry as delivered by the telemetry channel.
// Field values are strings; a JSON null decodes to the empty string.
type RawReading struct {
	CreatedAt string `json:"created_at"`
	EntryID   int64  `json:"entry_id,omitempty"`
	Field1    string `json:"field1"` // units (kWh)
	Field2    string `json:"field2"` // cost
	Field3    string `json:"field3"` // voltage
}

// ParsedReading is a validated meter reading
type ParsedReading struct {
	Date    time.Time `json:"date"`
	DateKey string    `json:"dateKey"`
	Units   float64   `json:"units"`
	Cost    float64   `json:"cost"`
	Voltage *float64  `json:"voltage"`
}

// DailySummary holds the mean of one calendar day's readings
type DailySummary struct {
	Date       string   `json:"date"`
	AvgUnits   float64  `json:"avgUnits"`
	AvgCost    float64  `json:"avgCost"`
	AvgVoltage *float64 `json:"avgVoltage"`
}

// AggregateReport is the result of processing one feed snapshot.
//
// UniqueDays always equals len(DailyAverages). AvgVoltage is nil iff no
// valid entry carried a voltage.
type AggregateReport struct {
	ValidEntries       []ParsedReading `json:"validEntries"`
	DailyAverages      []DailySummary  `json:"dailyAverages"`
	UniqueDays         int             `json:"uniqueDays"`
	TotalUnits         float64         `json:"totalUnits"`
	TotalCost          float64         `json:"totalCost"`
	AvgUnitsPerReading float64         `json:"avgUnitsPerReading"`
	AvgCostPerReading  float64         `json:"avgCostPerReading"`
	AvgVoltage         *float64        `json:"avgVoltage"`
}

// DateRange returns the first and last day key of the report, or false when
// there are no daily averages.
func (r *AggregateReport) DateRange() (string, string, bool) {
	if r == nil || len(r.DailyAverages) == 0 {
		return "", "", false
	}
	return r.DailyAverages[0].Date, r.DailyAverages[len(r.DailyAverages)-1].Date, true
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
