package processor

import (
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
)

// Process normalizes raw feed entries and aggregates them into a report.
func Process(raw []models.RawReading) (*models.AggregateReport, error) {
	entries, days := Normalize(raw)
	return Aggregate(entries, days)
}

// Aggregate reduces grouped readings into one summary per day plus
// channel-wide statistics.
//
// Daily figures are per-day means. Channel figures are means over all valid
// entries, so days with more readings weigh more. It returns
// models.ErrInsufficientData when entries is empty.
func Aggregate(entries []models.ParsedReading, days *DayIndex) (*models.AggregateReport, error) {
	if len(entries) == 0 || days == nil || days.Len() == 0 {
		return nil, models.ErrInsufficientData
	}

	keys := days.Keys()
	daily := make([]models.DailySummary, 0, len(keys))
	for _, key := range keys {
		bucket := days.bucket(key)
		summary := models.DailySummary{
			Date:     key,
			AvgUnits: mean(bucket.units),
			AvgCost:  mean(bucket.costs),
		}
		if len(bucket.voltages) > 0 {
			summary.AvgVoltage = models.Float(mean(bucket.voltages))
		}
		daily = append(daily, summary)
	}

	var (
		totalUnits   float64
		totalCost    float64
		voltageSum   float64
		voltageCount int
	)
	for _, e := range entries {
		totalUnits += e.Units
		totalCost += e.Cost
		if e.Voltage != nil {
			voltageSum += *e.Voltage
			voltageCount++
		}
	}

	report := &models.AggregateReport{
		ValidEntries:       entries,
		DailyAverages:      daily,
		UniqueDays:         len(daily),
		TotalUnits:         totalUnits,
		TotalCost:          totalCost,
		AvgUnitsPerReading: totalUnits / float64(len(entries)),
		AvgCostPerReading:  totalCost / float64(len(entries)),
	}
	if voltageCount > 0 {
		report.AvgVoltage = models.Float(voltageSum / float64(voltageCount))
	}

	return report, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
