package prediction

import (
	"context"
	"fmt"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
)

// DefaultBillingDays is the length of a billing month
const DefaultBillingDays = 30

// figures are the arithmetic extrapolations shared by every estimator
type figures struct {
	dailyCost    float64
	dailyUnits   float64
	monthlyBill  float64
	monthlyUnits float64
	costPerUnit  float64
}

func computeFigures(report *models.AggregateReport, billingDays int) figures {
	var f figures
	if report.UniqueDays > 0 {
		f.dailyCost = report.TotalCost / float64(report.UniqueDays)
		f.dailyUnits = report.TotalUnits / float64(report.UniqueDays)
	}
	f.monthlyBill = f.dailyCost * float64(billingDays)
	f.monthlyUnits = f.dailyUnits * float64(billingDays)
	if report.AvgUnitsPerReading != 0 {
		f.costPerUnit = report.AvgCostPerReading / report.AvgUnitsPerReading
	}
	return f
}

// Statistical extrapolates the bill from daily averages
type Statistical struct {
	BillingDays int
}

// NewStatistical creates a statistical estimator
func NewStatistical(billingDays int) *Statistical {
	if billingDays < 1 {
		billingDays = DefaultBillingDays
	}
	return &Statistical{BillingDays: billingDays}
}

// Estimate never fails for a report with at least one day of data
func (s *Statistical) Estimate(_ context.Context, report *models.AggregateReport) (models.Prediction, error) {
	f := computeFigures(report, s.BillingDays)

	return models.Prediction{
		MonthlyBill:        f.monthlyBill,
		Confidence:         models.ConfidenceHigh,
		ConsumptionPattern: fmt.Sprintf("Consistent usage pattern based on %d days of data", report.UniqueDays),
		Trends:             fmt.Sprintf("Average daily consumption: %.1f kWh, ₹%.2f", f.dailyUnits, f.dailyCost),
		Recommendations: []string{
			"Continue monitoring usage",
			"Look for peak consumption times",
			"Consider time-of-use tariffs",
		},
		Anomalies:              "Statistical analysis - no anomaly detection",
		PeakUsageDays:          peakDay(report),
		EstimatedUnitsPerMonth: f.monthlyUnits,
		CostPerUnit:            f.costPerUnit,
		Method:                 models.MethodStatistical,
	}, nil
}

func peakDay(report *models.AggregateReport) string {
	if len(report.DailyAverages) == 0 {
		return "Requires AI analysis for detailed breakdown"
	}
	peak := report.DailyAverages[0]
	for _, day := range report.DailyAverages[1:] {
		if day.AvgUnits > peak.AvgUnits {
			peak = day
		}
	}
	return fmt.Sprintf("Highest daily average on %s (%.1f kWh); detailed breakdown requires AI analysis", peak.Date, peak.AvgUnits)
}
