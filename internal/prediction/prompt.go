package prediction

import (
	"fmt"
	"strings"
	"time"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
)

// recentDays is how many trailing daily summaries are shown to the model
const recentDays = 7

const responseFormat = `{
  "monthlyBill": <predicted_amount_number>,
  "confidence": "<high/medium/low>",
  "consumptionPattern": "<description_of_usage_pattern>",
  "trends": "<increasing/stable/decreasing_with_details>",
  "recommendations": [
    "<actionable_tip_1>",
    "<actionable_tip_2>",
    "<actionable_tip_3>"
  ],
  "anomalies": "<any_unusual_readings_or_concerns>",
  "peakUsageDays": "<days_with_highest_consumption>",
  "estimatedUnitsPerMonth": <predicted_monthly_units>,
  "costPerUnit": <average_cost_per_unit>
}`

// BuildPrompt renders the analysis request sent to the model
func BuildPrompt(report *models.AggregateReport, profile models.Profile, billingDays int, now time.Time) string {
	dataRange := "Unknown"
	if first, last, ok := report.DateRange(); ok {
		dataRange = first + " to " + last
	}

	voltage := "Not Available"
	if report.AvgVoltage != nil {
		voltage = fmt.Sprintf("%.1fV", *report.AvgVoltage)
	}

	var b strings.Builder
	b.WriteString("You are an expert energy analyst. Analyze this Indian household electricity consumption data and provide detailed insights.\n\n")

	b.WriteString("📊 DATA SUMMARY:\n")
	fmt.Fprintf(&b, "- Analysis Date: %s\n", formatIndianDate(now))
	fmt.Fprintf(&b, "- Data Period: %s\n", dataRange)
	fmt.Fprintf(&b, "- Total Readings: %d\n", len(report.ValidEntries))
	fmt.Fprintf(&b, "- Days of Data: %d\n", report.UniqueDays)
	fmt.Fprintf(&b, "- Average Units/Reading: %.2f kWh\n", report.AvgUnitsPerReading)
	fmt.Fprintf(&b, "- Average Cost/Reading: ₹%.2f\n", report.AvgCostPerReading)
	fmt.Fprintf(&b, "- Average Voltage: %s\n", voltage)

	if line := householdLine(profile); line != "" {
		b.WriteString("\n🏠 HOUSEHOLD:\n")
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n📈 DAILY CONSUMPTION PATTERN:\n")
	daily := report.DailyAverages
	if len(daily) > recentDays {
		daily = daily[len(daily)-recentDays:]
	}
	lines := make([]string, 0, len(daily))
	for _, day := range daily {
		lines = append(lines, fmt.Sprintf("%s: %.1f kWh → ₹%.2f", formatDayKey(day.Date), day.AvgUnits, day.AvgCost))
	}
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")

	b.WriteString("🎯 ANALYSIS REQUIRED:\n")
	fmt.Fprintf(&b, "1. Predict monthly electricity bill (%d days) in INR\n", billingDays)
	b.WriteString("2. Identify consumption patterns and trends\n")
	b.WriteString("3. Provide energy-saving recommendations\n")
	b.WriteString("4. Rate prediction confidence\n")
	b.WriteString("5. Note any anomalies or concerns\n\n")

	b.WriteString("⚡ RESPONSE FORMAT (JSON):\n")
	b.WriteString(responseFormat)
	b.WriteString("\n\nMake sure your response is valid JSON only, no additional text.")
	return b.String()
}

func householdLine(p models.Profile) string {
	var parts []string
	if p.State != "" {
		parts = append(parts, "State: "+p.State)
	}
	if p.Region != "" {
		parts = append(parts, "Region: "+p.Region)
	}
	if p.Board != "" {
		parts = append(parts, "Electricity Board: "+p.Board)
	}
	if len(parts) == 0 {
		return ""
	}
	return "- " + strings.Join(parts, ", ")
}

// formatIndianDate renders d/m/yyyy
func formatIndianDate(t time.Time) string {
	return t.Format("2/1/2006")
}

func formatDayKey(key string) string {
	t, err := time.Parse("2006-01-02", key)
	if err != nil {
		return key
	}
	return formatIndianDate(t)
}
