package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/pipeline"
)

// Format selects how a Document is rendered
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json, yaml or yml
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Summary holds the stat-tile figures of a report
type Summary struct {
	FirstDay           string   `json:"firstDay" yaml:"firstDay"`
	LastDay            string   `json:"lastDay" yaml:"lastDay"`
	ValidEntries       int      `json:"validEntries" yaml:"validEntries"`
	UniqueDays         int      `json:"uniqueDays" yaml:"uniqueDays"`
	TotalUnits         float64  `json:"totalUnits" yaml:"totalUnits"`
	TotalCost          float64  `json:"totalCost" yaml:"totalCost"`
	AvgUnitsPerReading float64  `json:"avgUnitsPerReading" yaml:"avgUnitsPerReading"`
	AvgCostPerReading  float64  `json:"avgCostPerReading" yaml:"avgCostPerReading"`
	AvgVoltage         *float64 `json:"avgVoltage,omitempty" yaml:"avgVoltage,omitempty"`
}

// Day is one row of the daily trend
type Day struct {
	Date       string   `json:"date" yaml:"date"`
	AvgUnits   float64  `json:"avgUnits" yaml:"avgUnits"`
	AvgCost    float64  `json:"avgCost" yaml:"avgCost"`
	AvgVoltage *float64 `json:"avgVoltage,omitempty" yaml:"avgVoltage,omitempty"`
}

// Document is the rendered view of a pipeline state
type Document struct {
	RunID      string             `json:"runId" yaml:"runId"`
	Channel    string             `json:"channel" yaml:"channel"`
	Phase      string             `json:"phase" yaml:"phase"`
	Error      string             `json:"error,omitempty" yaml:"error,omitempty"`
	UpdatedAt  time.Time          `json:"updatedAt" yaml:"updatedAt"`
	Profile    *models.Profile    `json:"profile,omitempty" yaml:"profile,omitempty"`
	Summary    *Summary           `json:"summary,omitempty" yaml:"summary,omitempty"`
	Daily      []Day              `json:"dailyAverages,omitempty" yaml:"dailyAverages,omitempty"`
	Prediction *models.Prediction `json:"prediction,omitempty" yaml:"prediction,omitempty"`
}

// FromState builds a document from an orchestrator snapshot
func FromState(channel string, state pipeline.State) Document {
	doc := Document{
		RunID:      state.RunID,
		Channel:    channel,
		Phase:      string(state.Phase),
		Error:      state.Err,
		UpdatedAt:  state.UpdatedAt,
		Prediction: state.Prediction,
	}
	if !state.Profile.IsZero() {
		profile := state.Profile
		doc.Profile = &profile
	}
	if r := state.Report; r != nil {
		first, last, _ := r.DateRange()
		doc.Summary = &Summary{
			FirstDay:           first,
			LastDay:            last,
			ValidEntries:       len(r.ValidEntries),
			UniqueDays:         r.UniqueDays,
			TotalUnits:         r.TotalUnits,
			TotalCost:          r.TotalCost,
			AvgUnitsPerReading: r.AvgUnitsPerReading,
			AvgCostPerReading:  r.AvgCostPerReading,
			AvgVoltage:         r.AvgVoltage,
		}
		doc.Daily = make([]Day, 0, len(r.DailyAverages))
		for _, d := range r.DailyAverages {
			doc.Daily = append(doc.Daily, Day(d))
		}
	}
	return doc
}

// Reporter writes documents in one format
type Reporter struct {
	writer io.Writer
	format Format
}

// NewReporter creates a reporter writing to writer, or stdout when nil
func NewReporter(writer io.Writer, format Format) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{writer: writer, format: format}
}

// Handle renders doc
func (r *Reporter) Handle(doc Document) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.writer)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(r.writer)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return r.text(doc)
	}
}

const textTemplate = `Smart meter channel {{.Channel}} [{{.Phase}}]{{if .RunID}} run {{.RunID}}{{end}}
{{- if .Error}}
Error: {{.Error}}
{{- end}}
{{- with .Profile}}
Household: {{.Name}}{{if .State}}, {{.State}}{{end}}{{if .Board}} ({{.Board}}){{end}}{{if .ServiceNumber}} service {{.ServiceNumber}}{{end}}
{{- end}}
{{- with .Summary}}

Period: {{.FirstDay}} to {{.LastDay}} ({{.UniqueDays}} days, {{.ValidEntries}} readings)
Total: {{printf "%.2f" .TotalUnits}} kWh, {{rupees .TotalCost}}
Per reading: {{printf "%.2f" .AvgUnitsPerReading}} kWh, {{rupees .AvgCostPerReading}}
Voltage: {{voltage .AvgVoltage}}
{{- end}}
{{- if .Daily}}

=== Daily averages ===
{{- range .Daily}}
{{.Date}}  {{printf "%8.2f" .AvgUnits}} kWh  {{rupees .AvgCost}}
{{- end}}
{{- end}}
{{- with .Prediction}}

=== {{.Method}} ({{.Confidence}} confidence) ===
Monthly bill: {{rupees .MonthlyBill}}
Estimated units: {{printf "%.1f" .EstimatedUnitsPerMonth}} kWh
Cost per unit: {{rupees .CostPerUnit}}
Pattern: {{.ConsumptionPattern}}
Trends: {{.Trends}}
Peak usage: {{.PeakUsageDays}}
Anomalies: {{.Anomalies}}
Recommendations:
{{- range .Recommendations}}
- {{.}}
{{- end}}
{{- end}}
`

var textFuncs = template.FuncMap{
	"rupees": func(v float64) string { return fmt.Sprintf("₹%.2f", v) },
	"voltage": func(v *float64) string {
		if v == nil {
			return "Not Available"
		}
		return fmt.Sprintf("%.1fV", *v)
	},
}

func (r *Reporter) text(doc Document) error {
	t, err := template.New("report").Funcs(textFuncs).Parse(textTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	return t.Execute(r.writer, doc)
}
