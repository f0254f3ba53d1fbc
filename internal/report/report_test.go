package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/pipeline"
)

func readyState() pipeline.State {
	return pipeline.State{
		Phase:     pipeline.PhaseReady,
		RunID:     "run-1",
		UpdatedAt: time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC),
		Profile:   models.Profile{Name: "Home", State: "Kerala", Board: "KSEB"},
		Report: &models.AggregateReport{
			ValidEntries: make([]models.ParsedReading, 4),
			DailyAverages: []models.DailySummary{
				{Date: "2024-03-01", AvgUnits: 2, AvgCost: 12},
				{Date: "2024-03-02", AvgUnits: 3, AvgCost: 18, AvgVoltage: models.Float(230)},
			},
			UniqueDays:         2,
			TotalUnits:         10,
			TotalCost:          60,
			AvgUnitsPerReading: 2.5,
			AvgCostPerReading:  15,
		},
		Prediction: &models.Prediction{
			MonthlyBill:            900,
			Confidence:             models.ConfidenceLow,
			ConsumptionPattern:     "Unable to analyze pattern due to parsing error",
			Recommendations:        []string{"Monitor energy usage regularly", "Consider energy audit"},
			EstimatedUnitsPerMonth: 150,
			CostPerUnit:            6,
			Method:                 models.MethodAI,
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "TEXT", want: FormatText},
		{in: "json", want: FormatJSON},
		{in: "yml", want: FormatYAML},
		{in: "csv", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFromState(t *testing.T) {
	doc := FromState("629098", readyState())

	assert.Equal(t, "ready", doc.Phase)
	require.NotNil(t, doc.Summary)
	assert.Equal(t, "2024-03-01", doc.Summary.FirstDay)
	assert.Equal(t, "2024-03-02", doc.Summary.LastDay)
	assert.Equal(t, 4, doc.Summary.ValidEntries)
	assert.Len(t, doc.Daily, 2)
	require.NotNil(t, doc.Profile)
	assert.Equal(t, "Kerala", doc.Profile.State)
}

func TestFromState_Idle(t *testing.T) {
	doc := FromState("629098", pipeline.State{Phase: pipeline.PhaseIdle})

	assert.Nil(t, doc.Summary)
	assert.Nil(t, doc.Profile)
	assert.Nil(t, doc.Prediction)
}

func TestHandle_Text(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewReporter(&buf, FormatText).Handle(FromState("629098", readyState())))

	out := buf.String()
	assert.Contains(t, out, "Smart meter channel 629098 [ready] run run-1")
	assert.Contains(t, out, "Household: Home, Kerala (KSEB)")
	assert.Contains(t, out, "Period: 2024-03-01 to 2024-03-02 (2 days, 4 readings)")
	assert.Contains(t, out, "Voltage: Not Available")
	assert.Contains(t, out, "=== AI Prediction (low confidence) ===")
	assert.Contains(t, out, "Monthly bill: ₹900.00")
	assert.Contains(t, out, "- Consider energy audit")
}

func TestHandle_TextFailed(t *testing.T) {
	var buf bytes.Buffer
	state := pipeline.State{Phase: pipeline.PhaseFailed, Err: "fetch telemetry: thingspeak request failed"}

	require.NoError(t, NewReporter(&buf, FormatText).Handle(FromState("629098", state)))

	assert.Contains(t, buf.String(), "Error: fetch telemetry: thingspeak request failed")
	assert.NotContains(t, buf.String(), "Monthly bill")
}

func TestHandle_JSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewReporter(&buf, FormatJSON).Handle(FromState("629098", readyState())))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["runId"])
	prediction := decoded["prediction"].(map[string]any)
	assert.Equal(t, 900.0, prediction["monthlyBill"])
	assert.Equal(t, "AI Prediction", prediction["method"])
}

func TestHandle_YAML(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewReporter(&buf, FormatYAML).Handle(FromState("629098", readyState())))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ready", decoded["phase"])
	summary := decoded["summary"].(map[string]any)
	assert.Equal(t, 2, summary["uniqueDays"])
	assert.Contains(t, buf.String(), "monthlyBill: 900")
}
