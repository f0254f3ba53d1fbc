package models

import (
	"strings"
)

// Confidence is the qualitative label attached to a prediction
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence maps free-form text onto a known confidence level.
func ParseConfidence(s string) (Confidence, bool) {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh, true
	case ConfidenceMedium:
		return ConfidenceMedium, true
	case ConfidenceLow:
		return ConfidenceLow, true
	}
	return "", false
}

// Method names the estimation strategy that produced a prediction
type Method string

const (
	MethodAI          Method = "AI Prediction"
	MethodStatistical Method = "Statistical Calculation"
)

// Prediction is a monthly bill estimate. Every field is populated by the
// estimator that built it.
type Prediction struct {
	MonthlyBill            float64    `json:"monthlyBill" yaml:"monthlyBill"`
	Confidence             Confidence `json:"confidence" yaml:"confidence"`
	ConsumptionPattern     string     `json:"consumptionPattern" yaml:"consumptionPattern"`
	Trends                 string     `json:"trends" yaml:"trends"`
	Recommendations        []string   `json:"recommendations" yaml:"recommendations"`
	Anomalies              string     `json:"anomalies" yaml:"anomalies"`
	PeakUsageDays          string     `json:"peakUsageDays" yaml:"peakUsageDays"`
	EstimatedUnitsPerMonth float64    `json:"estimatedUnitsPerMonth" yaml:"estimatedUnitsPerMonth"`
	CostPerUnit            float64    `json:"costPerUnit" yaml:"costPerUnit"`
	Method                 Method     `json:"method" yaml:"method"`
}

// Profile describes the household the meter belongs to. It is only used as
// prompt context and echoed back for display.
type Profile struct {
	Name          string `json:"name,omitempty" yaml:"name,omitempty"`
	State         string `json:"state,omitempty" yaml:"state,omitempty"`
	Board         string `json:"board,omitempty" yaml:"board,omitempty"`
	ServiceNumber string `json:"serviceNumber,omitempty" yaml:"serviceNumber,omitempty"`
	Region        string `json:"region,omitempty" yaml:"region,omitempty"`
}

// IsZero reports whether no profile field is set.
func (p Profile) IsZero() bool {
	return p == Profile{}
}
