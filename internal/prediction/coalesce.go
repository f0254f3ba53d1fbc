package prediction

import (
	"math"
	"strconv"
	"strings"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
)

// fieldRule fills one Prediction field from the model answer, or from its
// default when the answer is missing or falsy.
type fieldRule struct {
	key      string
	extract  func(raw any, p *models.Prediction) bool
	fallback func(f figures, p *models.Prediction)
}

var answerFields = []fieldRule{
	{
		key:      "monthlyBill",
		extract:  numberInto(func(p *models.Prediction) *float64 { return &p.MonthlyBill }),
		fallback: func(f figures, p *models.Prediction) { p.MonthlyBill = f.monthlyBill },
	},
	{
		key: "confidence",
		extract: func(raw any, p *models.Prediction) bool {
			s, ok := raw.(string)
			if !ok {
				return false
			}
			c, ok := models.ParseConfidence(s)
			if ok {
				p.Confidence = c
			}
			return ok
		},
		fallback: func(_ figures, p *models.Prediction) { p.Confidence = models.ConfidenceMedium },
	},
	{
		key:      "consumptionPattern",
		extract:  textInto(func(p *models.Prediction) *string { return &p.ConsumptionPattern }),
		fallback: func(_ figures, p *models.Prediction) { p.ConsumptionPattern = "Pattern analysis unavailable" },
	},
	{
		key:      "trends",
		extract:  textInto(func(p *models.Prediction) *string { return &p.Trends }),
		fallback: func(_ figures, p *models.Prediction) { p.Trends = "Trend analysis unavailable" },
	},
	{
		key: "recommendations",
		extract: func(raw any, p *models.Prediction) bool {
			list := stringList(raw)
			if len(list) == 0 {
				return false
			}
			p.Recommendations = list
			return true
		},
		fallback: func(_ figures, p *models.Prediction) {
			p.Recommendations = []string{"Monitor daily usage", "Use energy-efficient appliances"}
		},
	},
	{
		key:      "anomalies",
		extract:  textInto(func(p *models.Prediction) *string { return &p.Anomalies }),
		fallback: func(_ figures, p *models.Prediction) { p.Anomalies = "No significant anomalies detected" },
	},
	{
		key:      "peakUsageDays",
		extract:  textInto(func(p *models.Prediction) *string { return &p.PeakUsageDays }),
		fallback: func(_ figures, p *models.Prediction) { p.PeakUsageDays = "Analysis unavailable" },
	},
	{
		key:      "estimatedUnitsPerMonth",
		extract:  numberInto(func(p *models.Prediction) *float64 { return &p.EstimatedUnitsPerMonth }),
		fallback: func(f figures, p *models.Prediction) { p.EstimatedUnitsPerMonth = f.monthlyUnits },
	},
	{
		key:      "costPerUnit",
		extract:  numberInto(func(p *models.Prediction) *float64 { return &p.CostPerUnit }),
		fallback: func(f figures, p *models.Prediction) { p.CostPerUnit = f.costPerUnit },
	},
}

// coalesce builds a prediction from a decoded answer, applying every rule of
// answerFields in order.
func coalesce(answer map[string]any, f figures) models.Prediction {
	var p models.Prediction
	for _, rule := range answerFields {
		raw, present := answer[rule.key]
		if present && raw != nil && rule.extract(raw, &p) {
			continue
		}
		rule.fallback(f, &p)
	}
	return p
}

func numberInto(field func(*models.Prediction) *float64) func(any, *models.Prediction) bool {
	return func(raw any, p *models.Prediction) bool {
		var v float64
		switch n := raw.(type) {
		case float64:
			v = n
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(n), "₹")), 64)
			if err != nil {
				return false
			}
			v = parsed
		default:
			return false
		}
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
		*field(p) = v
		return true
	}
}

func textInto(field func(*models.Prediction) *string) func(any, *models.Prediction) bool {
	return func(raw any, p *models.Prediction) bool {
		var s string
		switch v := raw.(type) {
		case string:
			s = strings.TrimSpace(v)
		case []any:
			s = strings.Join(stringList(v), ", ")
		}
		if s == "" {
			return false
		}
		*field(p) = s
		return true
	}
}

func stringList(raw any) []string {
	switch v := raw.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}
