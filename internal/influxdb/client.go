package influxdb

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/config"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/pipeline"
)

const (
	measurementDaily      = "daily_energy"
	measurementPrediction = "bill_prediction"
)

// pointWriter is the subset of api.WriteAPIBlocking used here
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Client writes run outcomes to an InfluxDB v2 bucket
type Client struct {
	client influxdb2.Client
	writer pointWriter
	config config.InfluxDBConfig
}

// NewClient initializes the InfluxDB v2 client and verifies connectivity
func NewClient(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("url", cfg.URL).Str("bucket", cfg.Bucket).Msg("Connected to InfluxDB")
	return &Client{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		config: cfg,
	}, nil
}

// Name identifies the client as a run sink
func (c *Client) Name() string { return "influxdb" }

// Publish writes the daily summaries of the run and, for a ready run, its
// prediction.
func (c *Client) Publish(ctx context.Context, outcome pipeline.Outcome) error {
	var points []*write.Point
	if outcome.Report != nil {
		points = append(points, DailyPoints(outcome.Channel, outcome.Report)...)
	}
	if outcome.Prediction != nil && outcome.Report != nil {
		points = append(points, PredictionPoint(outcome.Channel, outcome.Report, *outcome.Prediction, outcome.FinishedAt))
	}
	if len(points) == 0 {
		return nil
	}

	if err := c.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d points: %w", len(points), err)
	}
	zerolog.Ctx(ctx).Debug().Int("points", len(points)).Msg("Wrote points to InfluxDB")
	return nil
}

// DailyPoints builds one daily_energy point per daily summary, stamped at the
// start of its day in UTC.
func DailyPoints(channel string, report *models.AggregateReport) []*write.Point {
	points := make([]*write.Point, 0, len(report.DailyAverages))
	for _, day := range report.DailyAverages {
		ts, err := time.Parse("2006-01-02", day.Date)
		if err != nil {
			continue
		}
		fields := map[string]interface{}{
			"avg_units": day.AvgUnits,
			"avg_cost":  day.AvgCost,
		}
		if day.AvgVoltage != nil {
			fields["avg_voltage"] = *day.AvgVoltage
		}
		points = append(points, write.NewPoint(
			measurementDaily,
			map[string]string{"channel": channel},
			fields,
			ts,
		))
	}
	return points
}

// PredictionPoint builds the bill_prediction point for a finished run
func PredictionPoint(channel string, report *models.AggregateReport, p models.Prediction, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementPrediction,
		map[string]string{
			"channel":    channel,
			"method":     string(p.Method),
			"confidence": string(p.Confidence),
		},
		map[string]interface{}{
			"monthly_bill":    p.MonthlyBill,
			"estimated_units": p.EstimatedUnitsPerMonth,
			"cost_per_unit":   p.CostPerUnit,
			"unique_days":     report.UniqueDays,
		},
		ts,
	)
}

// Close closes the InfluxDB client
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}
