package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"github.com/rs/zerolog"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/config"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/pipeline"
)

// PredictionEvent is published for every successful run
type PredictionEvent struct {
	RunID       string    `json:"runId"`
	Channel     string    `json:"channel"`
	UniqueDays  int       `json:"uniqueDays"`
	MonthlyBill float64   `json:"monthlyBill"`
	Method      string    `json:"method"`
	Confidence  string    `json:"confidence"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Producer publishes prediction events
type Producer struct {
	topic    string
	producer sarama.SyncProducer
}

// NewProducer creates a synchronous producer for the prediction topic
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, err
	}
	return NewProducerWith(cfg.PredictionTopic, producer), nil
}

// NewProducerWith wraps an existing sarama producer
func NewProducerWith(topic string, producer sarama.SyncProducer) *Producer {
	return &Producer{topic: topic, producer: producer}
}

// Name identifies the producer as a run sink
func (p *Producer) Name() string { return "kafka" }

// Publish sends a PredictionEvent keyed by channel. Runs without a
// prediction are skipped.
func (p *Producer) Publish(ctx context.Context, outcome pipeline.Outcome) error {
	if outcome.Prediction == nil || outcome.Report == nil {
		return nil
	}

	event := PredictionEvent{
		RunID:       outcome.RunID,
		Channel:     outcome.Channel,
		UniqueDays:  outcome.Report.UniqueDays,
		MonthlyBill: outcome.Prediction.MonthlyBill,
		Method:      string(outcome.Prediction.Method),
		Confidence:  string(outcome.Prediction.Confidence),
		GeneratedAt: outcome.FinishedAt,
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode prediction event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(outcome.Channel),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return fmt.Errorf("send prediction event: %w", err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("topic", p.topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("Published prediction event")
	return nil
}

// Close flushes and closes the producer
func (p *Producer) Close() error {
	return p.producer.Close()
}
