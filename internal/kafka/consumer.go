package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Shopify/sarama"
	"github.com/rs/zerolog"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/config"
)

// Trigger starts a pipeline run unless one is already in flight
type Trigger interface {
	Refetch(ctx context.Context) bool
}

// RefreshRequest is the optional payload of a refresh message. Any message,
// including an empty or undecodable one, requests a refresh.
type RefreshRequest struct {
	RequestedBy string `json:"requestedBy,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Consumer listens for refresh requests on a Kafka topic
type Consumer struct {
	config   config.KafkaConfig
	consumer sarama.ConsumerGroup
	trigger  Trigger
}

// NewConsumer creates a consumer group member for the refresh topic
func NewConsumer(cfg config.KafkaConfig, trigger Trigger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	saramaConfig.Consumer.MaxWaitTime = 250 * time.Millisecond

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		config:   cfg,
		consumer: group,
		trigger:  trigger,
	}, nil
}

// Consume blocks until ctx is done or the group fails
func (c *Consumer) Consume(ctx context.Context) error {
	logger := zerolog.Ctx(ctx).With().Str("topic", c.config.RefreshTopic).Logger()
	ctx = logger.WithContext(ctx)

	errorChan := make(chan error, 1)
	go func() {
		for err := range c.consumer.Errors() {
			logger.Error().Err(err).Msg("Consumer group error")
			select {
			case errorChan <- err:
			default:
			}
		}
	}()

	handler := &consumerGroupHandler{ctx: ctx, trigger: c.trigger}

	logger.Info().Msg("Listening for refresh requests")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errorChan:
			return err
		default:
			if err := c.consumer.Consume(ctx, []string{c.config.RefreshTopic}, handler); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return nil
				}
				return err
			}
		}
	}
}

// Close leaves the consumer group
func (c *Consumer) Close() error {
	return c.consumer.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	ctx     context.Context
	trigger Trigger
}

func (h *consumerGroupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if h.ctx.Err() != nil {
			return h.ctx.Err()
		}
		h.handle(message)
		session.MarkMessage(message, "")
	}
	return nil
}

// handle asks for a refresh and reports whether a run was started
func (h *consumerGroupHandler) handle(message *sarama.ConsumerMessage) bool {
	logger := zerolog.Ctx(h.ctx)

	var req RefreshRequest
	if len(message.Value) > 0 {
		if err := json.Unmarshal(message.Value, &req); err != nil {
			logger.Warn().Err(err).Int64("offset", message.Offset).Msg("Undecodable refresh payload, refreshing anyway")
		}
	}

	started := h.trigger.Refetch(h.ctx)
	logger.Info().
		Int32("partition", message.Partition).
		Int64("offset", message.Offset).
		Str("requested_by", req.RequestedBy).
		Str("reason", req.Reason).
		Bool("started", started).
		Msg("Refresh requested")
	return started
}
