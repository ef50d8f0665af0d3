package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/QODOHUB/ayami-storefront/internal/util"
)

// Producer writes order lifecycle events to a single topic.
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &Producer{writer: writer, logger: util.GetLogger()}
}

// PublishEvent marshals the event and writes it keyed by key. The hash
// balancer keeps all events for one order on one partition, so consumers
// see them in order.
func (p *Producer) PublishEvent(ctx context.Context, key string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	p.logger.Debug("Event published",
		zap.String("key", key),
		zap.String("event_type", fmt.Sprintf("%T", event)))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer reads from a topic within a consumer group.
type Consumer struct {
	reader *kafka.Reader
	logger *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})

	return &Consumer{reader: reader, logger: util.GetLogger()}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// MessageHandler processes one fetched message.
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// StartConsuming fetches messages until the context is cancelled. A
// message is committed only after the handler returns nil; handler errors
// leave the offset uncommitted so the message is redelivered.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Kafka consumer started", zap.String("topic", c.reader.Config().Topic))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Kafka consumer stopping")
				return ctx.Err()
			}
			c.logger.Warn("Failed to fetch message", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		if err := handler(ctx, msg); err != nil {
			c.logger.Error("Failed to handle message",
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Warn("Failed to commit offset", zap.Error(err))
		}
	}
}
