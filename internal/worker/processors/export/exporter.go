// Package export publishes changed-entity sets so downstream caches can
// invalidate what they hold.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shopmirror/internal/config"
	"shopmirror/internal/logger"
	"shopmirror/internal/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, source string, changes models.ChangeSet) error
	Close() error
}

// Event is the message body written for each non-empty change set.
type Event struct {
	Source  string           `json:"source"`
	Changes models.ChangeSet `json:"changes"`
	At      time.Time        `json:"at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	logger *logger.Logger
	now    func() time.Time
}

// New returns a Kafka publisher, or a logging no-op when no brokers are configured.
func New(cfg config.KafkaConfig, log *logger.Logger) Publisher {
	if len(cfg.Brokers) == 0 {
		return &NopPublisher{logger: log.Named("changes")}
	}
	return NewKafkaPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.ChangesTopic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}, log)
}

func NewKafkaPublisher(w messageWriter, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		logger: log.Named("changes"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, source string, changes models.ChangeSet) error {
	if changes.Empty() {
		return nil
	}
	value, err := json.Marshal(Event{Source: source, Changes: changes, At: p.now()})
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}
	// keyed by source so events from one origin stay ordered
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(source), Value: value}); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	p.logger.Debug("changes published", zap.String("source", source))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type NopPublisher struct {
	logger *logger.Logger
}

func (p *NopPublisher) Publish(ctx context.Context, source string, changes models.ChangeSet) error {
	if !changes.Empty() {
		p.logger.Debug("changes not published, no brokers configured", zap.String("source", source))
	}
	return nil
}

func (p *NopPublisher) Close() error {
	return nil
}
