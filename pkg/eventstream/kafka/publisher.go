// Package kafka provides an eventstream.Publisher backed by Apache Kafka.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
)

// DefaultTopic receives message events when no topic is configured.
const DefaultTopic = "chatrelay.messages"

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures a Publisher.
type Config struct {
	// Brokers are host:port addresses of the Kafka cluster.
	Brokers []string

	// Topic defaults to DefaultTopic.
	Topic string

	// WriteTimeout bounds a single publish. Defaults to 10 seconds.
	WriteTimeout time.Duration

	// Writer overrides the kafka-go writer built from Brokers.
	Writer MessageWriter
}

// Publisher writes MessagePersistedEvents as JSON records keyed by
// conversation, so events of one conversation stay ordered in a partition.
type Publisher struct {
	writer  MessageWriter
	topic   string
	timeout time.Duration
}

// NewPublisher creates a Kafka publisher.
func NewPublisher(c Config) (*Publisher, error) {
	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	timeout := c.WriteTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	writer := c.Writer
	if writer == nil {
		if len(c.Brokers) == 0 {
			return nil, errors.New("kafka publisher requires at least one broker")
		}

		writer = &kafkago.Writer{
			Addr:                   kafkago.TCP(c.Brokers...),
			Topic:                  topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
			WriteTimeout:           timeout,
		}
	}

	return &Publisher{
		writer:  writer,
		topic:   topic,
		timeout: timeout,
	}, nil
}

// PublishMessage writes one event record.
func (p *Publisher) PublishMessage(ctx context.Context, event *eventstream.MessagePersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	key := event.Message.ConversationID
	if key == "" {
		key = strconv.FormatInt(event.Message.ID, 10)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(strconv.Itoa(event.SchemaVersion))},
		},
	})
	if err != nil {
		return fmt.Errorf("writing event to topic %s: %w", p.topic, err)
	}

	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
