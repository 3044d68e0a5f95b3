package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/maidige/consultation-admin/internal/domain/reporting"
	"github.com/maidige/consultation-admin/pkg/common/logger"
)

// ContentType is set on every published message.
const ContentType = "application/x-protobuf; messageType=google.protobuf.Struct"

// KafkaConfig configures the Kafka notifier.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// NewKafkaClient creates a sarama client configured for synchronous,
// fully acknowledged, key-partitioned production.
func NewKafkaClient(cfg KafkaConfig) (sarama.Client, error) {
	config := sarama.NewConfig()
	config.ClientID = cfg.ClientID

	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.Retry.Max = 3

	config.Version = sarama.V3_6_0_0

	return sarama.NewClient(cfg.Brokers, config)
}

// ConnectKafkaNotifier dials the brokers with exponential backoff and
// returns a notifier publishing to cfg.Topic.
func ConnectKafkaNotifier(cfg KafkaConfig, logger *logger.Logger, tracer trace.Tracer) (*KafkaNotifier, error) {
	var notifier *KafkaNotifier

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = 2 * time.Minute
	expBackoff.InitialInterval = 2 * time.Second

	operation := func() error {
		client, err := NewKafkaClient(cfg)
		if err != nil {
			logger.Warn(context.Background(), "Failed to connect to Kafka, will retry", "err", err)
			return fmt.Errorf("creating client: %w", err)
		}
		producer, err := sarama.NewSyncProducerFromClient(client)
		if err != nil {
			client.Close()
			return fmt.Errorf("creating producer: %w", err)
		}
		notifier = NewKafkaNotifier(producer, cfg.Topic, logger, tracer)
		return nil
	}

	if err := backoff.Retry(operation, expBackoff); err != nil {
		return nil, fmt.Errorf("failed to connect kafka notifier after retries: %w", err)
	}
	return notifier, nil
}

// KafkaNotifier publishes notifications to a topic, keyed by entity key so
// every notification for one entity lands on the same partition.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string

	logger *logger.Logger
	tracer trace.Tracer
}

var _ domain.Notifier = (*KafkaNotifier)(nil)

// NewKafkaNotifier creates a KafkaNotifier over an existing producer.
func NewKafkaNotifier(producer sarama.SyncProducer, topic string, logger *logger.Logger, tracer trace.Tracer) *KafkaNotifier {
	return &KafkaNotifier{
		producer: producer,
		topic:    topic,
		logger:   logger.With("component", "kafka_notifier"),
		tracer:   tracer,
	}
}

// Notify implements domain.Notifier.
func (k *KafkaNotifier) Notify(ctx context.Context, n domain.Notification) error {
	ctx, span := k.tracer.Start(ctx, "kafka.produce",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(k.topic),
			semconv.MessagingOperationPublish,
			attribute.String("entity_key", n.EntityKey),
		))
	defer span.End()

	value, err := encodeNotification(n)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode notification")
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(n.EntityKey),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte(ContentType)},
		},
	}
	otel.GetTextMapPropagator().Inject(ctx, producerHeaderCarrier{msg: msg})

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send message")
		return fmt.Errorf("failed to send notification to kafka topic %s: %w", k.topic, err)
	}

	k.logger.Debug(ctx, "Published notification to Kafka",
		"topic", k.topic,
		"partition", partition,
		"offset", offset,
		"entity_key", n.EntityKey,
		"status", n.Status,
	)
	span.SetStatus(codes.Ok, "notification published")
	return nil
}

// Close closes the underlying producer.
func (k *KafkaNotifier) Close() error { return k.producer.Close() }

// encodeNotification serializes n as a protobuf Struct.
func encodeNotification(n domain.Notification) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"level":      string(n.Level),
		"message":    n.Message,
		"entity_key": n.EntityKey,
		"job_id":     n.JobID,
		"status":     n.Status.String(),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// producerHeaderCarrier adapts sarama record headers to a
// propagation.TextMapCarrier.
type producerHeaderCarrier struct {
	msg *sarama.ProducerMessage
}

func (c producerHeaderCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c producerHeaderCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if string(h.Key) == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
}

func (c producerHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, string(h.Key))
	}
	return keys
}
