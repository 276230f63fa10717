package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// batchTimeout ограничивает ожидание добора пачки; по умолчанию kafka-go ждёт 1s.
const batchTimeout = 10 * time.Millisecond

// KafkaPublisher пишет события в один топик; ключ сообщения — user_id,
// поэтому события одного пользователя попадают в одну партицию по порядку.
type KafkaPublisher struct {
	w     *kafka.Writer
	topic string
}

// NewKafka создаёт писателя. Соединение устанавливается лениво при первой записи.
func NewKafka(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           batchTimeout,
		},
		topic: topic,
	}
}

// Publish сериализует событие в JSON и пишет его синхронно.
// В сервисе вызывается через Async, вне пути запроса.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	const op = "events.kafka.Publish"

	ctx, span := otel.Tracer("events.kafka").Start(ctx, "kafka.produce "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", p.topic),
			attribute.String("event.type", string(e.Type)),
		),
	)
	defer span.End()

	msg, err := buildMessage(ctx, e)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := p.w.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close сбрасывает буферы писателя.
func (p *KafkaPublisher) Close() error { return p.w.Close() }

// buildMessage собирает сообщение: ключ, JSON-тело, тип события и
// trace-контекст в заголовках.
func buildMessage(ctx context.Context, e Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]kafka.Header, 0, len(carrier)+1)
	headers = append(headers, kafka.Header{Key: "event_type", Value: []byte(e.Type)})
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return kafka.Message{
		Key:     []byte(e.UserID.String()),
		Value:   value,
		Headers: headers,
		Time:    e.OccurredAt,
	}, nil
}

var _ Publisher = (*KafkaPublisher)(nil)
