package notify

import (
	"context"
	"encoding/json"
	"time"

	kafkax "orderdesk/internal/kafka"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Channel is the Redis pub/sub channel carrying all lifecycle events.
// Scope routing happens in the hub, not in channel naming, so one
// subscription per instance is enough.
const Channel = "orderdesk:events"

const envelopeVersion = 1

// Broker publishes lifecycle events through Redis pub/sub and re-delivers
// received events into the local hub, so fan-out reaches every instance.
// Events are optionally mirrored to Kafka as versioned envelopes for
// downstream consumers. All delivery is advisory: failures are logged and
// never surfaced to the request path.
type Broker struct {
	redis    *redis.Client
	hub      *Hub
	producer *kafkax.Producer
	service  string
	logger   *zap.Logger
}

// NewBroker creates a broker. producer may be nil when the Kafka mirror is
// disabled.
func NewBroker(rdb *redis.Client, hub *Hub, producer *kafkax.Producer, service string, logger *zap.Logger) *Broker {
	return &Broker{
		redis:    rdb,
		hub:      hub,
		producer: producer,
		service:  service,
		logger:   logger,
	}
}

// Publish emits one lifecycle event. The event is pushed through Redis so
// every instance's hub sees it; when Redis is unreachable the event is
// delivered to the local hub only.
func (b *Broker) Publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("Failed to marshal event", zap.Error(err), zap.String("event", ev.Name))
		return
	}

	if err := b.redis.Publish(ctx, Channel, payload).Err(); err != nil {
		b.logger.Warn("Redis publish failed, delivering locally",
			zap.Error(err),
			zap.String("event", ev.Name),
		)
		b.hub.Deliver(ev)
	}

	b.mirror(ev, payload)
}

// Run subscribes to the event channel and feeds received events into the
// local hub until the context is cancelled.
func (b *Broker) Run(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, Channel)
	defer pubsub.Close()

	b.logger.Info("Event broker subscribed", zap.String("channel", Channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("Discarding malformed event payload", zap.Error(err))
				continue
			}
			b.hub.Deliver(ev)
		}
	}
}

// mirror writes the event to Kafka wrapped in a versioned envelope, keyed by
// order ID so per-order ordering is preserved.
func (b *Broker) mirror(ev Event, payload []byte) {
	if b.producer == nil || ev.Order == nil {
		return
	}

	envelope := Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Name,
		EventVersion:  envelopeVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      b.service,
		CorrelationID: ev.Order.ID.String(),
		Payload:       payload,
	}

	b.producer.Publish(
		[]byte(ev.Order.ID.String()),
		kafkax.MustMarshal(envelope),
		kafkago.Header{Key: "x-event-type", Value: []byte(ev.Name)},
	)
}
