package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer buffers messages and writes them to a Kafka topic from a single
// background goroutine. Writes are best-effort: a failed write is logged and
// dropped, matching the advisory nature of the event mirror.
type Producer struct {
	writer *kafka.Writer
	inbox  chan kafka.Message
	done   chan struct{}
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewProducer creates a producer for the given brokers and topic
func NewProducer(brokers []string, topic string, buf int, logger *zap.Logger) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox:  make(chan kafka.Message, buf),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Start launches the writer goroutine. On context cancellation the remaining
// buffered messages are flushed before the writer closes. The inbox is only
// closed after Publish has been fenced off, so late publishers drop instead
// of hitting a closed channel.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				p.mu.Lock()
				p.closed = true
				close(p.inbox)
				p.mu.Unlock()

				for m := range p.inbox {
					p.write(m)
				}
				if err := p.writer.Close(); err != nil {
					p.logger.Warn("Failed to close kafka writer", zap.Error(err))
				}
				return
			case m, ok := <-p.inbox:
				if !ok {
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.writer.WriteMessages(context.Background(), m); err != nil {
		p.logger.Warn("Failed to write kafka message",
			zap.Error(err),
			zap.String("topic", p.writer.Topic),
		)
	}
}

// Publish enqueues a message. When the buffer is full, or the producer has
// already shut down, the message is dropped rather than blocking or
// panicking on the request path.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	m := kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.logger.Warn("Kafka producer already stopped, dropping message",
			zap.String("topic", p.writer.Topic),
		)
		return
	}

	select {
	case p.inbox <- m:
	default:
		p.logger.Warn("Kafka producer buffer full, dropping message",
			zap.String("topic", p.writer.Topic),
		)
	}
}

// WaitClosed blocks until the writer goroutine has flushed and exited
func (p *Producer) WaitClosed() { <-p.done }
