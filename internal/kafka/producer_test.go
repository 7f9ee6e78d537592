package kafka

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPublishAfterShutdownDropsInsteadOfPanicking(t *testing.T) {
	producer := NewProducer([]string{"localhost:0"}, "test-topic", 4, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	producer.Start(ctx)

	cancel()
	producer.WaitClosed()

	// The inbox is closed at this point; a late publisher must drop the
	// message, not send on the closed channel.
	assert.NotPanics(t, func() {
		producer.Publish([]byte("key"), []byte("value"))
		producer.Publish([]byte("key"), []byte("value"))
	})
}

func TestConcurrentPublishDuringShutdown(t *testing.T) {
	producer := NewProducer([]string{"localhost:0"}, "test-topic", 4, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	producer.Start(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				producer.Publish([]byte("key"), []byte("value"))
			}
		}()
	}

	cancel()
	wg.Wait()
	producer.WaitClosed()
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	producer := NewProducer([]string{"localhost:0"}, "test-topic", 2, zap.NewNop())

	// Not started: nothing drains the inbox, so the buffer fills up and the
	// excess is dropped without blocking.
	for i := 0; i < 10; i++ {
		producer.Publish([]byte("key"), []byte("value"))
	}

	assert.Len(t, producer.inbox, 2)
}
