package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestChannelBusPublishSubscribe(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	received := make(chan *domain.Message, 1)
	sub, err := b.Subscribe(ctx, domain.TopicRunCompleted, func(ctx context.Context, msg *domain.Message) error {
		received <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	if err := b.Publish(ctx, domain.TopicRunCompleted, []byte(`{"runId":"run-1"}`)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-received:
		if msg.Topic != domain.TopicRunCompleted {
			t.Errorf("expected topic %s, got %s", domain.TopicRunCompleted, msg.Topic)
		}
		if string(msg.Payload) != `{"runId":"run-1"}` {
			t.Errorf("unexpected payload: %s", msg.Payload)
		}
		if msg.ID == "" {
			t.Error("expected a message id")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestChannelBusTopicIsolation(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	var alertCount atomic.Int32
	_, err := b.Subscribe(ctx, domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
		alertCount.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Publish(ctx, domain.TopicRunCompleted, []byte("x"))

	time.Sleep(50 * time.Millisecond)
	if n := alertCount.Load(); n != 0 {
		t.Errorf("alert subscriber received %d messages from another topic", n)
	}
}

func TestChannelBusMultipleSubscribers(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	var count atomic.Int32
	for i := 0; i < 3; i++ {
		_, err := b.Subscribe(ctx, domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
	}

	b.Publish(ctx, domain.TopicAlert, []byte("x"))

	deadline := time.Now().Add(2 * time.Second)
	for count.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := count.Load(); n != 3 {
		t.Errorf("expected 3 deliveries, got %d", n)
	}
}

func TestChannelBusUnsubscribe(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	var count atomic.Int32
	sub, _ := b.Subscribe(ctx, domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
		count.Add(1)
		return nil
	})

	if sub.Topic() != domain.TopicAlert {
		t.Errorf("expected topic %s, got %s", domain.TopicAlert, sub.Topic())
	}

	sub.Unsubscribe()
	time.Sleep(20 * time.Millisecond)

	b.Publish(ctx, domain.TopicAlert, []byte("x"))
	time.Sleep(50 * time.Millisecond)

	if n := count.Load(); n != 0 {
		t.Errorf("unsubscribed handler received %d messages", n)
	}
}

func TestChannelBusClosedRejectsPublish(t *testing.T) {
	b := NewChannelBus(10)
	b.Close()

	if err := b.Publish(context.Background(), domain.TopicAlert, []byte("x")); err == nil {
		t.Error("expected error publishing to a closed bus")
	}
	if err := b.Ping(context.Background()); err == nil {
		t.Error("expected ping to fail on a closed bus")
	}
}

func TestChannelBusConcurrentPublishAndClose(t *testing.T) {
	b := NewChannelBus(1)
	ctx := context.Background()

	// A tiny buffer keeps the subscriber channels full so publishers hit
	// the send path while Close tears the channels down.
	for i := 0; i < 4; i++ {
		if _, err := b.Subscribe(ctx, domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
			time.Sleep(time.Millisecond)
			return nil
		}); err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if err := b.Publish(ctx, domain.TopicAlert, []byte("x")); err != nil {
					return
				}
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	b.Close()
	wg.Wait()

	if err := b.Publish(ctx, domain.TopicAlert, []byte("x")); err == nil {
		t.Error("expected error publishing after close")
	}
}

func TestNewChannelBusFromConfig(t *testing.T) {
	b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 16})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer b.Close()

	if err := b.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewUnsupportedBus(t *testing.T) {
	_, err := New(domain.EventBusConfig{Type: "kafka"})
	if err == nil {
		t.Fatal("expected error for unsupported bus type")
	}
}
