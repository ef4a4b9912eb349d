package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rent360-scheduling-be/internal/pkg/logger"
	"rent360-scheduling-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopic = "scheduling.events"

func fixedClock() time.Time {
	return time.Date(2024, time.January, 8, 9, 0, 0, 0, time.UTC)
}

func TestNotificationService_PublishesEncodedEvent(t *testing.T) {
	bus := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	notifier := NewNotificationService(bus, testTopic, logger.NewNopLogger(), fixedClock)
	notifier.Emit(context.Background(), events.InstanceCompleted, map[string]interface{}{"instance_id": "i-1"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	messages, err := bus.Subscribe(ctx, testTopic)
	require.NoError(t, err)

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, events.InstanceCompleted, msg.Metadata.Get("event_type"))

		evt, err := events.Decode(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, events.InstanceCompleted, evt.EventType())
		assert.Equal(t, "i-1", evt.Payload()["instance_id"])
		assert.True(t, fixedClock().Equal(evt.Timestamp()))
	case <-ctx.Done():
		t.Fatal("event was not published")
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error {
	return errors.New("bus closed")
}

func (failingPublisher) Close() error { return nil }

func TestNotificationService_PublishFailureIsSwallowed(t *testing.T) {
	notifier := NewNotificationService(failingPublisher{}, testTopic, logger.NewNopLogger(), fixedClock)

	assert.NotPanics(t, func() {
		notifier.Emit(context.Background(), events.AgreementPaused, nil)
	})
}

type recordingSink struct {
	mu       sync.Mutex
	received []events.Event
	fail     map[string]bool
	done     chan struct{}
	want     int
}

func newRecordingSink(want int) *recordingSink {
	return &recordingSink{fail: map[string]bool{}, done: make(chan struct{}), want: want}
}

func (s *recordingSink) Publish(_ context.Context, evt events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, evt)
	if len(s.received) == s.want {
		close(s.done)
	}
	if s.fail[evt.EventType()] {
		return errors.New("sink unavailable")
	}
	return nil
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.received))
	for i, e := range s.received {
		out[i] = e.EventType()
	}
	return out
}

func TestRelayService_ForwardsEventsToSink(t *testing.T) {
	bus := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	sink := newRecordingSink(3)
	sink.fail[events.AgreementPaused] = true

	notifier := NewNotificationService(bus, testTopic, logger.NewNopLogger(), fixedClock)
	notifier.Emit(context.Background(), events.AgreementStarted, map[string]interface{}{"agreement_id": "a-1"})
	notifier.Emit(context.Background(), events.AgreementPaused, map[string]interface{}{"agreement_id": "a-1"})
	notifier.Emit(context.Background(), events.AgreementResumed, map[string]interface{}{"agreement_id": "a-1"})

	ctx, cancel := context.WithCancel(context.Background())
	relay := NewRelayService(bus, testTopic, sink, logger.NewNopLogger())

	errCh := make(chan error, 1)
	go func() { errCh <- relay.Run(ctx) }()

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not forward all events")
	}
	cancel()
	require.NoError(t, <-errCh)

	// A failed forward does not stop the relay.
	assert.ElementsMatch(t, []string{events.AgreementStarted, events.AgreementPaused, events.AgreementResumed}, sink.types())
}

func TestRelayService_WithoutSinkOnlyLogs(t *testing.T) {
	bus := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	notifier := NewNotificationService(bus, testTopic, logger.NewNopLogger(), fixedClock)
	notifier.Emit(context.Background(), events.InstanceMissed, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	relay := NewRelayService(bus, testTopic, nil, logger.NewNopLogger())
	assert.NoError(t, relay.Run(ctx))
}
