package service

import (
	"context"
	"time"

	"rent360-scheduling-be/internal/pkg/logger"
	"rent360-scheduling-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

const relayPublishTimeout = 5 * time.Second

// EventSink is the external bus the relay forwards to (NATS JetStream in
// production).
type EventSink interface {
	Publish(ctx context.Context, event events.Event) error
}

type IRelayService interface {
	// Run blocks until ctx is cancelled or the subscription closes.
	Run(ctx context.Context) error
}

type relayService struct {
	subscriber message.Subscriber
	topic      string
	sink       EventSink
	logger     logger.ILogger
}

// NewRelayService forwards emitted events to sink. A nil sink only logs them.
func NewRelayService(subscriber message.Subscriber, topic string, sink EventSink, log logger.ILogger) IRelayService {
	return &relayService{
		subscriber: subscriber,
		topic:      topic,
		sink:       sink,
		logger:     log,
	}
}

func (r *relayService) Run(ctx context.Context) error {
	messages, err := r.subscriber.Subscribe(ctx, r.topic)
	if err != nil {
		return err
	}

	r.logger.Info("RELAY", "Relay started", map[string]interface{}{"topic": r.topic, "sink": r.sink != nil})
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.forward(ctx, msg)
		}
	}
}

func (r *relayService) forward(ctx context.Context, msg *message.Message) {
	// Delivery is best effort; a failed forward is logged and never redelivered.
	defer msg.Ack()

	evt, err := events.Decode(msg.Payload)
	if err != nil {
		r.logger.Error("RELAY", "Dropping undecodable event", map[string]interface{}{"message_id": msg.UUID, "error": err.Error()})
		return
	}

	if r.sink == nil {
		r.logger.Info("RELAY", "Event", map[string]interface{}{"type": evt.EventType(), "data": evt.Payload()})
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, relayPublishTimeout)
	defer cancel()
	if err := r.sink.Publish(pubCtx, evt); err != nil {
		r.logger.Error("RELAY", "Failed to forward event", map[string]interface{}{"type": evt.EventType(), "error": err.Error()})
	}
}
