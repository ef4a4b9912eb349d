package service

import (
	"context"

	"rent360-scheduling-be/internal/pkg/logger"
	"rent360-scheduling-be/pkg/events"
	"rent360-scheduling-be/pkg/schedule"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// INotificationService is the outbound notification adapter. Emit never
// fails the caller: delivery problems are logged and dropped.
type INotificationService interface {
	Emit(ctx context.Context, eventType string, payload map[string]interface{})
}

type notificationService struct {
	publisher message.Publisher
	topic     string
	logger    logger.ILogger
	clock     schedule.Clock
}

func NewNotificationService(publisher message.Publisher, topic string, log logger.ILogger, clock schedule.Clock) INotificationService {
	if clock == nil {
		clock = schedule.SystemClock
	}
	return &notificationService{
		publisher: publisher,
		topic:     topic,
		logger:    log,
		clock:     clock,
	}
}

func (s *notificationService) Emit(ctx context.Context, eventType string, payload map[string]interface{}) {
	evt := events.NewEvent(eventType, payload, s.clock())

	data, err := events.Encode(evt)
	if err != nil {
		s.logger.Error("NOTIFICATION", "Failed to encode event", map[string]interface{}{"type": eventType, "error": err.Error()})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(context.WithoutCancel(ctx))
	msg.Metadata.Set("event_type", eventType)

	if err := s.publisher.Publish(s.topic, msg); err != nil {
		s.logger.Error("NOTIFICATION", "Failed to emit event", map[string]interface{}{"type": eventType, "error": err.Error()})
		return
	}
	s.logger.Debug("NOTIFICATION", "Event emitted", map[string]interface{}{"type": eventType})
}
