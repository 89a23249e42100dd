package service

import (
	"context"
	"sync/atomic"

	"finance-rag-be/internal/pkg/logger"
	"finance-rag-be/pkg/events"
	pktNats "finance-rag-be/pkg/nats"
)

// EventSubscriber is satisfied by *nats.Subscriber.
type EventSubscriber interface {
	Subscribe(ctx context.Context, subject, durableName string, handler pktNats.EventHandler) (func(), error)
}

// NotificationService relays events from the NATS bus to websocket clients.
// Its consumer is durable and shared, so each event is handled by one replica
// and the hub fans it out to the others.
type NotificationService struct {
	subscriber EventSubscriber
	delivery   NotificationDelivery
	logger     logger.ILogger
	stop       func()
	running    atomic.Bool
}

func NewNotificationService(sub EventSubscriber, delivery NotificationDelivery, log logger.ILogger) *NotificationService {
	return &NotificationService{
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *NotificationService) Start(ctx context.Context) error {
	stop, err := s.subscriber.Subscribe(ctx, pktNats.SubjectPrefix+".>", "ws-notifier", s.handleEvent)
	if err != nil {
		s.logger.Error("NotificationService", "Failed to start notification subscriber", map[string]interface{}{"error": err.Error()})
		return err
	}
	s.stop = stop
	s.running.Store(true)
	s.logger.Info("NotificationService", "Listening to events.>", nil)
	return nil
}

// Running reports whether events from the bus are being relayed. A nil
// service is never running.
func (s *NotificationService) Running() bool {
	return s != nil && s.running.Load()
}

func (s *NotificationService) Stop() {
	s.running.Store(false)
	if s.stop != nil {
		s.stop()
	}
}

func (s *NotificationService) handleEvent(_ context.Context, event events.Event) error {
	s.logger.Debug("NotificationService", "Processing event", map[string]interface{}{"type": event.EventType()})
	notify(s.delivery, event)
	return nil
}
