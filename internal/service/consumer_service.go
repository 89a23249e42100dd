package service

import (
	"context"
	"encoding/json"

	"finance-rag-be/internal/dto"
	"finance-rag-be/internal/pkg/logger"
	"finance-rag-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

// EventForwarder ships events off the process, typically *nats.Publisher.
type EventForwarder interface {
	Publish(ctx context.Context, event events.Event) error
}

// NotificationDelivery pushes real-time frames to connected websocket clients.
type NotificationDelivery interface {
	Broadcast(msg dto.WsMessage)
}

// RelayStatus reports whether bus notifications reach the hub, satisfied by
// *NotificationService.
type RelayStatus interface {
	Running() bool
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	forwarder  EventForwarder
	delivery   NotificationDelivery
	relay      RelayStatus
	logger     logger.ILogger
}

// NewConsumerService drains the in-process event topic. Events are forwarded
// to NATS when a forwarder is set. Websocket clients are notified from the bus
// while the relay is running, and directly by the consumer otherwise. Any of
// forwarder, delivery and relay may be nil.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	forwarder EventForwarder,
	delivery NotificationDelivery,
	relay RelayStatus,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		forwarder:  forwarder,
		delivery:   delivery,
		relay:      relay,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	// Always ack: gochannel redelivers a nacked message immediately.
	defer msg.Ack()

	var event events.BaseEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		cs.logger.Error("EVENTS", "Failed to unmarshal event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}

	cs.logger.Info("EVENTS", event.Type, event.Data)

	forwarded := false
	if cs.forwarder != nil {
		if err := cs.forwarder.Publish(ctx, event); err != nil {
			cs.logger.Warn("EVENTS", "Failed to forward event to NATS", map[string]interface{}{
				"type":  event.Type,
				"error": err.Error(),
			})
		} else {
			forwarded = true
		}
	}

	// The relay only sees events that reached the bus.
	if forwarded && cs.relay != nil && cs.relay.Running() {
		return
	}
	if cs.delivery != nil {
		notify(cs.delivery, event)
	}
}

// notify turns pipeline events into websocket frames. Only index rebuilds
// concern every client.
func notify(delivery NotificationDelivery, event events.Event) {
	if event.EventType() != events.TypeDocumentIngested {
		return
	}
	delivery.Broadcast(dto.WsMessage{
		Type:      dto.WsTypeIndexReplaced,
		Data:      event.Payload(),
		Timestamp: event.Timestamp(),
	})
}
