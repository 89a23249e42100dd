package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finance-rag-be/internal/dto"
	"finance-rag-be/internal/pkg/logger"
	"finance-rag-be/pkg/events"
	pktNats "finance-rag-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDelivery struct {
	mu   sync.Mutex
	msgs []dto.WsMessage
}

func (d *recordingDelivery) Broadcast(msg dto.WsMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, msg)
}

func (d *recordingDelivery) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.msgs)
}

type failingForwarder struct{ recordingPublisher }

func (f *failingForwarder) Publish(ctx context.Context, e events.Event) error {
	_ = f.recordingPublisher.Publish(ctx, e)
	return errors.New("nats down")
}

func newPubSub(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })
	return pubSub
}

type recordingForwarder interface {
	EventForwarder
	types() []string
}

type fixedRelay bool

func (r fixedRelay) Running() bool { return bool(r) }

func TestConsumer_NotifiesWithoutForwarder(t *testing.T) {
	pubSub := newPubSub(t)
	delivery := &recordingDelivery{}
	consumer := NewConsumerService(pubSub, "pipeline_events", nil, delivery, nil, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, consumer.Consume(ctx))

	publisher := NewPublisherService("pipeline_events", pubSub)
	require.NoError(t, publisher.Publish(ctx, events.New(events.TypeQuestionAnswered, nil)))
	require.NoError(t, publisher.Publish(ctx, events.New(events.TypeDocumentIngested, map[string]interface{}{"chunk_count": 4})))

	require.Eventually(t, func() bool { return delivery.count() == 1 }, time.Second, 10*time.Millisecond)
	delivery.mu.Lock()
	defer delivery.mu.Unlock()
	assert.Equal(t, dto.WsTypeIndexReplaced, delivery.msgs[0].Type)
	assert.EqualValues(t, 4, delivery.msgs[0].Data.(map[string]interface{})["chunk_count"])
}

func TestConsumer_ForwardsToBus(t *testing.T) {
	tests := []struct {
		name         string
		forwarder    recordingForwarder
		relay        RelayStatus
		wantNotified int
	}{
		{"relay running", &recordingPublisher{}, fixedRelay(true), 0},
		{"relay not started", &recordingPublisher{}, fixedRelay(false), 1},
		{"no relay", &recordingPublisher{}, nil, 1},
		{"forward failed", &failingForwarder{}, fixedRelay(true), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pubSub := newPubSub(t)
			delivery := &recordingDelivery{}
			consumer := NewConsumerService(pubSub, "pipeline_events", tt.forwarder, delivery, tt.relay, logger.NewNopLogger())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			require.NoError(t, consumer.Consume(ctx))

			publisher := NewPublisherService("pipeline_events", pubSub)
			require.NoError(t, publisher.Publish(ctx, events.New(events.TypeDocumentIngested, nil)))
			require.NoError(t, publisher.Publish(ctx, events.New(events.TypePipelineFailed, nil)))

			require.Eventually(t, func() bool { return len(tt.forwarder.types()) == 2 }, time.Second, 10*time.Millisecond)
			assert.Equal(t, []string{events.TypeDocumentIngested, events.TypePipelineFailed}, tt.forwarder.types())
			if tt.wantNotified > 0 {
				require.Eventually(t, func() bool { return delivery.count() == tt.wantNotified }, time.Second, 10*time.Millisecond)
			} else {
				time.Sleep(50 * time.Millisecond)
				assert.Zero(t, delivery.count())
			}
		})
	}
}

type fakeEventSubscriber struct {
	err     error
	stopped bool
}

func (f *fakeEventSubscriber) Subscribe(ctx context.Context, subject, durableName string, handler pktNats.EventHandler) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	return func() { f.stopped = true }, nil
}

func TestNotificationService_Running(t *testing.T) {
	var unset *NotificationService
	assert.False(t, unset.Running())

	sub := &fakeEventSubscriber{}
	svc := NewNotificationService(sub, &recordingDelivery{}, logger.NewNopLogger())
	assert.False(t, svc.Running())
	require.NoError(t, svc.Start(context.Background()))
	assert.True(t, svc.Running())
	svc.Stop()
	assert.False(t, svc.Running())
	assert.True(t, sub.stopped)

	failing := NewNotificationService(&fakeEventSubscriber{err: errors.New("stream missing")}, &recordingDelivery{}, logger.NewNopLogger())
	require.Error(t, failing.Start(context.Background()))
	assert.False(t, failing.Running())
}
