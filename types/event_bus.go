package types

import (
	"context"

	"github.com/Mukzid/anoma/libs/log"
	cmtpubsub "github.com/Mukzid/anoma/libs/pubsub"
	"github.com/Mukzid/anoma/libs/service"
)

const defaultCapacity = 0

// EventBusSubscriber is the subscription side of the event bus, for
// components that only consume events.
type EventBusSubscriber interface {
	Subscribe(ctx context.Context, subscriber string, query cmtpubsub.Query, outCapacity ...int) (Subscription, error)
	Unsubscribe(ctx context.Context, subscriber string, query cmtpubsub.Query) error
	UnsubscribeAll(ctx context.Context, subscriber string) error

	NumClients() int
	NumClientSubscriptions(clientID string) int
}

// Subscription mirrors cmtpubsub.Subscription behind an interface so
// consumers do not depend on the concrete pubsub type.
type Subscription interface {
	Out() <-chan cmtpubsub.Message
	Canceled() <-chan struct{}
	Err() error
}

// EventBus is a common bus for all events going through the system. All calls
// are proxied to the underlying pubsub server. All events must be published
// using the EventBus to ensure correct data types and scope tags.
type EventBus struct {
	service.BaseService
	pubsub *cmtpubsub.Server
}

// NewEventBus returns a new event bus.
func NewEventBus() *EventBus {
	return NewEventBusWithBufferCapacity(defaultCapacity)
}

// NewEventBusWithBufferCapacity returns a new event bus with the given
// buffer capacity.
func NewEventBusWithBufferCapacity(cap int) *EventBus {
	// capacity could be exposed later if needed
	pubsub := cmtpubsub.NewServer(cmtpubsub.BufferCapacity(cap))
	b := &EventBus{pubsub: pubsub}
	b.BaseService = *service.NewBaseService(nil, "EventBus", b)
	return b
}

func (b *EventBus) SetLogger(l log.Logger) {
	b.BaseService.SetLogger(l)
	b.pubsub.SetLogger(l.With("module", "pubsub"))
}

func (b *EventBus) OnStart() error {
	return b.pubsub.Start()
}

func (b *EventBus) OnStop() {
	if err := b.pubsub.Stop(); err != nil {
		b.pubsub.Logger.Error("error trying to stop eventBus", "error", err)
	}
}

func (b *EventBus) NumClients() int {
	return b.pubsub.NumClients()
}

func (b *EventBus) NumClientSubscriptions(clientID string) int {
	return b.pubsub.NumClientSubscriptions(clientID)
}

func (b *EventBus) Subscribe(
	ctx context.Context,
	subscriber string,
	query cmtpubsub.Query,
	outCapacity ...int,
) (Subscription, error) {
	return b.pubsub.Subscribe(ctx, subscriber, query, outCapacity...)
}

// SubscribeUnbuffered can be used for synchronous in-process consumers and
// testing. The publisher blocks on delivery, so a stalled subscriber stalls
// the whole bus.
func (b *EventBus) SubscribeUnbuffered(
	ctx context.Context,
	subscriber string,
	query cmtpubsub.Query,
) (Subscription, error) {
	return b.pubsub.SubscribeUnbuffered(ctx, subscriber, query)
}

func (b *EventBus) Unsubscribe(ctx context.Context, subscriber string, query cmtpubsub.Query) error {
	return b.pubsub.Unsubscribe(ctx, subscriber, query)
}

func (b *EventBus) UnsubscribeAll(ctx context.Context, subscriber string) error {
	return b.pubsub.UnsubscribeAll(ctx, subscriber)
}

func (b *EventBus) publish(source string, nodeID NodeID, eventData EventData) error {
	// no explicit deadline for publishing events
	ctx := context.Background()
	return b.pubsub.PublishWithTags(ctx, eventData, map[string]string{
		NodeIDKey:      string(nodeID),
		EventSourceKey: source,
	})
}

func (b *EventBus) PublishEventNewTx(data EventDataNewTx) error {
	return b.publish(EventSourceMempool, data.NodeID, data)
}

func (b *EventBus) PublishEventOrderFinalized(data EventDataOrderFinalized) error {
	return b.publish(EventSourceMempool, data.NodeID, data)
}

func (b *EventBus) PublishEventBlockCommitted(data EventDataBlockCommitted) error {
	return b.publish(EventSourceMempool, data.NodeID, data)
}

func (b *EventBus) PublishEventTxResult(data EventDataTxResult) error {
	return b.publish(EventSourceBackend, data.NodeID, data)
}

func (b *EventBus) PublishEventBatchCompleted(data EventDataBatchCompleted) error {
	return b.publish(EventSourceExecutor, data.NodeID, data)
}
