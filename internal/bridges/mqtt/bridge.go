package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hearth-home/hearth-core/internal/events"
	broker "github.com/hearth-home/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearth-home/hearth-core/internal/items"
	"github.com/hearth-home/hearth-core/internal/things"
	"github.com/hearth-home/hearth-core/internal/types"
)

// SourceName marks bus events that originate from the broker so other
// subscribers can recognize bridge traffic.
const SourceName = "mqtt"

// outboundQueueSize bounds the publish queue between the event bus and
// the broker. Events beyond it are dropped; retained state repairs the
// picture on the next connect.
const outboundQueueSize = 256

// BrokerClient is the broker surface the bridge needs. It is satisfied
// by *mqtt.Client from internal/infrastructure/mqtt and narrowed here
// so tests can substitute a fake.
type BrokerClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// PublishRetained sends a retained message at the client's QoS.
	PublishRetained(topic string, payload []byte) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler broker.MessageHandler) error

	// SetOnConnect registers a callback for connection establishment.
	SetOnConnect(callback func())

	// IsConnected reports whether the broker connection is up.
	IsConnected() bool
}

// Logger is the logging surface the bridge uses.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds construction parameters for a Bridge.
type Options struct {
	// Client is the connected broker client.
	Client BrokerClient

	// Items resolves inbound writes and supplies states to republish.
	Items *items.Registry

	// Bus delivers the runtime events the bridge mirrors outward.
	Bus *events.Bus

	// QoS applies to bridge publishes and subscriptions. Zero means
	// at-most-once.
	QoS byte

	// Logger is optional; nil discards bridge logs.
	Logger Logger
}

// Bridge mirrors item and thing events onto the broker and turns
// broker writes into registry commands and updates.
type Bridge struct {
	client BrokerClient
	items  *items.Registry
	bus    *events.Bus
	qos    byte
	logger Logger

	out chan events.Event

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewBridge creates a bridge. Call Start to begin operation.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("broker client is required")
	}
	if opts.Items == nil {
		return nil, fmt.Errorf("item registry is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bridge{
		client: opts.Client,
		items:  opts.Items,
		bus:    opts.Bus,
		qos:    opts.QoS,
		logger: logger,
		out:    make(chan events.Event, outboundQueueSize),
		done:   make(chan struct{}),
	}, nil
}

// Start subscribes to the broker's write topics and to the event bus,
// then seeds the broker's retained states. Reconnects reseed them.
func (b *Bridge) Start(ctx context.Context) error {
	_ = ctx

	commandTopic := broker.Topics{}.AllItemCommandSets()
	if err := b.client.Subscribe(commandTopic, b.qos, b.handleSet); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	stateTopic := broker.Topics{}.AllItemStateSets()
	if err := b.client.Subscribe(stateTopic, b.qos, b.handleSet); err != nil {
		return fmt.Errorf("subscribe to state writes: %w", err)
	}

	b.wg.Add(1)
	go b.publishLoop()

	b.bus.Subscribe(b)
	b.client.SetOnConnect(b.PublishStates)
	if b.client.IsConnected() {
		b.PublishStates()
	}

	b.logger.Info("mqtt bridge started",
		"commands", commandTopic, "states", stateTopic)
	return nil
}

// Stop detaches the bridge from the event bus and stops the publish
// worker. The broker client is owned by the caller and stays open.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.bus.Unsubscribe(b)
		b.client.SetOnConnect(nil)
		close(b.done)
		b.wg.Wait()
		b.logger.Info("mqtt bridge stopped")
	})
}

// SubscribedEventTypes narrows bus delivery to the mirrored events.
func (b *Bridge) SubscribedEventTypes() []string {
	return []string{
		items.EventTypeState,
		items.EventTypeStateChanged,
		items.EventTypeGroupStateChanged,
		things.EventTypeStatus,
	}
}

// Receive queues a bus event for publication. A full queue drops the
// event rather than stalling the bus dispatcher.
func (b *Bridge) Receive(ev events.Event) {
	select {
	case b.out <- ev:
	default:
		b.logger.Warn("outbound queue full, event dropped", "topic", ev.Topic())
	}
}

func (b *Bridge) publishLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case ev := <-b.out:
			b.publish(ev)
		}
	}
}

// publish mirrors one bus event to the broker. While disconnected,
// events are skipped; PublishStates repairs retained topics on the
// next connect.
func (b *Bridge) publish(ev events.Event) {
	if !b.client.IsConnected() {
		return
	}

	var err error
	switch ev.Type() {
	case items.EventTypeState:
		err = b.client.PublishRetained(ev.Topic(), []byte(ev.Payload()))
	case items.EventTypeStateChanged:
		err = b.client.Publish(ev.Topic(), []byte(ev.Payload()), b.qos, false)
	case items.EventTypeGroupStateChanged:
		err = b.publishGroupChange(ev)
	case things.EventTypeStatus:
		err = b.client.PublishRetained(ev.Topic(), []byte(ev.Payload()))
	}
	if err != nil {
		b.logger.Warn("publish failed", "topic", ev.Topic(), "error", err)
	}
}

// publishGroupChange forwards a group transition and refreshes the
// group's retained state topic, which otherwise only direct updates
// would touch.
func (b *Bridge) publishGroupChange(ev events.Event) error {
	if err := b.client.Publish(ev.Topic(), []byte(ev.Payload()), b.qos, false); err != nil {
		return err
	}
	group, _, ok := items.SplitGroupTopic(ev.Topic())
	if !ok {
		return nil
	}
	_, newState, err := items.DecodeStateChangedPayload(ev.Payload())
	if err != nil {
		return err
	}
	stateEv := items.NewStateEvent(group, newState, SourceName)
	return b.client.PublishRetained(stateEv.Topic(), []byte(stateEv.Payload()))
}

// PublishStates publishes a retained state message for every item,
// groups and unset items included. Runs on every (re)connect so the
// broker's retained values match the runtime after an outage.
func (b *Bridge) PublishStates() {
	if !b.client.IsConnected() {
		return
	}
	published := 0
	for _, it := range b.items.All() {
		ev := items.NewStateEvent(it.Name, it.State, SourceName)
		if err := b.client.PublishRetained(ev.Topic(), []byte(ev.Payload())); err != nil {
			b.logger.Warn("state publish failed", "item", it.Name, "error", err)
			continue
		}
		published++
	}
	b.logger.Debug("retained states published", "items", published)
}

// handleSet processes one broker write. The payload is the state or
// command wire text, parsed against the item's type (the member type
// for groups). Anything unparseable is logged and dropped.
func (b *Bridge) handleSet(topic string, payload []byte) error {
	name, kind, ok := itemFromSetTopic(topic)
	if !ok {
		b.logger.Warn("unrecognized write topic", "topic", topic)
		return nil
	}
	it, found := b.items.Get(name)
	if !found {
		b.logger.Warn("write for unknown item", "item", name)
		return nil
	}

	itemType := it.Type
	if it.IsGroup() {
		itemType = it.GroupType
	}
	text := strings.TrimSpace(string(payload))

	switch kind {
	case "command":
		cmd, err := types.ParseCommand(itemType, text)
		if err != nil {
			b.logger.Warn("command payload rejected",
				"item", name, "payload", text, "error", err)
			return nil
		}
		if err := b.items.SendCommandFrom(name, cmd, SourceName); err != nil {
			b.logger.Warn("command rejected", "item", name, "error", err)
		}
	case "state":
		st, err := types.Parse(itemType, text)
		if err != nil {
			b.logger.Warn("state payload rejected",
				"item", name, "payload", text, "error", err)
			return nil
		}
		if err := b.items.UpdateStateFrom(name, st, SourceName); err != nil {
			b.logger.Warn("state write rejected", "item", name, "error", err)
		}
	}
	return nil
}

// itemFromSetTopic splits "hearth/items/<name>/command/set" and
// "hearth/items/<name>/state/set" into the item name and write kind.
func itemFromSetTopic(topic string) (name, kind string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != "hearth" || parts[1] != "items" || parts[4] != "set" {
		return "", "", false
	}
	if parts[2] == "" || (parts[3] != "command" && parts[3] != "state") {
		return "", "", false
	}
	return parts[2], parts[3], true
}
