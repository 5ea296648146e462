package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// recordingSubscriber collects received events, optionally filtered by type.
type recordingSubscriber struct {
	mu       sync.Mutex
	types    []string
	received []Event
}

func (s *recordingSubscriber) SubscribedEventTypes() []string { return s.types }

func (s *recordingSubscriber) Receive(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, ev)
}

func (s *recordingSubscriber) events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.received))
	copy(out, s.received)
	return out
}

func testEvent(typ, topic string) Event {
	return Base{EventType: typ, EventTopic: topic, EventPayload: "{}"}
}

// waitFor polls until cond is true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestBus_PublishDelivers(t *testing.T) {
	bus := NewBus(nil, 16)
	bus.Start()
	defer bus.Stop(context.Background())

	sub := &recordingSubscriber{}
	bus.Subscribe(sub)

	if err := bus.Publish(testEvent("ItemStateEvent", "hearth/items/a/state")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	waitFor(t, func() bool { return len(sub.events()) == 1 })
	got := sub.events()[0]
	if got.Type() != "ItemStateEvent" || got.Topic() != "hearth/items/a/state" {
		t.Errorf("received = %s %s, want ItemStateEvent hearth/items/a/state", got.Type(), got.Topic())
	}
}

func TestBus_PreservesPublishOrder(t *testing.T) {
	bus := NewBus(nil, 256)
	bus.Start()

	sub := &recordingSubscriber{}
	bus.Subscribe(sub)

	const n = 100
	for i := 0; i < n; i++ {
		if err := bus.Publish(testEvent("E", fmt.Sprintf("hearth/test/%d", i))); err != nil {
			t.Fatalf("Publish(%d) error = %v", i, err)
		}
	}
	if err := bus.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	got := sub.events()
	if len(got) != n {
		t.Fatalf("received %d events, want %d", len(got), n)
	}
	for i, ev := range got {
		if want := fmt.Sprintf("hearth/test/%d", i); ev.Topic() != want {
			t.Fatalf("event %d topic = %s, want %s (order broken)", i, ev.Topic(), want)
		}
	}
}

func TestBus_TypeFilter(t *testing.T) {
	bus := NewBus(nil, 16)
	bus.Start()

	all := &recordingSubscriber{}
	onlyCommands := &recordingSubscriber{types: []string{"ItemCommandEvent"}}
	bus.Subscribe(all)
	bus.Subscribe(onlyCommands)

	bus.Publish(testEvent("ItemStateEvent", "hearth/items/a/state"))
	bus.Publish(testEvent("ItemCommandEvent", "hearth/items/a/command"))
	bus.Stop(context.Background())

	if got := len(all.events()); got != 2 {
		t.Errorf("unfiltered subscriber received %d events, want 2", got)
	}
	if got := onlyCommands.events(); len(got) != 1 || got[0].Type() != "ItemCommandEvent" {
		t.Errorf("filtered subscriber received %v, want exactly the command event", got)
	}
}

func TestBus_PanickingSubscriberDoesNotStallDispatch(t *testing.T) {
	bus := NewBus(nil, 16)
	bus.Start()

	panicker := &panicSubscriber{}
	sub := &recordingSubscriber{}
	bus.Subscribe(panicker)
	bus.Subscribe(sub)

	bus.Publish(testEvent("E", "hearth/test/1"))
	bus.Publish(testEvent("E", "hearth/test/2"))
	bus.Stop(context.Background())

	if got := len(sub.events()); got != 2 {
		t.Errorf("healthy subscriber received %d events, want 2", got)
	}
}

type panicSubscriber struct{}

func (panicSubscriber) SubscribedEventTypes() []string { return nil }
func (panicSubscriber) Receive(Event)                  { panic("boom") }

func TestBus_PublishNil(t *testing.T) {
	bus := NewBus(nil, 4)
	if err := bus.Publish(nil); !errors.Is(err, ErrNilEvent) {
		t.Errorf("Publish(nil) error = %v, want ErrNilEvent", err)
	}
}

func TestBus_QueueFullDrops(t *testing.T) {
	bus := NewBus(nil, 2)
	// Not started: nothing drains the queue.
	bus.Publish(testEvent("E", "t/1"))
	bus.Publish(testEvent("E", "t/2"))

	err := bus.Publish(testEvent("E", "t/3"))
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Publish() error = %v, want ErrQueueFull", err)
	}
	if bus.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", bus.Dropped())
	}
}

func TestBus_PublishAfterStop(t *testing.T) {
	bus := NewBus(nil, 4)
	bus.Start()
	bus.Stop(context.Background())

	if err := bus.Publish(testEvent("E", "t/1")); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Publish() after Stop error = %v, want ErrBusClosed", err)
	}
}

func TestBus_SubscribeTwiceIsNoop(t *testing.T) {
	bus := NewBus(nil, 16)
	bus.Start()

	sub := &recordingSubscriber{}
	bus.Subscribe(sub)
	bus.Subscribe(sub)

	bus.Publish(testEvent("E", "t/1"))
	bus.Stop(context.Background())

	if got := len(sub.events()); got != 1 {
		t.Errorf("received %d events, want 1 (duplicate subscription must not double-deliver)", got)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil, 16)
	bus.Start()

	sub := &recordingSubscriber{}
	bus.Subscribe(sub)
	bus.Publish(testEvent("E", "t/1"))
	waitFor(t, func() bool { return len(sub.events()) == 1 })

	bus.Unsubscribe(sub)
	bus.Publish(testEvent("E", "t/2"))
	bus.Stop(context.Background())

	if got := len(sub.events()); got != 1 {
		t.Errorf("received %d events after unsubscribe, want 1", got)
	}
}

func TestTopicMatches(t *testing.T) {
	tests := []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"hearth/items/Kitchen/state", "hearth/items/Kitchen/state", true},
		{"hearth/items/Kitchen/state", "hearth/items/Kitchen/command", false},
		{"hearth/items/+/state", "hearth/items/Kitchen/state", true},
		{"hearth/items/+/state", "hearth/items/Kitchen/Lamp/state", false},
		{"hearth/items/#", "hearth/items/Kitchen/state", true},
		{"hearth/items/#", "hearth/items", true},
		{"hearth/items/#", "hearth/things/x/status", false},
		{"#", "anything/at/all", true},
		{"", "anything", true},
		{"hearth/+/Kitchen/#", "hearth/items/Kitchen/state", true},
		{"hearth/items", "hearth/items/Kitchen", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"~"+tt.topic, func(t *testing.T) {
			if got := TopicMatches(tt.pattern, tt.topic); got != tt.want {
				t.Errorf("TopicMatches(%q, %q) = %v, want %v", tt.pattern, tt.topic, got, tt.want)
			}
		})
	}
}
