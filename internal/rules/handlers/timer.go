package handlers

import (
	"fmt"
	"sync"
	"time"

	"github.com/hearth-home/hearth-core/internal/events"
	"github.com/hearth-home/hearth-core/internal/items"
	"github.com/hearth-home/hearth-core/internal/rules"
	"github.com/hearth-home/hearth-core/internal/scheduler"
	"github.com/hearth-home/hearth-core/internal/types"
)

// scheduledTrigger fires on a recurring schedule. Outputs carry the
// scheduled fire time under "time".
type scheduledTrigger struct {
	typeUID  string
	moduleID string
	sched    *scheduler.Scheduler
	next     scheduler.NextFunc

	mu  sync.Mutex
	cb  rules.TriggerCallback
	job *scheduler.Job
}

// TypeUID implements rules.Handler.
func (t *scheduledTrigger) TypeUID() string { return t.typeUID }

// Attach implements rules.TriggerHandler.
func (t *scheduledTrigger) Attach(cb rules.TriggerCallback) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cb = cb
	t.job = t.sched.Schedule(t.next, func(fireTime time.Time) error {
		t.fire(fireTime)
		return nil
	})
	return nil
}

func (t *scheduledTrigger) fire(fireTime time.Time) {
	t.mu.Lock()
	cb := t.cb
	t.mu.Unlock()
	if cb != nil {
		cb.Triggered(t.moduleID, map[string]any{"time": fireTime})
	}
}

// Detach implements rules.TriggerHandler.
func (t *scheduledTrigger) Detach() {
	t.mu.Lock()
	job := t.job
	t.job = nil
	t.cb = nil
	t.mu.Unlock()
	if job != nil {
		job.Cancel()
	}
}

// newCronTrigger fires on a cron expression.
func newCronTrigger(f *CoreFactory, m rules.Module) (*scheduledTrigger, error) {
	expr, err := configString(m.Config, "cronExpression")
	if err != nil {
		return nil, err
	}
	adj, err := scheduler.NewCronAdjuster(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: cronExpression: %v", rules.ErrBadConfig, err)
	}
	return &scheduledTrigger{
		typeUID:  TypeCronTrigger,
		moduleID: m.ID,
		sched:    f.sched,
		next:     adj.NextFunc(),
	}, nil
}

// newTimeOfDayTrigger fires daily at a fixed HH:MM wall clock time.
func newTimeOfDayTrigger(f *CoreFactory, m rules.Module) (*scheduledTrigger, error) {
	text, err := configString(m.Config, "time")
	if err != nil {
		return nil, err
	}
	at, err := time.Parse("15:04", text)
	if err != nil {
		return nil, fmt.Errorf("%w: time %q is not HH:MM", rules.ErrBadConfig, text)
	}
	return &scheduledTrigger{
		typeUID:  TypeTimeOfDayTrigger,
		moduleID: m.ID,
		sched:    f.sched,
		next:     dailyNext(at.Hour(), at.Minute(), 0),
	}, nil
}

// dailyNext computes the next wall-clock occurrence of hh:mm:ss,
// strictly after the given time.
func dailyNext(hour, minute, second int) scheduler.NextFunc {
	return func(from time.Time) (time.Time, bool) {
		next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, second, 0, from.Location())
		if !next.After(from) {
			next = next.AddDate(0, 0, 1)
		}
		return next, true
	}
}

// dateTimeTrigger fires at the instant held by a DateTime item. It
// re-arms itself whenever the item's state changes. With timeOnly only
// the wall-clock portion is honored, firing daily.
type dateTimeTrigger struct {
	moduleID string
	itemName string
	timeOnly bool
	items    *items.Registry
	sched    *scheduler.Scheduler
	bus      *events.Bus
	logger   Logger

	stateTopic string

	mu  sync.Mutex
	cb  rules.TriggerCallback
	job *scheduler.Job
}

func newDateTimeTrigger(f *CoreFactory, m rules.Module) (*dateTimeTrigger, error) {
	itemName, err := configString(m.Config, "itemName")
	if err != nil {
		return nil, err
	}
	return &dateTimeTrigger{
		moduleID:   m.ID,
		itemName:   itemName,
		timeOnly:   optBool(m.Config, "timeOnly", false),
		items:      f.items,
		sched:      f.sched,
		bus:        f.bus,
		logger:     f.logger,
		stateTopic: "hearth/items/" + itemName + "/statechanged",
	}, nil
}

// TypeUID implements rules.Handler.
func (t *dateTimeTrigger) TypeUID() string { return TypeDateTimeTrigger }

// SubscribedEventTypes implements events.Subscriber.
func (t *dateTimeTrigger) SubscribedEventTypes() []string {
	return []string{items.EventTypeStateChanged}
}

// Receive implements events.Subscriber: a change of the watched item
// re-arms the schedule.
func (t *dateTimeTrigger) Receive(ev events.Event) {
	if ev.Topic() != t.stateTopic {
		return
	}
	t.mu.Lock()
	armed := t.cb != nil
	t.mu.Unlock()
	if armed {
		t.arm()
	}
}

// Attach implements rules.TriggerHandler.
func (t *dateTimeTrigger) Attach(cb rules.TriggerCallback) error {
	t.mu.Lock()
	t.cb = cb
	t.mu.Unlock()
	t.bus.Subscribe(t)
	t.arm()
	return nil
}

// Detach implements rules.TriggerHandler.
func (t *dateTimeTrigger) Detach() {
	t.bus.Unsubscribe(t)
	t.mu.Lock()
	job := t.job
	t.job = nil
	t.cb = nil
	t.mu.Unlock()
	if job != nil {
		job.Cancel()
	}
}

// arm (re-)schedules from the item's current state. Items holding no
// DateTime value leave the trigger unarmed.
func (t *dateTimeTrigger) arm() {
	st, ok := t.items.State(t.itemName)
	if !ok {
		t.logger.Debug("datetime trigger item missing", "item", t.itemName)
		t.disarm()
		return
	}
	dt, ok := st.(types.DateTime)
	if !ok {
		t.logger.Debug("datetime trigger item holds no instant", "item", t.itemName, "kind", st.Kind())
		t.disarm()
		return
	}

	target := dt.Time()
	var job *scheduler.Job
	if t.timeOnly {
		job = t.sched.Schedule(
			dailyNext(target.Hour(), target.Minute(), target.Second()),
			func(fireTime time.Time) error {
				t.fire(fireTime)
				return nil
			},
		)
	} else {
		if !target.After(time.Now()) {
			t.logger.Debug("datetime trigger instant already past", "item", t.itemName, "at", target)
			t.disarm()
			return
		}
		job = t.sched.After(time.Until(target), func(fireTime time.Time) error {
			t.fire(fireTime)
			return nil
		})
	}

	t.mu.Lock()
	old := t.job
	t.job = job
	t.mu.Unlock()
	if old != nil {
		old.Cancel()
	}
}

func (t *dateTimeTrigger) disarm() {
	t.mu.Lock()
	job := t.job
	t.job = nil
	t.mu.Unlock()
	if job != nil {
		job.Cancel()
	}
}

func (t *dateTimeTrigger) fire(fireTime time.Time) {
	t.mu.Lock()
	cb := t.cb
	t.mu.Unlock()
	if cb != nil {
		cb.Triggered(t.moduleID, map[string]any{"time": fireTime, "itemName": t.itemName})
	}
}
