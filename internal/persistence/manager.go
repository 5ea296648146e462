package persistence

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hearth-home/hearth-core/internal/events"
	"github.com/hearth-home/hearth-core/internal/items"
	"github.com/hearth-home/hearth-core/internal/scheduler"
	"github.com/hearth-home/hearth-core/internal/types"
)

// cronStrategy pairs a cron strategy with its validated schedule.
type cronStrategy struct {
	cfg  StrategyConfig
	next scheduler.NextFunc
}

// Manager applies persistence strategies to the item event stream and
// restores last-known states at startup.
type Manager struct {
	service Service
	items   *items.Registry
	sched   *scheduler.Scheduler
	bus     *events.Bus
	logger  Logger

	update []StrategyConfig
	change []StrategyConfig
	cron   []cronStrategy

	mu        sync.Mutex
	jobs      []*scheduler.Job
	restoring map[string]types.State
}

// NewManager validates the strategy list and builds a manager. Unknown
// strategy names and bad cron expressions fail construction, so a
// misconfigured strategy is caught at startup rather than silently
// never firing.
func NewManager(service Service, reg *items.Registry, sched *scheduler.Scheduler, bus *events.Bus, strategies []StrategyConfig, logger Logger) (*Manager, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	m := &Manager{
		service:   service,
		items:     reg,
		sched:     sched,
		bus:       bus,
		logger:    logger,
		restoring: make(map[string]types.State),
	}
	for _, sc := range strategies {
		switch sc.Name {
		case StrategyEveryUpdate:
			m.update = append(m.update, sc)
		case StrategyEveryChange:
			m.change = append(m.change, sc)
		case StrategyCron:
			adj, err := scheduler.NewCronAdjuster(sc.CronExpression)
			if err != nil {
				return nil, fmt.Errorf("persistence: cron strategy %q: %w", sc.CronExpression, err)
			}
			m.cron = append(m.cron, cronStrategy{cfg: sc, next: adj.Next})
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, sc.Name)
		}
	}
	return m, nil
}

// Start subscribes to item events and schedules the cron strategies.
func (m *Manager) Start() {
	m.bus.Subscribe(m)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cs := range m.cron {
		cs := cs
		job := m.sched.Schedule(cs.next, func(fireTime time.Time) error {
			m.snapshot(cs.cfg, fireTime)
			return nil
		})
		m.jobs = append(m.jobs, job)
	}
	m.logger.Info("persistence started",
		"service", m.service.Name(),
		"everyUpdate", len(m.update), "everyChange", len(m.change), "cron", len(m.cron))
}

// Stop unsubscribes from the bus and cancels the cron jobs.
func (m *Manager) Stop() {
	m.bus.Unsubscribe(m)
	m.mu.Lock()
	jobs := m.jobs
	m.jobs = nil
	m.mu.Unlock()
	for _, j := range jobs {
		j.Cancel()
	}
}

// SubscribedEventTypes implements events.Subscriber.
func (m *Manager) SubscribedEventTypes() []string {
	return []string{items.EventTypeState, items.EventTypeStateChanged, items.EventTypeGroupStateChanged}
}

// Receive implements events.Subscriber. State events drive everyUpdate
// strategies, statechanged events (plain and group) drive everyChange.
// The layer's own restore updates are filtered out: state events by
// source, statechanged events through the restore mark, since they
// carry no source.
func (m *Manager) Receive(ev events.Event) {
	switch ev.Type() {
	case items.EventTypeState:
		name, suffix, ok := items.SplitTopic(ev.Topic())
		if !ok || suffix != "state" {
			return
		}
		if ev.Source() == SourceName {
			return
		}
		st, err := items.DecodeStatePayload(ev.Payload())
		if err != nil {
			m.logger.Warn("undecodable state event", "topic", ev.Topic(), "error", err)
			return
		}
		m.storeMatching(m.update, name, st)

	case items.EventTypeStateChanged:
		name, suffix, ok := items.SplitTopic(ev.Topic())
		if !ok || suffix != "statechanged" {
			return
		}
		_, st, err := items.DecodeStateChangedPayload(ev.Payload())
		if err != nil {
			m.logger.Warn("undecodable statechanged event", "topic", ev.Topic(), "error", err)
			return
		}
		if m.consumeRestoreMark(name, st) {
			return
		}
		m.storeMatching(m.change, name, st)

	case items.EventTypeGroupStateChanged:
		group, _, ok := items.SplitGroupTopic(ev.Topic())
		if !ok {
			return
		}
		_, st, err := items.DecodeStateChangedPayload(ev.Payload())
		if err != nil {
			m.logger.Warn("undecodable group statechanged event", "topic", ev.Topic(), "error", err)
			return
		}
		m.storeMatching(m.change, group, st)
	}
}

// RestoreOnStartup applies the last stored state to every item still at
// NULL. Items that already received a state and group items (their
// states are derived) are left alone. Call after the model providers
// have loaded and before bindings start reporting.
func (m *Manager) RestoreOnStartup(ctx context.Context) {
	restored := 0
	for _, it := range m.items.All() {
		if it.IsGroup() || !types.Equal(it.State, types.Null) {
			continue
		}
		st, at, found, err := m.service.LastState(ctx, it.Name)
		if err != nil {
			m.logger.Warn("restore query failed", "item", it.Name, "error", err)
			continue
		}
		if !found {
			continue
		}
		m.markRestore(it.Name, st)
		if err := m.items.UpdateStateFrom(it.Name, st, SourceName); err != nil {
			m.logger.Warn("restore update rejected", "item", it.Name, "error", err)
			continue
		}
		restored++
		m.logger.Debug("item state restored",
			"item", it.Name, "state", st.Format(), "age", time.Since(at).Round(time.Second).String())
	}
	if restored > 0 {
		m.logger.Info("item states restored", "items", restored, "service", m.service.Name())
	}
}

// storeMatching stores one snapshot when any strategy in the list
// covers the item. Overlapping strategies store once.
func (m *Manager) storeMatching(strategies []StrategyConfig, name string, st types.State) {
	for _, sc := range strategies {
		if !m.matches(sc, name) {
			continue
		}
		m.store(ItemSnapshot{Name: name, State: st, Time: time.Now()})
		return
	}
}

// snapshot stores the current state of every item a cron strategy
// covers. Unset states are not history and are skipped.
func (m *Manager) snapshot(sc StrategyConfig, at time.Time) {
	stored := 0
	for _, it := range m.items.All() {
		if !m.matches(sc, it.Name) {
			continue
		}
		if it.State == nil || types.IsUnset(it.State) {
			continue
		}
		m.store(ItemSnapshot{Name: it.Name, State: it.State, Time: at})
		stored++
	}
	m.logger.Debug("cron strategy stored states", "cron", sc.CronExpression, "items", stored)
}

func (m *Manager) store(snap ItemSnapshot) {
	if err := m.service.Store(snap); err != nil {
		m.logger.Warn("state not persisted",
			"item", snap.Name, "service", m.service.Name(), "error", err)
	}
}

// matches reports whether the strategy covers the named item. An empty
// filter list covers everything.
func (m *Manager) matches(sc StrategyConfig, name string) bool {
	if len(sc.Items) == 0 {
		return true
	}
	for _, f := range sc.Items {
		switch {
		case f == "*":
			return true
		case strings.HasSuffix(f, "*"):
			group := strings.TrimSuffix(f, "*")
			if it, ok := m.items.Get(name); ok && it.MemberOf(group) {
				return true
			}
		case f == name:
			return true
		}
	}
	return false
}

// markRestore records that the next statechanged for the item carrying
// this exact state is a restore echo, not a real change.
func (m *Manager) markRestore(name string, st types.State) {
	m.mu.Lock()
	m.restoring[name] = st
	m.mu.Unlock()
}

// consumeRestoreMark clears the item's restore mark and reports whether
// the observed state is the restore echo. The mark is single-shot: a
// real change arriving first clears it too, so a lost echo cannot
// suppress later persists.
func (m *Manager) consumeRestoreMark(name string, st types.State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	marked, ok := m.restoring[name]
	if !ok {
		return false
	}
	delete(m.restoring, name)
	return types.Equal(marked, st)
}
