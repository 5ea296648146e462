package handlers

import (
	"fmt"
	"sync"

	"github.com/hearth-home/hearth-core/internal/events"
	"github.com/hearth-home/hearth-core/internal/items"
	"github.com/hearth-home/hearth-core/internal/rules"
	"github.com/hearth-home/hearth-core/internal/scheduler"
	"github.com/hearth-home/hearth-core/internal/things"
)

// Built-in module type UIDs.
const (
	TypeItemStateUpdateTrigger   = "core.ItemStateUpdateTrigger"
	TypeItemStateChangeTrigger   = "core.ItemStateChangeTrigger"
	TypeItemCommandTrigger       = "core.ItemCommandTrigger"
	TypeGroupStateChangeTrigger  = "core.GroupStateChangeTrigger"
	TypeThingStatusChangeTrigger = "core.ThingStatusChangeTrigger"
	TypeChannelEventTrigger      = "core.ChannelEventTrigger"
	TypeSystemStartTrigger       = "core.SystemStartTrigger"
	TypeCronTrigger              = "timer.GenericCronTrigger"
	TypeTimeOfDayTrigger         = "timer.TimeOfDayTrigger"
	TypeDateTimeTrigger          = "timer.DateTimeTrigger"
	TypeItemStateCondition       = "core.ItemStateCondition"
	TypeTimeOfDayCondition       = "core.TimeOfDayCondition"
	TypeDayOfWeekCondition       = "core.DayOfWeekCondition"
	TypeItemCommandAction        = "core.ItemCommandAction"
	TypeItemStateUpdateAction    = "core.ItemStateUpdateAction"
	TypeRuleEnablementAction     = "core.RuleEnablementAction"
	TypeRunRuleAction            = "core.RunRuleAction"
)

// Logger is the minimal logging interface this package needs.
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

// RuleController is the slice of the engine the rule control actions
// need.
type RuleController interface {
	RunNow(uid string, considerConditions bool, runContext map[string]any) error
	SetEnabled(uid string, enabled bool) error
}

// CoreFactory builds the built-in handlers. One factory instance serves
// every rule; created handlers are tracked per rule and module until
// released.
type CoreFactory struct {
	items  *items.Registry
	things *things.Registry
	sched  *scheduler.Scheduler
	bus    *events.Bus
	rules  RuleController
	logger Logger

	mu      sync.Mutex
	created map[string]rules.Handler
}

// NewCoreFactory wires the built-in handler set. thingsReg may be nil
// when no thing support is wanted; thing triggers then fail to create.
func NewCoreFactory(
	itemsReg *items.Registry,
	thingsReg *things.Registry,
	sched *scheduler.Scheduler,
	bus *events.Bus,
	ctrl RuleController,
	logger Logger,
) *CoreFactory {
	if logger == nil {
		logger = noopLogger{}
	}
	return &CoreFactory{
		items:   itemsReg,
		things:  thingsReg,
		sched:   sched,
		bus:     bus,
		rules:   ctrl,
		logger:  logger,
		created: make(map[string]rules.Handler),
	}
}

// Types implements rules.HandlerFactory.
func (f *CoreFactory) Types() []string {
	return []string{
		TypeItemStateUpdateTrigger,
		TypeItemStateChangeTrigger,
		TypeItemCommandTrigger,
		TypeGroupStateChangeTrigger,
		TypeThingStatusChangeTrigger,
		TypeChannelEventTrigger,
		TypeSystemStartTrigger,
		TypeCronTrigger,
		TypeTimeOfDayTrigger,
		TypeDateTimeTrigger,
		TypeItemStateCondition,
		TypeTimeOfDayCondition,
		TypeDayOfWeekCondition,
		TypeItemCommandAction,
		TypeItemStateUpdateAction,
		TypeRuleEnablementAction,
		TypeRunRuleAction,
	}
}

// Create implements rules.HandlerFactory.
func (f *CoreFactory) Create(r *rules.Rule, m rules.Module) (rules.Handler, error) {
	h, err := f.build(m)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.created[r.UID+"/"+m.ID] = h
	f.mu.Unlock()
	return h, nil
}

func (f *CoreFactory) build(m rules.Module) (rules.Handler, error) {
	switch m.TypeUID {
	case TypeItemStateUpdateTrigger:
		return newItemStateUpdateTrigger(f, m)
	case TypeItemStateChangeTrigger:
		return newItemStateChangeTrigger(f, m)
	case TypeItemCommandTrigger:
		return newItemCommandTrigger(f, m)
	case TypeGroupStateChangeTrigger:
		return newGroupStateChangeTrigger(f, m)
	case TypeThingStatusChangeTrigger:
		return newThingStatusChangeTrigger(f, m)
	case TypeChannelEventTrigger:
		return newChannelEventTrigger(f, m)
	case TypeSystemStartTrigger:
		return newSystemStartTrigger(m), nil
	case TypeCronTrigger:
		return newCronTrigger(f, m)
	case TypeTimeOfDayTrigger:
		return newTimeOfDayTrigger(f, m)
	case TypeDateTimeTrigger:
		return newDateTimeTrigger(f, m)
	case TypeItemStateCondition:
		return newItemStateCondition(f, m)
	case TypeTimeOfDayCondition:
		return newTimeOfDayCondition(m)
	case TypeDayOfWeekCondition:
		return newDayOfWeekCondition(m)
	case TypeItemCommandAction:
		return newItemCommandAction(f, m)
	case TypeItemStateUpdateAction:
		return newItemStateUpdateAction(f, m)
	case TypeRuleEnablementAction:
		return newRuleEnablementAction(f, m)
	case TypeRunRuleAction:
		return newRunRuleAction(f, m)
	default:
		return nil, fmt.Errorf("handlers: unknown module type %s", m.TypeUID)
	}
}

// Release implements rules.HandlerFactory. Releasing detaches trigger
// handlers as a safety net; the engine normally detached them already.
func (f *CoreFactory) Release(ruleUID, moduleID string) {
	key := ruleUID + "/" + moduleID
	f.mu.Lock()
	h, ok := f.created[key]
	delete(f.created, key)
	f.mu.Unlock()
	if !ok {
		return
	}
	if th, isTrigger := h.(rules.TriggerHandler); isTrigger {
		th.Detach()
	}
}

// configString reads a required string entry from a module
// configuration.
func configString(cfg map[string]any, key string) (string, error) {
	v, ok := cfg[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", rules.ErrBadConfig, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %q must be a non-empty string", rules.ErrBadConfig, key)
	}
	return s, nil
}

// optString reads an optional string entry; absent or non-string values
// read as "".
func optString(cfg map[string]any, key string) string {
	s, _ := cfg[key].(string)
	return s
}

// optBool reads an optional bool entry with a default.
func optBool(cfg map[string]any, key string, def bool) bool {
	v, ok := cfg[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// stringSlice reads a list entry that may be a []string, a []any of
// strings, or a single string.
func stringSlice(cfg map[string]any, key string) ([]string, error) {
	v, ok := cfg[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", rules.ErrBadConfig, key)
	}
	switch tv := v.(type) {
	case string:
		if tv == "" {
			return nil, fmt.Errorf("%w: %q must not be empty", rules.ErrBadConfig, key)
		}
		return []string{tv}, nil
	case []string:
		if len(tv) == 0 {
			return nil, fmt.Errorf("%w: %q must not be empty", rules.ErrBadConfig, key)
		}
		return tv, nil
	case []any:
		if len(tv) == 0 {
			return nil, fmt.Errorf("%w: %q must not be empty", rules.ErrBadConfig, key)
		}
		out := make([]string, len(tv))
		for i, e := range tv {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q entry %d is not a string", rules.ErrBadConfig, key, i)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q must be a string list", rules.ErrBadConfig, key)
	}
}
