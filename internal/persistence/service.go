package persistence

import (
	"context"
	"time"

	"github.com/hearth-home/hearth-core/internal/types"
)

// SourceName marks state updates written by the persistence layer, so
// they are recognised on the bus and not persisted again.
const SourceName = "persistence"

// Strategy names accepted in StrategyConfig.Name.
const (
	StrategyEveryChange = "everyChange"
	StrategyEveryUpdate = "everyUpdate"
	StrategyCron        = "cron"
)

// StrategyConfig is one persistence policy: when to store and which
// items it covers.
type StrategyConfig struct {
	// Name selects the policy: everyChange, everyUpdate or cron.
	Name string `yaml:"name"`

	// CronExpression drives cron strategies; ignored otherwise.
	CronExpression string `yaml:"cron,omitempty"`

	// Items filters coverage: explicit item names, "gGroup*" for the
	// members of a group, or "*" for everything. Empty means everything.
	Items []string `yaml:"items,omitempty"`
}

// ItemSnapshot is one item state observation handed to a service.
type ItemSnapshot struct {
	Name  string
	State types.State
	Time  time.Time
}

// Service is a state history backend.
type Service interface {
	// Name identifies the backend in logs and health output.
	Name() string

	// Store records one observation. Implementations decide the on-disk
	// shape; unset states are not history and are dropped.
	Store(snap ItemSnapshot) error

	// LastState returns the most recent stored state for the item.
	// found is false when the item has no history.
	LastState(ctx context.Context, name string) (types.State, time.Time, bool, error)
}

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
