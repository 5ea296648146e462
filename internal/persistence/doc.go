// Package persistence records item state history and restores last-known
// states at startup.
//
// # Architecture
//
//	┌───────────┐   ┌──────────────────┐   ┌──────────────────┐
//	│ event bus │──▶│     Manager      │──▶│     Service      │
//	│ state /   │   │ strategy match   │   │ (InfluxDB)       │
//	│ changed   │   │ restore marks    │   │ store / last     │
//	└───────────┘   └──────────────────┘   └──────────────────┘
//	      ▲                  │
//	      │                  ▼
//	┌───────────┐   ┌──────────────────┐
//	│ scheduler │   │  item registry   │
//	│ cron jobs │   │ states / groups  │
//	└───────────┘   └──────────────────┘
//
// The manager subscribes to item state events and applies the configured
// strategies: everyUpdate stores on every state event, everyChange only
// when the value actually changed, and cron strategies snapshot the
// current states of their items on a schedule. Each strategy carries an
// item filter (explicit names, gGroup* for group members, * for all).
//
// RestoreOnStartup queries the service for the last stored state of
// every item still at NULL and applies it through the registry. Restored
// states are marked so their own events do not persist again.
//
// # Key Types
//
//   - Service: the storage backend contract (Store, LastState).
//   - InfluxService: Service on InfluxDB, one measurement per item.
//   - Manager: strategy evaluation, cron jobs, startup restore.
//   - StrategyConfig: one policy (name, cron expression, item filter).
//
// # Thread Safety
//
// Manager is safe for concurrent use; Receive runs on the event bus
// dispatcher goroutine. InfluxService is safe for concurrent use.
package persistence
