// Package scheduler provides time-based job execution for the automation
// engine: a full Quartz-style cron expression engine and a lightweight
// goroutine-timer scheduler for one-shot and recurring jobs.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                          scheduler                            │
//	│                                                               │
//	│  ┌──────────────────┐            ┌─────────────────────────┐  │
//	│  │   CronAdjuster   │            │       Scheduler         │  │
//	│  │    (cron.go)     │            │     (scheduler.go)      │  │
//	│  │                  │  NextFunc  │                         │  │
//	│  │ • 6/7 field expr │ ─────────▶ │ • After (one-shot)      │  │
//	│  │ • L LW nW #n     │            │ • Schedule (recurring)  │  │
//	│  │ • @macros        │            │ • Job cancel/wait       │  │
//	│  │ • Next(t)        │            │ • Close cancels all     │  │
//	│  └──────────────────┘            └─────────────────────────┘  │
//	└──────────────────────────────────────────────────────────────┘
//
// # Cron Expressions
//
// Six or seven whitespace-separated fields:
//
//	second minute hour day-of-month month day-of-week [year]
//
// Supported per field: lists ("1,15,30"), ranges ("MON-FRI"), steps
// ("*/5", "10-30/2"), wildcards ("*" and "?"). Day-of-month additionally
// supports "L" (last day), "LW" (last working day) and "nW" (working day
// nearest to the nth, never leaving the month). Day-of-week supports
// "5L" (last Thursday) and "FRI#3" (third Friday). Predeclared
// expressions: @yearly/@annually, @monthly, @weekly (Monday midnight),
// @daily, @hourly and @reboot.
//
// Single day-of-week values follow Quartz numbering (1=SUN..7=SAT, names
// always work); values inside ranges and steps are ISO (1=MON..7=SUN).
//
// The next fire time is computed by a field-wise adjustment loop: advance
// one second past the reference time, then repeatedly find the first
// field that does not match, step it by its base unit, zero all finer
// fields and restart. Searches are capped at year 2200, so impossible
// dates (February 31st) report no next fire time instead of spinning.
//
// # Thread Safety
//
// CronAdjuster is immutable after construction. Scheduler and Job methods
// are safe for concurrent use; job functions run on their own goroutines.
package scheduler
