// Package types defines the state and command type system shared by the
// whole platform: the values items carry, the values that can be sent to
// items, and the parsing rules that map wire text onto both.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                        types package                          │
//	│                                                               │
//	│  ┌────────────────┐   ┌────────────────┐   ┌───────────────┐ │
//	│  │  State values  │   │ Command values │   │    Parsing    │ │
//	│  │   (types.go)   │   │   (types.go)   │   │  (parse.go)   │ │
//	│  │                │   │                │   │               │ │
//	│  │ • OnOff        │   │ • OnOff        │   │ • per item    │ │
//	│  │ • OpenClosed   │   │ • StopMove     │   │   type tables │ │
//	│  │ • Percent      │   │ • IncreaseDec. │   │ • first match │ │
//	│  │ • Decimal ...  │   │ • Refresh ...  │   │   wins        │ │
//	│  └────────────────┘   └────────────────┘   └───────────────┘ │
//	└──────────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - State: any value an item can hold (OnOff, Percent, Decimal, ...)
//   - Command: any value that can be sent to an item
//   - Null / Undef: the two "no value" states every item starts from
//
// A value may be both a State and a Command (OnOff, Percent, Decimal,
// StringVal, DateTime, UpDown). Some are command-only (StopMove,
// IncreaseDecrease, Refresh) and some state-only (OpenClosed, Null, Undef).
// The closed marker methods keep the two sets honest at compile time.
//
// # Thread Safety
//
// All values are immutable once constructed; the package holds no state.
package types
