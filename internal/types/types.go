package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// State is any value an item can hold. Format returns the canonical wire
// text ("ON", "42.5", "2026-01-18T20:00:00Z"); Kind names the value type
// ("OnOff", "Decimal") for event payloads.
type State interface {
	Kind() string
	Format() string
	isState()
}

// Command is any value that can be sent to an item. Values that are both
// State and Command (OnOff, Percent, ...) implement both interfaces.
type Command interface {
	Kind() string
	Format() string
	isCommand()
}

// ItemType classifies an item and decides which states and commands it
// accepts.
type ItemType string

// ItemType constants.
const (
	ItemTypeSwitch        ItemType = "Switch"
	ItemTypeDimmer        ItemType = "Dimmer"
	ItemTypeContact       ItemType = "Contact"
	ItemTypeNumber        ItemType = "Number"
	ItemTypeString        ItemType = "String"
	ItemTypeRollershutter ItemType = "Rollershutter"
	ItemTypeDateTime      ItemType = "DateTime"
	ItemTypeGroup         ItemType = "Group"
)

// AllItemTypes returns all valid item type values.
func AllItemTypes() []ItemType {
	return []ItemType{
		ItemTypeSwitch, ItemTypeDimmer, ItemTypeContact, ItemTypeNumber,
		ItemTypeString, ItemTypeRollershutter, ItemTypeDateTime, ItemTypeGroup,
	}
}

// OnOff is the binary switch value. State and command.
type OnOff bool

// OnOff constants.
const (
	On  OnOff = true
	Off OnOff = false
)

// Kind implements State and Command.
func (OnOff) Kind() string { return "OnOff" }

// Format implements State and Command.
func (v OnOff) Format() string {
	if bool(v) {
		return "ON"
	}
	return "OFF"
}

func (OnOff) isState()   {}
func (OnOff) isCommand() {}

// OpenClosed is the contact value. State only: contacts report, they are
// not commanded.
type OpenClosed bool

// OpenClosed constants.
const (
	Open   OpenClosed = true
	Closed OpenClosed = false
)

// Kind implements State.
func (OpenClosed) Kind() string { return "OpenClosed" }

// Format implements State.
func (v OpenClosed) Format() string {
	if bool(v) {
		return "OPEN"
	}
	return "CLOSED"
}

func (OpenClosed) isState() {}

// UpDown moves a rollershutter to an end position. State and command.
type UpDown bool

// UpDown constants.
const (
	Up   UpDown = true
	Down UpDown = false
)

// Kind implements State and Command.
func (UpDown) Kind() string { return "UpDown" }

// Format implements State and Command.
func (v UpDown) Format() string {
	if bool(v) {
		return "UP"
	}
	return "DOWN"
}

func (UpDown) isState()   {}
func (UpDown) isCommand() {}

// StopMove halts or resumes rollershutter travel. Command only.
type StopMove bool

// StopMove constants.
const (
	Stop StopMove = true
	Move StopMove = false
)

// Kind implements Command.
func (StopMove) Kind() string { return "StopMove" }

// Format implements Command.
func (v StopMove) Format() string {
	if bool(v) {
		return "STOP"
	}
	return "MOVE"
}

func (StopMove) isCommand() {}

// IncreaseDecrease steps a dimmer relatively. Command only: there is no
// meaningful resulting state until the device reports back.
type IncreaseDecrease bool

// IncreaseDecrease constants.
const (
	Increase IncreaseDecrease = true
	Decrease IncreaseDecrease = false
)

// Kind implements Command.
func (IncreaseDecrease) Kind() string { return "IncreaseDecrease" }

// Format implements Command.
func (v IncreaseDecrease) Format() string {
	if bool(v) {
		return "INCREASE"
	}
	return "DECREASE"
}

func (IncreaseDecrease) isCommand() {}

// Refresh asks a binding to re-read the current value. Command only.
type Refresh struct{}

// Kind implements Command.
func (Refresh) Kind() string { return "Refresh" }

// Format implements Command.
func (Refresh) Format() string { return "REFRESH" }

func (Refresh) isCommand() {}

// Decimal is an unbounded numeric value. State and command.
type Decimal float64

// Kind implements State and Command.
func (Decimal) Kind() string { return "Decimal" }

// Format implements State and Command. Trailing zeros are dropped so 42.0
// round-trips as "42".
func (v Decimal) Format() string {
	return strconv.FormatFloat(float64(v), 'f', -1, 64)
}

func (Decimal) isState()   {}
func (Decimal) isCommand() {}

// Percent is a numeric value bounded to [0,100]. State and command.
type Percent float64

// NewPercent builds a Percent, rejecting out-of-range values.
func NewPercent(v float64) (Percent, error) {
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("%w: %v out of range [0,100]", ErrInvalidValue, v)
	}
	return Percent(v), nil
}

// Kind implements State and Command.
func (Percent) Kind() string { return "Percent" }

// Format implements State and Command.
func (v Percent) Format() string {
	return strconv.FormatFloat(float64(v), 'f', -1, 64)
}

func (Percent) isState()   {}
func (Percent) isCommand() {}

// StringVal is a free-form text value. State and command.
type StringVal string

// Kind implements State and Command.
func (StringVal) Kind() string { return "String" }

// Format implements State and Command.
func (v StringVal) Format() string { return string(v) }

func (StringVal) isState()   {}
func (StringVal) isCommand() {}

// DateTime is an instant in time. State and command. The wire format is
// RFC 3339.
type DateTime struct {
	t time.Time
}

// NewDateTime wraps t as a DateTime value.
func NewDateTime(t time.Time) DateTime { return DateTime{t: t} }

// Time returns the wrapped instant.
func (v DateTime) Time() time.Time { return v.t }

// Kind implements State and Command.
func (DateTime) Kind() string { return "DateTime" }

// Format implements State and Command.
func (v DateTime) Format() string { return v.t.Format(time.RFC3339) }

func (DateTime) isState()   {}
func (DateTime) isCommand() {}

// unset marks the two "no value" states. Null means nothing was ever set;
// Undef means the value is currently not determinable.
type unset uint8

// Unset state constants.
const (
	// Null is the state every item starts from.
	Null unset = iota
	// Undef marks a value that exists but cannot currently be determined.
	Undef
)

// Kind implements State.
func (v unset) Kind() string { return "UnDef" }

// Format implements State.
func (v unset) Format() string {
	if v == Null {
		return "NULL"
	}
	return "UNDEF"
}

func (unset) isState() {}

// IsUnset reports whether s is Null or Undef.
func IsUnset(s State) bool {
	_, ok := s.(unset)
	return ok
}

// Equal reports value equality between two states. Different kinds are
// never equal: Percent(0) and Decimal(0) are distinct, as are Null and
// Undef.
func Equal(a, b State) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	if ad, ok := a.(DateTime); ok {
		return ad.t.Equal(b.(DateTime).t)
	}
	return a == b
}

// AsDecimal coerces numeric states (Decimal, Percent) to a float64 for
// arithmetic. Returns false for everything else.
func AsDecimal(s State) (float64, bool) {
	switch v := s.(type) {
	case Decimal:
		return float64(v), true
	case Percent:
		return float64(v), true
	default:
		return 0, false
	}
}

// StateFromCommand returns the state a command is expected to settle into,
// used for autoupdate prediction. Commands without a direct state
// counterpart (StopMove, IncreaseDecrease, Refresh) predict nothing.
func StateFromCommand(c Command) (State, bool) {
	if _, ok := c.(Refresh); ok {
		return nil, false
	}
	s, ok := c.(State)
	return s, ok
}

// Compare orders two states of the same numeric or comparable kind.
// Returns <0, 0, >0 and ok=false when the pair cannot be ordered.
func Compare(a, b State) (int, bool) {
	if av, ok := AsDecimal(a); ok {
		bv, bok := AsDecimal(b)
		if !bok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	}
	if ad, ok := a.(DateTime); ok {
		bd, bok := b.(DateTime)
		if !bok {
			return 0, false
		}
		return ad.t.Compare(bd.t), true
	}
	if as, ok := a.(StringVal); ok {
		bs, bok := b.(StringVal)
		if !bok {
			return 0, false
		}
		return strings.Compare(string(as), string(bs)), true
	}
	return 0, false
}
