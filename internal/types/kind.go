package types

import "fmt"

// acceptedStateKinds mirrors stateParsers: the state kinds each item type
// may hold, primary kind first.
var acceptedStateKinds = map[ItemType][]string{
	ItemTypeSwitch:        {"OnOff"},
	ItemTypeDimmer:        {"Percent", "OnOff"},
	ItemTypeContact:       {"OpenClosed"},
	ItemTypeNumber:        {"Decimal"},
	ItemTypeString:        {"String"},
	ItemTypeRollershutter: {"Percent", "UpDown"},
	ItemTypeDateTime:      {"DateTime"},
}

// acceptedCommandKinds mirrors commandParsers.
var acceptedCommandKinds = map[ItemType][]string{
	ItemTypeSwitch:        {"OnOff"},
	ItemTypeDimmer:        {"Percent", "OnOff", "IncreaseDecrease"},
	ItemTypeContact:       {},
	ItemTypeNumber:        {"Decimal"},
	ItemTypeString:        {"String"},
	ItemTypeRollershutter: {"UpDown", "StopMove", "Percent"},
	ItemTypeDateTime:      {"DateTime"},
}

// PrimaryStateKind returns the canonical state kind of an item type, the
// one incompatible states are converted into. Group has none.
func PrimaryStateKind(it ItemType) (string, bool) {
	kinds, ok := acceptedStateKinds[it]
	if !ok || len(kinds) == 0 {
		return "", false
	}
	return kinds[0], true
}

// AcceptsState reports whether an item of the given type may hold s
// directly, without conversion. Null and Undef are accepted everywhere.
func AcceptsState(it ItemType, s State) bool {
	if s == nil {
		return false
	}
	if IsUnset(s) {
		return true
	}
	for _, k := range acceptedStateKinds[it] {
		if s.Kind() == k {
			return true
		}
	}
	return false
}

// AcceptsCommand reports whether an item of the given type handles c.
// Refresh is accepted everywhere.
func AcceptsCommand(it ItemType, c Command) bool {
	if c == nil {
		return false
	}
	if _, ok := c.(Refresh); ok {
		return true
	}
	for _, k := range acceptedCommandKinds[it] {
		if c.Kind() == k {
			return true
		}
	}
	return false
}

// StateFromKind rebuilds a state from its kind name and wire value, the
// pair carried in event payloads.
func StateFromKind(kind, value string) (State, error) {
	switch kind {
	case "OnOff":
		if s, ok := parseOnOff(value); ok {
			return s, nil
		}
	case "OpenClosed":
		if s, ok := parseOpenClosed(value); ok {
			return s, nil
		}
	case "UpDown":
		if s, ok := parseUpDown(value); ok {
			return s, nil
		}
	case "Percent":
		if s, ok := parsePercent(value); ok {
			return s, nil
		}
	case "Decimal":
		if s, ok := parseDecimal(value); ok {
			return s, nil
		}
	case "String":
		return StringVal(value), nil
	case "DateTime":
		if s, ok := parseDateTime(value); ok {
			return s, nil
		}
	case "UnDef":
		switch value {
		case "NULL":
			return Null, nil
		case "UNDEF":
			return Undef, nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown state kind %q", ErrParse, kind)
	}
	return nil, fmt.Errorf("%w: %q as %s", ErrParse, value, kind)
}

// CommandFromKind rebuilds a command from its kind name and wire value.
func CommandFromKind(kind, value string) (Command, error) {
	switch kind {
	case "StopMove":
		if c, ok := parseStopMove(value); ok {
			return c, nil
		}
		return nil, fmt.Errorf("%w: %q as StopMove", ErrParse, value)
	case "IncreaseDecrease":
		if c, ok := parseIncreaseDecrease(value); ok {
			return c, nil
		}
		return nil, fmt.Errorf("%w: %q as IncreaseDecrease", ErrParse, value)
	case "Refresh":
		return Refresh{}, nil
	}
	s, err := StateFromKind(kind, value)
	if err != nil {
		return nil, err
	}
	c, ok := s.(Command)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a command kind", ErrParse, kind)
	}
	return c, nil
}
