package types

import (
	"fmt"
	"strconv"
	"time"
)

// stateParser attempts to read one concrete state kind from wire text.
type stateParser func(text string) (State, bool)

// commandParser attempts to read one concrete command kind from wire text.
type commandParser func(text string) (Command, bool)

func parseOnOff(text string) (State, bool) {
	switch text {
	case "ON":
		return On, true
	case "OFF":
		return Off, true
	}
	return nil, false
}

func parseOpenClosed(text string) (State, bool) {
	switch text {
	case "OPEN":
		return Open, true
	case "CLOSED":
		return Closed, true
	}
	return nil, false
}

func parseUpDown(text string) (State, bool) {
	switch text {
	case "UP":
		return Up, true
	case "DOWN":
		return Down, true
	}
	return nil, false
}

func parsePercent(text string) (State, bool) {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f < 0 || f > 100 {
		return nil, false
	}
	return Percent(f), true
}

func parseDecimal(text string) (State, bool) {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, false
	}
	return Decimal(f), true
}

func parseDateTime(text string) (State, bool) {
	t, err := time.Parse(time.RFC3339, text)
	if err != nil {
		return nil, false
	}
	return NewDateTime(t), true
}

func parseString(text string) (State, bool) {
	return StringVal(text), true
}

// stateParsers lists, per item type, the state kinds the item accepts in
// the order they are tried. First match wins, so "ON" on a Dimmer becomes
// OnOff while "50" becomes Percent.
var stateParsers = map[ItemType][]stateParser{
	ItemTypeSwitch:        {parseOnOff},
	ItemTypeDimmer:        {parsePercent, parseOnOff},
	ItemTypeContact:       {parseOpenClosed},
	ItemTypeNumber:        {parseDecimal},
	ItemTypeString:        {parseString},
	ItemTypeRollershutter: {parsePercent, parseUpDown},
	ItemTypeDateTime:      {parseDateTime},
}

func cmdFrom(p stateParser) commandParser {
	return func(text string) (Command, bool) {
		s, ok := p(text)
		if !ok {
			return nil, false
		}
		c, ok := s.(Command)
		return c, ok
	}
}

func parseStopMove(text string) (Command, bool) {
	switch text {
	case "STOP":
		return Stop, true
	case "MOVE":
		return Move, true
	}
	return nil, false
}

func parseIncreaseDecrease(text string) (Command, bool) {
	switch text {
	case "INCREASE":
		return Increase, true
	case "DECREASE":
		return Decrease, true
	}
	return nil, false
}

// commandParsers lists, per item type, the command kinds the item accepts
// in the order they are tried. REFRESH is handled up front for every type.
var commandParsers = map[ItemType][]commandParser{
	ItemTypeSwitch:        {cmdFrom(parseOnOff)},
	ItemTypeDimmer:        {cmdFrom(parsePercent), cmdFrom(parseOnOff), parseIncreaseDecrease},
	ItemTypeContact:       {},
	ItemTypeNumber:        {cmdFrom(parseDecimal)},
	ItemTypeString:        {func(text string) (Command, bool) { return StringVal(text), true }},
	ItemTypeRollershutter: {cmdFrom(parseUpDown), parseStopMove, cmdFrom(parsePercent)},
	ItemTypeDateTime:      {cmdFrom(parseDateTime)},
}

// Parse reads wire text into the first state kind the item type accepts.
// "NULL" and "UNDEF" parse for every item type. Group items have no
// accepted states of their own; parse against the group's base item type.
func Parse(it ItemType, text string) (State, error) {
	switch text {
	case "NULL":
		return Null, nil
	case "UNDEF":
		return Undef, nil
	}
	parsers, ok := stateParsers[it]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownItemType, it)
	}
	for _, p := range parsers {
		if s, matched := p(text); matched {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q as %s state", ErrParse, text, it)
}

// ParseCommand reads wire text into the first command kind the item type
// accepts. "REFRESH" parses for every item type.
func ParseCommand(it ItemType, text string) (Command, error) {
	if text == "REFRESH" {
		return Refresh{}, nil
	}
	parsers, ok := commandParsers[it]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownItemType, it)
	}
	for _, p := range parsers {
		if c, matched := p(text); matched {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q as %s command", ErrParse, text, it)
}
