package items

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hearth-home/hearth-core/internal/types"
)

// GroupItem is a group definition together with its resolved members.
type GroupItem struct {
	*Item
	Members []*Item
}

// aggregator folds member states into the group's state.
type aggregator func(members []types.State) types.State

// aggregatorFor builds the aggregation function configured on a group
// item. A nil Function yields the equality default.
func aggregatorFor(it *Item) (aggregator, error) {
	if !it.IsGroup() {
		return nil, fmt.Errorf("%w: %s", ErrNotAGroup, it.Name)
	}
	if it.Function == nil {
		return aggregateEquality, nil
	}

	name := strings.ToUpper(it.Function.Name)
	switch name {
	case "", "EQUALITY":
		return aggregateEquality, nil
	case "AND", "OR", "NAND", "NOR":
		active, passive, err := binaryParams(it)
		if err != nil {
			return nil, err
		}
		switch name {
		case "AND":
			return aggregateAnd(active, passive), nil
		case "OR":
			return aggregateOr(active, passive), nil
		case "NAND":
			return negate(aggregateAnd(active, passive), active, passive), nil
		default:
			return negate(aggregateOr(active, passive), active, passive), nil
		}
	case "AVG":
		return aggregateAvg, nil
	case "SUM":
		return aggregateSum, nil
	case "MIN":
		return aggregateMin, nil
	case "MAX":
		return aggregateMax, nil
	case "COUNT":
		if len(it.Function.Params) != 1 {
			return nil, fmt.Errorf("%w: COUNT needs one pattern parameter on %s",
				ErrInvalidGroupFunction, it.Name)
		}
		// Full-match semantics, like the item state must equal the
		// pattern end to end.
		re, err := regexp.Compile("^(?:" + it.Function.Params[0] + ")$")
		if err != nil {
			return nil, fmt.Errorf("%w: COUNT pattern on %s: %v",
				ErrInvalidGroupFunction, it.Name, err)
		}
		return aggregateCount(re), nil
	default:
		return nil, fmt.Errorf("%w: %q on %s", ErrInvalidGroupFunction, it.Function.Name, it.Name)
	}
}

// binaryParams parses the active and passive states of a logical group
// function against the group's base type.
func binaryParams(it *Item) (active, passive types.State, err error) {
	if len(it.Function.Params) != 2 {
		return nil, nil, fmt.Errorf("%w: %s needs active and passive parameters on %s",
			ErrInvalidGroupFunction, it.Function.Name, it.Name)
	}
	base := it.GroupType
	if base == "" {
		return nil, nil, fmt.Errorf("%w: %s on %s needs a group base type",
			ErrInvalidGroupFunction, it.Function.Name, it.Name)
	}
	if active, err = types.Parse(base, it.Function.Params[0]); err != nil {
		return nil, nil, fmt.Errorf("%w: active parameter on %s: %v", ErrInvalidGroupFunction, it.Name, err)
	}
	if passive, err = types.Parse(base, it.Function.Params[1]); err != nil {
		return nil, nil, fmt.Errorf("%w: passive parameter on %s: %v", ErrInvalidGroupFunction, it.Name, err)
	}
	return active, passive, nil
}

// aggregateEquality returns the state all members agree on, Undef
// otherwise. The default when no function is configured.
func aggregateEquality(members []types.State) types.State {
	if len(members) == 0 {
		return types.Undef
	}
	first := members[0]
	for _, s := range members[1:] {
		if !types.Equal(first, s) {
			return types.Undef
		}
	}
	return first
}

// aggregateAnd is active when every member reads as the active state.
// Members are converted to the active state's kind first, so a Dimmer at
// 60 counts as On in a Switch group. An empty group is passive.
func aggregateAnd(active, passive types.State) aggregator {
	return func(members []types.State) types.State {
		if len(members) == 0 {
			return passive
		}
		for _, s := range members {
			if !memberIs(s, active) {
				return passive
			}
		}
		return active
	}
}

// aggregateOr is active when at least one member reads as the active
// state.
func aggregateOr(active, passive types.State) aggregator {
	return func(members []types.State) types.State {
		for _, s := range members {
			if memberIs(s, active) {
				return active
			}
		}
		return passive
	}
}

// negate flips active and passive in the wrapped function's result.
func negate(fn aggregator, active, passive types.State) aggregator {
	return func(members []types.State) types.State {
		if types.Equal(fn(members), active) {
			return passive
		}
		return active
	}
}

func memberIs(s, want types.State) bool {
	converted, ok := types.StateAs(s, want.Kind())
	if !ok {
		return false
	}
	return types.Equal(converted, want)
}

func aggregateAvg(members []types.State) types.State {
	sum, count := 0.0, 0
	for _, s := range members {
		if v, ok := memberDecimal(s); ok {
			sum += v
			count++
		}
	}
	if count == 0 {
		return types.Undef
	}
	return types.Decimal(sum / float64(count))
}

// aggregateSum is zero for an empty group, unlike Avg/Min/Max.
func aggregateSum(members []types.State) types.State {
	sum := 0.0
	for _, s := range members {
		if v, ok := memberDecimal(s); ok {
			sum += v
		}
	}
	return types.Decimal(sum)
}

func aggregateMin(members []types.State) types.State {
	var min float64
	found := false
	for _, s := range members {
		if v, ok := memberDecimal(s); ok {
			if !found || v < min {
				min = v
				found = true
			}
		}
	}
	if !found {
		return types.Undef
	}
	return types.Decimal(min)
}

func aggregateMax(members []types.State) types.State {
	var max float64
	found := false
	for _, s := range members {
		if v, ok := memberDecimal(s); ok {
			if !found || v > max {
				max = v
				found = true
			}
		}
	}
	if !found {
		return types.Undef
	}
	return types.Decimal(max)
}

// aggregateCount counts members whose formatted state matches the
// pattern.
func aggregateCount(re *regexp.Regexp) aggregator {
	return func(members []types.State) types.State {
		count := 0
		for _, s := range members {
			if s != nil && re.MatchString(s.Format()) {
				count++
			}
		}
		return types.Decimal(count)
	}
}

func memberDecimal(s types.State) (float64, bool) {
	converted, ok := types.StateAs(s, "Decimal")
	if !ok {
		return 0, false
	}
	v, ok := types.AsDecimal(converted)
	return v, ok
}
