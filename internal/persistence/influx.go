package persistence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hearth-home/hearth-core/internal/infrastructure/influxdb"
	"github.com/hearth-home/hearth-core/internal/items"
	"github.com/hearth-home/hearth-core/internal/types"
)

// TypeLookup resolves an item name to the type its stored samples parse
// back against.
type TypeLookup func(name string) (types.ItemType, bool)

// RegistryTypes adapts an item registry into a TypeLookup. Group items
// resolve to their base type so stored aggregates round-trip; untyped
// groups resolve to nothing.
func RegistryTypes(reg *items.Registry) TypeLookup {
	return func(name string) (types.ItemType, bool) {
		it, ok := reg.Get(name)
		if !ok {
			return "", false
		}
		if it.IsGroup() {
			if it.GroupType == "" {
				return "", false
			}
			return it.GroupType, true
		}
		return it.Type, true
	}
}

// InfluxService stores item states in InfluxDB: one measurement per
// item, a single "value" field holding a float for numeric states and
// the wire text for everything else.
type InfluxService struct {
	client *influxdb.Client
	types  TypeLookup
	logger Logger
}

// NewInfluxService builds the InfluxDB-backed service. The client must
// already be connected.
func NewInfluxService(client *influxdb.Client, lookup TypeLookup, logger Logger) *InfluxService {
	if logger == nil {
		logger = noopLogger{}
	}
	return &InfluxService{client: client, types: lookup, logger: logger}
}

// Name implements Service.
func (s *InfluxService) Name() string { return "influxdb" }

// Store implements Service. Writes are batched and asynchronous; write
// failures surface through the client's error callback.
func (s *InfluxService) Store(snap ItemSnapshot) error {
	if snap.State == nil || types.IsUnset(snap.State) {
		return nil
	}
	if num, ok := types.AsDecimal(snap.State); ok {
		s.client.WriteItemNumber(snap.Name, num, snap.Time)
		return nil
	}
	s.client.WriteItemString(snap.Name, snap.State.Format(), snap.Time)
	return nil
}

// LastState implements Service. The raw sample is parsed against the
// item's current type, so an item whose type changed since the sample
// was written may fail to restore.
func (s *InfluxService) LastState(ctx context.Context, name string) (types.State, time.Time, bool, error) {
	itemType, ok := s.types(name)
	if !ok {
		return nil, time.Time{}, false, fmt.Errorf("%w: %q", ErrUnknownItem, name)
	}
	value, at, found, err := s.client.LastValue(ctx, name)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	if !found {
		return nil, time.Time{}, false, nil
	}
	st, err := stateFromSample(itemType, value)
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("item %q: %w", name, err)
	}
	return st, at, true, nil
}

// stateFromSample turns a raw query value back into a typed state.
func stateFromSample(it types.ItemType, value interface{}) (types.State, error) {
	switch v := value.(type) {
	case float64:
		return types.Parse(it, strconv.FormatFloat(v, 'f', -1, 64))
	case int64:
		return types.Parse(it, strconv.FormatInt(v, 10))
	case string:
		return types.Parse(it, v)
	default:
		return nil, fmt.Errorf("%w: %T", ErrBadSample, value)
	}
}
