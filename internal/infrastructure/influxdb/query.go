package influxdb

import (
	"context"
	"fmt"
	"time"
)

// LastValue returns the newest recorded sample for an item.
//
// The lookup runs a Flux query selecting the last "value" field of the
// item's measurement across the whole bucket retention window.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - item: Item name
//
// Returns:
//   - value: The sample as stored (float64 for numeric states, string otherwise)
//   - at: The sample timestamp
//   - found: false when the item has no recorded history
//   - error: Query or connection failure
func (c *Client) LastValue(ctx context.Context, item string) (value interface{}, at time.Time, found bool, err error) {
	if !c.IsConnected() {
		return nil, time.Time{}, false, ErrNotConnected
	}

	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: 0)
  |> filter(fn: (r) => r._measurement == %q)
  |> filter(fn: (r) => r._field == "value")
  |> last()`, c.cfg.Bucket, item)

	result, err := c.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	for result.Next() {
		record := result.Record()
		value = record.Value()
		at = record.Time()
		found = true
	}
	if err := result.Err(); err != nil {
		return nil, time.Time{}, false, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	return value, at, found, nil
}
