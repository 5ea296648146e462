package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// writePoint hands one sample to the batching write API. Dropped
// silently when disconnected; history is best effort.
func (c *Client) writePoint(item string, value any, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(
		item,
		map[string]string{"item": item},
		map[string]any{"value": value},
		at,
	))
}

// WriteItemNumber records a numeric item state sample. The measurement
// is the item name and the sample lands in the "value" field. Writes
// are batched and flushed asynchronously.
//
// Example:
//
//	client.WriteItemNumber("Living_Temperature", 21.5, time.Now())
func (c *Client) WriteItemNumber(item string, value float64, at time.Time) {
	c.writePoint(item, value, at)
}

// WriteItemString records a non-numeric item state sample. Switch,
// contact, string and date-time states are stored in their wire format
// ("ON", "OPEN", RFC 3339 timestamps).
func (c *Client) WriteItemString(item string, value string, at time.Time) {
	c.writePoint(item, value, at)
}
