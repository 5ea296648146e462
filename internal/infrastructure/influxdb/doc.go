// Package influxdb provides InfluxDB connectivity for Hearth Core.
//
// It wraps the official influxdb-client-go v2 library with the
// connection management, batched writing and health monitoring patterns
// used across the Hearth infrastructure packages.
//
// # Purpose
//
// This package is the time-series backend of the persistence layer:
//   - Item state history (one measurement per item, a "value" field)
//   - Last-known-state queries for restore-on-startup
//
// # Usage
//
//	cfg := influxdb.Config{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "hearth",
//	    Bucket: "states",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteItemNumber("Living_Temperature", 21.5, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via
// the SetOnError callback. Connection, query and health check errors
// are returned directly.
//
// # Performance
//
// Writes are batched according to the batch_size and flush_interval
// settings. This keeps high-frequency state churn off the hot path.
package influxdb
