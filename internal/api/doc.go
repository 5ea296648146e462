// Package api implements the operational HTTP surface of Hearth Core:
// a health endpoint and a WebSocket event stream.
//
// This package provides:
//   - GET /health with subsystem probes and registry counts
//   - GET /ws/events streaming every bus event to connected clients
//   - Per-client event filtering (event types, topic wildcards, sources)
//   - Optional JWT bearer authentication for the event stream
//   - Middleware stack (request ID, logging, recovery)
//   - TLS support for production deployments
//
// # Architecture
//
//	┌─────────┐   events    ┌─────┐   serverMessage    ┌──────────┐
//	│  event  ├────────────►│ Hub ├───────────────────►│ ws/events│
//	│   bus   │  Receive()  │     │  filtered, JSON    │  clients │
//	└─────────┘             └─────┘                    └──────────┘
//
// The Hub subscribes to the event bus like any other subscriber and fans
// events out to WebSocket clients. Each client carries a filter it can
// replace at any time with a "filter" control message; an empty filter
// forwards everything. Delivery is non-blocking: a client whose send
// buffer is full is disconnected rather than allowed to stall the hub.
//
// # Security
//
// When a JWT secret is configured, /ws/events requires a valid HS256
// token, passed either as an Authorization: Bearer header or an
// accessToken query parameter (for browser WebSocket clients, which
// cannot set headers). An empty secret leaves the stream open, the usual
// arrangement for trusted-LAN deployments. /health is never
// authenticated so load balancers and monitors can always probe it.
//
// # Key Types
//
//   - Server: HTTP listener lifecycle (New / Start / Close)
//   - Hub: event-bus subscriber broadcasting to WebSocket clients
//   - Check: named health probe contributed by another subsystem
//
// Thread Safety: all exported methods are safe for concurrent use.
package api
