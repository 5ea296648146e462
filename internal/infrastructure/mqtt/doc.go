// Package mqtt provides the broker connection for the MQTT event bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The runtime mirrors its internal event bus onto the broker: item state
// and thing status events go out on the same topics they carry on the
// bus, and external clients write back through "/set" suffixed topics.
//
//	internal event bus ↔ bridges/mqtt ↔ this package ↔ broker
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all inbound item commands
//	err = client.Subscribe(mqtt.Topics{}.AllItemCommandSets(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a retained canonical state
//	topic := mqtt.Topics{}.ItemState("Kitchen_Light")
//	client.Publish(topic, []byte(`{"type":"OnOff","value":"ON"}`), 1, true)
package mqtt
