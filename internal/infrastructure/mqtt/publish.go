package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outbound payloads at 1MB, in line with common
// broker defaults. Item states and event envelopes are far smaller.
const maxPayloadSize = 1 << 20

// Publish sends a payload to a topic and waits for broker
// acknowledgement (subject to the QoS level).
//
// Retained messages are stored by the broker and replayed to new
// subscribers; use them for state topics, never for commands, since a
// replayed command would re-fire on every reconnect.
//
// Parameters:
//   - topic: Destination topic (e.g. "hearth/items/Kitchen_Light/state")
//   - payload: Message body, typically JSON, at most 1MB
//   - qos: 0 fire-and-forget, 1 at-least-once, 2 exactly-once
//   - retained: Whether the broker keeps the message for new subscribers
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or a
//     wrapped ErrPublishFailed
//
// Example:
//
//	topic := mqtt.Topics{}.ItemStateChanged("Kitchen_Light")
//	err := client.Publish(topic, payload, 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload of %d bytes exceeds %d byte limit",
			ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishString publishes a string payload. Shorthand for Publish with
// []byte(payload).
func (c *Client) PublishString(topic string, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// PublishRetained publishes a retained message at the configured
// default QoS. Meant for state topics where late subscribers need the
// current value.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
