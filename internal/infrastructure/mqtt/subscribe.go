package mqtt

import (
	"fmt"
)

// Subscribe registers a handler for messages matching a topic filter.
//
// Filters accept the usual MQTT wildcards: + for one level
// ("hearth/items/+/command/set") and # for everything below a prefix
// ("hearth/#"). The handler runs on a goroutine per message and should
// return quickly; slow handlers stall the broker's delivery window.
//
// The filter is remembered so the subscription survives a reconnect.
//
// Parameters:
//   - topic: Topic filter to subscribe to
//   - qos: Maximum QoS for delivered messages (0, 1, or 2)
//   - handler: Callback invoked per message
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or a
//     wrapped ErrSubscribeFailed
//
// Example:
//
//	err := client.Subscribe(mqtt.Topics{}.AllItemCommandSets(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("received %s = %s", topic, payload)
//	        return nil
//	    })
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Record first so a reconnect during the broker round-trip still
	// restores the filter.
	c.subMu.Lock()
	c.subscriptions[topic] = subscription{topic: topic, qos: qos, handler: handler}
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		c.forgetSubscription(topic)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		c.forgetSubscription(topic)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// Unsubscribe drops a subscription. The handler stops receiving new
// messages; deliveries already in flight may still arrive.
//
// Parameters:
//   - topic: The exact filter passed to Subscribe
//
// Returns:
//   - error: ErrInvalidTopic, ErrNotConnected, or a wrapped
//     ErrUnsubscribeFailed
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.forgetSubscription(topic)

	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}
	return nil
}

func (c *Client) forgetSubscription(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription reports whether the exact filter string is tracked.
// No wildcard matching is attempted.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[topic]
	return ok
}
