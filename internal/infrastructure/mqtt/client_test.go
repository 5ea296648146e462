package mqtt

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// testConfig returns a valid broker configuration. Tests that actually
// connect live behind the integration build tag; everything here runs
// without a broker.
func testConfig() Config {
	return Config{
		Enabled:               true,
		Host:                  "127.0.0.1",
		Port:                  1883,
		ClientID:              "hearth-test",
		QoS:                   1,
		ReconnectInitialDelay: 1,
		ReconnectMaxDelay:     5,
	}
}

// disconnectedClient builds a client that was never connected.
func disconnectedClient() *Client {
	return &Client{
		cfg:           testConfig(),
		subscriptions: make(map[string]subscription),
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestClose_NeverConnected(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	c := disconnectedClient()
	if c.IsConnected() {
		t.Error("IsConnected() = true for a client that never connected")
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	c := disconnectedClient()
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	c := disconnectedClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestPublish_Validation(t *testing.T) {
	c := disconnectedClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "hearth/items/A/state", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "hearth/items/A/state", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "hearth/items/A/state", []byte("x"), 1, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := disconnectedClient()
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty topic) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("hearth/items/+/command/set", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("hearth/items/+/command/set", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("hearth/items/+/command/set", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after failed subscribes, want 0", c.SubscriptionCount())
	}
}

func TestUnsubscribe_Validation(t *testing.T) {
	c := disconnectedClient()

	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Unsubscribe("hearth/items/+/command/set"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestHasSubscription_NotSubscribed(t *testing.T) {
	c := disconnectedClient()
	if c.HasSubscription("hearth/items/+/command/set") {
		t.Error("HasSubscription() = true on a fresh client")
	}
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ItemState", topics.ItemState("Kitchen_Light"), "hearth/items/Kitchen_Light/state"},
		{"ItemStateChanged", topics.ItemStateChanged("Kitchen_Light"), "hearth/items/Kitchen_Light/statechanged"},
		{"ItemCommandSet", topics.ItemCommandSet("Porch"), "hearth/items/Porch/command/set"},
		{"ItemStateSet", topics.ItemStateSet("Porch"), "hearth/items/Porch/state/set"},
		{"ThingStatus", topics.ThingStatus("mqtt:topic:porch"), "hearth/things/mqtt:topic:porch/status"},
		{"SystemStatus", topics.SystemStatus(), "hearth/system/status"},
		{"AllItemCommandSets", topics.AllItemCommandSets(), "hearth/items/+/command/set"},
		{"AllItemStateSets", topics.AllItemStateSets(), "hearth/items/+/state/set"},
		{"AllItemStates", topics.AllItemStates(), "hearth/items/+/state"},
		{"AllThingStatuses", topics.AllThingStatuses(), "hearth/things/+/status"},
		{"AllTopics", topics.AllTopics(), "hearth/#"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestBuildClientOptions_Defaults(t *testing.T) {
	cfg := Config{Enabled: true, Host: "127.0.0.1", Port: 1883}
	opts := buildClientOptions(cfg)

	if opts.ClientID != "hearth-core" {
		t.Errorf("ClientID = %q, want default hearth-core", opts.ClientID)
	}
	if opts.ConnectRetryInterval != time.Second {
		t.Errorf("ConnectRetryInterval = %v, want 1s default", opts.ConnectRetryInterval)
	}
	if opts.MaxReconnectInterval != 60*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 60s default", opts.MaxReconnectInterval)
	}
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if !opts.CleanSession || !opts.AutoReconnect {
		t.Error("CleanSession and AutoReconnect should both default on")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.TLS = true
	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || !strings.HasPrefix(opts.Servers[0].String(), "ssl://") {
		t.Errorf("Servers = %v, want ssl:// scheme", opts.Servers)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLSConfig should enforce the minimum TLS version")
	}
}

func TestBuildClientOptions_Credentials(t *testing.T) {
	cfg := testConfig()
	cfg.Username = "hearth"
	cfg.Password = "secret"
	opts := buildClientOptions(cfg)

	if opts.Username != "hearth" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want hearth/secret", opts.Username, opts.Password)
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("hearth-test")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, `"client_id":"hearth-test"`) {
		t.Errorf("online payload = %s", online)
	}
	offline := buildOfflinePayload("hearth-test")
	if !strings.Contains(offline, `"status":"offline"`) || !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload = %s", offline)
	}
}
