package things

import (
	"errors"
	"testing"
)

func TestNewThing(t *testing.T) {
	th, err := NewThing("mqtt:topic:kitchen")
	if err != nil {
		t.Fatalf("NewThing() error = %v", err)
	}
	if th.Key() != "mqtt:topic:kitchen" {
		t.Errorf("Key() = %q", th.Key())
	}
	if th.Status.Status != StatusUninitialized || th.Status.Detail != DetailNone {
		t.Errorf("fresh thing status = %+v", th.Status)
	}

	if _, err := NewThing("nope"); !errors.Is(err, ErrInvalidUID) {
		t.Errorf("NewThing(bad uid) error = %v, want ErrInvalidUID", err)
	}
}

func TestStatusInfo_Validate(t *testing.T) {
	if err := StatusInfoOf(StatusOnline, "", "").Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := (StatusInfo{Status: "BROKEN", Detail: DetailNone}).Validate(); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("unknown status error = %v, want ErrInvalidStatus", err)
	}
	if err := (StatusInfo{Status: StatusOnline, Detail: "MAYBE"}).Validate(); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("unknown detail error = %v, want ErrInvalidStatus", err)
	}
}

func TestThing_Channels(t *testing.T) {
	th, _ := NewThing("mqtt:topic:kitchen")
	th.Channels = []Channel{
		{ID: "power", Kind: "Switch"},
		{ID: "button", Kind: ChannelKindTrigger},
	}

	ch, ok := th.Channel("power")
	if !ok || ch.Kind != "Switch" {
		t.Fatalf("Channel(power) = %+v, %v", ch, ok)
	}
	if _, ok := th.Channel("missing"); ok {
		t.Error("Channel(missing) found something")
	}

	uids := th.ChannelUIDs()
	if len(uids) != 2 || uids[0] != "mqtt:topic:kitchen:power" {
		t.Errorf("ChannelUIDs() = %v", uids)
	}
}

func TestThing_DeepCopy(t *testing.T) {
	th, _ := NewThing("mqtt:topic:kitchen")
	th.Label = "Kitchen"
	th.Config = map[string]any{"host": "10.0.0.2", "nested": map[string]any{"port": 1883}}
	th.Channels = []Channel{{ID: "power", Kind: "Switch", Config: map[string]any{"qos": 1}}}

	cpy := th.DeepCopy()
	cpy.Label = "hacked"
	cpy.Config["host"] = "hacked"
	cpy.Config["nested"].(map[string]any)["port"] = 0
	cpy.Channels[0].Config["qos"] = 2

	if th.Label != "Kitchen" {
		t.Error("label mutated through copy")
	}
	if th.Config["host"] != "10.0.0.2" {
		t.Error("config mutated through copy")
	}
	if th.Config["nested"].(map[string]any)["port"] != 1883 {
		t.Error("nested config mutated through copy")
	}
	if th.Channels[0].Config["qos"] != 1 {
		t.Error("channel config mutated through copy")
	}

	var nilThing *Thing
	if nilThing.DeepCopy() != nil {
		t.Error("nil DeepCopy() != nil")
	}
}

func TestFromDTO_Validation(t *testing.T) {
	tests := []struct {
		name    string
		dto     DTO
		wantErr error
	}{
		{"bad uid", DTO{UID: "short"}, ErrInvalidUID},
		{"bad bridge uid", DTO{UID: "mqtt:topic:a", Bridge: "x"}, ErrInvalidUID},
		{"bad channel id", DTO{UID: "mqtt:topic:a", Channels: []ChannelDTO{{ID: "po wer", Kind: "Switch"}}}, ErrInvalidChannel},
		{"duplicate channel id", DTO{UID: "mqtt:topic:a", Channels: []ChannelDTO{{ID: "p", Kind: "Switch"}, {ID: "p", Kind: "Number"}}}, ErrInvalidChannel},
		{"unknown channel kind", DTO{UID: "mqtt:topic:a", Channels: []ChannelDTO{{ID: "p", Kind: "Blob"}}}, ErrInvalidChannel},
		{"group channel kind", DTO{UID: "mqtt:topic:a", Channels: []ChannelDTO{{ID: "p", Kind: "Group"}}}, ErrInvalidChannel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromDTO(tt.dto); !errors.Is(err, tt.wantErr) {
				t.Errorf("FromDTO() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDTO_RoundTrip(t *testing.T) {
	th, _ := NewThing("zwave:dimmer:controller-1:node12")
	th.Label = "Hall Dimmer"
	th.BridgeUID = "zwave:controller:controller-1"
	th.Config = map[string]any{"pollInterval": 30}
	th.Channels = []Channel{
		{ID: "brightness", Kind: "Dimmer", Label: "Brightness"},
		{ID: "scene", Kind: ChannelKindTrigger},
	}
	th.Status = StatusInfoOf(StatusOnline, DetailNone, "")

	back, err := FromDTO(ToDTO(th))
	if err != nil {
		t.Fatalf("FromDTO() error = %v", err)
	}
	if back.UID != th.UID || back.Label != th.Label || back.BridgeUID != th.BridgeUID {
		t.Errorf("round trip lost identity fields: %+v", back)
	}
	if len(back.Channels) != 2 || back.Channels[1].Kind != ChannelKindTrigger {
		t.Errorf("round trip lost channels: %+v", back.Channels)
	}
	// Runtime status never travels with the definition.
	if back.Status.Status != StatusUninitialized {
		t.Errorf("status travelled through DTO: %+v", back.Status)
	}
}
