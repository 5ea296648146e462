package handlers

import (
	"testing"

	"github.com/hearth-home/hearth-core/internal/items"
	"github.com/hearth-home/hearth-core/internal/things"
	"github.com/hearth-home/hearth-core/internal/types"
)

func TestItemStateUpdateTrigger(t *testing.T) {
	h := newHarness(t)
	h.addItem(t, "Temp", types.ItemTypeNumber)

	trigger, cb := h.attachTrigger(t, TypeItemStateUpdateTrigger, map[string]any{"itemName": "Temp"})

	if err := h.items.UpdateState("Temp", types.Decimal(21)); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	f := cb.wait(t)
	if f.triggerID != "t1" {
		t.Errorf("triggerID = %s, want t1", f.triggerID)
	}
	if got := f.outputs["itemName"]; got != "Temp" {
		t.Errorf("outputs[itemName] = %v, want Temp", got)
	}
	if got := f.outputs["state"]; got != types.Decimal(21) {
		t.Errorf("outputs[state] = %v, want 21", got)
	}

	trigger.Detach()
	if err := h.items.UpdateState("Temp", types.Decimal(22)); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	cb.quiet(t)
}

func TestItemStateUpdateTrigger_StateFilter(t *testing.T) {
	h := newHarness(t)
	h.addItem(t, "Porch", types.ItemTypeSwitch)

	_, cb := h.attachTrigger(t, TypeItemStateUpdateTrigger, map[string]any{
		"itemName": "Porch",
		"state":    "ON",
	})

	if err := h.items.UpdateState("Porch", types.Off); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	cb.quiet(t)

	if err := h.items.UpdateState("Porch", types.On); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	f := cb.wait(t)
	if got := f.outputs["state"]; got != types.On {
		t.Errorf("outputs[state] = %v, want ON", got)
	}
}

func TestItemStateUpdateTrigger_IgnoresOtherItems(t *testing.T) {
	h := newHarness(t)
	h.addItem(t, "Temp", types.ItemTypeNumber)
	h.addItem(t, "Humidity", types.ItemTypeNumber)

	_, cb := h.attachTrigger(t, TypeItemStateUpdateTrigger, map[string]any{"itemName": "Temp"})

	if err := h.items.UpdateState("Humidity", types.Decimal(60)); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	cb.quiet(t)
}

func TestItemStateChangeTrigger(t *testing.T) {
	h := newHarness(t)
	h.addItem(t, "Temp", types.ItemTypeNumber)

	_, cb := h.attachTrigger(t, TypeItemStateChangeTrigger, map[string]any{"itemName": "Temp"})

	// First update transitions from NULL.
	if err := h.items.UpdateState("Temp", types.Decimal(21)); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	f := cb.wait(t)
	if got := f.outputs["state"]; got != types.Decimal(21) {
		t.Errorf("outputs[state] = %v, want 21", got)
	}
	oldState, ok := f.outputs["oldState"].(types.State)
	if !ok || !types.IsUnset(oldState) {
		t.Errorf("outputs[oldState] = %v, want NULL", f.outputs["oldState"])
	}

	// Same value again updates but does not change.
	if err := h.items.UpdateState("Temp", types.Decimal(21)); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	cb.quiet(t)

	if err := h.items.UpdateState("Temp", types.Decimal(22)); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	f = cb.wait(t)
	if got := f.outputs["oldState"]; got != types.Decimal(21) {
		t.Errorf("outputs[oldState] = %v, want 21", got)
	}
	if got := f.outputs["state"]; got != types.Decimal(22) {
		t.Errorf("outputs[state] = %v, want 22", got)
	}
}

func TestItemStateChangeTrigger_Filters(t *testing.T) {
	h := newHarness(t)
	h.addItem(t, "Porch", types.ItemTypeSwitch)

	_, cb := h.attachTrigger(t, TypeItemStateChangeTrigger, map[string]any{
		"itemName":      "Porch",
		"previousState": "ON",
		"state":         "OFF",
	})

	// NULL -> ON does not match the previousState filter.
	if err := h.items.UpdateState("Porch", types.On); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	cb.quiet(t)

	// ON -> OFF matches both filters.
	if err := h.items.UpdateState("Porch", types.Off); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	f := cb.wait(t)
	if got := f.outputs["state"]; got != types.Off {
		t.Errorf("outputs[state] = %v, want OFF", got)
	}
}

func TestItemCommandTrigger(t *testing.T) {
	h := newHarness(t)
	h.addItem(t, "Porch", types.ItemTypeSwitch)

	_, cb := h.attachTrigger(t, TypeItemCommandTrigger, map[string]any{"itemName": "Porch"})

	if err := h.items.SendCommand("Porch", types.On); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	f := cb.wait(t)
	if got := f.outputs["itemName"]; got != "Porch" {
		t.Errorf("outputs[itemName] = %v, want Porch", got)
	}
	if got := f.outputs["command"]; got != types.Command(types.On) {
		t.Errorf("outputs[command] = %v, want ON", got)
	}
}

func TestItemCommandTrigger_CommandFilter(t *testing.T) {
	h := newHarness(t)
	h.addItem(t, "Porch", types.ItemTypeSwitch)

	_, cb := h.attachTrigger(t, TypeItemCommandTrigger, map[string]any{
		"itemName": "Porch",
		"command":  "OFF",
	})

	if err := h.items.SendCommand("Porch", types.On); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	cb.quiet(t)

	if err := h.items.SendCommand("Porch", types.Off); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	cb.wait(t)
}

func TestGroupStateChangeTrigger(t *testing.T) {
	h := newHarness(t)

	group, err := items.NewItem("gLights", types.ItemTypeGroup)
	if err != nil {
		t.Fatalf("NewItem(gLights) error = %v", err)
	}
	group.GroupType = types.ItemTypeSwitch
	group.Function = &items.GroupFunction{Name: "OR", Params: []string{"ON", "OFF"}}
	if err := h.items.Add(group); err != nil {
		t.Fatalf("Add(gLights) error = %v", err)
	}
	for _, name := range []string{"Light_A", "Light_B"} {
		member, err := items.NewItem(name, types.ItemTypeSwitch)
		if err != nil {
			t.Fatalf("NewItem(%s) error = %v", name, err)
		}
		member.Groups = []string{"gLights"}
		if err := h.items.Add(member); err != nil {
			t.Fatalf("Add(%s) error = %v", name, err)
		}
	}

	_, cb := h.attachTrigger(t, TypeGroupStateChangeTrigger, map[string]any{"groupName": "gLights"})

	// First member ON flips the OR group from NULL to ON.
	if err := h.items.UpdateState("Light_A", types.On); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	f := cb.wait(t)
	if got := f.outputs["itemName"]; got != "gLights" {
		t.Errorf("outputs[itemName] = %v, want gLights", got)
	}
	if got := f.outputs["memberName"]; got != "Light_A" {
		t.Errorf("outputs[memberName] = %v, want Light_A", got)
	}
	if got := f.outputs["state"]; got != types.State(types.On) {
		t.Errorf("outputs[state] = %v, want ON", got)
	}

	// Second member ON leaves the group state at ON.
	if err := h.items.UpdateState("Light_B", types.On); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	cb.quiet(t)

	// All members OFF flips the group back.
	if err := h.items.UpdateState("Light_A", types.Off); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	if err := h.items.UpdateState("Light_B", types.Off); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	f = cb.wait(t)
	if got := f.outputs["memberName"]; got != "Light_B" {
		t.Errorf("outputs[memberName] = %v, want Light_B", got)
	}
	if got := f.outputs["state"]; got != types.State(types.Off) {
		t.Errorf("outputs[state] = %v, want OFF", got)
	}
}

func TestThingStatusChangeTrigger(t *testing.T) {
	h := newHarness(t)
	h.addThing(t, "mqtt:sensor:door")

	_, cb := h.attachTrigger(t, TypeThingStatusChangeTrigger, map[string]any{"thingUID": "mqtt:sensor:door"})

	if err := h.things.SetStatus("mqtt:sensor:door", things.StatusInfoOf(things.StatusOnline, "", "")); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	f := cb.wait(t)
	if got := f.outputs["thingUID"]; got != "mqtt:sensor:door" {
		t.Errorf("outputs[thingUID] = %v, want mqtt:sensor:door", got)
	}
	status, ok := f.outputs["status"].(things.StatusInfo)
	if !ok || status.Status != things.StatusOnline {
		t.Errorf("outputs[status] = %v, want ONLINE", f.outputs["status"])
	}
	old, ok := f.outputs["oldStatus"].(things.StatusInfo)
	if !ok || old.Status != things.StatusUninitialized {
		t.Errorf("outputs[oldStatus] = %v, want UNINITIALIZED", f.outputs["oldStatus"])
	}
}

func TestThingStatusChangeTrigger_StatusFilter(t *testing.T) {
	h := newHarness(t)
	h.addThing(t, "mqtt:sensor:door")

	_, cb := h.attachTrigger(t, TypeThingStatusChangeTrigger, map[string]any{
		"thingUID": "mqtt:sensor:door",
		"status":   "OFFLINE",
	})

	if err := h.things.SetStatus("mqtt:sensor:door", things.StatusInfoOf(things.StatusOnline, "", "")); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	cb.quiet(t)

	if err := h.things.SetStatus("mqtt:sensor:door", things.StatusInfoOf(things.StatusOffline, things.DetailCommunicationError, "gone")); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	f := cb.wait(t)
	status, ok := f.outputs["status"].(things.StatusInfo)
	if !ok || status.Status != things.StatusOffline {
		t.Errorf("outputs[status] = %v, want OFFLINE", f.outputs["status"])
	}
}

func TestChannelEventTrigger(t *testing.T) {
	h := newHarness(t)
	h.addThing(t, "mqtt:sensor:door", things.Channel{ID: "button", Kind: things.ChannelKindTrigger})

	_, cb := h.attachTrigger(t, TypeChannelEventTrigger, map[string]any{
		"channelUID": "mqtt:sensor:door:button",
		"event":      "PRESSED",
	})

	if err := h.things.TriggerChannel("mqtt:sensor:door:button", "RELEASED"); err != nil {
		t.Fatalf("TriggerChannel() error = %v", err)
	}
	cb.quiet(t)

	if err := h.things.TriggerChannel("mqtt:sensor:door:button", "PRESSED"); err != nil {
		t.Fatalf("TriggerChannel() error = %v", err)
	}
	f := cb.wait(t)
	if got := f.outputs["channel"]; got != "mqtt:sensor:door:button" {
		t.Errorf("outputs[channel] = %v, want mqtt:sensor:door:button", got)
	}
	if got := f.outputs["event"]; got != "PRESSED" {
		t.Errorf("outputs[event] = %v, want PRESSED", got)
	}
}

func TestSystemStartTrigger_FiresOnceOnAttach(t *testing.T) {
	h := newHarness(t)

	trigger, cb := h.attachTrigger(t, TypeSystemStartTrigger, nil)

	f := cb.wait(t)
	if f.triggerID != "t1" {
		t.Errorf("triggerID = %s, want t1", f.triggerID)
	}

	// The same handler instance never fires a second time.
	trigger.Detach()
	if err := trigger.Attach(cb); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	cb.quiet(t)
}
