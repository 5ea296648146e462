package handlers

import (
	"fmt"

	"github.com/hearth-home/hearth-core/internal/items"
	"github.com/hearth-home/hearth-core/internal/rules"
	"github.com/hearth-home/hearth-core/internal/types"
)

// itemCommandAction sends a command to an item. The command comes from
// the module configuration, or from the "command" input when the module
// declares one.
type itemCommandAction struct {
	items    *items.Registry
	itemName string
	command  string
}

func newItemCommandAction(f *CoreFactory, m rules.Module) (*itemCommandAction, error) {
	itemName, err := configString(m.Config, "itemName")
	if err != nil {
		return nil, err
	}
	command := optString(m.Config, "command")
	if command == "" && m.Inputs["command"] == "" {
		return nil, fmt.Errorf("%w: needs a command value or input", rules.ErrBadConfig)
	}
	return &itemCommandAction{items: f.items, itemName: itemName, command: command}, nil
}

// TypeUID implements rules.Handler.
func (a *itemCommandAction) TypeUID() string { return TypeItemCommandAction }

// Execute implements rules.ActionHandler.
func (a *itemCommandAction) Execute(inputs, _ map[string]any) (map[string]any, error) {
	text := a.command
	if v, ok := inputs["command"]; ok {
		text = valueText(v)
	}
	it, ok := a.items.Get(a.itemName)
	if !ok {
		return nil, fmt.Errorf("handlers: item %s not found", a.itemName)
	}
	cmd, err := types.ParseCommand(it.Type, text)
	if err != nil {
		return nil, fmt.Errorf("handlers: command %q for %s: %w", text, a.itemName, err)
	}
	if err := a.items.SendCommand(a.itemName, cmd); err != nil {
		return nil, err
	}
	return map[string]any{"itemName": a.itemName, "command": cmd}, nil
}

// itemStateUpdateAction updates an item's state without a command.
type itemStateUpdateAction struct {
	items    *items.Registry
	itemName string
	state    string
}

func newItemStateUpdateAction(f *CoreFactory, m rules.Module) (*itemStateUpdateAction, error) {
	itemName, err := configString(m.Config, "itemName")
	if err != nil {
		return nil, err
	}
	state := optString(m.Config, "state")
	if state == "" && m.Inputs["state"] == "" {
		return nil, fmt.Errorf("%w: needs a state value or input", rules.ErrBadConfig)
	}
	return &itemStateUpdateAction{items: f.items, itemName: itemName, state: state}, nil
}

// TypeUID implements rules.Handler.
func (a *itemStateUpdateAction) TypeUID() string { return TypeItemStateUpdateAction }

// Execute implements rules.ActionHandler.
func (a *itemStateUpdateAction) Execute(inputs, _ map[string]any) (map[string]any, error) {
	text := a.state
	if v, ok := inputs["state"]; ok {
		text = valueText(v)
	}
	it, ok := a.items.Get(a.itemName)
	if !ok {
		return nil, fmt.Errorf("handlers: item %s not found", a.itemName)
	}
	st, err := types.Parse(it.Type, text)
	if err != nil {
		return nil, fmt.Errorf("handlers: state %q for %s: %w", text, a.itemName, err)
	}
	if err := a.items.UpdateState(a.itemName, st); err != nil {
		return nil, err
	}
	return map[string]any{"itemName": a.itemName, "state": st}, nil
}

// valueText renders an input value as command/state text. States and
// commands use their wire format, everything else falls back to fmt.
func valueText(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case types.State:
		return tv.Format()
	case types.Command:
		return tv.Format()
	default:
		return fmt.Sprintf("%v", tv)
	}
}

// ruleEnablementAction enables or disables target rules. Per-rule
// failures are logged, not fatal, so one unknown UID does not abort the
// run.
type ruleEnablementAction struct {
	rules    RuleController
	enable   bool
	ruleUIDs []string
	logger   Logger
}

func newRuleEnablementAction(f *CoreFactory, m rules.Module) (*ruleEnablementAction, error) {
	uids, err := stringSlice(m.Config, "ruleUIDs")
	if err != nil {
		return nil, err
	}
	return &ruleEnablementAction{
		rules:    f.rules,
		enable:   optBool(m.Config, "enable", true),
		ruleUIDs: uids,
		logger:   f.logger,
	}, nil
}

// TypeUID implements rules.Handler.
func (a *ruleEnablementAction) TypeUID() string { return TypeRuleEnablementAction }

// Execute implements rules.ActionHandler.
func (a *ruleEnablementAction) Execute(_, _ map[string]any) (map[string]any, error) {
	for _, uid := range a.ruleUIDs {
		if err := a.rules.SetEnabled(uid, a.enable); err != nil {
			a.logger.Warn("rule enablement failed", "rule", uid, "enable", a.enable, "error", err)
		}
	}
	return nil, nil
}

// runRuleAction runs target rules synchronously. Rules already in the
// run's causal chain are skipped, which breaks trigger cycles.
type runRuleAction struct {
	rules              RuleController
	ruleUIDs           []string
	considerConditions bool
	logger             Logger
}

func newRunRuleAction(f *CoreFactory, m rules.Module) (*runRuleAction, error) {
	uids, err := stringSlice(m.Config, "ruleUIDs")
	if err != nil {
		return nil, err
	}
	return &runRuleAction{
		rules:              f.rules,
		ruleUIDs:           uids,
		considerConditions: optBool(m.Config, "considerConditions", true),
		logger:             f.logger,
	}, nil
}

// TypeUID implements rules.Handler.
func (a *runRuleAction) TypeUID() string { return TypeRunRuleAction }

// Execute implements rules.ActionHandler.
func (a *runRuleAction) Execute(_, runCtx map[string]any) (map[string]any, error) {
	chain, _ := runCtx[rules.ContextKeyChain].([]string)
	for _, uid := range a.ruleUIDs {
		if inChain(chain, uid) {
			a.logger.Warn("skipping rule already in causal chain", "rule", uid, "chain", chain)
			continue
		}
		childCtx := map[string]any{rules.ContextKeyChain: chain}
		if err := a.rules.RunNow(uid, a.considerConditions, childCtx); err != nil {
			a.logger.Warn("running rule failed", "rule", uid, "error", err)
		}
	}
	return nil, nil
}

func inChain(chain []string, uid string) bool {
	for _, c := range chain {
		if c == uid {
			return true
		}
	}
	return false
}
