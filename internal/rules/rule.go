package rules

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Status describes where a rule sits in its lifecycle.
type Status string

const (
	StatusUninitialized Status = "UNINITIALIZED"
	StatusInitializing  Status = "INITIALIZING"
	StatusIdle          Status = "IDLE"
	StatusRunning       Status = "RUNNING"
)

// StatusDetail qualifies a Status with the reason behind it.
type StatusDetail string

const (
	DetailNone                StatusDetail = "NONE"
	DetailHandlerMissing      StatusDetail = "HANDLER_MISSING_ERROR"
	DetailHandlerInitializing StatusDetail = "HANDLER_INITIALIZING_ERROR"
	DetailConfigurationError  StatusDetail = "CONFIGURATION_ERROR"
	DetailDisabled            StatusDetail = "DISABLED"
	DetailInvalidRule         StatusDetail = "INVALID_RULE"
)

// StatusInfo pairs a status with its detail and an optional
// human-readable description.
type StatusInfo struct {
	Status      Status       `json:"status"`
	Detail      StatusDetail `json:"statusDetail"`
	Description string       `json:"description,omitempty"`
}

// StatusInfoOf builds a StatusInfo, defaulting the detail to NONE.
func StatusInfoOf(status Status, detail StatusDetail, description string) StatusInfo {
	if detail == "" {
		detail = DetailNone
	}
	return StatusInfo{Status: status, Detail: detail, Description: description}
}

// Visibility controls whether a rule is shown in user-facing listings.
type Visibility string

const (
	VisibilityVisible Visibility = "VISIBLE"
	VisibilityHidden  Visibility = "HIDDEN"
	VisibilityExpert  Visibility = "EXPERT"
)

// Module is one trigger, condition or action inside a rule. TypeUID
// names the handler type ("core.ItemCommandTrigger"); Config carries
// the handler's settings; Inputs maps handler input names to run
// context keys.
type Module struct {
	ID      string
	TypeUID string
	Label   string
	Config  map[string]any
	Inputs  map[string]string
}

// DeepCopy returns an independent copy of the module.
func (m Module) DeepCopy() Module {
	out := m
	out.Config = deepCopyMap(m.Config)
	if m.Inputs != nil {
		out.Inputs = make(map[string]string, len(m.Inputs))
		for k, v := range m.Inputs {
			out.Inputs[k] = v
		}
	}
	return out
}

// Rule is an automation rule: when any trigger fires and all
// conditions hold, the actions run in order.
type Rule struct {
	UID         string
	Name        string
	Description string
	Tags        []string
	Visibility  Visibility

	Triggers   []Module
	Conditions []Module
	Actions    []Module
}

// NewRule builds a validated rule. A missing UID is generated; missing
// module IDs are assigned sequentially across triggers, conditions and
// actions.
func NewRule(uid, name string, triggers, conditions, actions []Module) (*Rule, error) {
	r := &Rule{
		UID:        uid,
		Name:       name,
		Visibility: VisibilityVisible,
		Triggers:   triggers,
		Conditions: conditions,
		Actions:    actions,
	}
	if err := r.Normalize(); err != nil {
		return nil, err
	}
	return r, nil
}

// Key returns the registry identifier, the rule UID.
func (r *Rule) Key() string { return r.UID }

// Normalize fills in generated fields and validates the rule: a UID is
// generated when absent, module IDs are assigned where missing, and
// module IDs must be unique within the rule.
func (r *Rule) Normalize() error {
	if r.UID == "" {
		r.UID = uuid.NewString()
	}
	if r.Visibility == "" {
		r.Visibility = VisibilityVisible
	}

	seen := make(map[string]struct{})
	next := 1
	assign := func(mods []Module) error {
		for i := range mods {
			if mods[i].TypeUID == "" {
				return fmt.Errorf("%w: module without type in rule %q", ErrInvalidRule, r.UID)
			}
			if mods[i].ID == "" {
				for {
					id := strconv.Itoa(next)
					next++
					if _, taken := seen[id]; !taken {
						mods[i].ID = id
						break
					}
				}
			}
			if _, dup := seen[mods[i].ID]; dup {
				return fmt.Errorf("%w: duplicate module id %q in rule %q", ErrInvalidRule, mods[i].ID, r.UID)
			}
			seen[mods[i].ID] = struct{}{}
		}
		return nil
	}
	if err := assign(r.Triggers); err != nil {
		return err
	}
	if err := assign(r.Conditions); err != nil {
		return err
	}
	return assign(r.Actions)
}

// Modules returns all modules of the rule in trigger, condition,
// action order.
func (r *Rule) Modules() []Module {
	out := make([]Module, 0, len(r.Triggers)+len(r.Conditions)+len(r.Actions))
	out = append(out, r.Triggers...)
	out = append(out, r.Conditions...)
	out = append(out, r.Actions...)
	return out
}

// HasTag reports whether the rule carries the given tag.
func (r *Rule) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// DeepCopy returns an independent copy of the rule.
func (r *Rule) DeepCopy() *Rule {
	if r == nil {
		return nil
	}
	out := *r
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	out.Triggers = deepCopyModules(r.Triggers)
	out.Conditions = deepCopyModules(r.Conditions)
	out.Actions = deepCopyModules(r.Actions)
	return &out
}

func deepCopyModules(mods []Module) []Module {
	if mods == nil {
		return nil
	}
	out := make([]Module, len(mods))
	for i := range mods {
		out[i] = mods[i].DeepCopy()
	}
	return out
}

func deepCopyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return deepCopyMap(tv)
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
