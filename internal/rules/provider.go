package rules

import (
	"github.com/hearth-home/hearth-core/internal/registry"
)

// StoreNamespace is the storage namespace managed rule definitions are
// persisted under.
const StoreNamespace = "managed_rules"

// DisabledNamespace is the storage namespace that records disabled rule
// UIDs so enablement survives restarts.
const DisabledNamespace = "rules_disabled"

// DTO is the persisted form of a rule, shared by the managed store
// (JSON) and the YAML model files. The UID is the document key
// respectively the YAML map key, so it is not serialised in YAML.
type DTO struct {
	UID         string      `json:"uid"                   yaml:"-"`
	Name        string      `json:"name,omitempty"        yaml:"name,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string    `json:"tags,omitempty"        yaml:"tags,omitempty"`
	Visibility  string      `json:"visibility,omitempty"  yaml:"visibility,omitempty"`
	Triggers    []ModuleDTO `json:"triggers,omitempty"    yaml:"triggers,omitempty"`
	Conditions  []ModuleDTO `json:"conditions,omitempty"  yaml:"conditions,omitempty"`
	Actions     []ModuleDTO `json:"actions,omitempty"     yaml:"actions,omitempty"`
}

// ModuleDTO is the persisted form of one module.
type ModuleDTO struct {
	ID     string            `json:"id,omitempty"     yaml:"id,omitempty"`
	Type   string            `json:"type"             yaml:"type"`
	Label  string            `json:"label,omitempty"  yaml:"label,omitempty"`
	Config map[string]any    `json:"config,omitempty" yaml:"config,omitempty"`
	Inputs map[string]string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// ToDTO converts a rule to its persisted form. Runtime status is not
// part of the definition and does not travel.
func ToDTO(r *Rule) DTO {
	return DTO{
		UID:         r.UID,
		Name:        r.Name,
		Description: r.Description,
		Tags:        r.Tags,
		Visibility:  string(r.Visibility),
		Triggers:    modulesToDTO(r.Triggers),
		Conditions:  modulesToDTO(r.Conditions),
		Actions:     modulesToDTO(r.Actions),
	}
}

func modulesToDTO(mods []Module) []ModuleDTO {
	if mods == nil {
		return nil
	}
	out := make([]ModuleDTO, len(mods))
	for i, m := range mods {
		out[i] = ModuleDTO{ID: m.ID, Type: m.TypeUID, Label: m.Label, Config: m.Config, Inputs: m.Inputs}
	}
	return out
}

// FromDTO rebuilds and validates a rule.
func FromDTO(d DTO) (*Rule, error) {
	r := &Rule{
		UID:         d.UID,
		Name:        d.Name,
		Description: d.Description,
		Tags:        d.Tags,
		Visibility:  Visibility(d.Visibility),
		Triggers:    modulesFromDTO(d.Triggers),
		Conditions:  modulesFromDTO(d.Conditions),
		Actions:     modulesFromDTO(d.Actions),
	}
	if err := r.Normalize(); err != nil {
		return nil, err
	}
	return r, nil
}

func modulesFromDTO(dtos []ModuleDTO) []Module {
	if dtos == nil {
		return nil
	}
	out := make([]Module, len(dtos))
	for i, d := range dtos {
		out[i] = Module{ID: d.ID, TypeUID: d.Type, Label: d.Label, Config: d.Config, Inputs: d.Inputs}
	}
	return out
}

// NewManagedProvider creates the store-backed provider for runtime rule
// CRUD. Call Load before attaching it to the registry.
func NewManagedProvider(store registry.Store, logger registry.Logger) *registry.ManagedProvider[*Rule, DTO] {
	return registry.NewManagedProvider[*Rule, DTO](
		StoreNamespace, store, logger,
		func(r *Rule) DTO { return ToDTO(r) },
		FromDTO,
	)
}
