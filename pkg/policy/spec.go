package policy

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ConstraintSpec references a registered constraint, optionally with
// parameters. In documents it is either a bare identifier or an object
// {id, params}.
type ConstraintSpec struct {
	ID     string
	Params map[string]any
}

// Bare returns a spec without parameters.
func Bare(id string) ConstraintSpec {
	return ConstraintSpec{ID: id}
}

// WithParams returns a spec with the given parameters.
func WithParams(id string, params map[string]any) ConstraintSpec {
	return ConstraintSpec{ID: id, Params: params}
}

// HasParams reports whether the spec carries a non-empty parameter object.
func (s ConstraintSpec) HasParams() bool {
	return len(s.Params) > 0
}

// ParamsOrEmpty returns the parameters, or an empty object when absent.
func (s ConstraintSpec) ParamsOrEmpty() map[string]any {
	return ObjectOrEmpty(s.Params)
}

// ObjectOrEmpty returns m, or an empty object when m is nil.
func ObjectOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// Key returns the identity of the spec: its id plus the canonical JSON of
// its parameters. Specs without parameters and specs with an empty
// parameter object share the same key.
func (s ConstraintSpec) Key() string {
	return s.ID + "\x00" + CanonicalJSON(s.ParamsOrEmpty())
}

// Equal reports whether two specs have the same identity.
func (s ConstraintSpec) Equal(other ConstraintSpec) bool {
	return s.Key() == other.Key()
}

// String renders the spec for humans: the bare id, or the id followed by
// its canonical parameters.
func (s ConstraintSpec) String() string {
	if !s.HasParams() {
		return s.ID
	}
	return s.ID + " " + CanonicalJSON(s.Params)
}

// Clone returns a deep copy of the spec.
func (s ConstraintSpec) Clone() ConstraintSpec {
	return ConstraintSpec{ID: s.ID, Params: CloneMap(s.Params)}
}

type specObject struct {
	ID     string         `json:"id" yaml:"id"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// MarshalJSON writes the bare form when the spec has no parameters.
func (s ConstraintSpec) MarshalJSON() ([]byte, error) {
	if !s.HasParams() {
		return json.Marshal(s.ID)
	}
	return json.Marshal(specObject{ID: s.ID, Params: s.Params})
}

// UnmarshalJSON accepts both the bare and the object form.
func (s *ConstraintSpec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*s = ConstraintSpec{ID: id}
		return nil
	}

	var obj specObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("constraint must be an identifier or {id, params}: %w", err)
	}
	*s = ConstraintSpec{ID: obj.ID, Params: obj.Params}
	return nil
}

// MarshalYAML writes the bare form when the spec has no parameters.
func (s ConstraintSpec) MarshalYAML() (interface{}, error) {
	if !s.HasParams() {
		return s.ID, nil
	}
	return specObject{ID: s.ID, Params: s.Params}, nil
}

// UnmarshalYAML accepts both the bare and the object form.
func (s *ConstraintSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var id string
		if err := node.Decode(&id); err != nil {
			return err
		}
		*s = ConstraintSpec{ID: id}
		return nil
	case yaml.MappingNode:
		var obj specObject
		if err := node.Decode(&obj); err != nil {
			return err
		}
		*s = ConstraintSpec{ID: obj.ID, Params: obj.Params}
		return nil
	default:
		return fmt.Errorf("line %d: constraint must be an identifier or {id, params}", node.Line)
	}
}
