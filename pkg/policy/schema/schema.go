// Package schema validates constraint parameters against JSON Schema
// documents and fills declared defaults.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"civility-hq/kernel/pkg/policy"
)

// Schema is a compiled parameter schema.
type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// Result is the outcome of parsing a parameter object.
type Result struct {
	// Value is the parsed parameter object with defaults filled in and
	// undeclared properties dropped. Nil when Errors is non-empty.
	Value map[string]any

	// Errors lists the leaf validation messages in a stable order.
	Errors []string
}

// OK reports whether the parameters validated.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Message joins the validation messages with "; ".
func (r Result) Message() string {
	return strings.Join(r.Errors, "; ")
}

// Compile compiles a draft 2020-12 JSON Schema document. The name only
// identifies the schema in error messages.
func Compile(name, document string) (*Schema, error) {
	url := "civility://constraints/" + name + ".json"

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.ExtractAnnotations = true
	if err := c.AddResource(url, strings.NewReader(document)); err != nil {
		return nil, fmt.Errorf("add schema %q: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", name, err)
	}
	return &Schema{name: name, compiled: compiled}, nil
}

// MustCompile is like Compile but panics on error. It is meant for
// package-level schema variables.
func MustCompile(name, document string) *Schema {
	s, err := Compile(name, document)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the name the schema was compiled with.
func (s *Schema) Name() string {
	return s.name
}

// Parse validates params (nil is treated as an empty object) and returns
// the parsed value. The input is never modified.
func (s *Schema) Parse(params map[string]any) Result {
	doc, err := normalize(params)
	if err != nil {
		return Result{Errors: []string{err.Error()}}
	}

	if err := s.compiled.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return Result{Errors: leafMessages(verr)}
		}
		return Result{Errors: []string{err.Error()}}
	}

	return Result{Value: s.fillDefaults(doc)}
}

// Validate is Parse without the value.
func (s *Schema) Validate(params map[string]any) error {
	if r := s.Parse(params); !r.OK() {
		return errors.New(r.Message())
	}
	return nil
}

// fillDefaults keeps declared properties and adds declared defaults for
// the missing ones. Schemas without declared properties pass the value
// through unchanged.
func (s *Schema) fillDefaults(doc map[string]any) map[string]any {
	if len(s.compiled.Properties) == 0 {
		return doc
	}
	out := make(map[string]any, len(s.compiled.Properties))
	for name, prop := range s.compiled.Properties {
		if v, ok := doc[name]; ok {
			out[name] = v
			continue
		}
		if prop != nil && prop.Default != nil {
			out[name] = plainValue(prop.Default)
		}
	}
	return out
}

// Decode converts a parameter object into a typed parameter record.
func Decode(params map[string]any, out any) error {
	raw, err := json.Marshal(policy.ObjectOrEmpty(params))
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}

// normalize turns decoded YAML or Go values into the plain JSON shapes the
// validator understands.
func normalize(params map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(policy.ObjectOrEmpty(params))
	if err != nil {
		return nil, fmt.Errorf("params are not a JSON object: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("params are not a JSON object: %w", err)
	}
	return doc, nil
}

// plainValue converts schema annotation values, which the compiler decodes
// with json.Number, into the float64 shapes encoding/json produces.
func plainValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return policy.CloneValue(v)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return policy.CloneValue(v)
	}
	return out
}

func leafMessages(verr *jsonschema.ValidationError) []string {
	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			if e.InstanceLocation == "" {
				msgs = append(msgs, e.Message)
			} else {
				msgs = append(msgs, strings.TrimPrefix(e.InstanceLocation, "/")+": "+e.Message)
			}
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	sort.Strings(msgs)
	return msgs
}
