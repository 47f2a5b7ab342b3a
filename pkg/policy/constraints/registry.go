// Package constraints holds the constraint registry: the mapping from a
// constraint identifier to the handler that evaluates it.
//
// Evaluation is fail-closed. A spec naming an unregistered constraint, a
// spec whose parameters do not satisfy the handler's schema, and a handler
// that panics all produce a violation rather than a pass.
package constraints

import (
	"fmt"
	"sort"
	"sync"

	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/schema"
)

// Fail-closed violation reasons.
const (
	ReasonUnknown       = "Unknown constraint (fail-closed)"
	ReasonInvalidPrefix = "Invalid params: "
)

// Handler evaluates one constraint spec against one plan.
type Handler interface {
	Evaluate(spec policy.ConstraintSpec, plan *policy.Plan, p *policy.Policy) policy.ConstraintResult
}

// SchemaProvider is implemented by handlers that declare a parameter schema.
type SchemaProvider interface {
	Schema() *schema.Schema
}

// Describer is implemented by handlers that can render their parameters
// for humans.
type Describer interface {
	Describe(params map[string]any) string
}

// HandlerFuncs adapts plain functions to Handler, SchemaProvider and
// Describer. Nil fields are treated as absent capabilities.
type HandlerFuncs struct {
	ParamSchema  *schema.Schema
	DescribeFunc func(params map[string]any) string
	EvaluateFunc func(spec policy.ConstraintSpec, plan *policy.Plan, p *policy.Policy) policy.ConstraintResult
}

// Evaluate calls EvaluateFunc.
func (h HandlerFuncs) Evaluate(spec policy.ConstraintSpec, plan *policy.Plan, p *policy.Policy) policy.ConstraintResult {
	return h.EvaluateFunc(spec, plan, p)
}

// Schema returns ParamSchema.
func (h HandlerFuncs) Schema() *schema.Schema {
	return h.ParamSchema
}

// Describe calls DescribeFunc, or returns "" when it is nil.
func (h HandlerFuncs) Describe(params map[string]any) string {
	if h.DescribeFunc == nil {
		return ""
	}
	return h.DescribeFunc(params)
}

// Registry maps constraint identifiers to handlers. It is populated at
// startup and then only read; reads are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	frozen   bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// NewDefaultRegistry returns a registry holding the built-in constraints.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

// Register adds or silently replaces the handler for id. Registering on a
// frozen registry panics.
func (r *Registry) Register(id string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic(fmt.Sprintf("constraints: Register(%q) on frozen registry", id))
	}
	r.handlers[id] = h
}

// Freeze makes the registry read-only and returns it.
func (r *Registry) Freeze() *Registry {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
	return r
}

// Handler returns the handler registered for id. A nil registry has no
// handlers.
func (r *Registry) Handler(id string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[id]
	return h, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.Handler(id)
	return ok
}

// IDs returns the registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Schema returns the parameter schema declared by the handler for id, or
// nil when the constraint is unknown or declares none.
func (r *Registry) Schema(id string) *schema.Schema {
	h, ok := r.Handler(id)
	if !ok {
		return nil
	}
	if sp, ok := h.(SchemaProvider); ok {
		return sp.Schema()
	}
	return nil
}

// Describe renders spec through its handler's describer. It reports false
// when the constraint is unknown, has no describer, or the describer
// returns an empty string.
func (r *Registry) Describe(spec policy.ConstraintSpec) (string, bool) {
	h, ok := r.Handler(spec.ID)
	if !ok {
		return "", false
	}
	d, ok := h.(Describer)
	if !ok {
		return "", false
	}
	desc := d.Describe(spec.ParamsOrEmpty())
	return desc, desc != ""
}

// Check validates the parameters of spec. known is false for unregistered
// identifiers; a registered constraint without a schema always validates.
func (r *Registry) Check(spec policy.ConstraintSpec) (res schema.Result, known bool) {
	if !r.Has(spec.ID) {
		return schema.Result{}, false
	}
	s := r.Schema(spec.ID)
	if s == nil {
		return schema.Result{Value: spec.Params}, true
	}
	return s.Parse(spec.Params), true
}

// Evaluate evaluates every spec against plan, in order. It never panics.
func (r *Registry) Evaluate(specs []policy.ConstraintSpec, plan *policy.Plan, p *policy.Policy) []policy.ConstraintResult {
	results := make([]policy.ConstraintResult, 0, len(specs))
	for _, spec := range specs {
		results = append(results, r.evaluateOne(spec, plan, p))
	}
	return results
}

func (r *Registry) evaluateOne(spec policy.ConstraintSpec, plan *policy.Plan, p *policy.Policy) (res policy.ConstraintResult) {
	h, ok := r.Handler(spec.ID)
	if !ok {
		return policy.Fail(spec, ReasonUnknown)
	}

	if sp, ok := h.(SchemaProvider); ok {
		if s := sp.Schema(); s != nil {
			if parsed := s.Parse(spec.Params); !parsed.OK() {
				return policy.Fail(spec, ReasonInvalidPrefix+parsed.Message())
			}
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			res = policy.Fail(spec, fmt.Sprintf("Constraint handler failed (fail-closed): %v", rec))
		}
	}()

	res = h.Evaluate(spec, plan, p)
	res.ID = spec.ID
	return res
}
