// Package scoring holds the scorer registry. A scorer maps a plan to a
// value in [0,1] for one weight key.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"civility-hq/kernel/pkg/policy"
)

// Built-in scorer keys.
const (
	Efficiency = "efficiency"
	LowRisk    = "low_risk"
	Concise    = "concise"
)

// Scorer scores a plan under a policy.
type Scorer interface {
	Score(plan *policy.Plan, p *policy.Policy) float64
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(plan *policy.Plan, p *policy.Policy) float64

// Score calls f.
func (f ScorerFunc) Score(plan *policy.Plan, p *policy.Policy) float64 {
	return f(plan, p)
}

// Registry maps weight keys to scorers. It is populated at startup and then
// only read; reads are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	scorers map[string]Scorer
	frozen  bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{scorers: make(map[string]Scorer)}
}

// NewDefaultRegistry returns a registry holding the built-in scorers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

// Register adds or replaces the scorer for key. Registering on a frozen
// registry panics.
func (r *Registry) Register(key string, s Scorer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic(fmt.Sprintf("scoring: Register(%q) on frozen registry", key))
	}
	r.scorers[key] = s
}

// Freeze makes the registry read-only and returns it.
func (r *Registry) Freeze() *Registry {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
	return r
}

// Has reports whether a scorer is registered for key.
func (r *Registry) Has(key string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.scorers[key]
	return ok
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.scorers))
	for k := range r.scorers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Score returns a score for every weight key of p. Scores are clamped to
// [0,1]; unregistered keys and NaN results score 0.
func (r *Registry) Score(plan *policy.Plan, p *policy.Policy) map[string]float64 {
	scores := make(map[string]float64, len(p.Weights))
	for key := range p.Weights {
		scores[key] = r.scoreOne(key, plan, p)
	}
	return scores
}

func (r *Registry) scoreOne(key string, plan *policy.Plan, p *policy.Policy) float64 {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	s, ok := r.scorers[key]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	return Clamp01(s.Score(plan, p))
}

// Clamp01 clamps v into [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// RegisterDefaults registers the built-in scorers on r.
func RegisterDefaults(r *Registry) {
	r.Register(Efficiency, ScorerFunc(func(plan *policy.Plan, _ *policy.Policy) float64 {
		return 1 / (1 + plan.Meta.TimeOr(60)/60)
	}))

	r.Register(LowRisk, ScorerFunc(func(plan *policy.Plan, p *policy.Policy) float64 {
		stake := plan.Meta.StakeOr(0.5)
		return Clamp01(1 - stake*(1-p.Calibration.RiskTolerance))
	}))

	r.Register(Concise, ScorerFunc(func(_ *policy.Plan, p *policy.Policy) float64 {
		if p.Calibration.Verbosity < 0.5 {
			return 1
		}
		return 0.5
	}))
}
