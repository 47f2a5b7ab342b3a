// Package explain renders a policy as a human-readable summary.
package explain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/constraints"
)

// Format selects the output style.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// Options controls which sections are rendered.
type Options struct {
	Format             Format
	IncludeWeights     bool
	IncludeCalibration bool
	IncludeMemoryKeys  bool
}

// DefaultOptions returns text output with weights and calibration.
func DefaultOptions() Options {
	return Options{
		Format:             FormatText,
		IncludeWeights:     true,
		IncludeCalibration: true,
	}
}

// Explanation is a rendered policy.
type Explanation struct {
	Summary  string   `json:"summary"`
	Lines    []string `json:"lines"`
	Warnings []string `json:"warnings"`
}

// String joins the summary and lines into a single document.
func (e Explanation) String() string {
	var b strings.Builder
	b.WriteString(e.Summary)
	b.WriteString("\n\n")
	for _, l := range e.Lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

type writer struct {
	format Format
	lines  []string
}

func (w *writer) header(s string) {
	if w.format == FormatMarkdown {
		w.lines = append(w.lines, "## "+s)
		return
	}
	w.lines = append(w.lines, strings.ToUpper(s))
}

func (w *writer) bullet(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	if w.format == FormatMarkdown {
		w.lines = append(w.lines, "- "+s)
		return
	}
	w.lines = append(w.lines, "• "+s)
}

func (w *writer) blank() {
	w.lines = append(w.lines, "")
}

// Policy explains p. The registry is consulted to flag unknown constraints
// and invalid parameters; those are also reported as warnings.
func Policy(p *policy.Policy, reg *constraints.Registry, opts Options) Explanation {
	if p == nil {
		p = &policy.Policy{}
	}
	if opts.Format == "" {
		opts.Format = FormatText
	}

	w := &writer{format: opts.Format}
	warnings := []string{}

	w.header("Policy summary")
	w.bullet("Uncertainty threshold: %s (above this, the agent should ask / offer options)", fixed(p.UncertaintyThreshold, 2))

	if opts.IncludeWeights {
		w.blank()
		w.header("Tradeoffs (weights)")
		for _, s := range shares(p.Weights) {
			w.bullet("%s: %s%%", s.key, fixed(s.pct, 0))
		}
	}

	if opts.IncludeCalibration {
		w.blank()
		w.header("Behavior calibration")
		w.bullet("Risk tolerance: %s", fixed(p.Calibration.RiskTolerance, 2))
		w.bullet("Verbosity: %s", fixed(p.Calibration.Verbosity, 2))
		w.bullet("Initiative: %s", fixed(p.Calibration.Initiative, 2))
	}

	w.blank()
	w.header("Hard constraints (non-negotiables)")
	for _, spec := range p.Constraints {
		res, known := reg.Check(spec)
		switch {
		case !known:
			warnings = append(warnings, "Unknown constraint (will fail closed): "+spec.String())
			w.bullet("%s — ⚠ unknown (fails closed)", spec.String())
		case !res.OK():
			msg := res.Message()
			warnings = append(warnings, fmt.Sprintf("Invalid params for %s: %s", spec.ID, msg))
			w.bullet("%s — ❌ invalid params: %s", spec.String(), msg)
		default:
			w.bullet("%s", spec.String())
		}
	}

	if len(p.ContextRules) > 0 {
		w.blank()
		w.header("Context rules")
		for _, r := range p.ContextRules {
			explainRule(w, r)
		}
	}

	if opts.IncludeMemoryKeys {
		w.blank()
		w.header("Stored preferences (memory keys)")
		keys := make([]string, 0, len(p.Memory))
		for k := range p.Memory {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			w.bullet("%s", k)
		}
	}

	summary := fmt.Sprintf("Policy v%s: %d constraints, %d weights, %d context rules.",
		p.Version, len(p.Constraints), len(p.Weights), len(p.ContextRules))

	return Explanation{Summary: summary, Lines: w.lines, Warnings: warnings}
}

func explainRule(w *writer, r policy.ContextRule) {
	w.bullet("Context: %s", r.Context)

	if r.When != nil {
		var parts []string
		if r.When.MinStake != nil {
			parts = append(parts, "minStake ≥ "+policy.FormatNumber(*r.When.MinStake))
		}
		if r.When.MaxUncertainty != nil {
			parts = append(parts, "maxUncertainty ≤ "+policy.FormatNumber(*r.When.MaxUncertainty))
		}
		if len(r.When.TagsAny) > 0 {
			parts = append(parts, "tagsAny: "+strings.Join(r.When.TagsAny, ", "))
		}
		if len(parts) > 0 {
			w.bullet("When: %s", strings.Join(parts, " | "))
		}
	}

	adj := r.Adjust
	if adj.Weights != nil {
		w.bullet("Adjust weights: %s", policy.CanonicalJSON(adj.Weights))
	}
	if adj.UncertaintyThreshold != nil {
		w.bullet("Adjust uncertaintyThreshold: %s", policy.FormatNumber(*adj.UncertaintyThreshold))
	}
	if len(adj.ConstraintsAdd) > 0 {
		specs := make([]string, len(adj.ConstraintsAdd))
		for i, s := range adj.ConstraintsAdd {
			specs[i] = s.String()
		}
		w.bullet("Add constraints: %s", strings.Join(specs, "; "))
	}
	if len(adj.ConstraintsRemove) > 0 {
		w.bullet("Remove constraints by id: %s", strings.Join(adj.ConstraintsRemove, ", "))
	}
	if adj.Calibration != nil {
		w.bullet("Adjust calibration: %s", policy.CanonicalJSON(adj.Calibration))
	}
}

type share struct {
	key string
	pct float64
}

// shares orders weights by value, descending, with ties broken by key, and
// expresses each non-negative weight as a percentage of their sum.
func shares(weights map[string]float64) []share {
	keys := policy.SortedKeys(weights)
	sort.SliceStable(keys, func(i, j int) bool {
		return weights[keys[i]] > weights[keys[j]]
	})

	sum := 0.0
	for _, k := range keys {
		sum += math.Max(0, weights[k])
	}

	out := make([]share, len(keys))
	for i, k := range keys {
		pct := 0.0
		if sum > 0 {
			pct = math.Max(0, weights[k]) / sum * 100
		}
		out[i] = share{key: k, pct: pct}
	}
	return out
}

func fixed(v float64, digits int) string {
	return strconv.FormatFloat(v, 'f', digits, 64)
}
