// Package features derives plan tags from step descriptions with keyword
// heuristics.
package features

import (
	"regexp"
	"strings"

	"civility-hq/kernel/pkg/policy"
)

type tagPattern struct {
	tag     string
	pattern *regexp.Regexp
}

// Patterns are matched against the lowercased step detail, in this order.
var patterns = []tagPattern{
	{policy.TagSpendMoney, regexp.MustCompile(`spend|purchase|buy|pay`)},
	{policy.TagIrreversible, regexp.MustCompile(`irreversible|cannot undo|permanent`)},
	{policy.TagContactExternal, regexp.MustCompile(`email|message|contact`)},
	{policy.TagDeleteFile, regexp.MustCompile(`delete|remove|erase`)},
}

// ExtractTags returns the tags implied by the plan's steps, in order of
// first occurrence. Matching is substring based: "payment" implies
// spend_money.
func ExtractTags(plan policy.Plan) []string {
	seen := make(map[string]struct{})
	tags := []string{}
	for _, step := range plan.Steps {
		detail := strings.ToLower(step.Detail)
		for _, p := range patterns {
			if _, ok := seen[p.tag]; ok {
				continue
			}
			if p.pattern.MatchString(detail) {
				seen[p.tag] = struct{}{}
				tags = append(tags, p.tag)
			}
		}
	}
	return tags
}

// AnnotatePlan returns a copy of plan whose tags are replaced by the
// extracted ones. The input is not modified.
func AnnotatePlan(plan policy.Plan) policy.Plan {
	out := plan.Clone()
	out.Meta.Tags = ExtractTags(plan)
	return out
}

// AnnotatePlans annotates every plan in the batch.
func AnnotatePlans(plans []policy.Plan) []policy.Plan {
	out := make([]policy.Plan, len(plans))
	for i, p := range plans {
		out[i] = AnnotatePlan(p)
	}
	return out
}
