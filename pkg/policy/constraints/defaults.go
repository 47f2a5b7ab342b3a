package constraints

import (
	"fmt"
	"strings"

	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/schema"
)

// Built-in constraint identifiers.
const (
	NoIrreversibleChanges  = "no_irreversible_changes"
	MaxSpendWithoutConfirm = "max_spend_without_confirm"
	RequireConfirmIf       = "require_confirm_if"
)

// MaxSpendParams parameterizes max_spend_without_confirm.
type MaxSpendParams struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
}

// RequireConfirmParams parameterizes require_confirm_if.
type RequireConfirmParams struct {
	StakeGte     float64 `json:"stakeGte"`
	Irreversible bool    `json:"irreversible"`
}

var (
	noIrreversibleSchema = schema.MustCompile(NoIrreversibleChanges, `{
		"type": "object",
		"properties": {}
	}`)

	maxSpendSchema = schema.MustCompile(MaxSpendWithoutConfirm, `{
		"type": "object",
		"properties": {
			"amount": {"type": "number", "minimum": 0},
			"currency": {"type": "string"}
		},
		"required": ["amount"]
	}`)

	requireConfirmSchema = schema.MustCompile(RequireConfirmIf, `{
		"type": "object",
		"properties": {
			"stakeGte": {"type": "number", "minimum": 0, "maximum": 1},
			"irreversible": {"type": "boolean", "default": false}
		},
		"required": ["stakeGte"]
	}`)
)

// RegisterDefaults registers the built-in constraints on r.
func RegisterDefaults(r *Registry) {
	r.Register(NoIrreversibleChanges, HandlerFuncs{
		ParamSchema: noIrreversibleSchema,
		DescribeFunc: func(map[string]any) string {
			return "No irreversible changes allowed"
		},
		EvaluateFunc: evaluateNoIrreversible,
	})

	r.Register(MaxSpendWithoutConfirm, HandlerFuncs{
		ParamSchema:  maxSpendSchema,
		DescribeFunc: describeMaxSpend,
		EvaluateFunc: evaluateMaxSpend,
	})

	r.Register(RequireConfirmIf, HandlerFuncs{
		ParamSchema:  requireConfirmSchema,
		DescribeFunc: describeRequireConfirm,
		EvaluateFunc: evaluateRequireConfirm,
	})
}

func evaluateNoIrreversible(spec policy.ConstraintSpec, plan *policy.Plan, _ *policy.Policy) policy.ConstraintResult {
	if plan.Meta.Irreversible() {
		return policy.Fail(spec, "Plan includes irreversible action")
	}
	return policy.Pass(spec)
}

func evaluateMaxSpend(spec policy.ConstraintSpec, plan *policy.Plan, _ *policy.Policy) policy.ConstraintResult {
	var params MaxSpendParams
	if err := schema.Decode(spec.Params, &params); err != nil {
		return policy.Fail(spec, ReasonInvalidPrefix+err.Error())
	}

	spend := plan.Meta.CostOr(0)
	if plan.Meta.HasTag(policy.TagSpendMoney) && spend > params.Amount {
		return policy.Fail(spec, fmt.Sprintf("Spending %s exceeds limit %s without confirmation",
			policy.FormatNumber(spend), policy.FormatNumber(params.Amount)))
	}
	return policy.Pass(spec)
}

func evaluateRequireConfirm(spec policy.ConstraintSpec, plan *policy.Plan, _ *policy.Policy) policy.ConstraintResult {
	var params RequireConfirmParams
	if err := schema.Decode(spec.Params, &params); err != nil {
		return policy.Fail(spec, ReasonInvalidPrefix+err.Error())
	}

	stake := plan.Meta.StakeOr(0)
	if stake >= params.StakeGte && (!params.Irreversible || plan.Meta.Irreversible()) {
		return policy.Fail(spec, "Requires explicit confirmation in this context")
	}
	return policy.Pass(spec)
}

func describeMaxSpend(params map[string]any) string {
	var p MaxSpendParams
	_ = schema.Decode(params, &p)
	return strings.TrimSpace(fmt.Sprintf("Max spend without confirmation: %s %s",
		policy.FormatNumber(p.Amount), p.Currency))
}

func describeRequireConfirm(params map[string]any) string {
	var p RequireConfirmParams
	_ = schema.Decode(params, &p)
	desc := "Require confirmation if stake >= " + policy.FormatNumber(p.StakeGte)
	if p.Irreversible {
		desc += " and is irreversible"
	}
	return desc
}
