package features

import (
	"reflect"
	"testing"

	"civility-hq/kernel/pkg/policy"
)

func planWith(details ...string) policy.Plan {
	p := policy.Plan{ID: "p", Summary: "plan"}
	for _, d := range details {
		p.Steps = append(p.Steps, policy.Step{Kind: "action", Detail: d})
	}
	return p
}

func TestExtractTags(t *testing.T) {
	tests := []struct {
		name    string
		details []string
		want    []string
	}{
		{"no steps", nil, []string{}},
		{"nothing matches", []string{"Read the docs"}, []string{}},
		{"spend", []string{"Buy a new laptop"}, []string{policy.TagSpendMoney}},
		{"substring match", []string{"Schedule the payment"}, []string{policy.TagSpendMoney}},
		{"case insensitive", []string{"This is PERMANENT"}, []string{policy.TagIrreversible}},
		{"multi word phrase", []string{"you cannot undo this"}, []string{policy.TagIrreversible}},
		{"contact", []string{"Send an email to Bob"}, []string{policy.TagContactExternal}},
		{"delete", []string{"Erase the backups"}, []string{policy.TagDeleteFile}},
		{
			name:    "first occurrence order across steps",
			details: []string{"Remove old files", "Purchase storage", "Delete duplicates"},
			want:    []string{policy.TagDeleteFile, policy.TagSpendMoney},
		},
		{
			name:    "several tags in one step",
			details: []string{"Pay the invoice and message the vendor"},
			want:    []string{policy.TagSpendMoney, policy.TagContactExternal},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTags(planWith(tt.details...))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractTags() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnnotatePlan(t *testing.T) {
	in := planWith("Buy tickets")
	in.Meta.Tags = []string{"custom"}
	in.Meta.Stake = policy.Float(0.4)

	got := AnnotatePlan(in)

	if !reflect.DeepEqual(got.Meta.Tags, []string{policy.TagSpendMoney}) {
		t.Errorf("Tags = %v, want [spend_money]", got.Meta.Tags)
	}
	if got.Meta.StakeOr(0) != 0.4 {
		t.Errorf("Stake = %v, want 0.4", got.Meta.StakeOr(0))
	}
	if !reflect.DeepEqual(in.Meta.Tags, []string{"custom"}) {
		t.Errorf("input tags mutated: %v", in.Meta.Tags)
	}
	*got.Meta.Stake = 1
	if in.Meta.StakeOr(0) != 0.4 {
		t.Error("AnnotatePlan() shares meta pointers with its input")
	}
}

func TestAnnotatePlans(t *testing.T) {
	got := AnnotatePlans([]policy.Plan{planWith("email"), planWith("noop")})
	if len(got) != 2 || !got[0].Meta.HasTag(policy.TagContactExternal) || len(got[1].Meta.Tags) != 0 {
		t.Errorf("AnnotatePlans() = %+v", got)
	}
}
