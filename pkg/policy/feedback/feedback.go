// Package feedback turns user feedback events into proposed policy
// patches. Proposals are never applied automatically.
package feedback

import (
	"fmt"
	"math"
	"time"

	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/loader"
)

// EventType is the kind of a feedback event.
type EventType string

const (
	ChoosePlan EventType = "CHOOSE_PLAN"
	Undo       EventType = "UNDO"
	ThumbsUp   EventType = "THUMBS_UP"
	ThumbsDown EventType = "THUMBS_DOWN"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case ChoosePlan, Undo, ThumbsUp, ThumbsDown:
		return true
	}
	return false
}

// Event is a single piece of user feedback.
type Event struct {
	Type EventType `json:"type" yaml:"type"`

	// WeightKey optionally names the preference the feedback is about.
	WeightKey string `json:"weightKey,omitempty" yaml:"weightKey,omitempty"`

	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Thresholds and step sizes for proposals.
const (
	UndoThreshold           = 3
	ConciseDownThreshold    = 2
	ClarificationThreshold  = 5
	CalibrationStep         = 0.1
	ConciseWeightKey        = "concise"
	ReasonTooProactive      = "Multiple undo events suggest actions are too proactive."
	ReasonTooVerbose        = "Feedback suggests responses are too verbose."
	ReasonNeedClarification = "Repeated negative feedback; consider requesting user clarification of preferences."
)

// Patch is a partial policy. Only set fields change when applied.
type Patch struct {
	Calibration *policy.CalibrationPatch `json:"calibration,omitempty" yaml:"calibration,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Calibration.IsEmpty()
}

// Apply returns a copy of pol with the patch applied.
func (p Patch) Apply(pol *policy.Policy) *policy.Policy {
	out := pol.Clone()
	if out == nil {
		out = &policy.Policy{}
	}
	out.Calibration = p.Calibration.Apply(out.Calibration)
	return out
}

// Proposal is a suggested policy change and why.
type Proposal struct {
	Reason string `json:"reason" yaml:"reason"`
	Patch  Patch  `json:"patch" yaml:"patch"`
}

// Propose inspects the events and returns proposed patches. The policy is
// only read.
func Propose(pol *policy.Policy, events []Event) []Proposal {
	var cal policy.Calibration
	if pol != nil {
		cal = pol.Calibration
	}

	var undos, downs, conciseDowns int
	for _, e := range events {
		switch e.Type {
		case Undo:
			undos++
		case ThumbsDown:
			downs++
			if e.WeightKey == ConciseWeightKey {
				conciseDowns++
			}
		}
	}

	proposals := []Proposal{}
	if undos >= UndoThreshold {
		patch := &policy.CalibrationPatch{Initiative: policy.Float(math.Max(0, cal.Initiative-CalibrationStep))}
		proposals = append(proposals, Proposal{Reason: ReasonTooProactive, Patch: Patch{Calibration: patch}})
	}
	if conciseDowns >= ConciseDownThreshold {
		patch := &policy.CalibrationPatch{Verbosity: policy.Float(math.Max(0, cal.Verbosity-CalibrationStep))}
		proposals = append(proposals, Proposal{Reason: ReasonTooVerbose, Patch: Patch{Calibration: patch}})
	}
	if downs >= ClarificationThreshold && len(proposals) == 0 {
		proposals = append(proposals, Proposal{Reason: ReasonNeedClarification})
	}
	return proposals
}

// ApplyAll applies every proposal in order and returns the result.
func ApplyAll(pol *policy.Policy, proposals []Proposal) *policy.Policy {
	out := pol.Clone()
	for _, pr := range proposals {
		out = pr.Patch.Apply(out)
	}
	return out
}

// LoadEvents reads a list of events from a JSON or YAML file.
func LoadEvents(path string) ([]Event, error) {
	var events []Event
	if err := loader.LoadFile(path, &events); err != nil {
		return nil, err
	}
	for i, e := range events {
		if !e.Type.Valid() {
			return nil, fmt.Errorf("event %d in %q: unknown type %q", i, path, e.Type)
		}
	}
	return events, nil
}
