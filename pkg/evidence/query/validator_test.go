package query

import (
	"errors"
	"testing"
	"time"

	"civility-hq/kernel/pkg/evidence"
	"civility-hq/kernel/pkg/policy/engine"
)

func TestValidate(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name    string
		query   *evidence.Query
		wantErr bool
	}{
		{"empty", &evidence.Query{}, false},
		{"full", &evidence.Query{
			StartTime: &earlier, EndTime: &now,
			Outcome: engine.OutcomeAskUser, Limit: 10, Offset: 5,
			SortBy: "recorded_time", SortOrder: "asc",
		}, false},
		{"negative limit", &evidence.Query{Limit: -1}, true},
		{"limit too large", &evidence.Query{Limit: MaxLimit + 1}, true},
		{"negative offset", &evidence.Query{Offset: -1}, true},
		{"bad sort field", &evidence.Query{SortBy: "trace; DROP TABLE decisions"}, true},
		{"bad sort order", &evidence.Query{SortOrder: "sideways"}, true},
		{"inverted time range", &evidence.Query{StartTime: &now, EndTime: &earlier}, true},
		{"bad outcome", &evidence.Query{Outcome: "MAYBE"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			var qerr *evidence.QueryError
			if err != nil && !errors.As(err, &qerr) {
				t.Errorf("Validate() error type = %T, want *evidence.QueryError", err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	q := &evidence.Query{}
	ApplyDefaults(q)
	if q.Limit != DefaultLimit || q.SortBy != DefaultSortBy || q.SortOrder != "desc" {
		t.Errorf("ApplyDefaults() = %+v", q)
	}

	q = &evidence.Query{Limit: 3, SortBy: "recorded_time", SortOrder: "asc"}
	ApplyDefaults(q)
	if q.Limit != 3 || q.SortBy != "recorded_time" || q.SortOrder != "asc" {
		t.Errorf("ApplyDefaults() overwrote explicit values: %+v", q)
	}
}
