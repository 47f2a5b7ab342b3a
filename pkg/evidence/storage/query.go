package storage

import (
	"sort"

	"civility-hq/kernel/pkg/evidence"
	"civility-hq/kernel/pkg/evidence/query"
)

// prepare validates q and returns a copy with defaults applied.
func prepare(q *evidence.Query) (*evidence.Query, error) {
	if q == nil {
		q = &evidence.Query{}
	}
	if err := query.Validate(q); err != nil {
		return nil, err
	}
	out := *q
	query.ApplyDefaults(&out)
	return &out, nil
}

// matches reports whether record satisfies the filters of q.
func matches(record *evidence.Record, q *evidence.Query) bool {
	if q.StartTime != nil && record.DecidedTime.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && record.DecidedTime.After(*q.EndTime) {
		return false
	}
	if q.ID != "" && record.ID != q.ID {
		return false
	}
	if q.DecisionID != "" && record.DecisionID != q.DecisionID {
		return false
	}
	if q.Context != "" && record.Context != q.Context {
		return false
	}
	if q.Outcome != "" && record.Outcome != q.Outcome {
		return false
	}
	if q.ChosenPlanID != "" && record.ChosenPlanID != q.ChosenPlanID {
		return false
	}
	if q.PolicyVersion != "" && record.PolicyVersion != q.PolicyVersion {
		return false
	}
	return true
}

// sortRecords orders records by the query's sort field, breaking ties by
// ID ascending.
func sortRecords(records []*evidence.Record, q *evidence.Query) {
	key := func(r *evidence.Record) int64 {
		if q.SortBy == "recorded_time" {
			return r.RecordedTime.UnixNano()
		}
		return r.DecidedTime.UnixNano()
	}
	desc := q.SortOrder == "desc"

	sort.Slice(records, func(i, j int) bool {
		ki, kj := key(records[i]), key(records[j])
		if ki != kj {
			if desc {
				return ki > kj
			}
			return ki < kj
		}
		return records[i].ID < records[j].ID
	})
}

// page applies offset and limit.
func page(records []*evidence.Record, q *evidence.Query) []*evidence.Record {
	if q.Offset >= len(records) {
		return []*evidence.Record{}
	}
	records = records[q.Offset:]
	if q.Limit > 0 && q.Limit < len(records) {
		records = records[:q.Limit]
	}
	return records
}
