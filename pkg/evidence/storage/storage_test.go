package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civility-hq/kernel/pkg/evidence"
	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/engine"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testRecord(i int, outcome engine.Outcome, context string) *evidence.Record {
	decided := baseTime.Add(time.Duration(i) * time.Minute)
	chosen := ""
	if outcome == engine.OutcomeExecute {
		chosen = fmt.Sprintf("plan-%d", i)
	}
	return &evidence.Record{
		ID:             fmt.Sprintf("rec-%03d", i),
		DecisionID:     fmt.Sprintf("dec-%03d", i),
		DecidedTime:    decided,
		RecordedTime:   decided.Add(time.Second),
		Context:        context,
		Outcome:        outcome,
		ChosenPlanID:   chosen,
		CandidateCount: 2,
		SurvivorCount:  1,
		PolicyVersion:  "1",
		PolicyHash:     "abc",
		PolicySource:   "policy.yaml",
		TraceHash:      fmt.Sprintf("hash-%d", i),
		Trace: engine.DecisionTrace{
			DecisionID: fmt.Sprintf("dec-%03d", i),
			Context:    context,
			EffectivePolicy: engine.EffectivePolicy{
				Weights:              map[string]float64{"efficiency": 1},
				Constraints:          []policy.ConstraintSpec{policy.Bare("no_irreversible_changes")},
				UncertaintyThreshold: 0.5,
			},
			ChosenPlanID: chosen,
			Outcome:      outcome,
			Rationale:    []string{"test"},
			Timestamp:    decided.Format("2006-01-02T15:04:05.000Z"),
		},
	}
}

type backend struct {
	name string
	open func(t *testing.T) evidence.Storage
}

func backends() []backend {
	sqliteBackend := func(driver string) func(t *testing.T) evidence.Storage {
		return func(t *testing.T) evidence.Storage {
			cfg := DefaultSQLiteConfig()
			cfg.Driver = driver
			cfg.Path = filepath.Join(t.TempDir(), "traces.db")
			s, err := NewSQLiteStorage(cfg, nil)
			if err != nil && driver == DriverMattn {
				t.Skipf("mattn driver unavailable: %v", err)
			}
			require.NoError(t, err)
			return s
		}
	}
	return []backend{
		{"memory", func(t *testing.T) evidence.Storage { return NewMemoryStorage() }},
		{"sqlite/modernc", sqliteBackend(DriverModernc)},
		{"sqlite/mattn", sqliteBackend(DriverMattn)},
	}
}

func seed(t *testing.T, s evidence.Storage) {
	t.Helper()
	ctx := context.Background()
	outcomes := []engine.Outcome{engine.OutcomeExecute, engine.OutcomeAskUser, engine.OutcomeNoValidPlan}
	for i := 0; i < 9; i++ {
		ctxName := "work"
		if i%2 == 1 {
			ctxName = "home"
		}
		require.NoError(t, s.Store(ctx, testRecord(i, outcomes[i%3], ctxName)))
	}
}

func ids(records []*evidence.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestStorage_StoreAndGet(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()
			ctx := context.Background()

			want := testRecord(1, engine.OutcomeExecute, "work")
			require.NoError(t, s.Store(ctx, want))

			got, err := s.Get(ctx, want.ID)
			require.NoError(t, err)
			assert.Equal(t, want.ID, got.ID)
			assert.Equal(t, want.DecisionID, got.DecisionID)
			assert.True(t, want.DecidedTime.Equal(got.DecidedTime))
			assert.True(t, want.RecordedTime.Equal(got.RecordedTime))
			assert.Equal(t, want.Outcome, got.Outcome)
			assert.Equal(t, want.ChosenPlanID, got.ChosenPlanID)
			assert.Equal(t, want.PolicySource, got.PolicySource)
			assert.Equal(t, want.TraceHash, got.TraceHash)
			assert.Equal(t, want.Trace.DecisionID, got.Trace.DecisionID)
			assert.Equal(t, want.Trace.Rationale, got.Trace.Rationale)
			assert.Equal(t, policy.CanonicalJSON(want.Trace), policy.CanonicalJSON(got.Trace))
		})
	}
}

func TestStorage_GetNotFound(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()

			_, err := s.Get(context.Background(), "missing")
			require.Error(t, err)
			assert.True(t, errors.Is(err, evidence.ErrNotFound))
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestStorage_DuplicateID(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()
			ctx := context.Background()

			r := testRecord(1, engine.OutcomeExecute, "work")
			require.NoError(t, s.Store(ctx, r))
			err := s.Store(ctx, r)
			var storageErr *evidence.StorageError
			assert.True(t, errors.As(err, &storageErr))
		})
	}
}

func TestStorage_Query(t *testing.T) {
	start := baseTime.Add(2 * time.Minute)
	end := baseTime.Add(5 * time.Minute)

	tests := []struct {
		name  string
		query *evidence.Query
		want  []string
	}{
		{
			name:  "default newest first",
			query: &evidence.Query{},
			want:  []string{"rec-008", "rec-007", "rec-006", "rec-005", "rec-004", "rec-003", "rec-002", "rec-001", "rec-000"},
		},
		{
			name:  "nil query",
			query: nil,
			want:  []string{"rec-008", "rec-007", "rec-006", "rec-005", "rec-004", "rec-003", "rec-002", "rec-001", "rec-000"},
		},
		{
			name:  "ascending with limit and offset",
			query: &evidence.Query{SortOrder: "asc", Limit: 3, Offset: 2},
			want:  []string{"rec-002", "rec-003", "rec-004"},
		},
		{
			name:  "time range is inclusive",
			query: &evidence.Query{StartTime: &start, EndTime: &end, SortOrder: "asc"},
			want:  []string{"rec-002", "rec-003", "rec-004", "rec-005"},
		},
		{
			name:  "outcome",
			query: &evidence.Query{Outcome: engine.OutcomeAskUser, SortOrder: "asc"},
			want:  []string{"rec-001", "rec-004", "rec-007"},
		},
		{
			name:  "context and outcome",
			query: &evidence.Query{Context: "work", Outcome: engine.OutcomeExecute, SortOrder: "asc"},
			want:  []string{"rec-000", "rec-006"},
		},
		{
			name:  "chosen plan",
			query: &evidence.Query{ChosenPlanID: "plan-3"},
			want:  []string{"rec-003"},
		},
		{
			name:  "decision id",
			query: &evidence.Query{DecisionID: "dec-005"},
			want:  []string{"rec-005"},
		},
		{
			name:  "record id",
			query: &evidence.Query{ID: "rec-004"},
			want:  []string{"rec-004"},
		},
		{
			name:  "sort by recorded time",
			query: &evidence.Query{SortBy: "recorded_time", Limit: 2},
			want:  []string{"rec-008", "rec-007"},
		},
		{
			name:  "offset past end",
			query: &evidence.Query{Offset: 50},
			want:  []string{},
		},
		{
			name:  "no match",
			query: &evidence.Query{PolicyVersion: "9"},
			want:  []string{},
		},
	}

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()
			seed(t, s)

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					got, err := s.Query(context.Background(), tt.query)
					require.NoError(t, err)
					assert.Equal(t, tt.want, ids(got))
				})
			}
		})
	}
}

func TestStorage_QueryTieBreak(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()
			ctx := context.Background()

			for _, id := range []string{"c", "a", "b"} {
				r := testRecord(0, engine.OutcomeExecute, "work")
				r.ID = id
				require.NoError(t, s.Store(ctx, r))
			}

			got, err := s.Query(ctx, &evidence.Query{})
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, ids(got))
		})
	}
}

func TestStorage_QueryInvalid(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()

			_, err := s.Query(context.Background(), &evidence.Query{SortBy: "trace; DROP TABLE decisions"})
			var queryErr *evidence.QueryError
			assert.True(t, errors.As(err, &queryErr))
		})
	}
}

func TestStorage_QueryStream(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()
			seed(t, s)

			recordsCh, errCh, err := s.QueryStream(context.Background(), &evidence.Query{SortOrder: "asc", Limit: 4})
			require.NoError(t, err)

			var got []string
			for r := range recordsCh {
				got = append(got, r.ID)
			}
			assert.NoError(t, <-errCh)
			assert.Equal(t, []string{"rec-000", "rec-001", "rec-002", "rec-003"}, got)
		})
	}
}

func TestStorage_CountAndDelete(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()
			seed(t, s)
			ctx := context.Background()

			count, err := s.Count(ctx, &evidence.Query{Limit: 1})
			require.NoError(t, err)
			assert.Equal(t, int64(9), count)

			count, err = s.Count(ctx, &evidence.Query{Context: "home"})
			require.NoError(t, err)
			assert.Equal(t, int64(4), count)

			cutoff := baseTime.Add(3 * time.Minute)
			deleted, err := s.Delete(ctx, &evidence.Query{EndTime: &cutoff})
			require.NoError(t, err)
			assert.Equal(t, int64(4), deleted)

			count, err = s.Count(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, int64(5), count)

			deleted, err = s.Delete(ctx, &evidence.Query{ID: "rec-008"})
			require.NoError(t, err)
			assert.Equal(t, int64(1), deleted)
		})
	}
}

func TestSQLiteStorage_InMemory(t *testing.T) {
	cfg := DefaultSQLiteConfig()
	cfg.Path = ":memory:"
	s, err := NewSQLiteStorage(cfg, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Store(ctx, testRecord(1, engine.OutcomeExecute, "work")))
	count, err := s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "traces.db")

	s, err := NewSQLiteStorage(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, s.Store(context.Background(), testRecord(1, engine.OutcomeAskUser, "work")))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStorage(cfg, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(context.Background(), "rec-001")
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeAskUser, got.Outcome)
}

func TestSQLiteStorage_UnsupportedDriver(t *testing.T) {
	cfg := DefaultSQLiteConfig()
	cfg.Driver = "postgres"
	_, err := NewSQLiteStorage(cfg, nil)
	assert.Error(t, err)
}

func TestMemoryStorage_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, testRecord(1, engine.OutcomeExecute, "work")))

	got, err := s.Get(ctx, "rec-001")
	require.NoError(t, err)
	got.Context = "changed"

	again, err := s.Get(ctx, "rec-001")
	require.NoError(t, err)
	assert.Equal(t, "work", again.Context)
	assert.Equal(t, 1, s.Size())
}
