package evidence

import (
	"context"
	"io"
	"time"

	"civility-hq/kernel/pkg/policy/engine"
)

// Record is the stored form of one decision.
type Record struct {
	// Identity
	ID         string `json:"id"`          // UUID v4
	DecisionID string `json:"decision_id"` // From the trace

	// Timestamps
	DecidedTime  time.Time `json:"decided_time"`  // Trace timestamp
	RecordedTime time.Time `json:"recorded_time"` // When the record was built

	// Decision summary
	Context        string         `json:"context"`
	Outcome        engine.Outcome `json:"outcome"`
	ChosenPlanID   string         `json:"chosen_plan_id,omitempty"`
	CandidateCount int            `json:"candidate_count"`
	SurvivorCount  int            `json:"survivor_count"`

	// Policy provenance
	PolicyVersion string `json:"policy_version"`
	PolicyHash    string `json:"policy_hash,omitempty"`   // SHA-256 of the canonical policy
	PolicySource  string `json:"policy_source,omitempty"` // File path or path@revision

	// Integrity
	TraceHash string `json:"trace_hash"` // SHA-256 of the canonical trace

	Trace engine.DecisionTrace `json:"trace"`
}

// Query defines filter parameters for querying records.
type Query struct {
	// Time range over DecidedTime
	StartTime *time.Time `json:"start_time,omitempty"` // Inclusive start time
	EndTime   *time.Time `json:"end_time,omitempty"`   // Inclusive end time

	// Filters
	ID            string         `json:"id,omitempty"`
	DecisionID    string         `json:"decision_id,omitempty"`
	Context       string         `json:"context,omitempty"`
	Outcome       engine.Outcome `json:"outcome,omitempty"`
	ChosenPlanID  string         `json:"chosen_plan_id,omitempty"`
	PolicyVersion string         `json:"policy_version,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`  // Max records to return
	Offset int `json:"offset,omitempty"` // Skip N records

	// Sorting
	SortBy    string `json:"sort_by,omitempty"`    // "decided_time", "recorded_time"
	SortOrder string `json:"sort_order,omitempty"` // "asc", "desc"
}

// Storage defines the interface for evidence storage backends.
// Implementations must be thread-safe and support concurrent access.
type Storage interface {
	// Store persists a record. Storing an existing ID is an error.
	Store(ctx context.Context, record *Record) error

	// Get returns the record with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Query retrieves records matching the query filters.
	// Returns an empty slice if no records match.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// QueryStream returns a channel of records for memory-efficient
	// streaming. Both channels are closed when the query completes; the
	// error channel carries at most one error.
	QueryStream(ctx context.Context, query *Query) (<-chan *Record, <-chan error, error)

	// Count returns the number of records matching the query filters.
	// Pagination fields are ignored.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes records matching the query filters and returns the
	// number deleted. Pagination fields are ignored.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases any resources held by the storage backend.
	Close() error
}

// Exporter writes records in some format.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
}
