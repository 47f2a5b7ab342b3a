package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"civility-hq/kernel/pkg/evidence"
	"civility-hq/kernel/pkg/policy/engine"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3, requires cgo
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path. ":memory:" uses a private
	// in-memory database on a single connection.
	Path string

	// Driver is the database/sql driver name.
	// Default: "sqlite"
	Driver string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/traces.db",
		Driver:       DriverModernc,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// dsn builds a data source name carrying the busy timeout, which each
// driver spells differently and which must apply to every pooled
// connection.
func (c *SQLiteConfig) dsn() string {
	ms := c.BusyTimeout.Milliseconds()
	if c.Driver == DriverMattn {
		return fmt.Sprintf("%s?_busy_timeout=%d", c.Path, ms)
	}
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)", c.Path, ms)
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database and initializes its schema.
func NewSQLiteStorage(config *SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverModernc
	}
	if config.Driver != DriverModernc && config.Driver != DriverMattn {
		return nil, evidence.NewStorageError("sqlite", "open", fmt.Errorf("unsupported driver %q", config.Driver))
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "evidence.storage.sqlite")

	db, err := sql.Open(config.Driver, config.dsn())
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "open", err)
	}

	if config.Path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets up the database schema and enables WAL mode.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode && s.config.Path != ":memory:" {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return evidence.NewStorageError("sqlite", "enable_wal", err)
		}
		s.logger.Debug("WAL mode enabled")
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return evidence.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return evidence.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return evidence.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return evidence.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Store persists a record to the database.
func (s *SQLiteStorage) Store(ctx context.Context, record *evidence.Record) error {
	trace, err := json.Marshal(record.Trace)
	if err != nil {
		return evidence.NewStorageError("sqlite", "store", fmt.Errorf("encode trace: %w", err))
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decisions (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.DecisionID,
		record.DecidedTime.UnixNano(), record.RecordedTime.UnixNano(),
		record.Context, string(record.Outcome), nullString(record.ChosenPlanID),
		record.CandidateCount, record.SurvivorCount,
		record.PolicyVersion, record.PolicyHash, record.PolicySource,
		record.TraceHash, string(trace),
	)
	if err != nil {
		return evidence.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Get returns the record with the given ID.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*evidence.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM decisions WHERE id = ?`, id)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "get", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, evidence.NewStorageError("sqlite", "get", err)
		}
		return nil, evidence.NewStorageError("sqlite", "get", evidence.ErrNotFound)
	}
	record, err := scanRecord(rows)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "scan", err)
	}
	return record, nil
}

// selectQuery builds the SELECT statement for q, which must already have
// defaults applied.
func selectQuery(q *evidence.Query) (string, []any) {
	where, args := buildWhereClause(q)

	stmt := `SELECT ` + recordColumns + ` FROM decisions`
	if where != "" {
		stmt += " WHERE " + where
	}
	// sort fields and orders are whitelisted by query.Validate
	stmt += fmt.Sprintf(" ORDER BY %s %s, id ASC", q.SortBy, strings.ToUpper(q.SortOrder))
	stmt += fmt.Sprintf(" LIMIT %d", q.Limit)
	if q.Offset > 0 {
		stmt += fmt.Sprintf(" OFFSET %d", q.Offset)
	}
	return stmt, args
}

// Query retrieves records matching the query filters.
func (s *SQLiteStorage) Query(ctx context.Context, q *evidence.Query) ([]*evidence.Record, error) {
	q, err := prepare(q)
	if err != nil {
		return nil, err
	}
	stmt, args := selectQuery(q)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*evidence.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, evidence.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	return records, nil
}

// QueryStream returns a channel of records for memory-efficient streaming.
func (s *SQLiteStorage) QueryStream(ctx context.Context, q *evidence.Query) (<-chan *evidence.Record, <-chan error, error) {
	q, err := prepare(q)
	if err != nil {
		return nil, nil, err
	}
	stmt, args := selectQuery(q)

	recordsCh := make(chan *evidence.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(recordsCh)
		defer close(errCh)

		rows, err := s.db.QueryContext(ctx, stmt, args...)
		if err != nil {
			errCh <- evidence.NewStorageError("sqlite", "query_stream", err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			record, err := scanRecord(rows)
			if err != nil {
				errCh <- evidence.NewStorageError("sqlite", "scan", err)
				return
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case recordsCh <- record:
			}
		}
		if err := rows.Err(); err != nil {
			errCh <- evidence.NewStorageError("sqlite", "query_stream", err)
		}
	}()

	return recordsCh, errCh, nil
}

// Count returns the number of records matching the query filters.
func (s *SQLiteStorage) Count(ctx context.Context, q *evidence.Query) (int64, error) {
	q, err := prepare(q)
	if err != nil {
		return 0, err
	}
	where, args := buildWhereClause(q)

	stmt := "SELECT COUNT(*) FROM decisions"
	if where != "" {
		stmt += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, evidence.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete removes records matching the query filters.
func (s *SQLiteStorage) Delete(ctx context.Context, q *evidence.Query) (int64, error) {
	q, err := prepare(q)
	if err != nil {
		return 0, err
	}
	where, args := buildWhereClause(q)

	stmt := "DELETE FROM decisions"
	if where != "" {
		stmt += " WHERE " + where
	}

	result, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	return count, nil
}

// Close releases resources held by the storage backend.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return evidence.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}

// buildWhereClause builds a SQL WHERE clause from query filters.
// Returns the clause without the "WHERE" keyword, and its arguments.
func buildWhereClause(q *evidence.Query) (string, []any) {
	var conditions []string
	var args []any

	add := func(cond string, arg any) {
		conditions = append(conditions, cond)
		args = append(args, arg)
	}

	if q.StartTime != nil {
		add("decided_time >= ?", q.StartTime.UnixNano())
	}
	if q.EndTime != nil {
		add("decided_time <= ?", q.EndTime.UnixNano())
	}
	if q.ID != "" {
		add("id = ?", q.ID)
	}
	if q.DecisionID != "" {
		add("decision_id = ?", q.DecisionID)
	}
	if q.Context != "" {
		add("context = ?", q.Context)
	}
	if q.Outcome != "" {
		add("outcome = ?", string(q.Outcome))
	}
	if q.ChosenPlanID != "" {
		add("chosen_plan_id = ?", q.ChosenPlanID)
	}
	if q.PolicyVersion != "" {
		add("policy_version = ?", q.PolicyVersion)
	}

	return strings.Join(conditions, " AND "), args
}

// scanRecord scans a row selected with recordColumns.
func scanRecord(rows *sql.Rows) (*evidence.Record, error) {
	var record evidence.Record
	var decided, recorded int64
	var outcome, trace string
	var chosen, policyVersion, policyHash, policySource sql.NullString

	err := rows.Scan(
		&record.ID, &record.DecisionID,
		&decided, &recorded,
		&record.Context, &outcome, &chosen,
		&record.CandidateCount, &record.SurvivorCount,
		&policyVersion, &policyHash, &policySource,
		&record.TraceHash, &trace,
	)
	if err != nil {
		return nil, err
	}

	record.DecidedTime = time.Unix(0, decided).UTC()
	record.RecordedTime = time.Unix(0, recorded).UTC()
	record.Outcome = engine.Outcome(outcome)
	record.ChosenPlanID = chosen.String
	record.PolicyVersion = policyVersion.String
	record.PolicyHash = policyHash.String
	record.PolicySource = policySource.String

	if err := json.Unmarshal([]byte(trace), &record.Trace); err != nil {
		return nil, fmt.Errorf("decode trace of %s: %w", record.ID, err)
	}
	return &record, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// IsNotFound reports whether err means a record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, evidence.ErrNotFound)
}
