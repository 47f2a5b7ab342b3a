package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"civility-hq/kernel/pkg/evidence"
	"civility-hq/kernel/pkg/evidence/export"
	"civility-hq/kernel/pkg/evidence/query"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// MaxAge is how long records are kept, measured on DecidedTime.
	// 0 keeps records forever.
	MaxAge time.Duration

	// MaxRecords is the maximum number of records to keep.
	// 0 means unlimited.
	MaxRecords int64

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string

	// ArchiveBeforeDelete exports records to JSON before deleting them.
	ArchiveBeforeDelete bool

	// ArchivePath is the directory to store archives in.
	ArchivePath string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxAge:        90 * 24 * time.Hour,
		PruneSchedule: "0 3 * * *",
		ArchivePath:   "data/archives/",
	}
}

// Pruner enforces retention policies on evidence records.
type Pruner struct {
	storage   evidence.Storage
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
	now       func() time.Time
	hook      PruneHook
}

// PruneHook observes every Prune call.
type PruneHook func(deleted int64, err error)

// SetPruneHook installs hook. It must be called before Start.
func (p *Pruner) SetPruneHook(hook PruneHook) {
	p.hook = hook
}

// NewPruner creates a new retention pruner.
func NewPruner(storage evidence.Storage, config *Config, logger *slog.Logger) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pruner := &Pruner{
		storage: storage,
		config:  config,
		logger:  logger.With("component", "evidence.retention"),
		now:     time.Now,
	}
	pruner.scheduler = NewScheduler(pruner)

	return pruner
}

// Prune deletes records older than MaxAge, then the oldest records beyond
// MaxRecords. Returns the total number of records deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	deleted, err := p.prune(ctx)
	if p.hook != nil {
		p.hook(deleted, err)
	}
	return deleted, err
}

func (p *Pruner) prune(ctx context.Context) (int64, error) {
	var totalDeleted int64

	if p.config.MaxAge > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return totalDeleted, evidence.NewRetentionError(p.config.MaxAge.String(), err)
		}
		totalDeleted += deleted
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return totalDeleted, evidence.NewRetentionError(p.config.MaxAge.String(), err)
		}
		totalDeleted += deleted
	}

	if totalDeleted == 0 {
		p.logger.Debug("no records pruned",
			"max_age", p.config.MaxAge,
			"max_records", p.config.MaxRecords,
		)
	} else {
		p.logger.Info("evidence pruning completed",
			"total_deleted", totalDeleted,
			"max_age", p.config.MaxAge,
			"max_records", p.config.MaxRecords,
		)
	}

	return totalDeleted, nil
}

// pruneByAge deletes records decided strictly before now-MaxAge.
func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.config.MaxAge).Add(-time.Nanosecond)
	q := &evidence.Query{EndTime: &cutoff}

	if p.config.ArchiveBeforeDelete {
		if err := p.archiveQuery(ctx, q, "age"); err != nil {
			return 0, err
		}
	}

	deleted, err := p.storage.Delete(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("delete expired records: %w", err)
	}

	p.logger.Debug("pruned records by age",
		"deleted_count", deleted,
		"cutoff_time", cutoff,
	)
	return deleted, nil
}

// pruneByCount deletes the oldest records until MaxRecords remain. Records
// are removed one ID at a time so equal timestamps never over-delete.
func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.storage.Count(ctx, &evidence.Query{})
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	if count <= p.config.MaxRecords {
		return 0, nil
	}

	excess := count - p.config.MaxRecords
	p.logger.Info("record count exceeds limit, pruning oldest",
		"current_count", count,
		"max_records", p.config.MaxRecords,
		"to_delete", excess,
	)

	var deleted int64
	for deleted < excess {
		batch := min(excess-deleted, int64(query.MaxLimit))
		oldest, err := p.storage.Query(ctx, &evidence.Query{SortOrder: "asc", Limit: int(batch)})
		if err != nil {
			return deleted, fmt.Errorf("query oldest records: %w", err)
		}
		if len(oldest) == 0 {
			break
		}

		if p.config.ArchiveBeforeDelete {
			if err := p.archiveRecords(ctx, oldest, "count"); err != nil {
				return deleted, err
			}
		}

		for _, record := range oldest {
			n, err := p.storage.Delete(ctx, &evidence.Query{ID: record.ID})
			if err != nil {
				return deleted, fmt.Errorf("delete record %s: %w", record.ID, err)
			}
			deleted += n
		}
	}

	return deleted, nil
}

// archiveQuery archives every record matching q, in pages.
func (p *Pruner) archiveQuery(ctx context.Context, q *evidence.Query, reason string) error {
	var records []*evidence.Record
	for offset := 0; ; offset += query.MaxLimit {
		pageQuery := *q
		pageQuery.SortOrder = "asc"
		pageQuery.Limit = query.MaxLimit
		pageQuery.Offset = offset

		batch, err := p.storage.Query(ctx, &pageQuery)
		if err != nil {
			return fmt.Errorf("query records for archiving: %w", err)
		}
		records = append(records, batch...)
		if len(batch) < query.MaxLimit {
			break
		}
	}
	return p.archiveRecords(ctx, records, reason)
}

// archiveRecords writes records to a timestamped JSON file in ArchivePath.
func (p *Pruner) archiveRecords(ctx context.Context, records []*evidence.Record, reason string) error {
	if len(records) == 0 {
		return nil
	}

	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	name := fmt.Sprintf("traces-%s-%s.json", reason, p.now().UTC().Format("2006-01-02-150405.000000000"))
	archiveFile := filepath.Join(p.config.ArchivePath, name)
	f, err := os.OpenFile(archiveFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	if err := export.NewJSONExporter(true).Export(ctx, records, f); err != nil {
		return fmt.Errorf("export records to archive: %w", err)
	}

	p.logger.Info("evidence archived",
		"archive_file", archiveFile,
		"record_count", len(records),
	)
	return nil
}

// Start starts the automatic pruning scheduler.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the automatic pruning scheduler.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled pruning.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
