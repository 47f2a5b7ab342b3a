// Package retention prunes old evidence records.
//
// A Pruner applies two limits in order. Records whose DecidedTime is older
// than MaxAge are deleted first. If more than MaxRecords remain, the oldest
// are deleted until MaxRecords are left. Either limit is disabled by its
// zero value.
//
//	pruner := retention.NewPruner(storage, &retention.Config{
//	    MaxAge:        30 * 24 * time.Hour,
//	    MaxRecords:    100000,
//	    PruneSchedule: "0 3 * * *",
//	}, logger)
//	if err := pruner.Start(ctx); err != nil {
//	    return err
//	}
//	defer pruner.Stop()
//
// With ArchiveBeforeDelete set, records are exported as a JSON array to a
// timestamped file under ArchivePath before they are deleted.
//
// PruneSchedule is a standard five-field cron expression. An empty schedule
// disables the scheduler; Prune can still be called directly.
package retention
