// Package retention implements the batched, bounded deletion of historical
// monitor results: TTL clamping, a dry-run preview, a safety cap on the
// deletable fraction, and the batched delete itself.
package retention

import (
	"context"

	"github.com/onbao165/webmonitor/internal/store"
)

const (
	defaultKeepHealthyDays   = 7
	defaultKeepUnhealthyDays = 30
	defaultBatchSize         = 1000
	safetyCapPercent         = 90.0
)

// Logger is the minimal logging hook retention needs.
type Logger func(format string, args ...interface{})

// Clamp substitutes the spec-mandated defaults for any TTL below one day,
// matching DataCleanupJob.execute's guard clauses.
func Clamp(keepHealthyDays, keepUnhealthyDays int, log Logger) (int, int) {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	if keepHealthyDays < 1 {
		log("keep_healthy_results_days must be at least 1, using default of %d", defaultKeepHealthyDays)
		keepHealthyDays = defaultKeepHealthyDays
	}
	if keepUnhealthyDays < 1 {
		log("keep_unhealthy_results_days must be at least 1, using default of %d", defaultKeepUnhealthyDays)
		keepUnhealthyDays = defaultKeepUnhealthyDays
	}
	return keepHealthyDays, keepUnhealthyDays
}

// Preview clamps the TTLs and returns the dry-run counts, exposed both
// internally by Run and externally as the get_cleanup_preview control action.
func Preview(ctx context.Context, st store.Store, keepHealthyDays, keepUnhealthyDays int, log Logger) (*store.CleanupPreview, error) {
	keepHealthyDays, keepUnhealthyDays = Clamp(keepHealthyDays, keepUnhealthyDays, log)
	return st.CleanupPreview(ctx, keepHealthyDays, keepUnhealthyDays)
}

// Run performs one retention pass: clamp TTLs, compute the preview, abort if
// more than safetyCapPercent of all results would be deleted, otherwise
// perform the batched delete and log a results summary. It reports success
// the way the original job's execute() does: true unless the safety cap
// trips or a store operation fails.
func Run(ctx context.Context, st store.Store, keepHealthyDays, keepUnhealthyDays int, log Logger) bool {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	keepHealthyDays, keepUnhealthyDays = Clamp(keepHealthyDays, keepUnhealthyDays, log)

	preview, err := st.CleanupPreview(ctx, keepHealthyDays, keepUnhealthyDays)
	if err != nil {
		log("data cleanup job failed: %v", err)
		return false
	}

	log("cleanup preview: %d results will be deleted", preview.TotalToDelete)
	log("  - healthy results (>%d days): %d", keepHealthyDays, preview.HealthyToDelete)
	log("  - unhealthy results (>%d days): %d", keepUnhealthyDays, preview.UnhealthyToDelete)
	log("  - total results before cleanup: %d", preview.TotalResults)
	log("  - results remaining after cleanup: %d", preview.RetentionAfterCleanup)

	if preview.TotalToDelete == 0 {
		log("no old results found to cleanup")
		return true
	}

	if preview.TotalResults > 0 {
		pct := float64(preview.TotalToDelete) / float64(preview.TotalResults) * 100
		if pct > safetyCapPercent {
			log("safety check failed: would delete %.1f%% of all data, aborting cleanup", pct)
			return false
		}
	}

	log("starting data cleanup operation...")
	stats, err := st.CleanupOldResults(ctx, keepHealthyDays, keepUnhealthyDays, defaultBatchSize)
	if err != nil {
		log("data cleanup job failed: %v", err)
		return false
	}

	logResults(stats, keepHealthyDays, keepUnhealthyDays, log)

	if len(stats.Errors) > 0 {
		log("cleanup completed with errors: %v", stats.Errors)
		return false
	}

	log("data cleanup completed successfully")
	return true
}

func logResults(stats *store.CleanupStats, keepHealthyDays, keepUnhealthyDays int, log Logger) {
	log("retention policy: keep healthy %d days, keep unhealthy %d days", keepHealthyDays, keepUnhealthyDays)
	log("results deleted: healthy=%d unhealthy=%d total=%d", stats.HealthyDeleted, stats.UnhealthyDeleted, stats.TotalDeleted)
	log("batches processed: %d, duration: %.2fs", stats.BatchesProcessed, stats.DurationSeconds)
	if stats.DurationSeconds > 0 && stats.TotalDeleted > 0 {
		rate := float64(stats.TotalDeleted) / stats.DurationSeconds
		log("deletion rate: %.0f records/second", rate)
	}
}
