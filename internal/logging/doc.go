// Package logging configures the process-wide slog logger.
//
// By default the indexer logs warnings and above to stderr. With --debug
// (or logging.file set), JSON logs at debug level are also written to
// ~/.marcindex/logs/indexer.log with size-based rotation, so per-record
// anomalies (dropped dates, rejected coordinates, failed harvests) can be
// inspected after a long batch run.
package logging
