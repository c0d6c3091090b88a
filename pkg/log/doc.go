/*
Package log provides structured logging for nitrite using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable log levels, and helper
functions for common logging patterns.

# Usage

	import "github.com/nitrited/nitrite/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("database opened")

	txLog := log.WithTransaction(tx.ID())
	txLog.Info().Int("journal_entries", 4).Msg("transaction committed")

	collLog := log.WithCollection("users")
	collLog.Error().Err(err).Msg("insert failed")

# Log Levels

Debug is for internal tracing (page cache hits, journal replay steps),
Info for collection/transaction lifecycle events, Warn for recoverable
conditions (index rebuild triggered by fragmentation), Error for failed
operations that return an error to the caller.
*/
package log
