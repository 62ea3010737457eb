/*
Package log provides structured logging for the shard manager and executor
processes using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("executor starting")

	workerLog := log.WithWorkerID(workerID.String())
	workerLog.Info().Uint64("oplog_index", idx).Msg("entry appended")

# Context loggers

  - WithComponent: tag logs with a subsystem name ("oplog", "scheduler", "rpcfabric")
  - WithPodID: tag logs with the owning executor pod id
  - WithWorkerID: tag logs with a worker id
  - WithComponentID: tag logs with a WASM component id
  - WithShardID: tag logs with a shard id
  - WithOplogIndex: tag logs with an oplog index

Never log guest-supplied invocation payloads at Info level or above without
redaction; they may contain arbitrary user data.
*/
package log
