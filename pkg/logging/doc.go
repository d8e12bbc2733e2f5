// Package logging provides subsystem-tagged, leveled logging for sharekeeper.
//
// It is a thin layer over Go's standard slog package. Every entry carries a
// subsystem attribute so output from the access engine, the stores, the
// drivers and the reconcile manager can be told apart and filtered.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("AccessEngine", "Updated access rules for %s", instanceID)
//	logging.Debug("SQLiteStore", "Opened %s", path)
//	logging.Warn("ReconcileManager", "Queue is backing up (%d items)", n)
//	logging.Error("ExportFileDriver", err, "Failed to write %s", path)
//
// Before InitForCLI is called, warnings and errors are written to stderr
// and everything else is dropped.
package logging
