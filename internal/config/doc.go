// Package config loads sharekeeper's configuration.
//
// Configuration lives in a single directory, ~/.config/sharekeeper by
// default or the directory given with --config-path. The directory holds
// config.yaml and, unless configured otherwise, the SQLite database, the
// exports file of the exportfile driver and the manifests/ directory read
// by "sharekeeper serve".
//
// # File Format
//
//	store:
//	  backend: sqlite        # memory, sqlite or postgres
//	  path: sharekeeper.db
//	driver:
//	  name: exportfile
//	  exportPath: exports.yaml
//	reconciler:
//	  workers: 2
//	  resyncInterval: 5m
//	  pruneOnDelete: false
//	logging:
//	  level: info
//
// Fields that are left out keep their defaults. Relative paths are resolved
// against the configuration directory. LoadConfig validates the result and
// returns a ConfigurationErrorCollection describing every problem at once.
package config
