// Package config defines the settings record and the ways it is loaded.
//
// Files may be YAML or JSON; both are decoded strictly over Default so unknown keys are
// errors. Environment variables prefixed with TELEFICATION_ override individual options.
// A Watcher hot-reloads a file, and any Source hands out per-dispatch snapshots.
package config
