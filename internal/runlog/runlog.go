// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package runlog adapts github.com/sapcc/go-bits/logg to the four-level
// scheme ("error|warn|info|debug") the Artifact Graph Engine's configuration
// exposes. logg itself only has Error/Info/Debug (gated by logg.ShowDebug)
// plus a generic Other(level, ...) escape hatch; this package adds the
// missing Warn level and a single ordinal gate that also silences Info
// when the operator only wants warnings or errors.
package runlog

import "github.com/sapcc/go-bits/logg"

// Level is an ordinal logging level, lowest-to-highest verbosity.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// Current is the process-wide configured level, set once from Config.LogLevel
// during startup. It defaults to LevelWarn, matching the documented default.
var Current = LevelWarn

// ParseLevel maps the configuration string to a Level. An unrecognized value
// is treated as an error by Config.Validate before this is ever called, so
// this function itself defaults permissively to LevelWarn.
func ParseLevel(s string) Level {
	switch s {
	case "error":
		return LevelError
	case "warn":
		return LevelWarn
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelWarn
	}
}

// Error always logs; it is the floor of the level scheme.
func Error(msg string, args ...interface{}) {
	logg.Error(msg, args...)
}

// Warn logs if Current >= LevelWarn.
func Warn(msg string, args ...interface{}) {
	if Current >= LevelWarn {
		logg.Other("WARN", msg, args...)
	}
}

// Info logs if Current >= LevelInfo.
func Info(msg string, args ...interface{}) {
	if Current >= LevelInfo {
		logg.Info(msg, args...)
	}
}

// Debug logs if Current >= LevelDebug. It also sets logg.ShowDebug, since
// logg.Debug itself is gated on that flag independently of any level scheme
// layered on top of it.
func Debug(msg string, args ...interface{}) {
	if Current >= LevelDebug {
		logg.ShowDebug = true
		logg.Debug(msg, args...)
	}
}

// Fatal always logs and terminates the process, matching logg.Fatal.
func Fatal(msg string, args ...interface{}) {
	logg.Fatal(msg, args...)
}
