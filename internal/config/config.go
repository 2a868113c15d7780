// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package config defines the Artifact Graph Engine's configuration record
// and its validation, using regexpext's unanchored PlainRegexp for the tag
// filters. Environment-variable defaults are applied by cmd/ghcr-prune.
package config

import (
	"fmt"

	"github.com/sapcc/go-bits/regexpext"
)

// OwnerType distinguishes the two GitHub Packages API shapes this tool must
// pick between before the first request.
type OwnerType string

const (
	OwnerTypeUser OwnerType = "user"
	OwnerTypeOrg  OwnerType = "organization"
)

// Config is the full set of operator-declared selection rules plus the
// identifying coordinates of the package repository to prune. Pointer fields
// distinguish "unset" from the zero value, which matters for KeepNTagged and
// KeepNUntagged: 0 is a real, distinct configuration ("keep none") from nil
// ("keep all", i.e. this knob does not apply).
type Config struct {
	Token      string
	Owner      string
	OwnerType  OwnerType
	Repository string
	Package    string

	IncludeTags *regexpext.PlainRegexp
	ExcludeTags *regexpext.PlainRegexp

	KeepNTagged   *int
	KeepNUntagged *int

	DryRun   bool
	LogLevel string
}

var validLogLevels = map[string]bool{
	"error": true,
	"warn":  true,
	"info":  true,
	"debug": true,
}

// Validate fails closed: a malformed regex, a negative keep-n value, an
// unrecognized log level, or a missing required token are all rejected
// before any network call is made. It takes a pointer receiver because it
// also fills in the LogLevel default.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("token is required")
	}
	if c.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if c.Package == "" {
		return fmt.Errorf("package is required")
	}
	if c.OwnerType != OwnerTypeUser && c.OwnerType != OwnerTypeOrg {
		return fmt.Errorf("owner-type must be %q or %q, got %q", OwnerTypeUser, OwnerTypeOrg, c.OwnerType)
	}

	if c.IncludeTags != nil {
		if _, err := c.IncludeTags.Regexp(); err != nil {
			return fmt.Errorf("include-tags: %w", err)
		}
	}
	if c.ExcludeTags != nil {
		if _, err := c.ExcludeTags.Regexp(); err != nil {
			return fmt.Errorf("exclude-tags: %w", err)
		}
	}
	if c.KeepNTagged != nil && *c.KeepNTagged < 0 {
		return fmt.Errorf("keep-n-tagged must be non-negative, got %d", *c.KeepNTagged)
	}
	if c.KeepNUntagged != nil && *c.KeepNUntagged < 0 {
		return fmt.Errorf("keep-n-untagged must be non-negative, got %d", *c.KeepNUntagged)
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("log-level must be one of error|warn|info|debug, got %q", c.LogLevel)
	}

	return nil
}
