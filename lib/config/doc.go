// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the carbon relay.
//
// A relay runs from four positional arguments alone; everything here
// has a default that reproduces that behavior. A configuration file,
// named with --config, overrides the defaults. Command-line flags
// override the file, and the positional arguments override
// everything for the listen port and the destination host, port, and
// database.
//
// Files ending in .json or .jsonc are read as JSON with comments and
// trailing commas. Anything else is read as YAML. Both go through the
// same yaml struct tags, and unknown keys are rejected so a typo does
// not silently fall back to a default.
//
// ${VAR} and ${VAR:-default} patterns in the destination credentials
// and in file paths are expanded from the environment after loading,
// so a password can live in the environment rather than in the file.
//
// Key exports:
//
//   - [Config] -- the relay's settings
//   - [Default] -- a Config matching the bare four-argument relay
//   - [LoadFile] -- Default overlaid with a file
//   - [Config.Validate] -- checks a fully merged Config
package config
