// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for messageportd
// components.
//
// Configuration is loaded from a single file specified by either the
// MESSAGEPORTD_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no discovery, and no
// automatic file search.
//
// Variable expansion is performed on path fields after loading:
// ${VAR} and ${VAR:-default} patterns are expanded against the
// process environment. No environment variable overrides a config
// value that is already set in the file.
//
// Key exports:
//
//   - [Config] -- master struct: socket, identity, package manager
//   - [Default] -- returns a Config with sensible zero-values
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other messageportd packages.
package config
