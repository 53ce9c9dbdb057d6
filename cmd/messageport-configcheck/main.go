// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Messageport-configcheck loads and validates a messageportd config
// file without starting the daemon. It exists so a config change can
// be checked in CI or before a restart, the same way a package
// manager dry-runs a manifest before installing it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/lattice-forge/messageportd/lib/config"
	"github.com/lattice-forge/messageportd/lib/pkgmanager"
	"github.com/lattice-forge/messageportd/lib/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string
	var asJSON bool
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "path to config file (overrides MESSAGEPORTD_CONFIG)")
	flag.BoolVar(&asJSON, "json", false, "print the resolved configuration as JSON on success")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("messageport-configcheck %s\n", version.Info())
		return 0
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		return 2
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid config: %v\n", err)
		return 1
	}

	if cfg.PackageManager.ManifestPath != "" {
		if _, err := pkgmanager.LoadManifestOracle(cfg.PackageManager.ManifestPath); err != nil {
			fmt.Fprintf(os.Stderr, "error: loading package manager manifest: %v\n", err)
			return 1
		}
	}

	if asJSON {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: marshaling config: %v\n", err)
			return 2
		}
		fmt.Println(string(data))
	} else {
		fmt.Println("config OK")
	}
	return 0
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}
