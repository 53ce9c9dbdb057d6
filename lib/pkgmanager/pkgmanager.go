// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Package pkgmanager implements the trust-check oracle the
// specification treats as an external collaborator (§1, §4.2): "is
// application X preloaded?" and "do apps X and Y share a signing
// certificate?". A real device answers these questions from the
// platform's package manager; this package defines the Oracle
// interface the broker's trust check depends on and provides a
// manifest-backed reference implementation plus a static
// implementation for tests.
package pkgmanager

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Oracle answers the two questions the trust check needs (§4.2 "Trust
// check"). CertificateFingerprint returns an error only when the
// application's identity cannot be resolved at all — a resolvable
// application with no certificate on file returns ("", nil), which
// the trust check treats as a mismatch against any other fingerprint
// (including another empty one), matching a device that never signs
// unsigned debug builds as trusted.
type Oracle interface {
	IsPreloaded(appID string) bool
	CertificateFingerprint(appID string) (string, error)
}

// StaticOracle is a fixed appID -> {preloaded, fingerprint} table,
// primarily for tests.
type StaticOracle struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// Entry is one application's trust-relevant attributes.
type Entry struct {
	Preloaded   bool
	Certificate string
}

// NewStaticOracle returns a StaticOracle seeded with the given
// entries. A nil map starts empty.
func NewStaticOracle(entries map[string]Entry) *StaticOracle {
	o := &StaticOracle{entries: make(map[string]Entry, len(entries))}
	for appID, entry := range entries {
		o.entries[appID] = entry
	}
	return o
}

// Set assigns entry as the trust attributes for appID.
func (o *StaticOracle) Set(appID string, entry Entry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries[appID] = entry
}

// IsPreloaded implements Oracle.
func (o *StaticOracle) IsPreloaded(appID string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.entries[appID].Preloaded
}

// CertificateFingerprint implements Oracle.
func (o *StaticOracle) CertificateFingerprint(appID string) (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	entry, ok := o.entries[appID]
	if !ok {
		return "", fmt.Errorf("pkgmanager: unknown application %q", appID)
	}
	return entry.Certificate, nil
}

// manifest is the on-disk YAML shape loaded by ManifestOracle.
type manifest struct {
	Applications map[string]struct {
		Preloaded   bool   `yaml:"preloaded"`
		Certificate string `yaml:"certificate"`
	} `yaml:"applications"`
}

// ManifestOracle reads its trust table from a YAML file — the
// device's installed-application manifest, in the shape a real
// package manager would expose over its own IPC surface. Loaded once
// at construction; the specification's non-goals exclude any
// persistence or reload machinery beyond what starting the daemon
// affords.
type ManifestOracle struct {
	entries map[string]Entry
}

// LoadManifestOracle reads and parses the manifest at path.
func LoadManifestOracle(path string) (*ManifestOracle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pkgmanager: reading manifest %s: %w", path, err)
	}

	var parsed manifest
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("pkgmanager: parsing manifest %s: %w", path, err)
	}

	entries := make(map[string]Entry, len(parsed.Applications))
	for appID, app := range parsed.Applications {
		entries[appID] = Entry{Preloaded: app.Preloaded, Certificate: app.Certificate}
	}
	return &ManifestOracle{entries: entries}, nil
}

// IsPreloaded implements Oracle.
func (o *ManifestOracle) IsPreloaded(appID string) bool {
	return o.entries[appID].Preloaded
}

// CertificateFingerprint implements Oracle.
func (o *ManifestOracle) CertificateFingerprint(appID string) (string, error) {
	entry, ok := o.entries[appID]
	if !ok {
		return "", fmt.Errorf("pkgmanager: unknown application %q", appID)
	}
	return entry.Certificate, nil
}

var (
	_ Oracle = (*StaticOracle)(nil)
	_ Oracle = (*ManifestOracle)(nil)
)
