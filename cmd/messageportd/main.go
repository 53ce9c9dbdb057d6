// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Messageportd is the per-device broker: it accepts request and
// reverse channel connections over a Unix domain socket, resolves
// each peer's application identity from its kernel credentials, and
// routes RegisterPort/CheckRemotePort/SendMessage traffic between
// applications' trusted and untrusted message ports.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lattice-forge/messageportd/broker"
	"github.com/lattice-forge/messageportd/lib/config"
	"github.com/lattice-forge/messageportd/lib/identity"
	"github.com/lattice-forge/messageportd/lib/pkgmanager"
	"github.com/lattice-forge/messageportd/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "path to config file (overrides MESSAGEPORTD_CONFIG)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("messageportd %s\n", version.Info())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureSocketDir(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	resolver, err := buildResolver(cfg)
	if err != nil {
		return fmt.Errorf("building identity resolver: %w", err)
	}
	trust, err := buildTrustOracle(cfg)
	if err != nil {
		return fmt.Errorf("building trust oracle: %w", err)
	}

	logger.Info("starting messageportd",
		"version", version.Info(),
		"socket_path", cfg.SocketPath,
		"admin_socket_path", cfg.AdminSocketPath,
	)

	b := broker.New(cfg.SocketPath, cfg.SocketMode, cfg.MaxPendingPerClient, resolver, trust, logger)
	b.SetMACLabel(cfg.MACLabel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 2)
	go func() {
		errs <- b.Serve(ctx)
	}()

	var admin *broker.AdminServer
	if cfg.AdminSocketPath != "" {
		admin = broker.NewAdminServer(cfg.AdminSocketPath, os.FileMode(cfg.SocketMode), b)
		go func() {
			if err := admin.Serve(); err != nil {
				errs <- fmt.Errorf("admin server: %w", err)
				return
			}
			errs <- nil
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errs:
		if err != nil {
			logger.Error("server exited unexpectedly", "error", err)
		}
		stop()
	}

	if admin != nil {
		if err := admin.Close(); err != nil {
			logger.Warn("closing admin server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// buildResolver selects a /proc-backed resolver when app roots are
// configured, falling back to an empty static resolver — a daemon
// with no identity source refuses every connection, which is the
// correct failure mode for a misconfigured device rather than a
// silent allow-all.
func buildResolver(cfg *config.Config) (identity.Resolver, error) {
	if len(cfg.Identity.AppRoots) == 0 {
		return identity.NewStaticResolver(nil), nil
	}
	return identity.NewProcFSResolver(cfg.Identity.AppRoots...), nil
}

// buildTrustOracle loads the package manager manifest when
// configured, falling back to an empty static oracle — every trusted
// send fails its trust check on a device with no manifest, per §4.2.
func buildTrustOracle(cfg *config.Config) (pkgmanager.Oracle, error) {
	if cfg.PackageManager.ManifestPath == "" {
		return pkgmanager.NewStaticOracle(nil), nil
	}
	oracle, err := pkgmanager.LoadManifestOracle(cfg.PackageManager.ManifestPath)
	if err != nil {
		return nil, err
	}
	return oracle, nil
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

