// Copyright 2026 The messageportd Authors
// SPDX-License-Identifier: Apache-2.0

// Messageport-probe is a smoke-test client for messageportd: it opens
// a proxy connection under a chosen application identity, registers a
// single port, and either sends one message and exits or waits to
// print whatever arrives on the port it registered. It exists to
// exercise the wire protocol from the command line without writing a
// throwaway Go program for every manual test.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/lattice-forge/messageportd/bundle"
	"github.com/lattice-forge/messageportd/lib/pkgmanager"
	"github.com/lattice-forge/messageportd/lib/singleton"
	"github.com/lattice-forge/messageportd/lib/version"
	"github.com/lattice-forge/messageportd/proxyclient"
)

// proxyOnce holds the single proxyclient.Proxy this process opens.
// Every subcommand shares it rather than dialing the broker twice.
// proxyclient.Proxy is not a singleton on its own; singleton.Once[T]
// makes the process-wide instance explicit here.
var proxyOnce singleton.Once[*proxyclient.Proxy]

func main() {
	os.Exit(run())
}

func run() int {
	var (
		socketPath  string
		appID       string
		portName    string
		trusted     bool
		sendTo      string
		sendPort    string
		payloadJSON string
		listen      bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("messageport-probe", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", "/run/messageportd/message-port-server", "broker socket path")
	flagSet.StringVar(&appID, "app-id", "", "application identity to present (required)")
	flagSet.StringVar(&portName, "port", "probe", "local port name to register")
	flagSet.BoolVar(&trusted, "trusted", false, "register and send in the trusted namespace")
	flagSet.StringVar(&sendTo, "send-to", "", "destination application ID; sends one message and exits")
	flagSet.StringVar(&sendPort, "send-port", "", "destination port name (with --send-to)")
	flagSet.StringVar(&payloadJSON, "payload", "{}", "JSON object to send as the message payload")
	flagSet.BoolVar(&listen, "listen", false, "register the port and print received messages until interrupted")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if showVersion {
		fmt.Printf("messageport-probe %s\n", version.Info())
		return 0
	}
	if appID == "" {
		fmt.Fprintln(os.Stderr, "error: --app-id is required")
		return 1
	}
	if !listen && sendTo == "" {
		fmt.Fprintln(os.Stderr, "error: one of --listen or --send-to is required")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proxy, err := proxyOnce.Get(func() (*proxyclient.Proxy, error) {
		return proxyclient.Open(ctx, socketPath, appID, pkgmanager.NewStaticOracle(nil))
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: connecting to broker: %v\n", err)
		return 1
	}
	defer proxy.Close()

	if _, err := proxy.RegisterMessagePort(portName, trusted, func(_ int32, localAppID, localPort string, trustedLocal bool, payload bundle.Bundle) {
		printDelivery(localAppID, localPort, trustedLocal, payload)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "error: registering port %q: %v\n", portName, err)
		return 1
	}

	if sendTo != "" {
		if sendPort == "" {
			fmt.Fprintln(os.Stderr, "error: --send-port is required with --send-to")
			return 1
		}
		var payload bundle.Bundle
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			fmt.Fprintf(os.Stderr, "error: parsing --payload: %v\n", err)
			return 1
		}
		if err := proxy.SendMessageBidirectional(portName, trusted, sendTo, sendPort, trusted, payload); err != nil {
			fmt.Fprintf(os.Stderr, "error: sending message: %v\n", err)
			return 1
		}
		fmt.Printf("sent to %s/%s\n", sendTo, sendPort)
		if !listen {
			return 0
		}
	}

	fmt.Printf("listening on %s (trusted=%v) as %s, press Ctrl-C to exit\n", portName, trusted, appID)
	<-ctx.Done()
	return 0
}

func printDelivery(localAppID, localPort string, trustedLocal bool, payload bundle.Bundle) {
	record := struct {
		ReceivedAt   string         `json:"received_at"`
		LocalAppID   string         `json:"local_app_id,omitempty"`
		LocalPort    string         `json:"local_port,omitempty"`
		TrustedLocal bool           `json:"trusted_local,omitempty"`
		Payload      bundle.Bundle  `json:"payload"`
	}{
		ReceivedAt:   time.Now().UTC().Format(time.RFC3339Nano),
		LocalAppID:   localAppID,
		LocalPort:    localPort,
		TrustedLocal: trustedLocal,
		Payload:      payload,
	}
	data, err := json.Marshal(record)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: marshaling delivery: %v\n", err)
		return
	}
	fmt.Println(string(data))
}
