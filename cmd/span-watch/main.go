// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

// Span-watch subscribes to named events on a running span daemon and
// streams them to the terminal.
//
//	span-watch task-progress
//	span-watch --url ws://127.0.0.1:7733/bridge task-progress state-changed
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/lattice-works/span/bridge"
	"github.com/lattice-works/span/lib/codec"
	"github.com/lattice-works/span/lib/config"
	"github.com/lattice-works/span/lib/version"
	"github.com/lattice-works/span/transport"
)

var (
	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	eventStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Bold(true)
	payloadStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func run() error {
	var socketPath string
	var wsURL string
	var showVersion bool

	pflag.StringVar(&socketPath, "socket", "", "daemon socket path (default from SPAN_CONFIG or config defaults)")
	pflag.StringVar(&wsURL, "url", "", "WebSocket endpoint, e.g. ws://127.0.0.1:7733/bridge (overrides --socket)")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("span-watch %s\n", version.Info())
		return nil
	}

	eventNames := pflag.Args()
	if len(eventNames) == 0 {
		return fmt.Errorf("usage: span-watch [flags] <event> [event...]")
	}

	if socketPath == "" && wsURL == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		socketPath = cfg.Server.SocketPath
	}

	var dialer transport.Dialer
	if wsURL != "" {
		dialer = &transport.WebSocketDialer{URL: wsURL}
	} else {
		dialer = &transport.SocketDialer{SocketPath: socketPath}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	frontend, err := bridge.Dial(ctx, dialer, nil)
	if err != nil {
		return err
	}
	defer frontend.Close()

	type delivery struct {
		event   string
		payload codec.RawMessage
	}
	deliveries := make(chan delivery, 64)

	for _, eventName := range eventNames {
		name := eventName
		cancel, err := frontend.On(name, func(payload codec.RawMessage) {
			select {
			case deliveries <- delivery{event: name, payload: payload}:
			default:
				// Terminal can't keep up; drop rather than stall the
				// connection's read loop.
			}
		})
		if err != nil {
			return fmt.Errorf("subscribing to %q: %w", name, err)
		}
		defer cancel()
	}

	fmt.Fprintln(os.Stderr, timestampStyle.Render(
		fmt.Sprintf("watching %d event(s); Ctrl-C to stop", len(eventNames))))

	for {
		select {
		case <-ctx.Done():
			return nil
		case received := <-deliveries:
			printEvent(received.event, received.payload)
		}
	}
}

func printEvent(event string, payload codec.RawMessage) {
	var value any
	rendered := ""
	if err := codec.Unmarshal(payload, &value); err != nil {
		rendered = errorStyle.Render(fmt.Sprintf("<undecodable: %v>", err))
	} else if value != nil {
		data, err := json.Marshal(value)
		if err != nil {
			rendered = errorStyle.Render(fmt.Sprintf("<unrenderable: %v>", err))
		} else {
			rendered = payloadStyle.Render(string(data))
		}
	}

	fmt.Printf("%s %s %s\n",
		timestampStyle.Render(time.Now().Format("15:04:05.000")),
		eventStyle.Render(event),
		rendered)
}
