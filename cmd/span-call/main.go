// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

// Span-call invokes a single command on a running span daemon and
// prints the result as JSON.
//
// Arguments are given as inline JSON or loaded from a file with
// @path; files may use JSONC (comments and trailing commas).
//
//	span-call ping
//	span-call counter.increment '{"by": 5}'
//	span-call task.run @args.jsonc
//
// Exit codes distinguish failure classes: 1 for connection and local
// errors, 2 for usage errors, and 3 through 7 for the dispatch error
// kinds (unknown command, argument error, handler error, internal
// error, cancelled).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/lattice-works/span/bridge"
	"github.com/lattice-works/span/dispatch"
	"github.com/lattice-works/span/lib/config"
	"github.com/lattice-works/span/lib/version"
	"github.com/lattice-works/span/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	var socketPath string
	var wsURL string
	var timeout time.Duration
	var showVersion bool

	pflag.StringVar(&socketPath, "socket", "", "daemon socket path (default from SPAN_CONFIG or config defaults)")
	pflag.StringVar(&wsURL, "url", "", "WebSocket endpoint, e.g. ws://127.0.0.1:7733/bridge (overrides --socket)")
	pflag.DurationVar(&timeout, "timeout", 30*time.Second, "overall call timeout")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("span-call %s\n", version.Info())
		return 0
	}

	arguments := pflag.Args()
	if len(arguments) < 1 || len(arguments) > 2 {
		fmt.Fprintln(os.Stderr, "usage: span-call [flags] <command> [json-args|@file]")
		return 2
	}
	command := arguments[0]

	args, err := parseArgs(arguments[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	if socketPath == "" && wsURL == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
			return 1
		}
		socketPath = cfg.Server.SocketPath
	}

	var dialer transport.Dialer
	if wsURL != "" {
		dialer = &transport.WebSocketDialer{URL: wsURL}
	} else {
		dialer = &transport.SocketDialer{SocketPath: socketPath}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	frontend, err := bridge.Dial(ctx, dialer, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer frontend.Close()

	result, err := frontend.Invoke(ctx, command, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitCode(err)
	}

	var value any
	if err := result.Decode(&value); err != nil {
		fmt.Fprintf(os.Stderr, "error: decoding result: %v\n", err)
		return 1
	}
	output, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: rendering result: %v\n", err)
		return 1
	}
	fmt.Println(string(output))
	return 0
}

// parseArgs turns the optional JSON argument into a map. A leading @
// names a file; file contents may use JSONC.
func parseArgs(rest []string) (map[string]any, error) {
	if len(rest) == 0 {
		return nil, nil
	}

	raw := []byte(rest[0])
	if strings.HasPrefix(rest[0], "@") {
		data, err := os.ReadFile(rest[0][1:])
		if err != nil {
			return nil, fmt.Errorf("reading args file: %w", err)
		}
		raw = jsonc.ToJSON(data)
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("parsing args: %w", err)
	}
	return args, nil
}

func exitCode(err error) int {
	var dispatchError *dispatch.Error
	if !errors.As(err, &dispatchError) {
		return 1
	}
	switch dispatchError.Kind {
	case dispatch.KindUnknownCommand:
		return 3
	case dispatch.KindArgumentError:
		return 4
	case dispatch.KindHandlerError:
		return 5
	case dispatch.KindInternalError:
		return 6
	case dispatch.KindCancelled:
		return 7
	default:
		return 1
	}
}
