// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for span packages.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets. This exists because Unix domain sockets have a
// 108-byte path limit (sun_path in sockaddr_un), and CI systems can
// set TMPDIR to deeply nested paths that exceed this limit, making
// t.TempDir() unsuitable for socket files. The directory is
// automatically removed when the test completes.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. A bridge
// test that would otherwise deadlock — a listener never receiving its
// event, a future never resolving — fails with a message instead of
// hanging the suite.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no span-internal dependencies.
package testutil
