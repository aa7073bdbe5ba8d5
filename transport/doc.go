// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries wire frames between the frontend and
// backend execution contexts.
//
// The package defines three interfaces: [Conn] is one established
// frame channel (Send, Receive, Close), [Listener] accepts inbound
// connections on the backend side, and [Dialer] establishes outbound
// connections from the frontend side. The bridge packages speak only
// these interfaces; which boundary actually separates the two contexts
// is a transport concern.
//
// Three implementations ship:
//
//   - [SocketListener]/[SocketDialer]: a Unix domain socket carrying a
//     CBOR stream. CBOR values are self-delimiting, so the stream
//     needs no framing protocol. The default for a native backend
//     process and a desktop shell on the same host.
//   - [WebSocketListener]/[WebSocketDialer]: gorilla/websocket binary
//     messages, one CBOR frame per message. For webview or browser
//     frontends that cannot open Unix sockets.
//   - [Pipe]: an in-memory pair for tests and same-process embedding.
//
// Send is safe for concurrent use; Receive must have a single reader.
// Closing a listener unblocks its pending Accept.
package transport
