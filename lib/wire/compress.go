// Copyright 2026 The Span Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/lattice-works/span/lib/codec"
)

// DefaultCompressThreshold is the payload size at which event frames
// switch to LZ4 block compression. Progress events carrying bulk data
// (file listings, partial transcripts) benefit; small payloads do not
// repay the CPU.
const DefaultCompressThreshold = 4096

// EncodeEventPayload marshals value and compresses the bytes when they
// meet threshold. Returns the payload for [Frame.Payload] and the raw
// size for [Frame.RawSize] (zero when the payload travels
// uncompressed). A threshold <= 0 disables compression.
func EncodeEventPayload(value any, threshold int) ([]byte, int, error) {
	data, err := codec.Marshal(value)
	if err != nil {
		return nil, 0, fmt.Errorf("encoding event payload: %w", err)
	}
	if threshold <= 0 || len(data) < threshold {
		return data, 0, nil
	}

	bound := lz4.CompressBlockBound(len(data))
	destination := make([]byte, bound)
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("lz4 compress: %w", err)
	}

	// CompressBlock returns 0 when it determines the data is
	// incompressible. Also skip compression when the output would not
	// actually be smaller.
	if written == 0 || written >= len(data) {
		return data, 0, nil
	}
	return destination[:written], len(data), nil
}

// DecodeEventPayload reverses [EncodeEventPayload], returning the raw
// encoded payload ready for codec.Unmarshal. rawSize of zero means the
// payload is not compressed; otherwise the decompressed length must
// match it exactly.
func DecodeEventPayload(payload []byte, rawSize int) (codec.RawMessage, error) {
	if rawSize == 0 {
		return codec.RawMessage(payload), nil
	}
	destination := make([]byte, rawSize)
	read, err := lz4.UncompressBlock(payload, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != rawSize {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, rawSize)
	}
	return codec.RawMessage(destination), nil
}
