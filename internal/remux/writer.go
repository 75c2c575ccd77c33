/*
   Copyright Mycophonic.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package remux streams a fast-start Plan to an output sink: ftyp (if
// present), a freshly headered moov carrying the fixed-up payload, then
// every remaining top-level box copied verbatim in fixed-size chunks so
// memory use is bounded regardless of mdat's size.
package remux

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mycophonic/faststart/internal/layout"
)

// DefaultChunkSize is the suggested copy granularity for large boxes
// (notably mdat), bounding memory use independent of file size.
const DefaultChunkSize = 64 * 1024

// Source is the random-access input the writer copies verbatim ranges
// from. *os.File and similar seekable handles satisfy it via ReadAt.
type Source interface {
	io.ReaderAt
}

// ProgressFunc is invoked after every chunk and every whole-box copy with
// bytes_written / input_total_bytes, clamped to [0, 1]. It is called with
// a monotonically non-decreasing fraction.
type ProgressFunc func(fraction float32)

// Write streams plan to sink. fixedMoovPayload is the moov payload after
// stco/co64 fixup; its length may differ from plan.Moov.PayloadLen only
// if the caller grew it to promote 32-bit entries (not currently done —
// see the Options.AllowStco32Overflow comment in the root package).
//
// ctx is polled between chunk writes and between top-level box
// emissions; a cancelled context aborts with ctx.Err() and no further
// bytes are written after that point.
func Write(
	ctx context.Context,
	src Source,
	sink io.Writer,
	plan *layout.Plan,
	fixedMoovPayload []byte,
	inputTotalBytes int64,
	chunkSize int,
	onProgress ProgressFunc,
) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var written int64

	report := func() {
		if onProgress == nil {
			return
		}

		fraction := float32(1)
		if inputTotalBytes > 0 {
			fraction = float32(float64(written) / float64(inputTotalBytes))
		}

		if fraction < 0 {
			fraction = 0
		}

		if fraction > 1 {
			fraction = 1
		}

		onProgress(fraction)
	}

	if plan.Ftyp != nil {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := copyRange(ctx, src, sink, plan.Ftyp.HeaderOffset, plan.Ftyp.TotalLen(), chunkSize, &written, report); err != nil {
			return err
		}

		report()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := writeMoov(sink, plan.NewMoovHeaderLen, fixedMoovPayload, &written); err != nil {
		return err
	}

	report()

	for i := range plan.Remaining {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec := plan.Remaining[i]
		if err := copyRange(ctx, src, sink, rec.HeaderOffset, rec.TotalLen(), chunkSize, &written, report); err != nil {
			return err
		}

		report()
	}

	return nil
}

// writeMoov emits a fresh moov header (8 or 16 bytes) followed by the
// fixed-up payload.
func writeMoov(sink io.Writer, headerLen int64, payload []byte, written *int64) error {
	total := headerLen + int64(len(payload))

	var header []byte

	switch headerLen {
	case 16:
		header = make([]byte, 16)
		binary.BigEndian.PutUint32(header[0:4], 1)
		copy(header[4:8], "moov")
		binary.BigEndian.PutUint64(header[8:16], uint64(total))
	default:
		header = make([]byte, 8)
		binary.BigEndian.PutUint32(header[0:4], uint32(total))
		copy(header[4:8], "moov")
	}

	if _, err := sink.Write(header); err != nil {
		return fmt.Errorf("writing moov header: %w", err)
	}

	*written += int64(len(header))

	if _, err := sink.Write(payload); err != nil {
		return fmt.Errorf("writing moov payload: %w", err)
	}

	*written += int64(len(payload))

	return nil
}

// copyRange streams length bytes starting at offset from src to sink in
// chunkSize pieces, polling ctx between chunks and calling onChunk (if
// non-nil) after each chunk is written.
func copyRange(ctx context.Context, src Source, sink io.Writer, offset, length int64, chunkSize int, written *int64, onChunk func()) error {
	buf := make([]byte, chunkSize)

	remaining := length
	pos := offset

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := int64(chunkSize)
		if remaining < n {
			n = remaining
		}

		if _, err := src.ReadAt(buf[:n], pos); err != nil {
			return fmt.Errorf("reading %d bytes at %d: %w", n, pos, err)
		}

		if _, err := sink.Write(buf[:n]); err != nil {
			return fmt.Errorf("writing %d bytes: %w", n, err)
		}

		pos += n
		remaining -= n
		*written += n

		if onChunk != nil {
			onChunk()
		}
	}

	return nil
}

// RawCopy performs a byte-for-byte copy of the entire input to sink, used
// on the idempotent fast path when moov already precedes mdat.
func RawCopy(ctx context.Context, src Source, sink io.Writer, totalBytes int64, chunkSize int, onProgress ProgressFunc) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var written int64

	buf := make([]byte, chunkSize)

	pos := int64(0)
	for pos < totalBytes {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := int64(chunkSize)
		if totalBytes-pos < n {
			n = totalBytes - pos
		}

		if _, err := src.ReadAt(buf[:n], pos); err != nil {
			return fmt.Errorf("reading %d bytes at %d: %w", n, pos, err)
		}

		if _, err := sink.Write(buf[:n]); err != nil {
			return fmt.Errorf("writing %d bytes: %w", n, err)
		}

		pos += n
		written += n

		if onProgress != nil {
			fraction := float32(float64(written) / float64(totalBytes))
			if fraction > 1 {
				fraction = 1
			}

			onProgress(fraction)
		}
	}

	if onProgress != nil {
		onProgress(1)
	}

	return nil
}

