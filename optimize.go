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

// Package faststart rewrites an MP4/MOV file so that its moov box
// precedes mdat, fixing up every absolute chunk-offset table (stco/co64)
// so sample addresses stay correct after the relocation.
package faststart

import (
	"context"
	"errors"
	"fmt"

	"github.com/mycophonic/faststart/internal/box"
	"github.com/mycophonic/faststart/internal/layout"
	"github.com/mycophonic/faststart/internal/moovfix"
	"github.com/mycophonic/faststart/internal/remux"
)

var (
	typeMoov = [4]byte{'m', 'o', 'o', 'v'}
	typeMdat = [4]byte{'m', 'd', 'a', 't'}
)

// Optimize rewrites src into sink as a fast-start MP4: ftyp (if present),
// a freshly-headered moov with every stco/co64 entry shifted, then every
// remaining top-level box verbatim. If src is already fast-start (moov
// precedes mdat), Optimize performs a raw byte-for-byte copy instead and
// never touches moov.
//
// listener receives a monotonically non-decreasing sequence of
// OnProgress calls followed by exactly one of OnSuccess or OnError.
// listener may be nil, in which case progress is simply discarded.
func Optimize(ctx context.Context, src Source, sink Sink, opts Options, listener ProgressListener) error {
	if listener == nil {
		listener = NoopListener{}
	}

	opts = opts.withDefaults()

	err := optimize(ctx, src, sink, opts, listener)
	if err != nil {
		listener.OnError(err)

		return err
	}

	listener.OnSuccess(sinkName(sink))

	return nil
}

// namedSink is implemented by sinks that know their own destination path,
// such as *os.File. Sinks that don't (an in-memory buffer, a network
// stream) simply report an empty name.
type namedSink interface {
	Name() string
}

func sinkName(sink Sink) string {
	if named, ok := sink.(namedSink); ok {
		return named.Name()
	}

	return ""
}

func optimize(ctx context.Context, src Source, sink Sink, opts Options, listener ProgressListener) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	total := src.Size()

	records, err := box.Scan(src, total)
	if err != nil {
		return translateScanError(err)
	}

	onProgress := func(fraction float32) {
		listener.OnProgress(fraction)
	}

	if optimized, _, _ := firstMoovBeforeMdat(records); optimized {
		if err := remux.RawCopy(ctx, src, sink, total, opts.ChunkSize, onProgress); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", ErrCancelled, err)
			}

			return err
		}

		return nil
	}

	plan, err := layout.Build(records)
	if err != nil {
		return translateLayoutError(err)
	}

	if plan.Moov.PayloadLen > opts.MoovCapBytes {
		return fmt.Errorf("%w: moov payload %d bytes exceeds cap %d", ErrMoovTooLarge, plan.Moov.PayloadLen, opts.MoovCapBytes)
	}

	moovPayload := make([]byte, plan.Moov.PayloadLen)
	if _, err := src.ReadAt(moovPayload, plan.Moov.PayloadOffset); err != nil {
		return fmt.Errorf("%w: reading moov payload: %w", ErrMalformed, err)
	}

	if err := moovfix.Fixup(moovPayload, plan.MdatDelta); err != nil {
		return translateFixupError(err)
	}

	if err := remux.Write(ctx, src, sink, plan, moovPayload, total, opts.ChunkSize, onProgress); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		return err
	}

	return nil
}

// IsOptimized reports whether src already has moov positioned before
// mdat, without performing any rewrite.
func IsOptimized(src Source) (bool, error) {
	records, err := box.Scan(src, src.Size())
	if err != nil {
		return false, translateScanError(err)
	}

	optimized, _, _ := firstMoovBeforeMdat(records)

	return optimized, nil
}

// firstMoovBeforeMdat reports whether the first moov in records precedes
// the first mdat, along with both records for callers that want them.
// Absence of either box is reported as "not optimized" so the caller
// falls through to the planner, which produces the correct MissingBox
// error.
func firstMoovBeforeMdat(records []box.Record) (ok bool, moov, mdat box.Record) {
	var (
		moovFound, mdatFound bool
	)

	for _, rec := range records {
		if !moovFound && rec.Type == typeMoov {
			moov = rec
			moovFound = true
		}

		if !mdatFound && rec.Type == typeMdat {
			mdat = rec
			mdatFound = true
		}

		if moovFound && mdatFound {
			break
		}
	}

	if !moovFound || !mdatFound {
		return false, moov, mdat
	}

	return moov.HeaderOffset < mdat.HeaderOffset, moov, mdat
}

func translateScanError(err error) error {
	if errors.Is(err, box.ErrTruncatedBox) || errors.Is(err, box.ErrInvalidBoxSize) {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return err
}

func translateLayoutError(err error) error {
	if errors.Is(err, layout.ErrMissingMoov) || errors.Is(err, layout.ErrMissingMdat) {
		return fmt.Errorf("%w: %w", ErrMissingBox, err)
	}

	return err
}

func translateFixupError(err error) error {
	switch {
	case errors.Is(err, moovfix.ErrOffsetOverflow):
		return fmt.Errorf("%w: %w", ErrOffsetOverflow, err)
	case errors.Is(err, moovfix.ErrOffsetUnderflow):
		return fmt.Errorf("%w: %w", ErrOffsetUnderflow, err)
	case errors.Is(err, moovfix.ErrMalformedMoov):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	default:
		return err
	}
}
