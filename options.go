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

package faststart

import "github.com/mycophonic/faststart/internal/remux"

const (
	// DefaultMoovCapBytes bounds how much of moov is held in memory at
	// once (spec.md §5: "configurable cap (default 512 MiB)").
	DefaultMoovCapBytes = 512 * 1024 * 1024

	// DefaultChunkSize is the suggested copy granularity for mdat and
	// other large boxes (spec.md §4.4).
	DefaultChunkSize = remux.DefaultChunkSize
)

// Options configures one Optimize invocation. DefaultOptions returns the
// package defaults; Optimize also replaces any zero or negative
// MoovCapBytes or ChunkSize with its default, so the zero value works too.
type Options struct {
	// MoovCapBytes refuses inputs whose moov payload exceeds this size
	// with ErrMoovTooLarge, rather than risking an oversized allocation.
	MoovCapBytes int64

	// ChunkSize is the copy granularity used when streaming mdat and
	// other large boxes to the output sink.
	ChunkSize int

	// AllowStco32Overflow is not read by Optimize: whatever its value, an
	// stco overflow fails with ErrOffsetOverflow rather than clamping
	// (spec.md §9).
	// The field exists so that a future fixed-point co64-promotion pass
	// (rewrite the overflowing stco as co64, regrow moov, recompute the
	// delta, repeat until it converges — typically two iterations) has a
	// place to attach its opt-in without changing Optimize's signature.
	AllowStco32Overflow bool
}

// DefaultOptions returns an Options value with the spec's default cap
// and chunk size.
func DefaultOptions() Options {
	return Options{
		MoovCapBytes: DefaultMoovCapBytes,
		ChunkSize:    DefaultChunkSize,
	}
}

// withDefaults fills any zero-valued field of opts with the package
// default, so callers that construct Options{} by hand (or only set one
// field) still get sane behavior.
func (o Options) withDefaults() Options {
	if o.MoovCapBytes <= 0 {
		o.MoovCapBytes = DefaultMoovCapBytes
	}

	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}

	return o
}
