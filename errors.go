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

import "errors"

// Public sentinel errors for consumer error matching with errors.Is.
// An error returned by Optimize or IsOptimized wraps one of these together
// with the internal package error that diagnosed the failure, where there
// is one, so matching on the internal cause is also possible for callers
// that import this module's source.
//
//revive:disable:exported
var (
	// ErrMissingBox indicates the input lacks a required moov or mdat box.
	ErrMissingBox = errors.New("faststart: required box (moov or mdat) not found")

	// ErrMoovTooLarge indicates moov's payload exceeds Options.MoovCapBytes.
	ErrMoovTooLarge = errors.New("faststart: moov payload exceeds configured size cap")

	// ErrOffsetOverflow indicates a 32-bit stco entry would not fit after
	// the shift; the source never silently clamps, per design (spec.md §9).
	ErrOffsetOverflow = errors.New("faststart: chunk offset overflow after relocation")

	// ErrOffsetUnderflow indicates a co64 chunk-offset entry would go
	// negative. A negative stco result is reported as ErrOffsetOverflow.
	ErrOffsetUnderflow = errors.New("faststart: chunk offset underflow after relocation")

	// ErrMalformed indicates the box structure could not be parsed.
	ErrMalformed = errors.New("faststart: malformed MP4 box structure")

	// ErrCancelled indicates the caller's context was cancelled mid-write.
	ErrCancelled = errors.New("faststart: optimization cancelled")
)
