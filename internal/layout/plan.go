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

// Package layout decides the fast-start output layout from a scanned box
// list: ftyp (if present), a freshly headered moov, then every other
// top-level box in original order — and computes the signed delta that
// must be applied to every chunk-offset entry inside moov as a result.
package layout

import "github.com/mycophonic/faststart/internal/box"

const (
	smallMoovHeaderLen = 8
	largeMoovHeaderLen = 16
	maxUint32Size      = 0xffffffff
)

var (
	typeFtyp = [4]byte{'f', 't', 'y', 'p'}
	typeMoov = [4]byte{'m', 'o', 'o', 'v'}
	typeMdat = [4]byte{'m', 'd', 'a', 't'}
)

// Plan is the decided output layout: ftyp (if present) then a rewritten
// moov then every remaining top-level box, copied verbatim, in original
// scan order. Remaining includes the original mdat at its natural
// position relative to any other box sandwiched between moov and mdat.
type Plan struct {
	Ftyp      *box.Record
	Moov      box.Record
	Mdat      box.Record
	Remaining []box.Record

	// MdatDelta is new_mdat_header_offset - old_mdat_header_offset; the
	// value added to every stco/co64 entry by the fixup engine.
	MdatDelta int64

	// NewMoovHeaderLen is 8 or 16: the header width of the rewritten moov,
	// widened to 16 when its payload no longer fits an 8-byte size field.
	NewMoovHeaderLen int64
}

// Build decides the Plan from an ordered top-level box scan. It fails
// with ErrMissingMoov or ErrMissingMdat if either is absent. Only the
// first occurrence of ftyp and of moov is special-cased; a second moov
// (or ftyp) is left in Remaining and copied as any other box — the
// scanner's ordered list is authoritative, not a type-keyed index.
func Build(records []box.Record) (*Plan, error) {
	var ftyp *box.Record

	var moov *box.Record

	ftypTaken := false
	moovTaken := false

	remaining := make([]box.Record, 0, len(records))

	for i := range records {
		rec := records[i]

		switch {
		case !ftypTaken && rec.Type == typeFtyp:
			ftyp = &records[i]
			ftypTaken = true
		case !moovTaken && rec.Type == typeMoov:
			moov = &records[i]
			moovTaken = true
		default:
			remaining = append(remaining, rec)
		}
	}

	if moov == nil {
		return nil, ErrMissingMoov
	}

	mdatIdx := -1

	for i, rec := range remaining {
		if rec.Type == typeMdat {
			mdatIdx = i

			break
		}
	}

	if mdatIdx == -1 {
		return nil, ErrMissingMdat
	}

	plan := &Plan{
		Ftyp:      ftyp,
		Moov:      *moov,
		Mdat:      remaining[mdatIdx],
		Remaining: remaining,
	}

	if moov.PayloadLen+smallMoovHeaderLen > maxUint32Size {
		plan.NewMoovHeaderLen = largeMoovHeaderLen
	} else {
		plan.NewMoovHeaderLen = smallMoovHeaderLen
	}

	var ftypLen int64
	if ftyp != nil {
		ftypLen = ftyp.TotalLen()
	}

	newMoovLen := plan.NewMoovHeaderLen + moov.PayloadLen
	runningOffset := ftypLen + newMoovLen

	for i, rec := range remaining {
		if i == mdatIdx {
			plan.MdatDelta = runningOffset - rec.HeaderOffset
		}

		runningOffset += rec.TotalLen()
	}

	return plan, nil
}
