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

package layout_test

import (
	"errors"
	"testing"

	"github.com/mycophonic/faststart/internal/box"
	"github.com/mycophonic/faststart/internal/layout"
	"github.com/mycophonic/faststart/internal/mp4test"
)

func TestBuildSimpleRelocation(t *testing.T) {
	t.Parallel()

	ftyp := mp4test.Ftyp("isom")
	mdat := mp4test.Mdat(make([]byte, 10000))
	moovPayload := mp4test.SampleTableWithStco([]uint32{32, 1032, 2032})
	moov := mp4test.Box("moov", moovPayload)

	data := mp4test.Concat(ftyp, mdat, moov)
	src := mp4test.BytesSource(data)

	records, err := box.Scan(src, src.Size())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	plan, err := layout.Build(records)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if plan.Ftyp == nil {
		t.Fatal("expected Ftyp to be set")
	}

	if plan.NewMoovHeaderLen != 8 {
		t.Errorf("NewMoovHeaderLen = %d, want 8", plan.NewMoovHeaderLen)
	}

	wantDelta := int64(8 + len(moovPayload))
	if plan.MdatDelta != wantDelta {
		t.Errorf("MdatDelta = %d, want %d", plan.MdatDelta, wantDelta)
	}

	if len(plan.Remaining) != 1 || plan.Remaining[0].TypeString() != "mdat" {
		t.Fatalf("Remaining = %+v, want single mdat", plan.Remaining)
	}
}

func TestBuildMissingMdatFails(t *testing.T) {
	t.Parallel()

	ftyp := mp4test.Ftyp("isom")
	moov := mp4test.Box("moov", mp4test.SampleTableWithStco([]uint32{32}))

	data := mp4test.Concat(ftyp, moov)
	src := mp4test.BytesSource(data)

	records, err := box.Scan(src, src.Size())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	_, err = layout.Build(records)
	if !errors.Is(err, layout.ErrMissingMdat) {
		t.Fatalf("got %v, want ErrMissingMdat", err)
	}
}

func TestBuildMissingMoovFails(t *testing.T) {
	t.Parallel()

	ftyp := mp4test.Ftyp("isom")
	mdat := mp4test.Mdat([]byte("samples"))

	data := mp4test.Concat(ftyp, mdat)
	src := mp4test.BytesSource(data)

	records, err := box.Scan(src, src.Size())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	_, err = layout.Build(records)
	if !errors.Is(err, layout.ErrMissingMoov) {
		t.Fatalf("got %v, want ErrMissingMoov", err)
	}
}

func TestBuildDuplicateMoovKeepsFirstOnly(t *testing.T) {
	t.Parallel()

	ftyp := mp4test.Ftyp("isom")
	firstMoov := mp4test.Box("moov", mp4test.SampleTableWithStco([]uint32{32}))
	secondMoov := mp4test.Box("moov", []byte("second-moov-is-left-as-is"))
	mdat := mp4test.Mdat([]byte("samples"))

	data := mp4test.Concat(ftyp, firstMoov, secondMoov, mdat)
	src := mp4test.BytesSource(data)

	records, err := box.Scan(src, src.Size())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	plan, err := layout.Build(records)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(plan.Remaining) != 2 {
		t.Fatalf("Remaining = %d boxes, want 2 (second moov + mdat)", len(plan.Remaining))
	}

	if plan.Remaining[0].TypeString() != "moov" {
		t.Errorf("Remaining[0] = %s, want moov", plan.Remaining[0].TypeString())
	}

	if plan.Remaining[1].TypeString() != "mdat" {
		t.Errorf("Remaining[1] = %s, want mdat", plan.Remaining[1].TypeString())
	}
}

func TestBuildLargeMoovNeeds64BitHeader(t *testing.T) {
	t.Parallel()

	// A synthetic moov.Record whose declared payload length would cross
	// the 32-bit size boundary; constructed directly rather than via a
	// multi-gigabyte in-memory fixture.
	records := []box.Record{
		{Type: [4]byte{'f', 't', 'y', 'p'}, HeaderOffset: 0, HeaderLen: 8, PayloadLen: 16},
		{Type: [4]byte{'m', 'o', 'o', 'v'}, HeaderOffset: 24, HeaderLen: 8, PayloadLen: 0xffffffff},
		{Type: [4]byte{'m', 'd', 'a', 't'}, HeaderOffset: 0xffffffff + 32, HeaderLen: 8, PayloadLen: 100},
	}

	plan, err := layout.Build(records)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if plan.NewMoovHeaderLen != 16 {
		t.Errorf("NewMoovHeaderLen = %d, want 16", plan.NewMoovHeaderLen)
	}
}
