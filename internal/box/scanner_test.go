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

package box_test

import (
	"errors"
	"testing"

	"github.com/mycophonic/faststart/internal/box"
	"github.com/mycophonic/faststart/internal/mp4test"
)

func TestScanTopLevelBoxes(t *testing.T) {
	t.Parallel()

	ftyp := mp4test.Ftyp("isom")
	moov := mp4test.Box("moov", []byte("fake-moov-payload"))
	mdat := mp4test.Mdat([]byte("sample-bytes"))

	data := mp4test.Concat(ftyp, moov, mdat)
	src := mp4test.BytesSource(data)

	records, err := box.Scan(src, src.Size())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	wantTypes := []string{"ftyp", "moov", "mdat"}
	for i, want := range wantTypes {
		if got := records[i].TypeString(); got != want {
			t.Errorf("record %d: got type %q, want %q", i, got, want)
		}
	}

	if records[2].End() != src.Size() {
		t.Errorf("last record End() = %d, want %d", records[2].End(), src.Size())
	}
}

func TestScanExtendedSizeBox(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 100)
	moov := mp4test.Box64("moov", payload)
	data := mp4test.Concat(moov)

	records, err := box.Scan(mp4test.BytesSource(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	if records[0].HeaderLen != 16 {
		t.Errorf("HeaderLen = %d, want 16", records[0].HeaderLen)
	}

	if records[0].PayloadLen != int64(len(payload)) {
		t.Errorf("PayloadLen = %d, want %d", records[0].PayloadLen, len(payload))
	}
}

func TestScanSizeZeroExtendsToEOF(t *testing.T) {
	t.Parallel()

	header := []byte{0, 0, 0, 0, 'f', 'r', 'e', 'e'}
	payload := []byte("trailing-bytes-to-eof")
	data := append(append([]byte{}, header...), payload...)

	records, err := box.Scan(mp4test.BytesSource(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	if records[0].PayloadLen != int64(len(payload)) {
		t.Errorf("PayloadLen = %d, want %d", records[0].PayloadLen, len(payload))
	}

	if records[0].PayloadOffset != 8 {
		t.Errorf("PayloadOffset = %d, want 8", records[0].PayloadOffset)
	}
}

func TestScanTruncatedHeader(t *testing.T) {
	t.Parallel()

	data := []byte{0, 0, 0, 12, 'f', 't'}

	_, err := box.Scan(mp4test.BytesSource(data), int64(len(data)))
	if !errors.Is(err, box.ErrTruncatedBox) {
		t.Fatalf("got %v, want ErrTruncatedBox", err)
	}
}

func TestScanInvalidSizeTooSmall(t *testing.T) {
	t.Parallel()

	data := []byte{0, 0, 0, 4, 'f', 't', 'y', 'p', 'e', 'x', 't', 'r', 'a'}

	_, err := box.Scan(mp4test.BytesSource(data), int64(len(data)))
	if !errors.Is(err, box.ErrInvalidBoxSize) {
		t.Fatalf("got %v, want ErrInvalidBoxSize", err)
	}
}

func TestScanInvalidSizeExtendsPastEOF(t *testing.T) {
	t.Parallel()

	data := []byte{0, 0, 0, 100, 'f', 't', 'y', 'p'}

	_, err := box.Scan(mp4test.BytesSource(data), int64(len(data)))
	if !errors.Is(err, box.ErrInvalidBoxSize) {
		t.Fatalf("got %v, want ErrInvalidBoxSize", err)
	}
}
