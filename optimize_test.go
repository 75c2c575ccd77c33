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

package faststart_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	faststart "github.com/mycophonic/faststart"
	"github.com/mycophonic/faststart/internal/mp4test"
)

// recordingListener captures every callback for assertions about ordering
// and terminal-callback exclusivity (spec.md P7).
type recordingListener struct {
	fractions []float32
	success   *string
	failure   error
}

func (r *recordingListener) OnProgress(fraction float32) {
	r.fractions = append(r.fractions, fraction)
}

func (r *recordingListener) OnSuccess(outputPath string) {
	r.success = &outputPath
}

func (r *recordingListener) OnError(err error) {
	r.failure = err
}

func (r *recordingListener) assertMonotonic(t *testing.T) {
	t.Helper()

	for i := 1; i < len(r.fractions); i++ {
		if r.fractions[i] < r.fractions[i-1] {
			t.Fatalf("progress regressed: %f after %f", r.fractions[i], r.fractions[i-1])
		}
	}
}

func (r *recordingListener) assertExactlyOneTerminalCallback(t *testing.T) {
	t.Helper()

	if (r.success == nil) == (r.failure == nil) {
		t.Fatalf("expected exactly one terminal callback, got success=%v error=%v", r.success, r.failure)
	}
}

func TestOptimizeAlreadyFastStartIsByteExactCopy(t *testing.T) {
	t.Parallel()

	ftyp := mp4test.Ftyp("isom")
	moov := mp4test.Box("moov", mp4test.SampleTableWithStco([]uint32{32}))
	mdat := mp4test.Mdat(bytes.Repeat([]byte{0x42}, 10000))

	data := mp4test.Concat(ftyp, moov, mdat)
	src := mp4test.BytesSource(data)

	var out bytes.Buffer

	listener := &recordingListener{}

	if err := faststart.Optimize(context.Background(), src, &out, faststart.DefaultOptions(), listener); err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	listener.assertExactlyOneTerminalCallback(t)
	listener.assertMonotonic(t)

	if !bytes.Equal(out.Bytes(), data) {
		t.Error("already-optimized input was not copied byte-for-byte")
	}
}

func TestOptimizeRelocatesMoovAndFixesStco(t *testing.T) {
	t.Parallel()

	ftyp := mp4test.Ftyp("isom")            // 20 bytes
	mdat := mp4test.Mdat(make([]byte, 10000)) // header at offset 20, payload at 28
	moovPayload := mp4test.SampleTableWithStco([]uint32{32, 1032, 2032})
	moov := mp4test.Box("moov", moovPayload)

	data := mp4test.Concat(ftyp, mdat, moov)
	src := mp4test.BytesSource(data)

	var out bytes.Buffer

	listener := &recordingListener{}

	if err := faststart.Optimize(context.Background(), src, &out, faststart.DefaultOptions(), listener); err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	listener.assertExactlyOneTerminalCallback(t)
	listener.assertMonotonic(t)

	optimized := faststart.BytesSource(out.Bytes())

	ok, err := faststart.IsOptimized(optimized)
	if err != nil {
		t.Fatalf("IsOptimized: %v", err)
	}

	if !ok {
		t.Fatal("output is not fast-start")
	}

	// mdat moves by the new moov's length (8-byte header + payload), and
	// every stco entry must move by the same amount.
	delta := uint32(8 + len(moovPayload))
	outBytes := out.Bytes()

	idx := bytes.Index(outBytes, []byte("stco"))
	if idx < 0 {
		t.Fatal("no stco box in output")
	}

	for i, orig := range []uint32{32, 1032, 2032} {
		off := idx + 12 + i*4 // fourCC(4) + version/flags(4) + entry_count(4)
		if got := binary.BigEndian.Uint32(outBytes[off : off+4]); got != orig+delta {
			t.Errorf("stco entry %d = %d, want %d", i, got, orig+delta)
		}
	}
}

func TestOptimizeIdempotentSecondPassIsNoop(t *testing.T) {
	t.Parallel()

	ftyp := mp4test.Ftyp("isom")
	mdat := mp4test.Mdat(make([]byte, 5000))
	moov := mp4test.Box("moov", mp4test.SampleTableWithStco([]uint32{32, 2032}))

	data := mp4test.Concat(ftyp, mdat, moov)

	var firstPass bytes.Buffer
	if err := faststart.Optimize(context.Background(), mp4test.BytesSource(data), &firstPass, faststart.DefaultOptions(), nil); err != nil {
		t.Fatalf("first Optimize: %v", err)
	}

	var secondPass bytes.Buffer
	if err := faststart.Optimize(context.Background(), faststart.BytesSource(firstPass.Bytes()), &secondPass, faststart.DefaultOptions(), nil); err != nil {
		t.Fatalf("second Optimize: %v", err)
	}

	if !bytes.Equal(firstPass.Bytes(), secondPass.Bytes()) {
		t.Error("optimize(optimize(x)) != optimize(x)")
	}
}

func TestOptimizeMissingMdatFails(t *testing.T) {
	t.Parallel()

	ftyp := mp4test.Ftyp("isom")
	moov := mp4test.Box("moov", mp4test.SampleTableWithStco([]uint32{32}))

	data := mp4test.Concat(ftyp, moov)
	src := mp4test.BytesSource(data)

	var out bytes.Buffer

	listener := &recordingListener{}

	err := faststart.Optimize(context.Background(), src, &out, faststart.DefaultOptions(), listener)
	if !errors.Is(err, faststart.ErrMissingBox) {
		t.Fatalf("got %v, want ErrMissingBox", err)
	}

	listener.assertExactlyOneTerminalCallback(t)

	if listener.failure == nil {
		t.Fatal("expected OnError to be called")
	}
}

func TestOptimizeStcoOverflowFails(t *testing.T) {
	t.Parallel()

	ftyp := mp4test.Ftyp("isom")
	mdat := mp4test.Mdat(make([]byte, 10))
	moovPayload := mp4test.SampleTableWithStco([]uint32{0x7ffffff0})
	moov := mp4test.Box("moov", moovPayload)

	// Build ftyp, mdat, moov like the relocation case, which yields a
	// positive delta = 8 + len(moovPayload), large enough to overflow an
	// entry already near 2^31-1.
	data := mp4test.Concat(ftyp, mdat, moov)
	src := mp4test.BytesSource(data)

	var out bytes.Buffer

	listener := &recordingListener{}

	err := faststart.Optimize(context.Background(), src, &out, faststart.DefaultOptions(), listener)
	if !errors.Is(err, faststart.ErrOffsetOverflow) {
		t.Fatalf("got %v, want ErrOffsetOverflow", err)
	}

	if listener.failure == nil {
		t.Fatal("expected OnError to be called")
	}
}

func TestOptimizeMoovTooLargeFails(t *testing.T) {
	t.Parallel()

	ftyp := mp4test.Ftyp("isom")
	mdat := mp4test.Mdat(make([]byte, 10))
	moovPayload := mp4test.SampleTableWithStco([]uint32{32})
	moov := mp4test.Box("moov", moovPayload)

	data := mp4test.Concat(ftyp, mdat, moov)
	src := mp4test.BytesSource(data)

	opts := faststart.DefaultOptions()
	opts.MoovCapBytes = 1 // far smaller than the synthetic moov payload

	var out bytes.Buffer

	err := faststart.Optimize(context.Background(), src, &out, opts, nil)
	if !errors.Is(err, faststart.ErrMoovTooLarge) {
		t.Fatalf("got %v, want ErrMoovTooLarge", err)
	}
}

func TestOptimizeCancellationFails(t *testing.T) {
	t.Parallel()

	ftyp := mp4test.Ftyp("isom")
	mdat := mp4test.Mdat(bytes.Repeat([]byte{0x01}, 1<<20))
	moov := mp4test.Box("moov", mp4test.SampleTableWithStco([]uint32{32}))

	data := mp4test.Concat(ftyp, mdat, moov)
	src := mp4test.BytesSource(data)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer

	listener := &recordingListener{}

	err := faststart.Optimize(ctx, src, &out, faststart.DefaultOptions(), listener)
	if !errors.Is(err, faststart.ErrCancelled) {
		t.Fatalf("got %v, want ErrCancelled", err)
	}

	if listener.failure == nil {
		t.Fatal("expected OnError on cancellation")
	}
}
