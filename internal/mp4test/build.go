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

// Package mp4test builds synthetic ISO-BMFF byte layouts for tests across
// internal/box, internal/moovfix, internal/layout, internal/remux, and
// the root package. No encoder binary or real media sample is needed:
// every fixture here is a hand-assembled box tree.
package mp4test

import (
	"encoding/binary"
	"errors"
	"io"
)

var (
	errOutOfRange = errors.New("mp4test: offset out of range")
	errShortRead  = io.ErrUnexpectedEOF
)

// Box builds a box with an 8-byte header: 4-byte big-endian size followed
// by the four-character type, then payload.
func Box(fourCC string, payload []byte) []byte {
	if len(fourCC) != 4 {
		panic("mp4test: fourCC must be 4 characters")
	}

	total := 8 + len(payload)
	out := make([]byte, 0, total)

	var sizeBuf [4]byte
	binary.BigEndian.PutUint32(sizeBuf[:], uint32(total))

	out = append(out, sizeBuf[:]...)
	out = append(out, fourCC...)
	out = append(out, payload...)

	return out
}

// Box64 builds a box with a 16-byte extended header (size field == 1,
// followed by an 8-byte big-endian largesize).
func Box64(fourCC string, payload []byte) []byte {
	if len(fourCC) != 4 {
		panic("mp4test: fourCC must be 4 characters")
	}

	total := uint64(16 + len(payload))
	out := make([]byte, 0, total)

	var header [16]byte
	binary.BigEndian.PutUint32(header[0:4], 1)
	copy(header[4:8], fourCC)
	binary.BigEndian.PutUint64(header[8:16], total)

	out = append(out, header[:]...)
	out = append(out, payload...)

	return out
}

// Nest wraps a concatenation of child boxes as the payload of a container
// box, e.g. Nest("trak", Nest("mdia", ...)).
func Nest(fourCC string, children ...[]byte) []byte {
	return Box(fourCC, Concat(children...))
}

// Concat flattens a list of box byte slices into one buffer, the shape
// every top-level box sequence and every container payload takes.
func Concat(boxes ...[]byte) []byte {
	var total int
	for _, b := range boxes {
		total += len(b)
	}

	out := make([]byte, 0, total)
	for _, b := range boxes {
		out = append(out, b...)
	}

	return out
}

// FullBoxHeader builds the 4-byte version+flags prefix shared by stco,
// co64, stsc, stsz and friends.
func FullBoxHeader(version byte, flags uint32) []byte {
	var buf [4]byte

	buf[0] = version
	buf[1] = byte(flags >> 16)
	buf[2] = byte(flags >> 8)
	buf[3] = byte(flags)

	return buf[:]
}

// Stco builds an stco box (32-bit chunk offsets).
func Stco(offsets []uint32) []byte {
	payload := FullBoxHeader(0, 0)

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(offsets)))
	payload = append(payload, countBuf[:]...)

	for _, off := range offsets {
		var entry [4]byte
		binary.BigEndian.PutUint32(entry[:], off)
		payload = append(payload, entry[:]...)
	}

	return Box("stco", payload)
}

// Co64 builds a co64 box (64-bit chunk offsets).
func Co64(offsets []uint64) []byte {
	payload := FullBoxHeader(0, 0)

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(offsets)))
	payload = append(payload, countBuf[:]...)

	for _, off := range offsets {
		var entry [8]byte
		binary.BigEndian.PutUint64(entry[:], off)
		payload = append(payload, entry[:]...)
	}

	return Box("co64", payload)
}

// SampleTableWithStco wraps an stco box in the stbl/minf/mdia/trak/moov
// container chain the fixup engine must descend through.
func SampleTableWithStco(offsets []uint32) []byte {
	return Nest("trak", Nest("mdia", Nest("minf", Nest("stbl", Stco(offsets)))))
}

// SampleTableWithCo64 is SampleTableWithStco's 64-bit counterpart.
func SampleTableWithCo64(offsets []uint64) []byte {
	return Nest("trak", Nest("mdia", Nest("minf", Nest("stbl", Co64(offsets)))))
}

// Ftyp builds a minimal ftyp box.
func Ftyp(majorBrand string) []byte {
	payload := make([]byte, 0, 16)
	payload = append(payload, majorBrand...)
	payload = append(payload, 0, 0, 0, 0) // minor_version
	payload = append(payload, majorBrand...)

	return Box("ftyp", payload)
}

// Mdat builds an mdat box wrapping the given sample bytes verbatim.
func Mdat(samples []byte) []byte {
	return Box("mdat", samples)
}

// BytesSource adapts a byte slice into an io.ReaderAt with a Size method,
// the shape both the box scanner and the root package's Source expect.
type BytesSource []byte

func (b BytesSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b)) {
		return 0, errOutOfRange
	}

	n := copy(p, b[off:])
	if n < len(p) {
		return n, errShortRead
	}

	return n, nil
}

func (b BytesSource) Size() int64 {
	return int64(len(b))
}
