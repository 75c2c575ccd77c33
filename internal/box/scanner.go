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

// Package box scans the top-level ISO-BMFF box structure of an MP4/MOV
// file. It does not descend into containers — see internal/moovfix for
// that — because only top-level boxes participate in the output layout.
package box

import (
	"encoding/binary"
	"fmt"
)

const (
	smallHeaderSize = 8
	largeHeaderSize = 16
)

// RandomReader is the minimal random-access read capability the scanner
// needs. io.ReaderAt satisfies it.
type RandomReader interface {
	ReadAt(p []byte, off int64) (int, error)
}

// Record describes one top-level box: its header placement and payload
// extent. Produced by Scan; immutable thereafter.
type Record struct {
	Type          [4]byte
	HeaderOffset  int64
	HeaderLen     int64
	PayloadOffset int64
	PayloadLen    int64
}

// End returns the file offset immediately past this box.
func (r Record) End() int64 {
	return r.HeaderOffset + r.HeaderLen + r.PayloadLen
}

// TotalLen returns the box's total length including its header.
func (r Record) TotalLen() int64 {
	return r.HeaderLen + r.PayloadLen
}

// TypeString renders the four-character code as a string, for error messages.
func (r Record) TypeString() string {
	return string(r.Type[:])
}

// Scan walks top-level boxes of a random-access source of the given size,
// producing an ordered, non-overlapping cover of [0, size) (or up to a
// terminating size==0 box). It does not descend into any box's payload.
func Scan(src RandomReader, size int64) ([]Record, error) {
	var records []Record

	offset := int64(0)
	for offset < size {
		rec, terminal, err := readHeader(src, offset, size)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)

		if terminal {
			break
		}

		offset = rec.End()
	}

	return records, nil
}

// readHeader reads a single box header at offset, within a region of the
// given total size. terminal is true when the box (size==0) extends to
// the end of that region and scanning must stop after it.
func readHeader(src RandomReader, offset, size int64) (rec Record, terminal bool, err error) {
	if size-offset < smallHeaderSize {
		return Record{}, false, fmt.Errorf("%w: at offset %d", ErrTruncatedBox, offset)
	}

	var header [largeHeaderSize]byte
	if _, err := src.ReadAt(header[:smallHeaderSize], offset); err != nil {
		return Record{}, false, fmt.Errorf("%w: reading header at %d: %w", ErrTruncatedBox, offset, err)
	}

	rawSize := binary.BigEndian.Uint32(header[:4])

	rec = Record{
		HeaderOffset: offset,
		HeaderLen:    smallHeaderSize,
		Type:         [4]byte{header[4], header[5], header[6], header[7]},
	}

	switch rawSize {
	case 0:
		rec.PayloadLen = size - offset - rec.HeaderLen
		rec.PayloadOffset = rec.HeaderOffset + rec.HeaderLen

		return rec, true, nil

	case 1:
		if size-offset < largeHeaderSize {
			return Record{}, false, fmt.Errorf("%w: extended header at %d", ErrTruncatedBox, offset)
		}

		if _, err := src.ReadAt(header[smallHeaderSize:largeHeaderSize], offset+smallHeaderSize); err != nil {
			return Record{}, false, fmt.Errorf("%w: reading extended header at %d: %w", ErrTruncatedBox, offset, err)
		}

		total := binary.BigEndian.Uint64(header[smallHeaderSize:largeHeaderSize])
		rec.HeaderLen = largeHeaderSize

		if total < largeHeaderSize || int64(total) > size-offset {
			return Record{}, false, fmt.Errorf("%w: largesize %d at offset %d", ErrInvalidBoxSize, total, offset)
		}

		rec.PayloadLen = int64(total) - rec.HeaderLen

	default:
		if rawSize < smallHeaderSize || int64(rawSize) > size-offset {
			return Record{}, false, fmt.Errorf("%w: size %d at offset %d", ErrInvalidBoxSize, rawSize, offset)
		}

		rec.PayloadLen = int64(rawSize) - rec.HeaderLen
	}

	rec.PayloadOffset = rec.HeaderOffset + rec.HeaderLen

	return rec, false, nil
}
