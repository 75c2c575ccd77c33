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

// Package moovfix rewrites every absolute chunk-offset entry (stco/co64)
// found anywhere inside a moov box's payload, by a caller-supplied signed
// delta. It walks the nested container hierarchy with an explicit stack of
// (position, limit) frames rather than recursing, so a malformed or
// adversarial moov cannot drive unbounded call-stack growth.
package moovfix

import (
	"encoding/binary"
	"fmt"
)

const (
	smallHeaderSize = 8
	largeHeaderSize = 16
	fullBoxHeader   = 4 // version(1) + flags(3)
)

var (
	typeStco = [4]byte{'s', 't', 'c', 'o'}
	typeCo64 = [4]byte{'c', 'o', '6', '4'}
)

// containerTypes enumerates the box types whose payload is itself a
// sequence of boxes and must be descended to find nested stco/co64 tables.
var containerTypes = map[[4]byte]bool{
	{'m', 'o', 'o', 'v'}: true,
	{'t', 'r', 'a', 'k'}: true,
	{'m', 'd', 'i', 'a'}: true,
	{'m', 'i', 'n', 'f'}: true,
	{'s', 't', 'b', 'l'}: true,
	{'e', 'd', 't', 's'}: true,
	{'m', 'v', 'e', 'x'}: true,
	{'u', 'd', 't', 'a'}: true,
}

// frame is one level of the explicit walk stack: the unconsumed byte
// range [pos, limit) of a container's payload.
type frame struct {
	pos   int64
	limit int64
}

// Fixup rewrites every stco and co64 entry to entry + delta, in place
// within moovPayload. An stco result outside [0, 2^31-1] fails with
// ErrOffsetOverflow and a negative co64 result fails with
// ErrOffsetUnderflow; nothing is clamped. moovPayload
// must be the moov box's payload (not its header). delta == 0 is a no-op:
// no bytes are touched, so repeated optimization of an already fast-start
// file takes the writer's raw-copy fast path instead of this one.
func Fixup(moovPayload []byte, delta int64) error {
	if delta == 0 {
		return nil
	}

	stack := []frame{{pos: 0, limit: int64(len(moovPayload))}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]

		if top.pos >= top.limit {
			stack = stack[:len(stack)-1]

			continue
		}

		fourCC, payloadStart, payloadEnd, err := readNestedHeader(moovPayload, top.pos, top.limit)
		if err != nil {
			return err
		}

		top.pos = payloadEnd

		switch {
		case fourCC == typeStco:
			if err := fixStco(moovPayload[payloadStart:payloadEnd], delta); err != nil {
				return err
			}
		case fourCC == typeCo64:
			if err := fixCo64(moovPayload[payloadStart:payloadEnd], delta); err != nil {
				return err
			}
		case containerTypes[fourCC]:
			stack = append(stack, frame{pos: payloadStart, limit: payloadEnd})
		}
	}

	return nil
}

// readNestedHeader reads one box header at pos within a container bounded
// by limit. Returns the box's fourCC and the payload range that follows
// the header, clipped to limit for a size==0 terminator.
func readNestedHeader(buf []byte, pos, limit int64) (fourCC [4]byte, payloadStart, payloadEnd int64, err error) {
	if limit-pos < smallHeaderSize {
		return fourCC, 0, 0, fmt.Errorf("%w: truncated header at %d", ErrMalformedMoov, pos)
	}

	rawSize := binary.BigEndian.Uint32(buf[pos : pos+4])
	copy(fourCC[:], buf[pos+4:pos+8])

	switch rawSize {
	case 0:
		payloadStart = pos + smallHeaderSize
		payloadEnd = limit

	case 1:
		if limit-pos < largeHeaderSize {
			return fourCC, 0, 0, fmt.Errorf("%w: truncated extended header at %d", ErrMalformedMoov, pos)
		}

		total := binary.BigEndian.Uint64(buf[pos+smallHeaderSize : pos+largeHeaderSize])
		payloadStart = pos + largeHeaderSize
		payloadEnd = pos + int64(total)

		if total < largeHeaderSize || payloadEnd > limit {
			return fourCC, 0, 0, fmt.Errorf("%w: largesize %d at %d", ErrMalformedMoov, total, pos)
		}

	default:
		payloadStart = pos + smallHeaderSize
		payloadEnd = pos + int64(rawSize)

		if rawSize < smallHeaderSize || payloadEnd > limit {
			return fourCC, 0, 0, fmt.Errorf("%w: size %d at %d", ErrMalformedMoov, rawSize, pos)
		}
	}

	return fourCC, payloadStart, payloadEnd, nil
}

// fixStco rewrites a stco box's payload (version/flags + entry_count +
// entry_count x uint32 entries) in place.
// Layout: FullBox(4) + entry_count(4) + entry_count x offset(4).
func fixStco(payload []byte, delta int64) error {
	if len(payload) < fullBoxHeader+4 {
		return fmt.Errorf("%w: stco payload too short", ErrMalformedMoov)
	}

	count := binary.BigEndian.Uint32(payload[fullBoxHeader : fullBoxHeader+4])
	entries := payload[fullBoxHeader+4:]

	if int64(count)*4 > int64(len(entries)) {
		return fmt.Errorf("%w: stco entry_count %d exceeds payload", ErrMalformedMoov, count)
	}

	for i := range count {
		off := i * 4
		entry := int64(binary.BigEndian.Uint32(entries[off : off+4]))

		shifted := entry + delta
		if shifted < 0 || shifted > 0x7fffffff {
			return fmt.Errorf("%w: entry %d shifted to %d", ErrOffsetOverflow, entry, shifted)
		}

		binary.BigEndian.PutUint32(entries[off:off+4], uint32(shifted))
	}

	return nil
}

// fixCo64 rewrites a co64 box's payload in place.
// Layout: FullBox(4) + entry_count(4) + entry_count x offset(8).
func fixCo64(payload []byte, delta int64) error {
	if len(payload) < fullBoxHeader+4 {
		return fmt.Errorf("%w: co64 payload too short", ErrMalformedMoov)
	}

	count := binary.BigEndian.Uint32(payload[fullBoxHeader : fullBoxHeader+4])
	entries := payload[fullBoxHeader+4:]

	if int64(count)*8 > int64(len(entries)) {
		return fmt.Errorf("%w: co64 entry_count %d exceeds payload", ErrMalformedMoov, count)
	}

	for i := range count {
		off := i * 8
		entry := int64(binary.BigEndian.Uint64(entries[off : off+8]))

		shifted := entry + delta
		if shifted < 0 {
			return fmt.Errorf("%w: entry %d shifted to %d", ErrOffsetUnderflow, entry, shifted)
		}

		binary.BigEndian.PutUint64(entries[off:off+8], uint64(shifted))
	}

	return nil
}
