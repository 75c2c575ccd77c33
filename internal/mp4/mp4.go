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

// Package mp4 dumps the full nested box tree of an MP4/MOV file for the
// "faststart inspect" command. Unlike internal/box (top-level only,
// io.ReaderAt) and internal/moovfix (explicit stack) this descends recursively via
// io.ReadSeeker, which is the more convenient shape for a one-shot
// diagnostic walk that never touches untrusted depth at scale.
package mp4

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// boxInfo holds the position and size of a parsed box.
type boxInfo struct {
	// Offset of the box header start in the file.
	offset int64
	// Total box size including header.
	size int64
	// Header size (8 for normal, 16 for extended).
	headerSize int64
	// Four-character box type code.
	fourCC [4]byte
}

const (
	smallHeaderSize = 8
	largeHeaderSize = 16
)

// containerTypes enumerates box types worth descending into when
// building a Node tree; everything else is reported as a leaf.
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

// Node describes one box in the dumped tree: its type, file placement,
// and (for recognized containers) its children.
type Node struct {
	Type       string
	Offset     int64
	Size       int64
	HeaderSize int64
	Children   []Node
}

// DumpTree walks every top-level box of reader and, for each recognized
// container, recurses into its children, producing a full tree suitable
// for printing by "faststart inspect".
func DumpTree(reader io.ReadSeeker) ([]Node, error) {
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to start: %w", err)
	}

	end, err := reader.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seeking to end: %w", err)
	}

	root := boxInfo{offset: 0, size: end, headerSize: 0}

	return dumpChildren(reader, &root)
}

func dumpChildren(reader io.ReadSeeker, parent *boxInfo) ([]Node, error) {
	var nodes []Node

	err := iterChildren(reader, parent, func(child boxInfo) (bool, error) {
		node := Node{
			Type:       string(child.fourCC[:]),
			Offset:     child.offset,
			Size:       child.size,
			HeaderSize: child.headerSize,
		}

		if containerTypes[child.fourCC] {
			children, err := dumpChildren(reader, &child)
			if err != nil {
				return false, err
			}

			node.Children = children
		}

		nodes = append(nodes, node)

		return false, nil
	})

	return nodes, err
}

// readBoxInfo reads a single box header from the current position.
// Returns io.EOF if there are no more bytes to read.
func readBoxInfo(reader io.ReadSeeker) (boxInfo, error) {
	offset, err := reader.Seek(0, io.SeekCurrent)
	if err != nil {
		return boxInfo{}, fmt.Errorf("seeking current position: %w", err)
	}

	var header [largeHeaderSize]byte

	if _, err := io.ReadFull(reader, header[:smallHeaderSize]); err != nil {
		return boxInfo{}, fmt.Errorf("reading box header: %w", err)
	}

	info := boxInfo{
		offset:     offset,
		headerSize: smallHeaderSize,
		fourCC:     [4]byte{header[4], header[5], header[6], header[7]},
	}

	rawSize := binary.BigEndian.Uint32(header[:4])

	switch rawSize {
	case 0:
		// Box extends to end of file.
		end, seekErr := reader.Seek(0, io.SeekEnd)
		if seekErr != nil {
			return boxInfo{}, fmt.Errorf("seeking to end of file: %w", seekErr)
		}

		info.size = end - offset

		if _, seekErr := reader.Seek(offset+info.headerSize, io.SeekStart); seekErr != nil {
			return boxInfo{}, fmt.Errorf("seeking past box header: %w", seekErr)
		}

	case 1:
		// Extended 64-bit size.
		if _, err := io.ReadFull(reader, header[smallHeaderSize:largeHeaderSize]); err != nil {
			return boxInfo{}, fmt.Errorf("reading extended box header: %w", err)
		}

		info.headerSize = largeHeaderSize
		info.size = int64(binary.BigEndian.Uint64(header[smallHeaderSize:largeHeaderSize]))

	default:
		info.size = int64(rawSize)
	}

	if info.size < info.headerSize {
		return boxInfo{}, fmt.Errorf("%w: size %d at offset %d", ErrInvalidBoxSize, info.size, offset)
	}

	return info, nil
}

// seekToPayload seeks to the start of this box's payload.
func (info *boxInfo) seekToPayload(reader io.ReadSeeker) error {
	_, err := reader.Seek(info.offset+info.headerSize, io.SeekStart)
	if err != nil {
		return fmt.Errorf("seeking to box payload: %w", err)
	}

	return nil
}

// seekToEnd seeks past this box (to the start of the next sibling).
func (info *boxInfo) seekToEnd(reader io.ReadSeeker) error {
	_, err := reader.Seek(info.offset+info.size, io.SeekStart)
	if err != nil {
		return fmt.Errorf("seeking past box: %w", err)
	}

	return nil
}

// iterChildren calls callback for each direct child box within parent's
// payload. callback returns true to stop iteration early.
func iterChildren(
	reader io.ReadSeeker,
	parent *boxInfo,
	callback func(child boxInfo) (stop bool, err error),
) error {
	if err := parent.seekToPayload(reader); err != nil {
		return err
	}

	end := parent.offset + parent.size

	for {
		pos, err := reader.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("seeking current position: %w", err)
		}

		if pos >= end {
			return nil
		}

		child, err := readBoxInfo(reader)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}

			return err
		}

		stop, err := callback(child)
		if err != nil {
			return err
		}

		if stop {
			return nil
		}

		if err := child.seekToEnd(reader); err != nil {
			return err
		}
	}
}
