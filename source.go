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

import (
	"io"
	"os"
)

// Source is a random-access byte source over an input file: both the box
// scanner and the remux writer need ReadAt, and the planner needs to know
// the total length up front.
type Source interface {
	io.ReaderAt
	Size() int64
}

// Sink is the sequential byte destination for optimized output.
type Sink interface {
	io.Writer
}

// FileSource adapts an *os.File (or anything with the same shape) into a
// Source, caching the size observed at construction time so Size() never
// needs to re-stat mid-operation.
type FileSource struct {
	f    *os.File
	size int64
}

// NewFileSource opens path read-only and wraps it as a Source. The
// returned source owns the file handle; call Close when done.
func NewFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()

		return nil, err
	}

	return &FileSource{f: f, size: info.Size()}, nil
}

func (s *FileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

func (s *FileSource) Size() int64 {
	return s.size
}

// Close releases the underlying file handle.
func (s *FileSource) Close() error {
	return s.f.Close()
}

// BytesSource adapts an in-memory byte slice into a Source. Useful for
// small inputs already resident in memory (a request body the HTTP
// surface buffered, a test fixture) where opening a temp file would be
// wasted ceremony.
type BytesSource []byte

func (b BytesSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b)) {
		return 0, io.EOF
	}

	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}

	return n, nil
}

func (b BytesSource) Size() int64 {
	return int64(len(b))
}
