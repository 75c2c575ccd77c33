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

// Package storage provides concrete Source/Sink pairs for the faststart
// core: a local filesystem pair and an S3-backed pair that stages through
// a local temp file.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// LocalSource wraps a read-only *os.File as a faststart.Source.
type LocalSource struct {
	f    *os.File
	size int64
}

// OpenLocalSource opens path for reading and caches its size.
func OpenLocalSource(path string) (*LocalSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()

		return nil, fmt.Errorf("storage: stat %s: %w", path, err)
	}

	return &LocalSource{f: f, size: info.Size()}, nil
}

func (s *LocalSource) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

func (s *LocalSource) Size() int64 {
	return s.size
}

// Close releases the underlying file handle.
func (s *LocalSource) Close() error {
	return s.f.Close()
}

// LocalSink writes to a temporary file beside the destination path and
// renames it into place on Commit, so a crash mid-write never corrupts an
// existing file at dest. Callers that abandon the sink without calling
// Commit should call Discard to remove the temp file.
type LocalSink struct {
	dest    string
	tmp     *os.File
	tmpPath string
}

// CreateLocalSink opens a temp file in dest's directory for writing.
func CreateLocalSink(dest string) (*LocalSink, error) {
	dir := filepath.Dir(dest)

	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".faststart-*")
	if err != nil {
		return nil, fmt.Errorf("storage: create temp output in %s: %w", dir, err)
	}

	return &LocalSink{dest: dest, tmp: tmp, tmpPath: tmp.Name()}, nil
}

func (s *LocalSink) Write(p []byte) (int, error) {
	return s.tmp.Write(p)
}

// Name reports the final destination path, for ProgressListener.OnSuccess.
func (s *LocalSink) Name() string {
	return s.dest
}

// Commit closes the temp file and renames it to the destination path.
func (s *LocalSink) Commit() error {
	if err := s.tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp output: %w", err)
	}

	if err := os.Rename(s.tmpPath, s.dest); err != nil {
		return fmt.Errorf("storage: rename %s to %s: %w", s.tmpPath, s.dest, err)
	}

	return nil
}

// Discard closes and removes the temp file without touching dest. Safe to
// call after Commit has already succeeded (it is then a no-op on a
// nonexistent path).
func (s *LocalSink) Discard() {
	s.tmp.Close()
	os.Remove(s.tmpPath)
}
