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

package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mycophonic/faststart/internal/storage"
)

func TestLocalSourceReadsBackWhatWasWritten(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "input.mp4")

	want := []byte("hello fast-start world")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	src, err := storage.OpenLocalSource(path)
	if err != nil {
		t.Fatalf("OpenLocalSource: %v", err)
	}
	defer src.Close()

	if src.Size() != int64(len(want)) {
		t.Fatalf("Size() = %d, want %d", src.Size(), len(want))
	}

	got := make([]byte, len(want))
	if _, err := src.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}

	if string(got) != string(want) {
		t.Errorf("ReadAt = %q, want %q", got, want)
	}
}

func TestLocalSinkCommitRenamesIntoPlace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dest := filepath.Join(dir, "output.mp4")

	sink, err := storage.CreateLocalSink(dest)
	if err != nil {
		t.Fatalf("CreateLocalSink: %v", err)
	}

	if _, err := sink.Write([]byte("optimized bytes")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := sink.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile(dest): %v", err)
	}

	if string(got) != "optimized bytes" {
		t.Errorf("dest contents = %q, want %q", got, "optimized bytes")
	}
}

func TestLocalSinkDiscardLeavesNoTempFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dest := filepath.Join(dir, "output.mp4")

	sink, err := storage.CreateLocalSink(dest)
	if err != nil {
		t.Fatalf("CreateLocalSink: %v", err)
	}

	sink.Discard()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	if len(entries) != 0 {
		t.Errorf("expected no files left behind, found %v", entries)
	}
}
