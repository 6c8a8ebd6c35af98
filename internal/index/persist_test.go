package index

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mike-a-ellis/docqa/internal/chunker"
)

func savedIndex(t *testing.T) (string, *Flat) {
	t.Helper()
	dir := t.TempDir()
	f := buildTestIndex(t)
	if err := f.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return dir, f
}

// TestSaveLoad_RoundTrip verifies a reloaded index returns the same search
// results as the original.
func TestSaveLoad_RoundTrip(t *testing.T) {
	dir, original := savedIndex(t)

	loaded, err := LoadFlat(dir)
	if err != nil {
		t.Fatalf("LoadFlat failed: %v", err)
	}
	if loaded.Dimension() != original.Dimension() {
		t.Errorf("Dimension: expected %d, got %d", original.Dimension(), loaded.Dimension())
	}

	query := []float32{0.5, 0.8, 0.1}
	want, err := original.Search(context.Background(), query, 3, 0)
	if err != nil {
		t.Fatalf("Search original failed: %v", err)
	}
	got, err := loaded.Search(context.Background(), query, 3, 0)
	if err != nil {
		t.Fatalf("Search loaded failed: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("Result counts differ: %d vs %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Unit != want[i].Unit || got[i].Score != want[i].Score {
			t.Errorf("Result %d differs after reload: %+v vs %+v", i, got[i], want[i])
		}
	}
}

// TestSave_EmptyIndex verifies persisting an unbuilt index is rejected.
func TestSave_EmptyIndex(t *testing.T) {
	f := NewFlat(3)
	if err := f.Save(t.TempDir()); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}
}

// TestLoad_CountMismatch verifies a metadata count that disagrees with the
// unit list is rejected as corrupt.
func TestLoad_CountMismatch(t *testing.T) {
	dir, _ := savedIndex(t)

	metaPath := filepath.Join(dir, "units.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatalf("Read metadata: %v", err)
	}
	tampered := strings.Replace(string(data), `"count":3`, `"count":2`, 1)
	if tampered == string(data) {
		t.Fatal("Expected count field in metadata")
	}
	if err := os.WriteFile(metaPath, []byte(tampered), 0o644); err != nil {
		t.Fatalf("Write metadata: %v", err)
	}

	if _, err := LoadFlat(dir); !errors.Is(err, ErrCorruptIndex) {
		t.Errorf("Expected ErrCorruptIndex, got %v", err)
	}
}

// TestLoad_TruncatedBlob verifies a short vector blob is rejected as corrupt.
func TestLoad_TruncatedBlob(t *testing.T) {
	dir, _ := savedIndex(t)

	blobPath := filepath.Join(dir, "vectors.bin")
	data, err := os.ReadFile(blobPath)
	if err != nil {
		t.Fatalf("Read blob: %v", err)
	}
	if err := os.WriteFile(blobPath, data[:len(data)-4], 0o644); err != nil {
		t.Fatalf("Write blob: %v", err)
	}

	if _, err := LoadFlat(dir); !errors.Is(err, ErrCorruptIndex) {
		t.Errorf("Expected ErrCorruptIndex, got %v", err)
	}
}

// TestLoad_BadMagic verifies a blob with the wrong magic is rejected.
func TestLoad_BadMagic(t *testing.T) {
	dir, _ := savedIndex(t)

	blobPath := filepath.Join(dir, "vectors.bin")
	data, err := os.ReadFile(blobPath)
	if err != nil {
		t.Fatalf("Read blob: %v", err)
	}
	binary.LittleEndian.PutUint32(data[0:4], 0xDEADBEEF)
	if err := os.WriteFile(blobPath, data, 0o644); err != nil {
		t.Fatalf("Write blob: %v", err)
	}

	if _, err := LoadFlat(dir); !errors.Is(err, ErrCorruptIndex) {
		t.Errorf("Expected ErrCorruptIndex, got %v", err)
	}
}

// TestLoad_OverstatedCount verifies a blob whose header declares far more
// vectors than the file holds is rejected before the count drives any
// allocation.
func TestLoad_OverstatedCount(t *testing.T) {
	dir, _ := savedIndex(t)

	blobPath := filepath.Join(dir, "vectors.bin")
	data, err := os.ReadFile(blobPath)
	if err != nil {
		t.Fatalf("Read blob: %v", err)
	}
	binary.LittleEndian.PutUint32(data[12:16], 0xFFFFFF00)
	if err := os.WriteFile(blobPath, data, 0o644); err != nil {
		t.Fatalf("Write blob: %v", err)
	}

	if _, err := LoadFlat(dir); !errors.Is(err, ErrCorruptIndex) {
		t.Errorf("Expected ErrCorruptIndex, got %v", err)
	}
}

// TestLoad_TrailingData verifies extra bytes after the vectors are rejected.
func TestLoad_TrailingData(t *testing.T) {
	dir, _ := savedIndex(t)

	blobPath := filepath.Join(dir, "vectors.bin")
	f, err := os.OpenFile(blobPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("Open blob: %v", err)
	}
	if _, err := f.Write([]byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("Append to blob: %v", err)
	}
	f.Close()

	if _, err := LoadFlat(dir); !errors.Is(err, ErrCorruptIndex) {
		t.Errorf("Expected ErrCorruptIndex, got %v", err)
	}
}

// TestLoad_MissingDirectory verifies loading from a nonexistent location
// surfaces the underlying file error, not corruption.
func TestLoad_MissingDirectory(t *testing.T) {
	_, err := LoadFlat(filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("Expected error for missing directory")
	}
	if errors.Is(err, ErrCorruptIndex) {
		t.Errorf("Missing directory should not report corruption: %v", err)
	}
}

// TestSaveLoad_PreservesUnits verifies unit fields survive persistence.
func TestSaveLoad_PreservesUnits(t *testing.T) {
	dir := t.TempDir()
	f := NewFlat(2)
	units := []chunker.TextUnit{
		{ID: "doc1:0", DocumentID: "doc1", Index: 0, Start: 0, End: 5, Text: "hello"},
		{ID: "doc1:1", DocumentID: "doc1", Index: 1, Start: 3, End: 8, Text: "lo wo"},
	}
	vectors := [][]float32{{1, 0}, {0, 1}}
	if err := f.Build(context.Background(), units, vectors); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := f.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFlat(dir)
	if err != nil {
		t.Fatalf("LoadFlat failed: %v", err)
	}
	gotUnits, gotVectors := loaded.Contents()
	if len(gotUnits) != 2 || len(gotVectors) != 2 {
		t.Fatalf("Expected 2 units and vectors, got %d and %d", len(gotUnits), len(gotVectors))
	}
	for i := range units {
		if gotUnits[i] != units[i] {
			t.Errorf("Unit %d: expected %+v, got %+v", i, units[i], gotUnits[i])
		}
	}
}
