package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mike-a-ellis/docqa/internal/chunker"
)

// Persisted layout: a vector blob plus a metadata file listing the units in
// the same order as the vectors in the blob. Load rejects any count mismatch
// between the two.
const (
	vectorsFile = "vectors.bin"
	unitsFile   = "units.json"

	blobMagic   = uint32(0x44514649) // "DQFI"
	blobVersion = uint32(1)
)

// indexMeta is the JSON sidecar persisted next to the vector blob.
type indexMeta struct {
	Dimension int                `json:"dimension"`
	Metric    string             `json:"metric"`
	Count     int                `json:"count"`
	Units     []chunker.TextUnit `json:"units"`
}

// Save serializes the index into the given directory, creating it if needed.
// Saving an empty index is rejected; Save is only meaningful after Build.
func (f *Flat) Save(location string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.units) == 0 {
		return ErrEmptyInput
	}
	if err := os.MkdirAll(location, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	if err := f.writeBlob(filepath.Join(location, vectorsFile)); err != nil {
		return err
	}

	meta := indexMeta{
		Dimension: f.dimension,
		Metric:    f.metric,
		Count:     len(f.units),
		Units:     f.units,
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal unit metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(location, unitsFile), data, 0o644); err != nil {
		return fmt.Errorf("write unit metadata: %w", err)
	}
	return nil
}

func (f *Flat) writeBlob(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vector blob: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	header := []uint32{blobMagic, blobVersion, uint32(f.dimension), uint32(len(f.vectors))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write blob header: %w", err)
		}
	}
	for _, vec := range f.vectors {
		if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
			return fmt.Errorf("write vectors: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush vector blob: %w", err)
	}
	return nil
}

// LoadFlat deserializes an index previously written by Save. It fails with
// ErrCorruptIndex when the vector count does not match the unit metadata
// count, or when the blob is malformed.
func LoadFlat(location string) (*Flat, error) {
	metaData, err := os.ReadFile(filepath.Join(location, unitsFile))
	if err != nil {
		return nil, fmt.Errorf("read unit metadata: %w", err)
	}
	var meta indexMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, fmt.Errorf("%w: unit metadata: %v", ErrCorruptIndex, err)
	}
	if meta.Count != len(meta.Units) {
		return nil, fmt.Errorf("%w: metadata declares %d units but lists %d",
			ErrCorruptIndex, meta.Count, len(meta.Units))
	}
	if meta.Metric != MetricInnerProduct {
		return nil, fmt.Errorf("%w: unsupported metric %q", ErrCorruptIndex, meta.Metric)
	}

	vectors, dim, err := readBlob(filepath.Join(location, vectorsFile))
	if err != nil {
		return nil, err
	}
	if dim != meta.Dimension {
		return nil, fmt.Errorf("%w: blob dimension %d does not match metadata dimension %d",
			ErrCorruptIndex, dim, meta.Dimension)
	}
	if len(vectors) != len(meta.Units) {
		return nil, fmt.Errorf("%w: %d vectors but %d units", ErrCorruptIndex, len(vectors), len(meta.Units))
	}

	f := NewFlat(meta.Dimension)
	f.units = meta.Units
	f.vectors = vectors
	return f, nil
}

func readBlob(path string) ([][]float32, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open vector blob: %w", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	var header [4]uint32
	for i := range header {
		if err := binary.Read(r, binary.LittleEndian, &header[i]); err != nil {
			return nil, 0, fmt.Errorf("%w: blob header: %v", ErrCorruptIndex, err)
		}
	}
	if header[0] != blobMagic {
		return nil, 0, fmt.Errorf("%w: bad magic %#x", ErrCorruptIndex, header[0])
	}
	if header[1] != blobVersion {
		return nil, 0, fmt.Errorf("%w: unsupported blob version %d", ErrCorruptIndex, header[1])
	}
	dim, count := int(header[2]), int(header[3])
	if dim <= 0 {
		return nil, 0, fmt.Errorf("%w: non-positive dimension %d", ErrCorruptIndex, dim)
	}

	// The declared count is untrusted input; cross-check it against the file
	// size before it drives any allocation.
	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat vector blob: %w", err)
	}
	want := int64(len(header))*4 + int64(count)*int64(dim)*4
	if info.Size() != want {
		return nil, 0, fmt.Errorf("%w: blob declares %d vectors of dimension %d (%d bytes) but holds %d bytes",
			ErrCorruptIndex, count, dim, want, info.Size())
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, 0, fmt.Errorf("%w: truncated vector blob at %d/%d: %v", ErrCorruptIndex, i, count, err)
		}
		vectors[i] = vec
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, 0, fmt.Errorf("%w: trailing data after %d vectors", ErrCorruptIndex, count)
	}
	return vectors, dim, nil
}
