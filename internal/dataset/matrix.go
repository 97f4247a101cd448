// Package dataset implements the dense-matrix data model and the two
// on-disk format decoders (MNIST idx3-ubyte, SIFT fvecs) that feed the
// index families.
package dataset

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/therealutkarshpriyadarshi/annsearch/internal/annerrors"
)

// Matrix is an immutable dense table: n rows, d columns, stored row-major
// in a single contiguous buffer. All rows share d.
type Matrix struct {
	N int
	D int
	A []float32
}

// NewMatrix allocates a zeroed n x d matrix.
func NewMatrix(n, d int) Matrix {
	return Matrix{N: n, D: d, A: make([]float32, n*d)}
}

// Row returns the length-d span for row i. The returned slice aliases the
// matrix's backing array; callers must not retain it past the matrix's
// lifetime if the matrix is later mutated (it never is, post-build).
func (m Matrix) Row(i int) []float32 {
	return m.A[i*m.D : (i+1)*m.D]
}

// validate checks the buffer-length invariant: len(A) == n*d.
func (m Matrix) validate() error {
	if m.N < 0 || m.D < 0 {
		return fmt.Errorf("dataset: negative shape n=%d d=%d: %w", m.N, m.D, annerrors.ErrMalformedInput)
	}
	if len(m.A) != m.N*m.D {
		return fmt.Errorf("dataset: buffer length %d does not match n*d=%d: %w", len(m.A), m.N*m.D, annerrors.ErrMalformedInput)
	}
	return nil
}

const mnistMagic = 0x00000803

// LoadMNIST reads an idx3-ubyte image file: a big-endian header (magic,
// count, rows, cols) followed by n*rows*cols unsigned bytes. When
// normalize is true, pixels are scaled to [0,1]; otherwise they are left
// as raw [0,255] floats.
func LoadMNIST(path string, normalize bool) (Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return Matrix{}, fmt.Errorf("dataset: cannot open MNIST file %q: %w: %v", path, annerrors.ErrIO, err)
	}
	defer f.Close()

	var header [4]uint32
	for i := range header {
		if err := binary.Read(f, binary.BigEndian, &header[i]); err != nil {
			return Matrix{}, fmt.Errorf("dataset: MNIST header read failed: %w: %v", annerrors.ErrMalformedInput, err)
		}
	}
	magic, n, rows, cols := header[0], header[1], header[2], header[3]

	if magic != mnistMagic {
		return Matrix{}, fmt.Errorf("dataset: MNIST wrong magic 0x%08x (expected 0x%08x): %w", magic, mnistMagic, annerrors.ErrMalformedInput)
	}
	if rows == 0 || cols == 0 {
		return Matrix{}, fmt.Errorf("dataset: MNIST invalid image size %dx%d: %w", rows, cols, annerrors.ErrMalformedInput)
	}

	d := int(rows) * int(cols)
	m := NewMatrix(int(n), d)

	buf := make([]byte, d)
	for i := 0; i < m.N; i++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			return Matrix{}, fmt.Errorf("dataset: MNIST unexpected EOF reading image %d: %w: %v", i, annerrors.ErrMalformedInput, err)
		}
		row := m.Row(i)
		for j, px := range buf {
			if normalize {
				row[j] = float32(px) / 255.0
			} else {
				row[j] = float32(px)
			}
		}
	}

	if err := m.validate(); err != nil {
		return Matrix{}, err
	}
	return m, nil
}

// LoadFvecs reads a little-endian SIFT fvecs stream: records of
// [int32 dim][dim float32]. EOF between records is normal termination;
// EOF inside a record is an error. All records must share the same
// dimension.
func LoadFvecs(path string) (Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return Matrix{}, fmt.Errorf("dataset: cannot open fvecs file %q: %w: %v", path, annerrors.ErrIO, err)
	}
	defer f.Close()

	var rows [][]float32
	commonD := -1

	for {
		var d int32
		if err := binary.Read(f, binary.LittleEndian, &d); err != nil {
			if err == io.EOF {
				break
			}
			return Matrix{}, fmt.Errorf("dataset: fvecs dimension read failed: %w: %v", annerrors.ErrMalformedInput, err)
		}
		if d <= 0 || d > 65536 {
			return Matrix{}, fmt.Errorf("dataset: fvecs invalid dimension %d: %w", d, annerrors.ErrMalformedInput)
		}
		if commonD == -1 {
			commonD = int(d)
		} else if int(d) != commonD {
			return Matrix{}, fmt.Errorf("dataset: fvecs mixed dimensions %d vs %d are not supported: %w", d, commonD, annerrors.ErrMalformedInput)
		}

		row := make([]float32, d)
		if err := binary.Read(f, binary.LittleEndian, row); err != nil {
			return Matrix{}, fmt.Errorf("dataset: fvecs unexpected EOF inside a vector: %w: %v", annerrors.ErrMalformedInput, err)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return Matrix{}, fmt.Errorf("dataset: fvecs file contains zero vectors: %w", annerrors.ErrMalformedInput)
	}

	m := NewMatrix(len(rows), commonD)
	for i, row := range rows {
		copy(m.Row(i), row)
	}
	if err := m.validate(); err != nil {
		return Matrix{}, err
	}
	return m, nil
}
