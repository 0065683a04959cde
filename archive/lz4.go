package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"

	"github.com/bananenpampe/equistore"
)

// WriteLZ4 streams the whole archive through an lz4 frame. The result is
// not a zip file anymore; it must be read back with ReadLZ4.
func WriteLZ4(w io.Writer, tensor *equistore.TensorMap, o Options) error {
	lw := lz4.NewWriter(w)
	if err := Write(lw, tensor, o); err != nil {
		return err
	}
	return lw.Close()
}

// ReadLZ4 reads an archive written by WriteLZ4.
func ReadLZ4(r io.Reader, o Options) (*equistore.TensorMap, error) {
	buf, err := io.ReadAll(lz4.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}
	return LoadBuffer(buf, o)
}

// SaveLZ4 writes an lz4-framed archive to a file at path.
func SaveLZ4(path string, tensor *equistore.TensorMap, o Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = WriteLZ4(f, tensor, o)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

// LoadLZ4 reads an lz4-framed archive from the file at path.
func LoadLZ4(path string, o Options) (*equistore.TensorMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLZ4(f, o)
}

// SaveBufferLZ4 serializes an lz4-framed archive into memory.
func SaveBufferLZ4(tensor *equistore.TensorMap, o Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteLZ4(&buf, tensor, o); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
