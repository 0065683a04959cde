package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/bananenpampe/equistore"
	"github.com/bananenpampe/equistore/internal/npy"
	"github.com/bananenpampe/equistore/labels"
)

var (
	// ErrCorruptArchive is returned when an archive is missing entries
	// or an entry does not parse.
	ErrCorruptArchive = errors.New("archive: corrupt archive")

	// ErrUnsupportedVersion is returned when an npy entry uses a format
	// version this package cannot read.
	ErrUnsupportedVersion = npy.ErrUnsupportedVersion
)

// Save writes the tensor map to a file at path.
func Save(path string, tensor *equistore.TensorMap, o Options) error {
	o = o.withDefaults()
	start := time.Now()

	f, err := os.Create(path)
	if err != nil {
		o.Logger.LogSave(context.Background(), path, 0, err)
		o.Metrics.RecordSave(0, time.Since(start), err)
		return err
	}

	err = Write(f, tensor, o)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	o.Logger.LogSave(context.Background(), path, tensor.Len(), err)
	o.Metrics.RecordSave(tensor.Len(), time.Since(start), err)
	return err
}

// Load reads a tensor map from the file at path.
func Load(path string, o Options) (*equistore.TensorMap, error) {
	o = o.withDefaults()
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		o.Logger.LogLoad(context.Background(), path, 0, err)
		o.Metrics.RecordLoad(0, time.Since(start), err)
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	tensor, err := Read(f, fi.Size(), o)
	blocks := 0
	if tensor != nil {
		blocks = tensor.Len()
	}
	o.Logger.LogLoad(context.Background(), path, blocks, err)
	o.Metrics.RecordLoad(blocks, time.Since(start), err)
	return tensor, err
}

// SaveBuffer serializes the tensor map into memory.
func SaveBuffer(tensor *equistore.TensorMap, o Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, tensor, o); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LoadBuffer reads a tensor map from an in-memory archive.
func LoadBuffer(buf []byte, o Options) (*equistore.TensorMap, error) {
	return Read(bytes.NewReader(buf), int64(len(buf)), o)
}

// Write streams the archive to w.
func Write(w io.Writer, tensor *equistore.TensorMap, o Options) error {
	o = o.withDefaults()

	zw := zip.NewWriter(w)
	method := zip.Store
	if o.Compression == Deflate {
		method = zip.Deflate
		zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, flate.DefaultCompression)
		})
	}
	aw := &archiveWriter{zw: zw, method: method}

	if err := aw.labels("keys.npy", tensor.Keys()); err != nil {
		return err
	}
	for i := 0; i < tensor.Len(); i++ {
		block, err := tensor.BlockByID(i)
		if err != nil {
			return err
		}
		prefix := fmt.Sprintf("blocks/%d", i)
		if err := aw.block(prefix, block); err != nil {
			return err
		}
		if err := aw.labels(prefix+"/properties.npy", block.Properties()); err != nil {
			return err
		}
	}
	return zw.Close()
}

// Read parses an archive from r.
func Read(r io.ReaderAt, size int64, o Options) (*equistore.TensorMap, error) {
	o = o.withDefaults()

	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}
	zr.RegisterDecompressor(zip.Deflate, func(in io.Reader) io.ReadCloser {
		return flate.NewReader(in)
	})

	ar := &archiveReader{
		entries: make(map[string]*zip.File, len(zr.File)),
		arrays:  o.Arrays,
	}
	for _, f := range zr.File {
		ar.entries[f.Name] = f
	}

	keys, err := ar.labels("keys.npy")
	if err != nil {
		return nil, err
	}

	blocks := make([]*equistore.TensorBlock, keys.Count())
	for i := range blocks {
		prefix := fmt.Sprintf("blocks/%d", i)
		properties, err := ar.labels(prefix + "/properties.npy")
		if err != nil {
			return nil, err
		}
		blocks[i], err = ar.block(prefix, properties, true)
		if err != nil {
			return nil, err
		}
	}

	tensor, err := equistore.New(keys, blocks)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}
	return tensor, nil
}

type archiveWriter struct {
	zw     *zip.Writer
	method uint16
}

func (w *archiveWriter) entry(name string) (io.Writer, error) {
	return w.zw.CreateHeader(&zip.FileHeader{Name: name, Method: w.method})
}

func (w *archiveWriter) labels(name string, l *labels.Labels) error {
	out, err := w.entry(name)
	if err != nil {
		return err
	}

	flat := make([]int32, 0, l.Count()*l.Size())
	for i := 0; i < l.Count(); i++ {
		flat = append(flat, l.Row(i)...)
	}
	return npy.WriteRecords(out, l.Names(), l.Count(), flat)
}

// rawData is the part of a buffer backend the writer needs: the values in
// row-major order. The built-in dense backend satisfies it.
type rawData interface {
	Data() []float64
}

func (w *archiveWriter) block(prefix string, block *equistore.TensorBlock) error {
	values := block.Values()
	raw, ok := values.(rawData)
	if !ok {
		return fmt.Errorf("archive: %q arrays do not expose raw data for saving",
			values.Origin().Name())
	}

	out, err := w.entry(prefix + "/values.npy")
	if err != nil {
		return err
	}
	if err := npy.WriteFloat64(out, values.Shape(), raw.Data()); err != nil {
		return err
	}

	if err := w.labels(prefix+"/samples.npy", block.Samples()); err != nil {
		return err
	}
	for j, component := range block.Components() {
		if err := w.labels(fmt.Sprintf("%s/components/%d.npy", prefix, j), component); err != nil {
			return err
		}
	}

	for _, parameter := range block.GradientList() {
		gradient, err := block.Gradient(parameter)
		if err != nil {
			return err
		}
		if err := w.block(prefix+"/gradients/"+parameter, gradient); err != nil {
			return err
		}
	}
	return nil
}

type archiveReader struct {
	entries map[string]*zip.File
	arrays  ArrayCreator
}

func (r *archiveReader) open(name string) (io.ReadCloser, error) {
	f, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing entry %s", ErrCorruptArchive, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: entry %s: %w", ErrCorruptArchive, name, err)
	}
	return rc, nil
}

// wrap attaches entry context to a parse error, keeping the version
// sentinel visible and marking everything else corrupt.
func wrap(name string, err error) error {
	if errors.Is(err, npy.ErrUnsupportedVersion) || errors.Is(err, ErrCorruptArchive) {
		return fmt.Errorf("entry %s: %w", name, err)
	}
	return fmt.Errorf("%w: entry %s: %w", ErrCorruptArchive, name, err)
}

func (r *archiveReader) labels(name string) (*labels.Labels, error) {
	rc, err := r.open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	fields, rows, flat, err := npy.ReadRecords(rc)
	if err != nil {
		return nil, wrap(name, err)
	}

	entries := make([][]int32, rows)
	for i := range entries {
		entries[i] = flat[i*len(fields) : (i+1)*len(fields)]
	}
	l, err := labels.New(fields, entries)
	if err != nil {
		return nil, wrap(name, err)
	}
	return l, nil
}

func (r *archiveReader) block(prefix string, properties *labels.Labels, withGradients bool) (*equistore.TensorBlock, error) {
	name := prefix + "/values.npy"
	rc, err := r.open(name)
	if err != nil {
		return nil, err
	}
	shape, flat, err := npy.ReadFloat64(rc)
	rc.Close()
	if err != nil {
		return nil, wrap(name, err)
	}
	if len(shape) < 2 {
		return nil, fmt.Errorf("%w: entry %s: values need at least 2 dimensions, got %d",
			ErrCorruptArchive, name, len(shape))
	}

	values, err := r.arrays(shape, flat)
	if err != nil {
		return nil, err
	}

	samples, err := r.labels(prefix + "/samples.npy")
	if err != nil {
		return nil, err
	}

	components := make([]*labels.Labels, len(shape)-2)
	for j := range components {
		components[j], err = r.labels(fmt.Sprintf("%s/components/%d.npy", prefix, j))
		if err != nil {
			return nil, err
		}
	}

	block, err := equistore.NewBlock(values, samples, components, properties)
	if err != nil {
		return nil, fmt.Errorf("%w: block %s: %w", ErrCorruptArchive, prefix, err)
	}

	if withGradients {
		for _, parameter := range r.gradientParameters(prefix) {
			gradient, err := r.block(prefix+"/gradients/"+parameter, properties, false)
			if err != nil {
				return nil, err
			}
			if err := block.AddGradient(parameter, gradient); err != nil {
				return nil, fmt.Errorf("%w: block %s: %w", ErrCorruptArchive, prefix, err)
			}
		}
	}
	return block, nil
}

// gradientParameters lists the gradient parameters stored under a block
// prefix, in sorted order.
func (r *archiveReader) gradientParameters(prefix string) []string {
	marker := prefix + "/gradients/"

	seen := make(map[string]struct{})
	for name := range r.entries {
		if !strings.HasPrefix(name, marker) || !strings.HasSuffix(name, "/values.npy") {
			continue
		}
		parameter, _, _ := strings.Cut(name[len(marker):], "/")
		seen[parameter] = struct{}{}
	}

	parameters := make([]string, 0, len(seen))
	for parameter := range seen {
		parameters = append(parameters, parameter)
	}
	sort.Strings(parameters)
	return parameters
}
