package npy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrUnsupportedVersion is returned when a payload uses a format
	// version other than 1.0.
	ErrUnsupportedVersion = errors.New("npy: unsupported format version")

	// ErrMalformed is returned when a payload does not parse as a valid
	// npy file or uses a dtype the archive format never produces.
	ErrMalformed = errors.New("npy: malformed data")
)

var magic = []byte("\x93NUMPY")

// header alignment used since numpy 1.9
const headerAlign = 64

// WriteFloat64 writes a C-order little-endian float64 array.
func WriteFloat64(w io.Writer, shape []int, values []float64) error {
	n := 1
	for _, s := range shape {
		n *= s
	}
	if n != len(values) {
		return fmt.Errorf("%w: %d values for shape %v", ErrMalformed, len(values), shape)
	}

	if err := writeHeader(w, "'<f8'", shape); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, values)
}

// ReadFloat64 reads an array written by WriteFloat64.
func ReadFloat64(r io.Reader) ([]int, []float64, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, nil, err
	}
	if h.descr != "<f8" {
		return nil, nil, fmt.Errorf("%w: dtype %q, expected '<f8'", ErrMalformed, h.descr)
	}

	n, err := elementCount(h.shape, 1)
	if err != nil {
		return nil, nil, err
	}
	values, err := readPayload[float64](r, n)
	if err != nil {
		return nil, nil, err
	}
	return h.shape, values, nil
}

// WriteRecords writes a one-dimensional structured array with one
// little-endian int32 field per name. The values are row-major, one row per
// record.
func WriteRecords(w io.Writer, fields []string, rows int, values []int32) error {
	if rows*len(fields) != len(values) {
		return fmt.Errorf("%w: %d values for %d rows of %d fields",
			ErrMalformed, len(values), rows, len(fields))
	}

	var descr strings.Builder
	descr.WriteByte('[')
	for i, name := range fields {
		if i > 0 {
			descr.WriteString(", ")
		}
		fmt.Fprintf(&descr, "('%s', '<i4')", name)
	}
	descr.WriteByte(']')

	if err := writeHeader(w, descr.String(), []int{rows}); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, values)
}

// ReadRecords reads a structured array written by WriteRecords, returning
// the field names and the row-major values.
func ReadRecords(r io.Reader) (fields []string, rows int, values []int32, err error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, 0, nil, err
	}
	if len(h.fields) == 0 {
		return nil, 0, nil, fmt.Errorf("%w: expected a structured dtype, got %q",
			ErrMalformed, h.descr)
	}
	if len(h.shape) != 1 {
		return nil, 0, nil, fmt.Errorf("%w: records shape %v is not one-dimensional",
			ErrMalformed, h.shape)
	}

	rows = h.shape[0]
	n, err := elementCount(h.shape, len(h.fields))
	if err != nil {
		return nil, 0, nil, err
	}
	values, err = readPayload[int32](r, n)
	if err != nil {
		return nil, 0, nil, err
	}
	return h.fields, rows, values, nil
}

// elementCount multiplies the shape dimensions (times rowSize) with overflow
// checking, so a malformed header cannot smuggle a negative or wrapped count
// into an allocation.
func elementCount(shape []int, rowSize int) (int, error) {
	n := rowSize
	for _, s := range shape {
		if s != 0 && n > math.MaxInt/s {
			return 0, fmt.Errorf("%w: element count overflows for shape %v", ErrMalformed, shape)
		}
		n *= s
	}
	return n, nil
}

// payload reads are chunked so a header claiming an absurd element count
// fails on the truncated stream instead of sizing an allocation from
// untrusted input.
const readChunk = 1 << 16

func readPayload[T float64 | int32](r io.Reader, count int) ([]T, error) {
	values := make([]T, 0, min(count, readChunk))
	for len(values) < count {
		chunk := make([]T, min(count-len(values), readChunk))
		if err := binary.Read(r, binary.LittleEndian, chunk); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		values = append(values, chunk...)
	}
	return values, nil
}

func writeHeader(w io.Writer, descr string, shape []int) error {
	var dict strings.Builder
	dict.WriteString("{'descr': ")
	dict.WriteString(descr)
	dict.WriteString(", 'fortran_order': False, 'shape': (")
	for i, s := range shape {
		if i > 0 {
			dict.WriteString(", ")
		}
		dict.WriteString(strconv.Itoa(s))
	}
	if len(shape) == 1 {
		dict.WriteByte(',')
	}
	dict.WriteString("), }")

	// pad with spaces so that magic + version + length + header is a
	// multiple of the alignment, ending with a newline
	unpadded := len(magic) + 4 + dict.Len() + 1
	padding := (headerAlign - unpadded%headerAlign) % headerAlign
	header := dict.String() + strings.Repeat(" ", padding) + "\n"

	if _, err := w.Write(magic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{1, 0}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	_, err := io.WriteString(w, header)
	return err
}

type header struct {
	descr  string   // scalar dtype, empty for structured arrays
	fields []string // structured field names, nil for scalar arrays
	shape  []int
}

func readHeader(r io.Reader) (*header, error) {
	prefix := make([]byte, len(magic)+2)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if string(prefix[:len(magic)]) != string(magic) {
		return nil, fmt.Errorf("%w: bad magic", ErrMalformed)
	}
	major, minor := prefix[len(magic)], prefix[len(magic)+1]
	if major != 1 || minor != 0 {
		return nil, fmt.Errorf("%w: %d.%d", ErrUnsupportedVersion, major, minor)
	}

	var headerLen uint16
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	raw := make([]byte, headerLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return parseHeader(string(raw))
}

func parseHeader(dict string) (*header, error) {
	h := new(header)

	descr, err := dictValue(dict, "descr")
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(descr, "[") {
		h.fields, err = parseFields(descr)
		if err != nil {
			return nil, err
		}
	} else {
		h.descr = strings.Trim(descr, "'\"")
	}

	order, err := dictValue(dict, "fortran_order")
	if err != nil {
		return nil, err
	}
	if order != "False" {
		return nil, fmt.Errorf("%w: fortran order arrays are not supported", ErrMalformed)
	}

	shape, err := dictValue(dict, "shape")
	if err != nil {
		return nil, err
	}
	h.shape, err = parseShape(shape)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// dictValue extracts the raw value of a key from the header dict: either a
// quoted string, a (...) tuple, a [...] list, or a bare literal.
func dictValue(dict, key string) (string, error) {
	marker := "'" + key + "':"
	start := strings.Index(dict, marker)
	if start < 0 {
		return "", fmt.Errorf("%w: header misses %q", ErrMalformed, key)
	}
	rest := strings.TrimLeft(dict[start+len(marker):], " ")
	if rest == "" {
		return "", fmt.Errorf("%w: header misses %q value", ErrMalformed, key)
	}

	switch rest[0] {
	case '\'', '"':
		end := strings.IndexByte(rest[1:], rest[0])
		if end < 0 {
			return "", fmt.Errorf("%w: unterminated string for %q", ErrMalformed, key)
		}
		return rest[:end+2], nil
	case '(', '[':
		closing := byte(')')
		if rest[0] == '[' {
			closing = ']'
		}
		end := strings.IndexByte(rest, closing)
		if end < 0 {
			return "", fmt.Errorf("%w: unterminated value for %q", ErrMalformed, key)
		}
		return rest[:end+1], nil
	default:
		end := strings.IndexAny(rest, ",}")
		if end < 0 {
			end = len(rest)
		}
		return strings.TrimSpace(rest[:end]), nil
	}
}

func parseShape(tuple string) ([]int, error) {
	inner := strings.Trim(tuple, "() ")
	inner = strings.TrimRight(inner, ", ")
	if inner == "" {
		return nil, fmt.Errorf("%w: zero-dimensional arrays are not supported", ErrMalformed)
	}

	parts := strings.Split(inner, ",")
	shape := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad shape %q", ErrMalformed, tuple)
		}
		shape[i] = n
	}
	return shape, nil
}

// parseFields extracts the field names from a structured descr like
// [('structure', '<i4'), ('center', '<i4')], checking every field is a
// little-endian int32.
func parseFields(list string) ([]string, error) {
	var fields []string
	rest := list
	for {
		open := strings.IndexByte(rest, '(')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open:], ')')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated field in %q", ErrMalformed, list)
		}
		entry := rest[open+1 : open+end]
		rest = rest[open+end+1:]

		parts := strings.SplitN(entry, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: bad field %q", ErrMalformed, entry)
		}
		name := strings.Trim(strings.TrimSpace(parts[0]), "'\"")
		dtype := strings.Trim(strings.TrimSpace(parts[1]), "'\"")
		if dtype != "<i4" {
			return nil, fmt.Errorf("%w: field %q has dtype %q, expected '<i4'",
				ErrMalformed, name, dtype)
		}
		fields = append(fields, name)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty structured dtype %q", ErrMalformed, list)
	}
	return fields, nil
}
