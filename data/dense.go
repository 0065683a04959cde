package data

import "fmt"

// Dense is the built-in array backend: a row-major contiguous float64 array.
type Dense struct {
	shape   []int
	strides []int
	data    []float64
}

var _ Array = (*Dense)(nil)

// NewDense allocates a zero-filled dense array with the given shape.
func NewDense(shape []int) (*Dense, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	return &Dense{
		shape:   append([]int(nil), shape...),
		strides: rowMajorStrides(shape),
		data:    make([]float64, NumElements(shape)),
	}, nil
}

// DenseFrom wraps an existing float64 slice as a dense array. The slice is
// taken over by the array and must not be modified by the caller afterwards.
func DenseFrom(values []float64, shape []int) (*Dense, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	if len(values) != NumElements(shape) {
		return nil, fmt.Errorf("%w: %d values for shape %v",
			ErrInvalidRegion, len(values), shape)
	}
	return &Dense{
		shape:   append([]int(nil), shape...),
		strides: rowMajorStrides(shape),
		data:    values,
	}, nil
}

func validateShape(shape []int) error {
	if len(shape) == 0 {
		return fmt.Errorf("%w: empty shape", ErrInvalidRegion)
	}
	for _, s := range shape {
		if s < 0 {
			return fmt.Errorf("%w: negative dimension in %v", ErrInvalidRegion, shape)
		}
	}
	return nil
}

func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

// Shape returns the array dimensions.
func (d *Dense) Shape() []int { return d.shape }

// DType returns Float64, the only element kind of the dense backend.
func (d *Dense) DType() DType { return Float64 }

// Origin returns DenseOrigin.
func (d *Dense) Origin() Origin { return DenseOrigin }

// Data returns the underlying values in row-major order.
func (d *Dense) Data() []float64 { return d.data }

// At returns the value at the given multi-index.
func (d *Dense) At(index ...int) float64 {
	return d.data[d.offset(index)]
}

// Set stores a value at the given multi-index. It is exported for backends
// tests and data preparation, not used by the reshaping core.
func (d *Dense) Set(v float64, index ...int) {
	d.data[d.offset(index)] = v
}

func (d *Dense) offset(index []int) int {
	if len(index) != len(d.shape) {
		panic(fmt.Sprintf("dense: index rank %d for shape %v", len(index), d.shape))
	}
	off := 0
	for i, idx := range index {
		off += idx * d.strides[i]
	}
	return off
}

// CreateLike allocates a new dense array with the given shape. The dense
// backend always produces zeroed memory, regardless of the zero flag.
func (d *Dense) CreateLike(shape []int, _ bool) (Array, error) {
	return NewDense(shape)
}

type copyDim struct {
	extent    int
	dstStride int
	srcStride int
}

// CopyRegionFrom copies srcRegion of src into dstRegion of this array.
func (d *Dense) CopyRegionFrom(dstRegion []Range, src Array, srcRegion []Range) error {
	s, ok := src.(*Dense)
	if !ok {
		return fmt.Errorf("%w: cannot copy %q array into dense array",
			ErrIncompatibleBackend, src.Origin().Name())
	}
	if err := checkRegion(d.shape, dstRegion); err != nil {
		return err
	}
	if err := checkRegion(s.shape, srcRegion); err != nil {
		return err
	}

	dstOff, dstExtents, dstStrides := squeezeRegion(dstRegion, d.strides)
	srcOff, srcExtents, srcStrides := squeezeRegion(srcRegion, s.strides)

	if len(dstExtents) != len(srcExtents) {
		return fmt.Errorf("%w: extents %v vs %v", ErrInvalidRegion, dstExtents, srcExtents)
	}
	for i := range dstExtents {
		if dstExtents[i] != srcExtents[i] {
			return fmt.Errorf("%w: extents %v vs %v", ErrInvalidRegion, dstExtents, srcExtents)
		}
	}

	dims := make([]copyDim, len(dstExtents))
	for i := range dims {
		dims[i] = copyDim{extent: dstExtents[i], dstStride: dstStrides[i], srcStride: srcStrides[i]}
	}
	copyRegion(d.data, s.data, dims, dstOff, srcOff)
	return nil
}

// squeezeRegion folds the region start offsets into a base offset and drops
// length-one axes, keeping extents paired with their strides.
func squeezeRegion(region []Range, strides []int) (base int, extents, extStrides []int) {
	for axis, r := range region {
		base += r.Start * strides[axis]
		if n := r.Len(); n != 1 {
			extents = append(extents, n)
			extStrides = append(extStrides, strides[axis])
		}
	}
	return base, extents, extStrides
}

func copyRegion(dst, src []float64, dims []copyDim, dstOff, srcOff int) {
	if len(dims) == 0 {
		dst[dstOff] = src[srcOff]
		return
	}
	head, rest := dims[0], dims[1:]
	if head.extent == 0 {
		return
	}
	if len(rest) == 0 && head.dstStride == 1 && head.srcStride == 1 {
		copy(dst[dstOff:dstOff+head.extent], src[srcOff:srcOff+head.extent])
		return
	}
	for i := 0; i < head.extent; i++ {
		copyRegion(dst, src, rest, dstOff+i*head.dstStride, srcOff+i*head.srcStride)
	}
}
