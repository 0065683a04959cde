package equistore

import (
	"fmt"

	"github.com/bananenpampe/equistore/data"
	"github.com/bananenpampe/equistore/labels"
)

// TensorBlock binds one numeric array to the label sets describing its axes:
// samples along axis 0, zero or more components along the middle axes, and
// properties along the last axis.
//
// A block can hold gradients of its values with respect to named parameters.
// Gradient blocks have their own samples but share the parent's component
// and property structure, and never carry gradients themselves.
//
// Blocks exclusively own their array and their gradients. Labels are
// immutable and may be shared freely.
type TensorBlock struct {
	values     data.Array
	samples    *labels.Labels
	components []*labels.Labels
	properties *labels.Labels

	gradients     map[string]*TensorBlock
	gradientNames []string

	isGradient bool
	owned      bool
}

// NewBlock creates a block from an array and the labels for each of its
// axes. The array rank must be 2+len(components) and every axis size must
// equal the corresponding label count.
func NewBlock(values data.Array, samples *labels.Labels, components []*labels.Labels, properties *labels.Labels) (*TensorBlock, error) {
	shape := values.Shape()
	if len(shape) != 2+len(components) {
		return nil, fmt.Errorf("%w: array rank %d for %d component label sets",
			ErrShapeMismatch, len(shape), len(components))
	}
	if shape[0] != samples.Count() {
		return nil, shapeError("samples axis", samples.Count(), shape[0])
	}
	for i, component := range components {
		if shape[1+i] != component.Count() {
			return nil, shapeError(fmt.Sprintf("component axis %d", i), component.Count(), shape[1+i])
		}
	}
	if shape[len(shape)-1] != properties.Count() {
		return nil, shapeError("properties axis", properties.Count(), shape[len(shape)-1])
	}

	return &TensorBlock{
		values:     values,
		samples:    samples,
		components: append([]*labels.Labels(nil), components...),
		properties: properties,
		gradients:  make(map[string]*TensorBlock),
	}, nil
}

// Values returns the block's array.
func (b *TensorBlock) Values() data.Array { return b.values }

// Samples returns the labels of axis 0.
func (b *TensorBlock) Samples() *labels.Labels { return b.samples }

// Components returns the labels of the middle axes, in axis order.
// The returned slice must not be modified.
func (b *TensorBlock) Components() []*labels.Labels { return b.components }

// Properties returns the labels of the last axis.
func (b *TensorBlock) Properties() *labels.Labels { return b.properties }

// AddGradient registers a gradient of this block's values with respect to
// the given parameter. The gradient keeps its own samples but must share
// this block's component and property labels and array backend.
func (b *TensorBlock) AddGradient(parameter string, gradient *TensorBlock) error {
	if b.isGradient {
		return fmt.Errorf("%w: parameter %q", ErrNestedGradient, parameter)
	}
	if len(gradient.gradients) > 0 {
		return fmt.Errorf("%w: gradient for %q has gradients of its own",
			ErrNestedGradient, parameter)
	}
	if gradient.owned {
		return fmt.Errorf("%w: gradient for %q", ErrBlockInUse, parameter)
	}
	if _, exists := b.gradients[parameter]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateGradient, parameter)
	}
	if !data.SameBackend(b.values, gradient.values) {
		return fmt.Errorf("%w: block uses %q, gradient for %q uses %q",
			data.ErrIncompatibleBackend, b.values.Origin().Name(),
			parameter, gradient.values.Origin().Name())
	}
	if len(gradient.components) != len(b.components) {
		return fmt.Errorf("%w: gradient for %q has %d component label sets, parent has %d",
			ErrShapeMismatch, parameter, len(gradient.components), len(b.components))
	}
	for i := range b.components {
		if !gradient.components[i].Equal(b.components[i]) {
			return fmt.Errorf("%w: gradient for %q differs from parent on component %d",
				ErrShapeMismatch, parameter, i)
		}
	}
	if !gradient.properties.Equal(b.properties) {
		return fmt.Errorf("%w: gradient for %q differs from parent on properties",
			ErrShapeMismatch, parameter)
	}

	gradient.isGradient = true
	gradient.owned = true
	b.gradients[parameter] = gradient
	b.gradientNames = append(b.gradientNames, parameter)
	return nil
}

// GradientList returns the gradient parameters in registration order.
func (b *TensorBlock) GradientList() []string {
	return append([]string(nil), b.gradientNames...)
}

// Gradient returns the gradient registered for the given parameter.
func (b *TensorBlock) Gradient(parameter string) (*TensorBlock, error) {
	gradient, ok := b.gradients[parameter]
	if !ok {
		return nil, fmt.Errorf("%w: no gradient for parameter %q", ErrNotFound, parameter)
	}
	return gradient, nil
}

// HasGradient reports whether a gradient is registered for the parameter.
func (b *TensorBlock) HasGradient(parameter string) bool {
	_, ok := b.gradients[parameter]
	return ok
}

// Copy returns a deep copy of the block and its gradients. The data is
// duplicated through the array backend; labels are shared by reference
// since they are immutable. The copy has no owner.
func (b *TensorBlock) Copy() (*TensorBlock, error) {
	shape := b.values.Shape()
	values, err := b.values.CreateLike(shape, false)
	if err != nil {
		return nil, err
	}
	if err := values.CopyRegionFrom(data.Full(shape), b.values, data.Full(shape)); err != nil {
		return nil, err
	}

	clone, err := NewBlock(values, b.samples, b.components, b.properties)
	if err != nil {
		return nil, err
	}
	clone.isGradient = b.isGradient

	for _, parameter := range b.gradientNames {
		gradient, err := b.gradients[parameter].Copy()
		if err != nil {
			return nil, err
		}
		gradient.isGradient = false
		if err := clone.AddGradient(parameter, gradient); err != nil {
			return nil, err
		}
	}
	return clone, nil
}
