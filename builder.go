// Package equistore provides labeled, block-sparse tensor storage.
//
// This file implements fluent builder APIs for assembling blocks and maps.
// Builders are immutable - each method returns a new builder with the updated
// configuration.
package equistore

import (
	"fmt"
	"slices"

	"github.com/bananenpampe/equistore/data"
	"github.com/bananenpampe/equistore/labels"
)

// Block creates a new TensorBlock builder.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration.
//
// Example:
//
//	block, err := equistore.Block().
//	    Samples(samples).
//	    Properties(properties).
//	    Dense(1.0, 2.0, 3.0).
//	    Build()
func Block() BlockBuilder {
	return BlockBuilder{}
}

// BlockBuilder is an immutable fluent builder for TensorBlock.
// Each method returns a new builder with the updated configuration.
type BlockBuilder struct {
	samples    *labels.Labels
	components []*labels.Labels
	properties *labels.Labels
	values     data.Array
	dense      []float64
	gradients  []gradientSpec
}

type gradientSpec struct {
	parameter string
	builder   BlockBuilder
}

// Samples sets the sample labels (rows of the value array).
func (b BlockBuilder) Samples(l *labels.Labels) BlockBuilder {
	b.samples = l
	return b
}

// Components appends component labels (intermediate axes of the value array).
func (b BlockBuilder) Components(cs ...*labels.Labels) BlockBuilder {
	b.components = append(slices.Clone(b.components), cs...)
	return b
}

// Properties sets the property labels (columns of the value array).
func (b BlockBuilder) Properties(l *labels.Labels) BlockBuilder {
	b.properties = l
	return b
}

// Values sets the value array. The array shape must match the labels set on
// the builder.
func (b BlockBuilder) Values(a data.Array) BlockBuilder {
	b.values = a
	b.dense = nil
	return b
}

// Dense sets the values from a flat row-major float64 slice. The shape is
// derived from the sample, component and property labels at Build time.
func (b BlockBuilder) Dense(values ...float64) BlockBuilder {
	b.dense = values
	b.values = nil
	return b
}

// Gradient attaches a gradient with respect to the named parameter. The
// gradient inherits the parent block's properties unless the gradient
// builder sets its own.
func (b BlockBuilder) Gradient(parameter string, g BlockBuilder) BlockBuilder {
	b.gradients = append(slices.Clone(b.gradients), gradientSpec{parameter: parameter, builder: g})
	return b
}

// Build creates the TensorBlock.
func (b BlockBuilder) Build() (*TensorBlock, error) {
	values := b.values
	if values == nil && b.dense == nil {
		return nil, fmt.Errorf("%w: block builder needs values", ErrShapeMismatch)
	}
	if values == nil {
		if b.samples == nil || b.properties == nil {
			return nil, fmt.Errorf("%w: dense values need samples and properties labels", ErrShapeMismatch)
		}
		shape := mergedShape(b.samples.Count(), b.components, b.properties.Count())
		var err error
		values, err = data.DenseFrom(b.dense, shape)
		if err != nil {
			return nil, err
		}
	}

	block, err := NewBlock(values, b.samples, b.components, b.properties)
	if err != nil {
		return nil, err
	}

	for _, g := range b.gradients {
		gb := g.builder
		if gb.properties == nil {
			gb = gb.Properties(block.Properties())
		}
		gradient, err := gb.Build()
		if err != nil {
			return nil, err
		}
		if err := block.AddGradient(g.parameter, gradient); err != nil {
			return nil, err
		}
	}

	return block, nil
}

// MustBuild creates the TensorBlock, panicking on error.
func (b BlockBuilder) MustBuild() *TensorBlock {
	block, err := b.Build()
	if err != nil {
		panic(err)
	}
	return block
}

// Map creates a new TensorMap builder with the given key dimension names.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration.
//
// Example:
//
//	tensor, err := equistore.Map("species").
//	    Add([]int32{1}, blockHydrogen).
//	    Add([]int32{8}, blockOxygen).
//	    Build()
func Map(keyNames ...string) TensorMapBuilder {
	return TensorMapBuilder{keyNames: keyNames}
}

// TensorMapBuilder is an immutable fluent builder for TensorMap.
// Each method returns a new builder with the updated configuration.
type TensorMapBuilder struct {
	keyNames []string
	keys     [][]int32
	blocks   []*TensorBlock
	err      error
}

// Add appends a key entry and the block it maps to. The key must have one
// value per key dimension name.
func (b TensorMapBuilder) Add(key []int32, block *TensorBlock) TensorMapBuilder {
	b.keys = append(slices.Clone(b.keys), key)
	b.blocks = append(slices.Clone(b.blocks), block)
	return b
}

// AddBuilder appends a key entry and builds the block from the given
// builder. Build errors surface from Build.
func (b TensorMapBuilder) AddBuilder(key []int32, block BlockBuilder) TensorMapBuilder {
	built, err := block.Build()
	if err != nil {
		b.keys = append(slices.Clone(b.keys), key)
		b.blocks = append(slices.Clone(b.blocks), nil)
		b.err = err
		return b
	}
	return b.Add(key, built)
}

// Build creates the TensorMap.
func (b TensorMapBuilder) Build() (*TensorMap, error) {
	if b.err != nil {
		return nil, b.err
	}
	keys, err := labels.New(b.keyNames, b.keys)
	if err != nil {
		return nil, err
	}
	return New(keys, b.blocks)
}

// MustBuild creates the TensorMap, panicking on error.
func (b TensorMapBuilder) MustBuild() *TensorMap {
	tensor, err := b.Build()
	if err != nil {
		panic(err)
	}
	return tensor
}
