package equistore

import (
	"fmt"

	"github.com/bananenpampe/equistore/data"
	"github.com/bananenpampe/equistore/labels"
)

// ComponentsToProperties moves the named component dimensions of every
// block onto its property axis. There is no cross-block merge: each block
// is transformed independently. The new properties are the Cartesian
// product of the moved component entries with the old properties, moved
// dimensions varying slower; the total element count of each block is
// preserved.
//
// The receiver is never modified; a new TensorMap is returned.
func (t *TensorMap) ComponentsToProperties(dimensions []string) (*TensorMap, error) {
	result, err := t.componentsToProperties(dimensions)
	t.logReshape("components_to_properties", dimensions, result, err)
	if err != nil {
		return nil, err
	}
	result.logger = t.logger
	return result, nil
}

func (t *TensorMap) componentsToProperties(dimensions []string) (*TensorMap, error) {
	if len(dimensions) == 0 {
		return nil, fmt.Errorf("%w: no component dimensions given", ErrNotFound)
	}

	blocks := make([]*TensorBlock, len(t.blocks))
	for i, block := range t.blocks {
		transformed, err := block.componentsToProperties(dimensions)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		blocks[i] = transformed
	}
	return New(t.keys, blocks)
}

func (b *TensorBlock) componentsToProperties(dimensions []string) (*TensorBlock, error) {
	requested := make(map[string]struct{}, len(dimensions))
	for _, name := range dimensions {
		requested[name] = struct{}{}
	}

	// partition components into moved and remaining, by axis order; a
	// component label set is moved as a whole or not at all
	var movedIdx []int
	var remaining []*labels.Labels
	covered := make(map[string]struct{})
	for i, component := range b.components {
		named := 0
		for _, name := range component.Names() {
			if _, ok := requested[name]; ok {
				named++
				covered[name] = struct{}{}
			}
		}
		switch named {
		case 0:
			remaining = append(remaining, component)
		case component.Size():
			movedIdx = append(movedIdx, i)
		default:
			return nil, fmt.Errorf("%w: component %v is only partially moved",
				ErrShapeMismatch, component.Names())
		}
	}
	for _, name := range dimensions {
		if _, ok := covered[name]; !ok {
			return nil, fmt.Errorf("%w: component dimension %q", ErrNotFound, name)
		}
	}

	newProperties, err := b.movedProperties(movedIdx)
	if err != nil {
		return nil, err
	}

	oldWidth := b.properties.Count()
	values, err := b.values.CreateLike(
		mergedShape(b.samples.Count(), remaining, newProperties.Count()), false)
	if err != nil {
		return nil, err
	}

	srcShape := b.values.Shape()
	dstShape := values.Shape()
	for flat, combo := range movedCombinations(b.components, movedIdx) {
		srcRegion := data.Full(srcShape)
		for m, idx := range movedIdx {
			srcRegion[1+idx] = data.Range{Start: combo[m], End: combo[m] + 1}
		}

		dstRegion := data.Full(dstShape)
		dstRegion[len(dstRegion)-1] = data.Range{Start: flat * oldWidth, End: (flat + 1) * oldWidth}

		if err := values.CopyRegionFrom(dstRegion, b.values, srcRegion); err != nil {
			return nil, err
		}
	}

	result, err := NewBlock(values, b.samples, remaining, newProperties)
	if err != nil {
		return nil, err
	}

	for _, parameter := range b.gradientNames {
		gradient, err := b.gradients[parameter].componentsToProperties(dimensions)
		if err != nil {
			return nil, fmt.Errorf("gradient %q: %w", parameter, err)
		}
		if err := result.AddGradient(parameter, gradient); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// movedProperties builds the property labels after moving the given
// components: the Cartesian product of their entries (slower-varying)
// with the old properties (faster-varying).
func (b *TensorBlock) movedProperties(movedIdx []int) (*labels.Labels, error) {
	names := make([]string, 0, len(movedIdx)+b.properties.Size())
	for _, idx := range movedIdx {
		names = append(names, b.components[idx].Names()...)
	}
	names = append(names, b.properties.Names()...)

	var entries [][]int32
	for _, combo := range movedCombinations(b.components, movedIdx) {
		prefix := make([]int32, 0, len(names))
		for m, idx := range movedIdx {
			prefix = append(prefix, b.components[idx].Row(combo[m])...)
		}
		for p := 0; p < b.properties.Count(); p++ {
			entries = append(entries, append(append([]int32(nil), prefix...), b.properties.Row(p)...))
		}
	}
	return labels.New(names, entries)
}

// movedCombinations enumerates the multi-indices over the moved components
// in row-major order (first moved component varying slowest), paired with
// their flattened index.
func movedCombinations(components []*labels.Labels, movedIdx []int) func(func(int, []int) bool) {
	extents := make([]int, len(movedIdx))
	total := 1
	for m, idx := range movedIdx {
		extents[m] = components[idx].Count()
		total *= extents[m]
	}

	return func(yield func(int, []int) bool) {
		combo := make([]int, len(extents))
		for flat := 0; flat < total; flat++ {
			rem := flat
			for m := len(extents) - 1; m >= 0; m-- {
				combo[m] = rem % extents[m]
				rem /= extents[m]
			}
			if !yield(flat, combo) {
				return
			}
		}
	}
}
