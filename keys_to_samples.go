package equistore

import (
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/bananenpampe/equistore/data"
	"github.com/bananenpampe/equistore/labels"
)

// KeysToSamples moves the given key dimensions into the samples axis of the
// blocks. Blocks sharing the same values for the remaining key dimensions
// are merged: the moved dimension names are prepended to the sample
// dimension names, and each gathered block contributes the sample entries
// built from its own key. Properties may diverge between gathered blocks;
// the merged block uses their order-preserving union, with columns a block
// does not own left zero. Gradients merge matched by parameter name, with
// their parent sample references rewritten to the merged sample positions.
//
// The receiver is never modified; a new TensorMap is returned.
func (t *TensorMap) KeysToSamples(dimensions []string, sortSamples bool) (*TensorMap, error) {
	result, err := t.keysToSamples(dimensions, sortSamples)
	t.logReshape("keys_to_samples", dimensions, result, err)
	if err != nil {
		return nil, err
	}
	result.logger = t.logger
	return result, nil
}

func (t *TensorMap) keysToSamples(dimensions []string, sortSamples bool) (*TensorMap, error) {
	keptNames, keptCols, movedCols, err := t.splitKeys(dimensions)
	if err != nil {
		return nil, err
	}
	groups := t.groupByKept(keptCols)

	newKeys, err := newKeysFromGroups(keptNames, groups)
	if err != nil {
		return nil, err
	}

	merged := make([]*TensorBlock, len(groups))
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for gi, group := range groups {
		g.Go(func() error {
			block, err := t.mergeGroupToSamples(group, dimensions, movedCols, sortSamples)
			if err != nil {
				return err
			}
			merged[gi] = block
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return New(newKeys, merged)
}

func (t *TensorMap) mergeGroupToSamples(group keyGroup, movedNames []string, movedCols []int, sortSamples bool) (*TensorBlock, error) {
	blocks := make([]*TensorBlock, len(group.blockIDs))
	movedValues := make([][]int32, len(group.blockIDs))
	for i, id := range group.blockIDs {
		blocks[i] = t.blocks[id]
		movedValues[i] = projectRow(t.keys.Row(id), movedCols)
	}

	if err := checkMergeable(blocks); err != nil {
		return nil, err
	}
	first := blocks[0]

	newSamples, err := prefixedSampleUnion(movedNames, movedValues, blocks, sortSamples)
	if err != nil {
		return nil, err
	}

	propertySets := make([]*labels.Labels, len(blocks))
	for i, b := range blocks {
		propertySets[i] = b.properties
	}
	newProperties, err := unionEntries(first.properties.Names(), propertySets, false)
	if err != nil {
		return nil, err
	}

	values, err := first.values.CreateLike(
		mergedShape(newSamples.Count(), first.components, newProperties.Count()), true)
	if err != nil {
		return nil, err
	}

	parentRows := make([][]int, len(blocks))
	for i, b := range blocks {
		dstRows := make([]int, b.samples.Count())
		for s := range dstRows {
			entry := append(append([]int32(nil), movedValues[i]...), b.samples.Row(s)...)
			pos, _ := newSamples.Position(entry)
			dstRows[s] = pos
		}
		parentRows[i] = dstRows
		if err := copyWithPropertyMapping(values, b.values, dstRows, b.properties, newProperties); err != nil {
			return nil, err
		}
	}

	result, err := NewBlock(values, newSamples, first.components, newProperties)
	if err != nil {
		return nil, err
	}

	if err := mergeGradientsToSamples(result, blocks, parentRows, newProperties, sortSamples); err != nil {
		return nil, err
	}
	return result, nil
}

// prefixedSampleUnion builds the merged sample labels: for every gathered
// block, its key's moved values prepended to each of its sample entries.
func prefixedSampleUnion(movedNames []string, movedValues [][]int32, blocks []*TensorBlock, sorted bool) (*labels.Labels, error) {
	names := append(append([]string(nil), movedNames...), blocks[0].samples.Names()...)

	var entries [][]int32
	for i, b := range blocks {
		for s := 0; s < b.samples.Count(); s++ {
			entries = append(entries, append(append([]int32(nil), movedValues[i]...), b.samples.Row(s)...))
		}
	}
	if sorted {
		sort.Slice(entries, func(a, b int) bool {
			return labels.Compare(entries[a], entries[b]) < 0
		})
	}
	return labels.New(names, entries)
}

// propertyRun is a contiguous slab of source property columns landing on
// contiguous destination columns.
type propertyRun struct {
	srcStart int
	dstStart int
	length   int
}

func propertyRuns(from, to *labels.Labels) []propertyRun {
	positions := make([]int, from.Count())
	for i := range positions {
		pos, _ := to.Position(from.Row(i))
		positions[i] = pos
	}

	var runs []propertyRun
	for i := 0; i < len(positions); {
		run := propertyRun{srcStart: i, dstStart: positions[i], length: 1}
		for i+run.length < len(positions) && positions[i+run.length] == run.dstStart+run.length {
			run.length++
		}
		i += run.length
		runs = append(runs, run)
	}
	return runs
}

// copyWithPropertyMapping copies every sample of src into dst at the mapped
// rows, scattering property columns to their positions in the destination
// property labels.
func copyWithPropertyMapping(dst, src data.Array, dstRows []int, srcProperties, dstProperties *labels.Labels) error {
	propRuns := propertyRuns(srcProperties, dstProperties)
	dstShape := dst.Shape()
	srcShape := src.Shape()

	for _, sRun := range sampleRuns(dstRows) {
		for _, pRun := range propRuns {
			dstRegion := data.Full(dstShape)
			dstRegion[0] = data.Range{Start: sRun.dstStart, End: sRun.dstStart + sRun.length}
			dstRegion[len(dstRegion)-1] = data.Range{Start: pRun.dstStart, End: pRun.dstStart + pRun.length}

			srcRegion := data.Full(srcShape)
			srcRegion[0] = data.Range{Start: sRun.srcStart, End: sRun.srcStart + sRun.length}
			srcRegion[len(srcRegion)-1] = data.Range{Start: pRun.srcStart, End: pRun.srcStart + pRun.length}

			if err := dst.CopyRegionFrom(dstRegion, src, srcRegion); err != nil {
				return err
			}
		}
	}
	return nil
}

// mergeGradientsToSamples merges gradients by parameter name. The first
// gradient sample dimension references a row of the contributing block, so
// it is rewritten to that row's position in the merged samples before the
// union: contributions from different blocks land on distinct rows instead
// of colliding. Parameters missing from some blocks leave zero-filled rows.
func mergeGradientsToSamples(merged *TensorBlock, blocks []*TensorBlock, parentRows [][]int, newProperties *labels.Labels, sortSamples bool) error {
	for _, parameter := range gradientParameters(blocks) {
		var contributors []*TensorBlock
		var contributorIdx []int
		for i, b := range blocks {
			if gradient, ok := b.gradients[parameter]; ok {
				contributors = append(contributors, gradient)
				contributorIdx = append(contributorIdx, i)
			}
		}
		if err := checkMergeable(contributors); err != nil {
			return err
		}

		remapped := make([]*labels.Labels, len(contributors))
		for i, gradient := range contributors {
			var err error
			remapped[i], err = remapSampleReferences(gradient.samples, parentRows[contributorIdx[i]])
			if err != nil {
				return err
			}
		}
		gradientSamples, err := unionEntries(contributors[0].samples.Names(), remapped, sortSamples)
		if err != nil {
			return err
		}

		values, err := merged.values.CreateLike(
			mergedShape(gradientSamples.Count(), merged.components, newProperties.Count()), true)
		if err != nil {
			return err
		}
		for i, gradient := range contributors {
			dstRows := mapSampleRows(remapped[i], gradientSamples)
			if err := copyWithPropertyMapping(values, gradient.values, dstRows, gradient.properties, newProperties); err != nil {
				return err
			}
		}

		gradientBlock, err := NewBlock(values, gradientSamples, merged.components, newProperties)
		if err != nil {
			return err
		}
		if err := merged.AddGradient(parameter, gradientBlock); err != nil {
			return err
		}
	}
	return nil
}

// remapSampleReferences rewrites the first gradient sample dimension, a
// parent block row index, to that row's position in the merged samples.
func remapSampleReferences(samples *labels.Labels, parentRows []int) (*labels.Labels, error) {
	entries := make([][]int32, samples.Count())
	for s := range entries {
		row := append([]int32(nil), samples.Row(s)...)
		ref := int(row[0])
		if ref < 0 || ref >= len(parentRows) {
			return nil, fmt.Errorf("%w: gradient sample %d references parent row %d of %d",
				ErrIndexOutOfRange, s, ref, len(parentRows))
		}
		row[0] = int32(parentRows[ref])
		entries[s] = row
	}
	return labels.New(samples.Names(), entries)
}
