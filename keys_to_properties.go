package equistore

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/bananenpampe/equistore/labels"
)

// KeysToProperties moves the given key dimensions into the property axis of
// the blocks. Blocks sharing the same values for the remaining key
// dimensions are merged: the moved key values become the leading property
// dimensions, each gathered block owning the property columns built from
// its own key, with columns owned by other blocks left zero. New samples
// are the order-preserving union of the gathered samples, or their
// lexicographic sort when sortSamples is set. Gradients merge by the same
// algorithm, matched by parameter name; parameters missing from some
// gathered blocks yield zero-filled rows.
//
// The receiver is never modified; a new TensorMap is returned.
func (t *TensorMap) KeysToProperties(dimensions []string, sortSamples bool) (*TensorMap, error) {
	result, err := t.keysToProperties(dimensions, sortSamples)
	t.logReshape("keys_to_properties", dimensions, result, err)
	if err != nil {
		return nil, err
	}
	result.logger = t.logger
	return result, nil
}

func (t *TensorMap) keysToProperties(dimensions []string, sortSamples bool) (*TensorMap, error) {
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
			block, err := t.mergeGroupToProperties(group, dimensions, movedCols, sortSamples)
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

func (t *TensorMap) mergeGroupToProperties(group keyGroup, movedNames []string, movedCols []int, sortSamples bool) (*TensorBlock, error) {
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

	// new properties: moved key values crossed with each block's own
	// property entries, block by block in gathering order
	propertyNames := append(append([]string(nil), movedNames...), first.properties.Names()...)
	offsets := make([]int, len(blocks))
	var propertyEntries [][]int32
	for i, b := range blocks {
		offsets[i] = len(propertyEntries)
		for p := 0; p < b.properties.Count(); p++ {
			entry := append(append([]int32(nil), movedValues[i]...), b.properties.Row(p)...)
			propertyEntries = append(propertyEntries, entry)
		}
	}
	newProperties, err := labels.New(propertyNames, propertyEntries)
	if err != nil {
		return nil, err
	}

	sampleSets := make([]*labels.Labels, len(blocks))
	for i, b := range blocks {
		sampleSets[i] = b.samples
	}
	newSamples, err := unionEntries(first.samples.Names(), sampleSets, sortSamples)
	if err != nil {
		return nil, err
	}

	values, err := first.values.CreateLike(
		mergedShape(newSamples.Count(), first.components, newProperties.Count()), true)
	if err != nil {
		return nil, err
	}

	for i, b := range blocks {
		runs := sampleRuns(mapSampleRows(b.samples, newSamples))
		width := b.properties.Count()
		if err := copySampleRuns(values, b.values, runs, offsets[i], offsets[i]+width); err != nil {
			return nil, err
		}
	}

	result, err := NewBlock(values, newSamples, first.components, newProperties)
	if err != nil {
		return nil, err
	}

	if err := t.mergeGradientsToProperties(result, blocks, offsets, newProperties, sortSamples); err != nil {
		return nil, err
	}
	return result, nil
}

// mergeGradientsToProperties merges the gradients of the gathered blocks
// into the merged block, matched by parameter name. A parameter missing
// from some blocks still yields one merged gradient, with the rows of the
// absent contributors left zero.
func (t *TensorMap) mergeGradientsToProperties(merged *TensorBlock, blocks []*TensorBlock, offsets []int, newProperties *labels.Labels, sortSamples bool) error {
	for _, parameter := range gradientParameters(blocks) {
		var contributors []*TensorBlock
		var contributorOffsets []int
		var contributorWidths []int
		for i, b := range blocks {
			gradient, ok := b.gradients[parameter]
			if !ok {
				continue
			}
			contributors = append(contributors, gradient)
			contributorOffsets = append(contributorOffsets, offsets[i])
			contributorWidths = append(contributorWidths, b.properties.Count())
		}
		if err := checkMergeable(contributors); err != nil {
			return err
		}

		sampleSets := make([]*labels.Labels, len(contributors))
		for i, gradient := range contributors {
			sampleSets[i] = gradient.samples
		}
		gradientSamples, err := unionEntries(contributors[0].samples.Names(), sampleSets, sortSamples)
		if err != nil {
			return err
		}

		values, err := merged.values.CreateLike(
			mergedShape(gradientSamples.Count(), merged.components, newProperties.Count()), true)
		if err != nil {
			return err
		}
		for i, gradient := range contributors {
			runs := sampleRuns(mapSampleRows(gradient.samples, gradientSamples))
			start := contributorOffsets[i]
			if err := copySampleRuns(values, gradient.values, runs, start, start+contributorWidths[i]); err != nil {
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

// gradientParameters returns the gradient parameters present on any of the
// blocks, in first-encounter order.
func gradientParameters(blocks []*TensorBlock) []string {
	var parameters []string
	seen := make(map[string]struct{})
	for _, b := range blocks {
		for _, parameter := range b.gradientNames {
			if _, ok := seen[parameter]; ok {
				continue
			}
			seen[parameter] = struct{}{}
			parameters = append(parameters, parameter)
		}
	}
	return parameters
}

// mapSampleRows maps each entry of from onto its position in to.
func mapSampleRows(from, to *labels.Labels) []int {
	rows := make([]int, from.Count())
	for i := range rows {
		pos, _ := to.Position(from.Row(i))
		rows[i] = pos
	}
	return rows
}
