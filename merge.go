package equistore

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/bananenpampe/equistore/data"
	"github.com/bananenpampe/equistore/labels"
)

// keyGroup gathers the blocks whose keys project onto the same kept values.
type keyGroup struct {
	key      []int32
	blockIDs []int
}

// splitKeys partitions the key dimensions into moved (the given names) and
// kept (the complement, in key order), returning the column index of each.
func (t *TensorMap) splitKeys(dimensions []string) (keptNames []string, keptCols, movedCols []int, err error) {
	if len(dimensions) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: no key dimensions given", ErrNotFound)
	}

	moved := make(map[string]struct{}, len(dimensions))
	for _, name := range dimensions {
		if _, dup := moved[name]; dup {
			return nil, nil, nil, fmt.Errorf("%w: key dimension %q given twice", ErrDuplicateKey, name)
		}
		column, ok := t.keys.DimensionIndex(name)
		if !ok {
			return nil, nil, nil, fmt.Errorf("%w: key dimension %q", ErrNotFound, name)
		}
		moved[name] = struct{}{}
		movedCols = append(movedCols, column)
	}

	for column, name := range t.keys.Names() {
		if _, isMoved := moved[name]; !isMoved {
			keptNames = append(keptNames, name)
			keptCols = append(keptCols, column)
		}
	}
	return keptNames, keptCols, movedCols, nil
}

// groupByKept groups key positions by their projection onto the kept
// columns, preserving first-occurrence order of the projections and the
// original relative order of blocks inside each group.
func (t *TensorMap) groupByKept(keptCols []int) []keyGroup {
	var groups []keyGroup
	byKey := make(map[string]int)

	for i := 0; i < t.keys.Count(); i++ {
		projected := projectRow(t.keys.Row(i), keptCols)
		packed := packRow(projected)
		gi, ok := byKey[packed]
		if !ok {
			gi = len(groups)
			byKey[packed] = gi
			groups = append(groups, keyGroup{key: projected})
		}
		groups[gi].blockIDs = append(groups[gi].blockIDs, i)
	}
	return groups
}

func projectRow(row []int32, columns []int) []int32 {
	projected := make([]int32, len(columns))
	for i, c := range columns {
		projected[i] = row[c]
	}
	return projected
}

func packRow(row []int32) string {
	buf := make([]byte, 4*len(row))
	for i, v := range row {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(v))
	}
	return string(buf)
}

// newKeysFromGroups builds the keys of a reshaped map. When every key
// dimension was moved out, the result is the single placeholder key "_"=0.
func newKeysFromGroups(keptNames []string, groups []keyGroup) (*labels.Labels, error) {
	if len(keptNames) == 0 {
		return labels.Single(), nil
	}
	entries := make([][]int32, len(groups))
	for i, group := range groups {
		entries[i] = group.key
	}
	return labels.New(keptNames, entries)
}

// checkMergeable validates the structural invariants shared by both merge
// directions: gathered blocks must agree on sample dimension names,
// component labels, property dimension names, and array backend.
func checkMergeable(blocks []*TensorBlock) error {
	first := blocks[0]
	for _, b := range blocks[1:] {
		if !sameStrings(b.samples.Names(), first.samples.Names()) {
			return fmt.Errorf("%w: %v vs %v",
				ErrIncompatibleSamples, b.samples.Names(), first.samples.Names())
		}
		if len(b.components) != len(first.components) {
			return fmt.Errorf("%w: merged blocks have %d and %d component label sets",
				ErrShapeMismatch, len(b.components), len(first.components))
		}
		for i := range first.components {
			if !b.components[i].Equal(first.components[i]) {
				return fmt.Errorf("%w: merged blocks differ on component %d",
					ErrShapeMismatch, i)
			}
		}
		if !sameStrings(b.properties.Names(), first.properties.Names()) {
			return fmt.Errorf("%w: merged blocks have property names %v and %v",
				ErrShapeMismatch, b.properties.Names(), first.properties.Names())
		}
		if !data.SameBackend(b.values, first.values) {
			return fmt.Errorf("%w: merged blocks use %q and %q",
				data.ErrIncompatibleBackend, b.values.Origin().Name(), first.values.Origin().Name())
		}
	}
	return nil
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// unionEntries returns the order-preserving union of several label sets
// sharing the same names, optionally sorted lexicographically.
func unionEntries(names []string, sets []*labels.Labels, sorted bool) (*labels.Labels, error) {
	var entries [][]int32
	seen := make(map[string]struct{})
	for _, set := range sets {
		for i := 0; i < set.Count(); i++ {
			row := set.Row(i)
			packed := packRow(row)
			if _, ok := seen[packed]; ok {
				continue
			}
			seen[packed] = struct{}{}
			entries = append(entries, row)
		}
	}
	if sorted {
		sort.Slice(entries, func(a, b int) bool {
			return labels.Compare(entries[a], entries[b]) < 0
		})
	}
	return labels.New(names, entries)
}

// sampleRun is a maximal run of consecutive source rows mapping onto
// consecutive destination rows, so it can be copied as one slab.
type sampleRun struct {
	srcStart int
	dstStart int
	length   int
}

// sampleRuns compresses a per-row destination mapping into slab runs.
func sampleRuns(dstRows []int) []sampleRun {
	var runs []sampleRun
	for i := 0; i < len(dstRows); {
		run := sampleRun{srcStart: i, dstStart: dstRows[i], length: 1}
		for i+run.length < len(dstRows) && dstRows[i+run.length] == run.dstStart+run.length {
			run.length++
		}
		i += run.length
		runs = append(runs, run)
	}
	return runs
}

// copySampleRuns copies src sample slabs into dst at the mapped rows,
// restricted to the [propStart, propEnd) destination property columns.
func copySampleRuns(dst, src data.Array, runs []sampleRun, propStart, propEnd int) error {
	dstShape := dst.Shape()
	srcShape := src.Shape()

	for _, run := range runs {
		dstRegion := data.Full(dstShape)
		dstRegion[0] = data.Range{Start: run.dstStart, End: run.dstStart + run.length}
		dstRegion[len(dstRegion)-1] = data.Range{Start: propStart, End: propEnd}

		srcRegion := data.Full(srcShape)
		srcRegion[0] = data.Range{Start: run.srcStart, End: run.srcStart + run.length}
		srcRegion[len(srcRegion)-1] = data.Range{Start: 0, End: propEnd - propStart}

		if err := dst.CopyRegionFrom(dstRegion, src, srcRegion); err != nil {
			return err
		}
	}
	return nil
}

// mergedShape assembles a destination shape from a sample count, component
// labels and a property count.
func mergedShape(samples int, components []*labels.Labels, properties int) []int {
	shape := make([]int, 0, 2+len(components))
	shape = append(shape, samples)
	for _, component := range components {
		shape = append(shape, component.Count())
	}
	return append(shape, properties)
}
