package equistore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bananenpampe/equistore/data"
	"github.com/bananenpampe/equistore/labels"
)

func TestKeysToProperties_SharedSample(t *testing.T) {
	// two single-entry blocks with the same sample row: the merged row is
	// fully populated, one column per original species
	tensor := speciesMap(t, []int32{1, 2}, []*TensorBlock{
		testBlock(t, []int32{0}, []int32{0}, []float64{1}),
		testBlock(t, []int32{0}, []int32{0}, []float64{2}),
	})

	moved, err := tensor.KeysToProperties([]string{"species"}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, moved.Keys().Count())
	assert.Equal(t, []string{"_"}, moved.Keys().Names())

	block, err := moved.BlockByID(0)
	require.NoError(t, err)

	assert.Equal(t, []string{"species", "n"}, block.Properties().Names())
	assert.Equal(t, 2, block.Properties().Count())
	assert.Equal(t, []int32{1, 0}, block.Properties().Row(0))
	assert.Equal(t, []int32{2, 0}, block.Properties().Row(1))

	assert.Equal(t, 1, block.Samples().Count())
	assert.Equal(t, []float64{1, 2}, blockData(t, block))
}

func TestKeysToProperties_DisjointSamples_ZeroFilled(t *testing.T) {
	tensor := speciesMap(t, []int32{1, 2}, []*TensorBlock{
		testBlock(t, []int32{0}, []int32{0}, []float64{1}),
		testBlock(t, []int32{1}, []int32{0}, []float64{2}),
	})

	moved, err := tensor.KeysToProperties([]string{"species"}, false)
	require.NoError(t, err)

	block, err := moved.BlockByID(0)
	require.NoError(t, err)

	// samples are the order-preserving union
	assert.Equal(t, 2, block.Samples().Count())
	assert.Equal(t, []int32{0}, block.Samples().Row(0))
	assert.Equal(t, []int32{1}, block.Samples().Row(1))

	// each block only owns its own property column, the rest stays zero
	assert.Equal(t, []float64{
		1, 0,
		0, 2,
	}, blockData(t, block))
}

func TestKeysToProperties_KeptDimensions(t *testing.T) {
	keys := labels.MustNew([]string{"l", "species"}, [][]int32{
		{0, 1}, {0, 2}, {1, 1},
	})
	blocks := []*TensorBlock{
		testBlock(t, []int32{0}, []int32{0}, []float64{1}),
		testBlock(t, []int32{0}, []int32{0}, []float64{2}),
		testBlock(t, []int32{0}, []int32{0}, []float64{3}),
	}
	tensor, err := New(keys, blocks)
	require.NoError(t, err)

	moved, err := tensor.KeysToProperties([]string{"species"}, false)
	require.NoError(t, err)

	// kept keys in first-occurrence order
	assert.Equal(t, []string{"l"}, moved.Keys().Names())
	assert.Equal(t, 2, moved.Keys().Count())
	assert.Equal(t, []int32{0}, moved.Keys().Row(0))
	assert.Equal(t, []int32{1}, moved.Keys().Row(1))

	l0, err := moved.BlockByID(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, blockData(t, l0))

	l1, err := moved.BlockByID(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, blockData(t, l1))
}

func TestKeysToProperties_SortSamples(t *testing.T) {
	tensor := speciesMap(t, []int32{1, 2}, []*TensorBlock{
		testBlock(t, []int32{5}, []int32{0}, []float64{1}),
		testBlock(t, []int32{1}, []int32{0}, []float64{2}),
	})

	moved, err := tensor.KeysToProperties([]string{"species"}, true)
	require.NoError(t, err)

	block, err := moved.BlockByID(0)
	require.NoError(t, err)
	assert.Equal(t, []int32{1}, block.Samples().Row(0))
	assert.Equal(t, []int32{5}, block.Samples().Row(1))
	assert.Equal(t, []float64{
		0, 2,
		1, 0,
	}, blockData(t, block))
}

func TestKeysToProperties_GradientsMerge(t *testing.T) {
	a := testBlock(t, []int32{0}, []int32{0}, []float64{1})
	require.NoError(t, a.AddGradient("positions", gradientFor(t, a, []int32{0}, []float64{3})))

	b := testBlock(t, []int32{0}, []int32{0}, []float64{2})
	require.NoError(t, b.AddGradient("positions", gradientFor(t, b, []int32{1}, []float64{4})))
	require.NoError(t, b.AddGradient("cell", gradientFor(t, b, []int32{0}, []float64{5})))

	tensor := speciesMap(t, []int32{1, 2}, []*TensorBlock{a, b})

	moved, err := tensor.KeysToProperties([]string{"species"}, false)
	require.NoError(t, err)

	block, err := moved.BlockByID(0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"positions", "cell"}, block.GradientList())

	positions, err := block.Gradient("positions")
	require.NoError(t, err)
	assert.Equal(t, 2, positions.Samples().Count())
	assert.Equal(t, []float64{
		3, 0,
		0, 4,
	}, blockData(t, positions))

	// "cell" only exists on the second block: the first block's property
	// column stays zero
	cell, err := block.Gradient("cell")
	require.NoError(t, err)
	assert.Equal(t, 1, cell.Samples().Count())
	assert.Equal(t, []float64{0, 5}, blockData(t, cell))
}

func TestKeysToProperties_UnknownDimension(t *testing.T) {
	tensor := speciesMap(t, []int32{1}, []*TensorBlock{
		testBlock(t, []int32{0}, []int32{0}, []float64{1}),
	})
	_, err := tensor.KeysToProperties([]string{"charge"}, false)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestKeysToProperties_IncompatibleSampleNames(t *testing.T) {
	a := testBlock(t, []int32{0}, []int32{0}, []float64{1})

	otherSamples := labels.MustNew([]string{"atom"}, [][]int32{{0}})
	array, err := data.DenseFrom([]float64{2}, []int{1, 1})
	require.NoError(t, err)
	b, err := NewBlock(array, otherSamples, nil, labels.MustNew([]string{"n"}, [][]int32{{0}}))
	require.NoError(t, err)

	tensor := speciesMap(t, []int32{1, 2}, []*TensorBlock{a, b})
	_, err = tensor.KeysToProperties([]string{"species"}, false)
	require.ErrorIs(t, err, ErrIncompatibleSamples)
}

type foreignDense struct{ *data.Dense }

var foreignOrigin = data.RegisterOrigin("test.foreign")

func (f *foreignDense) Origin() data.Origin { return foreignOrigin }

func TestKeysToProperties_MixedBackends(t *testing.T) {
	a := testBlock(t, []int32{0}, []int32{0}, []float64{1})

	array, err := data.DenseFrom([]float64{2}, []int{1, 1})
	require.NoError(t, err)
	b, err := NewBlock(&foreignDense{array},
		labels.MustNew([]string{"structure"}, [][]int32{{0}}),
		nil,
		labels.MustNew([]string{"n"}, [][]int32{{0}}))
	require.NoError(t, err)

	tensor := speciesMap(t, []int32{1, 2}, []*TensorBlock{a, b})
	_, err = tensor.KeysToProperties([]string{"species"}, false)
	require.ErrorIs(t, err, data.ErrIncompatibleBackend)
}

func TestKeysToProperties_DoesNotMutateInput(t *testing.T) {
	tensor := speciesMap(t, []int32{1, 2}, []*TensorBlock{
		testBlock(t, []int32{0}, []int32{0}, []float64{1}),
		testBlock(t, []int32{0}, []int32{0}, []float64{2}),
	})

	_, err := tensor.KeysToProperties([]string{"species"}, false)
	require.NoError(t, err)

	assert.Equal(t, 2, tensor.Keys().Count())
	block, err := tensor.BlockByID(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, block.Properties().Names())
	assert.Equal(t, []float64{1}, blockData(t, block))
}
