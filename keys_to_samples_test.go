package equistore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bananenpampe/equistore/data"
	"github.com/bananenpampe/equistore/labels"
)

func TestKeysToSamples_PrependsMovedNames(t *testing.T) {
	tensor := speciesMap(t, []int32{1, 2}, []*TensorBlock{
		testBlock(t, []int32{0}, []int32{0}, []float64{1}),
		testBlock(t, []int32{0}, []int32{0}, []float64{2}),
	})

	moved, err := tensor.KeysToSamples([]string{"species"}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, moved.Keys().Count())
	assert.Equal(t, []string{"_"}, moved.Keys().Names())

	block, err := moved.BlockByID(0)
	require.NoError(t, err)

	assert.Equal(t, []string{"species", "structure"}, block.Samples().Names())
	assert.Equal(t, 2, block.Samples().Count())
	assert.Equal(t, []int32{1, 0}, block.Samples().Row(0))
	assert.Equal(t, []int32{2, 0}, block.Samples().Row(1))

	assert.Equal(t, []string{"n"}, block.Properties().Names())
	assert.Equal(t, []float64{1, 2}, blockData(t, block))
}

func TestKeysToSamples_SortSamples(t *testing.T) {
	tensor := speciesMap(t, []int32{2, 1}, []*TensorBlock{
		testBlock(t, []int32{0}, []int32{0}, []float64{1}),
		testBlock(t, []int32{0}, []int32{0}, []float64{2}),
	})

	moved, err := tensor.KeysToSamples([]string{"species"}, true)
	require.NoError(t, err)

	block, err := moved.BlockByID(0)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 0}, block.Samples().Row(0))
	assert.Equal(t, []int32{2, 0}, block.Samples().Row(1))
	assert.Equal(t, []float64{2, 1}, blockData(t, block))
}

func TestKeysToSamples_DivergentProperties_ZeroFilled(t *testing.T) {
	tensor := speciesMap(t, []int32{1, 2}, []*TensorBlock{
		testBlock(t, []int32{0}, []int32{0}, []float64{1}),
		testBlock(t, []int32{0}, []int32{1}, []float64{2}),
	})

	moved, err := tensor.KeysToSamples([]string{"species"}, false)
	require.NoError(t, err)

	block, err := moved.BlockByID(0)
	require.NoError(t, err)

	// properties are the order-preserving union of the gathered blocks
	assert.Equal(t, 2, block.Properties().Count())
	assert.Equal(t, []int32{0}, block.Properties().Row(0))
	assert.Equal(t, []int32{1}, block.Properties().Row(1))

	assert.Equal(t, []float64{
		1, 0,
		0, 2,
	}, blockData(t, block))
}

func TestKeysToSamples_KeptDimensions(t *testing.T) {
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

	moved, err := tensor.KeysToSamples([]string{"species"}, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"l"}, moved.Keys().Names())
	assert.Equal(t, 2, moved.Keys().Count())

	l0, err := moved.BlockByID(0)
	require.NoError(t, err)
	assert.Equal(t, 2, l0.Samples().Count())
	assert.Equal(t, []float64{1, 2}, blockData(t, l0))

	l1, err := moved.BlockByID(1)
	require.NoError(t, err)
	assert.Equal(t, 1, l1.Samples().Count())
	assert.Equal(t, []int32{1, 0}, l1.Samples().Row(0))
}

func TestKeysToSamples_GradientsRemapSampleReferences(t *testing.T) {
	// both gradients reference row 0 of their own block; after the merge
	// those rows are distinct, so both contributions must survive
	a := testBlock(t, []int32{0}, []int32{0}, []float64{1})
	require.NoError(t, a.AddGradient("positions", gradientFor(t, a, []int32{0}, []float64{10})))

	b := testBlock(t, []int32{0}, []int32{0}, []float64{2})
	require.NoError(t, b.AddGradient("positions", gradientFor(t, b, []int32{0}, []float64{20})))

	tensor := speciesMap(t, []int32{1, 2}, []*TensorBlock{a, b})

	moved, err := tensor.KeysToSamples([]string{"species"}, false)
	require.NoError(t, err)

	block, err := moved.BlockByID(0)
	require.NoError(t, err)

	gradient, err := block.Gradient("positions")
	require.NoError(t, err)

	// the "sample" dimension now references rows of the merged samples
	assert.Equal(t, []string{"sample"}, gradient.Samples().Names())
	assert.Equal(t, 2, gradient.Samples().Count())
	assert.Equal(t, []int32{0}, gradient.Samples().Row(0))
	assert.Equal(t, []int32{1}, gradient.Samples().Row(1))
	assert.Equal(t, []float64{10, 20}, blockData(t, gradient))
}

func TestKeysToSamples_GradientReferencesFollowParentRows(t *testing.T) {
	a := testBlock(t, []int32{0, 1}, []int32{0}, []float64{1, 2})
	require.NoError(t, a.AddGradient("positions", gradientFor(t, a, []int32{1}, []float64{30})))

	b := testBlock(t, []int32{0}, []int32{0}, []float64{3})
	require.NoError(t, b.AddGradient("positions", gradientFor(t, b, []int32{0}, []float64{40})))

	tensor := speciesMap(t, []int32{1, 2}, []*TensorBlock{a, b})

	moved, err := tensor.KeysToSamples([]string{"species"}, false)
	require.NoError(t, err)

	block, err := moved.BlockByID(0)
	require.NoError(t, err)
	require.Equal(t, 3, block.Samples().Count())

	gradient, err := block.Gradient("positions")
	require.NoError(t, err)

	// a's gradient followed its parent row 1, b's followed merged row 2
	assert.Equal(t, 2, gradient.Samples().Count())
	assert.Equal(t, []int32{1}, gradient.Samples().Row(0))
	assert.Equal(t, []int32{2}, gradient.Samples().Row(1))
	assert.Equal(t, []float64{30, 40}, blockData(t, gradient))
}

func TestKeysToSamples_GradientReferenceOutOfRange(t *testing.T) {
	a := testBlock(t, []int32{0}, []int32{0}, []float64{1})
	require.NoError(t, a.AddGradient("positions", gradientFor(t, a, []int32{5}, []float64{9})))

	b := testBlock(t, []int32{0}, []int32{0}, []float64{2})

	tensor := speciesMap(t, []int32{1, 2}, []*TensorBlock{a, b})

	_, err := tensor.KeysToSamples([]string{"species"}, false)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestKeysToSamples_ComponentsPreserved(t *testing.T) {
	samples := labels.MustNew([]string{"structure"}, [][]int32{{0}})
	components := []*labels.Labels{
		labels.MustNew([]string{"m"}, [][]int32{{-1}, {0}, {1}}),
	}
	properties := labels.MustNew([]string{"n"}, [][]int32{{0}})

	makeBlock := func(values []float64) *TensorBlock {
		array, err := data.DenseFrom(values, []int{1, 3, 1})
		require.NoError(t, err)
		block, err := NewBlock(array, samples, components, properties)
		require.NoError(t, err)
		return block
	}

	tensor := speciesMap(t, []int32{1, 2}, []*TensorBlock{
		makeBlock([]float64{1, 2, 3}),
		makeBlock([]float64{4, 5, 6}),
	})

	moved, err := tensor.KeysToSamples([]string{"species"}, false)
	require.NoError(t, err)

	block, err := moved.BlockByID(0)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 1}, block.Values().Shape())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, blockData(t, block))
}

func TestKeysToSamples_UnknownDimension(t *testing.T) {
	tensor := speciesMap(t, []int32{1}, []*TensorBlock{
		testBlock(t, []int32{0}, []int32{0}, []float64{1}),
	})
	_, err := tensor.KeysToSamples([]string{"charge"}, false)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestKeysToSamples_DuplicateDimension(t *testing.T) {
	tensor := speciesMap(t, []int32{1}, []*TensorBlock{
		testBlock(t, []int32{0}, []int32{0}, []float64{1}),
	})
	_, err := tensor.KeysToSamples([]string{"species", "species"}, false)
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestRoundTrip_PropertiesThenSamples(t *testing.T) {
	tensor := speciesMap(t, []int32{1, 2}, []*TensorBlock{
		testBlock(t, []int32{0, 1}, []int32{0}, []float64{1, 2}),
		testBlock(t, []int32{0}, []int32{0}, []float64{3}),
	})

	byProperties, err := tensor.KeysToProperties([]string{"species"}, false)
	require.NoError(t, err)
	bySamples, err := tensor.KeysToSamples([]string{"species"}, false)
	require.NoError(t, err)

	pBlock, err := byProperties.BlockByID(0)
	require.NoError(t, err)
	sBlock, err := bySamples.BlockByID(0)
	require.NoError(t, err)

	// both moves distribute the same values, just along different axes
	pSum, sSum := 0.0, 0.0
	for _, v := range blockData(t, pBlock) {
		pSum += v
	}
	for _, v := range blockData(t, sBlock) {
		sSum += v
	}
	assert.Equal(t, pSum, sSum)
	assert.Equal(t, 6.0, sSum)
}
