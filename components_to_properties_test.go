package equistore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bananenpampe/equistore/data"
	"github.com/bananenpampe/equistore/labels"
)

func componentBlock(t *testing.T, components []*labels.Labels, shape []int, values []float64) *TensorBlock {
	t.Helper()

	sampleEntries := make([][]int32, shape[0])
	for i := range sampleEntries {
		sampleEntries[i] = []int32{int32(i)}
	}
	propertyEntries := make([][]int32, shape[len(shape)-1])
	for i := range propertyEntries {
		propertyEntries[i] = []int32{int32(i)}
	}

	array, err := data.DenseFrom(values, shape)
	require.NoError(t, err)
	block, err := NewBlock(array,
		labels.MustNew([]string{"structure"}, sampleEntries),
		components,
		labels.MustNew([]string{"n"}, propertyEntries))
	require.NoError(t, err)
	return block
}

func TestComponentsToProperties_SingleComponent(t *testing.T) {
	components := []*labels.Labels{
		labels.MustNew([]string{"m"}, [][]int32{{-1}, {0}, {1}}),
	}
	block := componentBlock(t, components, []int{2, 3, 1}, []float64{1, 2, 3, 4, 5, 6})

	tensor := speciesMap(t, []int32{1}, []*TensorBlock{block})
	moved, err := tensor.ComponentsToProperties([]string{"m"})
	require.NoError(t, err)

	assert.Same(t, tensor.Keys(), moved.Keys())

	got, err := moved.BlockByID(0)
	require.NoError(t, err)

	assert.Empty(t, got.Components())
	assert.Equal(t, []int{2, 3}, got.Values().Shape())

	assert.Equal(t, []string{"m", "n"}, got.Properties().Names())
	assert.Equal(t, []int32{-1, 0}, got.Properties().Row(0))
	assert.Equal(t, []int32{0, 0}, got.Properties().Row(1))
	assert.Equal(t, []int32{1, 0}, got.Properties().Row(2))

	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, blockData(t, got))
}

func TestComponentsToProperties_KeepsOtherComponents(t *testing.T) {
	components := []*labels.Labels{
		labels.MustNew([]string{"a"}, [][]int32{{0}, {1}}),
		labels.MustNew([]string{"m"}, [][]int32{{0}, {1}}),
	}
	block := componentBlock(t, components, []int{1, 2, 2, 1}, []float64{1, 2, 3, 4})

	tensor := speciesMap(t, []int32{1}, []*TensorBlock{block})
	moved, err := tensor.ComponentsToProperties([]string{"m"})
	require.NoError(t, err)

	got, err := moved.BlockByID(0)
	require.NoError(t, err)

	require.Len(t, got.Components(), 1)
	assert.Equal(t, []string{"a"}, got.Components()[0].Names())
	assert.Equal(t, []int{1, 2, 2}, got.Values().Shape())

	assert.Equal(t, []string{"m", "n"}, got.Properties().Names())
	// layout (sample, a, property): value at (a, m) in the source lands
	// at column m in the destination
	assert.Equal(t, []float64{1, 2, 3, 4}, blockData(t, got))
}

func TestComponentsToProperties_MultipleComponents(t *testing.T) {
	components := []*labels.Labels{
		labels.MustNew([]string{"a"}, [][]int32{{0}, {1}}),
		labels.MustNew([]string{"m"}, [][]int32{{0}, {1}}),
	}
	block := componentBlock(t, components, []int{1, 2, 2, 1}, []float64{1, 2, 3, 4})

	tensor := speciesMap(t, []int32{1}, []*TensorBlock{block})
	moved, err := tensor.ComponentsToProperties([]string{"a", "m"})
	require.NoError(t, err)

	got, err := moved.BlockByID(0)
	require.NoError(t, err)

	assert.Empty(t, got.Components())
	assert.Equal(t, []int{1, 4}, got.Values().Shape())

	// moved dimensions vary slower than the old properties, first moved
	// component slowest
	assert.Equal(t, []string{"a", "m", "n"}, got.Properties().Names())
	assert.Equal(t, []int32{0, 0, 0}, got.Properties().Row(0))
	assert.Equal(t, []int32{0, 1, 0}, got.Properties().Row(1))
	assert.Equal(t, []int32{1, 0, 0}, got.Properties().Row(2))
	assert.Equal(t, []int32{1, 1, 0}, got.Properties().Row(3))

	assert.Equal(t, []float64{1, 2, 3, 4}, blockData(t, got))
}

func TestComponentsToProperties_Gradients(t *testing.T) {
	components := []*labels.Labels{
		labels.MustNew([]string{"m"}, [][]int32{{-1}, {0}, {1}}),
	}
	block := componentBlock(t, components, []int{1, 3, 1}, []float64{1, 2, 3})

	gradArray, err := data.DenseFrom([]float64{4, 5, 6}, []int{1, 3, 1})
	require.NoError(t, err)
	gradient, err := NewBlock(gradArray,
		labels.MustNew([]string{"sample"}, [][]int32{{0}}),
		components,
		block.Properties())
	require.NoError(t, err)
	require.NoError(t, block.AddGradient("positions", gradient))

	tensor := speciesMap(t, []int32{1}, []*TensorBlock{block})
	moved, err := tensor.ComponentsToProperties([]string{"m"})
	require.NoError(t, err)

	got, err := moved.BlockByID(0)
	require.NoError(t, err)
	movedGradient, err := got.Gradient("positions")
	require.NoError(t, err)

	assert.Empty(t, movedGradient.Components())
	assert.Equal(t, 3, movedGradient.Properties().Count())
	assert.Equal(t, []float64{4, 5, 6}, blockData(t, movedGradient))
}

func TestComponentsToProperties_UnknownDimension(t *testing.T) {
	block := testBlock(t, []int32{0}, []int32{0}, []float64{1})
	tensor := speciesMap(t, []int32{1}, []*TensorBlock{block})

	_, err := tensor.ComponentsToProperties([]string{"m"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestComponentsToProperties_PartialComponent(t *testing.T) {
	components := []*labels.Labels{
		labels.MustNew([]string{"m1", "m2"}, [][]int32{{0, 0}, {1, 1}}),
	}
	block := componentBlock(t, components, []int{1, 2, 1}, []float64{1, 2})

	tensor := speciesMap(t, []int32{1}, []*TensorBlock{block})
	_, err := tensor.ComponentsToProperties([]string{"m1"})
	require.ErrorIs(t, err, ErrShapeMismatch)
}
