package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bananenpampe/equistore"
	"github.com/bananenpampe/equistore/data"
	"github.com/bananenpampe/equistore/labels"
)

func testObjects(t *testing.T) (*labels.Labels, *equistore.TensorBlock, *equistore.TensorMap) {
	t.Helper()

	keys := labels.MustNew([]string{"species"}, [][]int32{{1}})

	array, err := data.DenseFrom([]float64{1}, []int{1, 1})
	require.NoError(t, err)
	block, err := equistore.NewBlock(array,
		labels.MustNew([]string{"structure"}, [][]int32{{0}}),
		nil,
		labels.MustNew([]string{"n"}, [][]int32{{0}}))
	require.NoError(t, err)

	other, err := block.Copy()
	require.NoError(t, err)
	tensor, err := equistore.New(keys, []*equistore.TensorBlock{other})
	require.NoError(t, err)

	return keys, block, tensor
}

func TestTableRoundTrip(t *testing.T) {
	keys, block, tensor := testObjects(t)
	table := NewTable()

	lh := table.PutLabels(keys)
	bh := table.PutBlock(block)
	mh := table.PutTensorMap(tensor)
	assert.Equal(t, 3, table.Len())

	gotLabels, err := table.Labels(lh)
	require.NoError(t, err)
	assert.Same(t, keys, gotLabels)

	gotBlock, err := table.Block(bh)
	require.NoError(t, err)
	assert.Same(t, block, gotBlock)

	gotMap, err := table.TensorMap(mh)
	require.NoError(t, err)
	assert.Same(t, tensor, gotMap)

	kind, err := table.Kind(bh)
	require.NoError(t, err)
	assert.Equal(t, KindBlock, kind)
}

func TestWrongKind(t *testing.T) {
	keys, _, _ := testObjects(t)
	table := NewTable()

	lh := table.PutLabels(keys)
	_, err := table.Block(lh)
	require.ErrorIs(t, err, ErrWrongKind)
	_, err = table.TensorMap(lh)
	require.ErrorIs(t, err, ErrWrongKind)
}

func TestDestroy(t *testing.T) {
	keys, _, _ := testObjects(t)
	table := NewTable()

	h := table.PutLabels(keys)
	require.NoError(t, table.Destroy(h))
	assert.Zero(t, table.Len())

	// destroyed handles are invalid, not reused
	_, err := table.Labels(h)
	require.ErrorIs(t, err, ErrInvalidHandle)
	require.ErrorIs(t, table.Destroy(h), ErrInvalidHandle)

	next := table.PutLabels(keys)
	assert.NotEqual(t, h, next)
}

func TestUnknownHandle(t *testing.T) {
	table := NewTable()
	_, err := table.Labels(Handle(42))
	require.ErrorIs(t, err, ErrInvalidHandle)
	_, err = table.Kind(Handle(42))
	require.ErrorIs(t, err, ErrInvalidHandle)
}
