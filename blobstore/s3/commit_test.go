package s3

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bananenpampe/equistore/blobstore"
)

// fakeDDB implements DDBClient with conditional-write semantics. With
// staleReads set, Query pretends nothing was committed yet, simulating a
// writer racing on version numbers.
type fakeDDB struct {
	mu         sync.Mutex
	items      map[string]map[uint64]string // base_uri -> version -> archive_name
	staleReads bool
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{items: make(map[string]map[uint64]string)}
}

func (f *fakeDDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	uri := in.Item["base_uri"].(*ddbtypes.AttributeValueMemberS).Value
	version, err := strconv.ParseUint(in.Item["version"].(*ddbtypes.AttributeValueMemberN).Value, 10, 64)
	if err != nil {
		return nil, err
	}
	archive := in.Item["archive_name"].(*ddbtypes.AttributeValueMemberS).Value

	if f.items[uri] == nil {
		f.items[uri] = make(map[uint64]string)
	}
	if _, exists := f.items[uri][version]; exists {
		return nil, &ddbtypes.ConditionalCheckFailedException{}
	}
	f.items[uri][version] = archive
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.staleReads {
		return &dynamodb.QueryOutput{}, nil
	}

	uri := in.ExpressionAttributeValues[":uri"].(*ddbtypes.AttributeValueMemberS).Value
	var latest uint64
	for version := range f.items[uri] {
		if version > latest {
			latest = version
		}
	}
	if latest == 0 {
		return &dynamodb.QueryOutput{}, nil
	}
	return &dynamodb.QueryOutput{
		Items: []map[string]ddbtypes.AttributeValue{{
			"base_uri":     &ddbtypes.AttributeValueMemberS{Value: uri},
			"version":      &ddbtypes.AttributeValueMemberN{Value: strconv.FormatUint(latest, 10)},
			"archive_name": &ddbtypes.AttributeValueMemberS{Value: f.items[uri][latest]},
		}},
	}, nil
}

func newTestCommitStore() (*CommitStore, *fakeDDB) {
	ddb := newFakeDDB()
	return NewCommitStore(blobstore.NewMemory(), ddb, "commits", "s3://bucket/tensors"), ddb
}

func TestCommitStore_PublishAndCurrent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestCommitStore()

	_, _, err := store.Current(ctx)
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	require.NoError(t, store.Put(ctx, "v1.npz", []byte("first archive")))
	version, err := store.Commit(ctx, "v1.npz")
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)

	name, current, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1.npz", name)
	assert.EqualValues(t, 1, current)

	// the CURRENT virtual blob serves the archive name
	blob, err := store.Open(ctx, CurrentName)
	require.NoError(t, err)
	defer blob.Close()
	content := make([]byte, blob.Size())
	_, err = blob.ReadAt(content, 0)
	require.True(t, err == nil || errors.Is(err, io.EOF))
	assert.Equal(t, "v1.npz", string(content))
}

func TestCommitStore_PutCurrentPublishes(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestCommitStore()

	require.NoError(t, store.Put(ctx, CurrentName, []byte("v1.npz")))
	name, version, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1.npz", name)
	assert.EqualValues(t, 1, version)

	require.NoError(t, store.Put(ctx, CurrentName, []byte("v2.npz")))
	name, version, err = store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2.npz", name)
	assert.EqualValues(t, 2, version)
}

func TestCommitStore_ConcurrentModification(t *testing.T) {
	ctx := context.Background()
	store, ddb := newTestCommitStore()

	_, err := store.Commit(ctx, "first.npz")
	require.NoError(t, err)

	// a racing writer sees a stale latest version and collides on the
	// conditional write
	ddb.staleReads = true
	_, err = store.Commit(ctx, "second.npz")
	require.ErrorIs(t, err, ErrConcurrentModification)
}

func TestCommitStore_CreateCurrentRejected(t *testing.T) {
	store, _ := newTestCommitStore()
	_, err := store.Create(context.Background(), CurrentName)
	require.Error(t, err)

	w, err := store.Create(context.Background(), "data.npz")
	require.NoError(t, err)
	require.NoError(t, w.Close())
}
