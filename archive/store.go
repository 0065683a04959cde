package archive

import (
	"context"
	"time"

	"github.com/bananenpampe/equistore"
	"github.com/bananenpampe/equistore/blobstore"
)

// SaveToStore serializes the tensor map and writes it to the blob store
// under the given name.
func SaveToStore(ctx context.Context, store blobstore.Store, name string, tensor *equistore.TensorMap, o Options) error {
	o = o.withDefaults()
	start := time.Now()

	buf, err := SaveBuffer(tensor, o)
	if err != nil {
		o.Logger.LogSave(ctx, name, 0, err)
		o.Metrics.RecordSave(0, time.Since(start), err)
		return err
	}

	err = store.Put(ctx, name, buf)
	o.Logger.LogSave(ctx, name, tensor.Len(), err)
	o.Metrics.RecordSave(tensor.Len(), time.Since(start), err)
	return err
}

// LoadFromStore reads a tensor map from the blob store. The blob is read
// in place through its io.ReaderAt, so mmap-backed stores avoid a copy.
func LoadFromStore(ctx context.Context, store blobstore.Store, name string, o Options) (*equistore.TensorMap, error) {
	o = o.withDefaults()
	start := time.Now()

	blob, err := store.Open(ctx, name)
	if err != nil {
		o.Logger.LogLoad(ctx, name, 0, err)
		o.Metrics.RecordLoad(0, time.Since(start), err)
		return nil, err
	}
	defer blob.Close()

	tensor, err := Read(blob, blob.Size(), o)
	blocks := 0
	if tensor != nil {
		blocks = tensor.Len()
	}
	o.Logger.LogLoad(ctx, name, blocks, err)
	o.Metrics.RecordLoad(blocks, time.Since(start), err)
	return tensor, err
}
