// Package archive saves and loads tensor maps in the npz interchange
// format: a zip container of ".npy" entries, one per labels set or value
// array, laid out as
//
//	keys.npy
//	blocks/{i}/values.npy
//	blocks/{i}/samples.npy
//	blocks/{i}/components/{j}.npy
//	blocks/{i}/properties.npy
//	blocks/{i}/gradients/{parameter}/values.npy
//	blocks/{i}/gradients/{parameter}/samples.npy
//	blocks/{i}/gradients/{parameter}/components/{j}.npy
//
// Gradient properties always equal the parent block's and are not stored
// again. Entries are STORED by default, which keeps archives readable by
// numpy.load; Options.Compression switches to deflate when size matters
// more than interoperability.
//
// Loading materializes value buffers through an ArrayCreator callback, so
// callers with their own Array backend can keep loaded data off the
// built-in dense backend.
package archive
