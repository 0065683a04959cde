// Package equistore implements a labeled, block-structured sparse tensor
// storage engine for atomistic machine-learning data.
//
// Data is organized as a TensorMap: a sparse set of keys, each associated
// with a TensorBlock holding one numeric array annotated along its axes by
// labels (samples, components, properties). Blocks can carry gradients of
// their values with respect to named parameters.
//
// The package hosts the structural algorithms that move key dimensions into
// block axes while merging blocks (KeysToProperties, KeysToSamples) and the
// per-block ComponentsToProperties reshaping. Numeric storage is pluggable
// behind the data.Array capability; persistence lives in the archive
// subpackage.
//
// # Quick start
//
//	samples, _ := labels.New([]string{"structure", "center"}, [][]int32{{0, 0}, {0, 1}})
//	properties, _ := labels.New([]string{"n"}, [][]int32{{0}, {1}, {2}})
//	values, _ := data.NewDense([]int{2, 3})
//	block, _ := equistore.NewBlock(values, samples, nil, properties)
//
//	keys, _ := labels.New([]string{"species"}, [][]int32{{1}})
//	tensor, _ := equistore.New(keys, []*equistore.TensorBlock{block})
//
//	// move the "species" key dimension into the property axis
//	dense, _ := tensor.KeysToProperties([]string{"species"}, false)
//
// All operations are pure: they either return a brand-new TensorMap or
// TensorBlock, or fail leaving every existing object untouched. Labels are
// immutable and freely shared across concurrent readers.
package equistore
