// Package npy reads and writes NumPy ".npy" payloads, limited to the two
// layouts the archive format uses: little-endian float64 C-order arrays for
// block values, and structured little-endian int32 records for labels.
package npy
