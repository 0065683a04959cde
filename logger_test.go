package equistore

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler captures slog records with their attributes flattened
// into maps, for asserting on structured output. Clones made by WithAttrs
// share the recorder.
type recordingHandler struct {
	rec   *recorder
	attrs []slog.Attr
}

type recorder struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	message string
	attrs   map[string]any
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{rec: new(recorder)}
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	entry := logEntry{message: r.Message, attrs: make(map[string]any)}
	for _, a := range h.attrs {
		entry.attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		entry.attrs[a.Key] = a.Value.Any()
		return true
	})

	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	h.rec.entries = append(h.rec.entries, entry)
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordingHandler{
		rec:   h.rec,
		attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

func (h *recordingHandler) WithGroup(string) slog.Handler { return h }

func (h *recordingHandler) all() []logEntry {
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	return append([]logEntry(nil), h.rec.entries...)
}

func TestTensorMap_WithLogger_LogsReshape(t *testing.T) {
	h := newRecordingHandler()
	tensor := speciesMap(t, []int32{1, 2}, []*TensorBlock{
		testBlock(t, []int32{0}, []int32{0}, []float64{1}),
		testBlock(t, []int32{0}, []int32{0}, []float64{2}),
	}).WithLogger(NewLogger(h))

	moved, err := tensor.KeysToProperties([]string{"species"}, false)
	require.NoError(t, err)

	entries := h.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "reshape completed", entries[0].message)
	assert.Equal(t, "keys_to_properties", entries[0].attrs["op"])
	assert.Equal(t, int64(2), entries[0].attrs["keys"])
	assert.Equal(t, int64(1), entries[0].attrs["blocks_after"])

	// derived maps keep the logger
	_, err = moved.ComponentsToProperties([]string{"missing"})
	require.Error(t, err)

	entries = h.all()
	require.Len(t, entries, 2)
	assert.Equal(t, "reshape failed", entries[1].message)
	assert.Equal(t, "components_to_properties", entries[1].attrs["op"])
}

func TestTensorMap_NoLoggerIsSilent(t *testing.T) {
	tensor := speciesMap(t, []int32{1}, []*TensorBlock{
		testBlock(t, []int32{0}, []int32{0}, []float64{1}),
	})

	_, err := tensor.KeysToSamples([]string{"species"}, false)
	assert.NoError(t, err)
}
