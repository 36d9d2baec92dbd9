package commands

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/skuhub/internal/source"
)

type memFingerprints struct {
	mu     sync.Mutex
	hashes map[string]string
}

func (m *memFingerprints) GetContentHash(path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashes[path], nil
}

func (m *memFingerprints) SetContentHash(path, hash, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hashes == nil {
		m.hashes = make(map[string]string)
	}
	m.hashes[path] = hash
	return nil
}

// record stores the current fingerprint of every watched path, the way a
// successful run does.
func (m *memFingerprints) record(t *testing.T, paths map[string]string) {
	for p, name := range paths {
		hash, err := source.Fingerprint(p)
		if err != nil {
			continue
		}
		require.NoError(t, m.SetContentHash(filepath.Clean(p), hash, name))
	}
}

func writeSource(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestSourceWatcher_Changed(t *testing.T) {
	dir := t.TempDir()
	flowPath := filepath.Join(dir, "flow.csv")
	stockPath := filepath.Join(dir, "stock.csv")
	writeSource(t, flowPath, "SKU\nA\n")
	writeSource(t, stockPath, "SKU\nB\n")

	paths := map[string]string{
		flowPath:                          "flow",
		stockPath:                         "stock",
		filepath.Join(dir, "invoice.csv"): "invoice",
	}
	fp := &memFingerprints{}
	w := newSourceWatcher(paths, fp, 0, nil, nil)

	assert.Equal(t, []string{"flow", "stock"}, w.changed(), "missing files are skipped")

	fp.record(t, paths)
	assert.Empty(t, w.changed())

	writeSource(t, stockPath, "SKU\nB\nC\n")
	assert.Equal(t, []string{"stock"}, w.changed())
}

func TestSourceWatcher_Cycle(t *testing.T) {
	dir := t.TempDir()
	flowPath := filepath.Join(dir, "flow.csv")
	writeSource(t, flowPath, "SKU\nA\n")
	paths := map[string]string{flowPath: "flow"}

	fp := &memFingerprints{}
	runs := 0
	w := newSourceWatcher(paths, fp, 0, func(context.Context) error {
		runs++
		fp.record(t, paths)
		return nil
	}, nil)

	ran, err := w.cycle(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)

	ran, err = w.cycle(context.Background())
	require.NoError(t, err)
	assert.False(t, ran, "unchanged sources skip the run")
	assert.Equal(t, 1, runs)
}

func TestSourceWatcher_Watch(t *testing.T) {
	dir := t.TempDir()
	flowPath := filepath.Join(dir, "flow.csv")
	writeSource(t, flowPath, "SKU\nA\n")
	paths := map[string]string{flowPath: "flow"}

	fp := &memFingerprints{}
	var runs atomic.Int32
	w := newSourceWatcher(paths, fp, 20*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		fp.record(t, paths)
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond,
		"initial cycle runs once")

	writeSource(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeSource(t, flowPath, "SKU\nA\nB\n")
	assert.Eventually(t, func() bool { return runs.Load() == 2 }, 2*time.Second, 10*time.Millisecond,
		"a source change triggers another run")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
	assert.Equal(t, int32(2), runs.Load())
}
