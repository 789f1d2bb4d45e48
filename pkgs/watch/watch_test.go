package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isSpec(path string) bool {
	return strings.HasSuffix(path, ".gounit")
}

// startWatcher runs w in the background and returns the channel of batches
func startWatcher(t *testing.T, w *Watcher) <-chan []string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan []string, 16)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, changed []string) error {
			batches <- changed
			return nil
		})
	}()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	// Give the watcher time to register its directories.
	time.Sleep(100 * time.Millisecond)
	return batches
}

func waitBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
		return nil
	}
}

func TestReportsMatchingChangesInOneBatch(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, New([]string{dir}, WithMatch(isSpec), WithDebounce(50*time.Millisecond)))

	a := filepath.Join(dir, "a.gounit")
	b := filepath.Join(dir, "b.gounit")
	require.NoError(t, os.WriteFile(b, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(a, []byte("x"), 0o644))

	assert.Equal(t, []string{a, b}, waitBatch(t, batches))
}

func TestWatchesNewDirectories(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, New([]string{dir}, WithMatch(isSpec), WithDebounce(50*time.Millisecond)))

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)

	spec := filepath.Join(sub, "c.gounit")
	require.NoError(t, os.WriteFile(spec, []byte("x"), 0o644))
	assert.Equal(t, []string{spec}, waitBatch(t, batches))
}

func TestStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New([]string{t.TempDir()}).Run(ctx, func(context.Context, []string) error { return nil })
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestMissingRoot(t *testing.T) {
	err := New([]string{filepath.Join(t.TempDir(), "missing")}).Run(context.Background(), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
