package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Constructor ---

func TestNewFileWatcher_Defaults(t *testing.T) {
	f := filepath.Join(t.TempDir(), "scenes.yaml")
	require.NoError(t, os.WriteFile(f, []byte("scenes: []"), 0644))

	w, err := NewFileWatcher([]string{f})
	require.NoError(t, err)

	assert.Equal(t, []string{f}, w.Paths())
	assert.False(t, w.IsRunning())
	assert.Equal(t, 100*time.Millisecond, w.debounceDelay)
	assert.Equal(t, time.Second, w.pollInterval)
}

func TestNewFileWatcher_WithOptions(t *testing.T) {
	f := filepath.Join(t.TempDir(), "scenes.yaml")
	require.NoError(t, os.WriteFile(f, []byte("scenes: []"), 0644))

	w, err := NewFileWatcher([]string{f},
		WithDebounceDelay(500*time.Millisecond),
		WithPollInterval(20*time.Millisecond),
		WithWatcherLogger(zap.NewNop()),
	)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, w.debounceDelay)
	assert.Equal(t, 20*time.Millisecond, w.pollInterval)
}

func TestNewFileWatcher_NonPositiveOptionsIgnored(t *testing.T) {
	w, err := NewFileWatcher(nil, WithDebounceDelay(0), WithPollInterval(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, w.debounceDelay)
	assert.Equal(t, time.Second, w.pollInterval)
}

func TestNewFileWatcher_MissingPathAllowed(t *testing.T) {
	w, err := NewFileWatcher([]string{filepath.Join(t.TempDir(), "later.yaml")})
	require.NoError(t, err)
	assert.Len(t, w.Paths(), 1)
}

func TestNewFileWatcher_ResolvesRelativePaths(t *testing.T) {
	w, err := NewFileWatcher([]string{"scenes.yaml"})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(w.Paths()[0]))
}

// --- AddPath / RemovePath ---

func TestFileWatcher_AddRemovePath(t *testing.T) {
	dir := t.TempDir()
	f1 := filepath.Join(dir, "a.yaml")
	f2 := filepath.Join(dir, "b.yaml")

	w, err := NewFileWatcher([]string{f1})
	require.NoError(t, err)

	require.NoError(t, w.AddPath(f2))
	require.NoError(t, w.AddPath(f2))
	assert.Equal(t, []string{f1, f2}, w.Paths())

	require.NoError(t, w.RemovePath(f1))
	assert.Equal(t, []string{f2}, w.Paths())

	err = w.RemovePath(filepath.Join(dir, "nonexistent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path not found")
}

// --- checkFiles ---

func TestFileWatcher_CheckFiles(t *testing.T) {
	f := filepath.Join(t.TempDir(), "scenes.yaml")
	w, err := NewFileWatcher([]string{f})
	require.NoError(t, err)

	assert.Empty(t, w.checkFiles())

	require.NoError(t, os.WriteFile(f, []byte("v1"), 0644))
	events := w.checkFiles()
	require.Len(t, events, 1)
	assert.Equal(t, FileOpCreate, events[0].Op)

	assert.Empty(t, w.checkFiles(), "unchanged file reports nothing")

	// 同一时间戳下大小变化也视为修改
	require.NoError(t, os.WriteFile(f, []byte("v2-longer"), 0644))
	events = w.checkFiles()
	require.Len(t, events, 1)
	assert.Equal(t, FileOpWrite, events[0].Op)

	require.NoError(t, os.Remove(f))
	events = w.checkFiles()
	require.Len(t, events, 1)
	assert.Equal(t, FileOpRemove, events[0].Op)
	assert.Equal(t, "REMOVE", events[0].Op.String())
}

// --- Start / Stop lifecycle ---

func TestFileWatcher_Lifecycle(t *testing.T) {
	f := filepath.Join(t.TempDir(), "scenes.yaml")
	require.NoError(t, os.WriteFile(f, []byte("v1"), 0644))

	w, err := NewFileWatcher([]string{f}, WithDebounceDelay(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, w.Start(ctx))
	assert.True(t, w.IsRunning())

	err = w.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
	require.NoError(t, w.Stop())

	// 停止后可以再次启动
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Stop())
}

func TestFileWatcher_ContextCancel(t *testing.T) {
	w, err := NewFileWatcher([]string{filepath.Join(t.TempDir(), "scenes.yaml")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		_ = w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
	assert.False(t, w.IsRunning())
}

// --- OnChange ---

func TestFileWatcher_OnChange_DetectsWrite(t *testing.T) {
	f := filepath.Join(t.TempDir(), "scenes.yaml")
	require.NoError(t, os.WriteFile(f, []byte("v1"), 0644))

	w, err := NewFileWatcher([]string{f},
		WithPollInterval(20*time.Millisecond),
		WithDebounceDelay(20*time.Millisecond))
	require.NoError(t, err)

	got := make(chan FileEvent, 10)
	w.OnChange(func(evt FileEvent) { got <- evt })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() { _ = w.Stop() })

	require.NoError(t, os.WriteFile(f, []byte("v2 with more bytes"), 0644))

	select {
	case evt := <-got:
		assert.Equal(t, f, evt.Path)
		assert.Equal(t, FileOpWrite, evt.Op)
	case <-time.After(3 * time.Second):
		t.Fatal("no change event")
	}
}

func TestFileWatcher_DispatchCoalesces(t *testing.T) {
	f := filepath.Join(t.TempDir(), "coalesce.yaml")

	w, err := NewFileWatcher([]string{f},
		WithPollInterval(time.Hour),
		WithDebounceDelay(50*time.Millisecond))
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		calls []FileEvent
	)
	w.OnChange(func(evt FileEvent) {
		mu.Lock()
		calls = append(calls, evt)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() { _ = w.Stop() })

	for i := 0; i < 20; i++ {
		w.eventChan <- FileEvent{Path: f, Op: FileOpWrite, Timestamp: time.Now()}
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, calls, 1, "events for one path coalesce into a single dispatch")
}

func TestFileWatcher_CallbackPanicRecovered(t *testing.T) {
	f := filepath.Join(t.TempDir(), "panic.yaml")
	w, err := NewFileWatcher([]string{f},
		WithPollInterval(time.Hour),
		WithDebounceDelay(10*time.Millisecond))
	require.NoError(t, err)

	second := make(chan struct{}, 1)
	w.OnChange(func(FileEvent) { panic("boom") })
	w.OnChange(func(FileEvent) { second <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() { _ = w.Stop() })

	w.eventChan <- FileEvent{Path: f, Op: FileOpCreate, Timestamp: time.Now()}

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("callback after a panicking one was not invoked")
	}
}
