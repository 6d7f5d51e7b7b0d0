package watchdog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatchDogForwardsMatchingCreates(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notify := make(chan string, 8)
	factory := NewWatchDogFactory(zap.NewNop())
	dog, err := factory.New(ctx, notify, func(path string) bool {
		return strings.HasPrefix(filepath.Base(path), "crash-")
	})
	require.NoError(t, err)
	dog.AddDir(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "fuzz.log"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crash-abc"), []byte("x"), 0644))

	select {
	case path := <-notify:
		assert.Equal(t, filepath.Join(dir, "crash-abc"), path, "filtered files must never arrive")
	case <-time.After(3 * time.Second):
		t.Fatal("no notification for a matching created file")
	}
}

func TestWatchDogNilFilterForwardsEverything(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notify := make(chan string, 8)
	factory := NewWatchDogFactory(zap.NewNop())
	dog, err := factory.New(ctx, notify, nil)
	require.NoError(t, err)
	dog.AddDir(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "anything"), []byte("x"), 0644))

	select {
	case path := <-notify:
		assert.Equal(t, filepath.Join(dir, "anything"), path)
	case <-time.After(3 * time.Second):
		t.Fatal("no notification for a created file")
	}
}

func TestWatchDogClosesChannelWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	notify := make(chan string, 1)
	factory := NewWatchDogFactory(zap.NewNop())
	_, err := factory.New(ctx, notify, nil)
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-notify:
		assert.False(t, open, "notify channel must be closed, not sent to")
	case <-time.After(3 * time.Second):
		t.Fatal("notify channel not closed after context cancellation")
	}
}
