package playbook

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheServesAndInvalidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "playbook.yaml")

	pb := New("test")
	AddBullet(pb, NewBulletInput{Content: "first rule", Category: "c"}, "", 90)
	require.NoError(t, Save(path, pb))

	cache := NewCache(Sources{GlobalPath: path})
	defer cache.Close()

	view, err := cache.Get()
	require.NoError(t, err)
	require.Len(t, view.Bullets, 1)

	// Write through the normal save path; the watcher should invalidate.
	AddBullet(pb, NewBulletInput{Content: "second rule", Category: "c"}, "", 90)
	require.NoError(t, Save(path, pb))

	// fsnotify delivery is asynchronous; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		view, err = cache.Get()
		require.NoError(t, err)
		if len(view.Bullets) == 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.Len(t, view.Bullets, 2, "cache did not pick up the on-disk write")
}

func TestCacheExplicitInvalidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "playbook.yaml")
	require.NoError(t, Save(path, New("test")))

	cache := NewCache(Sources{GlobalPath: path})
	defer cache.Close()

	_, err := cache.Get()
	require.NoError(t, err)

	pb := New("test")
	AddBullet(pb, NewBulletInput{Content: "rule", Category: "c"}, "", 90)
	require.NoError(t, Save(path, pb))

	cache.Invalidate()
	view, err := cache.Get()
	require.NoError(t, err)
	require.Len(t, view.Bullets, 1)
}
