package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/fileforge/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func marker(n int64) types.VersionMarker {
	return types.VersionMarker{ModTime: time.Unix(0, n), Size: n}
}

func loaderFor(value interface{}, size int64, version types.VersionMarker) Loader {
	return func() (interface{}, int64, types.VersionMarker, error) {
		return value, size, version, nil
	}
}

func TestCache_MissThenHit(t *testing.T) {
	c := New(Config{})
	v1 := marker(1)
	key := Key(KindFile, "/a.go", v1)

	var loads int64
	load := func() (interface{}, int64, types.VersionMarker, error) {
		atomic.AddInt64(&loads, 1)
		return "content", 7, v1, nil
	}

	val, err := c.Get(key, "/a.go", KindFile, v1, load)
	require.NoError(t, err)
	assert.Equal(t, "content", val)

	val, err = c.Get(key, "/a.go", KindFile, v1, load)
	require.NoError(t, err)
	assert.Equal(t, "content", val)

	assert.EqualValues(t, 1, atomic.LoadInt64(&loads), "second call must hit, not reload")
	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
}

func TestCache_StaleVersionTriggersReload(t *testing.T) {
	c := New(Config{})
	v1, v2 := marker(1), marker(2)
	key1 := Key(KindFile, "/a.go", v1)
	key2 := Key(KindFile, "/a.go", v2)

	_, err := c.Get(key1, "/a.go", KindFile, v1, loaderFor("old", 3, v1))
	require.NoError(t, err)

	val, err := c.Get(key2, "/a.go", KindFile, v2, loaderFor("new", 3, v2))
	require.NoError(t, err)
	assert.Equal(t, "new", val)
}

func TestCache_LRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(Config{MaxEntries: 2})

	keyA := Key(KindFile, "/a.go", marker(1))
	keyB := Key(KindFile, "/b.go", marker(2))
	keyC := Key(KindFile, "/c.go", marker(3))

	_, err := c.Get(keyA, "/a.go", KindFile, marker(1), loaderFor("a", 1, marker(1)))
	require.NoError(t, err)
	_, err = c.Get(keyB, "/b.go", KindFile, marker(2), loaderFor("b", 1, marker(2)))
	require.NoError(t, err)

	// touch A so B becomes the least recently used
	_, err = c.Get(keyA, "/a.go", KindFile, marker(1), loaderFor("a", 1, marker(1)))
	require.NoError(t, err)

	_, err = c.Get(keyC, "/c.go", KindFile, marker(3), loaderFor("c", 1, marker(3)))
	require.NoError(t, err)

	require.NoError(t, c.CheckInvariants())
	stats := c.Stats()
	assert.Equal(t, 2, stats.Entries)

	var reloaded int64
	_, err = c.Get(keyB, "/b.go", KindFile, marker(2), func() (interface{}, int64, types.VersionMarker, error) {
		atomic.AddInt64(&reloaded, 1)
		return "b", 1, marker(2), nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, reloaded, "B should have been evicted, forcing a reload")
}

func TestCache_ConcurrentMissesCoalesceIntoOneLoad(t *testing.T) {
	c := New(Config{})
	key := Key(KindFile, "/a.go", marker(1))

	var loads int64
	release := make(chan struct{})
	load := func() (interface{}, int64, types.VersionMarker, error) {
		atomic.AddInt64(&loads, 1)
		<-release
		return "content", 1, marker(1), nil
	}

	var wg sync.WaitGroup
	const n = 8
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := c.Get(key, "/a.go", KindFile, marker(1), load)
			assert.NoError(t, err)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt64(&loads), "concurrent misses for the same key must coalesce")
}

func TestCache_InvalidatePathDropsEveryKind(t *testing.T) {
	c := New(Config{})
	fileKey := Key(KindFile, "/a.go", marker(1))
	astKey := Key(KindAST, "/a.go", marker(1))

	_, err := c.Get(fileKey, "/a.go", KindFile, marker(1), loaderFor("f", 1, marker(1)))
	require.NoError(t, err)
	_, err = c.Get(astKey, "/a.go", KindAST, marker(1), loaderFor("ast", 1, marker(1)))
	require.NoError(t, err)

	c.InvalidatePath("/a.go")
	assert.Equal(t, 0, c.Stats().Entries)
}
