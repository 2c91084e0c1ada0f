package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"filebox/backend/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFiles(userID uuid.UUID) []*model.File {
	return []*model.File{
		{ID: uuid.New(), Name: "a.txt", Path: "a.txt", Size: 3, IsDownloadable: true, UserID: userID, CreatedAt: time.Now().UTC().Truncate(time.Millisecond)},
		{ID: uuid.New(), Name: "b.pdf", Path: "docs/b.pdf", Size: 10, IsDownloadable: true, UserID: userID, CreatedAt: time.Now().UTC().Truncate(time.Millisecond)},
	}
}

func countingLoader(files []*model.File, calls *int32) FileListLoader {
	return func(ctx context.Context) ([]*model.File, error) {
		atomic.AddInt32(calls, 1)
		return files, nil
	}
}

func TestFileListCache_HitWithinTTL(t *testing.T) {
	c := NewFileListCache(nil, time.Minute)
	userID := uuid.New()
	files := sampleFiles(userID)
	var calls int32

	first, err := c.GetFileList(context.Background(), userID, countingLoader(files, &calls))
	require.NoError(t, err)
	second, err := c.GetFileList(context.Background(), userID, countingLoader(files, &calls))
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.Len(t, second, 2)
	assert.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Path, second[i].Path)
		assert.Equal(t, first[i].Size, second[i].Size)
		assert.Equal(t, first[i].UserID, second[i].UserID)
		assert.True(t, first[i].CreatedAt.Equal(second[i].CreatedAt))
	}
}

func TestFileListCache_ReloadsAfterExpiry(t *testing.T) {
	c := NewFileListCache(nil, 30*time.Millisecond)
	userID := uuid.New()
	var calls int32
	loader := countingLoader(sampleFiles(userID), &calls)

	_, err := c.GetFileList(context.Background(), userID, loader)
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = c.GetFileList(context.Background(), userID, loader)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFileListCache_KeysArePerUser(t *testing.T) {
	c := NewFileListCache(nil, time.Minute)
	alice, bob := uuid.New(), uuid.New()
	var calls int32

	aliceFiles, err := c.GetFileList(context.Background(), alice, countingLoader(sampleFiles(alice), &calls))
	require.NoError(t, err)
	bobFiles, err := c.GetFileList(context.Background(), bob, countingLoader([]*model.File{}, &calls))
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Len(t, aliceFiles, 2)
	assert.Empty(t, bobFiles)
}

func TestFileListCache_EmptyListIsHit(t *testing.T) {
	c := NewFileListCache(nil, time.Minute)
	userID := uuid.New()
	var calls int32
	loader := countingLoader([]*model.File{}, &calls)

	_, err := c.GetFileList(context.Background(), userID, loader)
	require.NoError(t, err)
	files, err := c.GetFileList(context.Background(), userID, loader)
	require.NoError(t, err)

	assert.NotNil(t, files)
	assert.Empty(t, files)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFileListCache_Invalidate(t *testing.T) {
	c := NewFileListCache(nil, time.Minute)
	userID := uuid.New()
	var calls int32
	loader := countingLoader(sampleFiles(userID), &calls)

	_, err := c.GetFileList(context.Background(), userID, loader)
	require.NoError(t, err)
	c.Invalidate(context.Background(), userID)
	_, err = c.GetFileList(context.Background(), userID, loader)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFileListCache_LoaderErrorIsNotCached(t *testing.T) {
	c := NewFileListCache(nil, time.Minute)
	userID := uuid.New()
	boom := errors.New("db down")

	_, err := c.GetFileList(context.Background(), userID, func(ctx context.Context) ([]*model.File, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	var calls int32
	files, err := c.GetFileList(context.Background(), userID, countingLoader(sampleFiles(userID), &calls))
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFileListCache_CorruptEntryIsReloaded(t *testing.T) {
	c := NewFileListCache(nil, time.Minute)
	userID := uuid.New()
	c.local[c.generateCacheKey(userID)] = localCacheItem{value: []byte{0xc1}, expiresAt: time.Now().Add(time.Minute)}

	var calls int32
	files, err := c.GetFileList(context.Background(), userID, countingLoader(sampleFiles(userID), &calls))
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFileListCache_ConcurrentMissesShareOneLoad(t *testing.T) {
	c := NewFileListCache(nil, time.Minute)
	userID := uuid.New()
	files := sampleFiles(userID)

	var calls int32
	release := make(chan struct{})
	loader := func(ctx context.Context) ([]*model.File, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return files, nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([][]*model.File, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := c.GetFileList(context.Background(), userID, loader)
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}

	// 等待所有 goroutine 进入同一次加载
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, got := range results {
		assert.Len(t, got, 2)
	}
}

func TestFileListCache_Redis(t *testing.T) {
	connString := os.Getenv("REDIS_CONN_STRING")
	if connString == "" {
		t.Skip("REDIS_CONN_STRING not set, skipping redis test")
	}
	opt, err := redis.ParseURL(connString)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	c := NewFileListCache(rdb, time.Minute)
	userID := uuid.New()
	defer c.Invalidate(context.Background(), userID)

	var calls int32
	loader := countingLoader(sampleFiles(userID), &calls)
	_, err = c.GetFileList(context.Background(), userID, loader)
	require.NoError(t, err)
	files, err := c.GetFileList(context.Background(), userID, loader)
	require.NoError(t, err)

	assert.Len(t, files, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	ttl, err := rdb.TTL(context.Background(), c.generateCacheKey(userID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
