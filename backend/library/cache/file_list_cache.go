package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"filebox/backend/common"
	"filebox/backend/library/metrics"
	"filebox/backend/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// FileListLoader loads the authoritative file list on a cache miss.
type FileListLoader func(ctx context.Context) ([]*model.File, error)

type localCacheItem struct {
	value     []byte
	expiresAt time.Time
}

// 超过该数量时写入本地缓存前顺带清理过期项
const localPruneThreshold = 1024

// FileListCache caches each user's file list as a msgpack blob, in redis
// when available and in process memory otherwise.
type FileListCache struct {
	rdb        *redis.Client
	expireTime time.Duration
	mutex      sync.RWMutex
	local      map[string]localCacheItem
	group      singleflight.Group
}

func NewFileListCache(rdb *redis.Client, expireTime time.Duration) *FileListCache {
	if expireTime <= 0 {
		expireTime = 60 * time.Second
	}
	return &FileListCache{
		rdb:        rdb,
		expireTime: expireTime,
		local:      make(map[string]localCacheItem),
	}
}

func (c *FileListCache) generateCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("files:user:%s", userID)
}

// GetFileList returns the cached list for userID, calling load at most once
// per key for concurrent misses.
func (c *FileListCache) GetFileList(ctx context.Context, userID uuid.UUID, load FileListLoader) ([]*model.File, error) {
	cacheKey := c.generateCacheKey(userID)

	if files, ok := c.lookup(ctx, cacheKey); ok {
		metrics.FileListCache.WithLabelValues("hit").Inc()
		return files, nil
	}
	metrics.FileListCache.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(cacheKey, func() (interface{}, error) {
		// 共享的加载不应因首个调用方取消而失败
		loadCtx := context.WithoutCancel(ctx)
		files, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		blob, err := msgpack.Marshal(files)
		if err != nil {
			common.Logger().Warn("encode file list cache", zap.String("key", cacheKey), zap.Error(err))
			return files, nil
		}
		c.store(loadCtx, cacheKey, blob)
		return files, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*model.File), nil
}

// Invalidate drops the cached list so the next read reloads it.
func (c *FileListCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	cacheKey := c.generateCacheKey(userID)
	c.group.Forget(cacheKey)
	c.delete(ctx, cacheKey)
}

func (c *FileListCache) lookup(ctx context.Context, cacheKey string) ([]*model.File, bool) {
	blob, ok := c.load(ctx, cacheKey)
	if !ok {
		return nil, false
	}
	var files []*model.File
	if err := msgpack.Unmarshal(blob, &files); err != nil {
		common.Logger().Warn("decode file list cache", zap.String("key", cacheKey), zap.Error(err))
		c.delete(ctx, cacheKey)
		return nil, false
	}
	if files == nil {
		files = make([]*model.File, 0)
	}
	return files, true
}

func (c *FileListCache) load(ctx context.Context, cacheKey string) ([]byte, bool) {
	if c.rdb == nil {
		c.mutex.RLock()
		item, ok := c.local[cacheKey]
		c.mutex.RUnlock()
		if !ok {
			return nil, false
		}
		if time.Now().After(item.expiresAt) {
			c.mutex.Lock()
			if cur, ok := c.local[cacheKey]; ok && time.Now().After(cur.expiresAt) {
				delete(c.local, cacheKey)
			}
			c.mutex.Unlock()
			return nil, false
		}
		return item.value, true
	}

	blob, err := c.rdb.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			common.Logger().Warn("get file list cache", zap.String("key", cacheKey), zap.Error(err))
		}
		return nil, false
	}
	return blob, true
}

func (c *FileListCache) store(ctx context.Context, cacheKey string, blob []byte) {
	if c.rdb == nil {
		c.mutex.Lock()
		defer c.mutex.Unlock()
		now := time.Now()
		if len(c.local) >= localPruneThreshold {
			for k, item := range c.local {
				if now.After(item.expiresAt) {
					delete(c.local, k)
				}
			}
		}
		c.local[cacheKey] = localCacheItem{value: blob, expiresAt: now.Add(c.expireTime)}
		return
	}

	if err := c.rdb.Set(ctx, cacheKey, blob, c.expireTime).Err(); err != nil {
		common.Logger().Warn("set file list cache", zap.String("key", cacheKey), zap.Error(err))
	}
}

func (c *FileListCache) delete(ctx context.Context, cacheKey string) {
	if c.rdb == nil {
		c.mutex.Lock()
		delete(c.local, cacheKey)
		c.mutex.Unlock()
		return
	}
	if err := c.rdb.Del(ctx, cacheKey).Err(); err != nil {
		common.Logger().Warn("delete file list cache", zap.String("key", cacheKey), zap.Error(err))
	}
}

var globalFileListCache *FileListCache
var fileListCacheOnce sync.Once

// GetFileListCache returns the process-wide cache, backed by redis when enabled.
func GetFileListCache() *FileListCache {
	fileListCacheOnce.Do(func() {
		var rdb *redis.Client
		if common.RedisEnabled {
			rdb = common.RDB
		}
		globalFileListCache = NewFileListCache(rdb, common.FileListCacheTTL)
	})
	return globalFileListCache
}
