package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/segfal/realtime-whiteboard-sub002/internal/domain"
	"github.com/segfal/realtime-whiteboard-sub002/internal/repository"
)

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "wb:" // 默认前缀 "wb:" (whiteboard)
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---

func (r *RedisStateRepository) pendingChangesKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:changes_pending", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) snapshotCacheKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:latest_canvas", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) sessionKey(userID string) string {
	return fmt.Sprintf("%ssession:%s", r.keyPrefix, userID)
}

// --- StateRepository Interface Implementation ---

// MarkPendingChanges 设置房间的脏标记，带 TTL 防止无用 key 堆积
func (r *RedisStateRepository) MarkPendingChanges(ctx context.Context, roomID string, ttl time.Duration) error {
	key := r.pendingChangesKey(roomID)
	if err := r.client.Set(ctx, key, "true", ttl).Err(); err != nil {
		return fmt.Errorf("redis: mark pending changes for room %s on key %s: %w", roomID, key, err)
	}
	return nil
}

// HasPendingChanges 检查房间的脏标记
func (r *RedisStateRepository) HasPendingChanges(ctx context.Context, roomID string) (bool, error) {
	key := r.pendingChangesKey(roomID)
	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil // 标记不存在即无待保存变更
		}
		return false, fmt.Errorf("redis: check pending changes for room %s on key %s: %w", roomID, key, err)
	}
	return result == "true", nil
}

// ClearPendingChanges 清除房间的脏标记
func (r *RedisStateRepository) ClearPendingChanges(ctx context.Context, roomID string) error {
	key := r.pendingChangesKey(roomID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: clear pending changes for room %s on key %s: %w", roomID, key, err)
	}
	return nil
}

// GetSnapshotCache 尝试从 Redis 缓存中获取最新快照
func (r *RedisStateRepository) GetSnapshotCache(ctx context.Context, roomID string) (*domain.CanvasSnapshot, error) {
	key := r.snapshotCacheKey(roomID)
	snapshotStr, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get snapshot cache for room %s from %s: %w", roomID, key, err)
	}
	var snapshot domain.CanvasSnapshot
	if err := json.Unmarshal([]byte(snapshotStr), &snapshot); err != nil {
		return nil, fmt.Errorf("redis: unmarshal snapshot cache for room %s from %s: %w", roomID, key, err)
	}
	return &snapshot, nil
}

// SetSnapshotCache 将最新快照写入 Redis 缓存
func (r *RedisStateRepository) SetSnapshotCache(ctx context.Context, roomID string, snapshot *domain.CanvasSnapshot, ttl time.Duration) error {
	key := r.snapshotCacheKey(roomID)
	snapshotBytes, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot for cache (room %s, version %d): %w", roomID, snapshot.Version, err)
	}
	if err := r.client.Set(ctx, key, snapshotBytes, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot cache for room %s on key %s: %w", roomID, key, err)
	}
	return nil
}

// CacheSession 将会话以 JSON 形式缓存
func (r *RedisStateRepository) CacheSession(ctx context.Context, session *domain.Session) error {
	key := r.sessionKey(session.UserID)
	sessionBytes, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redis: marshal session for user %s: %w", session.UserID, err)
	}
	// 会话缓存 1 小时过期，过期后回落到数据库
	if err := r.client.Set(ctx, key, sessionBytes, time.Hour).Err(); err != nil {
		return fmt.Errorf("redis: cache session for user %s on key %s: %w", session.UserID, key, err)
	}
	return nil
}

// GetCachedSession 从缓存读取会话
func (r *RedisStateRepository) GetCachedSession(ctx context.Context, userID string) (*domain.Session, error) {
	key := r.sessionKey(userID)
	sessionStr, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get cached session for user %s from %s: %w", userID, key, err)
	}
	var session domain.Session
	if err := json.Unmarshal([]byte(sessionStr), &session); err != nil {
		return nil, fmt.Errorf("redis: unmarshal cached session for user %s from %s: %w", userID, key, err)
	}
	return &session, nil
}

// DropCachedSession 删除缓存的会话
func (r *RedisStateRepository) DropCachedSession(ctx context.Context, userID string) error {
	key := r.sessionKey(userID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: drop cached session for user %s on key %s: %w", userID, key, err)
	}
	return nil
}

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
// 使用 Pipeline 合并 INCR 和 EXPIRE，减少网络往返。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := r.keyPrefix + "ratelimit:" + key
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", fullKey, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", fullKey, err)
	}
	return count > int64(limit), nil
}
