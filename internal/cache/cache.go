// Package cache はRedisによるユーザーごとのタスクリストキャッシュを提供します。
// 変更操作の成功時に Invalidate が呼ばれ、次回の読み取りが最新を反映します。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go-task-flow/backend/internal/models"
)

// ListCache はユーザーごとのタスクリストをRedisにキャッシュします。
type ListCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// DefaultTTL はキャッシュエントリの既定の有効期間です。
const DefaultTTL = 5 * time.Minute

// New は新しいListCacheを作成します。
func New(client *redis.Client, prefix string, ttl time.Duration) *ListCache {
	return &ListCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *ListCache) key(userID int) string {
	return fmt.Sprintf("%stasks:%d", c.prefix, userID)
}

// GetList はキャッシュからタスクリストを取得します。
// 戻り値のboolはキャッシュヒットかどうかを示します。
func (c *ListCache) GetList(ctx context.Context, userID int, dest *[]*models.Task) (bool, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil // キャッシュミス
		}
		return false, fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	return true, nil
}

// SetList はタスクリストをキャッシュに保存します。
func (c *ListCache) SetList(ctx context.Context, userID int, tasks []*models.Task) error {
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}

	if err := c.client.Set(ctx, c.key(userID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

// Invalidate はユーザーのキャッシュエントリを削除します。
func (c *ListCache) Invalidate(ctx context.Context, userID int) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

// Ping はRedis接続の状態を確認します。
func (c *ListCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
