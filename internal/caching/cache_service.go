package caching

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"categorybot/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	treeKey       = "categorybot:tree:nodes"
	generationKey = "categorybot:tree:generation"
)

// ErrStaleTree is returned by SetTree when the tree was invalidated after the
// caller read its generation; the node list was not stored.
var ErrStaleTree = errors.New("cached tree generation changed")

// CacheService caches the flat node list behind the category forest.
// GetTree returns (nil, nil) on a miss. Every InvalidateTree bumps the
// generation, and SetTree only stores nodes read under the current one.
type CacheService interface {
	GetTree(ctx context.Context) ([]*models.Category, error)
	Generation(ctx context.Context) (int64, error)
	SetTree(ctx context.Context, generation int64, nodes []*models.Category, ttl time.Duration) error
	InvalidateTree(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

type redisCacheService struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisCacheService(addr, password string, db int, logger *zap.Logger) CacheService {
	// Accept redis://host:port as well as host:port
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		logger.Warn("redis ping failed on initialization", zap.String("addr", parsedAddr), zap.Error(pingErr))
	} else {
		logger.Debug("redis connection established", zap.String("addr", parsedAddr))
	}

	return &redisCacheService{client: client, logger: logger}
}

// NewRedisCacheServiceFromClient wraps an existing client
func NewRedisCacheServiceFromClient(client *redis.Client, logger *zap.Logger) CacheService {
	return &redisCacheService{client: client, logger: logger}
}

func (r *redisCacheService) GetTree(ctx context.Context) ([]*models.Category, error) {
	data, err := r.client.Get(ctx, treeKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var nodes []*models.Category
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (r *redisCacheService) Generation(ctx context.Context) (int64, error) {
	return readGeneration(ctx, r.client)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, cmd getter) (int64, error) {
	generation, err := cmd.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return generation, err
}

// SetTree watches the generation key so a list read before another process
// invalidated the tree is never written over the fresh state.
func (r *redisCacheService) SetTree(ctx context.Context, generation int64, nodes []*models.Category, ttl time.Duration) error {
	if nodes == nil {
		nodes = []*models.Category{}
	}
	data, err := json.Marshal(nodes)
	if err != nil {
		return err
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx)
		if err != nil {
			return err
		}
		if current != generation {
			return ErrStaleTree
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, treeKey, data, ttl)
			return nil
		})
		return err
	}, generationKey)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrStaleTree
	}
	return err
}

func (r *redisCacheService) InvalidateTree(ctx context.Context) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, treeKey)
		return nil
	})
	return err
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCacheService) Close() error {
	return r.client.Close()
}

type noopCacheService struct{}

// NewNoopCacheService is used when no redis address is configured; every read misses
func NewNoopCacheService() CacheService {
	return noopCacheService{}
}

func (noopCacheService) GetTree(context.Context) ([]*models.Category, error) { return nil, nil }
func (noopCacheService) Generation(context.Context) (int64, error) { return 0, nil }
func (noopCacheService) SetTree(context.Context, int64, []*models.Category, time.Duration) error {
	return nil
}
func (noopCacheService) InvalidateTree(context.Context) error { return nil }
func (noopCacheService) Ping(context.Context) error           { return nil }
func (noopCacheService) Close() error                         { return nil }
