// Package cache holds the read-through cache in front of account snapshots
// and active wager listings. Entries are dropped by local event handlers once
// the writing transaction has committed.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mxiledger/domain/entities"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// ReadCache caches read models. A miss returns false together with the
// version of the entry at the time of the miss; the caller reads the source
// and hands that version back to Set, which stores nothing if an invalidation
// ran in between. Cache failures are treated as misses with an empty version,
// and an empty version is never stored.
type ReadCache interface {
	GetAccount(ctx context.Context, userID string) (*entities.AccountSnapshot, string, bool)
	SetAccount(ctx context.Context, snapshot *entities.AccountSnapshot, version string)
	InvalidateAccount(ctx context.Context, userID string)
	InvalidateAllAccounts(ctx context.Context)

	GetActiveWagers(ctx context.Context, gameType string) ([]*entities.Wager, string, bool)
	SetActiveWagers(ctx context.Context, gameType string, wagers []*entities.Wager, version string)
	InvalidateActiveWagers(ctx context.Context, gameType string)
}

const keyPrefix = "mxi:"

func accountKey(userID string) string       { return fmt.Sprintf("%saccount:%s", keyPrefix, userID) }
func activeWagersKey(gameType string) string { return fmt.Sprintf("%swagers:active:%s", keyPrefix, gameType) }

// Generation counters, bumped by every invalidation of the matching entry.
// The all-accounts counter covers accounts that were not cached when the
// reset ran.
func generationKey(key string) string { return keyPrefix + "gen:" + strings.TrimPrefix(key, keyPrefix) }

const allAccountsGenerationKey = keyPrefix + "gen:accounts"

func accountGenerationKeys(userID string) []string {
	return []string{allAccountsGenerationKey, generationKey(accountKey(userID))}
}

func activeWagersGenerationKeys(gameType string) []string {
	return []string{generationKey(activeWagersKey(gameType))}
}

// setIfCurrent stores KEYS[1] only while the generations in KEYS[2:] still
// read as ARGV[1]
var setIfCurrent = redis.NewScript(`
local parts = {}
for i = 2, #KEYS do
	parts[#parts + 1] = redis.call('GET', KEYS[i]) or '0'
end
if table.concat(parts, ':') ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// RedisCache is a ReadCache on Redis with a fixed TTL per entry
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache creates a cache over an existing client
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// Connect parses a redis:// URL and verifies the server answers
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

func (c *RedisCache) GetAccount(ctx context.Context, userID string) (*entities.AccountSnapshot, string, bool) {
	var snapshot entities.AccountSnapshot
	if !c.get(ctx, accountKey(userID), &snapshot) {
		return nil, c.version(ctx, accountGenerationKeys(userID)), false
	}
	return &snapshot, "", true
}

func (c *RedisCache) SetAccount(ctx context.Context, snapshot *entities.AccountSnapshot, version string) {
	c.set(ctx, accountKey(snapshot.UserID), accountGenerationKeys(snapshot.UserID), snapshot, version)
}

func (c *RedisCache) InvalidateAccount(ctx context.Context, userID string) {
	c.invalidate(ctx, generationKey(accountKey(userID)), accountKey(userID))
}

// InvalidateAllAccounts drops every cached account snapshot and turns away
// fills that started before it
func (c *RedisCache) InvalidateAllAccounts(ctx context.Context) {
	if err := c.rdb.Incr(ctx, allAccountsGenerationKey).Err(); err != nil {
		log.WithError(err).Warn("Failed to bump account cache generation")
	}
	iter := c.rdb.Scan(ctx, 0, accountKey("*"), 500).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.WithError(err).Warn("Failed to scan cached accounts")
		return
	}
	if len(keys) > 0 {
		c.del(ctx, keys...)
	}
}

func (c *RedisCache) GetActiveWagers(ctx context.Context, gameType string) ([]*entities.Wager, string, bool) {
	var wagers []*entities.Wager
	if !c.get(ctx, activeWagersKey(gameType), &wagers) {
		return nil, c.version(ctx, activeWagersGenerationKeys(gameType)), false
	}
	return wagers, "", true
}

func (c *RedisCache) SetActiveWagers(ctx context.Context, gameType string, wagers []*entities.Wager, version string) {
	c.set(ctx, activeWagersKey(gameType), activeWagersGenerationKeys(gameType), wagers, version)
}

func (c *RedisCache) InvalidateActiveWagers(ctx context.Context, gameType string) {
	c.invalidate(ctx, generationKey(activeWagersKey(gameType)), activeWagersKey(gameType))
}

func (c *RedisCache) get(ctx context.Context, key string, target any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.WithFields(log.Fields{
				"key":   key,
				"error": err,
			}).Warn("Cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, target); err != nil {
		log.WithFields(log.Fields{
			"key":   key,
			"error": err,
		}).Warn("Dropping undecodable cache entry")
		c.del(ctx, key)
		return false
	}
	return true
}

// version reads the generation counters of an entry. Counters that were
// never bumped read as 0.
func (c *RedisCache) version(ctx context.Context, genKeys []string) string {
	values, err := c.rdb.MGet(ctx, genKeys...).Result()
	if err != nil {
		log.WithFields(log.Fields{
			"keys":  genKeys,
			"error": err,
		}).Warn("Cache generation read failed")
		return ""
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = "0"
		if s, ok := v.(string); ok {
			parts[i] = s
		}
	}
	return strings.Join(parts, ":")
}

func (c *RedisCache) set(ctx context.Context, key string, genKeys []string, value any, version string) {
	if version == "" {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	keys := append([]string{key}, genKeys...)
	stored, err := setIfCurrent.Run(ctx, c.rdb, keys, version, data, c.ttl.Milliseconds()).Int()
	if err != nil {
		log.WithFields(log.Fields{
			"key":   key,
			"error": err,
		}).Warn("Cache write failed")
		return
	}
	if stored == 0 {
		log.WithField("key", key).Debug("Skipping cache fill after invalidation")
	}
}

// invalidate bumps the generation before dropping the entry so a reader that
// missed earlier cannot store what it read
func (c *RedisCache) invalidate(ctx context.Context, genKey, key string) {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		log.WithFields(log.Fields{
			"key":   key,
			"error": err,
		}).Warn("Cache invalidation failed")
	}
}

func (c *RedisCache) del(ctx context.Context, keys ...string) {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		log.WithFields(log.Fields{
			"keys":  keys,
			"error": err,
		}).Warn("Cache invalidation failed")
	}
}

// NoopCache never stores anything
type NoopCache struct{}

func (NoopCache) GetAccount(context.Context, string) (*entities.AccountSnapshot, string, bool) {
	return nil, "", false
}
func (NoopCache) SetAccount(context.Context, *entities.AccountSnapshot, string) {}
func (NoopCache) InvalidateAccount(context.Context, string)                     {}
func (NoopCache) InvalidateAllAccounts(context.Context)                         {}
func (NoopCache) GetActiveWagers(context.Context, string) ([]*entities.Wager, string, bool) {
	return nil, "", false
}
func (NoopCache) SetActiveWagers(context.Context, string, []*entities.Wager, string) {}
func (NoopCache) InvalidateActiveWagers(context.Context, string)                    {}
