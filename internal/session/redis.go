package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pribylovaa/kiosk-admin/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisStore хранит пару как Redis Hash по ключу prefix+profile с полями
// at (access), rt (refresh), exp (unix, 0 — неизвестно).
// Позволяет нескольким инстансам админки разделять одну сессию.
type RedisStore struct {
	rdb     *redis.Client
	key     string
	ttl     time.Duration
	ownsRDB bool
}

// NewRedisStore создаёт хранилище поверх готового клиента.
// ttl — время жизни записи (обычно срок жизни refresh-токена); 0 — без TTL.
// Если prefix пустой — используется "kiosk-admin:session:".
func NewRedisStore(rdb *redis.Client, prefix, profile string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "kiosk-admin:session:"
	}

	if profile == "" {
		profile = "default"
	}

	return &RedisStore{rdb: rdb, key: prefix + profile, ttl: ttl}
}

// DialRedisStore создаёт клиент из URL (redis://:pass@host:6379/0) и проверяет соединение.
func DialRedisStore(ctx context.Context, redisURL, prefix, profile string, ttl time.Duration) (*RedisStore, error) {
	const op = "session.DialRedisStore"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	s := NewRedisStore(rdb, prefix, profile, ttl)
	s.ownsRDB = true
	return s, nil
}

func (s *RedisStore) Get(ctx context.Context) (models.TokenPair, bool, error) {
	const op = "session.RedisStore.Get"

	m, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return models.TokenPair{}, false, fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}

	if len(m) == 0 {
		return models.TokenPair{}, false, nil
	}

	pair := models.TokenPair{
		AccessToken:  m["at"],
		RefreshToken: m["rt"],
	}

	if raw := m["exp"]; raw != "" && raw != "0" {
		exp, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return models.TokenPair{}, false, fmt.Errorf("%s: parse exp: %w", op, err)
		}
		pair.AccessExpiresAt = time.Unix(exp, 0).UTC()
	}

	return pair, !pair.IsZero(), nil
}

func (s *RedisStore) Set(ctx context.Context, pair models.TokenPair) error {
	const op = "session.RedisStore.Set"

	var exp int64
	if !pair.AccessExpiresAt.IsZero() {
		exp = pair.AccessExpiresAt.Unix()
	}

	kv := map[string]string{
		"at":  pair.AccessToken,
		"rt":  pair.RefreshToken,
		"exp": strconv.FormatInt(exp, 10),
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, s.key)
	pipe.HSet(ctx, s.key, kv)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}

	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	const op = "session.RedisStore.Clear"

	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}

	return nil
}

// Close закрывает клиент Redis, если хранилище само его создало.
func (s *RedisStore) Close() error {
	if !s.ownsRDB {
		return nil
	}

	return s.rdb.Close()
}

var _ Store = (*RedisStore)(nil)
