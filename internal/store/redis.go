package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store es la capa de cache y contadores sobre Redis.
type Store struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

func InitRedis(ctx context.Context, addr string, db int, lg *slog.Logger) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	lg.Info("redis connected", "addr", addr, "db", db)
	return New(rdb, lg), nil
}

func New(rdb *redis.Client, lg *slog.Logger) *Store {
	return &Store{rdb: rdb, prefix: "simfleet:", logger: lg.With("component", "store"), now: time.Now}
}

func (s *Store) key(k string) string { return s.prefix + k }

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error { return s.rdb.Close() }

// GetJSON devuelve false sin error cuando la clave no existe.
func (s *Store) GetJSON(ctx context.Context, key string, v any) (bool, error) {
	b, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("redis GET %s: decode: %w", key, err)
	}
	return true, nil
}

func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis SET %s: encode: %w", key, err)
	}
	if err := s.rdb.Set(ctx, s.key(key), b, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	return s.rdb.Del(ctx, full...).Err()
}

// SaveStringSafe no propaga errores: sólo los loguea.
func (s *Store) SaveStringSafe(ctx context.Context, key, value string, ttl time.Duration) {
	if err := s.rdb.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		s.logger.Error("redis SET failed", "key", key, "err", err)
	}
}

func (s *Store) GetStrings(ctx context.Context, keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	vals, err := s.rdb.MGet(ctx, full...).Result()
	if err != nil {
		s.logger.Warn("redis MGET failed", "err", err)
		return out
	}
	for i, v := range vals {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok {
			out[keys[i]] = str
		}
	}
	return out
}

// IncDailyCounter incrementa el contador del día (UTC) para name y dice si
// todavía está dentro de limit. La clave expira a las 48h.
func (s *Store) IncDailyCounter(ctx context.Context, name string, limit int) (bool, int64, error) {
	day := s.now().UTC().Format("20060102")
	k := s.key("daily:" + name + ":" + day)

	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("redis INCR %s: %w", k, err)
	}
	n := incr.Val()
	if limit > 0 && n > int64(limit) {
		return false, n, nil
	}
	return true, n, nil
}

// DailyCount lee el contador del día sin incrementarlo.
func (s *Store) DailyCount(ctx context.Context, name string) (int64, error) {
	day := s.now().UTC().Format("20060102")
	n, err := s.rdb.Get(ctx, s.key("daily:"+name+":"+day)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
