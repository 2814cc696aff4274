package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	logx "chatmate/pkg/logx"
)

const redisHistoryKeep = 10000

// RedisStore keeps jobs in a hash (plus a sorted set for creation order) and
// history in a list with the newest entry at the head.
type RedisStore struct {
	client redis.UniversalClient
	log    logx.Logger
	owned  bool

	jobsKey    string
	orderKey   string
	historyKey string
}

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("storage.addr is required for redis driver")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	st := NewRedisStore(client, cfg.Prefix, log)
	st.owned = true
	log.Debug("redis store opened", logx.String("addr", addr), logx.Int("db", cfg.DB))
	return st, nil
}

// NewRedisStore wraps an existing client. The caller keeps ownership of client.
func NewRedisStore(client redis.UniversalClient, prefix string, log logx.Logger) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "chatmate"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &RedisStore{
		client:     client,
		log:        log,
		jobsKey:    prefix + ":jobs",
		orderKey:   prefix + ":jobs:order",
		historyKey: prefix + ":history",
	}
}

func (s *RedisStore) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

func (s *RedisStore) PutJob(ctx context.Context, r JobRecord) error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("job id required")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.jobsKey, r.ID, b)
		p.ZAddNX(ctx, s.orderKey, redis.Z{Score: float64(r.CreatedAt.UnixNano()), Member: r.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put job: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteJob(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, s.jobsKey, id)
		p.ZRem(ctx, s.orderKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete job: %w", err)
	}
	return nil
}

func (s *RedisStore) ListJobs(ctx context.Context) ([]JobRecord, error) {
	ids, err := s.client.ZRange(ctx, s.orderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list jobs: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	vals, err := s.client.HMGet(ctx, s.jobsKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list jobs: %w", err)
	}
	out := make([]JobRecord, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			s.log.Debug("dangling job order entry", logx.String("job", ids[i]))
			continue
		}
		var r JobRecord
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			s.log.Warn("skipping undecodable job record", logx.String("job", ids[i]), logx.Err(err))
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RedisStore) AppendHistory(ctx context.Context, r HistoryRecord) error {
	if r.ExecutedAt.IsZero() {
		r.ExecutedAt = time.Now()
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, s.historyKey, b)
		p.LTrim(ctx, s.historyKey, 0, redisHistoryKeep-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append history: %w", err)
	}
	return nil
}

func (s *RedisStore) RecentHistory(ctx context.Context, limit int) ([]HistoryRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	vals, err := s.client.LRange(ctx, s.historyKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis recent history: %w", err)
	}
	out := make([]HistoryRecord, 0, len(vals))
	for _, v := range vals {
		var r HistoryRecord
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RedisStore) ClearHistory(ctx context.Context) (int, error) {
	var n *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		n = p.LLen(ctx, s.historyKey)
		p.Del(ctx, s.historyKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis clear history: %w", err)
	}
	return int(n.Val()), nil
}
