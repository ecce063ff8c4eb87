// Package redisstore provides a Redis implementation of triage.Store. Each
// actor is one hash at <prefix>:<ip>, shared safely between replicas.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/linnemanlabs/soarbridge/internal/triage"
)

const defaultPrefix = "soarbridge:actor"

// Config configures Redis access for actor records.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	// TTL expires idle actor keys. Zero keeps them forever.
	TTL time.Duration
}

// Store keeps actor records in Redis hashes.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string, ttl time.Duration) *Store {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// Close releases the client.
func (s *Store) Close() error { return s.client.Close() }

// Ping checks connectivity, for readiness probes.
func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *Store) key(ip string) string { return s.prefix + ":" + ip }

// Get retrieves the record for ip.
func (s *Store) Get(ctx context.Context, ip string) (*triage.Record, bool, error) {
	m, err := s.client.HGetAll(ctx, s.key(ip)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", ip, err)
	}
	if len(m) == 0 {
		return nil, false, nil
	}
	count, _ := strconv.Atoi(m["hit_count"])
	seen, _ := time.Parse(time.RFC3339Nano, m["last_seen"])
	return &triage.Record{
		IP:       ip,
		CaseID:   m["case_id"],
		HitCount: count,
		LastSeen: seen,
		Verdict:  triage.Verdict(m["verdict"]),
	}, true, nil
}

// Touch increments hit_count and updates the other fields in one MULTI.
func (s *Store) Touch(ctx context.Context, ip, caseID string, v triage.Verdict, at time.Time) (*triage.Record, error) {
	key := s.key(ip)
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, key, "hit_count", 1)
		pipe.HSet(ctx, key,
			"case_id", caseID,
			"verdict", string(v),
			"last_seen", at.UTC().Format(time.RFC3339Nano),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis touch %s: %w", ip, err)
	}
	return &triage.Record{
		IP:       ip,
		CaseID:   caseID,
		HitCount: int(incr.Val()),
		LastSeen: at,
		Verdict:  v,
	}, nil
}

// Put replaces the record for r.IP.
func (s *Store) Put(ctx context.Context, r *triage.Record) error {
	key := s.key(r.IP)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"hit_count", strconv.Itoa(r.HitCount),
			"case_id", r.CaseID,
			"verdict", string(r.Verdict),
			"last_seen", r.LastSeen.UTC().Format(time.RFC3339Nano),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", r.IP, err)
	}
	return nil
}
