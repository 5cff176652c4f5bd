package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/musedex/internal/db"
)

var _ db.Store = (*Store)(nil)

const (
	readyPollInitial = 50 * time.Millisecond
	readyPollMax     = time.Second
)

// Config holds connection parameters for the catalog's Redis deployment.
type Config struct {
	Addrs      []string
	Username   string
	Password   string
	DB         int
	ClientName string // shown in CLIENT LIST
	// WriteTimeout bounds a single pipelined write; zero keeps the rueidis default.
	WriteTimeout time.Duration
}

func (c Config) clientOption() (rueidis.ClientOption, error) {
	if len(c.Addrs) == 0 {
		return rueidis.ClientOption{}, errors.New("addrs is required")
	}
	return rueidis.ClientOption{
		InitAddress:      c.Addrs,
		Username:         c.Username,
		Password:         c.Password,
		SelectDB:         c.DB,
		ClientName:       c.ClientName,
		ConnWriteTimeout: c.WriteTimeout,
		DisableCache:     true,
		AlwaysRESP2:      true, // FT.AGGREGATE reply parsing expects RESP2 arrays
	}, nil
}

// Store is the catalog's connection to Redis 8 (or Redis Stack with RediSearch 2.8+).
type Store struct {
	client rueidis.Client
}

// NewStore dials the configured Redis deployment.
func NewStore(cfg Config) (*Store, error) {
	opt, err := cfg.clientOption()
	if err != nil {
		return nil, err
	}
	client, err := rueidis.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings right away, then retries with a doubling interval
// until Redis answers or timeout expires. The last ping error is kept in
// the returned error.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := readyPollInitial
	for {
		err := s.Ping(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("redis not ready after %s: %w", timeout, err)
		case <-time.After(interval):
		}
		interval = min(interval*2, readyPollMax)
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr reports whether err is a server reply whose message contains
// substr, ignoring case. RediSearch errors carry no stable prefix, so the
// message text is all there is to match on.
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
