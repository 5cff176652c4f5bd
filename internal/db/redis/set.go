package redis

import (
	"context"

	"github.com/kailas-cloud/musedex/internal/db"
)

// SAdd adds members to a set.
func (s *Store) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	cmd := s.b().Sadd().Key(key).Member(members...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSAdd, Err: err}
	}
	return nil
}

// SRandMember returns up to count distinct random members of a set.
func (s *Store) SRandMember(ctx context.Context, key string, count int) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}
	cmd := s.b().Srandmember().Key(key).Count(int64(count)).Build()
	members, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpSRandMember, Err: err}
	}
	return members, nil
}

// SCard returns the number of members of a set.
func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Scard().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpSCard, Err: err}
	}
	return n, nil
}
