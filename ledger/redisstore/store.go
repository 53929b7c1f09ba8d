// Package redisstore keeps ledger accounts in Redis.
//
// Each account is one string value under <prefix><base58 address>. Commit
// applies a transaction's updates and purges inside MULTI/EXEC, so readers
// never see half of a transaction.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"xdao.co/attest/address"
	"xdao.co/attest/ledger"
)

const DefaultPrefix = "attest:acct:"

// Store is a ledger.AccountStore over a go-redis client.
type Store struct {
	client *redis.Client
	prefix string
}

var _ ledger.AccountStore = (*Store)(nil)

type Option func(*Store)

// WithPrefix namespaces keys, letting several ledgers share one database.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Dial connects to addr and pings it.
func Dial(ctx context.Context, addr string, opts ...Option) (*Store, func() error, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redisstore: ping %s: %w", addr, err)
	}
	return New(client, opts...), client.Close, nil
}

func (s *Store) key(a address.Address) string { return s.prefix + a.String() }

func (s *Store) Get(ctx context.Context, key address.Address) (*ledger.Account, error) {
	b, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s: %w", key, err)
	}
	return ledger.UnmarshalAccount(b)
}

func (s *Store) Commit(ctx context.Context, updates map[address.Address]*ledger.Account, deletes []address.Address) error {
	if len(updates) == 0 && len(deletes) == 0 {
		return nil
	}
	encoded := make(map[string][]byte, len(updates))
	for k, a := range updates {
		b, err := a.MarshalBinary()
		if err != nil {
			return err
		}
		encoded[s.key(k)] = b
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, b := range encoded {
			pipe.Set(ctx, k, b, 0)
		}
		if len(deletes) > 0 {
			keys := make([]string, len(deletes))
			for i, d := range deletes {
				keys[i] = s.key(d)
			}
			pipe.Del(ctx, keys...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: commit: %w", err)
	}
	return nil
}
