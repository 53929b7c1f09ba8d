// Package config loads the JSON configuration shared by the attest binaries.
//
// Example:
//
//	{
//	  "listen": "127.0.0.1:7777",
//	  "metrics_listen": "127.0.0.1:9100",
//	  "log_level": "info",
//	  "emit_create_events": true,
//	  "accounts": {"backend": "redis", "redis_addr": "127.0.0.1:6379"},
//	  "events": {
//	    "write_policy": "all",
//	    "head_file": "/var/lib/attest/head",
//	    "backends": [
//	      {"name": "localfs", "id": "primary", "config": {"localfs-dir": "/var/lib/attest/cas"}},
//	      {"name": "grpc", "config": {"grpc-target": "replica:7777"}}
//	    ]
//	  }
//	}
//
// Event backends are opened through casregistry, so binaries must link the
// backend packages they accept (usually as blank imports). The grpc backend
// is a client and only opens for CLI usage; the event daemon rejects it.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/attest/audit"
	"xdao.co/attest/cidutil"
	"xdao.co/attest/ledger"
	"xdao.co/attest/ledger/redisstore"
	"xdao.co/attest/storage"
	"xdao.co/attest/storage/casregistry"
)

const (
	AccountsMemory = "memory"
	AccountsRedis  = "redis"

	WriteFirst = "first"
	WriteAll   = "all"
)

type Config struct {
	Listen           string   `json:"listen,omitempty"`
	MetricsListen    string   `json:"metrics_listen,omitempty"`
	LogLevel         string   `json:"log_level,omitempty"`
	EmitCreateEvents bool     `json:"emit_create_events,omitempty"`
	Accounts         Accounts `json:"accounts"`
	Events           Events   `json:"events"`
}

// Accounts selects the ledger account store. An empty Backend means memory.
type Accounts struct {
	Backend     string `json:"backend,omitempty"`
	RedisAddr   string `json:"redis_addr,omitempty"`
	RedisPrefix string `json:"redis_prefix,omitempty"`
}

// Events describes the CAS backends holding the audit log.
//
// WritePolicy "first" (default) writes to the first backend and reads fall
// back in order; "all" writes to every backend and requires equal CIDs.
// HeadFile, when set, persists the newest batch CID between runs.
type Events struct {
	WritePolicy string    `json:"write_policy,omitempty"`
	HeadFile    string    `json:"head_file,omitempty"`
	Backends    []Backend `json:"backends"`
}

type Backend struct {
	// Name is the casregistry backend to open (e.g. "localfs", "grpc").
	Name string `json:"name"`
	// ID is an optional stable alias. If empty, Name is used.
	ID     string            `json:"id,omitempty"`
	Config map[string]string `json:"config,omitempty"`
}

func (b Backend) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("config: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Accounts.Backend {
	case "", AccountsMemory:
	case AccountsRedis:
		if c.Accounts.RedisAddr == "" {
			return errors.New("config: accounts.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: invalid accounts.backend %q", c.Accounts.Backend)
	}
	return c.Events.Validate()
}

func (e Events) Validate() error {
	if len(e.Backends) == 0 {
		return errors.New("config: at least one events backend is required")
	}
	seen := make(map[string]struct{}, len(e.Backends))
	for _, b := range e.Backends {
		if b.Name == "" {
			return errors.New("config: events backend name is required")
		}
		if _, ok := seen[b.id()]; ok {
			return fmt.Errorf("config: duplicate events backend id %q", b.id())
		}
		seen[b.id()] = struct{}{}
	}
	switch e.WritePolicy {
	case "", WriteFirst, WriteAll:
		return nil
	default:
		return fmt.Errorf("config: invalid events.write_policy %q", e.WritePolicy)
	}
}

// Level returns the configured slog level. Empty means info.
func (c Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("config: invalid log_level %q", s)
	}
	return l, nil
}

// Open opens the event CAS backends per the write policy.
func (e Events) Open(usage casregistry.Usage) (storage.CAS, func() error, error) {
	if err := e.Validate(); err != nil {
		return nil, nil, err
	}

	named := make([]storage.NamedCAS, 0, len(e.Backends))
	closers := make([]func() error, 0, len(e.Backends))
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	for _, b := range e.Backends {
		cas, closeFn, err := casregistry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("config: events backend %q: %w", b.id(), err)
		}
		named = append(named, storage.NamedCAS{Name: b.id(), CAS: cas})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].CAS, closeAll, nil
	}
	if e.WritePolicy == WriteAll {
		return storage.ReplicatingCAS{Backends: named}, closeAll, nil
	}
	adapters := make([]storage.CAS, 0, len(named))
	for _, n := range named {
		adapters = append(adapters, n.CAS)
	}
	return storage.MultiCAS{Adapters: adapters}, closeAll, nil
}

// Head reads the persisted log head. It returns cid.Undef when HeadFile is
// unset or does not exist yet.
func (e Events) Head() (cid.Cid, error) {
	if e.HeadFile == "" {
		return cid.Undef, nil
	}
	b, err := os.ReadFile(e.HeadFile)
	if errors.Is(err, os.ErrNotExist) {
		return cid.Undef, nil
	}
	if err != nil {
		return cid.Undef, err
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return cid.Undef, nil
	}
	return cidutil.Parse(s)
}

// SaveHead persists head to HeadFile. It is a no-op when HeadFile is unset.
func (e Events) SaveHead(head cid.Cid) error {
	if e.HeadFile == "" || !head.Defined() {
		return nil
	}
	tmp := e.HeadFile + ".tmp"
	if err := os.WriteFile(tmp, []byte(head.String()+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, e.HeadFile)
}

// OpenLog opens the event CAS and replays the log from the persisted head.
func (e Events) OpenLog(ctx context.Context, usage casregistry.Usage, opts ...audit.Option) (*audit.Log, func() error, error) {
	cas, closeFn, err := e.Open(usage)
	if err != nil {
		return nil, nil, err
	}
	head, err := e.Head()
	if err != nil {
		_ = closeFn()
		return nil, nil, fmt.Errorf("config: read head: %w", err)
	}
	if !head.Defined() {
		return audit.NewLog(cas, opts...), closeFn, nil
	}
	log, err := audit.Open(ctx, cas, head, opts...)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return log, closeFn, nil
}

// OpenAccounts opens the configured ledger account store.
func (c Config) OpenAccounts(ctx context.Context) (ledger.AccountStore, func() error, error) {
	switch c.Accounts.Backend {
	case "", AccountsMemory:
		return ledger.NewMemoryStore(), func() error { return nil }, nil
	case AccountsRedis:
		s, closeFn, err := redisstore.Dial(ctx, c.Accounts.RedisAddr, redisstore.WithPrefix(c.Accounts.RedisPrefix))
		if err != nil {
			return nil, nil, err
		}
		return s, closeFn, nil
	default:
		return nil, nil, fmt.Errorf("config: invalid accounts.backend %q", c.Accounts.Backend)
	}
}
