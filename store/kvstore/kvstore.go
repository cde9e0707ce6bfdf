package kvstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/halftrip/cachepurge"
	"github.com/halftrip/cachepurge/internal/redis_scripts"
)

// DefaultName is the adapter name unless Options.Name is set.
const DefaultName = "kv-storage"

const (
	defaultPrefix  = "halftrip:"
	defaultTimeout = 2 * time.Second
	deleteBatch    = 500
)

// Options configure the key-value store.
type Options struct {
	Name           string
	Addr           string
	SentinelAddrs  []string
	SentinelMaster string
	Username       string
	Password       string
	DB             int
	// KeyPrefix scopes every key this client owns. Clear removes exactly this namespace.
	KeyPrefix string
	// Timeout bounds one Clear call.
	Timeout time.Duration
}

// Store keeps client preferences, drafts and flags in Redis under one prefix and
// implements cachepurge.Adapter over that prefix.
type Store struct {
	client  goredis.UniversalClient
	name    string
	prefix  string
	timeout time.Duration
	clear   redisScript
}

// New creates a Redis-backed store and pings it. Supports single instance or Sentinel
// via UniversalClient.
func New(opts Options) (*Store, error) {
	s := Dial(opts)
	if err := s.client.Ping(context.Background()).Err(); err != nil {
		_ = s.client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return s, nil
}

// Dial creates the store without checking connectivity. Operations against an
// unreachable server fail individually; Clear reports them as ErrUnavailable.
func Dial(opts Options) *Store {
	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:      addrs(opts),
		MasterName: opts.SentinelMaster,
		Username:   opts.Username,
		Password:   opts.Password,
		DB:         opts.DB,
	})
	return NewWithClient(client, opts)
}

// NewWithClient wraps an existing client without checking connectivity.
func NewWithClient(client goredis.UniversalClient, opts Options) *Store {
	s := &Store{
		client:  client,
		name:    opts.Name,
		prefix:  opts.KeyPrefix,
		timeout: opts.Timeout,
		clear:   newRedisScript(redis_scripts.NewScript(redis_scripts.ClearPrefix)),
	}
	if s.name == "" {
		s.name = DefaultName
	}
	if s.prefix == "" {
		s.prefix = defaultPrefix
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	return s
}

func addrs(opts Options) []string {
	if len(opts.SentinelAddrs) > 0 {
		return opts.SentinelAddrs
	}
	if opts.Addr != "" {
		return []string{opts.Addr}
	}
	return []string{"127.0.0.1:6379"}
}

// Name implements cachepurge.Adapter.
func (s *Store) Name() string { return s.name }

// Prefix returns the namespace this store owns.
func (s *Store) Prefix() string { return s.prefix }

// Close releases the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Set stores value under key. A zero ttl keeps the key until cleared.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

// Get returns the value of key and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Len counts the keys in the namespace.
func (s *Store) Len(ctx context.Context) (int, error) {
	keys, err := s.client.Keys(ctx, s.pattern()).Result()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Clear deletes every key in the namespace with a single script so no other client
// observes a partially cleared namespace.
func (s *Store) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.clear.run(ctx, s.client, nil, s.pattern(), deleteBatch); err != nil {
		return classify(s.name, err)
	}
	return nil
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

func (s *Store) pattern() string {
	return escapeGlob(s.prefix) + "*"
}

func escapeGlob(s string) string {
	return strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`).Replace(s)
}

// classify maps Redis and transport errors onto clear failure kinds.
func classify(name string, err error) *cachepurge.ClearError {
	kind := cachepurge.ErrFault
	msg := err.Error()
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = cachepurge.ErrTimeout
	case errors.Is(err, goredis.ErrClosed), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		kind = cachepurge.ErrUnavailable
	case strings.HasPrefix(msg, "NOPERM"), strings.HasPrefix(msg, "NOAUTH"),
		strings.HasPrefix(msg, "WRONGPASS"), strings.HasPrefix(msg, "READONLY"):
		kind = cachepurge.ErrAccessDenied
	case strings.HasPrefix(msg, "OOM"):
		kind = cachepurge.ErrQuotaExceeded
	case strings.HasPrefix(msg, "LOADING"), strings.HasPrefix(msg, "MASTERDOWN"),
		strings.HasPrefix(msg, "CLUSTERDOWN"):
		kind = cachepurge.ErrUnavailable
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			kind = cachepurge.ErrTimeout
		} else {
			kind = cachepurge.ErrUnavailable
		}
	}
	return cachepurge.NewClearError(name, kind, err)
}

type redisScript struct {
	src string
	sha string
}

func newRedisScript(s redis_scripts.Script) redisScript {
	return redisScript{src: s.Source, sha: s.SHA}
}

func (s redisScript) run(ctx context.Context, client goredis.Cmdable, keys []string, args ...interface{}) (int64, error) {
	val, err := client.EvalSha(ctx, s.sha, keys, args...).Result()
	if err != nil && isNoScript(err) {
		val, err = client.Eval(ctx, s.src, keys, args...).Result()
	}
	if err != nil {
		return 0, err
	}
	switch v := val.(type) {
	case int64:
		return v, nil
	case string:
		// Some Redis proxies return string numbers.
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected script return type %T", val)
	}
}

func isNoScript(err error) bool {
	return err != nil && strings.Contains(err.Error(), "NOSCRIPT")
}
