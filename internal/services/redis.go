package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceTTL = 2 * time.Minute
)

// InitRedis connects to Redis and checks the connection.
func InitRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func nonceKey(address, nonce string) string {
	return fmt.Sprintf("auth:nonce:%s:%s", address, nonce)
}

func revokedKey(tokenID string) string {
	return "auth:revoked:" + tokenID
}

func presenceKey(userID uint) string {
	return fmt.Sprintf("presence:%d", userID)
}

// RedisNonceStore keeps nonces as expiring keys; GETDEL makes consumption atomic.
type RedisNonceStore struct {
	client *redis.Client
}

func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

func (s *RedisNonceStore) Put(ctx context.Context, address, nonce string, ttl time.Duration) error {
	return s.client.Set(ctx, nonceKey(address, nonce), "1", ttl).Err()
}

func (s *RedisNonceStore) Consume(ctx context.Context, address, nonce string) (bool, error) {
	err := s.client.GetDel(ctx, nonceKey(address, nonce)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type RedisDenylist struct {
	client *redis.Client
}

func NewRedisDenylist(client *redis.Client) *RedisDenylist {
	return &RedisDenylist{client: client}
}

func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, revokedKey(tokenID), "1", ttl).Err()
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RedisPresence counts live connections per user across instances. The key
// expires if an instance dies without cleaning up; Touch refreshes it.
type RedisPresence struct {
	client *redis.Client
}

func NewRedisPresence(client *redis.Client) *RedisPresence {
	return &RedisPresence{client: client}
}

func (p *RedisPresence) Connected(ctx context.Context, userID uint) error {
	pipe := p.client.TxPipeline()
	pipe.Incr(ctx, presenceKey(userID))
	pipe.Expire(ctx, presenceKey(userID), presenceTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *RedisPresence) Disconnected(ctx context.Context, userID uint) error {
	n, err := p.client.Decr(ctx, presenceKey(userID)).Result()
	if err != nil {
		return err
	}
	if n <= 0 {
		return p.client.Del(ctx, presenceKey(userID)).Err()
	}
	return nil
}

func (p *RedisPresence) Touch(ctx context.Context, userID uint) error {
	return p.client.Expire(ctx, presenceKey(userID), presenceTTL).Err()
}

func (p *RedisPresence) IsOnline(ctx context.Context, userID uint) (bool, error) {
	n, err := p.client.Get(ctx, presenceKey(userID)).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const (
	maxNoncesPerAddress = 5
	maxNonces           = 10000
)

// MemoryNonceStore backs sign-in on a single instance when Redis is not
// configured. An address keeps at most maxNoncesPerAddress live nonces and
// the store at most maxNonces; the oldest are dropped first.
type MemoryNonceStore struct {
	mu     sync.Mutex
	nonces map[string]map[string]time.Time // address -> nonce -> expiry
	total  int

	perAddress int
	capacity   int
	now        func() time.Time
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{
		nonces:     make(map[string]map[string]time.Time),
		perAddress: maxNoncesPerAddress,
		capacity:   maxNonces,
		now:        time.Now,
	}
}

func (s *MemoryNonceStore) Put(_ context.Context, address, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.pruneExpired(now)

	if len(s.nonces[address]) >= s.perAddress {
		s.evictOldest(address)
	}
	if s.total >= s.capacity {
		s.evictOldest("")
	}
	issued := s.nonces[address]
	if issued == nil {
		issued = make(map[string]time.Time)
		s.nonces[address] = issued
	}
	if _, ok := issued[nonce]; !ok {
		s.total++
	}
	issued[nonce] = now.Add(ttl)
	return nil
}

func (s *MemoryNonceStore) Consume(_ context.Context, address, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.nonces[address][nonce]
	if ok {
		s.remove(address, nonce)
	}
	return ok && s.now().Before(exp), nil
}

// Len reports how many nonces are held.
func (s *MemoryNonceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryNonceStore) remove(address, nonce string) {
	delete(s.nonces[address], nonce)
	s.total--
	if len(s.nonces[address]) == 0 {
		delete(s.nonces, address)
	}
}

func (s *MemoryNonceStore) pruneExpired(now time.Time) {
	for address, issued := range s.nonces {
		for nonce, exp := range issued {
			if now.After(exp) {
				s.remove(address, nonce)
			}
		}
	}
}

// evictOldest drops the nonce closest to expiry, within one address or,
// for an empty address, across the store.
func (s *MemoryNonceStore) evictOldest(address string) {
	var (
		oldAddr, oldNonce string
		oldExp            time.Time
		found             bool
	)
	for a, issued := range s.nonces {
		if address != "" && a != address {
			continue
		}
		for n, exp := range issued {
			if !found || exp.Before(oldExp) {
				oldAddr, oldNonce, oldExp, found = a, n, exp, true
			}
		}
	}
	if found {
		s.remove(oldAddr, oldNonce)
	}
}

type MemoryDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{revoked: make(map[string]time.Time)}
}

func (d *MemoryDenylist) Revoke(_ context.Context, tokenID string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[tokenID] = until
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	until, ok := d.revoked[tokenID]
	if ok && time.Now().After(until) {
		delete(d.revoked, tokenID)
		return false, nil
	}
	return ok, nil
}
