// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/openrp/authflow/internal/httpclient"
	"github.com/openrp/authflow/storage"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultKeySetTTL is how long a fetched key set is served from cache.
	DefaultKeySetTTL = 10 * time.Minute

	// DefaultRefetchInterval is the minimum time between two refetches of
	// an issuer's key set caused by an unknown kid.
	DefaultRefetchInterval = 30 * time.Second

	// WellKnownJWKS is the path of an issuer's key set, relative to the
	// issuer url.
	WellKnownJWKS = ".well-known/jwks.json"

	// maxKeySetSize limits the size of a key set response body.
	maxKeySetSize = 1 << 20

	jwksEndpoint = "jwks"
)

// CachedKeySet is a key set along with the time it was fetched.
type CachedKeySet struct {
	Keys      jose.JSONWebKeySet `json:"keys"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// KeySetCache stores key sets by issuer.  Implementations must be safe for
// concurrent use and must replace an entry atomically: Get never returns a
// partially written key set.
type KeySetCache interface {
	Get(ctx context.Context, issuer string) (*CachedKeySet, bool, error)
	Set(ctx context.Context, issuer string, ks *CachedKeySet) error
}

// MemoryKeySetCache is an in-process KeySetCache.  It's the default cache of a
// KeyFetcher.
type MemoryKeySetCache struct {
	mu   sync.RWMutex
	sets map[string]*CachedKeySet
}

var _ KeySetCache = (*MemoryKeySetCache)(nil)

// NewMemoryKeySetCache creates an empty MemoryKeySetCache.
func NewMemoryKeySetCache() *MemoryKeySetCache {
	return &MemoryKeySetCache{sets: map[string]*CachedKeySet{}}
}

// Get implements KeySetCache.
func (c *MemoryKeySetCache) Get(_ context.Context, issuer string) (*CachedKeySet, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ks, ok := c.sets[issuer]
	return ks, ok, nil
}

// Set implements KeySetCache.  The cached pointer is swapped, never mutated.
func (c *MemoryKeySetCache) Set(_ context.Context, issuer string, ks *CachedKeySet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets[issuer] = ks
	return nil
}

// StoreKeySetCache is a KeySetCache persisted in a storage.Store, which lets
// several processes share key sets through a RedisStore.
type StoreKeySetCache struct {
	store storage.Store
}

var _ KeySetCache = (*StoreKeySetCache)(nil)

// NewStoreKeySetCache creates a KeySetCache backed by s.
func NewStoreKeySetCache(s storage.Store) (*StoreKeySetCache, error) {
	const op = "jwt.NewStoreKeySetCache"
	if s == nil {
		return nil, fmt.Errorf("%s: storage is nil: %w", op, ErrNilParameter)
	}
	return &StoreKeySetCache{store: s}, nil
}

func storeKeySetKey(issuer string) string {
	return "jwks:" + issuer
}

// Get implements KeySetCache.
func (c *StoreKeySetCache) Get(ctx context.Context, issuer string) (*CachedKeySet, bool, error) {
	const op = "StoreKeySetCache.Get"
	v, found, err := c.store.Get(ctx, storeKeySetKey(issuer))
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, false, nil
	}
	var ks CachedKeySet
	if err := json.Unmarshal([]byte(v), &ks); err != nil {
		return nil, false, fmt.Errorf("%s: unable to decode cached key set: %w", op, err)
	}
	return &ks, true, nil
}

// Set implements KeySetCache.
func (c *StoreKeySetCache) Set(ctx context.Context, issuer string, ks *CachedKeySet) error {
	const op = "StoreKeySetCache.Set"
	b, err := json.Marshal(ks)
	if err != nil {
		return fmt.Errorf("%s: unable to encode key set: %w", op, err)
	}
	if err := c.store.Set(ctx, storeKeySetKey(issuer), string(b)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// KeyFetcher retrieves and caches the public signing keys an issuer publishes
// at its well-known key set endpoint.  It's safe for concurrent use: a refresh
// replaces the cached set atomically, and concurrent fetches for the same
// issuer are collapsed into one request.
type KeyFetcher struct {
	client          *http.Client
	cache           KeySetCache
	ttl             time.Duration
	refetchInterval time.Duration
	jwksURL         string
	logger          hclog.Logger
	now             func() time.Time

	group singleflight.Group

	mu         sync.Mutex
	lastForced map[string]time.Time
}

// NewKeyFetcher creates a KeyFetcher.
//
// Supported options:
//   - WithHTTPClient
//   - WithKeySetCache
//   - WithKeySetTTL
//   - WithRefetchInterval
//   - WithJWKSURL
//   - WithLogger
//   - WithNow
func NewKeyFetcher(opt ...Option) (*KeyFetcher, error) {
	const op = "jwt.NewKeyFetcher"
	opts := getKeyFetcherOpts(opt...)
	if opts.withKeySetTTL < 0 {
		return nil, fmt.Errorf("%s: key set ttl must not be negative: %w", op, ErrInvalidParameter)
	}
	if opts.withRefetchInterval < 0 {
		return nil, fmt.Errorf("%s: refetch interval must not be negative: %w", op, ErrInvalidParameter)
	}
	client := opts.withHTTPClient
	if client == nil {
		var err error
		if client, err = httpclient.New("", httpclient.DefaultTimeout); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	cache := opts.withKeySetCache
	if cache == nil {
		cache = NewMemoryKeySetCache()
	}
	return &KeyFetcher{
		client:          client,
		cache:           cache,
		ttl:             opts.withKeySetTTL,
		refetchInterval: opts.withRefetchInterval,
		jwksURL:         opts.withJWKSURL,
		logger:          opts.withLogger.Named("keyfetcher"),
		now:             opts.withNowFunc,
		lastForced:      map[string]time.Time{},
	}, nil
}

// KeySetURL returns the url keys are fetched from for issuer.
func (f *KeyFetcher) KeySetURL(issuer string) string {
	if f.jwksURL != "" {
		return f.jwksURL
	}
	return strings.TrimSuffix(issuer, "/") + "/" + WellKnownJWKS
}

// Keys returns every key published for issuer, served from the cache while
// the cached set is younger than the fetcher's TTL.
func (f *KeyFetcher) Keys(ctx context.Context, issuer string) (*jose.JSONWebKeySet, error) {
	const op = "KeyFetcher.Keys"
	ks, _, err := f.keys(ctx, issuer, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ks, nil
}

// Key returns the key with the given kid.  When the cached set doesn't contain
// it, the set is refetched once before giving up with ErrKeyNotFound.  Such
// refetches happen at most once per refetch interval for each issuer, so a
// stream of tokens with made up kids can't turn into a stream of requests to
// the issuer.
func (f *KeyFetcher) Key(ctx context.Context, issuer, kid string) (*jose.JSONWebKey, error) {
	const op = "KeyFetcher.Key"
	ks, fetched, err := f.keys(ctx, issuer, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if k := lookupKey(ks, kid); k != nil {
		return k, nil
	}
	if !fetched && f.allowRefetch(issuer) {
		f.logger.Debug("key not in cached set, refetching", "issuer", issuer, "kid", kid)
		if ks, _, err = f.keys(ctx, issuer, true); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if k := lookupKey(ks, kid); k != nil {
			return k, nil
		}
	}
	return nil, fmt.Errorf("%s: kid %q: %w", op, kid, ErrKeyNotFound)
}

// allowRefetch reports whether a kid miss may refetch the key set of issuer,
// and if so records the refetch.
func (f *KeyFetcher) allowRefetch(issuer string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	if last, ok := f.lastForced[issuer]; ok && f.refetchInterval > 0 && now.Sub(last) < f.refetchInterval {
		f.logger.Debug("key set refetched recently, not refetching", "issuer", issuer, "last", last)
		return false
	}
	f.lastForced[issuer] = now
	return true
}

// lookupKey returns the signing key with kid, skipping keys published for
// encryption only.
func lookupKey(ks *jose.JSONWebKeySet, kid string) *jose.JSONWebKey {
	if kid == "" {
		return nil
	}
	for _, k := range ks.Key(kid) {
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		k := k
		return &k
	}
	return nil
}

// keys returns the key set of issuer and whether it was fetched by this call.
func (f *KeyFetcher) keys(ctx context.Context, issuer string, force bool) (*jose.JSONWebKeySet, bool, error) {
	if issuer == "" {
		return nil, false, fmt.Errorf("issuer is empty: %w", ErrInvalidParameter)
	}
	if !force {
		cached, found, err := f.cache.Get(ctx, issuer)
		if err != nil {
			return nil, false, err
		}
		if found && f.fresh(cached) {
			return &cached.Keys, false, nil
		}
	}
	// joined callers share the result, so the fetch must not be cancelled
	// with the caller which happened to start it.  The client timeout still
	// bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, shared := f.group.Do(issuer, func() (interface{}, error) {
		return f.fetch(fetchCtx, issuer)
	})
	if err != nil {
		return nil, false, err
	}
	if shared {
		f.logger.Trace("joined in-flight key set fetch", "issuer", issuer)
	}
	return &v.(*CachedKeySet).Keys, true, nil
}

func (f *KeyFetcher) fresh(ks *CachedKeySet) bool {
	if f.ttl == 0 {
		return true
	}
	return f.now().Before(ks.FetchedAt.Add(f.ttl))
}

func (f *KeyFetcher) fetch(ctx context.Context, issuer string) (*CachedKeySet, error) {
	u := f.KeySetURL(issuer)
	f.logger.Debug("fetching key set", "issuer", issuer, "url", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create key set request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Endpoint: jwksEndpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetSize))
	if err != nil {
		return nil, &NetworkError{Endpoint: jwksEndpoint, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ResponseError{Endpoint: jwksEndpoint, StatusCode: resp.StatusCode, Reason: "unexpected status"}
	}
	var doc struct {
		Keys *[]json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &ResponseError{Endpoint: jwksEndpoint, StatusCode: resp.StatusCode, Reason: "body is not a key set"}
	}
	if doc.Keys == nil {
		return nil, &ResponseError{Endpoint: jwksEndpoint, StatusCode: resp.StatusCode, Reason: "missing keys"}
	}

	ks := &CachedKeySet{FetchedAt: f.now()}
	for _, raw := range *doc.Keys {
		var k jose.JSONWebKey
		if err := k.UnmarshalJSON(raw); err != nil {
			// unsupported key types are skipped, not fatal
			f.logger.Debug("skipping unparsable key", "issuer", issuer, "error", err)
			continue
		}
		ks.Keys.Keys = append(ks.Keys.Keys, k)
	}
	if err := f.cache.Set(ctx, issuer, ks); err != nil {
		return nil, fmt.Errorf("unable to cache key set: %w", err)
	}
	f.logger.Debug("cached key set", "issuer", issuer, "keys", len(ks.Keys.Keys))
	return ks, nil
}
