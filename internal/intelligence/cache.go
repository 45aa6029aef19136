package intelligence

import (
	"context"
	"sort"
	"sync"
	"time"

	"geowarden/internal/database/models"
	"geowarden/internal/database/repositories"
	"geowarden/internal/metrics"

	"github.com/pterm/pterm"
)

// CachedProvider remembers known results in memory and in the ip_reputation table.
// Unknown results and errors are never cached.
type CachedProvider struct {
	next       Provider
	store      repositories.IPReputationRepository
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	logger     *pterm.Logger

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result   Result
	storedAt time.Time
}

// NewCachedProvider wraps next. store may be nil for a memory-only cache; a non-positive ttl disables caching.
func NewCachedProvider(next Provider, store repositories.IPReputationRepository, ttl time.Duration, maxEntries int, logger *pterm.Logger) *CachedProvider {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &CachedProvider{
		next:       next,
		store:      store,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
		entries:    make(map[string]cacheEntry, maxEntries),
	}
}

func (c *CachedProvider) Analyze(ctx context.Context, ip string) (*Result, error) {
	if !IsPublic(ip) {
		return nil, nil
	}
	if c.ttl <= 0 {
		return c.next.Analyze(ctx, ip)
	}

	now := c.now()

	c.mu.RLock()
	entry, ok := c.entries[ip]
	c.mu.RUnlock()
	if ok && now.Sub(entry.storedAt) < c.ttl {
		metrics.IntelCacheHits.WithLabelValues("memory").Inc()
		result := entry.result
		return &result, nil
	}

	if c.store != nil {
		reputation, err := c.store.FindFresh(ctx, ip, now.Add(-c.ttl))
		if err != nil {
			c.logger.Debug("IP reputation cache read failed", c.logger.Args("ip", ip, "error", err))
		} else if reputation != nil {
			metrics.IntelCacheHits.WithLabelValues("database").Inc()
			result := resultFromReputation(reputation)
			c.remember(ip, result, reputation.LastSeen)
			return &result, nil
		}
	}

	metrics.IntelCacheMisses.Inc()
	result, err := c.next.Analyze(ctx, ip)
	if err != nil || result == nil {
		return result, err
	}

	c.remember(ip, *result, now)
	if c.store != nil {
		if err := c.store.Upsert(ctx, reputationFromResult(ip, result, now)); err != nil {
			c.logger.Debug("IP reputation cache write failed", c.logger.Args("ip", ip, "error", err))
		}
	}
	return result, nil
}

// Size returns the number of entries held in memory
func (c *CachedProvider) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *CachedProvider) remember(ip string, result Result, storedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[ip]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[ip] = cacheEntry{result: result, storedAt: storedAt}
}

// evictOldestLocked drops the oldest tenth of the cache.
func (c *CachedProvider) evictOldestLocked() {
	evictCount := c.maxEntries / 10
	if evictCount < 1 {
		evictCount = 1
	}

	type ipAge struct {
		ip       string
		storedAt time.Time
	}
	ages := make([]ipAge, 0, len(c.entries))
	for ip, entry := range c.entries {
		ages = append(ages, ipAge{ip: ip, storedAt: entry.storedAt})
	}
	sort.Slice(ages, func(i, j int) bool {
		return ages[i].storedAt.Before(ages[j].storedAt)
	})

	for i := 0; i < evictCount && i < len(ages); i++ {
		delete(c.entries, ages[i].ip)
	}

	c.logger.Debug("IP intelligence cache eviction performed",
		c.logger.Args("evicted", evictCount, "cache_size", len(c.entries), "max_size", c.maxEntries))
}

func resultFromReputation(r *models.IPReputation) Result {
	return Result{
		HasLocation:  r.HasLocation,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		IsVPN:        r.IsVPN,
		IsDataCenter: r.IsDataCenter,
		Country:      r.Country,
		City:         r.City,
		ASN:          r.ASN,
		ASNOrg:       r.ASNOrg,
		Source:       r.Source,
	}
}

func reputationFromResult(ip string, r *Result, seen time.Time) *models.IPReputation {
	return &models.IPReputation{
		IPAddress:    ip,
		HasLocation:  r.HasLocation,
		Country:      r.Country,
		City:         r.City,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		ASN:          r.ASN,
		ASNOrg:       r.ASNOrg,
		IsVPN:        r.IsVPN,
		IsDataCenter: r.IsDataCenter,
		Source:       r.Source,
		FirstSeen:    seen,
		LastSeen:     seen,
	}
}
