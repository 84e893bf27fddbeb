package boltstore

import (
	"context"
	"sync"
	"time"

	"warden/internal/moderation"

	"github.com/disgoorg/snowflake/v2"
)

// SettingsCacheTTL is how long cached guild settings remain valid.
const SettingsCacheTTL = 5 * time.Minute

type cachedSettings struct {
	settings  moderation.GuildSettings
	timestamp time.Time
}

// SettingsCache keeps recently read guild settings in memory in front of a
// SettingsStore. Writes made through the cache invalidate the guild's entry;
// writes made elsewhere show up after the TTL.
type SettingsCache struct {
	store *SettingsStore
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	entries map[snowflake.ID]cachedSettings
}

var _ moderation.SettingsProvider = (*SettingsCache)(nil)

func NewSettingsCache(store *SettingsStore, ttl time.Duration) *SettingsCache {
	if ttl <= 0 {
		ttl = SettingsCacheTTL
	}
	return &SettingsCache{
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[snowflake.ID]cachedSettings),
	}
}

func (c *SettingsCache) GuildSettings(ctx context.Context, guildID snowflake.ID) (moderation.GuildSettings, error) {
	c.mu.RLock()
	entry, ok := c.entries[guildID]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.timestamp) < c.ttl {
		return entry.settings, nil
	}

	settings, err := c.store.GuildSettings(ctx, guildID)
	if err != nil {
		return moderation.GuildSettings{}, err
	}

	c.mu.Lock()
	c.entries[guildID] = cachedSettings{settings: settings, timestamp: c.now()}
	c.mu.Unlock()
	return settings, nil
}

func (c *SettingsCache) Put(ctx context.Context, settings moderation.GuildSettings) error {
	defer c.Invalidate(settings.GuildID)
	return c.store.Put(ctx, settings)
}

func (c *SettingsCache) Update(ctx context.Context, guildID snowflake.ID, fn func(*moderation.GuildSettings)) (moderation.GuildSettings, error) {
	defer c.Invalidate(guildID)
	return c.store.Update(ctx, guildID, fn)
}

func (c *SettingsCache) Delete(ctx context.Context, guildID snowflake.ID) error {
	defer c.Invalidate(guildID)
	return c.store.Delete(ctx, guildID)
}

// Invalidate drops the cached settings of a guild.
func (c *SettingsCache) Invalidate(guildID snowflake.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, guildID)
}

// Cleanup removes expired entries (call periodically)
func (c *SettingsCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for guildID, entry := range c.entries {
		if now.Sub(entry.timestamp) >= c.ttl {
			delete(c.entries, guildID)
		}
	}
}

// Len returns the number of cached guilds, expired entries included.
func (c *SettingsCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartCleanupRoutine runs Cleanup every interval until the returned stop
// function is called.
func (c *SettingsCache) StartCleanupRoutine(interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				c.Cleanup()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
