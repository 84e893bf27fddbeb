package boltstore

import (
	"context"
	"encoding/json"
	"fmt"

	"warden/internal/moderation"

	"github.com/disgoorg/snowflake/v2"
	bolt "go.etcd.io/bbolt"
)

// SettingsStore persists per-guild moderation settings.
type SettingsStore struct {
	db *bolt.DB
}

var _ moderation.SettingsProvider = (*SettingsStore)(nil)

func settingsKey(guildID snowflake.ID) []byte {
	return []byte(guildID.String())
}

// GuildSettings returns the stored settings, or the defaults for a guild
// that never configured anything.
func (s *SettingsStore) GuildSettings(ctx context.Context, guildID snowflake.ID) (moderation.GuildSettings, error) {
	settings := moderation.DefaultGuildSettings(guildID)

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketGuildSettings)
		if bucket == nil {
			return fmt.Errorf("settings bucket not found")
		}

		data := bucket.Get(settingsKey(guildID))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &settings)
	})
	if err != nil {
		return moderation.GuildSettings{}, fmt.Errorf("load settings for guild %s: %w", guildID, err)
	}

	settings.GuildID = guildID
	return settings, nil
}

// Put stores settings, replacing what the guild had.
func (s *SettingsStore) Put(ctx context.Context, settings moderation.GuildSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketGuildSettings)
		if bucket == nil {
			return fmt.Errorf("settings bucket not found")
		}
		return bucket.Put(settingsKey(settings.GuildID), data)
	})
}

// Update applies fn to the guild's settings in a single write transaction.
func (s *SettingsStore) Update(ctx context.Context, guildID snowflake.ID, fn func(*moderation.GuildSettings)) (moderation.GuildSettings, error) {
	settings := moderation.DefaultGuildSettings(guildID)

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketGuildSettings)
		if bucket == nil {
			return fmt.Errorf("settings bucket not found")
		}

		key := settingsKey(guildID)
		if data := bucket.Get(key); data != nil {
			if err := json.Unmarshal(data, &settings); err != nil {
				return err
			}
		}
		fn(&settings)
		settings.GuildID = guildID

		data, err := json.Marshal(settings)
		if err != nil {
			return err
		}
		return bucket.Put(key, data)
	})
	if err != nil {
		return moderation.GuildSettings{}, fmt.Errorf("update settings for guild %s: %w", guildID, err)
	}
	return settings, nil
}

// Delete forgets the guild's settings.
func (s *SettingsStore) Delete(ctx context.Context, guildID snowflake.ID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketGuildSettings)
		if bucket == nil {
			return fmt.Errorf("settings bucket not found")
		}
		return bucket.Delete(settingsKey(guildID))
	})
}
