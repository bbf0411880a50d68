// Package settings is the store for business settings such as the budget,
// the number of formal seats and the rotation thresholds.
package settings

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pollen-club/backoffice/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/ryanuber/go-glob"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store reads and writes settings. Stored values are cached in memory until
// the next Save or an explicit Invalidate.
type Store struct {
	db *gorm.DB

	mu    sync.RWMutex
	cache map[string]string
}

// New creates a store backed by db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Invalidate drops all cached values.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = nil
}

// stored returns all stored values, loading them into the cache if necessary.
func (s *Store) stored(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	cache := s.cache
	s.mu.RUnlock()

	if cache != nil {
		return cache, nil
	}

	var entries []models.ConfigEntry
	err := s.db.WithContext(ctx).Find(&entries).Error
	if err != nil {
		return nil, err
	}

	cache = make(map[string]string, len(entries))
	for _, e := range entries {
		cache[e.Key] = e.Value
	}

	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()

	return cache, nil
}

// effective returns the stored value for every key, falling back to the default.
func (s *Store) effective(ctx context.Context) (map[string]string, error) {
	stored, err := s.stored(ctx)
	if err != nil {
		return nil, err
	}

	values := Defaults()
	for k, v := range stored {
		values[k] = v
	}
	return values, nil
}

// Get returns the stored value for key or def if there is none.
func (s *Store) Get(ctx context.Context, key, def string) string {
	stored, err := s.stored(ctx)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("could not read setting, using default")
		return def
	}

	if v, ok := stored[key]; ok {
		return v
	}
	return def
}

// GetInt returns the stored value for key as integer or def if there is none
// or it is not an integer.
func (s *Store) GetInt(ctx context.Context, key string, def int64) int64 {
	raw := s.Get(ctx, key, "")
	if raw == "" {
		return def
	}

	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("setting is not an integer, using default")
		return def
	}
	return v
}

// All returns the effective value of every known key matching the glob pattern.
// An empty pattern matches all keys.
func (s *Store) All(ctx context.Context, pattern string) ([]models.ConfigEntry, error) {
	values, err := s.effective(ctx)
	if err != nil {
		return nil, err
	}

	if pattern == "" {
		pattern = "*"
	}

	entries := []models.ConfigEntry{}
	for _, key := range Keys() {
		if !glob.Glob(pattern, key) {
			continue
		}

		entries = append(entries, models.ConfigEntry{
			Key:         key,
			Value:       values[key],
			Description: definitions[key].Description,
		})
	}

	return entries, nil
}

// Snapshot returns the typed view of all settings.
func (s *Store) Snapshot(ctx context.Context) (Settings, error) {
	values, err := s.effective(ctx)
	if err != nil {
		return Settings{}, err
	}

	settings, problems := parse(values)
	if len(problems) > 0 {
		return Settings{}, fmt.Errorf("%w: %s", models.ErrConfiguration, strings.Join(problems, "; "))
	}

	return settings, nil
}

// RotationThresholds returns the thresholds used by the rotation evaluator.
func (s *Store) RotationThresholds(ctx context.Context) (RotationThresholds, error) {
	settings, err := s.Snapshot(ctx)
	if err != nil {
		return RotationThresholds{}, err
	}
	return settings.Rotation, nil
}

// Validate checks a batch of values as it would be merged with the stored values.
func (s *Store) Validate(ctx context.Context, batch map[string]string) error {
	values, err := s.effective(ctx)
	if err != nil {
		return err
	}

	return validate(values, batch)
}

// Save validates the batch as a whole and writes every value in one transaction.
// If any value is rejected, nothing is written.
func (s *Store) Save(ctx context.Context, batch map[string]string) error {
	if len(batch) == 0 {
		return fmt.Errorf("%w: no settings to save", models.ErrConfiguration)
	}

	err := s.Validate(ctx, batch)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range batch {
			entry := models.ConfigEntry{
				Key:         key,
				Value:       strings.TrimSpace(value),
				Description: definitions[key].Description,
			}

			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
			}).Create(&entry).Error
			if err != nil {
				return err
			}
		}
		return nil
	})

	s.Invalidate()

	if err != nil {
		return err
	}

	log.Info().Strs("keys", sortedKeys(batch)).Msg("settings saved")
	return nil
}

// validate merges batch over values and checks the result.
func validate(values, batch map[string]string) error {
	var problems []string

	merged := make(map[string]string, len(values))
	for k, v := range values {
		merged[k] = v
	}

	for _, key := range sortedKeys(batch) {
		if _, ok := definitions[key]; !ok {
			problems = append(problems, fmt.Sprintf("unknown key %q", key))
			continue
		}
		merged[key] = batch[key]
	}

	_, parseProblems := parse(merged)
	problems = append(problems, parseProblems...)

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", models.ErrConfiguration, strings.Join(problems, "; "))
	}

	return nil
}

// ValidateValues checks a complete set of values without a store, e.g. a seed file.
// Missing keys use their defaults.
func ValidateValues(batch map[string]string) error {
	return validate(Defaults(), batch)
}

// CheckinTiers returns the check-in tier table.
func (s *Store) CheckinTiers(ctx context.Context) ([]CheckinTier, error) {
	settings, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return settings.CheckinTiers, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
