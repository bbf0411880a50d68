// Package seed bootstraps an empty database from a YAML file.
package seed

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/pollen-club/backoffice/pkg/models"
	"github.com/pollen-club/backoffice/pkg/settings"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// File is the content of a seed file.
//
//	settings:
//	  budget_total: "2000"
//	users:
//	  - name: Robin
//	    role: leader
type File struct {
	Settings map[string]string `yaml:"settings"`
	Users    []User            `yaml:"users"`
}

type User struct {
	Name string `yaml:"name"`
	Role string `yaml:"role"`
}

// Load reads and parses a seed file.
func Load(path string) (File, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("error reading seed file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(buf, &f); err != nil {
		return File{}, fmt.Errorf("error parsing seed file: %w", err)
	}

	return f, nil
}

// Apply writes the seed to the database if it does not contain any users yet.
// It reports whether the seed was applied.
func Apply(ctx context.Context, db *gorm.DB, store *settings.Store, f File) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return false, err
	}

	if count > 0 {
		log.Info().Int64("users", count).Msg("database is not empty, skipping seed")
		return false, nil
	}

	if err := f.validate(); err != nil {
		return false, err
	}

	if len(f.Settings) > 0 {
		if err := store.Save(ctx, f.Settings); err != nil {
			return false, err
		}
	}

	users := make([]models.User, len(f.Users))
	for i, u := range f.Users {
		users[i] = models.User{Name: u.Name, Role: models.Role(u.Role)}
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(users) == 0 {
			return nil
		}
		return tx.Create(&users).Error
	})
	if err != nil {
		return false, err
	}

	log.Info().Int("users", len(users)).Int("settings", len(f.Settings)).Msg("seed applied")
	return true, nil
}

// validate checks the settings and that the roster fills exactly the configured seats.
func (f File) validate() error {
	if err := settings.ValidateValues(f.Settings); err != nil {
		return err
	}

	raw, ok := f.Settings[settings.KeyFormalSeatCount]
	if !ok {
		raw = settings.Defaults()[settings.KeyFormalSeatCount]
	}
	seats, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s is not an integer", models.ErrConfiguration, settings.KeyFormalSeatCount)
	}

	var formal int64
	for _, u := range f.Users {
		role, err := models.ParseRole(u.Role)
		if err != nil {
			return fmt.Errorf("%w: user %s: %s", models.ErrConfiguration, u.Name, err)
		}

		if role.IsFormalSeat() {
			formal++
		}
	}

	if formal != seats {
		return fmt.Errorf("%w: the seed contains %d formal seat holders, but %d seats are configured", models.ErrConfiguration, formal, seats)
	}

	return nil
}
