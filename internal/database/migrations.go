package database

import (
	"fmt"
	"time"

	"proxyfinder/internal/domain"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

type schemaMigration struct {
	Version   int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:128;not null"`
	AppliedAt time.Time
}

func (schemaMigration) TableName() string {
	return "schema_migrations"
}

type migration struct {
	version int
	name    string
	up      func(tx *gorm.DB) error
}

// migrations are applied in order, each exactly once, each inside its own transaction.
// Never edit an applied step; append a new one.
var migrations = []migration{
	{
		version: 1,
		name:    "create proxies",
		up: func(tx *gorm.DB) error {
			if tx.Migrator().HasTable(&domain.Proxy{}) {
				return nil
			}
			return tx.Migrator().CreateTable(&domain.Proxy{})
		},
	},
	{
		version: 2,
		name:    "add note, location and error columns",
		up: func(tx *gorm.DB) error {
			for _, field := range []string{"Note", "Location", "Error"} {
				if tx.Migrator().HasColumn(&domain.Proxy{}, field) {
					continue
				}
				if err := tx.Migrator().AddColumn(&domain.Proxy{}, field); err != nil {
					return fmt.Errorf("add column %s: %w", field, err)
				}
			}
			return nil
		},
	},
	{
		version: 3,
		name:    "index check state",
		up: func(tx *gorm.DB) error {
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_proxies_check_state ON proxies (is_checked, is_working, updated_at)`).Error
		},
	},
}

// Migrate brings the schema up to the newest version. Running it again is a no-op.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("nil database connection")
	}

	if err := db.AutoMigrate(&schemaMigration{}); err != nil {
		return fmt.Errorf("schema_migrations table: %w", err)
	}

	var applied []schemaMigration
	if err := db.Find(&applied).Error; err != nil {
		return fmt.Errorf("load applied migrations: %w", err)
	}
	done := make(map[int]struct{}, len(applied))
	for _, m := range applied {
		done[m.Version] = struct{}{}
	}

	for _, m := range migrations {
		if _, ok := done[m.version]; ok {
			continue
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.up(tx); err != nil {
				return err
			}
			return tx.Create(&schemaMigration{Version: m.version, Name: m.name, AppliedAt: time.Now()}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}

		log.Info("Database migration applied", "version", m.version, "name", m.name)
	}

	return nil
}
