package database

import (
	"testing"

	"proxyfinder/internal/domain"
)

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	if err := Migrate(db); err != nil {
		t.Fatalf("first Migrate returned error: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate returned error: %v", err)
	}

	var applied int64
	if err := db.Model(&schemaMigration{}).Count(&applied).Error; err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != int64(len(migrations)) {
		t.Fatalf("applied migrations = %d, want %d", applied, len(migrations))
	}

	if !db.Migrator().HasTable(&domain.Proxy{}) {
		t.Fatal("proxies table was not created")
	}
}

func TestMigrateUpgradesLegacyTable(t *testing.T) {
	db := openTestDB(t)

	legacy := `CREATE TABLE proxies (
		id integer PRIMARY KEY AUTOINCREMENT,
		address varchar(32) NOT NULL UNIQUE,
		is_working numeric NOT NULL DEFAULT false,
		is_checked numeric NOT NULL DEFAULT false,
		latency real NOT NULL DEFAULT 0,
		created_at datetime,
		updated_at datetime
	)`
	if err := db.Exec(legacy).Error; err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	if err := db.Exec(`INSERT INTO proxies (address) VALUES ('1.2.3.4:80')`).Error; err != nil {
		t.Fatalf("seed legacy row: %v", err)
	}

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	for _, field := range []string{"Note", "Location", "Error"} {
		if !db.Migrator().HasColumn(&domain.Proxy{}, field) {
			t.Fatalf("column for %s missing after migration", field)
		}
	}

	var count int64
	if err := db.Model(&domain.Proxy{}).Count(&count).Error; err != nil {
		t.Fatalf("count proxies: %v", err)
	}
	if count != 1 {
		t.Fatalf("legacy rows = %d, want 1", count)
	}
}
