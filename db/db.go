package db

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"platestyle/config"
	"platestyle/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

var conf config.Configuration

func SetConfigurations(configuration config.Configuration) {
	conf = configuration
}

// Connect opens the database configured with SetConfigurations (sqlite3 by default)
// and runs AutoMigrate when enabled.
func Connect() (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	switch conf.Database {
	case "postgres", "postgresql":
		slog.Info("connecting to postgresql", "host", conf.DbHost, "db", conf.DbName)
		path := "host=" + conf.DbHost + " port=" + conf.DbPort
		path += " user=" + conf.DbUser + " dbname=" + conf.DbName
		path += " password=" + conf.DbPass + " sslmode=disable"
		db, err = Open("postgres", path)
	default:
		slog.Info("connecting to sqlite3", "path", conf.DbPath)
		if dir := filepath.Dir(conf.DbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create db dir %s: %w", dir, err)
			}
		}
		db, err = Open("sqlite3", conf.DbPath)
	}
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		return nil, err
	}

	db.LogMode(conf.LogLevel == "debug")

	if conf.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Open connects with the given gorm dialect. SQLite is pinned to one connection so that
// ":memory:" databases are shared and writers never hit "database is locked".
func Open(dialect, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dialect, err)
	}
	if dialect == "sqlite3" {
		db.DB().SetMaxOpenConns(1)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.GenerationJob{},
		&models.CreditTransaction{},
	).Error
	if err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	// Claim and sweeper queries filter on (status, updated_at).
	err = db.Model(&models.GenerationJob{}).
		AddIndex("idx_generation_jobs_status_updated", "status", "updated_at").Error
	if err != nil {
		return fmt.Errorf("failed to create job status index: %w", err)
	}
	return nil
}
