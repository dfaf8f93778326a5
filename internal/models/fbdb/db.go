package fbdb

import (
	"fmt"
	"time"

	"funnelboard/internal/gormzerologger"
	"funnelboard/internal/models/fbconfig"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Now is the clock used for every stored timestamp. Rows are always written
// in UTC so range filters compare consistently on every driver.
func Now() time.Time {
	return time.Now().UTC()
}

func gormConfig(l logger.Interface) *gorm.Config {
	return &gorm.Config{
		Logger:         l,
		NowFunc:        Now,
		TranslateError: true,
	}
}

// Open connects to the configured database. logLevel follows the
// gormzerologger levels.
func Open(cfg fbconfig.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	conf := gormConfig(gormzerologger.New(logLevel))

	var dialector gorm.Dialector
	switch cfg.Db {
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	case "mysql":
		dialector = mysql.Open(cfg.Dsn)
	case "postgres":
		dialector = postgres.Open(cfg.Dsn)
	default:
		return nil, fmt.Errorf("database type must be sqlite, mysql or postgres, got %q", cfg.Db)
	}

	db, err := gorm.Open(dialector, conf)
	if err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}
	return db, nil
}

// OpenInMemory opens a private in-memory sqlite database. Every call gets
// its own database, shared by all connections of the returned pool.
func OpenInMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(logger.Default.LogMode(logger.Silent)))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// the database vanishes with its last connection
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetConnMaxLifetime(0)
	return db, nil
}

// Migrate creates or updates the tables of the given models.
func Migrate(db *gorm.DB, models ...any) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("migration: %w", err)
	}
	return nil
}
