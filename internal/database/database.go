package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pvasseur/streamsync/internal/config"
	applogger "github.com/pvasseur/streamsync/internal/logger"
	"github.com/pvasseur/streamsync/internal/models"
)

var db *gorm.DB

// Initialize opens the Postgres connection, configures pooling, and migrates
// the catalog schema. It must be called before Get.
func Initialize() error {
	cfg := config.Get()

	gormLogger := applogger.NewGormAdapter(
		applogger.NewWithLevel(cfg.GetDatabaseLogLevel()),
		cfg.GetDatabaseLogLevel(),
	)

	conn, err := gorm.Open(postgres.Open(buildDSN(cfg)), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	db = conn

	if err := migrate(conn); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func buildDSN(cfg *config.Config) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
	)
}

// Get returns the database instance
func Get() *gorm.DB {
	return db
}

// HealthCheck verifies database connectivity
func HealthCheck() error {
	if db == nil {
		return errors.New("database not initialized")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// Close closes the database connection
func Close() error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	return sqlDB.Close()
}

func migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&models.PlaylistSource{},
		&models.CatalogEntry{},
		&models.SyncLog{},
	)
}
