package database

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/camden-git/facetrack/logger"
	"github.com/camden-git/facetrack/models"
)

// DSN appends the pragmas every connection to the store needs: foreign keys
// (cascade deletes), WAL and a busy timeout so the detection writer and the
// console do not trip over each other.
func DSN(path string) string {
	return path + "?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000"
}

// InitGormDB initializes and returns a GORM database instance
func InitGormDB(path string) (*gorm.DB, error) {
	gormLogger := gormlogger.New(
		logger.StdLog("gorm"),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(DSN(path)), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database using GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	// connections are checked out per operation and returned straight away
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(8)
	sqlDB.SetConnMaxIdleTime(time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Named("database").Infof("GORM database initialized at %s", path)
	return db, nil
}

// AutoMigrateModels creates or updates personas, embeddings and
// detecciones_emociones.
func AutoMigrateModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Person{},
		&models.Embedding{},
		&models.EmotionDetection{},
	)
	if err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	logger.Named("database").Info("GORM AutoMigrate completed successfully.")
	return nil
}
