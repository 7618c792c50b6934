package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	gamification "github.com/tachyonedu/practice-engine/internal/gamification/models"
	lecture "github.com/tachyonedu/practice-engine/internal/lecture/models"
	practice "github.com/tachyonedu/practice-engine/internal/practice/models"
	recommendation "github.com/tachyonedu/practice-engine/internal/recommendation/models"
)

// Connect opens a database connection based on type and returns it.
// The caller owns the handle and passes it to repositories explicitly.
func Connect(dbType string, dsn string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	if dbType == "postgres" {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
	} else {
		// Default to SQLite
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL database to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Set connection pool settings (conservative for SQLite)
	if dbType == "sqlite" {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(10)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}

	return db, nil
}

// Migrate creates or updates the schema for every model the engine owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&practice.Question{},
		&practice.Attempt{},
		&practice.PracticeSession{},
		&practice.PerformanceSummary{},
		&lecture.Lecture{},
		&lecture.SyllabusItem{},
		&lecture.LectureTopic{},
		&recommendation.PracticeRecommendation{},
		&gamification.PointsLedger{},
		&gamification.Streak{},
	)
}

// Close closes the database connection.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
