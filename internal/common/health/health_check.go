package health

import (
	"fmt"
	"runtime"
	"time"

	"gorm.io/gorm"
)

// Status is the payload returned by the health endpoint.
type Status struct {
	Status    string                 `json:"status"` // "healthy" or "degraded"
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Checks    map[string]interface{} `json:"checks"`
}

// Checker verifies the only external dependency the engine has: the database.
type Checker struct {
	db        *gorm.DB
	version   string
	startTime time.Time
}

func NewChecker(db *gorm.DB, version string) *Checker {
	return &Checker{
		db:        db,
		version:   version,
		startTime: time.Now(),
	}
}

// Check performs a health check and reports component detail.
func (hc *Checker) Check() Status {
	status := Status{
		Timestamp: time.Now(),
		Version:   hc.version,
		Checks:    make(map[string]interface{}),
	}

	dbErr := hc.pingDatabase()
	status.Checks["database"] = map[string]interface{}{
		"healthy": dbErr == nil,
	}
	if dbErr != nil {
		status.Checks["database"].(map[string]interface{})["error"] = dbErr.Error()
	}

	status.Checks["goroutines"] = runtime.NumGoroutine()
	status.Checks["uptime_seconds"] = int64(time.Since(hc.startTime).Seconds())

	if dbErr == nil {
		status.Status = "healthy"
	} else {
		status.Status = "degraded"
	}

	return status
}

// IsReady reports whether the service can reach the database.
func (hc *Checker) IsReady() bool {
	return hc.pingDatabase() == nil
}

func (hc *Checker) pingDatabase() error {
	if hc.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := hc.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
