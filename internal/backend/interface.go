package backend

import (
	"context"

	"waterwise/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// PingFunc reports whether the backend's stores are reachable.
type PingFunc func(ctx context.Context) error

// BackendResult holds the two ports the application runs on plus lifecycle hooks.
type BackendResult struct {
	Profile sheets.ProfileStore
	Remote  sheets.RemoteSync
	Ping    PingFunc
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type   BackendType
	UserID string

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleProfileSheetName   string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Redis specific
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
	RedisBackend  BackendType = "redis"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend, RedisBackend:
		return true
	default:
		return false
	}
}
