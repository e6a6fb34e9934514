package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/exam-timeline/internal/persistence/sqlite/migration"
)

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	*RoomRepository
	*ExamRepository
	*AllocationRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

// Open connects to dsn. ":memory:" opens a private in-memory database.
func Open(dsn string, logger *slog.Logger) (*Storage, error) {
	config := migration.DefaultSQLiteConfig(dsn)
	if dsn == ":memory:" {
		config = migration.InMemorySQLiteConfig()
	}
	return OpenWithConfig(config, logger)
}

// OpenWithConfig connects using an explicit configuration.
func OpenWithConfig(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		RoomRepository:       NewRoomRepository(pool),
		ExamRepository:       NewExamRepository(pool),
		AllocationRepository: NewAllocationRepository(pool),
		pool:                 pool,
		logger:               logger,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(migration.NewSQLiteExecutor(s.pool.DB()), migration.Embedded(), s.logger)
	if err := manager.Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
