package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/exam-timeline/internal/persistence"
	"github.com/example/exam-timeline/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style persistence tests.
type SQLiteHarness struct {
	Storage     *sqlite.Storage
	Rooms       persistence.RoomRepository
	Exams       persistence.ExamRepository
	Allocations persistence.AllocationRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "timeline.db")
	storage, err := sqlite.Open(path, nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage:     storage,
		Rooms:       storage,
		Exams:       storage,
		Allocations: storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedRooms stores the room fixtures.
func (h *SQLiteHarness) SeedRooms(tb testing.TB, rooms ...RoomFixture) {
	tb.Helper()
	for _, room := range rooms {
		if err := h.Rooms.CreateRoom(context.Background(), room.Persistence()); err != nil {
			tb.Fatalf("failed to seed room %s: %v", room.ID, err)
		}
	}
}

// SeedExams stores the exam fixtures.
func (h *SQLiteHarness) SeedExams(tb testing.TB, exams ...ExamFixture) {
	tb.Helper()
	for _, exam := range exams {
		if err := h.Exams.CreateExam(context.Background(), exam.Persistence()); err != nil {
			tb.Fatalf("failed to seed exam %s: %v", exam.ID, err)
		}
	}
}

// SeedAllocations stores the allocation fixtures. Their exams and rooms must
// already exist.
func (h *SQLiteHarness) SeedAllocations(tb testing.TB, allocations ...AllocationFixture) {
	tb.Helper()
	for _, allocation := range allocations {
		if err := h.Allocations.CreateAllocation(context.Background(), allocation.Persistence()); err != nil {
			tb.Fatalf("failed to seed allocation %s: %v", allocation.ID, err)
		}
	}
}
