package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/exam-timeline/internal/persistence"
)

// AllocationRepository implements persistence.AllocationRepository using
// SQLite. Room assignments live in allocation_rooms and are rewritten with the
// allocation inside one transaction.
type AllocationRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewAllocationRepository creates a new SQLite allocation repository.
func NewAllocationRepository(pool *ConnectionPool) *AllocationRepository {
	return &AllocationRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

const allocationSelect = `
	SELECT a.id, a.exam_id, e.title, a.starts_at, a.ends_at, a.seats_requested, a.notes, a.created_at, a.updated_at
	FROM allocations a
	JOIN exams e ON e.id = a.exam_id
`

// CreateAllocation inserts an allocation and its room assignments.
func (r *AllocationRepository) CreateAllocation(ctx context.Context, allocation persistence.Allocation) error {
	if err := validateAllocation(allocation); err != nil {
		return err
	}
	now := time.Now().UTC()
	if allocation.CreatedAt.IsZero() {
		allocation.CreatedAt = now
	}
	if allocation.UpdatedAt.IsZero() {
		allocation.UpdatedAt = allocation.CreatedAt
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			query := `
				INSERT INTO allocations (id, exam_id, starts_at, ends_at, seats_requested, notes, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`
			if _, err := r.helper.ExecTx(ctx, tx, query,
				allocation.ID,
				allocation.ExamID,
				allocation.StartsAt.UnixMilli(),
				allocation.EndsAt.UnixMilli(),
				allocation.SeatsRequested,
				allocation.Notes,
				formatTimestamp(allocation.CreatedAt),
				formatTimestamp(allocation.UpdatedAt),
			); err != nil {
				return err
			}
			return r.insertRooms(ctx, tx, allocation.ID, allocation.RoomIDs)
		})
	})
}

// UpdateAllocation rewrites the window, seats, notes and room assignments.
func (r *AllocationRepository) UpdateAllocation(ctx context.Context, allocation persistence.Allocation) error {
	if err := validateAllocation(allocation); err != nil {
		return err
	}
	if allocation.UpdatedAt.IsZero() {
		allocation.UpdatedAt = time.Now().UTC()
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			query := `
				UPDATE allocations
				SET starts_at = ?, ends_at = ?, seats_requested = ?, notes = ?, updated_at = ?
				WHERE id = ?
			`
			result, err := r.helper.ExecTx(ctx, tx, query,
				allocation.StartsAt.UnixMilli(),
				allocation.EndsAt.UnixMilli(),
				allocation.SeatsRequested,
				allocation.Notes,
				formatTimestamp(allocation.UpdatedAt),
				allocation.ID,
			)
			if err != nil {
				return err
			}
			if err := requireAffected(result); err != nil {
				return err
			}
			if _, err := r.helper.ExecTx(ctx, tx, "DELETE FROM allocation_rooms WHERE allocation_id = ?", allocation.ID); err != nil {
				return err
			}
			return r.insertRooms(ctx, tx, allocation.ID, allocation.RoomIDs)
		})
	})
}

// GetAllocation retrieves an allocation with its rooms.
func (r *AllocationRepository) GetAllocation(ctx context.Context, id string) (persistence.Allocation, error) {
	if id == "" {
		return persistence.Allocation{}, persistence.ErrNotFound
	}
	allocation, err := scanAllocation(r.helper.QueryRow(ctx, allocationSelect+` WHERE a.id = ?`, id))
	if err != nil {
		return persistence.Allocation{}, r.mapper.MapError(err)
	}
	list := []persistence.Allocation{allocation}
	if err := r.attachRooms(ctx, list); err != nil {
		return persistence.Allocation{}, err
	}
	return list[0], nil
}

// ListAllocations returns allocations matching filter ordered by start time.
func (r *AllocationRepository) ListAllocations(ctx context.Context, filter persistence.AllocationFilter) ([]persistence.Allocation, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.To != nil {
		clauses = append(clauses, "a.starts_at < ?")
		args = append(args, filter.To.UnixMilli())
	}
	if filter.From != nil {
		clauses = append(clauses, "a.ends_at > ?")
		args = append(args, filter.From.UnixMilli())
	}
	if filter.RoomID != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM allocation_rooms ar WHERE ar.allocation_id = a.id AND ar.room_id = ?)")
		args = append(args, filter.RoomID)
	}

	query := allocationSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY a.starts_at ASC, a.id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	var allocations []persistence.Allocation
	for rows.Next() {
		allocation, err := scanAllocation(rows)
		if err != nil {
			rows.Close()
			return nil, r.mapper.MapError(err)
		}
		allocations = append(allocations, allocation)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, r.mapper.MapError(err)
	}
	// The in-memory pool has a single connection, so rows must be released
	// before the room query runs.
	rows.Close()

	if err := r.attachRooms(ctx, allocations); err != nil {
		return nil, err
	}
	return allocations, nil
}

// DeleteAllocation removes an allocation and its room assignments.
func (r *AllocationRepository) DeleteAllocation(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.helper.Exec(ctx, "DELETE FROM allocations WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func (r *AllocationRepository) insertRooms(ctx context.Context, tx *sql.Tx, allocationID string, roomIDs []string) error {
	for position, roomID := range roomIDs {
		if _, err := r.helper.ExecTx(ctx, tx,
			"INSERT INTO allocation_rooms (allocation_id, room_id, position) VALUES (?, ?, ?)",
			allocationID, roomID, position,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *AllocationRepository) attachRooms(ctx context.Context, allocations []persistence.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}
	index := make(map[string]int, len(allocations))
	placeholders := make([]string, len(allocations))
	args := make([]any, len(allocations))
	for i, allocation := range allocations {
		index[allocation.ID] = i
		placeholders[i] = "?"
		args[i] = allocation.ID
	}

	query := `
		SELECT allocation_id, room_id
		FROM allocation_rooms
		WHERE allocation_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY allocation_id ASC, position ASC
	`
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return r.mapper.MapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var allocationID, roomID string
		if err := rows.Scan(&allocationID, &roomID); err != nil {
			return r.mapper.MapError(err)
		}
		i := index[allocationID]
		allocations[i].RoomIDs = append(allocations[i].RoomIDs, roomID)
	}
	return r.mapper.MapError(rows.Err())
}

func scanAllocation(row rowScanner) (persistence.Allocation, error) {
	var (
		allocation           persistence.Allocation
		startsAt, endsAt     int64
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&allocation.ID,
		&allocation.ExamID,
		&allocation.ExamTitle,
		&startsAt,
		&endsAt,
		&allocation.SeatsRequested,
		&allocation.Notes,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Allocation{}, err
	}
	allocation.StartsAt = time.UnixMilli(startsAt).UTC()
	allocation.EndsAt = time.UnixMilli(endsAt).UTC()

	var err error
	if allocation.CreatedAt, allocation.UpdatedAt, err = parseTimestamps(createdAt, updatedAt); err != nil {
		return persistence.Allocation{}, err
	}
	return allocation, nil
}

func validateAllocation(allocation persistence.Allocation) error {
	switch {
	case allocation.ID == "", allocation.ExamID == "":
		return persistence.ErrConstraintViolation
	case len(allocation.RoomIDs) == 0:
		return persistence.ErrConstraintViolation
	case !allocation.EndsAt.After(allocation.StartsAt):
		return persistence.ErrConstraintViolation
	case allocation.SeatsRequested <= 0:
		return persistence.ErrConstraintViolation
	}
	return nil
}
