// Package seed loads rooms, exams and allocations from a YAML file into the
// application services.
//
// Entries refer to each other through local keys:
//
//	rooms:
//	  - key: hall-a
//	    code: A101
//	    name: Hall A
//	    capacity: 120
//	exams:
//	  - key: calc
//	    course_code: MATH101
//	    title: Calculus I
//	allocations:
//	  - exam: calc
//	    rooms: [hall-a]
//	    starts_at: 2025-01-20T09:00:00Z
//	    ends_at: 2025-01-20T11:00:00Z
//	    seats_requested: 100
//	    repeat:
//	      frequency: weekly
//	      weekdays: [mon, thu]
//	      until: 2025-02-06T00:00:00Z
//
// An allocation with repeat is stored once per session of the series.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/exam-timeline/internal/application"
	"github.com/example/exam-timeline/internal/recurrence"
	"github.com/example/exam-timeline/internal/timeline"
)

// File is the decoded seed document.
type File struct {
	Rooms       []RoomEntry       `yaml:"rooms"`
	Exams       []ExamEntry       `yaml:"exams"`
	Allocations []AllocationEntry `yaml:"allocations"`
}

type RoomEntry struct {
	Key      string `yaml:"key"`
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Campus   string `yaml:"campus"`
	Capacity int    `yaml:"capacity"`
}

type ExamEntry struct {
	Key                string `yaml:"key"`
	CourseCode         string `yaml:"course_code"`
	Title              string `yaml:"title"`
	ExpectedCandidates int    `yaml:"expected_candidates"`
	DurationMinutes    int    `yaml:"duration_minutes"`
}

type AllocationEntry struct {
	Exam           string    `yaml:"exam"`
	Rooms          []string  `yaml:"rooms"`
	StartsAt       time.Time `yaml:"starts_at"`
	EndsAt         time.Time `yaml:"ends_at"`
	SeatsRequested int       `yaml:"seats_requested"`
	Notes          string    `yaml:"notes"`
	// Force stores the allocation even when it overbooks a room.
	Force  bool         `yaml:"force"`
	Repeat *RepeatEntry `yaml:"repeat"`
}

// RepeatEntry turns an allocation into a series of sessions.
type RepeatEntry struct {
	Frequency string    `yaml:"frequency"`
	Weekdays  []string  `yaml:"weekdays"`
	Until     time.Time `yaml:"until"`
}

func (r RepeatEntry) rule() (recurrence.Rule, error) {
	freq, err := recurrence.ParseFrequency(r.Frequency)
	if err != nil {
		return recurrence.Rule{}, err
	}
	rule := recurrence.Rule{Frequency: freq, Until: r.Until}
	for _, name := range r.Weekdays {
		day, err := recurrence.ParseWeekday(name)
		if err != nil {
			return recurrence.Rule{}, err
		}
		rule.Weekdays = append(rule.Weekdays, day)
	}
	return rule, nil
}

// sessions lists the windows to store for the entry.
func (a AllocationEntry) sessions(expander *recurrence.Expander) ([]timeline.Interval, error) {
	first := timeline.Interval{Start: a.StartsAt, End: a.EndsAt}
	if a.Repeat == nil {
		return []timeline.Interval{first}, nil
	}
	rule, err := a.Repeat.rule()
	if err != nil {
		return nil, err
	}
	return expander.Expand(rule, first)
}

// Decode parses a seed document. Unknown fields are rejected.
func Decode(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("seed: decode: %w", err)
	}
	return f, f.validateKeys()
}

// LoadFile reads and parses the seed document at path.
func LoadFile(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("seed: open: %w", err)
	}
	defer fh.Close()
	return Decode(fh)
}

func (f File) validateKeys() error {
	rooms := make(map[string]bool, len(f.Rooms))
	for i, r := range f.Rooms {
		key := r.key()
		if key == "" {
			return fmt.Errorf("seed: rooms[%d]: key or code is required", i)
		}
		if rooms[key] {
			return fmt.Errorf("seed: rooms[%d]: duplicate key %q", i, key)
		}
		rooms[key] = true
	}
	exams := make(map[string]bool, len(f.Exams))
	for i, e := range f.Exams {
		key := e.key()
		if key == "" {
			return fmt.Errorf("seed: exams[%d]: key or course_code is required", i)
		}
		if exams[key] {
			return fmt.Errorf("seed: exams[%d]: duplicate key %q", i, key)
		}
		exams[key] = true
	}
	for i, a := range f.Allocations {
		if !exams[a.Exam] {
			return fmt.Errorf("seed: allocations[%d]: unknown exam %q", i, a.Exam)
		}
		for _, room := range a.Rooms {
			if !rooms[room] {
				return fmt.Errorf("seed: allocations[%d]: unknown room %q", i, room)
			}
		}
		if a.Repeat != nil {
			if _, err := a.Repeat.rule(); err != nil {
				return fmt.Errorf("seed: allocations[%d]: repeat: %w", i, err)
			}
		}
	}
	return nil
}

func (r RoomEntry) key() string {
	if k := strings.TrimSpace(r.Key); k != "" {
		return k
	}
	return strings.TrimSpace(r.Code)
}

func (e ExamEntry) key() string {
	if k := strings.TrimSpace(e.Key); k != "" {
		return k
	}
	return strings.TrimSpace(e.CourseCode)
}

// RoomStore is the room side of the application layer used for seeding.
type RoomStore interface {
	CreateRoom(ctx context.Context, input application.RoomInput) (application.Room, error)
	ListRooms(ctx context.Context) ([]application.Room, error)
}

// ExamStore is the exam side of the application layer used for seeding.
type ExamStore interface {
	CreateExam(ctx context.Context, input application.ExamInput) (application.Exam, error)
	ListExams(ctx context.Context) ([]application.Exam, error)
}

// AllocationStore creates allocations.
type AllocationStore interface {
	CreateAllocation(ctx context.Context, params application.CreateAllocationParams) (application.Allocation, error)
}

// Result counts what Apply created and reused.
type Result struct {
	RoomsCreated       int
	RoomsReused        int
	ExamsCreated       int
	ExamsReused        int
	AllocationsCreated int
}

// Seeder writes a File through the application services so the same
// validation and capacity checks apply as for API writes.
type Seeder struct {
	rooms       RoomStore
	exams       ExamStore
	allocations AllocationStore
	expander    *recurrence.Expander
	logger      *slog.Logger
}

func NewSeeder(rooms RoomStore, exams ExamStore, allocations AllocationStore, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		rooms:       rooms,
		exams:       exams,
		allocations: allocations,
		expander:    recurrence.NewExpander(nil),
		logger:      logger.With("component", "seed"),
	}
}

// Apply stores every entry of f. Rooms and exams whose code already exists
// are reused, so a file can be applied again to add allocations.
func (s *Seeder) Apply(ctx context.Context, f File) (Result, error) {
	var res Result

	roomIDs, err := s.applyRooms(ctx, f.Rooms, &res)
	if err != nil {
		return res, err
	}
	examIDs, err := s.applyExams(ctx, f.Exams, &res)
	if err != nil {
		return res, err
	}

	for i, entry := range f.Allocations {
		ids := make([]string, 0, len(entry.Rooms))
		for _, key := range entry.Rooms {
			ids = append(ids, roomIDs[key])
		}
		sessions, err := entry.sessions(s.expander)
		if err != nil {
			return res, fmt.Errorf("seed: allocations[%d]: repeat: %w", i, err)
		}
		for _, session := range sessions {
			allocation, err := s.allocations.CreateAllocation(ctx, application.CreateAllocationParams{
				ExamID: examIDs[entry.Exam],
				Input: application.AllocationInput{
					RoomIDs:        ids,
					StartsAt:       session.Start,
					EndsAt:         session.End,
					SeatsRequested: entry.SeatsRequested,
					Notes:          entry.Notes,
				},
				Force: entry.Force,
			})
			if err != nil {
				return res, fmt.Errorf("seed: allocations[%d] at %s: %w", i, session.Start.Format(time.RFC3339), err)
			}
			res.AllocationsCreated++
			s.logger.DebugContext(ctx, "allocation seeded", "allocation_id", allocation.ID, "exam", entry.Exam, "starts_at", session.Start)
		}
	}

	s.logger.InfoContext(ctx, "seed applied",
		"rooms_created", res.RoomsCreated,
		"rooms_reused", res.RoomsReused,
		"exams_created", res.ExamsCreated,
		"exams_reused", res.ExamsReused,
		"allocations_created", res.AllocationsCreated,
	)
	return res, nil
}

func (s *Seeder) applyRooms(ctx context.Context, entries []RoomEntry, res *Result) (map[string]string, error) {
	existing, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed: list rooms: %w", err)
	}
	byCode := make(map[string]string, len(existing))
	for _, room := range existing {
		byCode[room.Code] = room.ID
	}

	ids := make(map[string]string, len(entries))
	for i, entry := range entries {
		code := strings.TrimSpace(entry.Code)
		if id, ok := byCode[code]; ok && code != "" {
			ids[entry.key()] = id
			res.RoomsReused++
			continue
		}
		room, err := s.rooms.CreateRoom(ctx, application.RoomInput{
			Code:     code,
			Name:     entry.Name,
			Campus:   entry.Campus,
			Capacity: entry.Capacity,
		})
		if err != nil {
			return nil, fmt.Errorf("seed: rooms[%d]: %w", i, err)
		}
		byCode[room.Code] = room.ID
		ids[entry.key()] = room.ID
		res.RoomsCreated++
	}
	return ids, nil
}

func (s *Seeder) applyExams(ctx context.Context, entries []ExamEntry, res *Result) (map[string]string, error) {
	existing, err := s.exams.ListExams(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed: list exams: %w", err)
	}
	byCode := make(map[string]string, len(existing))
	for _, exam := range existing {
		byCode[exam.CourseCode] = exam.ID
	}

	ids := make(map[string]string, len(entries))
	for i, entry := range entries {
		code := strings.TrimSpace(entry.CourseCode)
		if id, ok := byCode[code]; ok && code != "" {
			ids[entry.key()] = id
			res.ExamsReused++
			continue
		}
		exam, err := s.exams.CreateExam(ctx, application.ExamInput{
			CourseCode:         code,
			Title:              entry.Title,
			ExpectedCandidates: entry.ExpectedCandidates,
			DurationMinutes:    entry.DurationMinutes,
		})
		if err != nil {
			return nil, fmt.Errorf("seed: exams[%d]: %w", i, err)
		}
		byCode[exam.CourseCode] = exam.ID
		ids[entry.key()] = exam.ID
		res.ExamsCreated++
	}
	return ids, nil
}
