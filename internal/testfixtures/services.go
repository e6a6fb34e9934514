package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/exam-timeline/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

func (f *ServiceFactory) defaults(idGen func() string, now func() time.Time) (func() string, func() time.Time) {
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return idGen, now
}

// RoomServiceDeps captures dependencies for constructing a room service.
type RoomServiceDeps struct {
	Rooms       application.RoomRepository
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewRoomService builds a room service using the supplied dependencies.
func (f *ServiceFactory) NewRoomService(deps RoomServiceDeps) *application.RoomService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewRoomService(deps.Rooms, idGen, now, deps.Logger)
}

// ExamServiceDeps captures dependencies for constructing an exam service.
type ExamServiceDeps struct {
	Exams       application.ExamRepository
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewExamService builds an exam service using the supplied dependencies.
func (f *ServiceFactory) NewExamService(deps ExamServiceDeps) *application.ExamService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewExamService(deps.Exams, idGen, now, deps.Logger)
}

// AllocationServiceDeps captures dependencies for constructing an allocation
// service. CacheTTL of zero leaves the listing cache disabled.
type AllocationServiceDeps struct {
	Allocations  application.AllocationRepository
	Rooms        application.RoomRepository
	Exams        application.ExamRepository
	IDGenerator  func() string
	Now          func() time.Time
	CacheTTL     time.Duration
	CacheEntries int
	Logger       *slog.Logger
}

// NewAllocationService builds an allocation service using the supplied
// dependencies combined with the factory defaults.
func (f *ServiceFactory) NewAllocationService(deps AllocationServiceDeps) *application.AllocationService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	opts := []application.AllocationServiceOption{application.WithAllocationClock(idGen, now)}
	if deps.CacheTTL > 0 {
		entries := deps.CacheEntries
		if entries <= 0 {
			entries = 16
		}
		opts = append(opts, application.WithListCache(deps.CacheTTL, entries))
	}
	return application.NewAllocationService(deps.Allocations, deps.Rooms, deps.Exams, deps.Logger, opts...)
}
