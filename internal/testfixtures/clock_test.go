package testfixtures

import (
	"testing"
	"time"

	"github.com/example/exam-timeline/internal/timeline"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockAdvanceFiresDueTimers(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	clock := NewClock(start)

	var fired []string
	clock.AfterFunc(10*time.Minute, func() { fired = append(fired, "late") })
	clock.AfterFunc(5*time.Minute, func() { fired = append(fired, "early") })
	stopped := clock.AfterFunc(7*time.Minute, func() { fired = append(fired, "stopped") })
	if !stopped.Stop() {
		t.Fatalf("expected Stop to report an active timer")
	}

	if got := clock.Advance(4 * time.Minute); !got.Equal(start.Add(4 * time.Minute)) {
		t.Fatalf("advance returned %v", got)
	}
	if len(fired) != 0 {
		t.Fatalf("no timer is due yet, fired %v", fired)
	}

	clock.Set(start.Add(time.Hour))
	if len(fired) != 2 || fired[0] != "early" || fired[1] != "late" {
		t.Fatalf("expected timers in deadline order, got %v", fired)
	}
	if clock.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", clock.Pending())
	}
	if stopped.Stop() {
		t.Fatalf("second Stop should report false")
	}
}

func TestClockDrivesToastExpiry(t *testing.T) {
	clock := NewClock(time.Time{})
	center := timeline.NewToastCenter(timeline.WithToastClock(clock.Now, clock.AfterFunc))

	center.Notify(timeline.Toast{Title: "保存しました"})
	toasts := center.Toasts()
	if len(toasts) != 1 || !toasts[0].CreatedAt.Equal(clock.Current()) {
		t.Fatalf("unexpected toasts %+v", toasts)
	}

	clock.Advance(timeline.DefaultToastTTL - time.Second)
	if len(center.Toasts()) != 1 {
		t.Fatalf("toast dismissed early")
	}
	clock.Advance(time.Second)
	if len(center.Toasts()) != 0 {
		t.Fatalf("expected toast dismissed after %v", timeline.DefaultToastTTL)
	}
}
