package scheduler

import (
	"testing"
	"time"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler(time.UTC)
	defer s.Stop()
	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("Expected no error adding job, got %v", err)
	}
	if err := s.AddJob("not a cron expr", func() {}); err == nil {
		t.Error("Expected error for invalid cron expression")
	}
}

func TestSchedulerAddDailyJob(t *testing.T) {
	s := NewScheduler(nil)
	defer s.Stop()
	if err := s.AddDailyJob("21:30", func() {}); err != nil {
		t.Errorf("Expected no error adding daily job, got %v", err)
	}
	for _, bad := range []string{"2130", "24:00", "12:60", "ab:cd", "12"} {
		if err := s.AddDailyJob(bad, func() {}); err == nil {
			t.Errorf("Expected error for invalid time %q", bad)
		}
	}
}

func TestParseClock(t *testing.T) {
	hour, minute, err := parseClock("09:05")
	if err != nil {
		t.Fatalf("parseClock: %v", err)
	}
	if hour != 9 || minute != 5 {
		t.Errorf("expected 9:05, got %d:%d", hour, minute)
	}
}
