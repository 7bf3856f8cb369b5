package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func noop(context.Context) {}

func TestAddJobFires(t *testing.T) {
	var calls atomic.Int32

	sched := New(nil)
	_, err := sched.AddJob("uptime", "@every 1s", func(ctx context.Context) {
		if ctx == nil {
			t.Error("nil context")
		}
		calls.Add(1)
	})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	if sched.JobCount() != 1 {
		t.Errorf("JobCount = %d", sched.JobCount())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	sched.Start(ctx)

	if calls.Load() == 0 {
		t.Error("expected at least one call")
	}
}

func TestStopCancelsJobContext(t *testing.T) {
	sched := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sched.Start(ctx)

	select {
	case <-sched.ctx.Done():
	default:
		t.Error("job context not cancelled after stop")
	}
}

func TestInvalidSchedule(t *testing.T) {
	sched := New(nil)
	if _, err := sched.AddJob("uptime", "invalid-cron", noop); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if sched.JobCount() != 0 {
		t.Errorf("JobCount = %d", sched.JobCount())
	}
}

func TestRemoveOwner(t *testing.T) {
	sched := New(nil)
	sched.AddJob("hiring", "@every 1h", noop)
	sched.AddJob("hiring", "@every 2h", noop)

	if sched.JobCount() != 2 {
		t.Fatalf("JobCount = %d before remove", sched.JobCount())
	}

	sched.RemoveOwner("hiring")
	if sched.JobCount() != 0 {
		t.Errorf("JobCount = %d after remove", sched.JobCount())
	}
}

func TestReplace(t *testing.T) {
	sched := New(nil)
	first, _ := sched.AddJob("uptime", "@every 60s", noop)

	second, err := sched.Replace("uptime", "@every 10s", noop)
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	jobs := sched.ListJobs("uptime")
	if len(jobs) != 1 || jobs[0] != second || second == first {
		t.Errorf("jobs = %v (first %v, second %v)", jobs, first, second)
	}
}

func TestListJobs(t *testing.T) {
	sched := New(nil)
	sched.AddJob("uptime", "@every 1h", noop)
	sched.AddJob("uptime", "@every 2h", noop)
	sched.AddJob("hiring", "@every 3h", noop)

	if n := len(sched.ListJobs("uptime")); n != 2 {
		t.Errorf("uptime jobs = %d", n)
	}
	if n := len(sched.ListJobs("hiring")); n != 1 {
		t.Errorf("hiring jobs = %d", n)
	}
}
