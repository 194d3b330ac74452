package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/facultyload/facultyload/pkg/types"
	"github.com/facultyload/facultyload/server/internal/config"
	"github.com/facultyload/facultyload/server/internal/dataset"
	"github.com/facultyload/facultyload/server/internal/security"
	"github.com/facultyload/facultyload/server/internal/store"
)

type downFetcher struct{}

func (downFetcher) FetchRows(context.Context) ([]types.RawRow, error) {
	return nil, errors.New("down")
}

func (downFetcher) FetchInsights(context.Context) (types.Insights, error) {
	return types.Insights{}, errors.New("down")
}

func (downFetcher) Endpoint() string { return "" }

func TestSetSchedule_Invalid(t *testing.T) {
	s := New(func(context.Context) {}, 0)
	if err := s.SetSchedule("every tuesday"); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if s.Scheduled() {
		t.Error("invalid schedule left an entry")
	}
}

func TestSetSchedule_ReplaceAndDisable(t *testing.T) {
	s := New(func(context.Context) {}, 0)
	if err := s.SetSchedule("*/5 * * * *"); err != nil {
		t.Fatalf("SetSchedule: %v", err)
	}
	if !s.Scheduled() || len(s.cron.Entries()) != 1 {
		t.Fatalf("entries = %d, want 1", len(s.cron.Entries()))
	}
	if err := s.SetSchedule("0 7 * * 1-5"); err != nil {
		t.Fatalf("SetSchedule: %v", err)
	}
	if len(s.cron.Entries()) != 1 {
		t.Errorf("entries after replace = %d, want 1", len(s.cron.Entries()))
	}
	if err := s.SetSchedule(""); err != nil {
		t.Fatalf("SetSchedule(\"\"): %v", err)
	}
	if s.Scheduled() || len(s.cron.Entries()) != 0 {
		t.Errorf("schedule still active after disable")
	}
}

func TestRun_FiresOnSchedule(t *testing.T) {
	var runs atomic.Int32
	s := New(func(context.Context) { runs.Add(1) }, time.Second)
	if err := s.SetSchedule("@every 1s"); err != nil {
		t.Fatalf("SetSchedule: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	<-done

	if runs.Load() == 0 {
		t.Error("job never ran")
	}
}

func TestRunNow_AppliesTimeout(t *testing.T) {
	var hadDeadline bool
	s := New(func(ctx context.Context) { _, hadDeadline = ctx.Deadline() }, time.Minute)
	s.RunNow(context.Background())
	if !hadDeadline {
		t.Error("job context has no deadline")
	}
}

func TestRunNow_SkipsCancelledContext(t *testing.T) {
	ran := false
	s := New(func(context.Context) { ran = true }, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.RunNow(ctx)
	if ran {
		t.Error("job ran with a cancelled context")
	}
}

func TestTasks_Run(t *testing.T) {
	st := store.New(time.Hour, 5)
	notified := false
	tasks := Tasks{
		Loader: dataset.New(downFetcher{}, false, dataset.Deps{Store: st}),
		Certs:  &security.Tracker{},
		Source: func() config.SourceConfig { return config.SourceConfig{URL: "http://plain.example"} },
		OnDone: func() { notified = true },
	}
	tasks.Run(context.Background())

	e, ok := st.Latest()
	if !ok || e.Snapshot.Origin != store.OriginDemo {
		t.Fatalf("stored snapshot = %+v, %v", e, ok)
	}
	if !notified {
		t.Error("OnDone not called")
	}
	if tasks.Certs.Latest() != nil {
		t.Error("plain HTTP source produced a cert status")
	}
}
