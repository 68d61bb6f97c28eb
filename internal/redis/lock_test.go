package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hackgods/therapy-series-scheduling/internal/series"
)

func TestSeriesLocker_RunsAndReleases(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewSeriesLocker(client, 10*time.Second)

	calls := 0
	err := locker.WithSeriesLock(context.Background(), "series:s1", func(ctx context.Context) error {
		calls++
		if !mr.Exists("lock:series:s1") {
			t.Error("lock key not held during callback")
		}
		if _, ok := ctx.Deadline(); !ok {
			t.Error("callback context has no deadline")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithSeriesLock: %v", err)
	}
	if calls != 1 {
		t.Errorf("callback ran %d times", calls)
	}
	if mr.Exists("lock:series:s1") {
		t.Error("lock key not released")
	}
}

func TestSeriesLocker_Busy(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewSeriesLocker(client, 10*time.Second)
	if err := mr.Set("lock:preview:p1", "someone-else"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := locker.WithSeriesLock(context.Background(), "preview:p1", func(context.Context) error {
		t.Error("callback ran without the lock")
		return nil
	})
	if !errors.Is(err, series.ErrSeriesBusy) {
		t.Errorf("got %v, want ErrSeriesBusy", err)
	}
	if v, _ := mr.Get("lock:preview:p1"); v != "someone-else" {
		t.Errorf("foreign lock overwritten with %q", v)
	}
}

func TestSeriesLocker_NestedKeys(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewSeriesLocker(client, 10*time.Second)
	ctx := context.Background()

	err := locker.WithSeriesLock(ctx, "preview:p1", func(ctx context.Context) error {
		return locker.WithSeriesLock(ctx, "series:s1", func(context.Context) error {
			if !mr.Exists("lock:preview:p1") || !mr.Exists("lock:series:s1") {
				t.Error("both locks should be held")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("WithSeriesLock: %v", err)
	}

	err = locker.WithSeriesLock(ctx, "series:s1", func(ctx context.Context) error {
		return locker.WithSeriesLock(ctx, "series:s1", func(context.Context) error { return nil })
	})
	if !errors.Is(err, series.ErrSeriesBusy) {
		t.Errorf("re-entering the same key: got %v, want ErrSeriesBusy", err)
	}
}

func TestSeriesLocker_KeepsLockTakenOverAfterExpiry(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewSeriesLocker(client, 10*time.Second)

	wantErr := errors.New("create failed")
	err := locker.WithSeriesLock(context.Background(), "series:s1", func(context.Context) error {
		// our lock expired and another holder took it
		if err := mr.Set("lock:series:s1", "next-holder"); err != nil {
			t.Fatalf("seed: %v", err)
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("got %v, want the callback error", err)
	}
	if v, _ := mr.Get("lock:series:s1"); v != "next-holder" {
		t.Errorf("release removed another holder's lock, value %q", v)
	}
}
