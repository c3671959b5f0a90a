package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) RefreshPosts(ctx context.Context) (int, error) {
	r.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("no deadline")
	}
	return 1, r.err
}

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New("every now and then", &countingRefresher{}); err == nil {
		t.Error("bad spec accepted")
	}
	if _, err := New("@every 1m", &countingRefresher{}); err != nil {
		t.Errorf("New: %v", err)
	}
}

func TestRefreshCallsRefresher(t *testing.T) {
	r := &countingRefresher{}
	s, err := New("*/5 * * * *", r)
	if err != nil {
		t.Fatal(err)
	}
	s.refresh()
	r.err = errors.New("discord down")
	s.refresh()
	if got := r.calls.Load(); got != 2 {
		t.Errorf("refresher called %d times, want 2", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s, err := New("@every 1h", &countingRefresher{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
