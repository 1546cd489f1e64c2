package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRequestRefreshCoalesces(t *testing.T) {
	api := &countingAPI{}
	clk := &clock{now: time.Now()}
	runner := NewRunner(newTestCoordinator(api, clk, staticTokens{}), zerolog.Nop())

	runner.RequestRefresh()
	runner.RequestRefresh()
	runner.RequestRefresh()

	if got := len(runner.refreshCh); got != 1 {
		t.Errorf("queued refreshes = %d, want 1 (requests must coalesce)", got)
	}
}

func TestSetUpdateIntervalQueuesOneRefreshAndRetunes(t *testing.T) {
	api := &countingAPI{}
	clk := &clock{now: time.Now()}
	runner := NewRunner(newTestCoordinator(api, clk, staticTokens{}), zerolog.Nop())

	period := runner.SetUpdateInterval(120*time.Second, 600*time.Second)
	if period != 120*time.Second {
		t.Errorf("period = %v, want 120s (min of the two intervals)", period)
	}

	if got := len(runner.refreshCh); got != 1 {
		t.Errorf("queued refreshes = %d, want exactly 1", got)
	}
	select {
	case queued := <-runner.periodCh:
		if queued != 120*time.Second {
			t.Errorf("queued period = %v, want 120s", queued)
		}
	default:
		t.Error("no period queued for the ticker")
	}

	if got := runner.Status().TickPeriodSeconds; got != 120 {
		t.Errorf("status tick period = %d, want 120", got)
	}

	// A second reconfiguration replaces the queued period instead of
	// blocking.
	runner.SetUpdateInterval(60*time.Second, 0)
	if got := len(runner.refreshCh); got != 1 {
		t.Errorf("queued refreshes after second call = %d, want 1", got)
	}
}

func TestSetUpdateIntervalConcurrentWithoutLoop(t *testing.T) {
	api := &countingAPI{}
	clk := &clock{now: time.Now()}
	// No Run loop draining the channels, as after an auth failure stopped it.
	runner := NewRunner(newTestCoordinator(api, clk, staticTokens{}), zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner.SetUpdateInterval(40*time.Second, 0)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SetUpdateInterval blocked on a stopped runner")
	}

	if got := len(runner.periodCh); got != 1 {
		t.Errorf("queued periods = %d, want 1", got)
	}
	if queued := <-runner.periodCh; queued != 40*time.Second {
		t.Errorf("queued period = %v, want 40s", queued)
	}
}

func TestRunPollsOnTicks(t *testing.T) {
	api := &countingAPI{}
	coord := NewCoordinator(
		"alice",
		staticTokens{},
		func(string) API { return api },
		RefreshPolicy{NowPlaying: 10 * time.Millisecond, RecentlyPlayed: 20 * time.Millisecond},
		zerolog.Nop(),
	)
	runner := NewRunner(coord, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	runner.Run(ctx)

	// One immediate refresh plus several ticks.
	if api.nowPlayingCalls < 3 {
		t.Errorf("refresh cycles = %d, want at least 3", api.nowPlayingCalls)
	}
	if status := runner.Status(); status.State != StateOK {
		t.Errorf("state = %q, want %q", status.State, StateOK)
	}
}

func TestRunStopsOnAuthFailure(t *testing.T) {
	api := &countingAPI{nowPlayingErr: &APIError{Status: 401, Message: "expired"}}
	coord := NewCoordinator(
		"alice",
		staticTokens{},
		func(string) API { return api },
		RefreshPolicy{NowPlaying: 10 * time.Millisecond, RecentlyPlayed: 10 * time.Millisecond},
		zerolog.Nop(),
	)
	runner := NewRunner(coord, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		runner.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after an auth failure")
	}

	status := runner.Status()
	if status.State != StateAuthRequired {
		t.Errorf("state = %q, want %q", status.State, StateAuthRequired)
	}
	if status.LastError == "" {
		t.Error("LastError must carry the failure")
	}
	if api.nowPlayingCalls != 1 {
		t.Errorf("refresh cycles = %d, want 1 (auth failures are not retried)", api.nowPlayingCalls)
	}
}

func TestRunKeepsPollingThroughTransientFailures(t *testing.T) {
	api := &countingAPI{nowPlayingErr: &APIError{Status: 503, Message: "unavailable"}}
	coord := NewCoordinator(
		"alice",
		staticTokens{},
		func(string) API { return api },
		RefreshPolicy{NowPlaying: 10 * time.Millisecond, RecentlyPlayed: 10 * time.Millisecond},
		zerolog.Nop(),
	)
	runner := NewRunner(coord, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	runner.Run(ctx)

	if api.nowPlayingCalls < 2 {
		t.Errorf("refresh cycles = %d, want at least 2 (transient failures retry on the next tick)", api.nowPlayingCalls)
	}
	if status := runner.Status(); status.State != StateUpdateFailed {
		t.Errorf("state = %q, want %q", status.State, StateUpdateFailed)
	}
}
