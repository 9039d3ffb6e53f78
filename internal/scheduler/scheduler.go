// Package scheduler runs the sync pipeline repeatedly and on demand while
// guaranteeing that at most one run is ever in flight. Overlapping triggers
// do not start a second run; they attach to the one already executing and
// resolve when it finishes. That join-in-flight behavior is delegated to
// golang.org/x/sync/singleflight rather than a boolean guard, so a caller
// can never observe a no-op resolution while work is still proceeding.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/servaltullius/aion2-hub-sub001/internal/debuglog"
	syncrun "github.com/servaltullius/aion2-hub-sub001/internal/sync"
)

// Run reason tags, recorded as Status.LastResult.
const (
	ReasonStartup  = "startup"
	ReasonInterval = "interval"
	ReasonManual   = "manual"
)

// Scheduler states.
const (
	StateIdle    = "idle"
	StateRunning = "running"
)

// RunFunc executes one sync run; reason is the trigger tag.
type RunFunc func(ctx context.Context, reason string) (syncrun.Totals, error)

// Status is a point-in-time copy of the scheduler state. Mutating it does
// not affect the live scheduler.
type Status struct {
	State      string          `json:"state"`
	LastRunAt  *time.Time      `json:"last_run_at"`
	LastResult string          `json:"last_result"`
	LastError  string          `json:"last_error"`
	LastTotals *syncrun.Totals `json:"last_totals"`
}

type Scheduler struct {
	run      RunFunc
	interval time.Duration

	group singleflight.Group

	mu     sync.Mutex
	status Status

	stopCh  chan struct{}
	stopped bool
}

// New builds a scheduler, immediately fires a run tagged "startup" and arms
// the recurring timer. Interval must be positive.
func New(run RunFunc, interval time.Duration) (*Scheduler, error) {
	if run == nil {
		return nil, fmt.Errorf("scheduler: run function is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive, got %v", interval)
	}

	s := &Scheduler{
		run:      run,
		interval: interval,
		stopCh:   make(chan struct{}),
		status:   Status{State: StateIdle},
	}

	go s.trigger(context.Background(), ReasonStartup)
	go s.loop()

	return s, nil
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.trigger(context.Background(), ReasonInterval)
		}
	}
}

// TriggerManual requests a run tagged "manual". If a run is already in
// flight the call attaches to it and returns once that run completes; the
// underlying sync executes exactly once for the overlap window. The
// returned status reflects the completed run.
func (s *Scheduler) TriggerManual(ctx context.Context) (Status, error) {
	return s.trigger(ctx, ReasonManual)
}

func (s *Scheduler) trigger(ctx context.Context, reason string) (Status, error) {
	_, err, _ := s.group.Do("sync", func() (interface{}, error) {
		return s.execute(ctx, reason)
	})
	return s.Status(), err
}

func (s *Scheduler) execute(ctx context.Context, reason string) (syncrun.Totals, error) {
	s.mu.Lock()
	s.status.State = StateRunning
	s.mu.Unlock()

	started := time.Now().UTC()
	debuglog.Infof("sync run starting (%s)", reason)

	totals, err := s.run(ctx, reason)

	s.mu.Lock()
	s.status.State = StateIdle
	s.status.LastRunAt = &started
	s.status.LastResult = reason
	if err != nil {
		s.status.LastError = err.Error()
		s.status.LastTotals = nil
	} else {
		s.status.LastError = ""
		t := totals
		s.status.LastTotals = &t
	}
	s.mu.Unlock()

	if err != nil {
		debuglog.Errorf("sync run failed (%s): %v", reason, err)
		return totals, err
	}
	debuglog.Infof("sync run done (%s): %+v", reason, totals)
	return totals, nil
}

// Status returns a snapshot copy of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.status
	if s.status.LastRunAt != nil {
		t := *s.status.LastRunAt
		status.LastRunAt = &t
	}
	if s.status.LastTotals != nil {
		totals := *s.status.LastTotals
		status.LastTotals = &totals
	}
	return status
}

// Stop cancels the recurring timer. An in-flight run is allowed to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.stopCh)
	}
}
