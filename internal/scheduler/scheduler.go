// Package scheduler implements the Scheduler of spec.md §4.2: it drives
// each registered Source Adapter on its own jittered interval and fans
// their output into a single bounded queue for the pipeline task to
// drain. Grounded on the teacher's Pipeline.Run/runSourcePoller
// (internal/pipeline/pipeline.go), generalized from a single hardcoded
// RSS source to an arbitrary set of sourceadapter.Adapter instances and
// the drop-on-backpressure policy spec.md §4.2 requires in place of the
// teacher's blocking error channel.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	sentinelerrors "github.com/mplswatch/sentinel/internal/errors"
	"github.com/mplswatch/sentinel/internal/logger"
	"github.com/mplswatch/sentinel/internal/metrics"
	"github.com/mplswatch/sentinel/internal/models"
	"github.com/mplswatch/sentinel/internal/sourceadapter"
)

// QueueCapacity is the default bounded fan-in queue size (spec.md §5).
const QueueCapacity = 1024

// JitterFraction is the +/-10% interval jitter spec.md §4.2 requires.
const JitterFraction = 0.10

// ShutdownGrace is the default drain grace period on shutdown (spec.md
// §4.2/§5).
const ShutdownGrace = 10 * time.Second

// Scheduler drives a fixed set of adapters and fans their reports into
// a single bounded channel.
type Scheduler struct {
	adapters []sourceadapter.Adapter
	queue    chan models.Report
	dropped  int64
	mu       sync.Mutex
	disabled map[string]bool
}

// New builds a Scheduler over adapters with the default queue capacity.
func New(adapters []sourceadapter.Adapter) *Scheduler {
	return &Scheduler{
		adapters: adapters,
		queue:    make(chan models.Report, QueueCapacity),
		disabled: make(map[string]bool),
	}
}

// Reports returns the channel the pipeline task should drain. The
// Scheduler closes it once every adapter's poll loop has exited.
func (s *Scheduler) Reports() <-chan models.Report {
	return s.queue
}

// Dropped returns the number of reports discarded so far because the
// queue was full (spec.md §4.2's backpressure policy).
func (s *Scheduler) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Run starts one poll loop per adapter and blocks until ctx is
// cancelled and every poll loop has returned, then closes the Reports
// channel. It puts no deadline on that wait; cmd/sentinel bounds its own
// wait on Run with ShutdownGrace.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, a := range s.adapters {
		a := a
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runAdapterLoop(ctx, a)
		}()
	}

	wg.Wait()
	close(s.queue)
}

func (s *Scheduler) runAdapterLoop(ctx context.Context, a sourceadapter.Adapter) {
	logger.Info("starting adapter poll loop", "source", a.Name(), "kind", string(a.Kind()))

	s.pollOnce(ctx, a)

	for {
		wait := jittered(a.Interval())
		select {
		case <-ctx.Done():
			logger.Info("adapter poll loop stopping", "source", a.Name())
			return
		case <-time.After(wait):
			if s.isDisabled(a.Name()) {
				logger.Debug("skipping poll for disabled adapter", "source", a.Name())
				continue
			}
			s.pollOnce(ctx, a)
		}
	}
}

func (s *Scheduler) pollOnce(ctx context.Context, a sourceadapter.Adapter) {
	start := time.Now()
	reports, err := a.Poll(ctx)
	duration := time.Since(start)

	if err != nil {
		s.handlePollError(a, err)
		metrics.RecordPipelineRun(a.Name(), duration)
		return
	}

	metrics.RecordPipelineRun(a.Name(), duration)
	logger.Debug("adapter poll completed", "source", a.Name(), "reports", len(reports))

	for _, r := range reports {
		select {
		case s.queue <- r:
		default:
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
			metrics.RecordAlertProcessed(a.Name(), "queue_full_dropped")
			logger.Warn("dropping report, fan-in queue full", "source", a.Name())
		}
	}
}

func (s *Scheduler) handlePollError(a sourceadapter.Adapter, err error) {
	var permErr sentinelerrors.AdapterPermanentError
	if asAdapterPermanent(err, &permErr) {
		s.mu.Lock()
		s.disabled[a.Name()] = true
		s.mu.Unlock()
		logger.Error("adapter disabled after permanent error", "source", a.Name(), "error", err)
		metrics.RecordAlertProcessed(a.Name(), "permanent_error")
		return
	}
	logger.Warn("adapter poll failed, will retry next tick", "source", a.Name(), "error", err)
	metrics.RecordAlertProcessed(a.Name(), "transient_error")
}

func asAdapterPermanent(err error, target *sentinelerrors.AdapterPermanentError) bool {
	if e, ok := err.(sentinelerrors.AdapterPermanentError); ok {
		*target = e
		return true
	}
	return false
}

func (s *Scheduler) isDisabled(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled[name]
}

// jittered applies +/-JitterFraction random jitter to interval.
func jittered(interval time.Duration) time.Duration {
	if interval <= 0 {
		return interval
	}
	delta := float64(interval) * JitterFraction
	offset := (rand.Float64()*2 - 1) * delta
	return interval + time.Duration(offset)
}
