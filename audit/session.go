// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Session is one running audit: a sequential test, the buffer feeding it and
// the worker goroutine that owns the test. Only the worker touches the test's
// statistic; everyone else reads the last published Status.
type Session struct {
	token    string
	test     SequentialTest
	buf      *SampleBuffer
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *Metrics
	cancel   context.CancelFunc
	started  chan struct{}
	exited   chan struct{}
	endOnce  sync.Once
	created  time.Time
	estimate int

	mu        sync.RWMutex
	status    Status
	processed int           // samples handed to the test
	changed   chan struct{} // closed and replaced on every publish
}

func newSession(token string, test SequentialTest, clock clockwork.Clock, logger *slog.Logger, metrics *Metrics) *Session {
	now := clock.Now()
	s := &Session{
		token:    token,
		test:     test,
		buf:      NewSampleBuffer(),
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		started:  make(chan struct{}),
		exited:   make(chan struct{}),
		created:  now,
		estimate: test.EstimatedSampleSize(),
		changed:  make(chan struct{}),
	}
	s.status = Status{
		Token:               token,
		Variant:             test.Variant(),
		Running:             true,
		EstimatedSampleSize: s.estimate,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	return s
}

// Token names the session
func (s *Session) Token() string {
	return s.token
}

// Variant is the audit method the session runs
func (s *Session) Variant() Variant {
	return s.test.Variant()
}

// start launches the worker and waits for the test's first decision
func (s *Session) start(ctx context.Context) error {
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.run(wctx)

	select {
	case <-s.started:
		return nil
	case <-ctx.Done():
		s.end()
		return ctx.Err()
	}
}

// run is the session's worker. It sleeps until samples arrive or the session
// ends, and stops after a terminal decision.
func (s *Session) run(ctx context.Context) {
	var startOnce sync.Once
	markStarted := func() { startOnce.Do(func() { close(s.started) }) }

	defer close(s.exited)
	defer s.buf.Close()
	defer markStarted()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Audit worker panicked", "panic", r)
			s.abort(failed("internal error: %v", r))
		}
	}()

	d := s.test.Start()
	s.publish(d, 0)
	markStarted()
	if d.Kind.Terminal() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.buf.Ready():
		}

		for {
			batch := s.buf.Drain()
			if len(batch) == 0 {
				break
			}
			d = s.test.Ingest(batch)
			s.publish(d, len(batch))
			if d.Kind.Terminal() {
				return
			}
		}
	}
}

// publish records a decision and wakes anyone waiting in Sync
func (s *Session) publish(d Decision, processed int) {
	state := s.test.State()
	state.Decision = d
	now := s.clock.Now()

	s.mu.Lock()
	first := !s.status.Done
	s.processed += processed
	s.status.State = state
	s.status.Message = d.Message
	s.status.UpdatedAt = now
	finished := d.Kind.Terminal() && first
	if d.Kind.Terminal() {
		s.status.Running = false
		s.status.Done = true
		s.status.Verdict = d.Kind == Certified
	}
	// recorded before waiters wake so they observe the verdict metric
	if finished {
		s.metrics.verdict(s.test.Variant(), d.Kind, now.Sub(s.created))
	}
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()

	if finished {
		s.logger.Info("Audit finished",
			"outcome", d.Kind.String(),
			"samples", state.SamplesConsumed,
			"message", d.Message)
	}
}

// abort publishes a terminal decision without consulting the test, whose
// state can no longer be trusted
func (s *Session) abort(d Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Done {
		return
	}
	s.status.State.Decision = d
	s.status.Message = d.Message
	s.status.UpdatedAt = s.clock.Now()
	s.status.Running = false
	s.status.Done = true
	close(s.changed)
	s.changed = make(chan struct{})
}

// Status copies the last published status
func (s *Session) Status() Status {
	s.mu.RLock()
	st := s.status
	s.mu.RUnlock()

	st.State.PairStatistics = append([]float64(nil), st.State.PairStatistics...)
	st.State.Decision.Request.Sequence = append([]int(nil), st.State.Decision.Request.Sequence...)
	st.Pending = s.buf.Len()
	return st
}

// Submit validates every sample before queueing any of them. An empty
// submission is rejected. A finished session ignores the samples and reports
// its verdict.
func (s *Session) Submit(v Variant, samples []Sample) (Status, error) {
	if v != s.test.Variant() {
		s.metrics.sampleRejected(s.test.Variant())
		return Status{}, &SampleFormatError{
			Index:  -1,
			Reason: fmt.Sprintf("session runs a %s audit, got %s samples", s.test.Variant(), v),
		}
	}
	if len(samples) == 0 {
		s.metrics.sampleRejected(v)
		return Status{}, &SampleFormatError{Index: -1, Reason: "submission has no samples"}
	}
	if st := s.Status(); st.Done {
		return st, nil
	}

	for i, sample := range samples {
		if err := s.test.Validate(sample); err != nil {
			s.metrics.sampleRejected(v)
			var sf *SampleFormatError
			if errors.As(err, &sf) {
				return Status{}, &SampleFormatError{Index: i, Reason: sf.Reason}
			}
			return Status{}, fmt.Errorf("validate sample %d: %w", i, err)
		}
	}

	n := s.buf.Append(samples)
	s.metrics.samplesAccepted(v, n)
	return s.Status(), nil
}

// Sync waits until every sample accepted so far has reached the test, or the
// session has finished
func (s *Session) Sync(ctx context.Context) (Status, error) {
	target := s.buf.Appended()
	for {
		s.mu.RLock()
		caughtUp := s.processed >= target || s.status.Done
		changed := s.changed
		s.mu.RUnlock()

		if caughtUp {
			return s.Status(), nil
		}

		select {
		case <-changed:
		case <-s.exited:
			return s.Status(), nil
		case <-ctx.Done():
			return Status{}, ctx.Err()
		}
	}
}

// end stops the worker and drops queued samples. Safe to call repeatedly.
func (s *Session) end() {
	s.endOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.buf.Close()
	})
}

// wait blocks until the worker has exited
func (s *Session) wait() {
	<-s.exited
}
