// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/danielhkuo/quickly-audit/auth"
)

// Registry maps session tokens to running audits. Its lock covers only the
// map; each session guards its own state.
type Registry struct {
	logger   *slog.Logger
	metrics  *Metrics
	clock    clockwork.Clock
	newToken func() (string, error)

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// Opt configures a Registry
type Opt func(*Registry)

func WithLogger(logger *slog.Logger) Opt {
	return func(r *Registry) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) Opt {
	return func(r *Registry) {
		r.metrics = m
	}
}

func WithClock(clock clockwork.Clock) Opt {
	return func(r *Registry) {
		r.clock = clock
	}
}

// WithTokenSource replaces the random session token generator
func WithTokenSource(f func() (string, error)) Opt {
	return func(r *Registry) {
		r.newToken = f
	}
}

// NewRegistry returns an empty registry. opts override the logger, clock,
// metrics and token source.
func NewRegistry(opts ...Opt) *Registry {
	r := &Registry{
		logger:   slog.Default(),
		clock:    clockwork.NewRealClock(),
		newToken: auth.GenerateSessionToken,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Created is the result of starting a session
type Created struct {
	Token               string
	Request             SampleRequest
	EstimatedSampleSize int
	Status              Status
}

// Create validates the configuration, starts the session's worker and
// returns the first sample request
func (r *Registry) Create(ctx context.Context, v Variant, tally Tally, cfg Config) (Created, error) {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return Created{}, ErrRegistryClosed
	}

	test, err := NewTest(v, tally, cfg)
	if err != nil {
		return Created{}, err
	}
	token, err := r.newToken()
	if err != nil {
		return Created{}, fmt.Errorf("create session: %w", err)
	}

	logger := r.logger.With("session", auth.Fingerprint(token), "variant", string(v))
	s := newSession(token, test, r.clock, logger, r.metrics)
	if err := s.start(ctx); err != nil {
		return Created{}, fmt.Errorf("start session: %w", err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		s.end()
		return Created{}, ErrRegistryClosed
	}
	if _, dup := r.sessions[token]; dup {
		r.mu.Unlock()
		s.end()
		return Created{}, fmt.Errorf("create session: token collision")
	}
	r.sessions[token] = s
	r.mu.Unlock()

	r.metrics.sessionCreated(v)
	st := s.Status()
	logger.Info("Audit session created",
		"estimated_sample_size", st.EstimatedSampleSize,
		"first_request", st.State.Decision.Request.Count)

	return Created{
		Token:               token,
		Request:             st.State.Decision.Request,
		EstimatedSampleSize: st.EstimatedSampleSize,
		Status:              st,
	}, nil
}

// Get looks up a live session
func (r *Registry) Get(token string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Submit validates and queues samples for the session's worker
func (r *Registry) Submit(ctx context.Context, token string, v Variant, samples []Sample) (Status, error) {
	s, err := r.Get(token)
	if err != nil {
		return Status{}, err
	}
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}
	return s.Submit(v, samples)
}

// Sync waits until the session's worker has processed every accepted sample
func (r *Registry) Sync(ctx context.Context, token string) (Status, error) {
	s, err := r.Get(token)
	if err != nil {
		return Status{}, err
	}
	return s.Sync(ctx)
}

// Status returns the session's status. A finished session is removed once
// its verdict has been read.
func (r *Registry) Status(token string) (Status, error) {
	s, err := r.Get(token)
	if err != nil {
		return Status{}, err
	}

	st := s.Status()
	if st.Done {
		r.remove(token, s)
	}
	return st, nil
}

// End stops and removes a session. Ending an unknown session is not an error.
func (r *Registry) End(token string) {
	s, err := r.Get(token)
	if err != nil {
		return
	}
	r.remove(token, s)
}

// remove deletes s if it is still registered under token and stops it
func (r *Registry) remove(token string, s *Session) {
	r.mu.Lock()
	current, ok := r.sessions[token]
	if ok && current == s {
		delete(r.sessions, token)
	}
	r.mu.Unlock()

	if ok && current == s {
		s.end()
		r.metrics.sessionRemoved(s.Variant())
		s.logger.Info("Audit session ended")
	}
}

// Len is the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close ends every session and waits for their workers. Later calls to
// Create fail with ErrRegistryClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.end()
		r.metrics.sessionRemoved(s.Variant())
	}
	for _, s := range sessions {
		s.wait()
	}
	r.logger.Info("Audit registry closed", "sessions", len(sessions))
}
