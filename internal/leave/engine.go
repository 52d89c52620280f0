// Package leave implements the leave-request lifecycle: admission,
// capacity accounting, expiry timers, completion and escalation.
package leave

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"izin-bot/internal/clock"
	"izin-bot/internal/metrics"
	"izin-bot/internal/model"
)

// Escalator is told about every leave that expires while still active.
type Escalator interface {
	Notify(ctx context.Context, req model.LeaveRequest) Report
}

// EscalatorFunc adapts a function to the Escalator interface.
type EscalatorFunc func(ctx context.Context, req model.LeaveRequest) Report

func (f EscalatorFunc) Notify(ctx context.Context, req model.LeaveRequest) Report {
	return f(ctx, req)
}

// Recorder receives every resolved leave. Failures are logged and
// never affect engine state.
type Recorder interface {
	Record(ctx context.Context, req model.LeaveRequest) error
}

// CompletionResult is returned by Complete.
type CompletionResult struct {
	Request  model.LeaveRequest
	Lateness time.Duration // zero when completed on time
}

// Late reports whether the member returned after the leave expired.
func (r CompletionResult) Late() bool {
	return r.Request.Status == model.LeaveStatusCompletedLate
}

// Engine owns the request store and capacity manager. All mutations for a
// group run under that group's lock; escalation and recording run after
// the lock is released.
type Engine struct {
	registry  *Registry
	store     *RequestStore
	capacity  *CapacityManager
	clock     clock.Clock
	escalator Escalator
	recorder  Recorder
	logger    zerolog.Logger
	baseCtx   context.Context
	newID     func() string

	mu     sync.Mutex
	groups map[string]*sync.Mutex
	closed atomic.Bool
}

type Option func(*Engine)

func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithContext sets the context used by timer-driven work (escalation and
// recording of expired leaves).
func WithContext(ctx context.Context) Option {
	return func(e *Engine) { e.baseCtx = ctx }
}

func NewEngine(registry *Registry, escalator Escalator, opts ...Option) *Engine {
	e := &Engine{
		registry:  registry,
		store:     NewRequestStore(),
		capacity:  NewCapacityManager(),
		clock:     clock.Real(),
		escalator: escalator,
		logger:    zerolog.Nop(),
		baseCtx:   context.Background(),
		newID:     uuid.NewString,
		groups:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the category registry the engine admits against.
func (e *Engine) Registry() *Registry { return e.registry }

// Store returns the engine's request store for read-only use.
func (e *Engine) Store() *RequestStore { return e.store }

// Capacity returns the engine's capacity manager for read-only use.
func (e *Engine) Capacity() *CapacityManager { return e.capacity }

func (e *Engine) groupLock(groupID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.groups[groupID]
	if !ok {
		l = &sync.Mutex{}
		e.groups[groupID] = l
	}
	return l
}

// Admit starts a leave for memberID and schedules its expiry.
func (e *Engine) Admit(ctx context.Context, groupID, memberID, categoryName string, routing model.Routing) (model.LeaveRequest, error) {
	category, ok := e.registry.Lookup(categoryName)
	if !ok {
		metrics.RecordReject("unknown", "unknown_category")
		return model.LeaveRequest{}, ErrUnknownCategory
	}

	lock := e.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	if e.closed.Load() {
		return model.LeaveRequest{}, ErrClosed
	}
	if e.store.lookup(groupID, memberID) != nil {
		metrics.RecordReject(category.Name, "already_active")
		return model.LeaveRequest{}, ErrAlreadyActive
	}
	if !e.capacity.TryAdmit(groupID, category, memberID) {
		metrics.RecordReject(category.Name, "capacity_exhausted")
		return model.LeaveRequest{}, &CapacityError{
			Category: category.Name,
			Capacity: category.Capacity,
			Holders:  e.capacity.Holders(groupID, category),
		}
	}

	now := e.clock.Now()
	ent := &entry{req: model.LeaveRequest{
		ID:        e.newID(),
		GroupID:   groupID,
		MemberID:  memberID,
		Routing:   routing,
		Category:  category,
		StartedAt: now,
		ExpiresAt: now.Add(category.Duration),
		Status:    model.LeaveStatusActive,
	}}
	e.store.put(ent)

	id := ent.req.ID
	ent.timer = e.clock.AfterFunc(category.Duration, func() {
		e.onTimeout(groupID, memberID, id)
	})

	metrics.RecordAdmit(category.Name)
	e.logger.Info().
		Str("group_id", groupID).
		Str("member_id", memberID).
		Str("category", category.Name).
		Time("expires_at", ent.req.ExpiresAt).
		Msg("leave admitted")
	return ent.req, nil
}

// Complete records the member's return. Only the leave holder may complete.
func (e *Engine) Complete(ctx context.Context, groupID, memberID, requesterID string) (CompletionResult, error) {
	if requesterID != memberID {
		return CompletionResult{}, ErrNotAuthorized
	}

	lock := e.groupLock(groupID)
	lock.Lock()
	ent := e.detachLocked(groupID, memberID)
	if ent == nil {
		lock.Unlock()
		return CompletionResult{}, ErrNoActiveRequest
	}

	now := e.clock.Now()
	req := ent.req
	req.ResolvedAt = &now
	if now.After(req.ExpiresAt) {
		req.Status = model.LeaveStatusCompletedLate
		req.Lateness = now.Sub(req.ExpiresAt)
	} else {
		req.Status = model.LeaveStatusCompletedOnTime
	}
	lock.Unlock()

	e.resolved(ctx, req)
	return CompletionResult{Request: req, Lateness: req.Lateness}, nil
}

// Cancel withdraws the member's active leave and returns it. The boolean
// reports whether one existed.
func (e *Engine) Cancel(ctx context.Context, groupID, memberID string) (model.LeaveRequest, bool) {
	lock := e.groupLock(groupID)
	lock.Lock()
	ent := e.detachLocked(groupID, memberID)
	if ent == nil {
		lock.Unlock()
		return model.LeaveRequest{}, false
	}
	now := e.clock.Now()
	req := ent.req
	req.Status = model.LeaveStatusCancelled
	req.ResolvedAt = &now
	lock.Unlock()

	e.resolved(ctx, req)
	return req, true
}

// detachLocked stops the timer, releases capacity and removes the record.
// The caller must hold the group lock. A timer callback already waiting on
// the lock will find no record and do nothing.
func (e *Engine) detachLocked(groupID, memberID string) *entry {
	ent := e.store.lookup(groupID, memberID)
	if ent == nil {
		return nil
	}
	ent.timer.Stop()
	e.capacity.Release(groupID, ent.req.Category, memberID)
	e.store.remove(groupID, memberID)
	return ent
}

func (e *Engine) onTimeout(groupID, memberID, requestID string) {
	lock := e.groupLock(groupID)
	lock.Lock()
	ent := e.store.lookup(groupID, memberID)
	if e.closed.Load() || ent == nil || ent.req.ID != requestID {
		lock.Unlock()
		return
	}
	e.capacity.Release(groupID, ent.req.Category, memberID)
	e.store.remove(groupID, memberID)

	now := e.clock.Now()
	req := ent.req
	req.Status = model.LeaveStatusExpired
	req.ResolvedAt = &now
	lock.Unlock()

	e.resolved(e.baseCtx, req)
	e.escalate(req)
}

func (e *Engine) escalate(req model.LeaveRequest) {
	if e.escalator == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Interface("panic", r).
				Str("group_id", req.GroupID).
				Str("member_id", req.MemberID).
				Msg("escalation panicked")
		}
	}()

	report := e.escalator.Notify(e.baseCtx, req)
	e.logger.Info().
		Str("group_id", req.GroupID).
		Str("member_id", req.MemberID).
		Str("category", req.Category.Name).
		Int("overseers", report.Overseers).
		Int("delivered", report.Delivered).
		Msg("leave expired")
}

func (e *Engine) resolved(ctx context.Context, req model.LeaveRequest) {
	metrics.RecordResolved(req.Category.Name, string(req.Status))
	e.logger.Debug().
		Str("group_id", req.GroupID).
		Str("member_id", req.MemberID).
		Str("status", string(req.Status)).
		Dur("lateness", req.Lateness).
		Msg("leave resolved")

	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(ctx, req); err != nil {
		e.logger.Warn().Err(err).
			Str("group_id", req.GroupID).
			Str("member_id", req.MemberID).
			Msg("record leave history")
	}
}

// Close stops every pending expiry timer and refuses further admissions.
// Active records are left in place and never expire; a timer callback
// already waiting on a group lock finds the engine closed and does nothing.
func (e *Engine) Close() {
	e.closed.Store(true)
	for _, ent := range e.store.all() {
		lock := e.groupLock(ent.req.GroupID)
		lock.Lock()
		ent.timer.Stop()
		lock.Unlock()
	}
}
