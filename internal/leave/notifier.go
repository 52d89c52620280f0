package leave

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"izin-bot/internal/clock"
	"izin-bot/internal/metrics"
	"izin-bot/internal/model"
)

// RosterProvider resolves the overseers of a group.
type RosterProvider interface {
	OverseersOf(ctx context.Context, groupID string) ([]string, error)
}

// Sink delivers a message to one overseer.
type Sink interface {
	Deliver(ctx context.Context, overseerID, text string) error
}

// MessageFunc renders the escalation text for an expired leave.
type MessageFunc func(ctx context.Context, req model.LeaveRequest, notifiedAt time.Time) string

// Report summarises one escalation attempt.
type Report struct {
	Overseers int
	Delivered int
	Err       error   // lookup failure; nil when the roster resolved
	Failures  []error // one *DeliveryError per failed overseer
}

// Notifier fans an expired leave out to the group's overseers. It never
// retries and never returns an error to the engine.
type Notifier struct {
	roster      RosterProvider
	sink        Sink
	format      MessageFunc
	clock       clock.Clock
	logger      zerolog.Logger
	timeout     time.Duration
	concurrency int
}

type NotifierOption func(*Notifier)

func WithMessageFunc(f MessageFunc) NotifierOption {
	return func(n *Notifier) { n.format = f }
}

func WithNotifierClock(c clock.Clock) NotifierOption {
	return func(n *Notifier) { n.clock = c }
}

func WithNotifierLogger(l zerolog.Logger) NotifierOption {
	return func(n *Notifier) { n.logger = l }
}

// WithTimeout bounds the whole escalation (lookup plus deliveries).
func WithTimeout(d time.Duration) NotifierOption {
	return func(n *Notifier) { n.timeout = d }
}

// WithConcurrency limits parallel deliveries. Values below 1 mean 1.
func WithConcurrency(limit int) NotifierOption {
	return func(n *Notifier) { n.concurrency = limit }
}

func NewNotifier(roster RosterProvider, sink Sink, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		roster:      roster,
		sink:        sink,
		format:      DefaultMessage,
		clock:       clock.Real(),
		logger:      zerolog.Nop(),
		timeout:     30 * time.Second,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.concurrency < 1 {
		n.concurrency = 1
	}
	return n
}

// DefaultMessage is the untranslated escalation text.
func DefaultMessage(_ context.Context, req model.LeaveRequest, notifiedAt time.Time) string {
	return fmt.Sprintf("⚠️ %s has not returned from %s leave (%s, expired %s).",
		req.MemberName(), req.Category.DisplayName(), req.Category.Duration, notifiedAt.Format(time.Kitchen))
}

func (n *Notifier) Notify(ctx context.Context, req model.LeaveRequest) Report {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	logger := n.logger.With().
		Str("group_id", req.GroupID).
		Str("member_id", req.MemberID).
		Logger()

	overseers, err := n.roster.OverseersOf(ctx, req.GroupID)
	if err != nil {
		metrics.RecordDelivery("lookup_failed")
		logger.Warn().Err(err).Msg("resolve overseers; escalation dropped")
		return Report{Err: err}
	}

	text := n.format(ctx, req, n.clock.Now())
	report := Report{Overseers: len(overseers)}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(n.concurrency)
	for _, id := range overseers {
		g.Go(func() error {
			err := n.deliver(ctx, id, text)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.RecordDelivery("delivery_failed")
				logger.Warn().Err(err).Str("overseer_id", id).Msg("escalation delivery failed")
				report.Failures = append(report.Failures, err)
				return nil
			}
			metrics.RecordDelivery("delivered")
			report.Delivered++
			return nil
		})
	}
	_ = g.Wait()
	return report
}

func (n *Notifier) deliver(ctx context.Context, overseerID, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DeliveryError{OverseerID: overseerID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := n.sink.Deliver(ctx, overseerID, text); err != nil {
		return &DeliveryError{OverseerID: overseerID, Err: err}
	}
	return nil
}
