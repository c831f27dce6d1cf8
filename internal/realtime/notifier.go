// Package realtime turns backend change events into coalesced "something changed" callbacks.
package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/civicdesk/triage-service/internal/observability"
)

// ChangeEvent describes a change on the reports collection. It carries no report data.
type ChangeEvent struct {
	Source   string
	Op       string
	ReportID string
}

// Source produces change events until ctx is cancelled or the connection fails.
type Source interface {
	Name() string
	Listen(ctx context.Context, emit func(ChangeEvent)) error
}

// Options tunes a Notifier.
type Options struct {
	// MinInterval is the minimum gap between two callbacks of one subscriber.
	MinInterval time.Duration
	// RetryBackoff is the first delay before restarting a failed source. It doubles up to MaxBackoff.
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
}

// Notifier fans change events out to subscribers.
type Notifier struct {
	opts    Options
	logger  *zap.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool
}

type subscriber struct {
	reportID string
	onChange func()
	pending  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	limiter  *rate.Limiter
}

// NewNotifier builds a notifier. A nil logger discards logs.
func NewNotifier(opts Options, logger *zap.Logger, metrics *observability.Metrics) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.RetryBackoff {
		opts.MaxBackoff = 30 * time.Second
	}
	return &Notifier{
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		subs:    make(map[uint64]*subscriber),
	}
}

// Subscribe registers onChange for every change. The returned function ends the subscription;
// it may be called any number of times, including after Close.
func (n *Notifier) Subscribe(onChange func()) (unsubscribe func()) {
	return n.subscribe("", onChange)
}

// SubscribeReport registers onChange for changes of one report. Events without a report id
// also fire, since they may concern any report.
func (n *Notifier) SubscribeReport(reportID string, onChange func()) (unsubscribe func()) {
	return n.subscribe(reportID, onChange)
}

func (n *Notifier) subscribe(reportID string, onChange func()) func() {
	if onChange == nil {
		return func() {}
	}
	sub := &subscriber{
		reportID: reportID,
		onChange: onChange,
		pending:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	if n.opts.MinInterval > 0 {
		sub.limiter = rate.NewLimiter(rate.Every(n.opts.MinInterval), 1)
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return func() {}
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = sub
	n.mu.Unlock()

	go n.deliver(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			sub.stop()
		})
	}
}

// Notify signals every matching subscriber. A subscriber with a signal already pending
// absorbs the new one; its next callback runs after this event either way.
func (n *Notifier) Notify(event ChangeEvent) {
	n.metrics.RecordNotification(event.Source)

	n.mu.Lock()
	targets := make([]*subscriber, 0, len(n.subs))
	for _, sub := range n.subs {
		if sub.reportID == "" || event.ReportID == "" || sub.reportID == event.ReportID {
			targets = append(targets, sub)
		}
	}
	n.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.pending <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// Close ends every subscription. Later subscriptions are inert.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	subs := n.subs
	n.subs = make(map[uint64]*subscriber)
	n.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

// Run feeds events from sources into the notifier until ctx is cancelled. A failing source
// is restarted with exponential backoff.
func (n *Notifier) Run(ctx context.Context, sources ...Source) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			n.runSource(gctx, src)
			return nil
		})
	}
	return g.Wait()
}

func (n *Notifier) runSource(ctx context.Context, src Source) {
	backoff := n.opts.RetryBackoff
	for {
		started := time.Now()
		err := src.Listen(ctx, n.Notify)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) > n.opts.MaxBackoff {
			backoff = n.opts.RetryBackoff
		}
		n.logger.Warn("realtime source stopped; restarting",
			zap.String("source", src.Name()),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff *= 2
		if backoff > n.opts.MaxBackoff {
			backoff = n.opts.MaxBackoff
		}
	}
}

func (n *Notifier) deliver(sub *subscriber) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sub.done
		cancel()
	}()

	for {
		select {
		case <-sub.done:
			return
		case <-sub.pending:
		}
		if sub.limiter != nil {
			if err := sub.limiter.Wait(ctx); err != nil {
				return
			}
		}
		select {
		case <-sub.done:
			return
		default:
		}
		n.invoke(sub)
	}
}

func (n *Notifier) invoke(sub *subscriber) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("realtime subscriber panicked", zap.Any("panic", r))
		}
	}()
	sub.onChange()
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}
