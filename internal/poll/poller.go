// Package poll drives a cooker session on a fixed cadence and fans the
// resulting snapshots out to subscribers. Link loss is handled here, not in
// the session: on a failed poll the poller closes the session and
// reconnects with exponential backoff.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"anovactl/internal/anova"
)

// Cooker is the slice of the session the poller needs.
type Cooker interface {
	Connect(ctx context.Context) error
	QueryStatus(ctx context.Context) (anova.DeviceStatus, error)
	Close() error
}

// Options configures the polling cadence and reconnect behavior.
type Options struct {
	Interval     time.Duration // polling cadence
	ReconnectMax time.Duration // backoff cap between reconnect attempts
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Interval:     10 * time.Second,
		ReconnectMax: 30 * time.Second,
	}
}

// Poller periodically queries a cooker and publishes each snapshot to all
// subscribers.
type Poller struct {
	cooker Cooker
	opts   Options

	mu   sync.Mutex
	subs []chan anova.DeviceStatus

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a poller for the given cooker.
func New(cooker Cooker, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 30 * time.Second
	}
	return &Poller{cooker: cooker, opts: opts}
}

// Subscribe returns a channel receiving every fresh snapshot. The send is
// non-blocking: a subscriber that falls behind misses ticks rather than
// stalling the poll loop.
func (p *Poller) Subscribe() <-chan anova.DeviceStatus {
	ch := make(chan anova.DeviceStatus, 1)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

// Start launches the poll loop in the background. The first poll happens
// immediately rather than one interval in.
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go p.loop(ctx, done)
}

// Stop cancels the poll loop, waits for it to exit and closes the session.
// Safe to call without a prior Start, and more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.cooker.Close()
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	status, err := p.cooker.QueryStatus(ctx)
	if err == nil {
		p.publish(status)
		return
	}
	if ctx.Err() != nil {
		return
	}

	slog.Warn("[poll] status query failed", "error", err)
	if errors.Is(err, anova.ErrConnection) || errors.Is(err, anova.ErrTimeout) {
		p.reconnect(ctx)
	}
}

// reconnect tears the session down and re-establishes it with exponential
// backoff. Returns once reconnected or when ctx is cancelled.
func (p *Poller) reconnect(ctx context.Context) {
	p.cooker.Close()

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt-1, p.opts.ReconnectMax)
			slog.Info("[poll] reconnect backoff", "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}

		if err := p.cooker.Connect(ctx); err != nil {
			slog.Warn("[poll] reconnect failed", "error", err, "attempt", attempt+1)
			if ctx.Err() != nil {
				return
			}
			continue
		}

		slog.Info("[poll] reconnected")
		return
	}
}

func (p *Poller) publish(status anova.DeviceStatus) {
	p.mu.Lock()
	subs := p.subs
	p.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- status:
		default:
		}
	}
}

// backoffDelay returns the reconnection delay for attempt n, capped at max.
func backoffDelay(attempt int, max time.Duration) time.Duration {
	if attempt > 30 {
		attempt = 30 // avoid shift overflow
	}
	delay := time.Duration(1<<uint(attempt)) * time.Second
	if delay > max {
		return max
	}
	return delay
}
