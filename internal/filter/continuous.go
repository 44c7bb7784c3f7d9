package filter

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/brianly1003/dirfilter/internal/domain"
	"github.com/brianly1003/dirfilter/internal/domain/events"
	"github.com/brianly1003/dirfilter/internal/domain/ports"
	"github.com/brianly1003/dirfilter/internal/sync"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// PublishPolicy decides whether a finished scan is published.
type PublishPolicy int

const (
	// PublishAlways publishes every scan result, even an unchanged one.
	// Pattern edits use it so the editor always gets an answer.
	PublishAlways PublishPolicy = iota

	// PublishOnChange publishes only when the match set differs from the
	// one before the scan. Tree changes use it, since most file system
	// activity does not affect the matches.
	PublishOnChange
)

func (p PublishPolicy) String() string {
	switch p {
	case PublishAlways:
		return "always"
	case PublishOnChange:
		return "on_change"
	default:
		return "unknown"
	}
}

// Options configures a ContinuousFilter.
type Options struct {
	Matcher MatcherOptions

	// MaxPublishedPaths caps the paths carried by matches_updated events.
	// Zero publishes all of them. Latest always holds the full set.
	MaxPublishedPaths int
}

// ContinuousFilter keeps a FilteredView up to date with pattern edits from a
// Broker and structural changes from a tree source, publishing a
// matches_updated event after each scan.
//
// Lifecycle: Created → Running (Start) → Stopping (Stop, context
// cancellation, broker closure or a failed scan) → Stopped (Start returns).
type ContinuousFilter struct {
	broker      *Broker
	treeChanges <-chan struct{}
	publisher   ports.EventPublisher
	maxPaths    int

	// viewMu serializes scans. It is never held while publishing.
	viewMu sync.Mutex
	view   *FilteredView

	latest   atomic.Pointer[Snapshot]
	started  atomic.Bool
	stopping atomic.Bool
	scanning atomic.Bool

	finished   chan struct{}
	finishOnce sync.Once
	stopped    chan struct{}
}

// NewContinuousFilter creates a filter over source. treeChanges is signalled
// on every structural change of the tree and may be nil when the tree never
// changes. The filter owns broker and closes it on Stop.
func NewContinuousFilter(source TreeSource, treeChanges <-chan struct{}, broker *Broker, publisher ports.EventPublisher, opts Options) *ContinuousFilter {
	return &ContinuousFilter{
		broker:      broker,
		treeChanges: treeChanges,
		publisher:   publisher,
		maxPaths:    opts.MaxPublishedPaths,
		view:        NewFilteredView(source, NewMatcher(opts.Matcher)),
		finished:    make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

// Broker returns the broker patterns are sent to.
func (f *ContinuousFilter) Broker() *Broker {
	return f.broker
}

// Start runs an initial scan, publishes it, then processes pattern and tree
// events until the filter is stopped. It returns after both listeners have
// exited. A failed scan stops the filter and is returned.
func (f *ContinuousFilter) Start(ctx context.Context) error {
	if !f.started.CompareAndSwap(false, true) {
		return domain.ErrAlreadyStarted
	}
	defer close(f.stopped)

	if err := f.scan(events.UpdateReasonInitial, PublishAlways, func(v *FilteredView) error {
		return v.RunFilter()
	}); err != nil {
		f.Stop()
		f.publisher.Publish(events.NewFilterStoppedEvent(err))
		return fmt.Errorf("initial scan: %w", err)
	}

	var g errgroup.Group
	g.Go(f.listenPatterns)
	g.Go(f.listenTree)

	log.Info().Msg("continuous filter started")

	select {
	case <-f.finished:
	case <-ctx.Done():
	}
	f.stopping.Store(true)
	f.Stop()

	err := g.Wait()
	f.publisher.Publish(events.NewFilterStoppedEvent(err))

	if err != nil {
		log.Error().Err(err).Msg("continuous filter stopped after failed scan")
		return err
	}
	log.Info().Msg("continuous filter stopped")
	return nil
}

// Stop signals the filter to stop and closes its broker. Patterns still
// queued are discarded; use StopWhenIdle to finish them first. It is safe to
// call more than once and before Start.
func (f *ContinuousFilter) Stop() {
	f.finishOnce.Do(func() {
		close(f.finished)
	})
	f.broker.Close()
}

// StopWhenIdle waits until every pattern sent so far has been scanned and its
// result published, then stops the filter. The filter must be started or
// stopping, otherwise queued patterns are never picked up.
func (f *ContinuousFilter) StopWhenIdle() {
	f.broker.Drain()
	f.Stop()
}

// SetPattern hands raw to the broker. It returns domain.ErrFilterStopped once
// the filter is stopping.
func (f *ContinuousFilter) SetPattern(raw string) error {
	if f.broker.IsClosed() {
		return domain.ErrFilterStopped
	}
	f.broker.Send(raw)
	return nil
}

// Done returns a channel closed once Start has returned.
func (f *ContinuousFilter) Done() <-chan struct{} {
	return f.stopped
}

// IsProcessing reports whether a pattern edit is waiting, being applied, or a
// tree rescan is in flight.
func (f *ContinuousFilter) IsProcessing() bool {
	return f.broker.Busy() || f.scanning.Load()
}

// Latest returns the most recently published snapshot. ok is false before the
// initial scan completes.
func (f *ContinuousFilter) Latest() (snap Snapshot, ok bool) {
	p := f.latest.Load()
	if p == nil {
		return Snapshot{}, false
	}
	return *p, true
}

// listenPatterns applies every coalesced pattern from the broker.
func (f *ContinuousFilter) listenPatterns() error {
	for !f.stopping.Load() {
		raw, err := f.broker.Recv()
		if err != nil {
			if errors.Is(err, domain.ErrBrokerClosed) {
				log.Debug().Msg("pattern broker closed")
				f.stopping.Store(true)
				f.finishOnce.Do(func() { close(f.finished) })
				return nil
			}
			return err
		}

		f.publisher.Publish(events.NewPatternChangedEvent(raw))

		err = f.scan(events.UpdateReasonPattern, PublishAlways, func(v *FilteredView) error {
			return v.ReFilter(CompilePattern(raw))
		})
		f.broker.Release()
		if err != nil {
			f.Stop()
			return err
		}
	}
	return nil
}

// listenTree rescans after every tree change. A closed change channel ends
// the listener without stopping the filter.
func (f *ContinuousFilter) listenTree() error {
	for !f.stopping.Load() {
		select {
		case <-f.finished:
			return nil
		case _, ok := <-f.treeChanges:
			if !ok {
				log.Debug().Msg("tree change source closed")
				return nil
			}
			err := f.scan(events.UpdateReasonTree, PublishOnChange, func(v *FilteredView) error {
				return v.RunFilter()
			})
			if err != nil {
				f.Stop()
				return err
			}
		}
	}
	return nil
}

// scan runs op on the view under the view lock and publishes the result
// according to policy. On error nothing is published and the view keeps its
// previous state.
func (f *ContinuousFilter) scan(reason events.UpdateReason, policy PublishPolicy, op func(v *FilteredView) error) error {
	start := time.Now()

	f.viewMu.Lock()
	f.scanning.Store(true)
	before := f.view.Matches()
	err := op(f.view)
	var snap Snapshot
	if err == nil {
		snap = f.view.Snapshot()
	}
	f.scanning.Store(false)
	f.viewMu.Unlock()

	if err != nil {
		return err
	}

	publish := policy == PublishAlways || !EqualFiles(before, snap.matches)

	log.Debug().
		Str("reason", string(reason)).
		Str("pattern", snap.Pattern()).
		Int("matches", snap.Len()).
		Str("policy", policy.String()).
		Bool("published", publish).
		Dur("elapsed", time.Since(start)).
		Msg("scan finished")

	if !publish {
		return nil
	}

	f.latest.Store(&snap)
	f.publisher.Publish(events.NewMatchesUpdatedEvent(
		reason,
		snap.Pattern(),
		snap.Paths(f.maxPaths),
		snap.Len(),
		snap.TotalFiles(),
	))
	return nil
}
