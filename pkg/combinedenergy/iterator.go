package combinedenergy

import (
	"context"
	"time"

	"github.com/timsavage/combined-energy-api/pkg/log"
)

// API is the slice of the client the readings iterator consumes. It is
// satisfied by *CombinedEnergy.
type API interface {
	Readings(ctx context.Context, rangeStart, rangeEnd time.Time, increment int) (*Readings, error)
	StartLogSession(ctx context.Context) (bool, error)
}

var _ API = (*CombinedEnergy)(nil)

// defaultLogSessionResetCount is how many consecutive empty reading windows
// are read as the log session having silently expired.
const defaultLogSessionResetCount = 3

// ReadingsIterator polls for new reading windows, advancing its cursor to
// the end of each returned range so successive calls never re-fetch samples.
//
// The service stops delivering readings once its log session goes idle, so
// the iterator starts a log session before the first poll and restarts it
// whenever the last few polls all came back empty. The sequence is unbounded
// and carries no pacing of its own; callers insert their own delay between
// calls to Next.
type ReadingsIterator struct {
	api          API
	increment    int
	initialDelta time.Duration
	now          func() time.Time

	started bool
	lastEnd time.Time
	empty   []bool
}

// IteratorOption configures a ReadingsIterator.
type IteratorOption func(*ReadingsIterator)

// WithInitialDelta sets how far back the first poll's window reaches. Without
// it the first window start is left to the server.
func WithInitialDelta(d time.Duration) IteratorOption {
	return func(it *ReadingsIterator) { it.initialDelta = d }
}

// WithLogSessionResetCount overrides how many consecutive empty responses
// trigger a log session restart (default 3).
func WithLogSessionResetCount(n int) IteratorOption {
	return func(it *ReadingsIterator) { it.empty = make([]bool, n) }
}

// WithIteratorClock overrides the time source used to compute the initial
// lookback window.
func WithIteratorClock(now func() time.Time) IteratorOption {
	return func(it *ReadingsIterator) { it.now = now }
}

// NewReadingsIterator returns an iterator that fetches windows sampled every
// increment seconds from api.
func NewReadingsIterator(api API, increment int, opts ...IteratorOption) *ReadingsIterator {
	it := &ReadingsIterator{
		api:       api,
		increment: increment,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(it)
	}
	if it.empty == nil {
		it.empty = make([]bool, defaultLogSessionResetCount)
	}
	return it
}

// NextRangeStart reports where the next poll's window will start: the end of
// the previous window, otherwise now less the initial delta, otherwise the
// zero time (window start left to the server).
func (it *ReadingsIterator) NextRangeStart() time.Time {
	if !it.lastEnd.IsZero() {
		return it.lastEnd
	}
	if it.initialDelta > 0 {
		return it.now().Add(-it.initialDelta)
	}
	return time.Time{}
}

func (it *ReadingsIterator) allEmpty() bool {
	for _, empty := range it.empty {
		if !empty {
			return false
		}
	}
	return true
}

func (it *ReadingsIterator) push(empty bool) {
	copy(it.empty, it.empty[1:])
	it.empty[len(it.empty)-1] = empty
}

// Next fetches the next reading window. On the first call it starts a log
// session unconditionally; on later calls it restarts the session whenever
// every recent poll returned zero samples. The result of the log session
// call itself is ignored.
func (it *ReadingsIterator) Next(ctx context.Context) (*Readings, error) {
	if !it.started {
		// No log session is presumed live at start and the service will not
		// emit readings without one.
		if _, err := it.api.StartLogSession(ctx); err != nil {
			return nil, err
		}
		it.started = true
	} else if it.allEmpty() {
		log.Ctx(ctx).Info("log session expired, restarting")
		if _, err := it.api.StartLogSession(ctx); err != nil {
			return nil, err
		}
	}

	readings, err := it.api.Readings(ctx, it.NextRangeStart(), time.Time{}, it.increment)
	if err != nil {
		return nil, err
	}

	it.push(readings.RangeCount == 0)
	it.lastEnd = readings.RangeEnd.Time
	return readings, nil
}
