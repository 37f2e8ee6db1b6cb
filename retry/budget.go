package retry

import (
	"math"
	"sync"
	"time"
)

const (
	defaultBudgetWindow = time.Minute
	budgetBucket        = time.Second
)

// Budget limits retries across many runs that share it. It tracks the rate of
// first attempts and of retries over a sliding window and refuses a retry once
// first attempts arrive faster than Rate and retries make up more than Ratio
// of them. A refused retry ends the run with ErrExhausted.
//
// Time comes from the clock of the run using the budget (see WithClock), so a
// budget shared by runs on a fake clock is deterministic.
//
// The zero value is not useful; set Rate and Ratio. A nil *Budget never refuses.
type Budget struct {
	// Rate is the first-attempt rate (per second) above which the budget is enforced.
	Rate float64
	// Ratio is the largest allowed share of retries relative to first attempts.
	Ratio float64
	// Window is how far back attempts are counted. Defaults to one minute.
	Window time.Duration

	mu      sync.Mutex
	initial *rateWindow
	retries *rateWindow
}

// sendOK records an attempt made at now and reports whether it may proceed.
// First attempts are always allowed.
func (b *Budget) sendOK(isRetry bool, now time.Time) bool {
	if b == nil {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initial == nil {
		window := b.Window
		if window <= 0 {
			window = defaultBudgetWindow
		}

		b.initial = newRateWindow(window, budgetBucket)
		b.retries = newRateWindow(window, budgetBucket)
	}

	if !isRetry {
		b.initial.add(now, 1)

		return true
	}

	initialRate := b.initial.rate(now)
	if initialRate > b.Rate && b.retries.rate(now)/initialRate > b.Ratio {
		return false
	}

	b.retries.add(now, 1)

	return true
}

// rateWindow counts events in a ring of fixed-size buckets. Each slot
// remembers which bucket it holds, so stale slots are skipped instead of
// being cleared on every tick.
type rateWindow struct {
	bucket time.Duration
	counts []int
	epochs []int64

	start time.Time // start of the first bucket that saw an event
	last  time.Time
}

func newRateWindow(window, bucket time.Duration) *rateWindow {
	n := max(int(window/bucket), 1)

	epochs := make([]int64, n)
	for i := range epochs {
		epochs[i] = math.MinInt64
	}

	return &rateWindow{
		bucket: bucket,
		counts: make([]int, n),
		epochs: epochs,
	}
}

func (w *rateWindow) epoch(t time.Time) int64 {
	return t.UnixNano() / int64(w.bucket)
}

func (w *rateWindow) slot(epoch int64) int {
	n := int64(len(w.counts))

	return int(((epoch % n) + n) % n)
}

// add counts n events at t. Events older than the latest one are dropped.
func (w *rateWindow) add(t time.Time, n int) {
	if t.Before(w.last) {
		return
	}

	e := w.epoch(t)
	i := w.slot(e)

	if w.epochs[i] != e {
		w.epochs[i] = e
		w.counts[i] = 0
	}

	w.counts[i] += n
	w.last = t

	if w.start.IsZero() {
		w.start = time.Unix(0, e*int64(w.bucket))
	}
}

// rate returns events per second over the window ending at t, or NaN if t is
// older than the latest event. The span runs from the start of the first
// bucket that saw an event, capped at the window length; an empty span reads
// as zero.
func (w *rateWindow) rate(t time.Time) float64 {
	if t.Before(w.last) {
		return math.NaN()
	}

	if w.start.IsZero() {
		return 0
	}

	e := w.epoch(t)
	oldest := e - int64(len(w.counts))

	var total int

	for i, held := range w.epochs {
		if held > oldest && held <= e {
			total += w.counts[i]
		}
	}

	span := min(t.Sub(w.start), time.Duration(len(w.counts))*w.bucket)
	if span <= 0 {
		return 0
	}

	return float64(total) / span.Seconds()
}
