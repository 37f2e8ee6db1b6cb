package retry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBudget_NilBudget(t *testing.T) {
	t.Parallel()

	var budget *Budget

	assert.True(t, budget.sendOK(false, time.Now()), "nil budget should always allow")
	assert.True(t, budget.sendOK(true, time.Now()), "nil budget should always allow")
}

func TestBudget_InitialCallsAlwaysAllowed(t *testing.T) {
	t.Parallel()

	budget := &Budget{
		Rate:  10.0,
		Ratio: 0.1,
	}

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := range 100 {
		assert.True(t, budget.sendOK(false, now.Add(time.Duration(i)*time.Millisecond)))
	}
}

func TestBudget_RetriesLimitedWhenOverloaded(t *testing.T) {
	t.Parallel()

	budget := &Budget{
		Rate:  5.0,
		Ratio: 0.1,
	}

	now := time.Date(2024, 1, 1, 12, 0, 0, 500000000, time.UTC)

	for range 20 {
		budget.sendOK(false, now)
	}

	allowed := 0

	for range 10 {
		if budget.sendOK(true, now) {
			allowed++
		}
	}

	// 20 first attempts in half a second is 40/s; retries stop once they pass 4/s.
	assert.Equal(t, 3, allowed)
}

func TestBudget_NotEnforcedBelowRate(t *testing.T) {
	t.Parallel()

	budget := &Budget{
		Rate:  100.0,
		Ratio: 0.1,
	}

	now := time.Date(2024, 1, 1, 12, 0, 0, 500000000, time.UTC)

	assert.True(t, budget.sendOK(false, now))

	for range 10 {
		assert.True(t, budget.sendOK(true, now))
	}
}

func TestBudget_Window(t *testing.T) {
	t.Parallel()

	budget := &Budget{Rate: 1, Ratio: 0.1, Window: 10 * time.Second}
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := range 20 {
		budget.sendOK(false, now.Add(time.Duration(i)*100*time.Millisecond))
	}

	overloaded := now.Add(2 * time.Second)
	assert.True(t, budget.sendOK(true, overloaded))
	assert.False(t, budget.sendOK(true, overloaded.Add(500*time.Millisecond)),
		"2 retries/s against 8 first attempts/s is over the 10% ratio")

	// Once the burst slides out of the window the budget is no longer enforced.
	quiet := now.Add(30 * time.Second)
	assert.True(t, budget.sendOK(true, quiet))
	assert.True(t, budget.sendOK(true, quiet))
}

func TestRateWindow_AddAndRate(t *testing.T) {
	t.Parallel()

	w := newRateWindow(time.Minute, time.Second)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	w.add(now, 10)
	w.add(now.Add(500*time.Millisecond), 5)
	w.add(now.Add(1*time.Second), 3)

	assert.InDelta(t, 18.0, w.rate(now.Add(1*time.Second)), 0.01)
}

func TestRateWindow_Empty(t *testing.T) {
	t.Parallel()

	w := newRateWindow(time.Minute, time.Second)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Zero(t, w.rate(now))

	w.add(now, 4)
	assert.Zero(t, w.rate(now), "no time has passed since the first bucket started")
}

func TestRateWindow_BackwardTimeIgnored(t *testing.T) {
	t.Parallel()

	w := newRateWindow(time.Minute, time.Second)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	w.add(now, 10)
	w.add(now.Add(-1*time.Second), 5)

	assert.InDelta(t, 10.0, w.rate(now.Add(time.Second)), 0.01, "events in the past should be ignored")
	assert.True(t, math.IsNaN(w.rate(now.Add(-time.Second))))
}

func TestRateWindow_SlotsAreReused(t *testing.T) {
	t.Parallel()

	w := newRateWindow(5*time.Second, time.Second)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		w.add(now.Add(time.Duration(i)*time.Second), 10)
	}

	// Second 5 lands in the slot of second 0, which drops out of the window.
	w.add(now.Add(5*time.Second), 1)

	assert.InDelta(t, 41.0/5.0, w.rate(now.Add(5*time.Second)), 0.01)
}

func TestRateWindow_LargeTimeGap(t *testing.T) {
	t.Parallel()

	w := newRateWindow(time.Minute, time.Second)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	w.add(now, 10)
	w.add(now.Add(120*time.Second), 5)

	rate := w.rate(now.Add(120 * time.Second))
	assert.InDelta(t, 5.0/60.0, rate, 0.001, "only the recent event is inside the window")
}
