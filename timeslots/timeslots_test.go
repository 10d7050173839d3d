package timeslots_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"massa-api/apierr"
	"massa-api/models"
	"massa-api/timeslots"
)

func testClock(t *testing.T) timeslots.Clock {
	clock, err := timeslots.NewClock(1000, 10, 2, 4)
	require.NoError(t, err)
	return clock
}

func TestNewClockRejectsBadParameters(t *testing.T) {
	_, err := timeslots.NewClock(0, 10, 0, 1)
	assert.Error(t, err)
	_, err = timeslots.NewClock(0, 0, 4, 1)
	assert.Error(t, err)
	_, err = timeslots.NewClock(0, 10, 2, 0)
	assert.Error(t, err)
}

func TestSlotOf(t *testing.T) {
	clock := testClock(t)

	cases := []struct {
		ts   uint64
		want models.Slot
	}{
		{1000, models.Slot{Period: 0, Thread: 0}},
		{1009, models.Slot{Period: 0, Thread: 0}},
		{1010, models.Slot{Period: 0, Thread: 1}},
		{1020, models.Slot{Period: 1, Thread: 0}},
		{1025, models.Slot{Period: 1, Thread: 0}},
		{1039, models.Slot{Period: 1, Thread: 1}},
		{1040, models.Slot{Period: 2, Thread: 0}},
	}
	for _, c := range cases {
		got, err := clock.SlotOf(c.ts)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "timestamp %d", c.ts)
	}
}

func TestSlotOfBeforeGenesis(t *testing.T) {
	clock := testClock(t)
	_, err := clock.SlotOf(995)
	require.Error(t, err)
	assert.Equal(t, apierr.KindInvalidTime, apierr.KindOf(err))
}

func TestTimeOf(t *testing.T) {
	clock := testClock(t)
	assert.Equal(t, uint64(1000), clock.TimeOf(models.Slot{}))
	assert.Equal(t, uint64(1010), clock.TimeOf(models.Slot{Period: 0, Thread: 1}))
	assert.Equal(t, uint64(1020), clock.TimeOf(models.Slot{Period: 1, Thread: 0}))
	assert.Equal(t, uint64(1030), clock.TimeOf(models.Slot{Period: 1, Thread: 1}))
}

func TestTimeOfSaturatesPastTimestampLimit(t *testing.T) {
	clock := testClock(t)

	last := models.Slot{Period: clock.MaxPeriod(), Thread: 1}
	assert.True(t, clock.InRange(last))
	assert.Greater(t, clock.TimeOf(last), clock.TimeOf(models.Slot{Period: clock.MaxPeriod()}))
	assert.Less(t, clock.TimeOf(last), uint64(math.MaxUint64))

	beyond := models.Slot{Period: clock.MaxPeriod() + 1}
	assert.False(t, clock.InRange(beyond))
	assert.Equal(t, uint64(math.MaxUint64), clock.TimeOf(beyond))
	assert.Equal(t, uint64(math.MaxUint64), clock.TimeOf(models.Slot{Period: math.MaxUint64 / 5}))

	assert.False(t, clock.InRange(models.Slot{Period: 1, Thread: 2}))
}

func TestSlotOfBracketsTimestamp(t *testing.T) {
	clock, err := timeslots.NewClock(500, 16, 3, 8)
	require.NoError(t, err)

	for ts := uint64(500); ts < 900; ts++ {
		s, err := clock.SlotOf(ts)
		require.NoError(t, err)
		assert.LessOrEqual(t, clock.TimeOf(s), ts)
		assert.Greater(t, clock.TimeOf(clock.NextSlot(s)), ts)
	}
}

func TestTimeOfMonotonic(t *testing.T) {
	clock := testClock(t)
	s := models.Slot{}
	prev := clock.TimeOf(s)
	for i := 0; i < 50; i++ {
		s = clock.NextSlot(s)
		cur := clock.TimeOf(s)
		assert.Greater(t, cur, prev)
		prev = cur
	}
}

func TestSlotAtOrAfter(t *testing.T) {
	clock := testClock(t)

	s, err := clock.SlotAtOrAfter(1020)
	require.NoError(t, err)
	assert.Equal(t, models.Slot{Period: 1, Thread: 0}, s)

	s, err = clock.SlotAtOrAfter(1021)
	require.NoError(t, err)
	assert.Equal(t, models.Slot{Period: 1, Thread: 1}, s)

	s, err = clock.SlotAtOrAfter(1031)
	require.NoError(t, err)
	assert.Equal(t, models.Slot{Period: 2, Thread: 0}, s)
}

func TestCycleAndCurrentSlot(t *testing.T) {
	clock := testClock(t)
	// four periods of two 10ms slots: cycle 1 opens at 1080
	assert.Equal(t, uint64(0), clock.CycleOf(models.Slot{Period: 3}))
	assert.Equal(t, uint64(2), clock.CycleOf(models.Slot{Period: 9, Thread: 1}))

	_, ok := clock.CurrentSlot(time.UnixMilli(999))
	assert.False(t, ok)

	s, ok := clock.CurrentSlot(time.UnixMilli(1057))
	require.True(t, ok)
	assert.Equal(t, models.Slot{Period: 2, Thread: 1}, s)
	assert.Equal(t, models.Slot{Period: 3, Thread: 0}, clock.NextSlotAt(time.UnixMilli(1057)))
}
