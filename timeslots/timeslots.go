// Package timeslots converts between wall-clock milliseconds and (period, thread) slots.
package timeslots

import (
	"errors"
	"math"
	"time"

	"massa-api/apierr"
	"massa-api/models"
)

// Clock holds the fixed parameters of slot arithmetic. Timestamps are milliseconds since the Unix epoch.
type Clock struct {
	GenesisTime     uint64
	SlotDuration    uint64
	ThreadCount     uint8
	PeriodsPerCycle uint64
}

// NewClock validates the slot parameters
func NewClock(genesisTime, slotDuration uint64, threadCount uint8, periodsPerCycle uint64) (Clock, error) {
	if threadCount == 0 {
		return Clock{}, errors.New("thread count must be positive")
	}
	if slotDuration == 0 {
		return Clock{}, errors.New("slot duration must be positive")
	}
	if periodsPerCycle == 0 {
		return Clock{}, errors.New("periods per cycle must be positive")
	}
	return Clock{
		GenesisTime:     genesisTime,
		SlotDuration:    slotDuration,
		ThreadCount:     threadCount,
		PeriodsPerCycle: periodsPerCycle,
	}, nil
}

// MaxPeriod is the last period whose every slot opens before the uint64 timestamp limit
func (c Clock) MaxPeriod() uint64 {
	last := c.lastSlotIndex()
	if last < uint64(c.ThreadCount-1) {
		return 0
	}
	return (last - uint64(c.ThreadCount-1)) / uint64(c.ThreadCount)
}

// lastSlotIndex is the highest slot index with a representable timestamp
func (c Clock) lastSlotIndex() uint64 {
	return (math.MaxUint64 - c.GenesisTime) / c.SlotDuration
}

// InRange reports whether s names a thread of the clock and a representable period
func (c Clock) InRange(s models.Slot) bool {
	return s.Thread < c.ThreadCount && s.Period <= c.MaxPeriod()
}

// SlotOf returns the latest slot whose timestamp is at or before ts
func (c Clock) SlotOf(ts uint64) (models.Slot, error) {
	if ts < c.GenesisTime {
		return models.Slot{}, apierr.InvalidTime("timestamp %d precedes genesis %d", ts, c.GenesisTime)
	}
	idx := (ts - c.GenesisTime) / c.SlotDuration
	return models.Slot{
		Period: idx / uint64(c.ThreadCount),
		Thread: uint8(idx % uint64(c.ThreadCount)),
	}, nil
}

// TimeOf returns the timestamp at which slot s opens. Slots past the uint64
// timestamp limit saturate at math.MaxUint64.
func (c Clock) TimeOf(s models.Slot) uint64 {
	threads, last := uint64(c.ThreadCount), c.lastSlotIndex()
	if uint64(s.Thread) > last || s.Period > (last-uint64(s.Thread))/threads {
		return math.MaxUint64
	}
	return c.GenesisTime + (s.Period*threads+uint64(s.Thread))*c.SlotDuration
}

// NextSlot returns the slot following s in (period, thread) order
func (c Clock) NextSlot(s models.Slot) models.Slot {
	if s.Thread+1 >= c.ThreadCount {
		return models.Slot{Period: s.Period + 1, Thread: 0}
	}
	return models.Slot{Period: s.Period, Thread: s.Thread + 1}
}

// SlotAtOrAfter returns the first slot whose timestamp is not before ts
func (c Clock) SlotAtOrAfter(ts uint64) (models.Slot, error) {
	s, err := c.SlotOf(ts)
	if err != nil {
		return s, err
	}
	if c.TimeOf(s) < ts {
		s = c.NextSlot(s)
	}
	return s, nil
}

// CycleOf returns the staking cycle containing s
func (c Clock) CycleOf(s models.Slot) uint64 {
	return s.Period / c.PeriodsPerCycle
}

// CurrentSlot is the latest slot opened at now, false before genesis
func (c Clock) CurrentSlot(now time.Time) (models.Slot, bool) {
	s, err := c.SlotOf(Millis(now))
	return s, err == nil
}

// NextSlotAt is the first slot opening strictly after now
func (c Clock) NextSlotAt(now time.Time) models.Slot {
	s, ok := c.CurrentSlot(now)
	if !ok {
		return models.Slot{}
	}
	return c.NextSlot(s)
}

// Millis converts t to milliseconds since the Unix epoch
func Millis(t time.Time) uint64 {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}
	return uint64(ms)
}
