package models

import "fmt"

// Slot is the (period, thread) coordinate of a block production opportunity
type Slot struct {
	Period uint64 `json:"period"`
	Thread uint8  `json:"thread"`
}

// Compare orders slots by period, then thread
func (s Slot) Compare(other Slot) int {
	switch {
	case s.Period < other.Period:
		return -1
	case s.Period > other.Period:
		return 1
	case s.Thread < other.Thread:
		return -1
	case s.Thread > other.Thread:
		return 1
	}
	return 0
}

func (s Slot) Less(other Slot) bool {
	return s.Compare(other) < 0
}

func (s Slot) String() string {
	return fmt.Sprintf("(period: %d, thread: %d)", s.Period, s.Thread)
}
