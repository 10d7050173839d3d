// Package staking tracks the roll distribution of every cycle.
package staking

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"massa-api/logger"
	"massa-api/models"
	"massa-api/repository"
	"massa-api/timeslots"
)

// distribution maps a cycle to the roll counts held during it. A published
// distribution is never modified; writers replace it.
type distribution map[uint64]map[models.Address]uint64

// Registry is safe for concurrent use. Reads are lock-free.
type Registry struct {
	clock timeslots.Clock
	repo  repository.Repository
	now   func() time.Time

	writeMux sync.Mutex
	current  atomic.Pointer[distribution]
}

// NewRegistry creates an empty registry. repo may be nil.
func NewRegistry(clock timeslots.Clock, repo repository.Repository) *Registry {
	r := &Registry{clock: clock, repo: repo, now: time.Now}
	empty := distribution{}
	r.current.Store(&empty)
	return r
}

// WithNow overrides the wall clock, for tests
func (r *Registry) WithNow(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Load replays the persisted roll counts
func (r *Registry) Load() error {
	if r.repo == nil {
		return nil
	}
	entries, err := r.repo.GetAllRolls()
	if err != nil {
		return fmt.Errorf("load rolls: %w", err)
	}

	r.writeMux.Lock()
	defer r.writeMux.Unlock()

	next := r.cloneLocked()
	for _, e := range entries {
		next.set(e.Cycle, e.Address, e.Rolls)
	}
	r.current.Store(&next)

	logger.Logger.Info("Rolls loaded", zap.Int("entries", len(entries)))
	return nil
}

// SetRolls records the roll count of addr for a cycle. Zero clears the entry.
func (r *Registry) SetRolls(cycle uint64, addr models.Address, rolls uint64) error {
	if err := addr.Validate(); err != nil {
		return err
	}

	r.writeMux.Lock()
	defer r.writeMux.Unlock()

	if r.repo != nil {
		if err := r.repo.PutRolls(repository.RollEntry{Cycle: cycle, Address: addr, Rolls: rolls}); err != nil {
			return fmt.Errorf("persist rolls: %w", err)
		}
	}
	next := r.cloneLocked()
	next.set(cycle, addr, rolls)
	r.current.Store(&next)

	logger.Logger.Debug("Rolls updated",
		zap.Uint64("cycle", cycle),
		zap.String("address", string(addr)),
		zap.Uint64("rolls", rolls))
	return nil
}

// RollsAt returns the distribution of a cycle, or of the newest earlier cycle
// with known rolls. Addresses without rolls are omitted.
func (r *Registry) RollsAt(cycle uint64) map[models.Address]uint64 {
	dist := *r.current.Load()
	found, ok := uint64(0), false
	for c := range dist {
		if c <= cycle && (!ok || c > found) {
			found, ok = c, true
		}
	}
	out := make(map[models.Address]uint64)
	if !ok {
		return out
	}
	for addr, rolls := range dist[found] {
		out[addr] = rolls
	}
	return out
}

// CurrentRolls returns the distribution of the cycle of the current slot.
// Before genesis it is the distribution of cycle 0.
func (r *Registry) CurrentRolls() map[models.Address]uint64 {
	slot, _ := r.clock.CurrentSlot(r.now())
	return r.RollsAt(r.clock.CycleOf(slot))
}

func (r *Registry) cloneLocked() distribution {
	cur := *r.current.Load()
	next := make(distribution, len(cur)+1)
	for c, rolls := range cur {
		next[c] = rolls
	}
	return next
}

// set replaces the map of one cycle so readers of the previous distribution are unaffected
func (d distribution) set(cycle uint64, addr models.Address, rolls uint64) {
	prev := d[cycle]
	cp := make(map[models.Address]uint64, len(prev)+1)
	for a, n := range prev {
		cp[a] = n
	}
	if rolls == 0 {
		delete(cp, addr)
	} else {
		cp[addr] = rolls
	}
	d[cycle] = cp
}
