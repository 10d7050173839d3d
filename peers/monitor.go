// Package peers samples how many configured peers are reachable.
package peers

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"massa-api/logger"
	"massa-api/metrics"
)

// Monitor periodically dials every configured peer. Readers only see the
// result of the latest completed probe round and never wait on network I/O.
type Monitor struct {
	peers       []string
	interval    time.Duration
	dialTimeout time.Duration

	count atomic.Int64 // -1 until the first round completes
}

func NewMonitor(peers []string, interval, dialTimeout time.Duration) *Monitor {
	m := &Monitor{
		peers:       append([]string(nil), peers...),
		interval:    interval,
		dialTimeout: dialTimeout,
	}
	m.count.Store(-1)
	return m
}

// PeerCount returns the number of reachable peers and false when no probe has completed yet
func (m *Monitor) PeerCount() (int, bool) {
	n := m.count.Load()
	if n < 0 {
		return 0, false
	}
	return int(n), true
}

// Run probes until ctx is cancelled
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.probe(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	var (
		wg        sync.WaitGroup
		reachable atomic.Int64
	)
	dialer := net.Dialer{Timeout: m.dialTimeout}
	for _, addr := range m.peers {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			conn, err := dialer.DialContext(ctx, "tcp", addr)
			if err != nil {
				logger.Logger.Debug("Peer unreachable", zap.String("peer", addr), zap.Error(err))
				return
			}
			conn.Close()
			reachable.Add(1)
		}(addr)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return
	}
	n := reachable.Load()
	if prev := m.count.Swap(n); prev != n {
		logger.Logger.Info("Connected peers changed", zap.Int64("from", prev), zap.Int64("to", n))
	}
	metrics.ConnectedPeers.Set(float64(n))
}
