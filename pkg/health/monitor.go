package health

import (
	"context"
	"sync"
	"time"

	"github.com/skitterhq/skitter/pkg/log"
)

// Prober performs the single RPC a Monitor needs: ask remote whether it is
// still there. transport.Client.Heartbeat satisfies this.
type Prober interface {
	Heartbeat(ctx context.Context, remote string) error
}

// Monitor watches one remote's liveness by heartbeating it on an interval,
// using this package's failure-hysteresis Status/Config. Once Status
// crosses into unhealthy, onDown fires exactly once and the monitor stops.
type Monitor struct {
	remote string
	prober Prober
	config Config
	onDown func(remote string)

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// DefaultMonitorConfig is the liveness check cadence for cluster peers:
// more aggressive than DefaultConfig since a dead peer
// needs to trigger reconnection/shutdown promptly.
func DefaultMonitorConfig() Config {
	return Config{
		Interval: 2 * time.Second,
		Timeout:  3 * time.Second,
		Retries:  3,
	}
}

// Watch starts monitoring remote in its own goroutine. onDown is called at
// most once, when the remote is declared down; the monitor then exits.
func Watch(prober Prober, remote string, config Config, onDown func(remote string)) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		remote: remote,
		prober: prober,
		config: config,
		onDown: onDown,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go m.run(ctx)
	return m
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	logger := log.WithComponent("health").With().Str("remote", m.remote).Logger()
	status := NewStatus()
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, checkCancel := context.WithTimeout(ctx, m.config.Timeout)
			err := m.prober.Heartbeat(checkCtx, m.remote)
			checkCancel()

			result := Result{CheckedAt: time.Now()}
			if err != nil {
				result.Healthy = false
				result.Message = err.Error()
			} else {
				result.Healthy = true
			}
			wasHealthy := status.Healthy
			status.Update(result, m.config)

			if wasHealthy && !status.Healthy {
				logger.Warn().Int("failures", status.ConsecutiveFailures).Msg("remote declared down")
				m.once.Do(func() {
					if m.onDown != nil {
						m.onDown(m.remote)
					}
				})
				return
			}
		}
	}
}

// Stop ends the monitor goroutine without firing onDown. Used when a
// remote disconnects cleanly rather than timing out.
func (m *Monitor) Stop() {
	m.cancel()
	<-m.done
}
