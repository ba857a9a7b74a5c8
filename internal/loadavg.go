package internal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v4/load"
)

var loadAverage = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "powhash_host_load_average",
	Help: "System load average as last sampled",
}, []string{"window"})

// LoadStats is the system load average over one, five and fifteen minutes.
type LoadStats struct {
	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`
}

// LoadAvg samples the system load average in the background. The zero value
// reports zeros until Update succeeds once.
type LoadAvg struct {
	lock sync.RWMutex
	data LoadStats
}

// Run samples every interval until ctx is done.
func (l *LoadAvg) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.Update(ctx)

	for {
		select {
		case <-ticker.C:
			l.Update(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (l *LoadAvg) Update(ctx context.Context) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		slog.Debug("can't get load average", "err", err)
		return
	}

	l.lock.Lock()
	l.data = LoadStats{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}
	l.lock.Unlock()

	loadAverage.WithLabelValues("1m").Set(avg.Load1)
	loadAverage.WithLabelValues("5m").Set(avg.Load5)
	loadAverage.WithLabelValues("15m").Set(avg.Load15)
}

func (l *LoadAvg) Stats() LoadStats {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.data
}
