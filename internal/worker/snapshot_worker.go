package worker

import (
	"context"
	"log"
	"time"

	"github.com/ibkr-relay/internal/service"
)

// SnapshotWorker refreshes the dashboard snapshot on a fixed interval. It
// runs on its own schedule and shares nothing with the signal path beyond
// the read-only accessors the DashboardService polls.
type SnapshotWorker struct {
	dashboard *service.DashboardService
	interval  time.Duration
	stopChan  chan struct{}
}

// NewSnapshotWorker creates a new SnapshotWorker
func NewSnapshotWorker(dashboard *service.DashboardService, interval time.Duration) *SnapshotWorker {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &SnapshotWorker{
		dashboard: dashboard,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the refresh loop, with one immediate refresh up front
func (w *SnapshotWorker) Start() {
	log.Printf("snapshot worker started with interval %v", w.interval)

	w.refresh()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.refresh()
		case <-w.stopChan:
			log.Printf("snapshot worker stopped")
			return
		}
	}
}

// Stop stops the refresh loop
func (w *SnapshotWorker) Stop() {
	close(w.stopChan)
}

func (w *SnapshotWorker) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()

	if err := w.dashboard.Refresh(ctx); err != nil {
		log.Printf("snapshot worker: refresh failed: %v", err)
		return
	}
	log.Printf("snapshot worker: dashboard data refreshed")
}
