package worker

import (
	"context"
	"log"
	"time"

	"github.com/trade-assistant/internal/service"
)

// MonitorWorker periodically sweeps all active positions, refreshing live
// prices and auto-closing positions whose stop-loss or target has been hit
type MonitorWorker struct {
	monitorService *service.MonitorService
	interval       time.Duration
	stopChan       chan struct{}
}

// NewMonitorWorker creates a new position monitor worker
func NewMonitorWorker(monitorService *service.MonitorService, interval time.Duration) *MonitorWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &MonitorWorker{
		monitorService: monitorService,
		interval:       interval,
		stopChan:       make(chan struct{}),
	}
}

// Start begins the monitoring loop
func (w *MonitorWorker) Start() {
	log.Printf("Position monitor started with interval: %v", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.stopChan:
			log.Println("Position monitor stopped")
			return
		}
	}
}

// Stop stops the monitoring loop
func (w *MonitorWorker) Stop() {
	close(w.stopChan)
}

func (w *MonitorWorker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()

	report, err := w.monitorService.SweepAll(ctx)
	if err != nil {
		log.Printf("Position monitor: sweep failed: %v", err)
		return
	}

	if report.Checked > 0 {
		log.Printf("Position monitor: checked=%d updated=%d closed=%d skipped=%d",
			report.Checked, report.Updated, len(report.Closed), len(report.SkippedSymbols))
	}
}
