package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sysaura/internal/logger"
	"sysaura/internal/models"
)

// MetricsRecorder persists metric rows and target status. The store package implements it.
type MetricsRecorder interface {
	SaveMetrics(ctx context.Context, row models.MetricsRow) (models.MetricsRow, error)
	MetricsHistory(ctx context.Context, targetID string, limit, offset int) ([]models.MetricsRow, error)
	MarkOnline(ctx context.Context, targetID string, at time.Time) error
	Target(ctx context.Context, targetID string) (models.Target, error)
}

// Distributor runs the refresh pipeline: sample, persist, evaluate, push.
type Distributor struct {
	aggregator *Aggregator
	evaluator  *Evaluator
	alerts     *AlertStore
	registry   *Registry
	hub        *WebSocketHub
	recorder   MetricsRecorder
	log        logger.Logger
	now        func() time.Time

	pollMu   sync.Mutex
	stopPoll context.CancelFunc
	pollDone chan struct{}
}

// DistributorDeps groups the collaborators of a Distributor.
type DistributorDeps struct {
	Aggregator *Aggregator
	Evaluator  *Evaluator
	Alerts     *AlertStore
	Registry   *Registry
	Hub        *WebSocketHub
	Recorder   MetricsRecorder // optional
	Log        logger.Logger
}

// NewDistributor wires the pipeline together.
func NewDistributor(deps DistributorDeps) *Distributor {
	if deps.Log == nil {
		deps.Log = logger.Noop()
	}
	return &Distributor{
		aggregator: deps.Aggregator,
		evaluator:  deps.Evaluator,
		alerts:     deps.Alerts,
		registry:   deps.Registry,
		hub:        deps.Hub,
		recorder:   deps.Recorder,
		log:        deps.Log,
		now:        time.Now,
	}
}

// Refresh builds a snapshot for targetID and pushes it to the target's
// subscribers. Remote targets are sampled on the collector host, so every
// target currently reports local readings. Persistence and alert failures
// are logged and do not fail the refresh.
func (d *Distributor) Refresh(ctx context.Context, targetID string) (*models.Snapshot, error) {
	if targetID == "" {
		targetID = models.LocalTargetID
	}

	snap, err := d.aggregator.BuildSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	if d.recorder != nil {
		if _, err := d.recorder.SaveMetrics(ctx, models.RowFromSnapshot(targetID, snap)); err != nil {
			d.log.Error("could not persist metrics for %s: %v", targetID, err)
		}
	}

	if d.evaluator != nil && d.alerts != nil {
		raised := d.evaluator.Evaluate(snap, targetID)
		if len(raised) > 0 {
			added, err := d.alerts.Add(ctx, raised...)
			if err != nil {
				d.log.Error("could not store alerts for %s: %v", targetID, err)
			}
			for _, a := range added {
				d.log.Info("%s alert for %s: %s", a.Severity, targetID, a.Title)
			}
		}
	}

	d.Publish(targetID, snap)
	return snap, nil
}

// Publish pushes one metrics message to every subscriber of targetID. Every
// subscriber receives the same message and timestamp.
func (d *Distributor) Publish(targetID string, snap *models.Snapshot) int {
	if d.registry == nil || d.hub == nil {
		return 0
	}
	subscribers := d.registry.SubscribersOf(targetID)
	if len(subscribers) == 0 {
		return 0
	}
	msg := WebSocketMessage{
		Type:      MsgMetrics,
		Timestamp: snap.Timestamp,
		SystemID:  targetID,
		Data:      snap,
	}
	delivered := d.hub.Deliver(subscribers, msg)
	if delivered < len(subscribers) {
		d.log.Warn("metrics for %s reached %d of %d subscribers", targetID, delivered, len(subscribers))
	}
	return delivered
}

// Ingest stores externally reported metrics for a known target and evaluates
// them against the cpu, memory and disk thresholds.
func (d *Distributor) Ingest(ctx context.Context, targetID string, in models.MetricsInput) (models.MetricsRow, []models.Alert, error) {
	if in.CPUUsage == nil || in.MemoryUsage == nil || in.DiskUsage == nil {
		return models.MetricsRow{}, nil, fmt.Errorf("%w: cpuUsage, memoryUsage and diskUsage are required", ErrInvalidInput)
	}
	if d.recorder == nil {
		return models.MetricsRow{}, nil, fmt.Errorf("metrics persistence is not configured")
	}
	if _, err := d.recorder.Target(ctx, targetID); err != nil {
		return models.MetricsRow{}, nil, err
	}

	now := d.now()
	if err := d.recorder.MarkOnline(ctx, targetID, now); err != nil {
		d.log.Warn("could not mark %s online: %v", targetID, err)
	}

	row, err := d.recorder.SaveMetrics(ctx, models.MetricsRow{
		TargetID:        targetID,
		Timestamp:       now,
		CPUUsage:        *in.CPUUsage,
		MemoryUsage:     *in.MemoryUsage,
		MemoryTotal:     in.MemoryTotal,
		DiskUsage:       *in.DiskUsage,
		DiskTotal:       in.DiskTotal,
		NetworkIncoming: in.NetworkIncoming,
		NetworkOutgoing: in.NetworkOutgoing,
	})
	if err != nil {
		return models.MetricsRow{}, nil, fmt.Errorf("save metrics: %w", err)
	}

	var added []models.Alert
	if d.evaluator != nil && d.alerts != nil {
		raised := d.evaluator.EvaluateInput(targetID, *in.CPUUsage, *in.MemoryUsage, *in.DiskUsage)
		added, err = d.alerts.Add(ctx, raised...)
		if err != nil {
			d.log.Error("could not store alerts for %s: %v", targetID, err)
		}
	}
	return row, added, nil
}

// History returns persisted rows for targetID, newest first.
func (d *Distributor) History(ctx context.Context, targetID string, limit, offset int) ([]models.MetricsRow, error) {
	if d.recorder == nil {
		return []models.MetricsRow{}, nil
	}
	return d.recorder.MetricsHistory(ctx, targetID, limit, offset)
}

// StartPolling refreshes every subscribed target on each tick until ctx is
// cancelled or StopPolling is called. Calling it while already polling is a no-op.
func (d *Distributor) StartPolling(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	d.pollMu.Lock()
	defer d.pollMu.Unlock()
	if d.stopPoll != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.stopPoll = cancel
	d.pollDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		d.log.Info("polling subscribed targets every %s", interval)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.pollOnce(ctx)
			}
		}
	}()
}

func (d *Distributor) pollOnce(ctx context.Context) {
	if d.registry == nil {
		return
	}
	for _, targetID := range d.registry.Targets() {
		if _, err := d.Refresh(ctx, targetID); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.log.Warn("scheduled refresh of %s failed: %v", targetID, err)
		}
	}
}

// StopPolling stops the poller and waits for it to exit.
func (d *Distributor) StopPolling() {
	d.pollMu.Lock()
	cancel, done := d.stopPoll, d.pollDone
	d.stopPoll, d.pollDone = nil, nil
	d.pollMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
