package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sysaura/internal/logger"
	"sysaura/internal/models"
)

// Aggregator composes full snapshots from a Sampler and records one history
// sample per kind for every successful read.
type Aggregator struct {
	sampler Sampler
	history *History
	log     logger.Logger
	now     func() time.Time
}

// NewAggregator wires a sampler to the history rings it feeds.
func NewAggregator(sampler Sampler, history *History, log logger.Logger) *Aggregator {
	if history == nil {
		history = NewHistory(DefaultHistorySize)
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Aggregator{
		sampler: sampler,
		history: history,
		log:     log,
		now:     time.Now,
	}
}

// History returns the rings owned by this aggregator.
func (a *Aggregator) History() *History {
	return a.history
}

// CPUInfo samples the CPU and records it in the CPU ring.
func (a *Aggregator) CPUInfo(ctx context.Context) (*models.CPUInfo, error) {
	info, err := a.sampler.CPU(ctx)
	if err != nil {
		return nil, err
	}
	info.History = a.history.pushScalar(models.KindCPU, a.now(), info.Usage)
	return info, nil
}

// MemoryInfo samples memory and records it in the memory ring.
func (a *Aggregator) MemoryInfo(ctx context.Context) (*models.MemoryInfo, error) {
	info, err := a.sampler.Memory(ctx)
	if err != nil {
		return nil, err
	}
	info.History = a.history.pushScalar(models.KindMemory, a.now(), info.UsedPercentage)
	return info, nil
}

// DiskInfo samples every mount and records the average in the disk ring.
func (a *Aggregator) DiskInfo(ctx context.Context) (*models.DiskInfo, error) {
	info, err := a.sampler.Disk(ctx)
	if err != nil {
		return nil, err
	}
	info.AverageUsage = AverageDiskUsage(info.Disks)
	info.History = a.history.pushScalar(models.KindDisk, a.now(), info.AverageUsage)
	return info, nil
}

// NetworkInfo samples interface throughput and records the totals.
func (a *Aggregator) NetworkInfo(ctx context.Context) (*models.NetworkInfo, error) {
	info, err := a.sampler.Network(ctx)
	if err != nil {
		return nil, err
	}
	info.History = a.history.pushNetwork(a.now(), info.TotalIncoming, info.TotalOutgoing)
	return info, nil
}

// KindInfo dispatches to the per-kind getter.
func (a *Aggregator) KindInfo(ctx context.Context, kind models.Kind) (interface{}, error) {
	var (
		info interface{}
		err  error
	)
	switch kind {
	case models.KindCPU:
		info, err = a.CPUInfo(ctx)
	case models.KindMemory:
		info, err = a.MemoryInfo(ctx)
	case models.KindDisk:
		info, err = a.DiskInfo(ctx)
	case models.KindNetwork:
		info, err = a.NetworkInfo(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown metric kind %q", ErrInvalidInput, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSamplerFailure, kind, err)
	}
	return info, nil
}

// BuildSnapshot samples all four kinds concurrently. A kind that fails is left
// out of the snapshot; only the failure of every kind is an error.
func (a *Aggregator) BuildSnapshot(ctx context.Context) (*models.Snapshot, error) {
	var (
		wg      sync.WaitGroup
		cpuInfo *models.CPUInfo
		memInfo *models.MemoryInfo
		dskInfo *models.DiskInfo
		netInfo *models.NetworkInfo
		errs    [4]error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		cpuInfo, errs[0] = a.CPUInfo(ctx)
	}()
	go func() {
		defer wg.Done()
		memInfo, errs[1] = a.MemoryInfo(ctx)
	}()
	go func() {
		defer wg.Done()
		dskInfo, errs[2] = a.DiskInfo(ctx)
	}()
	go func() {
		defer wg.Done()
		netInfo, errs[3] = a.NetworkInfo(ctx)
	}()
	wg.Wait()

	snap := &models.Snapshot{Timestamp: a.now()}
	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			snap.Unavailable = append(snap.Unavailable, models.Kinds[i])
			a.log.Warn("sampling %s failed: %v", models.Kinds[i], err)
		}
	}
	if failed == len(errs) {
		return nil, fmt.Errorf("%w: %v", ErrSamplerFailure, errs[0])
	}

	if cpuInfo != nil {
		snap.CPUInfo = cpuInfo
		snap.CPUUsage = cpuInfo.Usage
	}
	if memInfo != nil {
		snap.MemoryInfo = memInfo
		snap.MemoryUsage = memInfo.UsedPercentage
		snap.MemoryTotal = memInfo.Total
	}
	if dskInfo != nil {
		snap.DiskInfo = dskInfo
		snap.DiskUsage = dskInfo.AverageUsage
		for _, d := range dskInfo.Disks {
			snap.DiskTotal += d.Size
		}
		snap.DiskTotal = round2(snap.DiskTotal)
	}
	if netInfo != nil {
		snap.NetworkInfo = netInfo
		snap.NetworkIncoming = netInfo.TotalIncoming
		snap.NetworkOutgoing = netInfo.TotalOutgoing
	}

	snap.Summary = Summarize(snap)
	return snap, nil
}

// Summarize computes the derived totals of a snapshot from its detail blocks.
func Summarize(s *models.Snapshot) models.Summary {
	var sum models.Summary

	if s.CPUInfo != nil {
		cores := s.CPUInfo.Cores
		if cores < 1 {
			cores = 1
		}
		sum.AverageCoreUsage = round2(s.CPUUsage / float64(cores))
	}

	if s.MemoryInfo != nil {
		sum.MemoryFreeGB = round2(s.MemoryInfo.Total - s.MemoryInfo.Used)
	}

	if s.DiskInfo != nil {
		for _, d := range s.DiskInfo.Disks {
			sum.TotalDiskSize += d.Size
			sum.TotalDiskUsed += d.Used
		}
		sum.TotalDiskSize = round2(sum.TotalDiskSize)
		sum.TotalDiskUsed = round2(sum.TotalDiskUsed)
		sum.TotalDiskFree = round2(sum.TotalDiskSize - sum.TotalDiskUsed)
		if sum.TotalDiskSize > 0 {
			sum.TotalDiskUsagePercent = round2(sum.TotalDiskUsed / sum.TotalDiskSize * 100)
		}
	}

	if s.NetworkInfo != nil {
		sum.TotalNetworkTraffic = round2(s.NetworkIncoming + s.NetworkOutgoing)
	}

	return sum
}
