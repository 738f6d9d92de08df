package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"sysaura/internal/logger"
	"sysaura/internal/models"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

const (
	GB = 1024 * 1024 * 1024
	MB = 1024 * 1024
)

// Sampler reads raw resource counters for one metric kind per call. Calls for
// different kinds may run concurrently and fail independently.
type Sampler interface {
	CPU(ctx context.Context) (*models.CPUInfo, error)
	Memory(ctx context.Context) (*models.MemoryInfo, error)
	Disk(ctx context.Context) (*models.DiskInfo, error)
	Network(ctx context.Context) (*models.NetworkInfo, error)
}

// MountUsage is the raw byte usage of one mounted filesystem.
type MountUsage struct {
	Mount string
	FS    string
	Total uint64
	Used  uint64
}

// HostSampler samples the local machine through gopsutil.
type HostSampler struct {
	log logger.Logger

	mu       sync.Mutex
	lastNet  map[string]net.IOCountersStat
	lastTime time.Time
	now      func() time.Time
}

// NewHostSampler creates a sampler for the machine running the collector.
func NewHostSampler(log logger.Logger) *HostSampler {
	if log == nil {
		log = logger.Noop()
	}
	return &HostSampler{
		log:     log,
		lastNet: make(map[string]net.IOCountersStat),
		now:     time.Now,
	}
}

// CPU returns overall and per-core load percentages plus model metadata
func (s *HostSampler) CPU(ctx context.Context) (*models.CPUInfo, error) {
	percentage, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("cpu percent: %w", err)
	}
	if len(percentage) == 0 {
		return nil, fmt.Errorf("cpu percent: no data")
	}

	perCore, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		s.log.Warn("could not get per-core CPU usage: %v", err)
		perCore = nil
	}

	info := &models.CPUInfo{
		Usage:    math.Round(percentage[0]),
		CoreData: make([]models.CoreLoad, 0, len(perCore)),
	}
	for i, load := range perCore {
		info.CoreData = append(info.CoreData, models.CoreLoad{Core: i, Load: math.Round(load)})
	}

	if stats, err := cpu.InfoWithContext(ctx); err == nil && len(stats) > 0 {
		info.Model = stats[0].ModelName
		info.Speed = stats[0].Mhz
	} else if err != nil {
		s.log.Warn("could not get CPU info: %v", err)
	}

	if cores, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.Cores = cores
	} else {
		s.log.Warn("could not get CPU core count: %v", err)
	}
	if physical, err := cpu.CountsWithContext(ctx, false); err == nil {
		info.PhysicalCores = physical
	}

	return info, nil
}

// Memory returns memory usage in GiB
func (s *HostSampler) Memory(ctx context.Context) (*models.MemoryInfo, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}
	info := ComputeMemoryInfo(vm.Total, vm.Used, vm.Free)
	return &info, nil
}

// Disk returns usage for every physical partition
func (s *HostSampler) Disk(ctx context.Context) (*models.DiskInfo, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("disk partitions: %w", err)
	}

	mounts := make([]MountUsage, 0, len(partitions))
	for _, partition := range partitions {
		usage, err := disk.UsageWithContext(ctx, partition.Mountpoint)
		if err != nil {
			s.log.Warn("could not get disk usage for %s: %v", partition.Mountpoint, err)
			continue
		}
		mounts = append(mounts, MountUsage{
			Mount: partition.Mountpoint,
			FS:    partition.Fstype,
			Total: usage.Total,
			Used:  usage.Used,
		})
	}

	info := ComputeDiskInfo(mounts)
	return &info, nil
}

// Network returns per-interface throughput since the previous call. The first
// call has nothing to compare against and reports zero rates.
func (s *HostSampler) Network(ctx context.Context) (*models.NetworkInfo, error) {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("network counters: %w", err)
	}

	details := make(map[string]net.InterfaceStat)
	if ifaces, err := net.InterfacesWithContext(ctx); err == nil {
		for _, iface := range ifaces {
			details[iface.Name] = iface
		}
	} else {
		s.log.Debug("could not list interfaces: %v", err)
	}

	s.mu.Lock()
	now := s.now()
	elapsed := 0.0
	if !s.lastTime.IsZero() {
		elapsed = now.Sub(s.lastTime).Seconds()
	}
	prev := s.lastNet
	s.lastNet = make(map[string]net.IOCountersStat, len(counters))
	for _, c := range counters {
		s.lastNet[c.Name] = c
	}
	s.lastTime = now
	s.mu.Unlock()

	info := &models.NetworkInfo{Interfaces: make([]models.NetworkInterface, 0, len(counters))}
	for _, c := range counters {
		iface := models.NetworkInterface{Name: c.Name}
		if d, ok := details[c.Name]; ok {
			iface.MAC = d.HardwareAddr
			iface.OperState = operState(d.Flags)
			if len(d.Addrs) > 0 {
				iface.IP = d.Addrs[0].Addr
			}
		}
		if p, ok := prev[c.Name]; ok {
			iface.Incoming = ByteRate(p.BytesRecv, c.BytesRecv, elapsed)
			iface.Outgoing = ByteRate(p.BytesSent, c.BytesSent, elapsed)
		}
		info.Interfaces = append(info.Interfaces, iface)
		info.TotalIncoming += iface.Incoming
		info.TotalOutgoing += iface.Outgoing
	}
	info.TotalIncoming = round2(info.TotalIncoming)
	info.TotalOutgoing = round2(info.TotalOutgoing)

	return info, nil
}

func operState(flags []string) string {
	for _, f := range flags {
		if f == "up" {
			return "up"
		}
	}
	return "down"
}

// ByteRate converts a counter delta over elapsed seconds into MiB/s rounded to
// two decimals. Counter resets and zero intervals yield 0.
func ByteRate(prev, curr uint64, elapsed float64) float64 {
	if elapsed <= 0 || curr < prev {
		return 0
	}
	return round2(float64(curr-prev) / elapsed / MB)
}

// ComputeMemoryInfo derives GiB figures and the used percentage from bytes.
func ComputeMemoryInfo(total, used, free uint64) models.MemoryInfo {
	info := models.MemoryInfo{
		Total: round2(float64(total) / GB),
		Used:  round2(float64(used) / GB),
		Free:  round2(float64(free) / GB),
	}
	if total > 0 {
		info.UsedPercentage = math.Round(float64(used) / float64(total) * 100)
	}
	return info
}

// ComputeDiskInfo derives per-mount percentages and their rounded mean.
func ComputeDiskInfo(mounts []MountUsage) models.DiskInfo {
	info := models.DiskInfo{Disks: make([]models.Disk, 0, len(mounts))}
	for _, m := range mounts {
		d := models.Disk{
			Name: m.Mount,
			FS:   m.FS,
			Size: round2(float64(m.Total) / GB),
			Used: round2(float64(m.Used) / GB),
		}
		if m.Total > 0 {
			d.UsedPercentage = math.Round(float64(m.Used) / float64(m.Total) * 100)
		}
		info.Disks = append(info.Disks, d)
	}
	info.AverageUsage = AverageDiskUsage(info.Disks)
	return info
}

// AverageDiskUsage is the rounded mean of per-mount percentages, or 0 without mounts.
func AverageDiskUsage(disks []models.Disk) float64 {
	if len(disks) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range disks {
		sum += d.UsedPercentage
	}
	return math.Round(sum / float64(len(disks)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
