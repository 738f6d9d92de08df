package models

import (
	"fmt"
	"time"
)

// Kind names one of the sampled resource families.
type Kind string

const (
	KindCPU     Kind = "cpu"
	KindMemory  Kind = "memory"
	KindDisk    Kind = "disk"
	KindNetwork Kind = "network"
)

// Kinds lists every metric kind in a stable order.
var Kinds = []Kind{KindCPU, KindMemory, KindDisk, KindNetwork}

// ParseKind validates a kind name coming from a URL or message.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown metric kind %q", s)
}

// Summary holds values derived from the detail blocks of a snapshot
type Summary struct {
	AverageCoreUsage      float64 `json:"averageCoreUsage"`
	MemoryFreeGB          float64 `json:"memoryFreeGB"`
	TotalDiskSize         float64 `json:"totalDiskSize"`
	TotalDiskUsed         float64 `json:"totalDiskUsed"`
	TotalDiskFree         float64 `json:"totalDiskFree"`
	TotalDiskUsagePercent float64 `json:"totalDiskUsagePercent"`
	TotalNetworkTraffic   float64 `json:"totalNetworkTraffic"`
}

// Snapshot is one full multi-kind reading. Detail blocks are nil when their
// kind could not be sampled; those kinds are listed in Unavailable.
type Snapshot struct {
	Timestamp       time.Time    `json:"timestamp"`
	CPUUsage        float64      `json:"cpuUsage"`
	MemoryUsage     float64      `json:"memoryUsage"`
	MemoryTotal     float64      `json:"memoryTotal"`
	DiskUsage       float64      `json:"diskUsage"`
	DiskTotal       float64      `json:"diskTotal"`
	NetworkIncoming float64      `json:"networkIncoming"`
	NetworkOutgoing float64      `json:"networkOutgoing"`
	CPUInfo         *CPUInfo     `json:"cpuInfo,omitempty"`
	MemoryInfo      *MemoryInfo  `json:"memoryInfo,omitempty"`
	DiskInfo        *DiskInfo    `json:"diskInfo,omitempty"`
	NetworkInfo     *NetworkInfo `json:"networkInfo,omitempty"`
	Summary         Summary      `json:"summary"`
	Unavailable     []Kind       `json:"unavailable,omitempty"`
}

// Has reports whether the snapshot carries data for kind.
func (s *Snapshot) Has(kind Kind) bool {
	switch kind {
	case KindCPU:
		return s.CPUInfo != nil
	case KindMemory:
		return s.MemoryInfo != nil
	case KindDisk:
		return s.DiskInfo != nil
	case KindNetwork:
		return s.NetworkInfo != nil
	}
	return false
}
