package models

// Disk represents usage of a single mounted filesystem
type Disk struct {
	Name           string  `json:"name"`
	FS             string  `json:"fs"`
	Size           float64 `json:"size"` // GiB
	Used           float64 `json:"used"` // GiB
	UsedPercentage float64 `json:"usedPercentage"`
}

// DiskInfo aggregates all mounts; AverageUsage is the rounded mean of their percentages
type DiskInfo struct {
	Disks        []Disk         `json:"disks"`
	AverageUsage float64        `json:"averageUsage"`
	History      []MetricSample `json:"history"`
}
