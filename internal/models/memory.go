package models

// MemoryInfo represents memory usage in GiB
type MemoryInfo struct {
	Total          float64        `json:"total"`
	Used           float64        `json:"used"`
	Free           float64        `json:"free"`
	UsedPercentage float64        `json:"usedPercentage"`
	History        []MetricSample `json:"history"`
}
