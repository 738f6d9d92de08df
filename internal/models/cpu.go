package models

// CoreLoad is the load of a single logical core, rounded to an integer percentage.
type CoreLoad struct {
	Core int     `json:"core"`
	Load float64 `json:"load"`
}

// CPUInfo represents CPU usage and architecture information
type CPUInfo struct {
	Model         string         `json:"model"`
	Cores         int            `json:"cores"`
	PhysicalCores int            `json:"physicalCores"`
	Speed         float64        `json:"speed"` // MHz
	Usage         float64        `json:"usage"`
	CoreData      []CoreLoad     `json:"coreData"`
	History       []MetricSample `json:"history"`
}
