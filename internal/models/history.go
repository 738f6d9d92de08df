package models

import "time"

// MetricSample is a single point in time for a scalar metric
type MetricSample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"usage"`
}

// NetworkSample stores both traffic directions for one point in time
type NetworkSample struct {
	Timestamp time.Time `json:"timestamp"`
	Incoming  float64   `json:"incoming"`
	Outgoing  float64   `json:"outgoing"`
}
