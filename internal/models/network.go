package models

// NetworkInterface represents throughput of one interface in MiB/s
type NetworkInterface struct {
	Name      string  `json:"name"`
	IP        string  `json:"ip"`
	MAC       string  `json:"mac"`
	OperState string  `json:"operstate"`
	Incoming  float64 `json:"incoming"`
	Outgoing  float64 `json:"outgoing"`
}

// NetworkInfo sums throughput across interfaces
type NetworkInfo struct {
	Interfaces    []NetworkInterface `json:"interfaces"`
	TotalIncoming float64            `json:"totalIncoming"`
	TotalOutgoing float64            `json:"totalOutgoing"`
	History       []NetworkSample    `json:"history"`
}
