package models

import "time"

// LocalTargetID denotes the machine running the collector.
const LocalTargetID = "local"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Target is a monitored host
type Target struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Address       string     `json:"ipAddress"`
	Status        string     `json:"status"`
	OwnerID       string     `json:"userId"`
	LastConnected *time.Time `json:"lastConnected,omitempty"`
}

// Identity is the authenticated caller of a REST request or socket.
type Identity struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// IsAdmin reports whether the identity sees every target.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Session is the authenticated state of one live connection. It is created once
// at handshake time and never mutated.
type Session struct {
	ID              string
	Identity        Identity
	AuthenticatedAt time.Time
}

// MetricsRow is one persisted snapshot summary
type MetricsRow struct {
	ID              uint      `json:"id"`
	TargetID        string    `json:"systemId"`
	Timestamp       time.Time `json:"timestamp"`
	CPUUsage        float64   `json:"cpuUsage"`
	MemoryUsage     float64   `json:"memoryUsage"`
	MemoryTotal     float64   `json:"memoryTotal"`
	DiskUsage       float64   `json:"diskUsage"`
	DiskTotal       float64   `json:"diskTotal"`
	NetworkIncoming float64   `json:"networkIncoming"`
	NetworkOutgoing float64   `json:"networkOutgoing"`
}

// MetricsInput is an externally reported set of scalar metrics. The three usage
// fields are required.
type MetricsInput struct {
	CPUUsage        *float64 `json:"cpuUsage"`
	MemoryUsage     *float64 `json:"memoryUsage"`
	MemoryTotal     float64  `json:"memoryTotal"`
	DiskUsage       *float64 `json:"diskUsage"`
	DiskTotal       float64  `json:"diskTotal"`
	NetworkIncoming float64  `json:"networkIncoming"`
	NetworkOutgoing float64  `json:"networkOutgoing"`
}

// RowFromSnapshot extracts the persisted scalar fields of a snapshot.
func RowFromSnapshot(targetID string, s *Snapshot) MetricsRow {
	return MetricsRow{
		TargetID:        targetID,
		Timestamp:       s.Timestamp,
		CPUUsage:        s.CPUUsage,
		MemoryUsage:     s.MemoryUsage,
		MemoryTotal:     s.MemoryTotal,
		DiskUsage:       s.DiskUsage,
		DiskTotal:       s.DiskTotal,
		NetworkIncoming: s.NetworkIncoming,
		NetworkOutgoing: s.NetworkOutgoing,
	}
}
