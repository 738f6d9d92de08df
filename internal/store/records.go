package store

import (
	"time"

	"sysaura/internal/models"
)

// User is an account known to the collector. Credential management lives
// outside the collector; only the id and role are read here.
type User struct {
	ID           string `gorm:"primaryKey;size:64"`
	Email        string `gorm:"uniqueIndex;size:255"`
	PasswordHash string `gorm:"size:255"`
	Role         string `gorm:"size:16;not null;default:user"`
	CreatedAt    time.Time
}

func (User) TableName() string { return "users" }

type systemRecord struct {
	ID            string `gorm:"primaryKey;size:64"`
	Name          string `gorm:"size:255;not null"`
	IPAddress     string `gorm:"column:ip_address;size:64"`
	Status        string `gorm:"size:16;not null;default:offline"`
	LastConnected *time.Time
	UserID        string `gorm:"size:64;index"`
	CreatedAt     time.Time
}

func (systemRecord) TableName() string { return "systems" }

func (r systemRecord) toModel() models.Target {
	return models.Target{
		ID:            r.ID,
		Name:          r.Name,
		Address:       r.IPAddress,
		Status:        r.Status,
		OwnerID:       r.UserID,
		LastConnected: r.LastConnected,
	}
}

type metricsRecord struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	SystemID        string    `gorm:"size:64;not null;index:idx_metrics_system_time,priority:1"`
	Timestamp       time.Time `gorm:"not null;index:idx_metrics_system_time,priority:2"`
	CPUUsage        float64
	MemoryUsage     float64
	MemoryTotal     float64
	DiskUsage       float64
	DiskTotal       float64
	NetworkIncoming float64
	NetworkOutgoing float64
}

func (metricsRecord) TableName() string { return "metrics" }

func metricsFromModel(row models.MetricsRow) metricsRecord {
	return metricsRecord{
		ID:              row.ID,
		SystemID:        row.TargetID,
		Timestamp:       row.Timestamp,
		CPUUsage:        row.CPUUsage,
		MemoryUsage:     row.MemoryUsage,
		MemoryTotal:     row.MemoryTotal,
		DiskUsage:       row.DiskUsage,
		DiskTotal:       row.DiskTotal,
		NetworkIncoming: row.NetworkIncoming,
		NetworkOutgoing: row.NetworkOutgoing,
	}
}

func (r metricsRecord) toModel() models.MetricsRow {
	return models.MetricsRow{
		ID:              r.ID,
		TargetID:        r.SystemID,
		Timestamp:       r.Timestamp,
		CPUUsage:        r.CPUUsage,
		MemoryUsage:     r.MemoryUsage,
		MemoryTotal:     r.MemoryTotal,
		DiskUsage:       r.DiskUsage,
		DiskTotal:       r.DiskTotal,
		NetworkIncoming: r.NetworkIncoming,
		NetworkOutgoing: r.NetworkOutgoing,
	}
}

type alertRecord struct {
	ID             string `gorm:"primaryKey;size:64"`
	SystemID       string `gorm:"size:64;not null;index"`
	Title          string `gorm:"size:255;not null"`
	Message        string `gorm:"type:text"`
	Severity       string `gorm:"size:16;not null"`
	Category       string `gorm:"size:16;not null"`
	Source         string `gorm:"size:255"`
	Status         string `gorm:"size:16;not null;index"`
	Value          float64
	Threshold      float64
	Timestamp      time.Time `gorm:"not null;index"`
	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
}

func (alertRecord) TableName() string { return "alerts" }

func alertFromModel(a models.Alert) alertRecord {
	return alertRecord{
		ID:             a.ID,
		SystemID:       a.TargetID,
		Title:          a.Title,
		Message:        a.Message,
		Severity:       string(a.Severity),
		Category:       string(a.Category),
		Source:         a.Source,
		Status:         string(a.Status),
		Value:          a.Value,
		Threshold:      a.Threshold,
		Timestamp:      a.CreatedAt,
		AcknowledgedAt: a.AcknowledgedAt,
		ResolvedAt:     a.ResolvedAt,
	}
}

func (r alertRecord) toModel() models.Alert {
	return models.Alert{
		ID:             r.ID,
		TargetID:       r.SystemID,
		Title:          r.Title,
		Message:        r.Message,
		Severity:       models.Severity(r.Severity),
		Category:       models.Kind(r.Category),
		Source:         r.Source,
		Status:         models.AlertStatus(r.Status),
		CreatedAt:      r.Timestamp,
		AcknowledgedAt: r.AcknowledgedAt,
		ResolvedAt:     r.ResolvedAt,
		Value:          r.Value,
		Threshold:      r.Threshold,
	}
}
