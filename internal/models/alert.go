package models

import "time"

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
)

// ParseAlertStatus accepts the three lifecycle states.
func ParseAlertStatus(s string) (AlertStatus, bool) {
	switch AlertStatus(s) {
	case StatusActive, StatusAcknowledged, StatusResolved:
		return AlertStatus(s), true
	}
	return "", false
}

// CanTransition reports whether an alert may move from one status to another.
// Only active→acknowledged, active→resolved and acknowledged→resolved are allowed.
func CanTransition(from, to AlertStatus) bool {
	switch from {
	case StatusActive:
		return to == StatusAcknowledged || to == StatusResolved
	case StatusAcknowledged:
		return to == StatusResolved
	}
	return false
}

// Alert is a threshold crossing for one target
type Alert struct {
	ID             string      `json:"id"`
	TargetID       string      `json:"systemId"`
	Title          string      `json:"title"`
	Message        string      `json:"message"`
	Severity       Severity    `json:"severity"`
	Category       Kind        `json:"category"`
	Source         string      `json:"source"`
	Status         AlertStatus `json:"status"`
	CreatedAt      time.Time   `json:"timestamp"`
	AcknowledgedAt *time.Time  `json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time  `json:"resolvedAt,omitempty"`
	Value          float64     `json:"value"`
	Threshold      float64     `json:"threshold"`
}
