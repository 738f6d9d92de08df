package services

import (
	"fmt"
	"math"
	"time"

	"sysaura/internal/models"

	"github.com/google/uuid"
)

// Level is a warning/critical cutoff pair. A value at or above a cutoff crosses it.
type Level struct {
	Warning  float64 `mapstructure:"warning" yaml:"warning"`
	Critical float64 `mapstructure:"critical" yaml:"critical"`
}

// Thresholds is the cutoff table used by the Evaluator.
type Thresholds struct {
	CPU     Level `mapstructure:"cpu" yaml:"cpu"`
	Memory  Level `mapstructure:"memory" yaml:"memory"`
	Disk    Level `mapstructure:"disk" yaml:"disk"`
	Network Level `mapstructure:"network" yaml:"network"`
}

// DefaultThresholds returns the 80/90 table for every category.
func DefaultThresholds() Thresholds {
	l := Level{Warning: 80, Critical: 90}
	return Thresholds{CPU: l, Memory: l, Disk: l, Network: l}
}

// DefaultNetworkScale maps MiB/s onto the 0-100 range used for network thresholds.
const DefaultNetworkScale = 10

// SourceAggregate marks a disk alert raised from the average of all mounts.
const SourceAggregate = "aggregate"

// Evaluator turns snapshots into threshold alerts.
type Evaluator struct {
	thresholds   Thresholds
	networkScale float64
	now          func() time.Time
	newID        func() string
}

// NewEvaluator creates an evaluator. A non-positive networkScale uses the default.
func NewEvaluator(thresholds Thresholds, networkScale float64) *Evaluator {
	if networkScale <= 0 {
		networkScale = DefaultNetworkScale
	}
	return &Evaluator{
		thresholds:   thresholds,
		networkScale: networkScale,
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
	}
}

// Thresholds returns the table in use.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

// NormalizedNetworkUsage scales the busier traffic direction into 0-100.
func (e *Evaluator) NormalizedNetworkUsage(incoming, outgoing float64) float64 {
	return math.Min(math.Max(incoming, outgoing)*e.networkScale, 100)
}

// Evaluate returns the alerts raised by s for targetID. Each category (and each
// disk mount) yields at most one alert: critical wins over warning.
func (e *Evaluator) Evaluate(s *models.Snapshot, targetID string) []models.Alert {
	if s == nil {
		return nil
	}
	var alerts []models.Alert

	if s.Has(models.KindCPU) {
		if a, ok := e.check(targetID, models.KindCPU, "cpu", "CPU", s.CPUUsage, e.thresholds.CPU); ok {
			alerts = append(alerts, a)
		}
	}
	if s.Has(models.KindMemory) {
		if a, ok := e.check(targetID, models.KindMemory, "memory", "Memory", s.MemoryUsage, e.thresholds.Memory); ok {
			alerts = append(alerts, a)
		}
	}
	if s.Has(models.KindDisk) {
		if a, ok := e.check(targetID, models.KindDisk, SourceAggregate, "Disk", s.DiskUsage, e.thresholds.Disk); ok {
			alerts = append(alerts, a)
		}
		for _, d := range s.DiskInfo.Disks {
			if a, ok := e.check(targetID, models.KindDisk, d.Name, "Disk", d.UsedPercentage, e.thresholds.Disk); ok {
				a.Title += " on " + d.Name
				a.Message = fmt.Sprintf("Disk usage on %s is at %g%%, exceeding %s threshold of %g%%",
					d.Name, d.UsedPercentage, a.Severity, a.Threshold)
				alerts = append(alerts, a)
			}
		}
	}
	if s.Has(models.KindNetwork) {
		usage := e.NormalizedNetworkUsage(s.NetworkIncoming, s.NetworkOutgoing)
		if a, ok := e.check(targetID, models.KindNetwork, "network", "Network", usage, e.thresholds.Network); ok {
			a.Title = networkTitle(a.Severity)
			a.Message = fmt.Sprintf("Network traffic is at %.2f MB/s, exceeding %s threshold",
				math.Max(s.NetworkIncoming, s.NetworkOutgoing), a.Severity)
			alerts = append(alerts, a)
		}
	}

	return alerts
}

// EvaluateInput applies the cpu/memory/disk thresholds to externally reported metrics.
func (e *Evaluator) EvaluateInput(targetID string, cpu, memory, disk float64) []models.Alert {
	var alerts []models.Alert
	if a, ok := e.check(targetID, models.KindCPU, "cpu", "CPU", cpu, e.thresholds.CPU); ok {
		alerts = append(alerts, a)
	}
	if a, ok := e.check(targetID, models.KindMemory, "memory", "Memory", memory, e.thresholds.Memory); ok {
		alerts = append(alerts, a)
	}
	if a, ok := e.check(targetID, models.KindDisk, SourceAggregate, "Disk", disk, e.thresholds.Disk); ok {
		alerts = append(alerts, a)
	}
	return alerts
}

func (e *Evaluator) check(targetID string, category models.Kind, source, label string, value float64, level Level) (models.Alert, bool) {
	var (
		severity  models.Severity
		threshold float64
		title     string
	)
	switch {
	case value >= level.Critical:
		severity, threshold, title = models.SeverityCritical, level.Critical, "Critical "+label+" Usage"
	case value >= level.Warning:
		severity, threshold, title = models.SeverityWarning, level.Warning, "High "+label+" Usage"
	default:
		return models.Alert{}, false
	}

	return models.Alert{
		ID:        e.newID(),
		TargetID:  targetID,
		Title:     title,
		Message:   fmt.Sprintf("%s usage is at %g%%, exceeding %s threshold of %g%%", label, value, severity, threshold),
		Severity:  severity,
		Category:  category,
		Source:    source,
		Status:    models.StatusActive,
		CreatedAt: e.now(),
		Value:     value,
		Threshold: threshold,
	}, true
}

func networkTitle(s models.Severity) string {
	if s == models.SeverityCritical {
		return "Critical Network Traffic"
	}
	return "High Network Traffic"
}
