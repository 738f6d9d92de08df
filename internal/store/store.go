// Package store persists targets, metric rows and alerts with gorm on sqlite.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sysaura/internal/models"
	"sysaura/internal/services"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store is the gorm-backed persistence layer.
type Store struct {
	db *gorm.DB
}

// Open connects to the sqlite database at path and migrates the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database path is empty", services.ErrInvalidInput)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// sqlite allows one writer; an in-memory database also exists per connection
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&User{}, &systemRecord{}, &metricsRecord{}, &alertRecord{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateUser inserts a user. Used for seeding and tests.
func (s *Store) CreateUser(ctx context.Context, u User) error {
	if u.ID == "" {
		return fmt.Errorf("%w: user id is required", services.ErrInvalidInput)
	}
	if u.Role == "" {
		u.Role = string(models.RoleUser)
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return fmt.Errorf("create user %s: %w", u.ID, err)
	}
	return nil
}

// CreateTarget inserts a monitored system.
func (s *Store) CreateTarget(ctx context.Context, t models.Target) error {
	if t.ID == "" {
		return fmt.Errorf("%w: system id is required", services.ErrInvalidInput)
	}
	rec := systemRecord{
		ID:            t.ID,
		Name:          t.Name,
		IPAddress:     t.Address,
		Status:        t.Status,
		LastConnected: t.LastConnected,
		UserID:        t.OwnerID,
	}
	if rec.Status == "" {
		rec.Status = "offline"
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("create system %s: %w", t.ID, err)
	}
	return nil
}

// EnsureTarget creates t unless a system with its id already exists.
func (s *Store) EnsureTarget(ctx context.Context, t models.Target) error {
	if _, err := s.Target(ctx, t.ID); err == nil {
		return nil
	} else if !errors.Is(err, services.ErrNotFound) {
		return err
	}
	return s.CreateTarget(ctx, t)
}

// Target loads one system.
func (s *Store) Target(ctx context.Context, targetID string) (models.Target, error) {
	var rec systemRecord
	err := s.db.WithContext(ctx).Where("id = ?", targetID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Target{}, fmt.Errorf("system %s: %w", targetID, services.ErrNotFound)
	}
	if err != nil {
		return models.Target{}, fmt.Errorf("load system %s: %w", targetID, err)
	}
	return rec.toModel(), nil
}

// Targets lists systems ordered by id. A non-empty ownerID restricts the
// list to that user's systems.
func (s *Store) Targets(ctx context.Context, ownerID string) ([]models.Target, error) {
	q := s.db.WithContext(ctx).Order("id ASC")
	if ownerID != "" {
		q = q.Where("user_id = ?", ownerID)
	}
	var recs []systemRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list systems: %w", err)
	}
	targets := make([]models.Target, len(recs))
	for i, rec := range recs {
		targets[i] = rec.toModel()
	}
	return targets, nil
}

// CanAccess reports whether identity may read targetID: admins see every
// system, users only the ones they own.
func (s *Store) CanAccess(ctx context.Context, identity models.Identity, targetID string) (bool, error) {
	t, err := s.Target(ctx, targetID)
	if err != nil {
		return false, err
	}
	return identity.IsAdmin() || (identity.UserID != "" && t.OwnerID == identity.UserID), nil
}

// MarkOnline flags a system as online and records when it last reported.
func (s *Store) MarkOnline(ctx context.Context, targetID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&systemRecord{}).Where("id = ?", targetID).
		Updates(map[string]interface{}{"status": "online", "last_connected": at})
	if res.Error != nil {
		return fmt.Errorf("update system %s: %w", targetID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("system %s: %w", targetID, services.ErrNotFound)
	}
	return nil
}

// SaveMetrics inserts one metrics row and returns it with its assigned id.
func (s *Store) SaveMetrics(ctx context.Context, row models.MetricsRow) (models.MetricsRow, error) {
	rec := metricsFromModel(row)
	rec.ID = 0
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return models.MetricsRow{}, fmt.Errorf("insert metrics for %s: %w", row.TargetID, err)
	}
	return rec.toModel(), nil
}

// MetricsHistory returns rows for targetID, newest first.
func (s *Store) MetricsHistory(ctx context.Context, targetID string, limit, offset int) ([]models.MetricsRow, error) {
	if limit <= 0 {
		limit = 24
	}
	if offset < 0 {
		offset = 0
	}

	var recs []metricsRecord
	err := s.db.WithContext(ctx).
		Where("system_id = ?", targetID).
		Order("timestamp DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query metrics for %s: %w", targetID, err)
	}

	rows := make([]models.MetricsRow, len(recs))
	for i, rec := range recs {
		rows[i] = rec.toModel()
	}
	return rows, nil
}

// SaveAlert inserts a new alert.
func (s *Store) SaveAlert(ctx context.Context, a models.Alert) error {
	rec := alertFromModel(a)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert alert %s: %w", a.ID, err)
	}
	return nil
}

// UpdateAlert writes the lifecycle fields of an existing alert.
func (s *Store) UpdateAlert(ctx context.Context, a models.Alert) error {
	res := s.db.WithContext(ctx).Model(&alertRecord{}).Where("id = ?", a.ID).
		Updates(map[string]interface{}{
			"status":          string(a.Status),
			"acknowledged_at": a.AcknowledgedAt,
			"resolved_at":     a.ResolvedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update alert %s: %w", a.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("alert %s: %w", a.ID, services.ErrNotFound)
	}
	return nil
}

// DeleteAlert removes an alert.
func (s *Store) DeleteAlert(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&alertRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete alert %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("alert %s: %w", id, services.ErrNotFound)
	}
	return nil
}

// LoadAlerts returns every stored alert, oldest first.
func (s *Store) LoadAlerts(ctx context.Context) ([]models.Alert, error) {
	var recs []alertRecord
	if err := s.db.WithContext(ctx).Order("timestamp ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	alerts := make([]models.Alert, len(recs))
	for i, rec := range recs {
		alerts[i] = rec.toModel()
	}
	return alerts, nil
}

var (
	_ services.AlertRecorder   = (*Store)(nil)
	_ services.MetricsRecorder = (*Store)(nil)
	_ services.TargetAccess    = (*Store)(nil)
)
