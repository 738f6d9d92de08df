package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sysaura/internal/logger"
	"sysaura/internal/models"
)

// AlertRecorder persists alert changes. The store package implements it.
type AlertRecorder interface {
	SaveAlert(ctx context.Context, alert models.Alert) error
	UpdateAlert(ctx context.Context, alert models.Alert) error
	DeleteAlert(ctx context.Context, id string) error
	LoadAlerts(ctx context.Context) ([]models.Alert, error)
}

// AlertFilter narrows List results. Zero values match everything.
type AlertFilter struct {
	Status   models.AlertStatus
	TargetID string
	Access   func(targetID string) bool
	Limit    int
	Offset   int
}

type storedAlert struct {
	alert models.Alert
	seq   uint64
}

// AlertStore holds the current alert set keyed by id and writes every change
// through to its recorder.
type AlertStore struct {
	mu       sync.RWMutex
	alerts   map[string]*storedAlert
	seq      uint64
	recorder AlertRecorder
	dedupe   bool
	log      logger.Logger
	now      func() time.Time
}

// NewAlertStore creates an empty store. recorder may be nil for a purely
// in-memory store. With dedupe set, Add skips alerts that repeat an active
// alert for the same target, category and source.
func NewAlertStore(recorder AlertRecorder, dedupe bool, log logger.Logger) *AlertStore {
	if log == nil {
		log = logger.Noop()
	}
	return &AlertStore{
		alerts:   make(map[string]*storedAlert),
		recorder: recorder,
		dedupe:   dedupe,
		log:      log,
		now:      time.Now,
	}
}

// Load replaces the in-memory set with the recorder's contents.
func (s *AlertStore) Load(ctx context.Context) error {
	if s.recorder == nil {
		return nil
	}
	loaded, err := s.recorder.LoadAlerts(ctx)
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = make(map[string]*storedAlert, len(loaded))
	// oldest first so sequence numbers follow creation order
	sort.SliceStable(loaded, func(i, j int) bool { return loaded[i].CreatedAt.Before(loaded[j].CreatedAt) })
	for _, a := range loaded {
		s.seq++
		s.alerts[a.ID] = &storedAlert{alert: a, seq: s.seq}
	}
	return nil
}

// Add stores alerts and returns the ones actually added.
func (s *AlertStore) Add(ctx context.Context, alerts ...models.Alert) ([]models.Alert, error) {
	added := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.Status == "" {
			a.Status = models.StatusActive
		}

		s.mu.Lock()
		if _, exists := s.alerts[a.ID]; exists {
			s.mu.Unlock()
			return added, fmt.Errorf("%w: duplicate alert id %s", ErrInvalidInput, a.ID)
		}
		if s.dedupe && s.hasActiveLocked(a) {
			s.mu.Unlock()
			s.log.Debug("suppressed repeat %s alert for %s (%s)", a.Category, a.TargetID, a.Source)
			continue
		}
		s.seq++
		s.alerts[a.ID] = &storedAlert{alert: a, seq: s.seq}
		s.mu.Unlock()

		if s.recorder != nil {
			if err := s.recorder.SaveAlert(ctx, a); err != nil {
				s.mu.Lock()
				delete(s.alerts, a.ID)
				s.mu.Unlock()
				return added, fmt.Errorf("save alert: %w", err)
			}
		}
		added = append(added, a)
	}
	return added, nil
}

func (s *AlertStore) hasActiveLocked(a models.Alert) bool {
	for _, existing := range s.alerts {
		e := existing.alert
		if e.Status == models.StatusActive && e.TargetID == a.TargetID &&
			e.Category == a.Category && e.Source == a.Source {
			return true
		}
	}
	return false
}

// Get returns the alert with id.
func (s *AlertStore) Get(id string) (models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.alerts[id]
	if !ok {
		return models.Alert{}, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return stored.alert, nil
}

// SetStatus moves an alert along its lifecycle and stamps the transition time.
func (s *AlertStore) SetStatus(ctx context.Context, id string, status models.AlertStatus) (models.Alert, error) {
	s.mu.Lock()
	stored, ok := s.alerts[id]
	if !ok {
		s.mu.Unlock()
		return models.Alert{}, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	previous := stored.alert
	if !models.CanTransition(previous.Status, status) {
		s.mu.Unlock()
		return models.Alert{}, fmt.Errorf("alert %s %s -> %s: %w", id, previous.Status, status, ErrInvalidTransition)
	}

	updated := previous
	updated.Status = status
	at := s.now()
	switch status {
	case models.StatusAcknowledged:
		updated.AcknowledgedAt = &at
	case models.StatusResolved:
		updated.ResolvedAt = &at
	}
	stored.alert = updated
	s.mu.Unlock()

	if s.recorder != nil {
		if err := s.recorder.UpdateAlert(ctx, updated); err != nil {
			s.mu.Lock()
			if cur, ok := s.alerts[id]; ok {
				cur.alert = previous
			}
			s.mu.Unlock()
			return models.Alert{}, fmt.Errorf("update alert: %w", err)
		}
	}
	return updated, nil
}

// Remove dismisses an active alert. Acknowledged or resolved alerts stay.
func (s *AlertStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	stored, ok := s.alerts[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	if stored.alert.Status != models.StatusActive {
		s.mu.Unlock()
		return fmt.Errorf("alert %s is %s: %w", id, stored.alert.Status, ErrInvalidTransition)
	}
	delete(s.alerts, id)
	s.mu.Unlock()

	if s.recorder != nil {
		if err := s.recorder.DeleteAlert(ctx, id); err != nil {
			s.mu.Lock()
			s.alerts[id] = stored
			s.mu.Unlock()
			return fmt.Errorf("delete alert: %w", err)
		}
	}
	return nil
}

// List returns matching alerts, newest first.
func (s *AlertStore) List(filter AlertFilter) []models.Alert {
	s.mu.RLock()
	matched := make([]*storedAlert, 0, len(s.alerts))
	for _, stored := range s.alerts {
		a := stored.alert
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.TargetID != "" && a.TargetID != filter.TargetID {
			continue
		}
		if filter.Access != nil && !filter.Access(a.TargetID) {
			continue
		}
		matched = append(matched, stored)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		ai, aj := matched[i].alert.CreatedAt, matched[j].alert.CreatedAt
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return matched[i].seq > matched[j].seq
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []models.Alert{}
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]models.Alert, len(matched))
	for i, stored := range matched {
		out[i] = stored.alert
	}
	return out
}

// Len returns the number of stored alerts.
func (s *AlertStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}
