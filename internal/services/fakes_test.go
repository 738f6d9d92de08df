package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"sysaura/internal/models"
)

var errBoom = errors.New("boom")

type fakeSampler struct {
	mu    sync.Mutex
	cpu   models.CPUInfo
	mem   models.MemoryInfo
	disk  models.DiskInfo
	net   models.NetworkInfo
	fail  map[models.Kind]bool
	calls map[models.Kind]int
}

func newFakeSampler() *fakeSampler {
	return &fakeSampler{
		cpu: models.CPUInfo{Model: "Test CPU", Cores: 4, PhysicalCores: 2, Speed: 2400, Usage: 40},
		mem: models.MemoryInfo{Total: 16, Used: 8, Free: 8, UsedPercentage: 50},
		disk: models.DiskInfo{Disks: []models.Disk{
			{Name: "/", FS: "ext4", Size: 100, Used: 40, UsedPercentage: 40},
			{Name: "/data", FS: "ext4", Size: 200, Used: 120, UsedPercentage: 60},
		}},
		net:   models.NetworkInfo{TotalIncoming: 1.5, TotalOutgoing: 0.5},
		fail:  make(map[models.Kind]bool),
		calls: make(map[models.Kind]int),
	}
}

func (f *fakeSampler) failing(kinds ...models.Kind) *fakeSampler {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range kinds {
		f.fail[k] = true
	}
	return f
}

func (f *fakeSampler) enter(kind models.Kind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[kind]++
	if f.fail[kind] {
		return errBoom
	}
	return nil
}

func (f *fakeSampler) CPU(ctx context.Context) (*models.CPUInfo, error) {
	if err := f.enter(models.KindCPU); err != nil {
		return nil, err
	}
	info := f.cpu
	return &info, nil
}

func (f *fakeSampler) Memory(ctx context.Context) (*models.MemoryInfo, error) {
	if err := f.enter(models.KindMemory); err != nil {
		return nil, err
	}
	info := f.mem
	return &info, nil
}

func (f *fakeSampler) Disk(ctx context.Context) (*models.DiskInfo, error) {
	if err := f.enter(models.KindDisk); err != nil {
		return nil, err
	}
	info := f.disk
	info.Disks = append([]models.Disk(nil), f.disk.Disks...)
	return &info, nil
}

func (f *fakeSampler) Network(ctx context.Context) (*models.NetworkInfo, error) {
	if err := f.enter(models.KindNetwork); err != nil {
		return nil, err
	}
	info := f.net
	return &info, nil
}

// memoryRecorder implements AlertRecorder and MetricsRecorder in memory.
type memoryRecorder struct {
	mu        sync.Mutex
	alerts    map[string]models.Alert
	rows      []models.MetricsRow
	targets   map[string]models.Target
	online    map[string]time.Time
	failSave  bool
	failAlert bool
}

func newMemoryRecorder(targets ...models.Target) *memoryRecorder {
	r := &memoryRecorder{
		alerts:  make(map[string]models.Alert),
		targets: make(map[string]models.Target),
		online:  make(map[string]time.Time),
	}
	for _, t := range targets {
		r.targets[t.ID] = t
	}
	return r
}

func (r *memoryRecorder) SaveAlert(ctx context.Context, a models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAlert {
		return errBoom
	}
	r.alerts[a.ID] = a
	return nil
}

func (r *memoryRecorder) UpdateAlert(ctx context.Context, a models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAlert {
		return errBoom
	}
	r.alerts[a.ID] = a
	return nil
}

func (r *memoryRecorder) DeleteAlert(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAlert {
		return errBoom
	}
	delete(r.alerts, id)
	return nil
}

func (r *memoryRecorder) LoadAlerts(ctx context.Context) ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Alert, 0, len(r.alerts))
	for _, a := range r.alerts {
		out = append(out, a)
	}
	return out, nil
}

func (r *memoryRecorder) SaveMetrics(ctx context.Context, row models.MetricsRow) (models.MetricsRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave {
		return models.MetricsRow{}, errBoom
	}
	row.ID = uint(len(r.rows) + 1)
	r.rows = append(r.rows, row)
	return row, nil
}

func (r *memoryRecorder) MetricsHistory(ctx context.Context, targetID string, limit, offset int) ([]models.MetricsRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.MetricsRow
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].TargetID == targetID {
			out = append(out, r.rows[i])
		}
	}
	if offset >= len(out) {
		return []models.MetricsRow{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRecorder) MarkOnline(ctx context.Context, targetID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online[targetID] = at
	return nil
}

func (r *memoryRecorder) Target(ctx context.Context, targetID string) (models.Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.targets[targetID]
	if !ok {
		return models.Target{}, ErrNotFound
	}
	return t, nil
}

func (r *memoryRecorder) CanAccess(ctx context.Context, identity models.Identity, targetID string) (bool, error) {
	t, err := r.Target(ctx, targetID)
	if err != nil {
		return false, err
	}
	return identity.IsAdmin() || t.OwnerID == identity.UserID, nil
}

func (r *memoryRecorder) savedRows() []models.MetricsRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.MetricsRow(nil), r.rows...)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
