package services

import (
	"sync"
	"time"

	"sysaura/internal/models"
)

// DefaultHistorySize keeps 10 minutes of samples at a 10 second cadence.
const DefaultHistorySize = 60

// Ring is a fixed-capacity FIFO that evicts its oldest entry on overflow.
type Ring[T any] struct {
	mu    sync.RWMutex
	data  []T
	head  int
	count int
}

// NewRing creates a ring holding at most capacity values.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// Push appends v, dropping the oldest value when full.
func (r *Ring[T]) Push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
	if r.count < len(r.data) {
		r.count++
	}
}

// Values returns a copy of the contents, oldest first.
func (r *Ring[T]) Values() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, r.count)
	start := (r.head - r.count + len(r.data)) % len(r.data)
	for i := 0; i < r.count; i++ {
		out[i] = r.data[(start+i)%len(r.data)]
	}
	return out
}

// Len returns the number of stored values.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.data)
}

// History owns one ring per metric kind for the lifetime of the process.
type History struct {
	CPU     *Ring[models.MetricSample]
	Memory  *Ring[models.MetricSample]
	Disk    *Ring[models.MetricSample]
	Network *Ring[models.NetworkSample]
}

// NewHistory creates empty rings of the given capacity.
func NewHistory(capacity int) *History {
	return &History{
		CPU:     NewRing[models.MetricSample](capacity),
		Memory:  NewRing[models.MetricSample](capacity),
		Disk:    NewRing[models.MetricSample](capacity),
		Network: NewRing[models.NetworkSample](capacity),
	}
}

func (h *History) pushScalar(kind models.Kind, at time.Time, value float64) []models.MetricSample {
	var ring *Ring[models.MetricSample]
	switch kind {
	case models.KindCPU:
		ring = h.CPU
	case models.KindMemory:
		ring = h.Memory
	case models.KindDisk:
		ring = h.Disk
	default:
		return nil
	}
	ring.Push(models.MetricSample{Timestamp: at, Value: value})
	return ring.Values()
}

func (h *History) pushNetwork(at time.Time, incoming, outgoing float64) []models.NetworkSample {
	h.Network.Push(models.NetworkSample{Timestamp: at, Incoming: incoming, Outgoing: outgoing})
	return h.Network.Values()
}

// Window returns the current contents of the ring for kind. The result is a
// []models.MetricSample for cpu/memory/disk and []models.NetworkSample for network.
func (h *History) Window(kind models.Kind) interface{} {
	switch kind {
	case models.KindCPU:
		return h.CPU.Values()
	case models.KindMemory:
		return h.Memory.Values()
	case models.KindDisk:
		return h.Disk.Values()
	case models.KindNetwork:
		return h.Network.Values()
	}
	return nil
}
