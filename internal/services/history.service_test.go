package services

import (
	"sync"
	"testing"
	"time"

	"sysaura/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingKeepsNewestValues(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}

	assert.Equal(t, []int{3, 4, 5}, r.Values())
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Cap())
}

func TestRingPartiallyFilled(t *testing.T) {
	r := NewRing[string](4)
	assert.Empty(t, r.Values())

	r.Push("a")
	r.Push("b")
	assert.Equal(t, []string{"a", "b"}, r.Values())
}

func TestRingDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultHistorySize, NewRing[int](0).Cap())
	assert.Equal(t, DefaultHistorySize, NewRing[int](-3).Cap())
}

func TestRingValuesIsACopy(t *testing.T) {
	r := NewRing[int](2)
	r.Push(1)
	vals := r.Values()
	vals[0] = 99
	assert.Equal(t, []int{1}, r.Values())
}

func TestRingSixtyFirstPushEvictsFirst(t *testing.T) {
	r := NewRing[int](60)
	for i := 1; i <= 61; i++ {
		r.Push(i)
	}
	vals := r.Values()
	require.Len(t, vals, 60)
	assert.Equal(t, 2, vals[0])
	assert.Equal(t, 61, vals[59])
}

func TestRingConcurrentPush(t *testing.T) {
	r := NewRing[int](10)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			r.Push(v)
			_ = r.Values()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, r.Len())
}

func TestHistoryPushAndWindow(t *testing.T) {
	h := NewHistory(2)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	h.pushScalar(models.KindCPU, at, 10)
	h.pushScalar(models.KindCPU, at.Add(time.Second), 20)
	got := h.pushScalar(models.KindCPU, at.Add(2*time.Second), 30)
	require.Len(t, got, 2)
	assert.Equal(t, 20.0, got[0].Value)
	assert.Equal(t, 30.0, got[1].Value)

	net := h.pushNetwork(at, 1.5, 0.25)
	require.Len(t, net, 1)
	assert.Equal(t, 1.5, net[0].Incoming)
	assert.Equal(t, 0.25, net[0].Outgoing)

	assert.Len(t, h.Window(models.KindCPU), 2)
	assert.Empty(t, h.Window(models.KindMemory))
	assert.Len(t, h.Window(models.KindNetwork), 1)
	assert.Nil(t, h.Window(models.Kind("gpu")))
	assert.Nil(t, h.pushScalar(models.KindNetwork, at, 1))
}
