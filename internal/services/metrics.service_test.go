package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeMemoryInfo(t *testing.T) {
	info := ComputeMemoryInfo(16*GB, 12*GB, 4*GB)
	assert.Equal(t, 16.0, info.Total)
	assert.Equal(t, 12.0, info.Used)
	assert.Equal(t, 4.0, info.Free)
	assert.Equal(t, 75.0, info.UsedPercentage)

	assert.Equal(t, 0.0, ComputeMemoryInfo(0, 0, 0).UsedPercentage)
}

func TestComputeMemoryInfoRounding(t *testing.T) {
	// 1/3 GiB used of 1 GiB
	info := ComputeMemoryInfo(GB, GB/3, GB-GB/3)
	assert.Equal(t, 0.33, info.Used)
	assert.Equal(t, 33.0, info.UsedPercentage)
}

func TestComputeDiskInfo(t *testing.T) {
	info := ComputeDiskInfo([]MountUsage{
		{Mount: "C:", FS: "NTFS", Total: 100 * GB, Used: 85 * GB},
		{Mount: "D:", FS: "NTFS", Total: 200 * GB, Used: 50 * GB},
	})

	require.Len(t, info.Disks, 2)
	assert.Equal(t, "C:", info.Disks[0].Name)
	assert.Equal(t, 100.0, info.Disks[0].Size)
	assert.Equal(t, 85.0, info.Disks[0].UsedPercentage)
	assert.Equal(t, 25.0, info.Disks[1].UsedPercentage)
	// round((85 + 25) / 2)
	assert.Equal(t, 55.0, info.AverageUsage)
}

func TestComputeDiskInfoNoMounts(t *testing.T) {
	info := ComputeDiskInfo(nil)
	assert.Empty(t, info.Disks)
	assert.Equal(t, 0.0, info.AverageUsage)
}

func TestComputeDiskInfoZeroSizeMount(t *testing.T) {
	info := ComputeDiskInfo([]MountUsage{{Mount: "/empty", Total: 0, Used: 0}})
	require.Len(t, info.Disks, 1)
	assert.Equal(t, 0.0, info.Disks[0].UsedPercentage)
}

func TestByteRate(t *testing.T) {
	tests := []struct {
		name    string
		prev    uint64
		curr    uint64
		elapsed float64
		want    float64
	}{
		{"one MiB per second", 0, MB, 1, 1},
		{"two seconds", MB, 5 * MB, 2, 2},
		{"counter reset", 10 * MB, MB, 1, 0},
		{"no elapsed time", 0, MB, 0, 0},
		{"rounded", 0, MB / 3, 1, 0.33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ByteRate(tt.prev, tt.curr, tt.elapsed))
		})
	}
}

func TestOperState(t *testing.T) {
	assert.Equal(t, "up", operState([]string{"broadcast", "up"}))
	assert.Equal(t, "down", operState([]string{"broadcast"}))
	assert.Equal(t, "down", operState(nil))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.23, round2(1.234))
	assert.Equal(t, 1.24, round2(1.235001))
	assert.Equal(t, 0.0, round2(0.001))
}
