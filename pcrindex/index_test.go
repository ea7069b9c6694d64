package pcrindex

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildProducesMonotonicAlignedOffsets(t *testing.T) {
	data := buildSyntheticStream(0x31, 0, 1_080_000, 1, 1501)
	records, err := Build(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, records, 1501)

	for i, r := range records {
		assert.Equal(t, uint64(0), r.ByteOffset%188)
		if i > 0 {
			assert.Greater(t, r.ByteOffset, records[i-1].ByteOffset)
		}
	}
}

func TestIndexBuildAndSlice(t *testing.T) {
	// End-to-end scenario: PCR on PID 0x31 every 40ms for 60s -> 1501
	// records, pcrMax-pcrMin == 60*27e6.
	const stepTicks = 1_080_000 // 40ms at 27MHz
	data := buildSyntheticStream(0x31, 0, stepTicks, 1, 1501)

	dir := t.TempDir()
	inputPath := filepath.Join(dir, "synthetic.ts")
	require.NoError(t, os.WriteFile(inputPath, data, 0o644))

	records, err := BuildFile(inputPath)
	require.NoError(t, err)
	require.Len(t, records, 1501)
	assert.Equal(t, int64(60)*27_000_000, records[len(records)-1].PCR-records[0].PCR)

	idxPath := SidecarPath(inputPath)
	require.NoError(t, WriteIndex(idxPath, records))
	reloaded, err := ReadIndex(idxPath)
	require.NoError(t, err)
	assert.Equal(t, records, reloaded)

	// Slice [10s, 20s).
	startPCR := int64(10) * 27_000_000
	endPCR := int64(20) * 27_000_000
	start, end, err := FindBoundsByTime(records, startPCR, endPCR)
	require.NoError(t, err)

	outputPath := filepath.Join(dir, "out.ts")
	n, err := Slice(inputPath, outputPath, start, end)
	require.NoError(t, err)
	assert.Equal(t, int64(end.ByteOffset-start.ByteOffset), n)
	assert.Equal(t, int64(0), n%188)

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	assert.Equal(t, n, info.Size())
}

func TestLookupGE(t *testing.T) {
	records := []PcrPosition{
		{ByteOffset: 0, PCR: 0},
		{ByteOffset: 188, PCR: 1000},
		{ByteOffset: 376, PCR: 2000},
		{ByteOffset: 564, PCR: 3000},
	}
	got, ok := LookupGE(records, 1500)
	require.True(t, ok)
	assert.Equal(t, int64(2000), got.PCR)

	_, ok = LookupGE(records, 5000)
	assert.False(t, ok)
}

func TestDurationWrapsModularly(t *testing.T) {
	maxSCR := int64(1) << 33 * 300
	records := []PcrPosition{
		{PCR: maxSCR - 100},
		{PCR: 50},
	}
	assert.Equal(t, int64(150), Duration(records))
}

func TestFastQuerySmallFile(t *testing.T) {
	data := buildSyntheticStream(0x31, 1_000_000, 1_080_000, 1, 100)
	dir := t.TempDir()
	path := filepath.Join(dir, "small.ts")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	result, err := FastQuery(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), result.First.PCR)
	assert.Equal(t, int64(99)*1_080_000, result.Duration)
}

func TestFastQueryLargeFileReadsOnlyHeadAndTail(t *testing.T) {
	// Shrink thresholds so this test doesn't need a multi-gigabyte fixture.
	oldThreshold, oldHeadTail := fastQueryThreshold, headTailSize
	fastQueryThreshold = 200 * 188
	headTailSize = 50 * 188
	t.Cleanup(func() { fastQueryThreshold, headTailSize = oldThreshold, oldHeadTail })

	const packetCount = 1000
	const firstPCR = int64(2_000_000)
	const step = int64(1_080_000)
	data := buildSyntheticStream(0x31, firstPCR, step, 1, packetCount)

	dir := t.TempDir()
	path := filepath.Join(dir, "large.ts")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	result, err := FastQuery(path)
	require.NoError(t, err)
	assert.Equal(t, firstPCR, result.First.PCR)
	lastPCR := firstPCR + step*(packetCount-1)
	assert.Equal(t, lastPCR, result.Last.PCR)
	assert.Equal(t, lastPCR-firstPCR, result.Duration)
}
