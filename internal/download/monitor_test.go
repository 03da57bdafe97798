package download

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchState_CumulativeAccounting(t *testing.T) {
	s1, s2, s3 := int64(1000), int64(500), int64(250)
	t0 := time.Unix(1700000000, 0)
	st := newWatchState(fileWatch{
		name:        "b.bin",
		label:       "b.bin (2/3)",
		expected:    s2,
		bytesBefore: s1,
		jobTotal:    s1 + s2 + s3,
	}, 2*time.Second, t0)

	rec, ok := st.step(s2*4/10, t0.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, s1+s2*4/10, rec.Downloaded)
	assert.Equal(t, s1+s2+s3, rec.Total)
	assert.Equal(t, "b.bin (2/3)", rec.CurrentFile)
	assert.InDelta(t, 200.0, rec.Speed, 0.001)
	assert.InDelta(t, float64(s1+s2+s3-(s1+200))/200.0, rec.ETA, 0.001)
}

func TestWatchState_MonotonicAndClamped(t *testing.T) {
	const size = int64(1000)
	t0 := time.Unix(1700000000, 0)
	st := newWatchState(fileWatch{name: "a.bin", label: "a.bin (1/1)", expected: size, jobTotal: size}, time.Hour, t0)

	var last int64
	var emitted int
	for i, obs := range []int64{0, 100, 100, 50, 600, 999, 1200, 1000} {
		rec, ok := st.step(obs, t0.Add(time.Duration(i+1)*500*time.Millisecond))
		if !ok {
			continue
		}
		emitted++
		assert.GreaterOrEqual(t, rec.Downloaded, last, "downloaded must not decrease")
		assert.LessOrEqual(t, rec.Downloaded, size)
		assert.LessOrEqual(t, rec.Progress, 99)
		last = rec.Downloaded
	}
	assert.Equal(t, 4, emitted, "only growth produces records")
	assert.Equal(t, size, last)
}

func TestWatchState_Heartbeat(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	st := newWatchState(fileWatch{name: "a.bin", label: "a.bin (2/2)", bytesBefore: 300, jobTotal: 900}, 2*time.Second, t0)

	_, ok := st.step(0, t0.Add(time.Second))
	assert.False(t, ok, "no heartbeat before the interval")

	rec, ok := st.step(0, t0.Add(2*time.Second))
	require.True(t, ok)
	assert.Equal(t, "Initializing a.bin...", rec.CurrentFile)
	assert.Equal(t, int64(300), rec.Downloaded)
	assert.Equal(t, int64(900), rec.Total)
	assert.Zero(t, rec.Speed)

	_, ok = st.step(0, t0.Add(3*time.Second))
	assert.False(t, ok, "heartbeat interval restarts after a write")
}

func TestWatchState_UnknownExpectedSize(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	st := newWatchState(fileWatch{name: "a.bin", label: "a.bin (1/1)"}, time.Second, t0)
	rec, ok := st.step(4096, t0.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, int64(4096), rec.Downloaded)
	assert.Equal(t, int64(4096), rec.Total)
	assert.Zero(t, rec.Progress)
	assert.Zero(t, rec.ETA)
}

func TestWatchState_RestartedFileDoesNotRollBack(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	st := newWatchState(fileWatch{name: "b.bin", label: "b.bin (2/2)", expected: 100, bytesBefore: 100, jobTotal: 200}, time.Second, t0)

	rec, ok := st.step(30, t0.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, int64(130), rec.Downloaded)

	// server ignored Range: the staging file was truncated
	_, ok = st.step(0, t0.Add(5*time.Second))
	assert.False(t, ok, "no heartbeat once the file has been seen")

	_, ok = st.step(20, t0.Add(6*time.Second))
	assert.False(t, ok, "regrowth below the last size is not reported")

	rec, ok = st.step(60, t0.Add(7*time.Second))
	require.True(t, ok)
	assert.Equal(t, int64(160), rec.Downloaded)
}
