package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ms(t time.Time) int64 { return t.UnixMilli() }

func TestAlignToHour(t *testing.T) {
	in := time.Date(2026, 3, 5, 14, 37, 22, 0, time.UTC)
	want := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	require.Equal(t, ms(want), AlignToHour(ms(in)))
}

func TestAlignToISOWeek(t *testing.T) {
	// Thursday 2026-03-05 -> Monday 2026-03-02
	in := time.Date(2026, 3, 5, 14, 37, 22, 0, time.UTC)
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	require.Equal(t, ms(want), AlignToISOWeek(ms(in)))

	// Monday itself maps to itself.
	monday := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	require.Equal(t, ms(want), AlignToISOWeek(ms(monday)))

	// Sunday maps to the preceding Monday.
	sunday := time.Date(2026, 3, 8, 23, 59, 0, 0, time.UTC)
	require.Equal(t, ms(want), AlignToISOWeek(ms(sunday)))
}

func TestHourWindow(t *testing.T) {
	in := time.Date(2026, 3, 5, 14, 37, 22, 0, time.UTC)
	w := HourWindow(ms(in))
	require.Equal(t, ms(time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)), w.Start)
	require.Equal(t, ms(time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC)), w.End)
}

func TestIsWithinLatenessWindow(t *testing.T) {
	end := int64(1000000)
	require.True(t, IsWithinLatenessWindow(end, end)) // still open
	require.True(t, IsWithinLatenessWindow(end, end+3*60*60*1000))
	require.True(t, IsWithinLatenessWindow(end, end+24*60*60*1000))
	require.False(t, IsWithinLatenessWindow(end, end+25*60*60*1000))
}

func TestCheckClockSkew(t *testing.T) {
	require.False(t, CheckClockSkew(1000, 1000))
	require.False(t, CheckClockSkew(1000+5*60*1000, 1000))
	require.True(t, CheckClockSkew(1000+5*60*1000+1, 1000))
}

func TestMinuteBucket(t *testing.T) {
	in := time.Date(2026, 3, 5, 14, 37, 22, 500, time.UTC)
	want := time.Date(2026, 3, 5, 14, 37, 0, 0, time.UTC)
	require.Equal(t, ms(want), MinuteBucket(ms(in)))
}
