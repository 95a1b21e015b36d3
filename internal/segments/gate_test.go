package segments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedGate(threshold time.Duration, now time.Time) *QuietGate {
	g := NewQuietGate(threshold)
	g.Now = func() time.Time { return now }
	return g
}

func TestQuietGate_IsEligible(t *testing.T) {
	now := time.Date(2024, 1, 18, 12, 30, 0, 0, time.UTC)
	g := fixedGate(5*time.Minute, now)

	tests := []struct {
		name string
		age  time.Duration
		want bool
	}{
		{"modified 10 minutes ago", 10 * time.Minute, true},
		{"exactly at threshold", 5 * time.Minute, true},
		{"one nanosecond short", 5*time.Minute - time.Nanosecond, false},
		{"modified 2 minutes ago", 2 * time.Minute, false},
		{"modified in the future", -time.Minute, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.IsEligible(Segment{ModTime: now.Add(-tt.age)}))
		})
	}
}

func TestNewQuietGate_DefaultThreshold(t *testing.T) {
	assert.Equal(t, DefaultQuietThreshold, NewQuietGate(0).Threshold)
	assert.Equal(t, time.Hour, NewQuietGate(time.Hour).Threshold)
}

func TestQuietGate_Filter(t *testing.T) {
	now := time.Date(2024, 1, 18, 12, 30, 0, 0, time.UTC)
	g := fixedGate(5*time.Minute, now)

	segs := []Segment{
		{Name: "a", ModTime: now.Add(-20 * time.Minute)},
		{Name: "b", ModTime: now.Add(-time.Minute)},
		{Name: "c", ModTime: now.Add(-6 * time.Minute)},
	}
	got := g.Filter(segs)

	assert.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "c", got[1].Name)
	assert.Equal(t, "b", segs[1].Name, "input must not be modified")
}
