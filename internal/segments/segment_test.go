package segments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		want    time.Time
		wantErr bool
	}{
		{name: "20240118_120000.mp4", want: time.Date(2024, 1, 18, 12, 0, 0, 0, time.UTC)},
		{name: "/x/y/20231231_235959.MKV", want: time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)},
		{name: "20240229_000001", want: time.Date(2024, 2, 29, 0, 0, 1, 0, time.UTC)},
		{name: "log.txt", wantErr: true},
		{name: "20240118-120000.mp4", wantErr: true},
		{name: "20241318_120000.mp4", wantErr: true},
		{name: "20240118_120000_extra.mp4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.name)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrBadFilename)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestSegment_AgeAndCreatedAt(t *testing.T) {
	now := time.Date(2024, 1, 18, 12, 20, 0, 0, time.UTC)
	ts := time.Date(2024, 1, 18, 12, 0, 0, 0, time.UTC)
	s := Segment{ModTime: now.Add(-10 * time.Minute), Timestamp: ts}

	assert.Equal(t, 10*time.Minute, s.Age(now))
	assert.Equal(t, ts, s.CreatedAt())
}
