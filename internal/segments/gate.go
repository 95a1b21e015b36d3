package segments

import "time"

// DefaultQuietThreshold is used when a QuietGate is built with a zero threshold.
const DefaultQuietThreshold = 5 * time.Minute

// QuietGate treats a segment as closed once it has not been modified for
// Threshold. A recorder that stalls on its current file for longer than
// Threshold will have that file picked up too; raising Threshold is the only
// knob for that.
type QuietGate struct {
	Threshold time.Duration
	Now       func() time.Time
}

func NewQuietGate(threshold time.Duration) *QuietGate {
	if threshold <= 0 {
		threshold = DefaultQuietThreshold
	}
	return &QuietGate{Threshold: threshold, Now: time.Now}
}

// IsEligible reports whether seg has been quiet for at least Threshold.
func (g *QuietGate) IsEligible(seg Segment) bool {
	return seg.Age(g.Now()) >= g.Threshold
}

// Filter returns the eligible segments, keeping their order.
func (g *QuietGate) Filter(segs []Segment) []Segment {
	now := g.Now()
	out := segs[:0:0]
	for _, s := range segs {
		if s.Age(now) >= g.Threshold {
			out = append(out, s)
		}
	}
	return out
}
