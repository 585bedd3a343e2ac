package strategy

import (
	"math"

	"github.com/newthinker/bandrev/internal/core"
)

// Row is one bar of the augmented series: band values, the entry signal
// emitted on this bar, whether a position was closed on this bar, and the
// exposure held once this bar's transition has been applied.
type Row struct {
	Bar      core.Bar
	SMA      float64
	Std      float64
	Upper    float64
	Lower    float64
	Signal   core.Direction
	Exit     bool
	Position core.Direction
}

// HasBands reports whether the band columns are defined for this row
func (r Row) HasBands() bool {
	return !math.IsNaN(r.SMA)
}

// Series is the output of a signal generator for one parameter set
type Series struct {
	Strategy string
	Window   int
	NumStd   float64
	Rows     []Row
}

// Len returns the number of bars
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// Positions extracts the position column
func (s *Series) Positions() []core.Direction {
	out := make([]core.Direction, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r.Position
	}
	return out
}

// Entries counts bars carrying a non-zero entry signal
func (s *Series) Entries() int {
	n := 0
	for _, r := range s.Rows {
		if r.Signal != core.Flat {
			n++
		}
	}
	return n
}

// Exits counts bars on which a position was closed
func (s *Series) Exits() int {
	n := 0
	for _, r := range s.Rows {
		if r.Exit {
			n++
		}
	}
	return n
}
