package optimize

import "math"

// Schedule decides in which epochs each edge is sampled. An edge of weight w
// fires once every maxWeight/w epochs, so heavy edges are sampled more often
// without visiting every edge in every epoch.
type Schedule struct {
	EpochsPerSample   []float64
	EpochOfNextSample []float64
}

// NewSchedule builds the schedule for the given edge weights. Edges lighter
// than maxWeight/epochs would fire less than once and are never sampled.
func NewSchedule(weights []float64, epochs int) *Schedule {
	s := &Schedule{
		EpochsPerSample:   make([]float64, len(weights)),
		EpochOfNextSample: make([]float64, len(weights)),
	}

	var maxWeight float64
	for _, w := range weights {
		maxWeight = math.Max(maxWeight, w)
	}

	for e, w := range weights {
		if w <= 0 || maxWeight <= 0 || w < maxWeight/float64(epochs) {
			s.EpochsPerSample[e] = -1
			s.EpochOfNextSample[e] = math.Inf(1)
			continue
		}
		s.EpochsPerSample[e] = maxWeight / w
		s.EpochOfNextSample[e] = s.EpochsPerSample[e]
	}
	return s
}

// Due reports whether edge e fires in the given epoch.
func (s *Schedule) Due(e, epoch int) bool {
	return s.EpochOfNextSample[e] <= float64(epoch)
}

// Advance moves edge e to its next sampling epoch.
func (s *Schedule) Advance(e int) {
	s.EpochOfNextSample[e] += s.EpochsPerSample[e]
}

// Active counts the edges that are ever sampled.
func (s *Schedule) Active() int {
	count := 0
	for _, eps := range s.EpochsPerSample {
		if eps > 0 {
			count++
		}
	}
	return count
}
