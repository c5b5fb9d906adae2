package report

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary holds descriptive statistics over a report's potholes.
type Summary struct {
	Count          int     `json:"count"`
	MeanConfidence float64 `json:"mean_confidence"`
	MeanArea       float64 `json:"mean_area"`
	MedianArea     float64 `json:"median_area"`
	StdDevArea     float64 `json:"stddev_area"`
	MaxArea        float64 `json:"max_area"`
	FirstSeen      float64 `json:"first_seen"`
	LastSeen       float64 `json:"last_seen"`
}

// Summarize computes a Summary for r. An empty report yields a zero Summary.
func Summarize(r *Report) Summary {
	n := len(r.Potholes)
	if n == 0 {
		return Summary{}
	}

	areas := make([]float64, n)
	confs := make([]float64, n)
	for i, p := range r.Potholes {
		areas[i] = p.Area
		confs[i] = p.Confidence
	}

	s := Summary{
		Count:          n,
		MeanConfidence: stat.Mean(confs, nil),
		MeanArea:       stat.Mean(areas, nil),
		FirstSeen:      r.Potholes[0].Timestamp,
		LastSeen:       r.Potholes[n-1].Timestamp,
	}
	if n > 1 {
		s.StdDevArea = stat.StdDev(areas, nil)
	}

	sort.Float64s(areas)
	s.MedianArea = stat.Quantile(0.5, stat.Empirical, areas, nil)
	s.MaxArea = areas[n-1]
	return s
}
