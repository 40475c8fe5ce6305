package preprocess

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler centres a numeric column and scales it to unit variance using
// the population standard deviation. NaNs are ignored while fitting.
type StandardScaler struct {
	Mean  float64 `json:"mean"`
	Scale float64 `json:"scale"`
}

// Fit computes mean and scale. A zero spread gets scale 1.
func (s *StandardScaler) Fit(values []float64) *StandardScaler {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	s.Mean, s.Scale = 0, 1
	if len(clean) == 0 {
		return s
	}

	mean, std := stat.PopMeanStdDev(clean, nil)
	s.Mean = mean
	if std > 0 {
		s.Scale = std
	}
	return s
}

func (s *StandardScaler) Transform(v float64) float64 {
	return (v - s.Mean) / s.Scale
}

func (s *StandardScaler) InverseTransform(v float64) float64 {
	return v*s.Scale + s.Mean
}

// FitTransform fits on values and returns the scaled copy.
func (s *StandardScaler) FitTransform(values []float64) []float64 {
	s.Fit(values)
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Transform(v)
	}
	return out
}

// MinMaxScale maps values onto [0, 1]. NaNs are treated as 0 and a constant column
// becomes all zeros.
func MinMaxScale(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	for i, v := range values {
		if math.IsNaN(v) {
			v = 0
		}
		out[i] = v
	}

	lo, hi := floats.Min(out), floats.Max(out)
	span := hi - lo
	floats.AddConst(-lo, out)
	if span == 0 {
		return out
	}
	floats.Scale(1/span, out)
	return out
}
