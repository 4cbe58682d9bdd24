package ability

import "sort"

// CurvePoint is one key of a level curve.
type CurvePoint struct {
	Level float64 `json:"level" yaml:"level"`
	Scale float64 `json:"scale" yaml:"scale"`
}

// ScalableFloat is Value scaled by a piecewise-linear curve over level.
// An empty curve scales by 1.
type ScalableFloat struct {
	Value float64      `json:"value" yaml:"value"`
	Curve []CurvePoint `json:"curve,omitempty" yaml:"curve,omitempty"`
}

func Flat(v float64) ScalableFloat { return ScalableFloat{Value: v} }

func (s ScalableFloat) AtLevel(level float64) float64 {
	if len(s.Curve) == 0 {
		return s.Value
	}
	pts := s.Curve
	if !sort.SliceIsSorted(pts, func(i, j int) bool { return pts[i].Level < pts[j].Level }) {
		pts = append([]CurvePoint(nil), pts...)
		sort.Slice(pts, func(i, j int) bool { return pts[i].Level < pts[j].Level })
	}
	if level <= pts[0].Level {
		return s.Value * pts[0].Scale
	}
	last := pts[len(pts)-1]
	if level >= last.Level {
		return s.Value * last.Scale
	}
	for i := 1; i < len(pts); i++ {
		hi := pts[i]
		if level > hi.Level {
			continue
		}
		lo := pts[i-1]
		span := hi.Level - lo.Level
		if span <= 0 {
			return s.Value * hi.Scale
		}
		t := (level - lo.Level) / span
		return s.Value * (lo.Scale + (hi.Scale-lo.Scale)*t)
	}
	return s.Value * last.Scale
}
