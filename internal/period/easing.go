package period

import "github.com/saaga0h/duskd/pkg/config"

// bisectionSteps is enough to resolve the curve parameter to float64 precision
const bisectionSteps = 64

// Bezier is a cubic Bezier easing curve with endpoints fixed at (0,0) and (1,1).
// Control points are clamped to [0,1], which keeps both coordinate
// polynomials non-decreasing and therefore the curve strictly monotonic.
type Bezier struct {
	X1, Y1, X2, Y2 float64
}

// NewBezier builds a curve from two control points
func NewBezier(x1, y1, x2, y2 float64) Bezier {
	return Bezier{X1: clamp01(x1), Y1: clamp01(y1), X2: clamp01(x2), Y2: clamp01(y2)}
}

// BezierFromConfig builds the curve configured by the user
func BezierFromConfig(cfg *config.Config) Bezier {
	return NewBezier(cfg.BezierP1X, cfg.BezierP1Y, cfg.BezierP2X, cfg.BezierP2Y)
}

// Linear is the identity easing
var Linear = Bezier{X1: 1.0 / 3, Y1: 1.0 / 3, X2: 2.0 / 3, Y2: 2.0 / 3}

// Ease maps linear progress t to eased progress. Ease(0) == 0 and Ease(1) == 1 exactly.
func (b Bezier) Ease(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}

	// Find s with x(s) = t. Bisection keeps s(t) non-decreasing in t,
	// which Newton iteration does not guarantee near flat regions.
	lo, hi := 0.0, 1.0
	for i := 0; i < bisectionSteps; i++ {
		mid := (lo + hi) / 2
		if cubic(mid, b.X1, b.X2) < t {
			lo = mid
		} else {
			hi = mid
		}
	}

	return clamp01(cubic((lo+hi)/2, b.Y1, b.Y2))
}

// cubic evaluates one coordinate of the curve with P0 = 0 and P3 = 1
func cubic(s, p1, p2 float64) float64 {
	u := 1 - s
	return 3*u*u*s*p1 + 3*u*s*s*p2 + s*s*s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
