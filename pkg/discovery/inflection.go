// Package discovery mines recurring indicator-state patterns that preceded
// profitable price moves and turns them back into signal sources.
package discovery

import "github.com/samber/lo"

// TiePolicy decides how flat runs of equal prices are treated by DetectInflections
type TiePolicy int

const (
	// TieFirstEdge treats a plateau as one point reported at its first member.
	// The window is compared strictly on both sides, the right side starting
	// after the plateau ends, so a shelf inside a monotonic run is not an extremum.
	TieFirstEdge TiePolicy = iota
	// TieAllMembers compares inclusively on both sides, so every member of a
	// plateau registers
	TieAllMembers
)

func (p TiePolicy) String() string {
	if p == TieAllMembers {
		return "all"
	}
	return "first"
}

// ParseTiePolicy maps "all" to TieAllMembers and anything else to TieFirstEdge
func ParseTiePolicy(name string) TiePolicy {
	if name == "all" {
		return TieAllMembers
	}
	return TieFirstEdge
}

// InflectionKind tells a local minimum from a local maximum
type InflectionKind int8

const (
	Min InflectionKind = iota
	Max
)

func (k InflectionKind) String() string {
	if k == Max {
		return "max"
	}
	return "min"
}

// InflectionPoint is a local extremum of a price series
type InflectionPoint struct {
	Index int
	Kind  InflectionKind
}

// DetectInflections returns the local extrema of prices within a symmetric window,
// in index order. Only indices in [window, n-window) are considered. A point that
// is both a minimum and a maximum (a flat window) is reported once, as Min.
func DetectInflections(prices []float64, window int, policy TiePolicy) []InflectionPoint {
	if window < 1 || len(prices) < 2*window+1 {
		return nil
	}

	points := make([]InflectionPoint, 0)
	for i := window; i < len(prices)-window; i++ {
		isMin, isMax := extremum(prices, i, window, policy)
		switch {
		case isMin:
			points = append(points, InflectionPoint{Index: i, Kind: Min})
		case isMax:
			points = append(points, InflectionPoint{Index: i, Kind: Max})
		}
	}
	return points
}

func extremum(prices []float64, i, window int, policy TiePolicy) (isMin, isMax bool) {
	if policy == TieFirstEdge {
		return plateauExtremum(prices, i, window)
	}

	p := prices[i]
	isMin, isMax = true, true
	for j := i - window; j <= i+window && (isMin || isMax); j++ {
		if j == i {
			continue
		}
		if prices[j] < p {
			isMin = false
		}
		if prices[j] > p {
			isMax = false
		}
	}
	return isMin, isMax
}

// plateauExtremum checks the first member of a plateau against the window to its
// left and the window following the plateau's last member. A plateau whose right
// window runs past the series end is not reported.
func plateauExtremum(prices []float64, i, window int) (isMin, isMax bool) {
	p := prices[i]
	if prices[i-1] == p {
		return false, false
	}

	end := i
	for end+1 < len(prices) && prices[end+1] == p {
		end++
	}
	if end+window >= len(prices) {
		return false, false
	}

	isMin, isMax = true, true
	for _, j := range append(lo.RangeFrom(i-window, window), lo.RangeFrom(end+1, window)...) {
		if prices[j] <= p {
			isMin = false
		}
		if prices[j] >= p {
			isMax = false
		}
	}
	return isMin, isMax
}
