package power

import "math"

// ChannelStats aggregates the wattage of one channel. PerUnitAvg is only set
// when the installation has more than one unit.
type ChannelStats struct {
	Avg        float64 `json:"avg"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	PerUnitAvg float64 `json:"per_unit_avg,omitempty"`
	Count      int     `json:"count"`
}

// Statistics is the result of Calculate.
type Statistics struct {
	Red   ChannelStats `json:"red"`
	Green ChannelStats `json:"green"`
	Units int          `json:"units"`
}

// Channel returns the stats of one channel.
func (s Statistics) Channel(ch Channel) ChannelStats {
	if ch == Green {
		return s.Green
	}
	return s.Red
}

// Calculate aggregates samples per channel. Empty input gives all-zero
// statistics. Results are rounded half up to two decimals after
// aggregation.
func Calculate(samples []Sample, units int) Statistics {
	var red, green accumulator
	for _, s := range samples {
		if s.HasRed {
			red.add(s.Red)
		}
		if s.HasGreen {
			green.add(s.Green)
		}
	}
	if units < 1 {
		units = 1
	}
	return Statistics{
		Red:   red.stats(units),
		Green: green.stats(units),
		Units: units,
	}
}

type accumulator struct {
	sum   float64
	min   float64
	max   float64
	count int
}

func (a *accumulator) add(w float64) {
	if a.count == 0 || w < a.min {
		a.min = w
	}
	if a.count == 0 || w > a.max {
		a.max = w
	}
	a.sum += w
	a.count++
}

func (a accumulator) stats(units int) ChannelStats {
	if a.count == 0 {
		return ChannelStats{}
	}
	avg := a.sum / float64(a.count)
	st := ChannelStats{
		Avg:   Round(avg),
		Min:   Round(a.min),
		Max:   Round(a.max),
		Count: a.count,
	}
	if units > 1 {
		st.PerUnitAvg = Round(avg / float64(units))
	}
	return st
}

// Round rounds half up to two decimals.
func Round(x float64) float64 {
	return math.Floor(x*100+0.5) / 100
}
