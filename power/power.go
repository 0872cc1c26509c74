// Package power derives per-channel wattage from telemetry and aggregates it
// over a time window.
package power

import (
	"math"
	"time"

	"github.com/eddielth/signal-monitor/telemetry"
)

// Channel is one lamp colour of a signal unit.
type Channel int

const (
	Red Channel = iota
	Green
)

func (c Channel) String() string {
	if c == Green {
		return "green"
	}
	return "red"
}

// Sample is the wattage of both channels at one point in time. A channel
// without a usable reading has its Has flag unset.
type Sample struct {
	At       time.Time
	Red      float64
	Green    float64
	HasRed   bool
	HasGreen bool
}

// StatusWattage computes the wattage of a decoded status row. Status rows
// carry current in 1/10 mA steps, so the amp value is floor(raw/10)/100.
// Composite current values yield ok == false.
func StatusWattage(row telemetry.DecodedStatusRow, ch Channel) (float64, bool) {
	voltField, ampField := "voltR", "ampR"
	if ch == Green {
		voltField, ampField = "voltG", "ampG"
	}
	volts, ok := row.Number(voltField)
	if !ok {
		return 0, false
	}
	amp, ok := row.Number(ampField)
	if !ok {
		return 0, false
	}
	return volts * math.Floor(amp/10) / 100, true
}

// DisplayWattage computes the wattage of a display-info sample, whose
// current is in mA.
func DisplayWattage(s telemetry.DeviceSample, ch Channel) (float64, bool) {
	volts, amp := s.VoltageRed, s.CurrentRed
	if ch == Green {
		volts, amp = s.VoltageGreen, s.CurrentGreen
	}
	if volts == nil || amp == nil {
		return 0, false
	}
	w := *volts * *amp / 1000
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return 0, false
	}
	return w, true
}

// FromStatusRows turns the rows received inside w into samples. Rows keep
// their input order.
func FromStatusRows(rows []telemetry.DecodedStatusRow, w Window) []Sample {
	out := make([]Sample, 0, len(rows))
	for _, row := range rows {
		if !w.Contains(row.ReceivedAt()) {
			continue
		}
		s := Sample{At: row.ReceivedAt()}
		s.Red, s.HasRed = StatusWattage(row, Red)
		s.Green, s.HasGreen = StatusWattage(row, Green)
		out = append(out, s)
	}
	return out
}

// FromDeviceSamples turns the display-info samples updated inside w into
// power samples.
func FromDeviceSamples(samples []telemetry.DeviceSample, w Window) []Sample {
	out := make([]Sample, 0, len(samples))
	for _, ds := range samples {
		if !w.Contains(ds.UpdatedAt) {
			continue
		}
		s := Sample{At: ds.UpdatedAt}
		s.Red, s.HasRed = DisplayWattage(ds, Red)
		s.Green, s.HasGreen = DisplayWattage(ds, Green)
		out = append(out, s)
	}
	return out
}
