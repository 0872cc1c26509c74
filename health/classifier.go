package health

import (
	"sort"
	"time"

	"github.com/eddielth/signal-monitor/telemetry"
)

// DefaultLookback is the sample window of the reference deployment.
const DefaultLookback = 24 * time.Hour

// DeviceStatus is the health of one sub-device over the lookback window.
type DeviceStatus struct {
	DeviceID     int          `json:"deviceid"`
	AvgRed       float64      `json:"avg_current_red"`
	AvgGreen     float64      `json:"avg_current_green"`
	RedSamples   int          `json:"red_samples"`
	GreenSamples int          `json:"green_samples"`
	RedWarning   Warning      `json:"red_warning"`
	GreenWarning Warning      `json:"green_warning"`
	Level        WarningLevel `json:"warning_level"`
	Message      string       `json:"warning_message"`
	HasWarning   bool         `json:"has_warning"`
}

// Classifier holds the bands used to grade channel averages. The zero value
// is not usable; use NewClassifier.
type Classifier struct {
	Green    []Band
	Red      []Band
	Lookback time.Duration
}

// NewClassifier returns a classifier. Empty band lists and a zero lookback
// fall back to the reference values.
func NewClassifier(green, red []Band, lookback time.Duration) *Classifier {
	if len(green) == 0 {
		green = DefaultGreenBands()
	}
	if len(red) == 0 {
		red = DefaultRedBands()
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Classifier{Green: green, Red: red, Lookback: lookback}
}

// ClassifyGreen grades a green channel average.
func (c *Classifier) ClassifyGreen(avg float64) Warning {
	return classify(c.Green, avg, "Unknown status (Green)")
}

// ClassifyRed grades a red channel average.
func (c *Classifier) ClassifyRed(avg float64) Warning {
	return classify(c.Red, avg, "Unknown status (Red)")
}

type channelSum struct {
	sum   float64
	count int
}

func (s *channelSum) add(v *float64) {
	if v == nil {
		return
	}
	s.sum += *v
	s.count++
}

func (s channelSum) mean() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// Classify groups samples by device id and grades each device. Each channel
// is averaged over its own readings; a channel without readings averages to
// zero and is graded like any other value. Devices without samples do not
// appear. The result is sorted by device id.
func (c *Classifier) Classify(samples []telemetry.DeviceSample) []DeviceStatus {
	type acc struct {
		red, green channelSum
	}
	byDevice := make(map[int]*acc)
	for i := range samples {
		s := &samples[i]
		a, ok := byDevice[s.DeviceID]
		if !ok {
			a = &acc{}
			byDevice[s.DeviceID] = a
		}
		a.red.add(s.CurrentRed)
		a.green.add(s.CurrentGreen)
	}

	out := make([]DeviceStatus, 0, len(byDevice))
	for id, a := range byDevice {
		st := DeviceStatus{
			DeviceID:     id,
			AvgRed:       a.red.mean(),
			AvgGreen:     a.green.mean(),
			RedSamples:   a.red.count,
			GreenSamples: a.green.count,
		}
		st.RedWarning = c.ClassifyRed(st.AvgRed)
		st.GreenWarning = c.ClassifyGreen(st.AvgGreen)
		st.Level, st.Message = combine(st.RedWarning, st.GreenWarning)
		st.HasWarning = st.RedWarning.Level != LevelNone || st.GreenWarning.Level != LevelNone
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// combine keeps the more severe channel. On a tie the red message is used.
func combine(red, green Warning) (WarningLevel, string) {
	if green.Level.Rank() > red.Level.Rank() {
		return green.Level, green.Message
	}
	return red.Level, red.Message
}

// Overall is the facility warning: the most severe device level, or none.
func Overall(statuses []DeviceStatus) WarningLevel {
	level := LevelNone
	for _, s := range statuses {
		level = Max(level, s.Level)
	}
	return level
}

// Report is the result of Evaluate.
type Report struct {
	From         time.Time      `json:"from"`
	To           time.Time      `json:"to"`
	Devices      []DeviceStatus `json:"devices"`
	Overall      WarningLevel   `json:"overall"`
	WarningCount int            `json:"warning_count"`
}

// Evaluate classifies the samples updated within the lookback window ending
// at now, both ends included.
func (c *Classifier) Evaluate(samples []telemetry.DeviceSample, now time.Time) Report {
	from := now.Add(-c.Lookback)
	inWindow := make([]telemetry.DeviceSample, 0, len(samples))
	for _, s := range samples {
		if s.UpdatedAt.Before(from) || s.UpdatedAt.After(now) {
			continue
		}
		inWindow = append(inWindow, s)
	}

	devices := c.Classify(inWindow)
	r := Report{
		From:    from,
		To:      now,
		Devices: devices,
		Overall: Overall(devices),
	}
	for _, d := range devices {
		if d.HasWarning {
			r.WarningCount++
		}
	}
	return r
}
