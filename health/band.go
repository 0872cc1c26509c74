package health

import "fmt"

// Band maps a range of average current (mA) to a warning. The range is
// [Min, Max] inclusive, or everything strictly below Max when Below is set.
type Band struct {
	Min     float64      `mapstructure:"min" json:"min"`
	Max     float64      `mapstructure:"max" json:"max"`
	Below   bool         `mapstructure:"below" json:"below,omitempty"`
	Level   WarningLevel `mapstructure:"level" json:"level"`
	Message string       `mapstructure:"message" json:"message"`
}

// Match reports whether avg falls into the band.
func (b Band) Match(avg float64) bool {
	if b.Below {
		return avg < b.Max
	}
	return avg >= b.Min && avg <= b.Max
}

// Validate checks a band read from configuration.
func (b Band) Validate() error {
	if _, err := ParseWarningLevel(string(b.Level)); err != nil {
		return err
	}
	if !b.Below && b.Min > b.Max {
		return fmt.Errorf("band %v-%v: min greater than max", b.Min, b.Max)
	}
	return nil
}

// DefaultGreenBands are the reference bands of the green channel.
func DefaultGreenBands() []Band {
	return []Band{
		{Below: true, Max: 497, Level: LevelHigh, Message: "6+ devices not working properly (Green)"},
		{Min: 560, Max: 770, Level: LevelMedium, Message: "2-5 devices not working properly (Green)"},
		{Min: 875, Max: 896, Level: LevelNone, Message: "All good (Green)"},
	}
}

// DefaultRedBands are the reference bands of the red channel.
func DefaultRedBands() []Band {
	return []Band{
		{Min: 925, Max: 935, Level: LevelNone, Message: "All good (Red)"},
		{Min: 864, Max: 870, Level: LevelLow, Message: "1 device not working properly (Red)"},
		{Min: 790, Max: 796, Level: LevelMedium, Message: "2 devices not working properly (Red)"},
		{Min: 648, Max: 729, Level: LevelHigh, Message: "3-4 devices not working properly (Red)"},
		{Below: true, Max: 576, Level: LevelCritical, Message: "5+ devices not working properly (Red)"},
	}
}

// classify returns the first matching band, or unknown.
func classify(bands []Band, avg float64, unknownMessage string) Warning {
	for _, b := range bands {
		if b.Match(avg) {
			return Warning{Level: b.Level, Message: b.Message}
		}
	}
	return Warning{Level: LevelUnknown, Message: unknownMessage}
}
