// Package health classifies sub-devices by their averaged lamp currents and
// derives the facility-level warning.
package health

import (
	"encoding/json"
	"fmt"
	"strings"
)

// WarningLevel is a discrete severity.
type WarningLevel string

const (
	LevelNone     WarningLevel = "none"
	LevelLow      WarningLevel = "low"
	LevelMedium   WarningLevel = "medium"
	LevelHigh     WarningLevel = "high"
	LevelCritical WarningLevel = "critical"
	// LevelUnknown marks an average that fell between bands. It ranks above
	// none so it is never hidden, but below every real warning.
	LevelUnknown WarningLevel = "unknown"
)

var ranks = map[WarningLevel]int{
	LevelNone:     0,
	LevelUnknown:  1,
	LevelLow:      2,
	LevelMedium:   3,
	LevelHigh:     4,
	LevelCritical: 5,
}

// Rank orders levels for aggregation. Unrecognised levels rank as unknown.
func (l WarningLevel) Rank() int {
	if r, ok := ranks[l]; ok {
		return r
	}
	return ranks[LevelUnknown]
}

// Max returns the more severe of two levels.
func Max(a, b WarningLevel) WarningLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseWarningLevel accepts a level name in any letter case.
func ParseWarningLevel(s string) (WarningLevel, error) {
	l := WarningLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := ranks[l]; !ok {
		return "", fmt.Errorf("unknown warning level: %q", s)
	}
	return l, nil
}

func (l *WarningLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseWarningLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Warning is the classification of one channel.
type Warning struct {
	Level   WarningLevel `json:"level"`
	Message string       `json:"message"`
}
