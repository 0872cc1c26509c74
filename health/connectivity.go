package health

import (
	"time"

	"github.com/eddielth/signal-monitor/telemetry"
)

const (
	// DefaultSlots is the size of the device grid of one equipment unit.
	DefaultSlots = 64
	// DefaultStaleAfter marks a device disconnected when its newest sample
	// is older than this.
	DefaultStaleAfter = 12 * time.Hour
)

// SlotState is the connectivity of one device slot.
type SlotState string

const (
	SlotEmpty        SlotState = "empty"
	SlotDisconnected SlotState = "disconnected"
	SlotActive       SlotState = "active"
)

// Slot describes one cell of the device grid.
type Slot struct {
	DeviceID int       `json:"deviceid"`
	State    SlotState `json:"state"`
	LastSeen time.Time `json:"last_seen,omitempty"`
}

// Connectivity lays the samples out over device ids 0..slots-1.
func Connectivity(samples []telemetry.DeviceSample, slots int, now time.Time, staleAfter time.Duration) []Slot {
	if slots <= 0 {
		slots = DefaultSlots
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	latest := make(map[int]time.Time)
	for _, s := range samples {
		if t, ok := latest[s.DeviceID]; !ok || s.UpdatedAt.After(t) {
			latest[s.DeviceID] = s.UpdatedAt
		}
	}

	out := make([]Slot, slots)
	for id := range out {
		out[id].DeviceID = id
		t, ok := latest[id]
		switch {
		case !ok:
			out[id].State = SlotEmpty
		case now.Sub(t) > staleAfter:
			out[id].State = SlotDisconnected
			out[id].LastSeen = t
		default:
			out[id].State = SlotActive
			out[id].LastSeen = t
		}
	}
	return out
}
