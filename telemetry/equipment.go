package telemetry

import (
	"fmt"
	"regexp"
	"strings"
)

// EquipmentType is a device family code. It decides the layout of a raw payload.
type EquipmentType string

const (
	AGL EquipmentType = "AGL"
	DGL EquipmentType = "DGL"
	VGL EquipmentType = "VGL"
	BGL EquipmentType = "BGL"
	LGL EquipmentType = "LGL"
)

var equipmentTypes = []EquipmentType{AGL, DGL, VGL, BGL, LGL}

var equipmentIDPattern = regexp.MustCompile(`^(AGL|DGL|VGL|BGL|LGL)(\d+)$`)

// EquipmentTypes returns every known equipment type in declaration order.
func EquipmentTypes() []EquipmentType {
	out := make([]EquipmentType, len(equipmentTypes))
	copy(out, equipmentTypes)
	return out
}

// ParseEquipmentType accepts a type code in any letter case.
func ParseEquipmentType(s string) (EquipmentType, error) {
	t := EquipmentType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range equipmentTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown equipment type: %q", s)
}

// ParseEquipmentID splits an equipment identifier such as "AGL123" into its
// type and numeric part.
func ParseEquipmentID(id string) (EquipmentType, string, error) {
	m := equipmentIDPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(id)))
	if m == nil {
		return "", "", fmt.Errorf("invalid equipment id: %q", id)
	}
	return EquipmentType(m[1]), m[2], nil
}

func (t EquipmentType) String() string {
	return string(t)
}
